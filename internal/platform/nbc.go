package platform

import (
	"hushtab/internal/confidence"
	"hushtab/pkg/model"
	"hushtab/pkg/sensor"
)

// nbcExtractor 的特点是"以缺为凭"：NBC 播放器在广告期间隐藏正常
// 播放控件（控制条、进度条、回到直播按钮），诊断回放显示这些
// 隐藏事件与人工标注的广告区间高度吻合，可见性反转即信号。
type nbcExtractor struct{}

func (nbcExtractor) Platform() model.Platform { return model.PlatformNBC }

func (nbcExtractor) Extract(ps *sensor.PageState, w confidence.Weights) []model.Signal {
	var out []model.Signal

	if hiddenNode(ps, "player-controls") {
		out = add(out, w, model.SignalControlsHidden)
	}
	if hiddenNode(ps, "progress-bar") {
		out = add(out, w, model.SignalProgressHidden)
	}
	if hiddenNode(ps, "back-to-live") {
		out = add(out, w, model.SignalBackToLiveGone)
	}

	if ps.FindVisible(func(n sensor.NodeState) bool {
		return n.ClassInfix("ad-ui") || n.ClassInfix("ad-container")
	}) != nil {
		out = add(out, w, model.SignalAdOverlay)
	}

	if adText(ps) {
		out = add(out, w, model.SignalAdText)
	}

	if adSDKPresent(ps) {
		out = add(out, w, model.SignalAdSDKContainer)
	}
	return out
}

// hiddenNode 指定中缀的控件存在但不可见
func hiddenNode(ps *sensor.PageState, infix string) bool {
	n := ps.AnyNode(func(n sensor.NodeState) bool {
		return n.ClassInfix(infix) || containsFold(n.ID, infix)
	})
	return n != nil && !n.Visible
}
