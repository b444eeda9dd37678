package platform

import (
	"hushtab/internal/confidence"
	"hushtab/pkg/model"
	"hushtab/pkg/sensor"
)

// espnExtractor 的 DOM 线索很弱：ESPN 走服务端广告拼接，广告段与
// 正片在同一条流里，客户端标记时有时无。该平台主要依赖网络信号
// 与画面冻结异常，DOM 侧只做佐证。
type espnExtractor struct{}

func (espnExtractor) Platform() model.Platform { return model.PlatformESPN }

func (espnExtractor) Extract(ps *sensor.PageState, w confidence.Weights) []model.Signal {
	var out []model.Signal

	if ps.FindVisible(func(n sensor.NodeState) bool {
		return n.ClassInfix("ad-break") || n.ClassInfix("AdBreak")
	}) != nil {
		out = add(out, w, model.SignalPlayerAdFlag)
	}

	if ps.FindVisible(func(n sensor.NodeState) bool {
		return n.ClassInfix("ad-overlay") || n.ClassInfix("ad-slate")
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
