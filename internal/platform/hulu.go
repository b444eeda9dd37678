package platform

import (
	"hushtab/internal/confidence"
	"hushtab/pkg/model"
	"hushtab/pkg/sensor"
)

// huluExtractor 基于 Hulu 播放器的广告容器与进度条标记提取信号
type huluExtractor struct{}

func (huluExtractor) Platform() model.Platform { return model.PlatformHulu }

func (huluExtractor) Extract(ps *sensor.PageState, w confidence.Weights) []model.Signal {
	var out []model.Signal

	if ps.FindVisible(func(n sensor.NodeState) bool {
		return n.ClassInfix("AdUnitView") || n.ID == "ad-container"
	}) != nil {
		out = add(out, w, model.SignalPlayerAdFlag)
	}

	if ps.FindVisible(func(n sensor.NodeState) bool {
		return n.ClassInfix("AdBanner") || n.ClassInfix("ad-banner") ||
			n.ClassInfix("AdCountdown")
	}) != nil {
		out = add(out, w, model.SignalAdOverlay)
	}

	if adText(ps) {
		out = add(out, w, model.SignalAdText)
	}

	if ps.AnyNode(func(n sensor.NodeState) bool {
		return n.ClassInfix("ProgressBar") && n.SeekBlocked()
	}) != nil {
		out = add(out, w, model.SignalSeekDisabled)
	}

	if adSDKPresent(ps) {
		out = add(out, w, model.SignalAdSDKContainer)
	}
	return out
}
