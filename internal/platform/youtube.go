package platform

import (
	"hushtab/internal/confidence"
	"hushtab/pkg/model"
	"hushtab/pkg/sensor"
)

// youtubeExtractor 基于 YouTube 播放器的标记约定提取信号。
// 播放器容器在广告期间会被其自身脚本打上 ad-showing/ad-interrupting
// 类，这是全平台里最可靠的单一信号。
type youtubeExtractor struct{}

func (youtubeExtractor) Platform() model.Platform { return model.PlatformYouTube }

func (youtubeExtractor) Extract(ps *sensor.PageState, w confidence.Weights) []model.Signal {
	var out []model.Signal

	if ps.AnyNode(func(n sensor.NodeState) bool {
		return n.HasClass("ad-showing") || n.HasClass("ad-interrupting")
	}) != nil {
		out = add(out, w, model.SignalPlayerAdFlag)
	}

	if ps.FindVisible(func(n sensor.NodeState) bool {
		return n.ClassInfix("ytp-ad-player-overlay") || n.ClassInfix("ytp-ad-module") ||
			n.ClassInfix("ytp-ad-image-overlay")
	}) != nil {
		out = add(out, w, model.SignalAdOverlay)
	}

	if adText(ps) || ps.FindVisible(func(n sensor.NodeState) bool {
		return n.ClassInfix("ytp-ad-preview-text") || n.ClassInfix("ytp-skip-ad-button")
	}) != nil {
		out = add(out, w, model.SignalAdText)
	}

	if ps.AnyNode(func(n sensor.NodeState) bool {
		return n.ClassInfix("ytp-progress-bar") && n.SeekBlocked()
	}) != nil {
		out = add(out, w, model.SignalSeekDisabled)
	}

	if adSDKPresent(ps) {
		out = add(out, w, model.SignalAdSDKContainer)
	}
	return out
}
