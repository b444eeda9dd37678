package platform

import (
	"hushtab/internal/confidence"
	"hushtab/pkg/model"
	"hushtab/pkg/sensor"
)

// 通用广告容器命名中缀，覆盖未适配平台的常见播放器实现
var genericAdInfixes = []string{"ad-container", "ad-overlay", "ad-wrapper", "video-ads", "ad-ui"}

// genericExtractor 未识别平台的兜底提取器，只用跨站点通用的启发式
type genericExtractor struct{}

func (genericExtractor) Platform() model.Platform { return model.PlatformGeneric }

func (genericExtractor) Extract(ps *sensor.PageState, w confidence.Weights) []model.Signal {
	var out []model.Signal

	if ps.FindVisible(func(n sensor.NodeState) bool {
		for _, infix := range genericAdInfixes {
			if n.ClassInfix(infix) || containsFold(n.ID, infix) {
				return true
			}
		}
		return false
	}) != nil {
		out = add(out, w, model.SignalAdOverlay)
	}

	if adText(ps) {
		out = add(out, w, model.SignalAdText)
	}

	if ps.AnyNode(func(n sensor.NodeState) bool {
		return (n.ClassInfix("progress") || n.ClassInfix("seek")) && n.SeekBlocked()
	}) != nil {
		out = add(out, w, model.SignalSeekDisabled)
	}

	if adSDKPresent(ps) {
		out = add(out, w, model.SignalAdSDKContainer)
	}
	return out
}
