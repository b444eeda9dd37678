package platform

import (
	"regexp"
	"strings"

	"hushtab/internal/confidence"
	"hushtab/pkg/model"
	"hushtab/pkg/sensor"
)

// 广告提示文本模式，只在采集端已截断的短文本节点上匹配
var (
	adCounterRe = regexp.MustCompile(`(?i)\bad\s*[·•:]?\s*\d+\s*(of|/)\s*\d+`)
	adPhraseRe  = regexp.MustCompile(`(?i)(commercial break|seconds? remaining|skip ads?\b|your (video|show) will (resume|begin))`)
)

// 第三方互动广告 SDK 的 id/class 中缀命名约定
var adSDKInfixes = []string{"innovid", "truex", "brightline"}

// New 按平台创建信号提取器
func New(p model.Platform) confidence.Extractor {
	switch p {
	case model.PlatformYouTube:
		return youtubeExtractor{}
	case model.PlatformHulu:
		return huluExtractor{}
	case model.PlatformESPN:
		return espnExtractor{}
	case model.PlatformNBC:
		return nbcExtractor{}
	default:
		return genericExtractor{}
	}
}

// DefaultTuning 返回平台默认调优参数。数值来自对各平台的实测回放
// 数据拟合，经由配置逐项覆盖。
func DefaultTuning(p model.Platform) confidence.Tuning {
	t := confidence.DefaultTuning()
	switch p {
	case model.PlatformYouTube:
		// DOM 信号强，播放器自带广告标记
		t.MuteThreshold = 50
	case model.PlatformHulu:
		t.MuteThreshold = 55
	case model.PlatformESPN:
		// 服务端拼接广告，客户端几乎没有 DOM 标记，网络信号权重最高
		t.MuteThreshold = 50
		t.Weights = t.Weights.Merge(map[string]int{model.SignalNetworkAd: 50})
	case model.PlatformNBC:
		t.MuteThreshold = 50
		t.Weights = t.Weights.Merge(map[string]int{model.SignalNetworkAd: 45})
	}
	return t
}

// add 在权重表中配置了该信号时追加，权重 0 等价于禁用信号
func add(out []model.Signal, w confidence.Weights, name string) []model.Signal {
	wt := w.Weight(name)
	if wt <= 0 {
		return out
	}
	return append(out, model.Signal{Name: name, Weight: wt})
}

// adText 可见短文本是否命中任一广告提示模式
func adText(ps *sensor.PageState) bool {
	return ps.TextMatch(adCounterRe) || ps.TextMatch(adPhraseRe)
}

// adSDKPresent 是否存在可见的第三方广告 SDK 容器
func adSDKPresent(ps *sensor.PageState) bool {
	return ps.FindVisible(func(n sensor.NodeState) bool {
		for _, infix := range adSDKInfixes {
			if n.ClassInfix(infix) || containsFold(n.ID, infix) {
				return true
			}
		}
		return false
	}) != nil
}

func containsFold(s, sub string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(sub))
}
