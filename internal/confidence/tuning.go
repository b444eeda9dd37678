package confidence

import (
	"time"

	"hushtab/pkg/model"
	"hushtab/pkg/sensor"
)

// Weights 信号名称到权重的映射
type Weights map[string]int

// Extractor 平台信号提取器。给定页面快照输出该平台成立的信号集合，
// 提取不允许向调用方抛错：任何查询失败都按"信号缺失"处理。
type Extractor interface {
	Platform() model.Platform
	Extract(ps *sensor.PageState, w Weights) []model.Signal
}

// Tuning 单平台的置信度引擎调优参数。原始数值均为经验拟合值，
// 通过配置逐平台覆盖，机制本身不依赖具体数字。
type Tuning struct {
	MuteThreshold   int           // 置信度达到该值立即静音
	UnmuteThreshold int           // 必须严格小于 MuteThreshold，构成迟滞带
	UnmuteDelay     time.Duration // 低置信度需持续该时长才解除静音
	CheckInterval   time.Duration // 轮询周期
	StallWindow     time.Duration // 冻结检测的最小观察窗口
	StartupGrace    time.Duration // 页面加载后的静音抑制期
	FlickerDecay    time.Duration // 可听抖动信号的衰减时长
	NetworkDecay    time.Duration // 网络广告信号清除后的残留时长
	Weights         Weights
}

// DefaultTuning 基础调优参数，各平台在此之上覆盖
func DefaultTuning() Tuning {
	return Tuning{
		MuteThreshold:   60,
		UnmuteThreshold: 25,
		UnmuteDelay:     2000 * time.Millisecond,
		CheckInterval:   500 * time.Millisecond,
		StallWindow:     time.Second,
		StartupGrace:    5 * time.Second,
		FlickerDecay:    3 * time.Second,
		NetworkDecay:    time.Second,
		Weights: Weights{
			model.SignalPlayerAdFlag:   40,
			model.SignalAdLengthVideo:  40,
			model.SignalAdOverlay:      30,
			model.SignalAdText:         20,
			model.SignalSeekDisabled:   20,
			model.SignalVideoFrozen:    15,
			model.SignalAudibleFlicker: 10,
			model.SignalNetworkAd:      35,
			model.SignalAdSDKContainer: 35,
			model.SignalControlsHidden: 35,
			model.SignalProgressHidden: 30,
			model.SignalBackToLiveGone: 25,
		},
	}
}

// Weight 查询信号权重，未配置的信号权重为 0
func (w Weights) Weight(name string) int { return w[name] }

// Merge 返回以 w 为基础、overrides 覆盖后的新权重表
func (w Weights) Merge(overrides map[string]int) Weights {
	out := make(Weights, len(w)+len(overrides))
	for k, v := range w {
		out[k] = v
	}
	for k, v := range overrides {
		out[k] = v
	}
	return out
}

// Valid 校验迟滞带约束
func (t Tuning) Valid() bool {
	return t.UnmuteThreshold < t.MuteThreshold && t.UnmuteThreshold >= 0
}
