package confidence

import (
	"sync"
	"time"

	"hushtab/internal/logger"
	"hushtab/pkg/model"
	"hushtab/pkg/sensor"
)

// 广告典型时长区间（秒），落在其中的活动视频视为广告片段
const (
	adClipMinSeconds = 5
	adClipMaxSeconds = 120
)

// Engine 单标签页的广告置信度引擎。
//
// 每次 Evaluate 对当前页面快照完整重算一遍置信度（求和封顶 100，
// 不做增量），再驱动双阈值迟滞状态机。Evaluate 除状态机翻转外没有
// 其他副作用，轮询触发与事件触发可以交错调用，内部互斥保证串行。
type Engine struct {
	mu        sync.Mutex
	tab       model.TabID
	extractor Extractor
	tuning    Tuning
	log       logger.Logger

	state        model.AdState
	lowConfSince time.Time // 零值表示解除静音计时未武装
	startedAt    time.Time
	stopped      bool

	stall         stallTracker
	flickerUntil  time.Time
	networkActive bool
	networkUntil  time.Time

	tracer func(model.SignalTrace)
}

// New 创建引擎，now 为监控开始时刻（静音抑制期从此刻起算）
func New(tab model.TabID, ex Extractor, t Tuning, l logger.Logger, now time.Time) *Engine {
	if l == nil {
		l = logger.NewNop()
	}
	return &Engine{
		tab:       tab,
		extractor: ex,
		tuning:    t,
		log:       l,
		state:     model.AdStateContent,
		startedAt: now,
	}
}

// State 返回当前状态
func (e *Engine) State() model.AdState {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// Tuning 返回当前调优参数
func (e *Engine) Tuning() Tuning {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.tuning
}

// SetTuning 热更新调优参数（配置重载）
func (e *Engine) SetTuning(t Tuning) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if t.Valid() {
		e.tuning = t
	}
}

// SetTracer 注册信号明细回调，仅诊断采集使用，不参与正确性
func (e *Engine) SetTracer(fn func(model.SignalTrace)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.tracer = fn
}

// NoteAudibleFlicker 注入可听状态抖动观测。窗口内切换次数达到 2 次
// 以上才点亮信号，信号在 FlickerDecay 后自行熄灭。
func (e *Engine) NoteAudibleFlicker(count int, now time.Time) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if count >= 2 {
		e.flickerUntil = now.Add(e.tuning.FlickerDecay)
	}
}

// SetNetworkAdActive 注入网络突发检测器的二值广告标志。
// 标志清除后信号再残留 NetworkDecay，吸收两个状态机之间的到达乱序。
func (e *Engine) SetNetworkAdActive(active bool, now time.Time) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if active {
		e.networkActive = true
		return
	}
	if e.networkActive {
		e.networkActive = false
		e.networkUntil = now.Add(e.tuning.NetworkDecay)
	}
}

// ResetNavigation 页内导航（SPA 路由切换）后完全复位：回到 Content、
// 清空解锁计时与冻结跟踪、重新进入静音抑制期。返回复位前是否处于
// 广告状态，调用方据此解除遗留的静音。
func (e *Engine) ResetNavigation(now time.Time) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	wasAd := e.state == model.AdStateAdPlaying
	e.state = model.AdStateContent
	e.lowConfSince = time.Time{}
	e.startedAt = now
	e.stall.reset()
	e.flickerUntil = time.Time{}
	e.networkActive = false
	e.networkUntil = time.Time{}
	return wasAd
}

// Stop 停止引擎，此后 Evaluate 不再产生任何翻转
func (e *Engine) Stop() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.stopped = true
}

// Evaluate 执行一次完整评估，发生状态翻转时返回事件，否则返回 nil
func (e *Engine) Evaluate(now time.Time, ps *sensor.PageState) *model.AdStateChange {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.stopped {
		return nil
	}

	signals := e.collect(now, ps)
	conf := 0
	for _, s := range signals {
		conf += s.Weight
	}
	if conf > 100 {
		conf = 100
	}

	if e.tracer != nil {
		e.tracer(model.SignalTrace{
			Tab:        e.tab,
			Platform:   e.platform(),
			Signals:    signals,
			Confidence: conf,
			State:      e.state,
			At:         now,
		})
	}

	switch e.state {
	case model.AdStateContent:
		if conf >= e.tuning.MuteThreshold {
			if now.Sub(e.startedAt) < e.tuning.StartupGrace {
				// 加载初期的瞬态 DOM 容易误报，只观察不动作
				return nil
			}
			e.state = model.AdStateAdPlaying
			e.lowConfSince = time.Time{}
			e.log.Info("检测到广告开始", "tab", string(e.tab), "confidence", conf)
			return e.change(true, conf, ps, signals, now)
		}

	case model.AdStateAdPlaying:
		if conf >= e.tuning.UnmuteThreshold {
			// 置信度回升，解除静音计时必须从头再来
			e.lowConfSince = time.Time{}
			return nil
		}
		if e.lowConfSince.IsZero() {
			e.lowConfSince = now
			return nil
		}
		if now.Sub(e.lowConfSince) >= e.tuning.UnmuteDelay {
			e.state = model.AdStateContent
			e.lowConfSince = time.Time{}
			e.log.Info("检测到广告结束", "tab", string(e.tab), "confidence", conf)
			return e.change(false, conf, ps, signals, now)
		}
	}
	return nil
}

// collect 汇总平台提取器信号与引擎级时序/协作方信号
func (e *Engine) collect(now time.Time, ps *sensor.PageState) []model.Signal {
	var signals []model.Signal
	if e.extractor != nil && ps != nil {
		signals = e.extractor.Extract(ps, e.tuning.Weights)
	}

	v := ps.ActiveVideo()
	if v != nil && v.Playing() && v.Duration >= adClipMinSeconds && v.Duration <= adClipMaxSeconds {
		signals = e.add(signals, model.SignalAdLengthVideo)
	}
	if e.stall.update(now, v, e.tuning.StallWindow) {
		signals = e.add(signals, model.SignalVideoFrozen)
	}
	if now.Before(e.flickerUntil) {
		signals = e.add(signals, model.SignalAudibleFlicker)
	}
	if e.networkActive || now.Before(e.networkUntil) {
		signals = e.add(signals, model.SignalNetworkAd)
	}
	return signals
}

func (e *Engine) add(signals []model.Signal, name string) []model.Signal {
	w := e.tuning.Weights.Weight(name)
	if w <= 0 {
		return signals
	}
	return append(signals, model.Signal{Name: name, Weight: w})
}

func (e *Engine) change(isAd bool, conf int, ps *sensor.PageState, signals []model.Signal, now time.Time) *model.AdStateChange {
	url := ""
	if ps != nil {
		url = ps.URL
	}
	return &model.AdStateChange{
		Tab:        e.tab,
		IsAd:       isAd,
		Confidence: conf,
		URL:        url,
		Platform:   e.platform(),
		Signals:    signals,
		Timestamp:  now.UnixMilli(),
	}
}

func (e *Engine) platform() model.Platform {
	if e.extractor == nil {
		return model.PlatformGeneric
	}
	return e.extractor.Platform()
}
