package netburst

import (
	"context"
	"sync"
	"time"

	"hushtab/internal/logger"
	"hushtab/pkg/model"
)

// Config 突发检测参数
type Config struct {
	Window          time.Duration // 滑动窗口长度
	WeightThreshold int           // 窗口内权重和阈值（约两次一级命中）
	CountThreshold  int           // 窗口内信号条数阈值（纯弱信号平台走量）
	SignalTTL       time.Duration // 无新信号多久后进入 Grace
	UnmuteGrace     time.Duration // Grace 持续多久后过期解除静音
	MaxAdDuration   time.Duration // safety-net：状态存活硬上限
	SweepInterval   time.Duration // 定时清扫周期
}

// DefaultConfig 默认突发检测参数
func DefaultConfig() Config {
	return Config{
		Window:          8 * time.Second,
		WeightThreshold: 20,
		CountThreshold:  5,
		SignalTTL:       10 * time.Second,
		UnmuteGrace:     5 * time.Second,
		MaxAdDuration:   5 * time.Minute,
		SweepInterval:   time.Second,
	}
}

// Commander 静音命令通道。检测器直接拥有静音决定权，但命令经由
// 同一串行路径下发，由对端确保去重并尊重用户覆盖。
type Commander interface {
	RequestMute(tab model.TabID, source string)
	RequestUnmute(tab model.TabID, source string)
	EndAdBreak(tab model.TabID)
}

type windowEntry struct {
	at     time.Time
	weight int
}

// tabState 单标签页的突发状态。recentSignals 只保留窗口内的条目，
// 逐出是惰性的，在每次写入和清扫时进行。
type tabState struct {
	signals     []windowEntry
	firstSignal time.Time
	lastSignal  time.Time
	phase       model.NetPhase
	graceStart  time.Time
	netActive   bool // 已向页面侧通知"网络广告进行中"
}

// Detector 后台进程里共享的网络突发检测器，按标签页隔离状态
type Detector struct {
	mu      sync.Mutex
	cfg     Config
	audio   Commander
	onPhase func(tab model.TabID, active bool)
	tabs    map[model.TabID]*tabState
	log     logger.Logger
}

// NewDetector 创建检测器。onPhase 把二值"网络广告进行中"标志转发
// 给页面侧引擎，可为 nil。
func NewDetector(cfg Config, audio Commander, onPhase func(model.TabID, bool), l logger.Logger) *Detector {
	if l == nil {
		l = logger.NewNop()
	}
	return &Detector{
		cfg:     cfg,
		audio:   audio,
		onPhase: onPhase,
		tabs:    make(map[model.TabID]*tabState),
		log:     l,
	}
}

// Phase 返回标签页当前阶段，不存在时返回空串
func (d *Detector) Phase(tab model.TabID) model.NetPhase {
	d.mu.Lock()
	defer d.mu.Unlock()
	if st, ok := d.tabs[tab]; ok {
		return st.phase
	}
	return ""
}

// Observe 录入一条已分类的网络信号并推进该标签页的阶段
func (d *Detector) Observe(now time.Time, tab model.TabID, sig model.NetSignal) {
	if sig.Tier == 0 {
		return
	}
	d.mu.Lock()
	defer d.mu.Unlock()

	st, ok := d.tabs[tab]
	if !ok {
		st = &tabState{phase: model.PhasePending, firstSignal: now}
		d.tabs[tab] = st
		d.log.Debug("网络广告状态建立", "tab", string(tab), "url", sig.URL)
	}

	if d.forceExpired(now, tab, st) {
		return
	}

	st.signals = append(st.signals, windowEntry{at: now, weight: sig.Weight})
	st.lastSignal = now
	d.evict(now, st)

	sum, count := d.windowStats(st)
	burst := sum >= d.cfg.WeightThreshold || count >= d.cfg.CountThreshold

	switch st.phase {
	case model.PhasePending:
		if burst {
			d.confirm(tab, st, sum, count)
		}
	case model.PhaseGrace:
		// 只有完整的新突发才能取消待定的解除静音，
		// 单条弱信号不能让 SDK 的后台杂音无限推迟解锁
		if burst {
			st.graceStart = time.Time{}
			d.confirm(tab, st, sum, count)
		}
	}
}

// Sweep 定时推进 TTL/Grace/硬上限。与 Observe 共用同一把锁，
// 同一标签页的阶段变化严格串行。
func (d *Detector) Sweep(now time.Time) {
	d.mu.Lock()
	defer d.mu.Unlock()

	for tab, st := range d.tabs {
		if d.forceExpired(now, tab, st) {
			continue
		}
		d.evict(now, st)

		switch st.phase {
		case model.PhaseConfirmed:
			if now.Sub(st.lastSignal) >= d.cfg.SignalTTL {
				st.phase = model.PhaseGrace
				st.graceStart = now
				// 确认期一结束页面侧信号就开始衰减，
				// 真正的解除静音仍由宽限期决定
				d.phaseActive(tab, st, false)
				d.log.Debug("广告信号静默，进入宽限期", "tab", string(tab))
			}
		case model.PhaseGrace:
			if now.Sub(st.graceStart) >= d.cfg.UnmuteGrace {
				d.expire(tab, st, "宽限期结束")
			}
		case model.PhasePending:
			// 从未确认过的状态安静回收，不发任何命令
			if now.Sub(st.lastSignal) >= d.cfg.SignalTTL {
				delete(d.tabs, tab)
			}
		}
	}
}

// DropTab 标签页导航或关闭时立刻丢弃状态，防止权重跨页面泄漏
func (d *Detector) DropTab(tab model.TabID) {
	d.mu.Lock()
	defer d.mu.Unlock()
	st, ok := d.tabs[tab]
	if !ok {
		return
	}
	if st.phase != model.PhasePending {
		d.phaseActive(tab, st, false)
		d.unmute(tab, "标签页导航")
	}
	delete(d.tabs, tab)
}

// Run 启动清扫循环，阻塞直到 ctx 取消
func (d *Detector) Run(ctx context.Context) {
	iv := d.cfg.SweepInterval
	if iv <= 0 {
		iv = time.Second
	}
	t := time.NewTicker(iv)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-t.C:
			d.Sweep(now)
		}
	}
}

// forceExpired 硬上限检查。无论阶段如何，状态存活超过 MaxAdDuration
// 一律强制过期，保证分类持续误判也不可能永久静音一个标签页。
func (d *Detector) forceExpired(now time.Time, tab model.TabID, st *tabState) bool {
	if now.Sub(st.firstSignal) < d.cfg.MaxAdDuration {
		return false
	}
	d.expire(tab, st, "超过广告时长硬上限")
	return true
}

func (d *Detector) confirm(tab model.TabID, st *tabState, sum, count int) {
	st.phase = model.PhaseConfirmed
	d.log.Info("网络突发确认为广告", "tab", string(tab), "weight", sum, "count", count)
	if d.audio != nil {
		d.audio.RequestMute(tab, "netburst")
	}
	d.phaseActive(tab, st, true)
}

func (d *Detector) expire(tab model.TabID, st *tabState, reason string) {
	wasActive := st.phase != model.PhasePending
	d.phaseActive(tab, st, false)
	delete(d.tabs, tab)
	if wasActive {
		d.log.Info("网络广告状态过期", "tab", string(tab), "reason", reason)
		d.unmute(tab, reason)
		if d.audio != nil {
			d.audio.EndAdBreak(tab)
		}
	}
}

// phaseActive 向页面侧引擎转发"网络广告进行中"标志，只在翻转时通知
func (d *Detector) phaseActive(tab model.TabID, st *tabState, active bool) {
	if st.netActive == active {
		return
	}
	st.netActive = active
	if d.onPhase != nil {
		d.onPhase(tab, active)
	}
}

func (d *Detector) unmute(tab model.TabID, reason string) {
	d.log.Debug("解除网络静音", "tab", string(tab), "reason", reason)
	if d.audio != nil {
		d.audio.RequestUnmute(tab, "netburst")
	}
}

// evict 惰性逐出窗口外的条目
func (d *Detector) evict(now time.Time, st *tabState) {
	cut := now.Add(-d.cfg.Window)
	i := 0
	for i < len(st.signals) && st.signals[i].at.Before(cut) {
		i++
	}
	if i > 0 {
		st.signals = st.signals[i:]
	}
}

func (d *Detector) windowStats(st *tabState) (sum, count int) {
	for _, e := range st.signals {
		sum += e.weight
	}
	return sum, len(st.signals)
}
