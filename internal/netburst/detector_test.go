package netburst

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hushtab/pkg/model"
)

// cmdRecorder 记录静音命令序列
type cmdRecorder struct {
	mu    sync.Mutex
	calls []string
}

func (c *cmdRecorder) RequestMute(tab model.TabID, source string) { c.record("mute") }

func (c *cmdRecorder) RequestUnmute(tab model.TabID, source string) { c.record("unmute") }

func (c *cmdRecorder) EndAdBreak(tab model.TabID) { c.record("end") }

func (c *cmdRecorder) record(call string) {
	c.mu.Lock()
	c.calls = append(c.calls, call)
	c.mu.Unlock()
}

func (c *cmdRecorder) sequence() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.calls...)
}

func tier1() model.NetSignal { return model.NetSignal{URL: "https://ad.doubleclick.net/x", Tier: 1, Weight: tier1Weight} }

func tier3() model.NetSignal { return model.NetSignal{URL: "https://cdn.example.com/ads/x", Tier: 3, Weight: tier3Weight} }

func newTestDetector() (*Detector, *cmdRecorder, time.Time) {
	rec := &cmdRecorder{}
	d := NewDetector(DefaultConfig(), rec, nil, nil)
	return d, rec, time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
}

const tab = model.TabID("tab-1")

func TestBurstByWeight(t *testing.T) {
	d, rec, t0 := newTestDetector()

	d.Observe(t0, tab, tier1())
	assert.Equal(t, model.PhasePending, d.Phase(tab))
	assert.Empty(t, rec.sequence())

	// 两条一级信号权重和 20，达到阈值
	d.Observe(t0.Add(time.Second), tab, tier1())
	assert.Equal(t, model.PhaseConfirmed, d.Phase(tab))
	assert.Equal(t, []string{"mute"}, rec.sequence())
}

func TestBurstByCount(t *testing.T) {
	d, rec, t0 := newTestDetector()

	// 四条三级信号：权重 4、条数 4，都不够
	for i := 0; i < 4; i++ {
		d.Observe(t0.Add(time.Duration(i)*time.Second), tab, tier3())
	}
	assert.Equal(t, model.PhasePending, d.Phase(tab))
	assert.Empty(t, rec.sequence())

	// 第五条走量确认
	d.Observe(t0.Add(4*time.Second), tab, tier3())
	assert.Equal(t, model.PhaseConfirmed, d.Phase(tab))
	assert.Equal(t, []string{"mute"}, rec.sequence())
}

func TestWindowSlideNoBurst(t *testing.T) {
	d, rec, t0 := newTestDetector()

	// 两条一级信号相隔超过窗口长度，第一条已被逐出
	d.Observe(t0, tab, tier1())
	d.Observe(t0.Add(9*time.Second), tab, tier1())
	assert.Equal(t, model.PhasePending, d.Phase(tab))
	assert.Empty(t, rec.sequence())
}

func TestConfirmedToGraceToExpire(t *testing.T) {
	d, rec, t0 := newTestDetector()
	d.Observe(t0, tab, tier1())
	d.Observe(t0, tab, tier1())
	require.Equal(t, model.PhaseConfirmed, d.Phase(tab))

	// 信号静默 TTL 后进入宽限期，静音保持
	d.Sweep(t0.Add(10 * time.Second))
	assert.Equal(t, model.PhaseGrace, d.Phase(tab))
	assert.Equal(t, []string{"mute"}, rec.sequence())

	// 宽限期结束解除静音并宣告广告段结束
	d.Sweep(t0.Add(15 * time.Second))
	assert.Equal(t, model.NetPhase(""), d.Phase(tab))
	assert.Equal(t, []string{"mute", "unmute", "end"}, rec.sequence())
}

func TestGraceWeakSignalImmunity(t *testing.T) {
	d, rec, t0 := newTestDetector()
	d.Observe(t0, tab, tier1())
	d.Observe(t0, tab, tier1())
	d.Sweep(t0.Add(10 * time.Second))
	require.Equal(t, model.PhaseGrace, d.Phase(tab))

	// 宽限期内零星弱信号不足以回到 Confirmed，也不能推迟解锁
	d.Observe(t0.Add(12*time.Second), tab, tier3())
	assert.Equal(t, model.PhaseGrace, d.Phase(tab))
	d.Sweep(t0.Add(15 * time.Second))
	assert.Equal(t, []string{"mute", "unmute", "end"}, rec.sequence())
}

func TestGraceFullBurstReconfirms(t *testing.T) {
	d, rec, t0 := newTestDetector()
	d.Observe(t0, tab, tier1())
	d.Observe(t0, tab, tier1())
	d.Sweep(t0.Add(10 * time.Second))
	require.Equal(t, model.PhaseGrace, d.Phase(tab))

	// 完整的新突发把宽限期拉回 Confirmed
	d.Observe(t0.Add(12*time.Second), tab, tier1())
	d.Observe(t0.Add(13*time.Second), tab, tier1())
	assert.Equal(t, model.PhaseConfirmed, d.Phase(tab))
	assert.Equal(t, []string{"mute", "mute"}, rec.sequence())

	// 宽限计时已清零，旧的到期时刻不再生效
	d.Sweep(t0.Add(15 * time.Second))
	assert.Equal(t, model.PhaseConfirmed, d.Phase(tab))
}

func TestForceExpiryAfterMaxAdDuration(t *testing.T) {
	d, rec, t0 := newTestDetector()
	d.Observe(t0, tab, tier1())
	d.Observe(t0, tab, tier1())
	require.Equal(t, model.PhaseConfirmed, d.Phase(tab))

	// 持续不断的信号也挡不住硬上限
	for i := 0; i < 60; i++ {
		d.Observe(t0.Add(time.Duration(i)*5*time.Second), tab, tier1())
	}
	d.Sweep(t0.Add(5 * time.Minute))
	assert.Equal(t, model.NetPhase(""), d.Phase(tab))
	seq := rec.sequence()
	require.NotEmpty(t, seq)
	assert.Equal(t, "end", seq[len(seq)-1])
}

func TestPendingExpiresSilently(t *testing.T) {
	d, rec, t0 := newTestDetector()
	d.Observe(t0, tab, tier3())

	d.Sweep(t0.Add(11 * time.Second))
	assert.Equal(t, model.NetPhase(""), d.Phase(tab))
	assert.Empty(t, rec.sequence())
}

func TestDropTab(t *testing.T) {
	d, rec, t0 := newTestDetector()

	// Pending 状态丢弃不发命令
	d.Observe(t0, tab, tier3())
	d.DropTab(tab)
	assert.Empty(t, rec.sequence())

	// Confirmed 状态丢弃要解除静音
	d.Observe(t0, tab, tier1())
	d.Observe(t0, tab, tier1())
	d.DropTab(tab)
	assert.Equal(t, []string{"mute", "unmute"}, rec.sequence())
}

func TestOnPhaseCallback(t *testing.T) {
	rec := &cmdRecorder{}
	var phases []bool
	d := NewDetector(DefaultConfig(), rec, func(_ model.TabID, active bool) { phases = append(phases, active) }, nil)
	t0 := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	d.Observe(t0, tab, tier1())
	d.Observe(t0, tab, tier1())
	assert.Equal(t, []bool{true}, phases)

	// 进入宽限期就立即通知页面侧信号开始衰减，不等真正解除静音
	d.Sweep(t0.Add(10 * time.Second))
	assert.Equal(t, []bool{true, false}, phases)

	// 宽限期到期只解除静音，标志不重复下发
	d.Sweep(t0.Add(15 * time.Second))
	assert.Equal(t, []bool{true, false}, phases)
}

func TestOnPhaseReconfirmInGrace(t *testing.T) {
	rec := &cmdRecorder{}
	var phases []bool
	d := NewDetector(DefaultConfig(), rec, func(_ model.TabID, active bool) { phases = append(phases, active) }, nil)
	t0 := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	d.Observe(t0, tab, tier1())
	d.Observe(t0, tab, tier1())
	d.Sweep(t0.Add(10 * time.Second))
	assert.Equal(t, model.PhaseGrace, d.Phase(tab))

	// 宽限期内的完整新突发重新拉起页面侧标志
	d.Observe(t0.Add(11*time.Second), tab, tier1())
	d.Observe(t0.Add(11*time.Second), tab, tier1())
	assert.Equal(t, model.PhaseConfirmed, d.Phase(tab))
	assert.Equal(t, []bool{true, false, true}, phases)
}
