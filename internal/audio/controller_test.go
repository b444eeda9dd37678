package audio

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"

	"hushtab/pkg/model"
)

// fakeMuter 记录下发的静音命令
type fakeMuter struct {
	mu    sync.Mutex
	state map[model.TabID]bool
	calls int
	fail  bool
}

func newFakeMuter() *fakeMuter { return &fakeMuter{state: make(map[model.TabID]bool)} }

func (f *fakeMuter) SetMuted(tab model.TabID, muted bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.fail {
		return errors.New("连接已断开")
	}
	f.state[tab] = muted
	return nil
}

func (f *fakeMuter) muted(tab model.TabID) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state[tab]
}

const tab = model.TabID("tab-1")

func TestAutoMuteAndRelease(t *testing.T) {
	m := newFakeMuter()
	c := NewController(m, true, nil)

	c.RequestMute(tab, "confidence")
	assert.True(t, m.muted(tab))
	assert.True(t, c.AutoMuted(tab))

	c.RequestUnmute(tab, "confidence")
	assert.False(t, m.muted(tab))
	assert.False(t, c.AutoMuted(tab))
}

func TestMuteDedupe(t *testing.T) {
	m := newFakeMuter()
	c := NewController(m, true, nil)

	// 两个写入方（置信度引擎、突发检测器）重复请求只下发一次命令
	c.RequestMute(tab, "confidence")
	c.RequestMute(tab, "netburst")
	assert.Equal(t, 1, m.calls)
}

func TestUnmuteOnlyReleasesAutoMute(t *testing.T) {
	m := newFakeMuter()
	c := NewController(m, true, nil)

	// 用户自己静音的标签页，扩展无权恢复声音
	c.NoteMuteChange(tab, true)
	c.RequestUnmute(tab, "netburst")
	assert.Equal(t, 0, m.calls)
}

func TestUserOverridePersistsUntilAdBreakEnds(t *testing.T) {
	m := newFakeMuter()
	c := NewController(m, true, nil)

	c.RequestMute(tab, "confidence")
	assert.True(t, c.AutoMuted(tab))

	// 用户在广告期间手动解除静音
	c.NoteMuteChange(tab, false)
	assert.True(t, c.Overridden(tab))
	assert.False(t, c.AutoMuted(tab))

	// 覆盖生效期间拒绝一切自动静音，不再下发任何命令
	before := m.calls
	c.RequestMute(tab, "confidence")
	c.RequestMute(tab, "netburst")
	assert.Equal(t, before, m.calls)

	// 广告段完全结束后覆盖清除，下一次广告正常静音
	c.EndAdBreak(tab)
	assert.False(t, c.Overridden(tab))
	c.RequestMute(tab, "netburst")
	assert.True(t, m.muted(tab))
}

func TestDisableReleasesAllAutoMutes(t *testing.T) {
	m := newFakeMuter()
	c := NewController(m, true, nil)
	other := model.TabID("tab-2")

	c.RequestMute(tab, "confidence")
	c.RequestMute(other, "netburst")
	c.SetEnabled(false)
	assert.False(t, m.muted(tab))
	assert.False(t, m.muted(other))

	// 总开关关闭期间不接受静音请求
	c.RequestMute(tab, "confidence")
	assert.False(t, m.muted(tab))
}

func TestDeliveryFailureDegradesSilently(t *testing.T) {
	m := newFakeMuter()
	m.fail = true
	c := NewController(m, true, nil)

	c.RequestMute(tab, "confidence")
	assert.False(t, c.AutoMuted(tab))
	assert.False(t, c.Muted(tab))
}

func TestDropTab(t *testing.T) {
	m := newFakeMuter()
	c := NewController(m, true, nil)

	c.RequestMute(tab, "confidence")
	c.DropTab(tab)
	assert.False(t, c.AutoMuted(tab))
	assert.False(t, c.Muted(tab))
}
