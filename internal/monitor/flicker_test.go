package monitor

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFlickerTracker(t *testing.T) {
	var f flickerTracker
	t0 := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	// 首次观测只建立基线
	assert.Equal(t, 0, f.observe(t0, true))
	// 稳定状态不计翻动
	assert.Equal(t, 0, f.observe(t0.Add(500*time.Millisecond), true))

	assert.Equal(t, 1, f.observe(t0.Add(time.Second), false))
	assert.Equal(t, 2, f.observe(t0.Add(1500*time.Millisecond), true))
	assert.Equal(t, 3, f.observe(t0.Add(2*time.Second), false))
}

func TestFlickerWindowExpiry(t *testing.T) {
	var f flickerTracker
	t0 := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	f.observe(t0, true)
	f.observe(t0.Add(time.Second), false)
	f.observe(t0.Add(2*time.Second), true)

	// 窗口滑过去之后旧翻动被遗忘
	assert.Equal(t, 0, f.observe(t0.Add(10*time.Second), true))
}

func TestFlickerSyncAbsorbsCommandFlip(t *testing.T) {
	var f flickerTracker
	t0 := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	f.observe(t0, true)
	assert.Equal(t, 1, f.observe(t0.Add(time.Second), false))

	// 静音命令自己造成的翻转只对齐基线，不计入翻动
	f.sync(true)
	assert.Equal(t, 1, f.observe(t0.Add(2*time.Second), true))

	// 基线对齐后，真实翻转照常计数
	assert.Equal(t, 2, f.observe(t0.Add(3*time.Second), false))
}

func TestFlickerReset(t *testing.T) {
	var f flickerTracker
	t0 := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	f.observe(t0, true)
	f.observe(t0.Add(time.Second), false)
	f.reset()

	// 复位后重新建立基线，不把导航前后的状态差当成翻动
	assert.Equal(t, 0, f.observe(t0.Add(2*time.Second), true))
}
