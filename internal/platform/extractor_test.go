package platform

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hushtab/internal/confidence"
	"hushtab/pkg/model"
	"hushtab/pkg/sensor"
)

func names(signals []model.Signal) []string {
	out := make([]string, 0, len(signals))
	for _, s := range signals {
		out = append(out, s.Name)
	}
	return out
}

func node(classes ...string) sensor.NodeState {
	return sensor.NodeState{Classes: classes, Visible: true}
}

func TestYouTubeExtract(t *testing.T) {
	ex := New(model.PlatformYouTube)
	w := confidence.DefaultTuning().Weights

	ps := &sensor.PageState{Nodes: []sensor.NodeState{
		node("html5-video-player", "ad-showing"),
		node("ytp-ad-player-overlay"),
		node("ytp-skip-ad-button"),
	}}
	got := names(ex.Extract(ps, w))
	assert.Contains(t, got, model.SignalPlayerAdFlag)
	assert.Contains(t, got, model.SignalAdOverlay)
	assert.Contains(t, got, model.SignalAdText)

	// 正片期间的普通播放器不产生信号
	ps = &sensor.PageState{Nodes: []sensor.NodeState{
		node("html5-video-player", "playing-mode"),
		node("ytp-progress-bar"),
	}}
	assert.Empty(t, ex.Extract(ps, w))
}

func TestYouTubeSeekDisabled(t *testing.T) {
	ex := New(model.PlatformYouTube)
	w := confidence.DefaultTuning().Weights

	ps := &sensor.PageState{Nodes: []sensor.NodeState{
		{Classes: []string{"ytp-progress-bar"}, Visible: true, PointerEvents: "none"},
	}}
	assert.Contains(t, names(ex.Extract(ps, w)), model.SignalSeekDisabled)
}

func TestNBCHiddenControls(t *testing.T) {
	ex := New(model.PlatformNBC)
	w := confidence.DefaultTuning().Weights

	// 控件存在但被隐藏才是信号
	ps := &sensor.PageState{Nodes: []sensor.NodeState{
		{Classes: []string{"player-controls"}, Visible: false},
		{Classes: []string{"progress-bar"}, Visible: false},
		{Classes: []string{"back-to-live"}, Visible: false},
	}}
	got := names(ex.Extract(ps, w))
	assert.Contains(t, got, model.SignalControlsHidden)
	assert.Contains(t, got, model.SignalProgressHidden)
	assert.Contains(t, got, model.SignalBackToLiveGone)

	// 可见控件与完全缺失的控件都不是信号
	ps = &sensor.PageState{Nodes: []sensor.NodeState{
		{Classes: []string{"player-controls"}, Visible: true},
	}}
	assert.Empty(t, ex.Extract(ps, w))
	assert.Empty(t, ex.Extract(&sensor.PageState{}, w))
}

func TestGenericAdText(t *testing.T) {
	ex := New(model.PlatformGeneric)
	w := confidence.DefaultTuning().Weights

	for _, text := range []string{"Ad 1 of 3", "Ad · 2/2", "Commercial break", "30 seconds remaining", "Your video will resume shortly"} {
		ps := &sensor.PageState{Nodes: []sensor.NodeState{
			{Classes: []string{"overlay-text"}, Visible: true, Text: text},
		}}
		assert.Contains(t, names(ex.Extract(ps, w)), model.SignalAdText, "text=%q", text)
	}

	// 普通文案不命中
	ps := &sensor.PageState{Nodes: []sensor.NodeState{
		{Classes: []string{"overlay-text"}, Visible: true, Text: "Download now"},
	}}
	assert.NotContains(t, names(ex.Extract(ps, w)), model.SignalAdText)
}

func TestAdSDKContainer(t *testing.T) {
	w := confidence.DefaultTuning().Weights
	for _, p := range []model.Platform{model.PlatformYouTube, model.PlatformHulu, model.PlatformESPN, model.PlatformNBC, model.PlatformGeneric} {
		ex := New(p)
		ps := &sensor.PageState{Nodes: []sensor.NodeState{
			{ID: "truex-container", Visible: true},
		}}
		assert.Contains(t, names(ex.Extract(ps, w)), model.SignalAdSDKContainer, "platform=%s", p)
	}
}

func TestDefaultTuningPerPlatform(t *testing.T) {
	yt := DefaultTuning(model.PlatformYouTube)
	assert.Equal(t, 50, yt.MuteThreshold)
	assert.True(t, yt.Valid())

	espn := DefaultTuning(model.PlatformESPN)
	assert.Equal(t, 50, espn.Weights.Weight(model.SignalNetworkAd))

	nbc := DefaultTuning(model.PlatformNBC)
	assert.Equal(t, 45, nbc.Weights.Weight(model.SignalNetworkAd))

	gen := DefaultTuning(model.PlatformGeneric)
	assert.Equal(t, 60, gen.MuteThreshold)
}

// TestYouTubeAdLifecycle 把提取器接到真实引擎上走一遍完整的
// 广告开始/结束流程
func TestYouTubeAdLifecycle(t *testing.T) {
	t0 := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	tuning := DefaultTuning(model.PlatformYouTube)
	eng := confidence.New("tab-1", New(model.PlatformYouTube), tuning, nil, t0)
	now := t0.Add(tuning.StartupGrace + time.Second)

	// 单一 40 分信号不够 50 分阈值
	weak := &sensor.PageState{Nodes: []sensor.NodeState{node("ad-showing")}}
	assert.Nil(t, eng.Evaluate(now, weak))

	// 广告浮层出现，40+30=70 越过阈值
	strong := &sensor.PageState{
		URL:   "https://www.youtube.com/watch?v=x",
		Nodes: []sensor.NodeState{node("ad-showing"), node("ytp-ad-player-overlay")},
	}
	change := eng.Evaluate(now.Add(500*time.Millisecond), strong)
	require.NotNil(t, change)
	assert.True(t, change.IsAd)
	assert.Equal(t, 70, change.Confidence)
	assert.Equal(t, model.PlatformYouTube, change.Platform)

	// 广告标记消失后要低置信度持续满 UnmuteDelay 才恢复
	clean := &sensor.PageState{URL: "https://www.youtube.com/watch?v=x"}
	t1 := now.Add(time.Second)
	assert.Nil(t, eng.Evaluate(t1, clean))
	assert.Nil(t, eng.Evaluate(t1.Add(time.Second), clean))
	change = eng.Evaluate(t1.Add(2*time.Second), clean)
	require.NotNil(t, change)
	assert.False(t, change.IsAd)
}
