package session

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hushtab/internal/confidence"
	"hushtab/pkg/model"
	"hushtab/pkg/sensor"
)

type highExtractor struct{}

func (highExtractor) Platform() model.Platform { return model.PlatformYouTube }

func (highExtractor) Extract(*sensor.PageState, confidence.Weights) []model.Signal {
	return []model.Signal{{Name: "x", Weight: 90}}
}

func newEngine(t0 time.Time) *confidence.Engine {
	return confidence.New("tab-1", highExtractor{}, confidence.DefaultTuning(), nil, t0)
}

func TestRegistryLifecycle(t *testing.T) {
	r := NewRegistry(nil)
	t0 := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	s := r.Create(context.Background(), "tab-1", "https://www.youtube.com/watch?v=x", newEngine(t0))
	assert.Equal(t, model.PlatformYouTube, s.Platform)
	assert.NotEmpty(t, s.ID)

	got, ok := r.Get("tab-1")
	require.True(t, ok)
	assert.Same(t, s, got)
	assert.Len(t, r.List(), 1)

	r.Delete("tab-1")
	_, ok = r.Get("tab-1")
	assert.False(t, ok)
	assert.Error(t, s.Context().Err())
}

func TestRegistryCreateReplacesOld(t *testing.T) {
	r := NewRegistry(nil)
	t0 := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	old := r.Create(context.Background(), "tab-1", "https://www.youtube.com/a", newEngine(t0))
	neu := r.Create(context.Background(), "tab-1", "https://www.youtube.com/b", newEngine(t0))

	assert.Error(t, old.Context().Err())
	assert.NoError(t, neu.Context().Err())
	assert.Len(t, r.List(), 1)

	// 旧引擎已停止，不再产生翻转
	assert.Nil(t, old.Engine.Evaluate(t0.Add(time.Minute), &sensor.PageState{}))
}

func TestRegistryReset(t *testing.T) {
	r := NewRegistry(nil)
	t0 := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	s := r.Create(context.Background(), "tab-1", "https://www.youtube.com/a", newEngine(t0))

	// 先把引擎推进到广告状态
	change := s.Engine.Evaluate(t0.Add(6*time.Second), &sensor.PageState{})
	require.NotNil(t, change)
	require.True(t, change.IsAd)

	wasAd, ok := r.Reset("tab-1", "https://www.youtube.com/b", t0.Add(7*time.Second))
	require.True(t, ok)
	assert.True(t, wasAd)
	assert.Equal(t, "https://www.youtube.com/b", s.URL)
	assert.Equal(t, model.AdStateContent, s.Engine.State())

	_, ok = r.Reset("missing", "u", t0)
	assert.False(t, ok)
}
