package sensor

import (
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNilSnapshotIsSignalAbsent(t *testing.T) {
	var ps *PageState
	assert.Nil(t, ps.FindVisible(func(NodeState) bool { return true }))
	assert.Nil(t, ps.AnyNode(func(NodeState) bool { return true }))
	assert.Nil(t, ps.ActiveVideo())
	assert.False(t, ps.TextMatch(regexp.MustCompile(`.`)))
}

func TestFindVisibleSkipsHidden(t *testing.T) {
	ps := &PageState{Nodes: []NodeState{
		{ID: "hidden", Classes: []string{"ad-overlay"}, Visible: false},
		{ID: "shown", Classes: []string{"ad-overlay"}, Visible: true},
	}}
	n := ps.FindVisible(func(n NodeState) bool { return n.ClassInfix("ad-overlay") })
	assert.NotNil(t, n)
	assert.Equal(t, "shown", n.ID)

	// AnyNode 不要求可见
	n = ps.AnyNode(func(n NodeState) bool { return n.ID == "hidden" })
	assert.NotNil(t, n)
}

func TestClassHelpers(t *testing.T) {
	n := NodeState{Classes: []string{"ytp-ad-player-overlay", "Visible"}}
	assert.True(t, n.HasClass("visible"))
	assert.False(t, n.HasClass("overlay"))
	assert.True(t, n.ClassInfix("AD-PLAYER"))
	assert.False(t, n.ClassInfix("banner"))
}

func TestSeekBlocked(t *testing.T) {
	assert.True(t, NodeState{Disabled: true}.SeekBlocked())
	assert.True(t, NodeState{AriaDisabled: true}.SeekBlocked())
	assert.True(t, NodeState{PointerEvents: "NONE"}.SeekBlocked())
	assert.True(t, NodeState{Classes: []string{"seekbar-disabled"}}.SeekBlocked())
	assert.False(t, NodeState{PointerEvents: "auto"}.SeekBlocked())
}

func TestActiveVideoPrefersPlaying(t *testing.T) {
	ps := &PageState{Videos: []VideoState{
		{CurrentTime: 10, Paused: true},
		{CurrentTime: 42, Paused: false},
	}}
	v := ps.ActiveVideo()
	assert.NotNil(t, v)
	assert.Equal(t, 42.0, v.CurrentTime)

	// 没有播放中的视频时退回第一个
	ps = &PageState{Videos: []VideoState{{CurrentTime: 10, Paused: true}}}
	assert.Equal(t, 10.0, ps.ActiveVideo().CurrentTime)
}

func TestPlaying(t *testing.T) {
	assert.True(t, VideoState{CurrentTime: 1}.Playing())
	assert.False(t, VideoState{CurrentTime: 1, Paused: true}.Playing())
	assert.False(t, VideoState{CurrentTime: 1, Ended: true}.Playing())
	assert.False(t, VideoState{CurrentTime: 0}.Playing())
}

func TestTextMatchOnlyVisibleShortText(t *testing.T) {
	re := regexp.MustCompile(`(?i)ad \d+ of \d+`)
	ps := &PageState{Nodes: []NodeState{
		{Text: "Ad 1 of 2", Visible: false},
	}}
	assert.False(t, ps.TextMatch(re))

	ps.Nodes[0].Visible = true
	assert.True(t, ps.TextMatch(re))
}
