package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDetectPlatform(t *testing.T) {
	tests := []struct {
		url  string
		want Platform
	}{
		{"https://www.youtube.com/watch?v=abc", PlatformYouTube},
		{"https://www.hulu.com/watch/xyz", PlatformHulu},
		{"https://www.espn.com/watch/player", PlatformESPN},
		{"https://www.nbc.com/live", PlatformNBC},
		{"https://www.twitch.tv/somebody", PlatformGeneric},
		{"", PlatformGeneric},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, DetectPlatform(tt.url), "url=%q", tt.url)
	}
}
