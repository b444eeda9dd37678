package model

import (
	"strings"
	"time"
)

type SessionID string
type TabID string
type Platform string

// 支持的流媒体平台
const (
	PlatformYouTube Platform = "youtube"
	PlatformHulu    Platform = "hulu"
	PlatformESPN    Platform = "espn"
	PlatformNBC     Platform = "nbc"
	PlatformGeneric Platform = "generic"
)

// Signal 单次评估中成立的一条加权观测
type Signal struct {
	Name   string `json:"name"`
	Weight int    `json:"weight"`
}

// AdState 迟滞状态机的宏观状态
type AdState string

const (
	AdStateContent   AdState = "content"    // 正片播放中
	AdStateAdPlaying AdState = "ad_playing" // 广告播放中（已静音）
)

// AdStateChange 迟滞状态机每次翻转时发出的事件
type AdStateChange struct {
	Tab        TabID    `json:"tab"`
	IsAd       bool     `json:"isAd"`
	Confidence int      `json:"confidence"`
	URL        string   `json:"url"`
	Platform   Platform `json:"platform"`
	Signals    []Signal `json:"signals"`
	Timestamp  int64    `json:"timestamp"`
}

// NetPhase 网络突发检测器的阶段
type NetPhase string

const (
	PhasePending   NetPhase = "pending"   // 信号累积中，尚未静音
	PhaseConfirmed NetPhase = "confirmed" // 突发条件满足，静音中
	PhaseGrace     NetPhase = "grace"     // 信号静默，等待解除静音
)

// NetSignal 已分类的网络请求信号
type NetSignal struct {
	URL    string `json:"url"`
	Tier   int    `json:"tier"` // 1/2/3，0 表示与广告无关
	Weight int    `json:"weight"`
}

// Event 对外广播的统一事件，type 取值:
// ad_state/net_phase/muted/unmuted/attached/detached/diagnostic
type Event struct {
	Type      string         `json:"type"`
	Session   SessionID      `json:"session"`
	Tab       TabID          `json:"tab"`
	Platform  Platform       `json:"platform"`
	URL       string         `json:"url"`
	Phase     NetPhase       `json:"phase,omitempty"`
	AdState   *AdStateChange `json:"adState,omitempty"`
	Error     string         `json:"error,omitempty"`
	Timestamp int64          `json:"timestamp"`
}

// TargetInfo 浏览器标签页信息
type TargetInfo struct {
	ID       TabID    `json:"id"`
	Type     string   `json:"type"`
	URL      string   `json:"url"`
	Title    string   `json:"title"`
	Platform Platform `json:"platform"`
	Attached bool     `json:"attached"`
}

// SessionConfig 会话启动配置
type SessionConfig struct {
	DevToolsURL   string `json:"devToolsURL"`
	CheckInterval int    `json:"checkIntervalMS"`
	AutoMute      bool   `json:"autoMute"`
}

// SessionStatus 会话运行时状态快照
type SessionStatus struct {
	ID       SessionID `json:"id"`
	Tab      TabID     `json:"tab"`
	Platform Platform  `json:"platform"`
	URL      string    `json:"url"`
	State    AdState   `json:"state"`
	Muted    bool      `json:"muted"`
}

// SignalTrace 诊断用的信号明细，记录某次评估的完整权重拆解
type SignalTrace struct {
	Tab        TabID     `json:"tab"`
	Platform   Platform  `json:"platform"`
	Signals    []Signal  `json:"signals"`
	Confidence int       `json:"confidence"`
	State      AdState   `json:"state"`
	At         time.Time `json:"at"`
}

// DetectPlatform 根据页面 URL 识别流媒体平台
func DetectPlatform(url string) Platform {
	switch {
	case strings.Contains(url, "youtube.com"):
		return PlatformYouTube
	case strings.Contains(url, "hulu.com"):
		return PlatformHulu
	case strings.Contains(url, "espn.com"):
		return PlatformESPN
	case strings.Contains(url, "nbc.com"):
		return PlatformNBC
	default:
		return PlatformGeneric
	}
}
