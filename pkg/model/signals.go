package model

// 信号名称常量。配置中的权重表、诊断导出里的信号明细均以这些标签为键。
//
// 来源分三类：提取器基于 DOM 快照判定的信号（播放器广告标记、覆盖层、
// 文本提示、拖动禁用、控件隐藏、广告 SDK 容器）、引擎自身判定的时序
// 异常信号（广告时长、画面冻结）、以及协作方异步注入的衰减信号
// （可听抖动、网络广告）。
const (
	SignalPlayerAdFlag   = "player-ad-showing"
	SignalAdLengthVideo  = "ad-length-video"
	SignalAdOverlay      = "ad-overlay-visible"
	SignalAdText         = "ad-text-indicator"
	SignalSeekDisabled   = "seek-disabled"
	SignalVideoFrozen    = "video-time-frozen"
	SignalAudibleFlicker = "audible-flicker"
	SignalNetworkAd      = "network-ad-detected"
	SignalAdSDKContainer = "ad-sdk-container"
	SignalControlsHidden = "player-controls-hidden"
	SignalProgressHidden = "progress-bar-hidden"
	SignalBackToLiveGone = "back-to-live-hidden"
)
