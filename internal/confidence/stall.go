package confidence

import (
	"time"

	"hushtab/pkg/sensor"
)

// stallTracker 检测"播放中但画面时间不前进"的异常。
// SSAI 平台（服务端拼接广告）在客户端没有任何广告标记，
// 冻结的缓冲区往往是唯一的 DOM 外线索。
type stallTracker struct {
	lastTime  float64
	lastCheck time.Time
	frozen    bool
}

// update 推进一次观察。距离上次采样不足最小窗口时沿用旧判定，
// 跨过窗口后比较 currentTime 实际前进量与真实时间流逝：
// 前进速率低于真实速率的 20%（即 80% 容差带）视为冻结。
func (s *stallTracker) update(now time.Time, v *sensor.VideoState, window time.Duration) bool {
	if v == nil || !v.Playing() {
		s.reset()
		return false
	}
	if window < time.Second {
		window = time.Second
	}
	if s.lastCheck.IsZero() {
		s.lastTime = v.CurrentTime
		s.lastCheck = now
		return false
	}
	elapsed := now.Sub(s.lastCheck)
	if elapsed < window {
		return s.frozen
	}
	advanced := v.CurrentTime - s.lastTime
	s.frozen = advanced < 0.2*elapsed.Seconds()
	s.lastTime = v.CurrentTime
	s.lastCheck = now
	return s.frozen
}

// reset 清空跟踪状态。页内导航后必须调用，否则上一个视频的
// 采样会污染新视频的冻结判定。
func (s *stallTracker) reset() {
	s.lastTime = 0
	s.lastCheck = time.Time{}
	s.frozen = false
}
