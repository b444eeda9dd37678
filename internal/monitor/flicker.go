package monitor

import "time"

// flickerWindow 统计可听状态翻动的滑动窗口长度
const flickerWindow = 4 * time.Second

// muteCmdQuiet 静音命令下发后的观测静默期。命令本身会翻转可听
// 状态，这段时间内的翻转不作为信号，防止自反馈。
const muteCmdQuiet = 1500 * time.Millisecond

// flickerTracker 跟踪标签页可听状态的快速翻动。广告拼接点附近
// 播放器常在短时间内反复静音/恢复，翻动次数达到阈值就构成弱信号。
// 并发保护由持有方的互斥锁提供。
type flickerTracker struct {
	last    bool
	primed  bool
	changes []time.Time
}

// observe 记录一次可听状态观测，返回窗口内的翻动次数
func (f *flickerTracker) observe(now time.Time, audible bool) int {
	if !f.primed {
		f.primed = true
		f.last = audible
		return 0
	}
	if audible != f.last {
		f.last = audible
		f.changes = append(f.changes, now)
	}
	cutoff := now.Add(-flickerWindow)
	keep := f.changes[:0]
	for _, t := range f.changes {
		if t.After(cutoff) {
			keep = append(keep, t)
		}
	}
	f.changes = keep
	return len(f.changes)
}

// sync 对齐基线而不计入翻动，用于吸收扩展自己下发的静音命令
// 造成的可听翻转
func (f *flickerTracker) sync(audible bool) {
	f.primed = true
	f.last = audible
}

func (f *flickerTracker) reset() {
	f.primed = false
	f.changes = f.changes[:0]
}
