package monitor

import (
	"context"
	"time"

	"hushtab/pkg/model"
)

// pollLoop 按固定节奏驱动页面采样与置信度评估。事件触发的去抖
// 重评估走同一个 evaluate 入口，两条路径天然互斥于引擎内部。
func (m *Manager) pollLoop(ts *targetSession, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ts.ctx.Done():
			return
		case <-ticker.C:
			m.evaluate(ts)
		}
	}
}

// evaluate 执行一轮采样-评估-执行。探针失败时以空快照评估，
// 语义上等价于"全部页面信号缺失"，不会把旧状态卡死。
func (m *Manager) evaluate(ts *targetSession) {
	ctx, cancel := context.WithTimeout(ts.ctx, 3*time.Second)
	ps, err := m.probe(ctx, ts)
	cancel()
	if err != nil {
		select {
		case <-ts.ctx.Done():
			return
		default:
		}
		m.log.Debug("探针采样失败", "tab", string(ts.id), "error", err.Error())
		ps = nil
	}

	now := time.Now()
	sess, ok := m.registry.Get(ts.id)
	if !ok {
		return
	}

	if ps != nil && ps.URL != "" {
		ts.setURL(ps.URL)
	}
	if v := ps.ActiveVideo(); v != nil {
		// 可听状态的快速翻动本身就是一个弱信号。刚下发过静音命令
		// 时只对齐基线，扩展自己造成的翻转不计数
		ts.mu.Lock()
		n := 0
		if !ts.muteCmdAt.IsZero() && now.Sub(ts.muteCmdAt) < muteCmdQuiet {
			ts.flicker.sync(v.Playing() && !v.Muted)
		} else {
			n = ts.flicker.observe(now, v.Playing() && !v.Muted)
		}
		ts.mu.Unlock()
		if n >= 2 {
			sess.Engine.NoteAudibleFlicker(n, now)
		}
		// 页面侧静音状态回流，用户手动恢复声音在这里被识别
		m.controller.NoteMuteChange(ts.id, v.Muted)
		if sink := m.diagSink(); sink != nil {
			sink.RecordPlayerState(ts.id, now.UnixMilli(), v.CurrentTime, v.Duration, v.Paused)
		}
	}

	change := sess.Engine.Evaluate(now, ps)
	if change == nil {
		return
	}
	if change.IsAd {
		m.controller.RequestMute(ts.id, "confidence")
	} else {
		m.controller.RequestUnmute(ts.id, "confidence")
	}
	m.sendEvent(model.Event{
		Type:     "ad_state",
		Tab:      ts.id,
		Platform: change.Platform,
		URL:      change.URL,
		AdState:  change,
	})
}

// consumeNetwork 消费目标的请求事件流，按请求特征喂给突发检测器。
// 命中广告特征的请求同时触发一次去抖的页面重评估，DOM 往往跟着变。
func (m *Manager) consumeNetwork(ts *targetSession) {
	stream, err := ts.client.Network.RequestWillBeSent(ts.ctx)
	if err != nil {
		m.handleStreamClosed(ts, err)
		return
	}
	defer stream.Close()

	for {
		ev, err := stream.Recv()
		if err != nil {
			m.handleStreamClosed(ts, err)
			return
		}
		body := ""
		if ev.Request.PostData != nil {
			body = *ev.Request.PostData
		}
		sig := m.classifier.Classify(ev.Request.URL, body)
		if sig.Tier == 0 {
			continue
		}
		now := time.Now()
		m.detector.Observe(now, ts.id, sig)
		if sink := m.diagSink(); sink != nil {
			sink.RecordNetworkRequest(ts.id, now.UnixMilli(), sig)
		}
		ts.reeval(func() { m.evaluate(ts) })
	}
}

// watchNavigation 监听主框架导航与单页应用内路由切换，两者都按
// "换了一个新页面"处理。子框架导航（广告 iframe 加载）被忽略。
func (m *Manager) watchNavigation(ts *targetSession) {
	navStream, err := ts.client.Page.FrameNavigated(ts.ctx)
	if err != nil {
		m.handleStreamClosed(ts, err)
		return
	}
	defer navStream.Close()
	spaStream, err := ts.client.Page.NavigatedWithinDocument(ts.ctx)
	if err != nil {
		m.handleStreamClosed(ts, err)
		return
	}
	defer spaStream.Close()

	fctx, fcancel := context.WithTimeout(ts.ctx, 5*time.Second)
	ft, err := ts.client.Page.GetFrameTree(fctx)
	fcancel()
	if err != nil {
		m.handleStreamClosed(ts, err)
		return
	}
	mainFrame := ft.FrameTree.Frame.ID

	go func() {
		for {
			ev, err := spaStream.Recv()
			if err != nil {
				m.handleStreamClosed(ts, err)
				return
			}
			if ev.FrameID != mainFrame {
				continue
			}
			m.handleNavigation(ts, ev.URL)
		}
	}()

	for {
		ev, err := navStream.Recv()
		if err != nil {
			m.handleStreamClosed(ts, err)
			return
		}
		if ev.Frame.ID != mainFrame {
			continue
		}
		m.handleNavigation(ts, ev.Frame.URL)
	}
}

// handleNavigation 导航即推翻一切已有结论：引擎复位、突发窗口清空、
// 自动静音解除。同平台导航复用引擎，跨平台导航重建引擎换提取器。
func (m *Manager) handleNavigation(ts *targetSession, url string) {
	now := time.Now()
	ts.mu.Lock()
	ts.url = url
	ts.flicker.reset()
	ts.mu.Unlock()

	platform := model.DetectPlatform(url)
	wasAd := false
	if sess, ok := m.registry.Get(ts.id); ok && sess.Platform == platform {
		wasAd, _ = m.registry.Reset(ts.id, url, now)
	} else {
		if ok {
			wasAd = sess.Engine.State() == model.AdStateAdPlaying
		}
		m.registry.Create(ts.ctx, ts.id, url, m.newEngine(ts.id, platform, now))
	}

	m.detector.DropTab(ts.id)
	if wasAd {
		m.controller.RequestUnmute(ts.id, "navigation")
	}
	m.controller.EndAdBreak(ts.id)

	m.log.Info("标签页导航，会话复位", "tab", string(ts.id), "platform", string(platform), "url", url)
	m.sendEvent(model.Event{Type: "navigated", Tab: ts.id, Platform: platform, URL: url})
}
