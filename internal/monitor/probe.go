package monitor

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/mafredri/cdp/protocol/runtime"

	"hushtab/pkg/sensor"
)

// 探针只采集候选选择器命中的节点，上限封顶避免在超大页面上失控。
// 文本同样在页面侧截断到 100 字符以内。
const probeExpr = `(() => {
  const sels = [
    '#movie_player', '.ad-showing', '.ad-interrupting', '[class*="ytp-ad"]',
    '.ytp-progress-bar', '[class*="AdUnit"]', '#ad-container',
    '[class*="ad-" i]', '[id*="ad-" i]', '[class*="ProgressBar"]',
    '[class*="player-controls" i]', '[class*="progress-bar" i]',
    '[class*="back-to-live" i]', '[class*="innovid" i]',
    '[class*="truex" i]', '[class*="brightline" i]'
  ];
  const nodes = [];
  const seen = new Set();
  for (const s of sels) {
    let list = [];
    try { list = document.querySelectorAll(s); } catch (e) { continue; }
    for (const el of list) {
      if (seen.has(el) || nodes.length >= 64) continue;
      seen.add(el);
      let st, r;
      try { st = getComputedStyle(el); r = el.getBoundingClientRect(); } catch (e) { continue; }
      const text = (el.innerText || '').trim();
      nodes.push({
        id: el.id || '',
        tag: el.tagName.toLowerCase(),
        classes: Array.from(el.classList),
        visible: st.display !== 'none' && st.visibility !== 'hidden' &&
          parseFloat(st.opacity || '1') > 0.01 && r.width > 0 && r.height > 0,
        disabled: !!el.disabled,
        ariaDisabled: el.getAttribute('aria-disabled') === 'true',
        pointerEvents: st.pointerEvents || '',
        text: text.length < 100 ? text : ''
      });
    }
  }
  const videos = Array.from(document.querySelectorAll('video')).map(v => ({
    currentTime: v.currentTime || 0,
    duration: isFinite(v.duration) ? v.duration : 0,
    paused: !!v.paused,
    ended: !!v.ended,
    muted: !!v.muted
  }));
  return JSON.stringify({ url: location.href, title: document.title, videos: videos, nodes: nodes });
})()`

// probe 执行一次页面采样。任何一步失败都返回错误，调用方按
// "传感器读取失败"降级为空快照。
func (m *Manager) probe(ctx context.Context, ts *targetSession) (*sensor.PageState, error) {
	args := runtime.NewEvaluateArgs(probeExpr).SetReturnByValue(true)
	reply, err := ts.client.Runtime.Evaluate(ctx, args)
	if err != nil {
		return nil, fmt.Errorf("monitor: 执行探针: %w", err)
	}
	if reply.ExceptionDetails != nil {
		return nil, fmt.Errorf("monitor: 探针页面侧异常: %s", reply.ExceptionDetails.Text)
	}

	var raw string
	if err := json.Unmarshal(reply.Result.Value, &raw); err != nil {
		return nil, fmt.Errorf("monitor: 解码探针结果: %w", err)
	}
	ps := sensor.NewPageState()
	if err := json.Unmarshal([]byte(raw), ps); err != nil {
		return nil, fmt.Errorf("monitor: 解码页面快照: %w", err)
	}
	ps.At = time.Now()
	return ps, nil
}
