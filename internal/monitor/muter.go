package monitor

import (
	"context"
	"fmt"
	"time"

	"github.com/mafredri/cdp/protocol/runtime"

	"hushtab/pkg/model"
)

// SetMuted 对标签页内所有 <video> 元素设置静音位。调试协议没有
// 标签页级静音命令，媒体元素级静音是等价且可被页面侧探针回读的
// 实现方式。
func (m *Manager) SetMuted(tab model.TabID, muted bool) error {
	m.targetsMu.Lock()
	ts, ok := m.targets[tab]
	m.targetsMu.Unlock()
	if !ok {
		return fmt.Errorf("monitor: 目标 %s 未附加", string(tab))
	}

	ctx, cancel := context.WithTimeout(ts.ctx, 3*time.Second)
	defer cancel()
	expr := fmt.Sprintf(`document.querySelectorAll('video').forEach(v => { v.muted = %t; });`, muted)
	reply, err := ts.client.Runtime.Evaluate(ctx, runtime.NewEvaluateArgs(expr))
	if err != nil {
		return fmt.Errorf("monitor: 下发静音命令: %w", err)
	}
	if reply.ExceptionDetails != nil {
		return fmt.Errorf("monitor: 静音命令页面侧异常: %s", reply.ExceptionDetails.Text)
	}
	ts.mu.Lock()
	ts.muteCmdAt = time.Now()
	ts.mu.Unlock()
	m.log.Debug("静音命令已下发", "tab", string(tab), "muted", muted)
	return nil
}
