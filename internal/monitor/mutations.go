package monitor

import (
	"context"
	"time"

	"github.com/mafredri/cdp/protocol/page"
	"github.com/mafredri/cdp/protocol/runtime"
)

// mutationBinding DOM 变更通知回调名，由页面内注入的观察器调用
const mutationBinding = "__hushtabMutated"

// mutationObserverExpr 在页面内安装 MutationObserver，监听播放器
// 广告标记常走的 class/style 翻动与节点增删。页面侧先聚合 200ms
// 再回调，广告切换瞬间的变更风暴不会刷爆调试通道。
const mutationObserverExpr = `(() => {
  if (window.__hushtabObserver) { return; }
  let pending = false;
  const report = () => {
    pending = false;
    if (window.` + mutationBinding + `) { window.` + mutationBinding + `('dom'); }
  };
  const obs = new MutationObserver(() => {
    if (pending) { return; }
    pending = true;
    setTimeout(report, 200);
  });
  const start = () => {
    if (!document.body) { return; }
    obs.observe(document.body, {
      subtree: true,
      childList: true,
      attributes: true,
      attributeFilter: ['class', 'style'],
    });
  };
  if (document.body) { start(); }
  else { document.addEventListener('DOMContentLoaded', start, { once: true }); }
  window.__hushtabObserver = obs;
})();`

// installMutationObserver 注册 DOM 变更回调并安装观察器。回调对
// 所有执行上下文生效，OnNewDocument 脚本覆盖后续导航，当前已打开
// 的文档再当场装一遍。
func (m *Manager) installMutationObserver(ts *targetSession) error {
	ctx, cancel := context.WithTimeout(ts.ctx, 5*time.Second)
	defer cancel()
	if err := ts.client.Runtime.Enable(ctx); err != nil {
		return err
	}
	if err := ts.client.Runtime.AddBinding(ctx, runtime.NewAddBindingArgs(mutationBinding)); err != nil {
		return err
	}
	if _, err := ts.client.Page.AddScriptToEvaluateOnNewDocument(ctx, page.NewAddScriptToEvaluateOnNewDocumentArgs(mutationObserverExpr)); err != nil {
		return err
	}
	if _, err := ts.client.Runtime.Evaluate(ctx, runtime.NewEvaluateArgs(mutationObserverExpr)); err != nil {
		return err
	}
	return nil
}

// consumeMutations 消费 DOM 变更通知，触发去抖的页面重评估。
// 与网络事件触发共用同一 evaluate 入口，重评估本身幂等。
func (m *Manager) consumeMutations(ts *targetSession) {
	stream, err := ts.client.Runtime.BindingCalled(ts.ctx)
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
		if ev.Name != mutationBinding {
			continue
		}
		ts.reeval(func() { m.evaluate(ts) })
	}
}
