package monitor

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/bep/debounce"
	"github.com/mafredri/cdp"
	"github.com/mafredri/cdp/devtool"
	"github.com/mafredri/cdp/rpcc"

	"hushtab/internal/audio"
	"hushtab/internal/confidence"
	"hushtab/internal/logger"
	"hushtab/internal/netburst"
	"hushtab/internal/session"
	"hushtab/pkg/model"
)

// TuningProvider 按平台取置信度引擎调优参数
type TuningProvider func(model.Platform) confidence.Tuning

// ExtractorProvider 按平台取信号提取器
type ExtractorProvider func(model.Platform) confidence.Extractor

// DiagSink 诊断采集挂钩，未开启诊断时为 nil
type DiagSink interface {
	RecordPlayerState(tab model.TabID, ts int64, currentTime, duration float64, paused bool)
	RecordNetworkRequest(tab model.TabID, ts int64, sig model.NetSignal)
}

// Manager 浏览器监控管理器。每个被附加的标签页持有一个
// targetSession：独立的调试连接、轮询循环与事件消费循环。
type Manager struct {
	devtoolsURL string
	registry    *session.Registry
	detector    *netburst.Detector
	classifier  netburst.Classifier
	controller  *audio.Controller
	tunings     TuningProvider
	extractors  ExtractorProvider
	events      chan model.Event
	log         logger.Logger

	rootCtx    context.Context
	rootCancel context.CancelFunc

	targetsMu sync.Mutex
	targets   map[model.TabID]*targetSession

	diagMu sync.RWMutex
	diag   DiagSink
}

// targetSession 单标签页的调试会话
type targetSession struct {
	id      model.TabID
	conn    *rpcc.Conn
	client  *cdp.Client
	ctx     context.Context
	cancel  context.CancelFunc
	sess    *session.Session
	flicker flickerTracker
	reeval  func(func()) // 事件触发的去抖重评估

	mu        sync.Mutex
	url       string
	muteCmdAt time.Time // 最近一次静音命令下发时刻
}

// Config 监控管理器构造参数
type Config struct {
	DevToolsURL string
	Registry    *session.Registry
	Detector    *netburst.Detector
	Controller  *audio.Controller
	Tunings     TuningProvider
	Extractors  ExtractorProvider
	Events      chan model.Event
	Logger      logger.Logger
}

// New 创建监控管理器
func New(cfg Config) *Manager {
	l := cfg.Logger
	if l == nil {
		l = logger.NewNop()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Manager{
		devtoolsURL: cfg.DevToolsURL,
		registry:    cfg.Registry,
		detector:    cfg.Detector,
		controller:  cfg.Controller,
		tunings:     cfg.Tunings,
		extractors:  cfg.Extractors,
		events:      cfg.Events,
		log:         l,
		rootCtx:     ctx,
		rootCancel:  cancel,
		targets:     make(map[model.TabID]*targetSession),
	}
}

// newEngine 按平台创建置信度引擎
func (m *Manager) newEngine(tab model.TabID, p model.Platform, now time.Time) *confidence.Engine {
	return confidence.New(tab, m.extractors(p), m.tunings(p), m.log, now)
}

// SetDiagSink 设置/清除诊断采集挂钩
func (m *Manager) SetDiagSink(s DiagSink) {
	m.diagMu.Lock()
	m.diag = s
	m.diagMu.Unlock()
}

func (m *Manager) diagSink() DiagSink {
	m.diagMu.RLock()
	defer m.diagMu.RUnlock()
	return m.diag
}

// ListTargets 列出浏览器当前的页面类标签页
func (m *Manager) ListTargets(ctx context.Context) ([]model.TargetInfo, error) {
	dt := devtool.New(m.devtoolsURL)
	targets, err := dt.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("monitor: 列举调试目标: %w", err)
	}
	m.targetsMu.Lock()
	defer m.targetsMu.Unlock()
	var out []model.TargetInfo
	for _, t := range targets {
		if t.Type != devtool.Page {
			continue
		}
		id := model.TabID(t.ID)
		_, attached := m.targets[id]
		out = append(out, model.TargetInfo{
			ID:       id,
			Type:     string(t.Type),
			URL:      t.URL,
			Title:    t.Title,
			Platform: model.DetectPlatform(t.URL),
			Attached: attached,
		})
	}
	return out, nil
}

// AttachTarget 附加标签页并启动监控：建立调试连接、创建会话引擎、
// 拉起轮询与事件消费循环
func (m *Manager) AttachTarget(tab model.TabID) error {
	dt := devtool.New(m.devtoolsURL)
	ctx, cancel := context.WithTimeout(m.rootCtx, 10*time.Second)
	targets, err := dt.List(ctx)
	cancel()
	if err != nil {
		return fmt.Errorf("monitor: 列举调试目标: %w", err)
	}
	var sel *devtool.Target
	for i := range targets {
		if model.TabID(targets[i].ID) == tab {
			sel = targets[i]
			break
		}
	}
	if sel == nil {
		return fmt.Errorf("monitor: 目标 %s 不存在", string(tab))
	}

	tctx, tcancel := context.WithCancel(m.rootCtx)
	conn, err := rpcc.DialContext(tctx, sel.WebSocketDebuggerURL)
	if err != nil {
		tcancel()
		return fmt.Errorf("monitor: 连接调试端点: %w", err)
	}
	client := cdp.NewClient(conn)

	if err := client.Network.Enable(tctx, nil); err != nil {
		conn.Close()
		tcancel()
		return fmt.Errorf("monitor: 启用网络域: %w", err)
	}
	if err := client.Page.Enable(tctx); err != nil {
		conn.Close()
		tcancel()
		return fmt.Errorf("monitor: 启用页面域: %w", err)
	}

	platform := model.DetectPlatform(sel.URL)
	eng := m.newEngine(tab, platform, time.Now())
	sess := m.registry.Create(tctx, tab, sel.URL, eng)

	ts := &targetSession{
		id:     tab,
		conn:   conn,
		client: client,
		ctx:    tctx,
		cancel: tcancel,
		sess:   sess,
		url:    sel.URL,
		reeval: debounce.New(150 * time.Millisecond),
	}

	m.targetsMu.Lock()
	if old, ok := m.targets[tab]; ok {
		m.closeTargetSession(old)
	}
	m.targets[tab] = ts
	m.targetsMu.Unlock()

	go m.pollLoop(ts, eng.Tuning().CheckInterval)
	go m.consumeNetwork(ts)
	go m.watchNavigation(ts)
	// DOM 变更通知把静音时延压到轮询间隔以下，装不上就退回纯轮询
	if err := m.installMutationObserver(ts); err != nil {
		m.log.Warn("DOM 变更观察器安装失败", "tab", string(tab), "error", err.Error())
	} else {
		go m.consumeMutations(ts)
	}

	m.log.Info("附加标签页", "tab", string(tab), "platform", string(platform), "url", sel.URL)
	m.sendEvent(model.Event{Type: "attached", Tab: tab, Platform: platform, URL: sel.URL})
	return nil
}

// DetachTarget 分离标签页：同步取消全部挂起回调并清理各个按
// 标签页索引的状态表
func (m *Manager) DetachTarget(tab model.TabID) error {
	m.targetsMu.Lock()
	ts, ok := m.targets[tab]
	if ok {
		m.closeTargetSession(ts)
		delete(m.targets, tab)
	}
	m.targetsMu.Unlock()
	if !ok {
		return fmt.Errorf("monitor: 目标 %s 未附加", string(tab))
	}
	m.detector.DropTab(tab)
	m.controller.DropTab(tab)
	m.sendEvent(model.Event{Type: "detached", Tab: tab})
	m.log.Info("分离标签页", "tab", string(tab))
	return nil
}

// OnNetPhase 接收网络突发检测器的二值标志并转发给页面侧引擎
func (m *Manager) OnNetPhase(tab model.TabID, active bool) {
	if sess, ok := m.registry.Get(tab); ok {
		sess.Engine.SetNetworkAdActive(active, time.Now())
	}
	phase := model.PhaseGrace
	if active {
		phase = model.PhaseConfirmed
	}
	m.sendEvent(model.Event{Type: "net_phase", Tab: tab, Phase: phase})
}

// Stop 停止全部监控
func (m *Manager) Stop() {
	m.targetsMu.Lock()
	for tab, ts := range m.targets {
		m.closeTargetSession(ts)
		delete(m.targets, tab)
	}
	m.targetsMu.Unlock()
	m.rootCancel()
}

// closeTargetSession 关闭调试会话，调用方持有 targetsMu
func (m *Manager) closeTargetSession(ts *targetSession) {
	m.registry.Delete(ts.id)
	ts.cancel()
	ts.conn.Close()
}

// handleStreamClosed 事件流中断的统一处理：挂掉的上下文不会恢复，
// 停止本标签页的监控避免反复徒劳重试
func (m *Manager) handleStreamClosed(ts *targetSession, err error) {
	select {
	case <-ts.ctx.Done():
		return // 主动分离，正常收尾
	default:
	}
	m.log.Warn("事件流中断，自动分离标签页", "tab", string(ts.id), "error", err.Error())
	m.targetsMu.Lock()
	if cur, ok := m.targets[ts.id]; ok && cur == ts {
		m.closeTargetSession(cur)
		delete(m.targets, ts.id)
	}
	m.targetsMu.Unlock()
	m.detector.DropTab(ts.id)
	m.controller.DropTab(ts.id)
	m.sendEvent(model.Event{Type: "detached", Tab: ts.id})
}

// sendEvent 安全发送事件到通道，自动补时间戳
func (m *Manager) sendEvent(evt model.Event) {
	if m.events == nil {
		return
	}
	evt.Timestamp = time.Now().UnixMilli()
	select {
	case m.events <- evt:
	default:
	}
}

// currentURL 读取会话当前 URL
func (ts *targetSession) currentURL() string {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	return ts.url
}

func (ts *targetSession) setURL(u string) {
	ts.mu.Lock()
	ts.url = u
	ts.mu.Unlock()
}
