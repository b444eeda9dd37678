package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"hushtab/internal/audio"
	"hushtab/internal/config"
	"hushtab/internal/confidence"
	"hushtab/internal/diagnostic"
	"hushtab/internal/logger"
	"hushtab/internal/monitor"
	"hushtab/internal/netburst"
	"hushtab/internal/platform"
	"hushtab/internal/session"
	"hushtab/pkg/model"
)

// Options 服务构造参数。ConfigPath 为空时使用内置默认配置，
// 且不启用配置热重载。
type Options struct {
	ConfigPath string
	Logger     logger.Logger
}

// Service 组装全部组件：配置监视、诊断库、会话注册表、音频控制器、
// 网络突发检测器与浏览器监控管理器。对外只暴露操作入口，组件之间
// 的回调接线都在这里完成。
type Service struct {
	log        logger.Logger
	watcher    *config.Watcher
	static     *config.Config // 无配置文件时的固定配置
	store      *diagnostic.Store
	registry   *session.Registry
	controller *audio.Controller
	detector   *netburst.Detector
	manager    *monitor.Manager
	events     chan model.Event

	ctx    context.Context
	cancel context.CancelFunc

	diagMu sync.Mutex
	diag   map[model.TabID]string // 标签页 -> 进行中的诊断会话
}

// New 创建并接线服务，不启动任何循环
func New(opts Options) (*Service, error) {
	s := &Service{
		events: make(chan model.Event, 256),
		diag:   make(map[model.TabID]string),
	}
	s.ctx, s.cancel = context.WithCancel(context.Background())

	var cfg *config.Config
	if opts.ConfigPath != "" {
		w, err := config.NewWatcher(opts.ConfigPath, s.onConfigChange, opts.Logger)
		if err != nil {
			return nil, err
		}
		s.watcher = w
		cfg = w.Current()
	} else {
		s.static = config.NewConfig()
		cfg = s.static
	}

	l := opts.Logger
	if l == nil {
		l = logger.New(logger.Options{
			Level:   cfg.Log.Level,
			Writers: cfg.Log.Writer,
			File:    cfg.Log.File,
		})
	}
	s.log = l

	store, err := diagnostic.Open(cfg.Sqlite.Dsn, cfg.Sqlite.Prefix, l)
	if err != nil {
		s.close()
		return nil, err
	}
	s.store = store

	s.registry = session.NewRegistry(l)
	s.controller = audio.NewController(nil, cfg.AutoMute, l)
	s.detector = netburst.NewDetector(cfg.BurstConfig(), s.controller, s.onNetPhase, l)
	s.manager = monitor.New(monitor.Config{
		DevToolsURL: cfg.DevToolsURL,
		Registry:    s.registry,
		Detector:    s.detector,
		Controller:  s.controller,
		Tunings:     s.tuningFor,
		Extractors:  platform.New,
		Events:      s.events,
		Logger:      l,
	})
	s.controller.SetMuter(s.manager)
	s.manager.SetDiagSink(s)
	return s, nil
}

// Start 启动后台循环（突发检测器的窗口清扫）
func (s *Service) Start() {
	go s.detector.Run(s.ctx)
	s.log.Info("服务已启动")
}

// Stop 停止服务
func (s *Service) Stop() {
	s.manager.Stop()
	s.close()
	s.log.Info("服务已停止")
}

func (s *Service) close() {
	s.cancel()
	if s.watcher != nil {
		s.watcher.Stop()
	}
}

// Events 返回事件通道，消费方落后时事件被丢弃而不是阻塞检测
func (s *Service) Events() <-chan model.Event { return s.events }

// ListTargets 列出可附加的标签页
func (s *Service) ListTargets(ctx context.Context) ([]model.TargetInfo, error) {
	return s.manager.ListTargets(ctx)
}

// Attach 附加标签页
func (s *Service) Attach(tab model.TabID) error { return s.manager.AttachTarget(tab) }

// Detach 分离标签页
func (s *Service) Detach(tab model.TabID) error { return s.manager.DetachTarget(tab) }

// Sessions 列出当前监控中的会话
func (s *Service) Sessions() []model.SessionStatus {
	var out []model.SessionStatus
	for _, sess := range s.registry.List() {
		out = append(out, model.SessionStatus{
			ID:       sess.ID,
			Tab:      sess.Tab,
			Platform: sess.Platform,
			URL:      sess.URL,
			State:    sess.Engine.State(),
			Muted:    s.controller.Muted(sess.Tab),
		})
	}
	return out
}

// SetAutoMute 热更新自动静音总开关
func (s *Service) SetAutoMute(enabled bool) {
	s.controller.SetEnabled(enabled)
	s.log.Info("自动静音开关更新", "enabled", enabled)
}

// StartDiagnostic 对标签页开始诊断采集：建库内会话并挂上信号明细
// 回调。同一标签页重复开始返回进行中的会话。
func (s *Service) StartDiagnostic(tab model.TabID) (string, error) {
	sess, ok := s.registry.Get(tab)
	if !ok {
		return "", fmt.Errorf("service: 标签页 %s 未在监控中", string(tab))
	}
	s.diagMu.Lock()
	defer s.diagMu.Unlock()
	if id, running := s.diag[tab]; running {
		return id, nil
	}
	id, err := s.store.StartSession(tab, sess.Platform, sess.URL)
	if err != nil {
		return "", err
	}
	s.diag[tab] = id
	sess.Engine.SetTracer(func(tr model.SignalTrace) { s.store.RecordTrace(id, tr) })
	return id, nil
}

// StopDiagnostic 结束标签页的诊断采集，返回会话 ID 供导出
func (s *Service) StopDiagnostic(tab model.TabID) (string, error) {
	s.diagMu.Lock()
	id, ok := s.diag[tab]
	delete(s.diag, tab)
	s.diagMu.Unlock()
	if !ok {
		return "", fmt.Errorf("service: 标签页 %s 没有进行中的诊断采集", string(tab))
	}
	if sess, found := s.registry.Get(tab); found {
		sess.Engine.SetTracer(nil)
	}
	if err := s.store.EndSession(id); err != nil {
		return id, err
	}
	return id, nil
}

// MarkDiagnostic 在诊断时间线上打一个人工标注（如 ad-start/ad-end）
func (s *Service) MarkDiagnostic(tab model.TabID, event string) error {
	s.diagMu.Lock()
	id, ok := s.diag[tab]
	s.diagMu.Unlock()
	if !ok {
		return fmt.Errorf("service: 标签页 %s 没有进行中的诊断采集", string(tab))
	}
	return s.store.Mark(id, time.Now().UnixMilli(), event)
}

// ExportDiagnostic 按会话 ID 导出诊断 JSON
func (s *Service) ExportDiagnostic(id string) (string, error) {
	return s.store.Export(id)
}

// RecordPlayerState 实现监控侧诊断挂钩，未采集的标签页直接丢弃
func (s *Service) RecordPlayerState(tab model.TabID, ts int64, currentTime, duration float64, paused bool) {
	s.diagMu.Lock()
	id, ok := s.diag[tab]
	s.diagMu.Unlock()
	if !ok {
		return
	}
	s.store.RecordPlayerState(id, ts, diagnostic.PlayerStateRow{
		CurrentTime: currentTime,
		Duration:    duration,
		Paused:      paused,
	})
}

// RecordNetworkRequest 实现监控侧诊断挂钩
func (s *Service) RecordNetworkRequest(tab model.TabID, ts int64, sig model.NetSignal) {
	s.diagMu.Lock()
	id, ok := s.diag[tab]
	s.diagMu.Unlock()
	if !ok {
		return
	}
	s.store.RecordNetworkRequest(id, ts, sig)
}

// onNetPhase 突发检测器阶段翻转 -> 页面侧引擎协作信号
func (s *Service) onNetPhase(tab model.TabID, active bool) {
	s.manager.OnNetPhase(tab, active)
}

// onConfigChange 配置热重载：更新静音开关并把新调优参数推给
// 所有在监控中的引擎。突发检测器参数只在启动时生效。
func (s *Service) onConfigChange(_, cfg *config.Config) {
	s.controller.SetEnabled(cfg.AutoMute)
	for _, sess := range s.registry.List() {
		sess.Engine.SetTuning(cfg.TuningFor(sess.Platform))
	}
	s.log.Info("配置已重载", "autoMute", cfg.AutoMute)
}

// tuningFor 读取当前配置下的平台调优参数
func (s *Service) tuningFor(p model.Platform) confidence.Tuning {
	if s.watcher != nil {
		return s.watcher.Current().TuningFor(p)
	}
	return s.static.TuningFor(p)
}
