package api

import (
	"context"

	"hushtab/internal/logger"
	"hushtab/internal/service"
	"hushtab/pkg/model"
)

// Service 对外门面。上层（命令行、未来的 RPC 层）只接触这里的
// 方法与 pkg/model 的类型，内部装配细节不外漏。
type Service struct {
	inner *service.Service
}

// New 创建服务。configPath 为空时使用内置默认配置。
func New(configPath string, l logger.Logger) (*Service, error) {
	inner, err := service.New(service.Options{ConfigPath: configPath, Logger: l})
	if err != nil {
		return nil, err
	}
	return &Service{inner: inner}, nil
}

// Start 启动后台循环
func (s *Service) Start() { s.inner.Start() }

// Stop 停止服务并释放全部调试连接
func (s *Service) Stop() { s.inner.Stop() }

// ListTargets 列出浏览器当前的页面类标签页
func (s *Service) ListTargets(ctx context.Context) ([]model.TargetInfo, error) {
	return s.inner.ListTargets(ctx)
}

// Attach 附加标签页并开始广告检测
func (s *Service) Attach(tab model.TabID) error { return s.inner.Attach(tab) }

// Detach 分离标签页
func (s *Service) Detach(tab model.TabID) error { return s.inner.Detach(tab) }

// Sessions 列出监控中的会话状态
func (s *Service) Sessions() []model.SessionStatus { return s.inner.Sessions() }

// SetAutoMute 热更新自动静音总开关
func (s *Service) SetAutoMute(enabled bool) { s.inner.SetAutoMute(enabled) }

// SubscribeEvents 返回事件通道。通道不会关闭，消费方落后时事件
// 被丢弃。
func (s *Service) SubscribeEvents() <-chan model.Event { return s.inner.Events() }

// StartDiagnostic 开始诊断采集，返回会话 ID
func (s *Service) StartDiagnostic(tab model.TabID) (string, error) {
	return s.inner.StartDiagnostic(tab)
}

// StopDiagnostic 结束诊断采集，返回会话 ID 供导出
func (s *Service) StopDiagnostic(tab model.TabID) (string, error) {
	return s.inner.StopDiagnostic(tab)
}

// MarkDiagnostic 打人工标注
func (s *Service) MarkDiagnostic(tab model.TabID, event string) error {
	return s.inner.MarkDiagnostic(tab, event)
}

// ExportDiagnostic 按会话 ID 导出诊断 JSON
func (s *Service) ExportDiagnostic(id string) (string, error) {
	return s.inner.ExportDiagnostic(id)
}
