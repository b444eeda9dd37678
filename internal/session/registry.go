package session

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"hushtab/internal/confidence"
	"hushtab/internal/logger"
	"hushtab/pkg/model"
)

// Session 单标签页的监控会话，引擎与定时器的生命周期载体。
// 会话对象显式创建、显式销毁，页内导航时复位而不重建。
type Session struct {
	ID       model.SessionID
	Tab      model.TabID
	Platform model.Platform
	URL      string
	Engine   *confidence.Engine

	ctx    context.Context
	cancel context.CancelFunc
}

// Context 返回会话生命周期上下文
func (s *Session) Context() context.Context { return s.ctx }

// Cancel 同步取消会话内所有挂起的定时器/观察者
func (s *Session) Cancel() {
	s.Engine.Stop()
	s.cancel()
}

// Registry 全局会话注册表，按标签页索引
type Registry struct {
	mu       sync.RWMutex
	sessions map[model.TabID]*Session
	log      logger.Logger
}

// NewRegistry 创建会话注册表
func NewRegistry(l logger.Logger) *Registry {
	if l == nil {
		l = logger.NewNop()
	}
	return &Registry{
		sessions: make(map[model.TabID]*Session),
		log:      l,
	}
}

// Create 创建并注册新会话。同一标签页重复创建时先销毁旧会话。
func (r *Registry) Create(parent context.Context, tab model.TabID, url string, eng *confidence.Engine) *Session {
	r.mu.Lock()
	defer r.mu.Unlock()

	if old, ok := r.sessions[tab]; ok {
		old.Cancel()
	}

	ctx, cancel := context.WithCancel(parent)
	s := &Session{
		ID:       model.SessionID(uuid.NewString()),
		Tab:      tab,
		Platform: model.DetectPlatform(url),
		URL:      url,
		Engine:   eng,
		ctx:      ctx,
		cancel:   cancel,
	}
	r.sessions[tab] = s
	r.log.Info("创建监控会话", "sessionID", string(s.ID), "tab", string(tab), "platform", string(s.Platform))
	return s
}

// Get 获取会话
func (r *Registry) Get(tab model.TabID) (*Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[tab]
	return s, ok
}

// Reset 页内导航复位：引擎回到初始状态，会话对象保留。
// 返回复位前是否处于广告状态。
func (r *Registry) Reset(tab model.TabID, url string, now time.Time) (wasAd bool, ok bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[tab]
	if !ok {
		return false, false
	}
	s.URL = url
	wasAd = s.Engine.ResetNavigation(now)
	r.log.Info("页内导航，会话复位", "sessionID", string(s.ID), "tab", string(tab), "url", url)
	return wasAd, true
}

// Delete 销毁会话并取消其全部挂起回调
func (r *Registry) Delete(tab model.TabID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.sessions[tab]; ok {
		s.Cancel()
		delete(r.sessions, tab)
		r.log.Info("销毁监控会话", "sessionID", string(s.ID), "tab", string(tab))
	}
}

// List 返回所有活动会话
func (r *Registry) List() []*Session {
	r.mu.RLock()
	defer r.mu.RUnlock()
	list := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		list = append(list, s)
	}
	return list
}
