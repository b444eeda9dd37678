package audio

import (
	"sync"

	"hushtab/internal/logger"
	"hushtab/pkg/model"
)

// Muter 实际执行标签页静音的协作方（浏览器侧）
type Muter interface {
	SetMuted(tab model.TabID, muted bool) error
}

// Controller 标签页音频控制器。
//
// 置信度引擎与网络突发检测器是两个独立的写入方，二者都只通过
// 这里的串行命令路径改静音状态。控制器区分"扩展自动静音"
// （可由扩展解除）与"用户在本次广告期间的手动干预"（绝不静默
// 撤销）：处于用户覆盖集合的标签页在广告状态完全过期前不会被
// 再次自动静音。
type Controller struct {
	mu      sync.Mutex
	muter   Muter
	log     logger.Logger
	enabled bool

	muted     map[model.TabID]bool     // 观察到的当前静音状态
	autoMuted map[model.TabID]struct{} // 由扩展静音、允许扩展解除
	override  map[model.TabID]struct{} // 用户在广告期间手动干预过
}

// NewController 创建控制器，enabled 为自动静音总开关的初始值
func NewController(m Muter, enabled bool, l logger.Logger) *Controller {
	if l == nil {
		l = logger.NewNop()
	}
	return &Controller{
		muter:     m,
		log:       l,
		enabled:   enabled,
		muted:     make(map[model.TabID]bool),
		autoMuted: make(map[model.TabID]struct{}),
		override:  make(map[model.TabID]struct{}),
	}
}

// SetMuter 延迟注入投递通道。控制器与浏览器监控互相持有，
// 只能在监控就绪后补上这一环。
func (c *Controller) SetMuter(m Muter) {
	c.mu.Lock()
	c.muter = m
	c.mu.Unlock()
}

// SetEnabled 热更新自动静音开关。关闭时解除所有扩展施加的静音。
func (c *Controller) SetEnabled(enabled bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.enabled == enabled {
		return
	}
	c.enabled = enabled
	if enabled {
		return
	}
	for tab := range c.autoMuted {
		c.apply(tab, false)
		delete(c.autoMuted, tab)
	}
}

// RequestMute 请求静音。用户覆盖是一票否决；已静音的标签页不再
// 重复下发命令。
func (c *Controller) RequestMute(tab model.TabID, source string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.enabled {
		return
	}
	if _, ok := c.override[tab]; ok {
		c.log.Debug("用户覆盖生效，拒绝自动静音", "tab", string(tab), "source", source)
		return
	}
	if c.muted[tab] {
		return
	}
	if c.apply(tab, true) {
		c.autoMuted[tab] = struct{}{}
		c.log.Info("自动静音", "tab", string(tab), "source", source)
	}
}

// RequestUnmute 请求解除静音。只解除扩展自己施加的静音，
// 用户手动静音的标签页保持原样。
func (c *Controller) RequestUnmute(tab model.TabID, source string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.autoMuted[tab]; !ok {
		return
	}
	delete(c.autoMuted, tab)
	if !c.muted[tab] {
		return
	}
	if c.apply(tab, false) {
		c.log.Info("解除自动静音", "tab", string(tab), "source", source)
	}
}

// EndAdBreak 广告状态完全过期，清空本次广告期间的用户覆盖记录，
// 下一次广告从干净状态开始
func (c *Controller) EndAdBreak(tab model.TabID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.override, tab)
	delete(c.autoMuted, tab)
}

// NoteMuteChange 录入浏览器侧观察到的静音状态变化。与扩展下发的
// 命令不一致的变化视为用户手动操作：广告期间的手动解除静音进入
// 覆盖集合。
func (c *Controller) NoteMuteChange(tab model.TabID, muted bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	prev := c.muted[tab]
	c.muted[tab] = muted
	if prev == muted {
		return
	}
	if _, auto := c.autoMuted[tab]; auto && !muted {
		delete(c.autoMuted, tab)
		c.override[tab] = struct{}{}
		c.log.Info("用户在广告期间手动解除静音，记录覆盖", "tab", string(tab))
	}
}

// Muted 返回标签页当前观察到的静音状态
func (c *Controller) Muted(tab model.TabID) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.muted[tab]
}

// AutoMuted 标签页是否处于扩展自动静音中
func (c *Controller) AutoMuted(tab model.TabID) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.autoMuted[tab]
	return ok
}

// Overridden 标签页是否处于用户覆盖中
func (c *Controller) Overridden(tab model.TabID) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.override[tab]
	return ok
}

// DropTab 标签页关闭/导航时清理全部条目，长会话下不留内存增长
func (c *Controller) DropTab(tab model.TabID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.muted, tab)
	delete(c.autoMuted, tab)
	delete(c.override, tab)
}

// apply 下发静音命令。通道失效按投递失败静默降级，只记日志。
func (c *Controller) apply(tab model.TabID, muted bool) bool {
	if c.muter == nil {
		return false
	}
	if err := c.muter.SetMuted(tab, muted); err != nil {
		c.log.Warn("静音命令投递失败", "tab", string(tab), "muted", muted, "error", err.Error())
		return false
	}
	c.muted[tab] = muted
	return true
}
