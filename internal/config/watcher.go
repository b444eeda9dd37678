package config

import (
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"hushtab/internal/logger"
)

// Watcher 监视配置文件变更并在重载成功后回调。
// 自动静音开关等偏好要求"修改即生效"，靠它驱动。
// 新配置校验失败时保留旧配置，只记日志。
type Watcher struct {
	path     string
	onChange func(old, new *Config)
	log      logger.Logger

	mu       sync.Mutex
	current  *Config
	fw       *fsnotify.Watcher
	done     chan struct{}
	stopOnce sync.Once
}

// NewWatcher 创建配置监视器。立即加载初始配置，失败则直接返回错误。
func NewWatcher(path string, onChange func(old, new *Config), l logger.Logger) (*Watcher, error) {
	if l == nil {
		l = logger.NewNop()
	}
	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := fw.Add(path); err != nil {
		fw.Close()
		return nil, err
	}
	w := &Watcher{
		path:     path,
		onChange: onChange,
		log:      l,
		current:  cfg,
		fw:       fw,
		done:     make(chan struct{}),
	}
	go w.loop()
	return w, nil
}

// Current 返回最近一次成功加载的配置
func (w *Watcher) Current() *Config {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.current
}

// Stop 停止监视
func (w *Watcher) Stop() {
	w.stopOnce.Do(func() {
		close(w.done)
		w.fw.Close()
	})
}

// loop 消费文件事件。编辑器保存通常触发一串 write 事件，
// 用短定时器归并成一次重载。
func (w *Watcher) loop() {
	var pending *time.Timer
	reload := make(chan struct{}, 1)
	for {
		select {
		case <-w.done:
			return
		case ev, ok := <-w.fw.Events:
			if !ok {
				return
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) {
				continue
			}
			if pending != nil {
				pending.Stop()
			}
			pending = time.AfterFunc(200*time.Millisecond, func() {
				select {
				case reload <- struct{}{}:
				default:
				}
			})
		case err, ok := <-w.fw.Errors:
			if !ok {
				return
			}
			w.log.Warn("配置监视错误", "error", err.Error())
		case <-reload:
			w.reload()
		}
	}
}

func (w *Watcher) reload() {
	cfg, err := Load(w.path)
	if err != nil {
		w.log.Warn("配置重载失败，沿用旧配置", "path", w.path, "error", err.Error())
		return
	}
	w.mu.Lock()
	old := w.current
	w.current = cfg
	w.mu.Unlock()
	w.log.Info("配置已重载", "path", w.path)
	if w.onChange != nil {
		w.onChange(old, cfg)
	}
}
