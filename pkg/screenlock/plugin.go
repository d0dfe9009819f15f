package screenlock

import (
	"sync"
	"time"
)

// PluginName 插件名
const PluginName = "window_screen_lock_status"

// Plugin 会话锁定监控插件句柄
//
// 由 Init 返回，宿主可将其注册/绑定到应用上。
type Plugin struct {
	supervisor *Supervisor
}

// Name 返回插件名
func (p *Plugin) Name() string {
	return PluginName
}

// GetStatus 返回监控任务的状态快照
func (p *Plugin) GetStatus() Status {
	return p.supervisor.Status()
}

// Done 监控任务终止后关闭的通道
func (p *Plugin) Done() <-chan struct{} {
	return p.supervisor.Done()
}

// Option 初始化选项
type Option func(*options)

type options struct {
	interval time.Duration
	open     SourceOpener
	cell     *HandleCell
}

// WithInterval 设置迭代间隔，<= 0 时保留默认值
func WithInterval(interval time.Duration) Option {
	return func(o *options) {
		if interval > 0 {
			o.interval = interval
		}
	}
}

// WithSourceOpener 替换信号源获取函数
func WithSourceOpener(open SourceOpener) Option {
	return func(o *options) {
		o.open = open
	}
}

// WithHandleCell 使用独立的 Sink 容器代替进程级容器
func WithHandleCell(cell *HandleCell) Option {
	return func(o *options) {
		o.cell = cell
	}
}

var (
	initOnce sync.Once
	instance *Plugin
)

// Init 启动会话锁定监控
//
// 进程内只会启动一个后台监控任务；之后的调用直接返回同一个插件，
// 选项被忽略。调用立即返回，不会阻塞也不会失败：
// 信号源相关的错误只记录日志并终止后台任务。
//
// Parameters:
//   - opts: 初始化选项（可选）
//
// Returns: *Plugin - 插件句柄
func Init(opts ...Option) *Plugin {
	initOnce.Do(func() {
		instance = newPlugin(opts...)
		go instance.supervisor.Run()
	})
	return instance
}

// newPlugin 按选项构建插件（不启动任务）
func newPlugin(opts ...Option) *Plugin {
	o := options{interval: DefaultInterval}
	for _, opt := range opts {
		opt(&o)
	}

	return &Plugin{
		supervisor: NewSupervisor(o.open, NewEmitter(o.cell), o.interval),
	}
}
