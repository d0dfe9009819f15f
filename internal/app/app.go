/**
 * Package app 提供 Wails App 层的实现
 *
 * App 层职责：
 * - 作为会话锁定监控的宿主 Sink，把状态变更放到内部事件总线
 * - 将锁定事件通过 Wails 推送到前端
 * - 记录锁定历史并提供查询接口
 * - 管理 Wails 运行时上下文
 */

package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/chenyang-zz/lockwatch/internal/infrastructure/config"
	"github.com/chenyang-zz/lockwatch/internal/infrastructure/storage"
	"github.com/chenyang-zz/lockwatch/internal/platform"
	"github.com/chenyang-zz/lockwatch/pkg/events"
	"github.com/chenyang-zz/lockwatch/pkg/logger"
	"github.com/chenyang-zz/lockwatch/pkg/screenlock"
	"github.com/wailsapp/wails/v2/pkg/runtime"
	"go.uber.org/zap"
)

var (
	// ErrHistoryDisabled 锁定历史未启用或数据库不可用
	ErrHistoryDisabled = errors.New("lock history is disabled")

	// ErrInvalidTransition 事件名或载荷不是会话锁定状态变更
	ErrInvalidTransition = errors.New("invalid session lock transition")
)

// EmitFunc 向前端推送事件的函数，默认为 runtime.EventsEmit
type EmitFunc func(ctx context.Context, eventName string, optionalData ...interface{})

// Monitor 会话锁定监控任务，*screenlock.Plugin 实现了它
type Monitor interface {
	GetStatus() screenlock.Status
	Done() <-chan struct{}
}

/**
 * HostStatus 宿主自身的状态
 *
 * 由内部的 status/error 事件驱动更新。
 */
type HostStatus struct {
	// State started / monitor_terminated
	State string `json:"state"`

	// Source 编译进来的信号源类型
	Source string `json:"source"`

	// History 锁定历史是否可用
	History bool `json:"history"`

	// LastError 最近一次错误事件，格式为 "原因: 错误"
	LastError string `json:"last_error,omitempty"`

	// UpdatedAt 最近一次更新时间
	UpdatedAt time.Time `json:"updated_at"`
}

/**
 * App 是 Wails 应用的主结构体
 *
 * 监控任务发布的每个状态变更经 hostSink 进入事件总线，
 * 再由订阅者分别转发到前端和写入历史。App 本身绑定给前端，
 * 不实现 Sink，前端无法伪造状态变更。
 */
type App struct {
	// ctx 是 Wails 运行时上下文
	ctx context.Context

	// config 是应用配置
	config *config.Config

	// eventBus 是事件总线，用于应用内部的事件传递
	eventBus *events.EventBus

	// plugin 是会话锁定监控任务，未启动监控时为 nil
	plugin Monitor

	// sink 向监控任务注册的 Sink
	sink hostSink

	// db 锁定历史数据库，未启用历史时为 nil
	db *sql.DB

	// history 锁定历史仓储，未启用历史时为 nil
	history storage.LockEventRepository

	// emit 向前端推送事件
	emit EmitFunc

	// register 向监控任务注册 Sink，默认为 screenlock.SetHandle
	register func(sink screenlock.Sink) error

	// subscriptions 启动时注册的订阅者 ID
	subscriptions []string

	// stopWatch 关闭时通知监控任务观察者退出
	stopWatch chan struct{}

	// statusMu 保护 status
	statusMu sync.RWMutex

	// status 宿主状态
	status HostStatus
}

/**
 * New 创建一个新的 App 实例
 *
 * Parameters:
 *   - cfg: 应用配置，为 nil 时使用默认配置
 *   - plugin: 已启动的会话锁定监控任务（可为 nil）
 *
 * Returns:
 *   - *App: 初始化好的 App 实例
 */
func New(cfg *config.Config, plugin Monitor) *App {
	if cfg == nil {
		cfg, _ = config.LoadDefault()
	}

	var busOpts []events.Option
	if cfg.Events.BufferSize > 0 {
		busOpts = append(busOpts, events.WithAsyncBufferSize(cfg.Events.BufferSize))
	}
	if !cfg.Events.Async {
		busOpts = append(busOpts, events.WithAsyncDisabled())
	}

	eventBus := events.NewEventBus(busOpts...)
	eventBus.Use(events.RecoveryMiddleware())
	eventBus.Use(events.LoggingMiddleware(traceEvent))

	a := &App{
		config:   cfg,
		eventBus: eventBus,
		plugin:   plugin,
		emit:     runtime.EventsEmit,
		register: screenlock.SetHandle,
		status:   HostStatus{Source: platform.SourceKind()},
	}
	a.sink = hostSink{app: a}
	return a
}

/**
 * Startup 应用启动时的初始化
 *
 * 在 Wails 应用启动时调用，负责：
 * 1. 订阅内部状态事件和错误事件
 * 2. 打开锁定历史数据库（失败发布错误事件，历史功能关闭）
 * 3. 订阅锁定事件：转发到前端、写入历史
 * 4. 向监控任务注册 Sink，并观察监控任务何时终止
 *
 * Parameters:
 *   - ctx: Wails 启动上下文
 *
 * Returns:
 *   - error: 初始化过程中的错误
 */
func (a *App) Startup(ctx context.Context) error {
	a.ctx = ctx

	a.subscriptions = append(a.subscriptions,
		a.eventBus.Subscribe(string(events.EventTypeStatus), a.trackStatus),
		a.eventBus.Subscribe(string(events.EventTypeError), a.trackStatus),
	)

	if a.config.History.Enabled {
		if err := a.openHistory(); err != nil {
			logger.Warn("锁定历史不可用，继续运行",
				zap.String("component", "app"),
				zap.Error(err),
			)
			a.publishError("history", err)
		}
	}

	sessionLock := string(events.EventTypeSessionLock)
	a.subscriptions = append(a.subscriptions, a.eventBus.SubscribeWithFilter(sessionLock, a.forwardSessionLock, deliverable))
	if a.history != nil {
		a.subscriptions = append(a.subscriptions, a.eventBus.SubscribeWithFilter(sessionLock, a.recordHistory, deliverable))
	}

	if err := a.register(a.sink); err != nil {
		return fmt.Errorf("注册会话句柄失败: %w", err)
	}

	statusEvent := events.NewEvent(events.EventTypeStatus, map[string]interface{}{
		"status":  "started",
		"source":  platform.SourceKind(),
		"history": a.history != nil,
	})
	_ = a.eventBus.Publish(string(events.EventTypeStatus), *statusEvent)

	if a.plugin != nil {
		a.stopWatch = make(chan struct{})
		go a.watchMonitor(a.stopWatch)
	}

	logger.Info("应用启动完成",
		zap.String("component", "app"),
		zap.String("source", platform.SourceKind()),
		zap.Bool("history", a.history != nil),
	)

	return nil
}

/**
 * Shutdown 应用关闭时的清理
 *
 * 停止事件总线、关闭数据库。监控任务本身没有停止操作，随进程退出。
 */
func (a *App) Shutdown() {
	if a.stopWatch != nil {
		close(a.stopWatch)
		a.stopWatch = nil
	}

	for _, id := range a.subscriptions {
		a.eventBus.Unsubscribe(id)
	}
	a.subscriptions = nil

	if err := a.eventBus.Stop(2 * time.Second); err != nil {
		logger.Warn("停止事件总线超时", zap.Error(err))
	}

	if a.db != nil {
		if err := a.db.Close(); err != nil {
			logger.Warn("关闭数据库失败", zap.Error(err))
		}
		a.db = nil
		a.history = nil
	}

	_ = logger.Sync()
}

// ========== 导出方法（前端可调用） ==========

/**
 * GetLockStatus 获取监控任务状态
 *
 * Returns:
 *   - screenlock.Status: 状态快照；未启动监控时为终止状态
 */
func (a *App) GetLockStatus() screenlock.Status {
	if a.plugin == nil {
		return screenlock.Status{
			Phase:      screenlock.PhaseTerminated,
			Payload:    screenlock.Unlocked.String(),
			SourceKind: platform.SourceKind(),
		}
	}
	return a.plugin.GetStatus()
}

/**
 * GetHostStatus 获取宿主状态
 */
func (a *App) GetHostStatus() HostStatus {
	a.statusMu.RLock()
	defer a.statusMu.RUnlock()
	return a.status
}

/**
 * GetLockHistory 获取最近的锁定历史
 *
 * Parameters:
 *   - limit: 返回的最大记录数，<= 0 时使用配置的默认值
 *
 * Returns:
 *   - []storage.LockEvent: 从旧到新排列的记录
 *   - error: 历史未启用或查询失败
 */
func (a *App) GetLockHistory(limit int) ([]storage.LockEvent, error) {
	if a.history == nil {
		return nil, ErrHistoryDisabled
	}
	if limit <= 0 {
		limit = a.config.History.Limit
	}
	return a.history.FindRecent(limit)
}

/**
 * GetLockStats 获取锁定历史统计
 */
func (a *App) GetLockStats() (*storage.LockEventStats, error) {
	if a.history == nil {
		return nil, ErrHistoryDisabled
	}
	return a.history.GetStats()
}

// ========== 私有方法 ==========

/**
 * openHistory 打开历史数据库、执行迁移并按保留天数清理
 */
func (a *App) openHistory() error {
	sqliteCfg := a.config.Storage.SQLite
	db, err := storage.NewSQLiteDB(storage.SQLiteConfig{
		Path:            sqliteCfg.Path,
		MaxOpenConns:    sqliteCfg.MaxOpenConns,
		MaxIdleConns:    sqliteCfg.MaxIdleConns,
		ConnMaxLifetime: sqliteCfg.ConnMaxLifetimeDuration(),
	})
	if err != nil {
		return err
	}

	if err := storage.RunMigrations(db); err != nil {
		db.Close()
		return err
	}

	repo := storage.NewSQLiteLockEventRepository(db)
	if days := a.config.History.RetentionDays; days > 0 {
		if _, err := repo.DeleteOlderThan(time.Now().AddDate(0, 0, -days)); err != nil {
			logger.Warn("清理旧锁定记录失败", zap.Error(err))
		}
	}

	a.db = db
	a.history = repo
	return nil
}

/**
 * forwardSessionLock 把锁定事件推送到前端
 *
 * 事件名和载荷原样转发，前端通过 EventsOn(EventName) 接收 "lock"/"unlock"。
 */
func (a *App) forwardSessionLock(event events.Event) error {
	data, ok := event.SessionLock()
	if !ok {
		return fmt.Errorf("unexpected event %s on session lock topic", event.ID)
	}
	if a.ctx == nil {
		return fmt.Errorf("wails context not ready")
	}

	a.emit(a.ctx, data.Name, data.Payload)
	return nil
}

/**
 * recordHistory 把锁定事件写入历史
 */
func (a *App) recordHistory(event events.Event) error {
	record, err := storage.LockEventFromEvent(event)
	if err != nil {
		return err
	}
	return a.history.Save(record)
}

// trackStatus 根据 status/error 事件更新宿主状态
func (a *App) trackStatus(event events.Event) error {
	a.statusMu.Lock()
	defer a.statusMu.Unlock()

	switch event.Type {
	case events.EventTypeStatus:
		if state, ok := event.Data["status"].(string); ok {
			a.status.State = state
		}
		if history, ok := event.Data["history"].(bool); ok {
			a.status.History = history
		}
	case events.EventTypeError:
		reason, _ := event.Data["reason"].(string)
		message, _ := event.Data["error"].(string)
		a.status.LastError = reason + ": " + message
		if reason == "monitor" {
			a.status.State = "monitor_terminated"
		}
		logger.Warn("宿主错误事件",
			zap.String("component", "app"),
			zap.String("reason", reason),
			zap.String("error", message),
		)
	}
	a.status.UpdatedAt = event.Timestamp
	return nil
}

// publishError 发布内部错误事件
func (a *App) publishError(reason string, err error) {
	event := events.NewEvent(events.EventTypeError, map[string]interface{}{
		"reason": reason,
		"error":  err.Error(),
	})
	_ = a.eventBus.Publish(string(events.EventTypeError), *event)
}

// watchMonitor 等待监控任务终止并发布错误事件，App 关闭时退出
func (a *App) watchMonitor(stop <-chan struct{}) {
	select {
	case <-a.plugin.Done():
		status := a.plugin.GetStatus()
		a.publishError("monitor", errors.New(status.LastError))
	case <-stop:
	}
}

// traceEvent 在 debug 级别记录经过事件总线的每个事件
func traceEvent(event events.Event) {
	logger.Debug("处理事件",
		zap.String("component", "app"),
		zap.String("event_type", string(event.Type)),
		zap.String("event_id", event.ID),
	)
}

// hostSink 向监控任务注册的 Sink，只接受会话锁定状态变更
type hostSink struct {
	app *App
}

// Publish 实现 screenlock.Sink
func (s hostSink) Publish(eventName string, payload string) error {
	if err := checkTransition(eventName, payload); err != nil {
		return err
	}

	event := events.NewSessionLockEvent(eventName, payload)
	event.WithMetadata("source", platform.SourceKind())
	return s.app.eventBus.Publish(string(events.EventTypeSessionLock), *event)
}

// checkTransition 事件名必须是 screenlock.EventName，载荷只能是 lock/unlock
func checkTransition(eventName, payload string) error {
	if eventName != screenlock.EventName {
		return fmt.Errorf("%w: event name %q", ErrInvalidTransition, eventName)
	}
	if payload != screenlock.Locked.String() && payload != screenlock.Unlocked.String() {
		return fmt.Errorf("%w: payload %q", ErrInvalidTransition, payload)
	}
	return nil
}

// deliverable 锁定事件订阅者的过滤器
func deliverable(event events.Event) bool {
	data, ok := event.SessionLock()
	return ok && checkTransition(data.Name, data.Payload) == nil
}
