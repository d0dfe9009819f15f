package screenlock

import (
	"time"

	"github.com/chenyang-zz/lockwatch/pkg/logger"
	"go.uber.org/zap"
)

// EventName 会话锁定状态变更事件名
const EventName = "window_screen_lock_status://change_session_status"

// log 返回带组件字段的 logger
func log() *zap.Logger {
	return logger.With(zap.String("component", "screenlock"))
}

// ChangeEvent 一次状态变更通知
type ChangeEvent struct {
	// Name 事件名，固定为 EventName
	Name string `json:"name"`

	// Payload "lock" 或 "unlock"
	Payload string `json:"payload"`

	// ObservedAt 观测到变化的时间
	ObservedAt time.Time `json:"observed_at"`
}

// NewChangeEvent 根据新状态构造变更通知
func NewChangeEvent(state LockState, at time.Time) ChangeEvent {
	return ChangeEvent{
		Name:       EventName,
		Payload:    state.String(),
		ObservedAt: at,
	}
}

// Emitter 通知发布器
//
// 每次发布时从 HandleCell 读取 Sink；Sink 未就绪时丢弃本次变化，
// 不缓存也不重试。
type Emitter struct {
	cell *HandleCell
	now  func() time.Time
}

// NewEmitter 创建通知发布器
//
// Parameters:
//   - cell: Sink 容器，为 nil 时使用进程级容器
func NewEmitter(cell *HandleCell) *Emitter {
	if cell == nil {
		cell = &defaultCell
	}
	return &Emitter{cell: cell, now: time.Now}
}

// Emit 发布状态变更
//
// Parameters:
//   - state: 新状态
//
// Returns: bool - 是否成功交给 Sink
func (e *Emitter) Emit(state LockState) bool {
	event := NewChangeEvent(state, e.now())

	sink, err := e.cell.Get()
	if err != nil {
		log().Warn("会话句柄未就绪，丢弃状态变更",
			zap.String("payload", event.Payload),
			zap.Error(err),
		)
		return false
	}

	if err := sink.Publish(event.Name, event.Payload); err != nil {
		log().Warn("发布状态变更失败",
			zap.String("payload", event.Payload),
			zap.Error(err),
		)
		return false
	}

	log().Info("会话锁定状态变更",
		zap.String("payload", event.Payload),
		zap.Time("observed_at", event.ObservedAt),
	)
	return true
}
