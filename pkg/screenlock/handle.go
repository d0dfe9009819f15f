package screenlock

import (
	"errors"
	"sync/atomic"
)

var (
	// ErrHandleNotReady 宿主尚未注册 Sink
	ErrHandleNotReady = errors.New("session handle is not set yet")

	// ErrHandleAlreadySet Sink 已注册过，后续设置被忽略
	ErrHandleAlreadySet = errors.New("session handle is already set")

	// ErrNilSink 注册的 Sink 为空
	ErrNilSink = errors.New("session handle sink is nil")
)

// Sink 宿主应用的事件发布能力
type Sink interface {
	// Publish 向宿主发布一个具名事件
	Publish(eventName string, payload string) error
}

// SinkFunc 函数适配器，让普通函数实现 Sink
type SinkFunc func(eventName string, payload string) error

// Publish 调用函数本身
func (f SinkFunc) Publish(eventName string, payload string) error {
	return f(eventName, payload)
}

// sinkRef 包一层指针，便于 atomic.Pointer 存放接口值
type sinkRef struct {
	sink Sink
}

// HandleCell 只写一次的 Sink 容器
//
// 并发安全：Set 通过 CompareAndSwap 保证只有第一次成功，
// Get 在设置之前返回 ErrHandleNotReady 而不是阻塞。
// 零值可直接使用。
type HandleCell struct {
	ref atomic.Pointer[sinkRef]
}

// Set 注册 Sink
//
// Returns: error - sink 为 nil 返回 ErrNilSink；已设置过返回 ErrHandleAlreadySet（保留第一次的值）
func (c *HandleCell) Set(sink Sink) error {
	if sink == nil {
		return ErrNilSink
	}
	if !c.ref.CompareAndSwap(nil, &sinkRef{sink: sink}) {
		return ErrHandleAlreadySet
	}
	return nil
}

// Get 读取 Sink
//
// Returns: Sink - 已注册的 Sink；error - 未注册时返回 ErrHandleNotReady
func (c *HandleCell) Get() (Sink, error) {
	ref := c.ref.Load()
	if ref == nil {
		return nil, ErrHandleNotReady
	}
	return ref.sink, nil
}

// IsSet 是否已注册
func (c *HandleCell) IsSet() bool {
	return c.ref.Load() != nil
}

// defaultCell 进程级 Sink 容器，Init 默认从这里读取
var defaultCell HandleCell

// SetHandle 向进程级容器注册宿主 Sink
//
// 宿主在自身句柄可用后调用一次。重复调用不会替换已注册的值，
// 返回 ErrHandleAlreadySet 并记录警告。
//
// Parameters:
//   - sink: 宿主的事件发布能力
//
// Returns: error - 注册失败原因
func SetHandle(sink Sink) error {
	err := defaultCell.Set(sink)
	if errors.Is(err, ErrHandleAlreadySet) {
		log().Warn("会话句柄已设置，忽略重复设置")
	}
	return err
}

// CurrentHandle 读取进程级容器中的 Sink
func CurrentHandle() (Sink, error) {
	return defaultCell.Get()
}
