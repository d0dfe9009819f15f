/**
 * Package events 提供事件系统的核心类型定义
 *
 * 事件系统是宿主应用内部的通信机制，用于：
 * - 会话锁定监控把状态变更交给宿主
 * - 历史记录、前端转发等订阅者各自处理
 */

package events

import (
	"time"

	"github.com/google/uuid"
)

/**
 * EventType 事件类型枚举
 */
type EventType string

/**
 * 所有事件类型常量
 */
const (
	// 监控事件
	EventTypeSessionLock EventType = "session_lock" // 会话锁定状态变更

	// 系统事件
	EventTypeError  EventType = "error"  // 错误事件
	EventTypeStatus EventType = "status" // 状态事件
)

/**
 * Event 统一事件结构
 *
 * 所有监控器和系统事件都使用此结构
 */
type Event struct {
	// ID 事件唯一标识符
	ID string `json:"id"`

	// Type 事件类型
	Type EventType `json:"type"`

	// Timestamp 事件发生时间
	Timestamp time.Time `json:"timestamp"`

	// Data 事件数据（类型特定的数据）
	Data map[string]interface{} `json:"data"`

	// Metadata 事件元数据（可选的额外信息）
	Metadata map[string]string `json:"metadata,omitempty"`
}

/**
 * NewEvent 创建新事件
 *
 * Parameters:
 *   - eventType: 事件类型
 *   - data: 事件数据
 *
 * Returns:
 *   - *Event: 新创建的事件
 */
func NewEvent(eventType EventType, data map[string]interface{}) *Event {
	return &Event{
		ID:        generateEventID(),
		Type:      eventType,
		Timestamp: time.Now(),
		Data:      data,
		Metadata:  make(map[string]string),
	}
}

/**
 * NewSessionLockEvent 创建会话锁定变更事件
 *
 * Parameters:
 *   - name: 对外事件名（宿主转发时使用）
 *   - payload: "lock" 或 "unlock"
 *
 * Returns:
 *   - *Event: 新创建的事件
 */
func NewSessionLockEvent(name, payload string) *Event {
	return NewEvent(EventTypeSessionLock, map[string]interface{}{
		"name":    name,
		"payload": payload,
	})
}

/**
 * WithMetadata 添加元数据
 *
 * Parameters:
 *   - key: 元数据键
 *   - value: 元数据值
 *
 * Returns:
 *   - *Event: 返回自身，支持链式调用
 */
func (e *Event) WithMetadata(key, value string) *Event {
	if e.Metadata == nil {
		e.Metadata = make(map[string]string)
	}
	e.Metadata[key] = value
	return e
}

/**
 * SessionLock 解析会话锁定事件数据
 *
 * Returns:
 *   - SessionLockEventData: 事件数据
 *   - bool: 事件类型或数据不匹配时返回 false
 */
func (e Event) SessionLock() (SessionLockEventData, bool) {
	if e.Type != EventTypeSessionLock {
		return SessionLockEventData{}, false
	}

	name, _ := e.Data["name"].(string)
	payload, ok := e.Data["payload"].(string)
	if !ok {
		return SessionLockEventData{}, false
	}

	return SessionLockEventData{Name: name, Payload: payload}, true
}

/**
 * generateEventID 生成事件唯一 ID
 *
 * 使用 UUID v4 确保全局唯一性
 */
func generateEventID() string {
	return uuid.New().String()
}

/**
 * SessionLockEventData 会话锁定事件数据
 */
type SessionLockEventData struct {
	Name    string `json:"name"`    // 对外事件名
	Payload string `json:"payload"` // "lock" 或 "unlock"
}
