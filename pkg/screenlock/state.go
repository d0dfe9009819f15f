/**
 * Package screenlock 提供跨平台的会话锁定状态监控
 *
 * 一个后台监控任务从平台信号源读取锁定状态，去抖后只在状态真正变化时
 * 通过宿主注册的 Sink 发布 "lock" / "unlock" 事件。
 */
package screenlock

// LockState 会话锁定状态
//
// true 表示会话已锁定，false 表示未锁定。
type LockState bool

const (
	// Unlocked 未锁定（监控任务的初始状态）
	Unlocked LockState = false

	// Locked 已锁定
	Locked LockState = true
)

// String 返回状态对应的事件载荷："lock" 或 "unlock"
func (s LockState) String() string {
	if s {
		return "lock"
	}
	return "unlock"
}

// Debounce 判断新读数是否构成一次状态变化
//
// 纯函数，不修改任何状态。
//
// Parameters:
//   - previous: 上一次记住的状态
//   - observed: 本次观测到的状态
//
// Returns:
//   - LockState: 变化时为 observed，否则为 previous
//   - bool: 是否发生变化
func Debounce(previous, observed LockState) (LockState, bool) {
	if observed == previous {
		return previous, false
	}
	return observed, true
}
