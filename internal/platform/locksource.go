package platform

import (
	"errors"

	"github.com/godbus/dbus/v5"
)

// LockSource 会话锁定状态信号源接口
//
// LockSource 是平台层对"当前交互会话是否锁定"的统一抽象。
// 每个平台只编译一个实现（通过构建标签选择）：
//   - Linux：监听 systemd-logind 的 LockedHint 属性（property-watch）
//   - Windows：隐藏窗口 + 会话通知消息循环（event-loop）
//   - macOS：轮询 CGSession 会话字典（poll-dictionary）
//
// 注意：实现可能绑定调用方所在的 OS 线程（Windows 消息循环），
// OpenLockSource、Next、Close 必须在同一个 goroutine 中调用。
type LockSource interface {
	// Next 获取下一次观测到的锁定状态
	// 阻塞型实现会一直等待到系统给出新的读数，轮询型实现直接返回当前快照。
	// Returns: bool - true 表示已锁定；error - 读取失败（对监控任务来说是致命的）
	Next() (bool, error)

	// Close 释放信号源持有的系统资源
	// Returns: error - 释放失败时返回错误
	Close() error
}

var (
	// ErrUnsupportedPlatform 当前平台没有可用的信号源实现
	ErrUnsupportedPlatform = errors.New("session lock detection is not supported on this platform")

	// ErrSignalStreamClosed D-Bus 信号通道已关闭，不会再有属性变更通知
	ErrSignalStreamClosed = errors.New("session property change stream closed")

	// ErrSessionDictionaryUnavailable 无法获取 CGSession 会话字典
	ErrSessionDictionaryUnavailable = errors.New("session dictionary unavailable")

	// ErrMessageLoopClosed 消息循环收到 WM_QUIT 或 GetMessage 失败
	ErrMessageLoopClosed = errors.New("session message loop closed")
)

// 信号源类型名称，用于日志和状态查询
const (
	SourceKindPropertyWatch  = "property-watch"
	SourceKindEventLoop      = "event-loop"
	SourceKindPollDictionary = "poll-dictionary"
	SourceKindUnsupported    = "unsupported"
)

// Windows 会话变更通知（WM_WTSSESSION_CHANGE 的 wParam 子码）
const (
	WTSSessionLock   uint32 = 0x7
	WTSSessionUnlock uint32 = 0x8
)

// systemd-logind 会话接口
const (
	login1Service      = "org.freedesktop.login1"
	login1SessionIface = "org.freedesktop.login1.Session"
	lockedHintProperty = "LockedHint"
	propertiesIface    = "org.freedesktop.DBus.Properties"
	propertiesChanged  = propertiesIface + ".PropertiesChanged"
)

// ClassifySessionChange 将会话变更子码映射为锁定状态
//
// 只识别锁定和解锁两种子码，其余（登录、注销、远程连接等）视为无法分类。
//
// Parameters:
//   - code: WM_WTSSESSION_CHANGE 消息的 wParam
//
// Returns:
//   - locked: true 表示锁定
//   - ok: 子码是否可识别
func ClassifySessionChange(code uint32) (locked bool, ok bool) {
	switch code {
	case WTSSessionLock:
		return true, true
	case WTSSessionUnlock:
		return false, true
	default:
		return false, false
	}
}

// LockedHintChanged 判断 D-Bus 信号是否为指定会话的 LockedHint 变更
//
// 只接受 path 对象上 org.freedesktop.login1.Session 接口的
// PropertiesChanged 信号，且 LockedHint 出现在变更或失效属性列表中。
//
// Parameters:
//   - sig: 收到的 D-Bus 信号
//   - path: 当前会话的对象路径
//
// Returns: bool - 是否需要重新读取 LockedHint
func LockedHintChanged(sig *dbus.Signal, path dbus.ObjectPath) bool {
	if sig == nil || sig.Name != propertiesChanged || sig.Path != path {
		return false
	}
	if len(sig.Body) < 2 {
		return false
	}

	iface, ok := sig.Body[0].(string)
	if !ok || iface != login1SessionIface {
		return false
	}

	if changed, ok := sig.Body[1].(map[string]dbus.Variant); ok {
		if _, found := changed[lockedHintProperty]; found {
			return true
		}
	}

	if len(sig.Body) >= 3 {
		if invalidated, ok := sig.Body[2].([]string); ok {
			for _, name := range invalidated {
				if name == lockedHintProperty {
					return true
				}
			}
		}
	}

	return false
}
