//go:build windows

package platform

import (
	"errors"
	"fmt"
	"runtime"
	"unsafe"

	"github.com/chenyang-zz/lockwatch/pkg/logger"
	"go.uber.org/zap"
	"golang.org/x/sys/windows"
)

var (
	modUser32   = windows.NewLazySystemDLL("user32.dll")
	modWtsapi32 = windows.NewLazySystemDLL("wtsapi32.dll")
	modKernel32 = windows.NewLazySystemDLL("kernel32.dll")

	procRegisterClassExW = modUser32.NewProc("RegisterClassExW")
	procUnregisterClassW = modUser32.NewProc("UnregisterClassW")
	procCreateWindowExW  = modUser32.NewProc("CreateWindowExW")
	procDestroyWindow    = modUser32.NewProc("DestroyWindow")
	procDefWindowProcW   = modUser32.NewProc("DefWindowProcW")
	procGetMessageW      = modUser32.NewProc("GetMessageW")
	procTranslateMessage = modUser32.NewProc("TranslateMessage")
	procDispatchMessageW = modUser32.NewProc("DispatchMessageW")
	procPostMessageW     = modUser32.NewProc("PostMessageW")

	procWTSRegisterSessionNotification   = modWtsapi32.NewProc("WTSRegisterSessionNotification")
	procWTSUnRegisterSessionNotification = modWtsapi32.NewProc("WTSUnRegisterSessionNotification")

	procGetModuleHandleW = modKernel32.NewProc("GetModuleHandleW")
)

const (
	wmWTSSessionChange = 0x02B1
	// wmAppSessionChange 窗口过程转发给消息循环的私有消息（WM_APP + 1）
	wmAppSessionChange = 0x8000 + 1

	notifyForThisSession = 0

	wsOverlappedWindow = 0x00CF0000
	cwUseDefault       = 0x80000000

	errorClassAlreadyExists = windows.Errno(1410)
)

// sessionWindowClass 隐藏窗口的窗口类名
const sessionWindowClass = "LockwatchSessionWindow"

type wndClassExW struct {
	cbSize        uint32
	style         uint32
	lpfnWndProc   uintptr
	cbClsExtra    int32
	cbWndExtra    int32
	hInstance     windows.Handle
	hIcon         windows.Handle
	hCursor       windows.Handle
	hbrBackground windows.Handle
	lpszMenuName  *uint16
	lpszClassName *uint16
	hIconSm       windows.Handle
}

type winPoint struct {
	x, y int32
}

type winMsg struct {
	hwnd     windows.HWND
	message  uint32
	wParam   uintptr
	lParam   uintptr
	time     uint32
	pt       winPoint
	lPrivate uint32
}

// sessionWndProc 隐藏窗口的窗口过程
//
// WM_WTSSESSION_CHANGE 以 SendMessage 方式投递时不会从 GetMessage 返回，
// 这里把它转成一条投递消息，让 Next 的消息循环能观察到。
var sessionWndProc = windows.NewCallback(func(hwnd, message, wParam, lParam uintptr) uintptr {
	if message == wmWTSSessionChange {
		procPostMessageW.Call(hwnd, wmAppSessionChange, wParam, lParam)
		return 0
	}
	ret, _, _ := procDefWindowProcW.Call(hwnd, message, wParam, lParam)
	return ret
})

// WindowsLockSource 基于会话通知消息的锁定信号源
//
// 创建一个隐藏的顶层窗口并通过 WTSRegisterSessionNotification 注册，
// 在专属 OS 线程上运行消息循环。窗口和消息队列属于创建它们的线程，
// 所以 OpenLockSource 会调用 runtime.LockOSThread，Close 时解除。
type WindowsLockSource struct {
	// instance 当前模块句柄
	instance windows.Handle

	// className 窗口类名（UTF-16）
	className *uint16

	// hwnd 隐藏窗口句柄
	hwnd windows.HWND
}

// SourceKind 返回本平台编译进来的信号源类型
func SourceKind() string {
	return SourceKindEventLoop
}

// OpenLockSource 创建 Windows 会话锁定信号源
//
// 必须在之后调用 Next/Close 的同一个 goroutine 中调用。
//
// Returns: LockSource - 信号源实例；error - 创建窗口或注册通知失败
func OpenLockSource() (LockSource, error) {
	runtime.LockOSThread()

	src, err := openWindowsLockSource()
	if err != nil {
		runtime.UnlockOSThread()
		return nil, err
	}
	return src, nil
}

func openWindowsLockSource() (*WindowsLockSource, error) {
	instance, _, err := procGetModuleHandleW.Call(0)
	if instance == 0 {
		return nil, fmt.Errorf("获取模块句柄失败: %w", err)
	}

	className, err := windows.UTF16PtrFromString(sessionWindowClass)
	if err != nil {
		return nil, fmt.Errorf("转换窗口类名失败: %w", err)
	}

	wc := wndClassExW{
		lpfnWndProc:   sessionWndProc,
		hInstance:     windows.Handle(instance),
		lpszClassName: className,
	}
	wc.cbSize = uint32(unsafe.Sizeof(wc))

	if atom, _, err := procRegisterClassExW.Call(uintptr(unsafe.Pointer(&wc))); atom == 0 {
		if !errors.Is(err, errorClassAlreadyExists) {
			return nil, fmt.Errorf("注册窗口类失败: %w", err)
		}
	}

	// 不带 WS_VISIBLE，窗口始终隐藏
	hwnd, _, err := procCreateWindowExW.Call(
		0,
		uintptr(unsafe.Pointer(className)),
		uintptr(unsafe.Pointer(className)),
		wsOverlappedWindow,
		cwUseDefault, cwUseDefault, cwUseDefault, cwUseDefault,
		0, 0, instance, 0,
	)
	if hwnd == 0 {
		procUnregisterClassW.Call(uintptr(unsafe.Pointer(className)), instance)
		return nil, fmt.Errorf("创建会话通知窗口失败: %w", err)
	}

	if ok, _, err := procWTSRegisterSessionNotification.Call(hwnd, notifyForThisSession); ok == 0 {
		procDestroyWindow.Call(hwnd)
		procUnregisterClassW.Call(uintptr(unsafe.Pointer(className)), instance)
		return nil, fmt.Errorf("注册会话通知失败: %w", err)
	}

	logger.Debug("会话通知窗口已创建",
		zap.String("component", "locksource"),
		zap.Uintptr("hwnd", hwnd),
	)

	return &WindowsLockSource{
		instance:  windows.Handle(instance),
		className: className,
		hwnd:      windows.HWND(hwnd),
	}, nil
}

// Next 运行消息循环直到收到可识别的锁定/解锁通知
//
// 非会话消息照常 Translate/Dispatch；子码无法识别的会话通知被忽略。
// GetMessage 返回 0（WM_QUIT）或 -1 时返回 ErrMessageLoopClosed。
//
// Returns: bool - 是否锁定；error - 消息循环结束
func (s *WindowsLockSource) Next() (bool, error) {
	var m winMsg
	for {
		ret, _, err := procGetMessageW.Call(uintptr(unsafe.Pointer(&m)), 0, 0, 0)
		switch int32(ret) {
		case 0:
			return false, ErrMessageLoopClosed
		case -1:
			return false, fmt.Errorf("%w: %v", ErrMessageLoopClosed, err)
		}

		if m.message == wmWTSSessionChange || m.message == wmAppSessionChange {
			if locked, ok := ClassifySessionChange(uint32(m.wParam)); ok {
				return locked, nil
			}
			continue
		}

		procTranslateMessage.Call(uintptr(unsafe.Pointer(&m)))
		procDispatchMessageW.Call(uintptr(unsafe.Pointer(&m)))
	}
}

// Close 注销会话通知并销毁窗口
func (s *WindowsLockSource) Close() error {
	defer runtime.UnlockOSThread()

	procWTSUnRegisterSessionNotification.Call(uintptr(s.hwnd))
	if ok, _, err := procDestroyWindow.Call(uintptr(s.hwnd)); ok == 0 {
		return fmt.Errorf("销毁会话通知窗口失败: %w", err)
	}
	procUnregisterClassW.Call(uintptr(unsafe.Pointer(s.className)), uintptr(s.instance))
	return nil
}
