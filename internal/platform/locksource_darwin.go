//go:build darwin && cgo

package platform

/*
#cgo LDFLAGS: -framework CoreGraphics -framework CoreFoundation
#include <CoreGraphics/CoreGraphics.h>
#include <CoreFoundation/CoreFoundation.h>

// lockwatchSessionLocked 读取当前会话字典中的锁屏标记（static 避免符号冲突）
// 只判断键是否存在，不关心值
// Returns: 1=锁定, 0=未锁定, -1=无法获取会话字典
static int lockwatchSessionLocked(void) {
    CFDictionaryRef dict = CGSessionCopyCurrentDictionary();
    if (dict == NULL) {
        return -1;
    }

    int locked = CFDictionaryContainsKey(dict, CFSTR("CGSSessionScreenIsLocked")) ? 1 : 0;
    CFRelease(dict);
    return locked;
}
*/
import "C"

import (
	"fmt"
)

// DarwinLockSource 基于 CGSession 会话字典的锁定信号源
//
// 每次 Next 重新复制一份会话字典，键 CGSSessionScreenIsLocked
// 存在即视为锁定。轮询间隔由监控任务控制。
type DarwinLockSource struct{}

// SourceKind 返回本平台编译进来的信号源类型
func SourceKind() string {
	return SourceKindPollDictionary
}

// OpenLockSource 创建 macOS 会话锁定信号源
//
// 创建时先探测一次会话字典，进程不在图形会话中（例如以 daemon 运行）时直接失败。
//
// Returns: LockSource - 信号源实例；error - 无法读取会话字典
func OpenLockSource() (LockSource, error) {
	if C.lockwatchSessionLocked() < 0 {
		return nil, fmt.Errorf("探测会话字典失败: %w", ErrSessionDictionaryUnavailable)
	}
	return &DarwinLockSource{}, nil
}

// Next 返回当前会话字典快照中的锁定状态
func (s *DarwinLockSource) Next() (bool, error) {
	switch C.lockwatchSessionLocked() {
	case 1:
		return true, nil
	case 0:
		return false, nil
	default:
		return false, ErrSessionDictionaryUnavailable
	}
}

// Close 无需释放资源
func (s *DarwinLockSource) Close() error {
	return nil
}
