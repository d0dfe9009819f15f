//go:build !linux && !windows && !(darwin && cgo)

package platform

import (
	"fmt"
	"runtime"
)

// SourceKind 返回本平台编译进来的信号源类型（不支持的平台）
func SourceKind() string {
	return SourceKindUnsupported
}

// OpenLockSource 在不支持的平台上始终返回 ErrUnsupportedPlatform
//
// macOS 在 CGO_ENABLED=0 构建时也会落到这里，监控任务随即终止。
func OpenLockSource() (LockSource, error) {
	return nil, fmt.Errorf("%s/%s: %w", runtime.GOOS, runtime.GOARCH, ErrUnsupportedPlatform)
}
