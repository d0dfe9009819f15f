package platform

import (
	"testing"

	"github.com/godbus/dbus/v5"
	"github.com/stretchr/testify/assert"
)

// TestClassifySessionChange 测试会话变更子码分类
//
// 只有锁定和解锁子码可识别，其余子码（登录、远程连接等）应被忽略。
func TestClassifySessionChange(t *testing.T) {
	tests := []struct {
		name       string
		code       uint32
		wantLocked bool
		wantOK     bool
	}{
		{"锁定", WTSSessionLock, true, true},
		{"解锁", WTSSessionUnlock, false, true},
		{"控制台连接", 0x1, false, false},
		{"远程断开", 0x4, false, false},
		{"登录", 0x5, false, false},
		{"远程控制", 0x9, false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			locked, ok := ClassifySessionChange(tt.code)
			assert.Equal(t, tt.wantLocked, locked)
			assert.Equal(t, tt.wantOK, ok)
		})
	}
}

// TestLockedHintChanged 测试 PropertiesChanged 信号过滤
func TestLockedHintChanged(t *testing.T) {
	path := dbus.ObjectPath("/org/freedesktop/login1/session/_32")

	signal := func(p dbus.ObjectPath, body ...interface{}) *dbus.Signal {
		return &dbus.Signal{
			Path: p,
			Name: propertiesChanged,
			Body: body,
		}
	}

	tests := []struct {
		name string
		sig  *dbus.Signal
		want bool
	}{
		{
			name: "LockedHint 变更",
			sig: signal(path, login1SessionIface,
				map[string]dbus.Variant{lockedHintProperty: dbus.MakeVariant(true)},
				[]string{}),
			want: true,
		},
		{
			name: "LockedHint 失效",
			sig: signal(path, login1SessionIface,
				map[string]dbus.Variant{},
				[]string{"IdleHint", lockedHintProperty}),
			want: true,
		},
		{
			name: "其他属性变更",
			sig: signal(path, login1SessionIface,
				map[string]dbus.Variant{"IdleHint": dbus.MakeVariant(true)},
				[]string{}),
			want: false,
		},
		{
			name: "其他会话",
			sig: signal("/org/freedesktop/login1/session/_7", login1SessionIface,
				map[string]dbus.Variant{lockedHintProperty: dbus.MakeVariant(true)},
				[]string{}),
			want: false,
		},
		{
			name: "其他接口",
			sig: signal(path, "org.freedesktop.login1.User",
				map[string]dbus.Variant{lockedHintProperty: dbus.MakeVariant(true)},
				[]string{}),
			want: false,
		},
		{
			name: "其他信号",
			sig: &dbus.Signal{
				Path: path,
				Name: "org.freedesktop.login1.Session.Lock",
			},
			want: false,
		},
		{
			name: "信号体不完整",
			sig:  signal(path, login1SessionIface),
			want: false,
		},
		{
			name: "nil 信号",
			sig:  nil,
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, LockedHintChanged(tt.sig, path))
		})
	}
}

// TestSourceKind 测试信号源类型名称
func TestSourceKind(t *testing.T) {
	kinds := []string{
		SourceKindPropertyWatch,
		SourceKindEventLoop,
		SourceKindPollDictionary,
		SourceKindUnsupported,
	}
	assert.Contains(t, kinds, SourceKind())
}
