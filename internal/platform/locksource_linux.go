//go:build linux

package platform

import (
	"fmt"

	"github.com/chenyang-zz/lockwatch/pkg/logger"
	"github.com/godbus/dbus/v5"
	"go.uber.org/zap"
)

const (
	login1ManagerPath  = dbus.ObjectPath("/org/freedesktop/login1")
	login1AutoSession  = dbus.ObjectPath("/org/freedesktop/login1/session/auto")
	login1ManagerIface = "org.freedesktop.login1.Manager"
)

// LinuxLockSource 基于 systemd-logind 的会话锁定信号源
//
// 通过 system bus 订阅当前会话对象的 PropertiesChanged 信号，
// 每当 LockedHint 变化时重新读取属性值。
// 第一次调用 Next 直接返回当前值，之后每次调用阻塞到下一次变更。
type LinuxLockSource struct {
	// conn system bus 连接
	conn *dbus.Conn

	// session 当前会话对象代理
	session dbus.BusObject

	// path 当前会话的具体对象路径（auto 已解析）
	path dbus.ObjectPath

	// signals 属性变更信号通道，连接关闭时由 godbus 关闭
	signals chan *dbus.Signal

	// primed 是否已经返回过初始读数
	primed bool
}

// SourceKind 返回本平台编译进来的信号源类型
func SourceKind() string {
	return SourceKindPropertyWatch
}

// OpenLockSource 创建 Linux 会话锁定信号源
//
// 步骤：
//  1. 连接 system bus
//  2. 将 session/auto 解析为调用者的具体会话路径
//  3. 注册 PropertiesChanged 匹配规则并开始接收信号
//
// 任意一步失败都会关闭连接并返回错误。
//
// Returns: LockSource - 信号源实例；error - 获取失败
func OpenLockSource() (LockSource, error) {
	conn, err := dbus.ConnectSystemBus()
	if err != nil {
		return nil, fmt.Errorf("连接 system bus 失败: %w", err)
	}

	path, err := resolveSessionPath(conn)
	if err != nil {
		_ = conn.Close()
		return nil, err
	}

	if err := conn.AddMatchSignal(
		dbus.WithMatchObjectPath(path),
		dbus.WithMatchInterface(propertiesIface),
		dbus.WithMatchMember("PropertiesChanged"),
	); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("注册会话属性变更监听失败: %w", err)
	}

	signals := make(chan *dbus.Signal, 16)
	conn.Signal(signals)

	logger.Debug("已订阅会话属性变更",
		zap.String("component", "locksource"),
		zap.String("session_path", string(path)),
	)

	return &LinuxLockSource{
		conn:    conn,
		session: conn.Object(login1Service, path),
		path:    path,
		signals: signals,
	}, nil
}

// Next 返回下一次观测到的 LockedHint
//
// 首次调用立即读取当前值；之后阻塞等待 LockedHint 变更信号，
// 其他属性的变更会被忽略。信号通道关闭时返回 ErrSignalStreamClosed。
//
// Returns: bool - 是否锁定；error - 读取失败或通知流结束
func (s *LinuxLockSource) Next() (bool, error) {
	if !s.primed {
		s.primed = true
		return s.readLockedHint()
	}

	for sig := range s.signals {
		if !LockedHintChanged(sig, s.path) {
			continue
		}
		return s.readLockedHint()
	}

	return false, ErrSignalStreamClosed
}

// Close 取消信号订阅并关闭 system bus 连接
func (s *LinuxLockSource) Close() error {
	s.conn.RemoveSignal(s.signals)
	return s.conn.Close()
}

// readLockedHint 读取会话的 LockedHint 属性
func (s *LinuxLockSource) readLockedHint() (bool, error) {
	value, err := s.session.GetProperty(login1SessionIface + "." + lockedHintProperty)
	if err != nil {
		return false, fmt.Errorf("读取 LockedHint 失败: %w", err)
	}

	locked, ok := value.Value().(bool)
	if !ok {
		return false, fmt.Errorf("LockedHint 类型异常: %s", value.Signature())
	}
	return locked, nil
}

// resolveSessionPath 解析调用者所属会话的对象路径
//
// session/auto 只能用于方法调用和属性读取，信号总是从具体路径发出，
// 因此先读 auto 的 Id，再通过 Manager.GetSession 换成具体路径。
//
// Parameters:
//   - conn: system bus 连接
//
// Returns: dbus.ObjectPath - 会话对象路径；error - 解析失败
func resolveSessionPath(conn *dbus.Conn) (dbus.ObjectPath, error) {
	auto := conn.Object(login1Service, login1AutoSession)

	idVariant, err := auto.GetProperty(login1SessionIface + ".Id")
	if err != nil {
		return "", fmt.Errorf("获取当前会话 ID 失败: %w", err)
	}

	id, ok := idVariant.Value().(string)
	if !ok || id == "" {
		return "", fmt.Errorf("当前会话 ID 无效: %v", idVariant.Value())
	}

	var path dbus.ObjectPath
	manager := conn.Object(login1Service, login1ManagerPath)
	if err := manager.Call(login1ManagerIface+".GetSession", 0, id).Store(&path); err != nil {
		return "", fmt.Errorf("解析会话 %s 的对象路径失败: %w", id, err)
	}

	return path, nil
}
