package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/chenyang-zz/lockwatch/pkg/events"
	"github.com/chenyang-zz/lockwatch/pkg/logger"
	"go.uber.org/zap"
)

// ErrNotSessionLockEvent 事件不是会话锁定事件
var ErrNotSessionLockEvent = errors.New("not a session lock event")

/**
 * LockEvent 一条锁定历史记录
 */
type LockEvent struct {
	// ID 事件 UUID（与总线事件 ID 相同）
	ID string `json:"id"`

	// Name 对外事件名
	Name string `json:"name"`

	// Payload "lock" 或 "unlock"
	Payload string `json:"payload"`

	// OccurredAt 发生时间
	OccurredAt time.Time `json:"occurred_at"`
}

// Locked 是否为锁定记录
func (e LockEvent) Locked() bool {
	return e.Payload == "lock"
}

/**
 * LockEventFromEvent 把总线上的会话锁定事件转换为历史记录
 *
 * Returns:
 *   - LockEvent: 历史记录
 *   - error: 事件类型或数据不匹配时返回 ErrNotSessionLockEvent
 */
func LockEventFromEvent(event events.Event) (LockEvent, error) {
	data, ok := event.SessionLock()
	if !ok {
		return LockEvent{}, fmt.Errorf("%w: type=%s", ErrNotSessionLockEvent, event.Type)
	}

	return LockEvent{
		ID:         event.ID,
		Name:       data.Name,
		Payload:    data.Payload,
		OccurredAt: event.Timestamp,
	}, nil
}

/**
 * LockEventRepository 锁定历史存储接口
 */
type LockEventRepository interface {
	// Save 保存一条记录
	Save(event LockEvent) error

	// FindRecent 查询最近的记录（从旧到新）
	FindRecent(limit int) ([]LockEvent, error)

	// FindByTimeRange 按时间范围查询
	FindByTimeRange(start, end time.Time) ([]LockEvent, error)

	// DeleteOlderThan 删除旧数据
	DeleteOlderThan(cutoff time.Time) (int64, error)

	// GetStats 获取统计信息
	GetStats() (*LockEventStats, error)
}

/**
 * LockEventStats 锁定历史统计
 */
type LockEventStats struct {
	// TotalCount 总记录数
	TotalCount int64 `json:"total_count"`

	// LockCount 锁定次数
	LockCount int64 `json:"lock_count"`

	// UnlockCount 解锁次数
	UnlockCount int64 `json:"unlock_count"`

	// Last 最近一条记录，没有记录时为 nil
	Last *LockEvent `json:"last,omitempty"`
}

/**
 * SQLiteLockEventRepository SQLite 锁定历史仓储实现
 */
type SQLiteLockEventRepository struct {
	db *sql.DB
}

/**
 * NewSQLiteLockEventRepository 创建 SQLite 锁定历史仓储
 *
 * Parameters:
 *   - db: 已执行迁移的数据库连接
 */
func NewSQLiteLockEventRepository(db *sql.DB) *SQLiteLockEventRepository {
	return &SQLiteLockEventRepository{db: db}
}

/**
 * Save 保存一条记录
 *
 * 时间统一以 UTC 存储。
 */
func (r *SQLiteLockEventRepository) Save(event LockEvent) error {
	_, err := r.db.Exec(
		"INSERT INTO lock_events (uuid, name, payload, occurred_at) VALUES (?, ?, ?, ?)",
		event.ID,
		event.Name,
		event.Payload,
		event.OccurredAt.UTC(),
	)
	if err != nil {
		logger.Error("保存锁定记录失败",
			zap.String("event_id", event.ID),
			zap.Error(err),
		)
		return fmt.Errorf("保存锁定记录失败: %w", err)
	}

	return nil
}

/**
 * FindRecent 查询最近的记录
 *
 * Parameters:
 *   - limit: 返回数量限制，<= 0 时返回空列表
 *
 * Returns: []LockEvent - 从旧到新排列的记录
 */
func (r *SQLiteLockEventRepository) FindRecent(limit int) ([]LockEvent, error) {
	if limit <= 0 {
		return []LockEvent{}, nil
	}

	rows, err := r.db.Query(`
		SELECT uuid, name, payload, occurred_at
		FROM lock_events
		ORDER BY occurred_at DESC, id DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("查询最近锁定记录失败: %w", err)
	}
	defer rows.Close()

	list, err := scanLockEvents(rows)
	if err != nil {
		return nil, err
	}

	// 反转顺序（从旧到新）
	for i, j := 0, len(list)-1; i < j; i, j = i+1, j-1 {
		list[i], list[j] = list[j], list[i]
	}

	return list, nil
}

/**
 * FindByTimeRange 按时间范围查询记录（含边界，从旧到新）
 */
func (r *SQLiteLockEventRepository) FindByTimeRange(start, end time.Time) ([]LockEvent, error) {
	rows, err := r.db.Query(`
		SELECT uuid, name, payload, occurred_at
		FROM lock_events
		WHERE occurred_at >= ? AND occurred_at <= ?
		ORDER BY occurred_at ASC, id ASC
	`, start.UTC(), end.UTC())
	if err != nil {
		return nil, fmt.Errorf("按时间范围查询锁定记录失败: %w", err)
	}
	defer rows.Close()

	return scanLockEvents(rows)
}

/**
 * DeleteOlderThan 删除早于指定时间的记录
 *
 * Returns: int64 - 删除的记录数
 */
func (r *SQLiteLockEventRepository) DeleteOlderThan(cutoff time.Time) (int64, error) {
	result, err := r.db.Exec("DELETE FROM lock_events WHERE occurred_at < ?", cutoff.UTC())
	if err != nil {
		return 0, fmt.Errorf("删除旧锁定记录失败: %w", err)
	}

	count, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("获取删除行数失败: %w", err)
	}

	if count > 0 {
		logger.Info("删除旧锁定记录",
			zap.Int64("count", count),
			zap.Time("cutoff", cutoff),
		)
	}

	return count, nil
}

/**
 * GetStats 获取统计信息
 */
func (r *SQLiteLockEventRepository) GetStats() (*LockEventStats, error) {
	stats := &LockEventStats{}

	err := r.db.QueryRow(`
		SELECT
			COUNT(*),
			COALESCE(SUM(CASE WHEN payload = 'lock' THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN payload = 'unlock' THEN 1 ELSE 0 END), 0)
		FROM lock_events
	`).Scan(&stats.TotalCount, &stats.LockCount, &stats.UnlockCount)
	if err != nil {
		return nil, fmt.Errorf("统计锁定记录失败: %w", err)
	}

	recent, err := r.FindRecent(1)
	if err != nil {
		return nil, err
	}
	if len(recent) == 1 {
		stats.Last = &recent[0]
	}

	return stats, nil
}

// scanLockEvents 扫描查询结果
func scanLockEvents(rows *sql.Rows) ([]LockEvent, error) {
	list := make([]LockEvent, 0)
	for rows.Next() {
		var event LockEvent
		if err := rows.Scan(&event.ID, &event.Name, &event.Payload, &event.OccurredAt); err != nil {
			return nil, fmt.Errorf("扫描锁定记录失败: %w", err)
		}
		list = append(list, event)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("遍历锁定记录失败: %w", err)
	}

	return list, nil
}
