package storage

import (
	"database/sql"
	"testing"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupTestDB 创建已迁移的临时数据库
func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := NewSQLiteDB(SQLiteConfig{Path: t.TempDir() + "/test.db"})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	require.NoError(t, RunMigrations(db))
	return db
}

// TestRunMigrations 测试数据库迁移
//
// 验证所有迁移脚本能够正确执行
func TestRunMigrations(t *testing.T) {
	db := setupTestDB(t)

	for _, table := range []string{"lock_events", "schema_migrations"} {
		var count int
		err := db.QueryRow("SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name=?", table).Scan(&count)
		require.NoError(t, err)
		assert.Equal(t, 1, count, "表 %s 应该存在", table)
	}

	for _, index := range []string{"idx_lock_events_occurred_at", "idx_lock_events_payload"} {
		var count int
		err := db.QueryRow("SELECT COUNT(*) FROM sqlite_master WHERE type='index' AND name=?", index).Scan(&count)
		require.NoError(t, err)
		assert.Equal(t, 1, count, "索引 %s 应该存在", index)
	}

	var version int
	require.NoError(t, db.QueryRow("SELECT MAX(version) FROM schema_migrations").Scan(&version))
	assert.Equal(t, len(migrations), version)
}

// TestRunMigrations_Idempotent 测试迁移的幂等性
func TestRunMigrations_Idempotent(t *testing.T) {
	db := setupTestDB(t)

	require.NoError(t, RunMigrations(db))

	var count int
	require.NoError(t, db.QueryRow("SELECT COUNT(*) FROM schema_migrations").Scan(&count))
	assert.Equal(t, len(migrations), count, "不应有重复的迁移记录")
}

// TestRunMigrations_Partial 测试部分迁移后的增量迁移
func TestRunMigrations_Partial(t *testing.T) {
	db, err := NewSQLiteDB(SQLiteConfig{Path: t.TempDir() + "/test.db"})
	require.NoError(t, err)
	defer db.Close()

	_, err = db.Exec(migrations[0].SQL)
	require.NoError(t, err)
	_, err = db.Exec("INSERT INTO schema_migrations (version) VALUES (1)")
	require.NoError(t, err)

	require.NoError(t, RunMigrations(db))

	var count int
	require.NoError(t, db.QueryRow("SELECT COUNT(*) FROM schema_migrations").Scan(&count))
	assert.Equal(t, len(migrations), count)
}

// TestRunMigrations_PayloadConstraint 测试载荷只能是 lock/unlock
func TestRunMigrations_PayloadConstraint(t *testing.T) {
	db := setupTestDB(t)

	_, err := db.Exec(
		"INSERT INTO lock_events (uuid, name, payload, occurred_at) VALUES (?, ?, ?, CURRENT_TIMESTAMP)",
		"id-1", "n", "sleep",
	)
	assert.Error(t, err)
}

// TestRunMigrations_ConnectionClosed 测试数据库连接关闭的情况
func TestRunMigrations_ConnectionClosed(t *testing.T) {
	db, err := NewSQLiteDB(SQLiteConfig{Path: t.TempDir() + "/test.db"})
	require.NoError(t, err)

	db.Close()

	assert.Error(t, RunMigrations(db), "关闭的数据库连接应该返回错误")
}
