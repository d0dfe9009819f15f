package storage

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestNewSQLiteDB 测试创建 SQLite 数据库连接
//
// 验证能够成功创建数据库连接并配置 WAL 模式
func TestNewSQLiteDB(t *testing.T) {
	config := SQLiteConfig{
		Path:            t.TempDir() + "/test.db",
		MaxOpenConns:    1,
		MaxIdleConns:    1,
		ConnMaxLifetime: 5 * time.Minute,
	}

	db, err := NewSQLiteDB(config)
	require.NoError(t, err)
	require.NotNil(t, db)
	defer db.Close()

	var mode string
	require.NoError(t, db.QueryRow("PRAGMA journal_mode").Scan(&mode))
	assert.Equal(t, "wal", mode)
}

// TestNewSQLiteDB_CreatesDirectory 测试自动创建数据库目录
func TestNewSQLiteDB_CreatesDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".lockwatch", "nested", "lockwatch.db")

	db, err := NewSQLiteDB(SQLiteConfig{Path: path})
	require.NoError(t, err)
	defer db.Close()

	_, err = os.Stat(filepath.Dir(path))
	assert.NoError(t, err)
}

// TestNewSQLiteDB_InvalidPath 测试无效路径的错误处理
//
// 父路径是普通文件时无法创建目录
func TestNewSQLiteDB_InvalidPath(t *testing.T) {
	blocker := filepath.Join(t.TempDir(), "blocker")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0644))

	db, err := NewSQLiteDB(SQLiteConfig{Path: filepath.Join(blocker, "sub", "test.db")})
	assert.Error(t, err, "应该返回错误")
	assert.Nil(t, db, "数据库连接应该为空")
}

// TestNewSQLiteDB_ConfigOptions 测试数据库配置选项
func TestNewSQLiteDB_ConfigOptions(t *testing.T) {
	tests := []struct {
		name   string
		config SQLiteConfig
	}{
		{
			name:   "最小配置",
			config: SQLiteConfig{Path: t.TempDir() + "/minimal.db"},
		},
		{
			name: "完整配置",
			config: SQLiteConfig{
				Path:            t.TempDir() + "/full.db",
				MaxOpenConns:    4,
				MaxIdleConns:    2,
				ConnMaxLifetime: 10 * time.Minute,
			},
		},
		{
			name: "零连接数",
			config: SQLiteConfig{
				Path:         t.TempDir() + "/zero.db",
				MaxOpenConns: 0,
				MaxIdleConns: 0,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, err := NewSQLiteDB(tt.config)
			require.NoError(t, err)
			defer db.Close()
			assert.NoError(t, db.Ping())
		})
	}
}

// TestNewSQLiteDB_MemoryDatabase 测试内存数据库
func TestNewSQLiteDB_MemoryDatabase(t *testing.T) {
	db, err := NewSQLiteDB(SQLiteConfig{Path: ":memory:", MaxOpenConns: 1})
	require.NoError(t, err)
	defer db.Close()

	_, err = db.Exec("CREATE TABLE IF NOT EXISTS probe (id INTEGER PRIMARY KEY)")
	require.NoError(t, err)
}
