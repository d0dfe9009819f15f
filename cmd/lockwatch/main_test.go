package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/chenyang-zz/lockwatch/internal/infrastructure/storage"
	"github.com/chenyang-zz/lockwatch/pkg/logger"
	"github.com/chenyang-zz/lockwatch/pkg/screenlock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

// failingHistory 写入总是失败的历史仓储
type failingHistory struct {
	storage.LockEventRepository
}

func (failingHistory) Save(storage.LockEvent) error {
	return errors.New("disk full")
}

// newHistoryRepo 创建临时目录下的历史仓储
func newHistoryRepo(t *testing.T) *storage.SQLiteLockEventRepository {
	t.Helper()

	db, err := storage.NewSQLiteDB(storage.SQLiteConfig{Path: filepath.Join(t.TempDir(), "history.db")})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, storage.RunMigrations(db))

	return storage.NewSQLiteLockEventRepository(db)
}

// TestLineSinkText 测试文本输出
func TestLineSinkText(t *testing.T) {
	var buf bytes.Buffer
	sink := newLineSink(&buf, false)
	sink.now = func() time.Time { return time.Date(2024, 1, 29, 15, 4, 5, 0, time.UTC) }

	require.NoError(t, sink.Publish(screenlock.EventName, "lock"))
	require.NoError(t, sink.Publish(screenlock.EventName, "unlock"))

	assert.Equal(t, "2024-01-29T15:04:05Z\tlock\n2024-01-29T15:04:05Z\tunlock\n", buf.String())
}

// TestLineSinkJSON 测试 JSON 行输出并写入历史
func TestLineSinkJSON(t *testing.T) {
	var buf bytes.Buffer
	sink := newLineSink(&buf, true)
	sink.history = newHistoryRepo(t)

	require.NoError(t, sink.Publish(screenlock.EventName, "lock"))

	var event storage.LockEvent
	require.NoError(t, json.Unmarshal(buf.Bytes(), &event))
	assert.Equal(t, screenlock.EventName, event.Name)
	assert.Equal(t, "lock", event.Payload)
	assert.NotEmpty(t, event.ID)

	list, err := sink.history.FindRecent(5)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, event.ID, list[0].ID)
}

// TestPrintHistory 测试历史输出
func TestPrintHistory(t *testing.T) {
	at := time.Date(2024, 1, 29, 15, 4, 5, 0, time.UTC)
	list := []storage.LockEvent{
		{ID: "a", Name: screenlock.EventName, Payload: "lock", OccurredAt: at},
		{ID: "b", Name: screenlock.EventName, Payload: "unlock", OccurredAt: at.Add(time.Minute)},
	}

	var text bytes.Buffer
	require.NoError(t, printHistory(&text, list, false))
	lines := strings.Split(strings.TrimSpace(text.String()), "\n")
	require.Len(t, lines, 2)
	assert.True(t, strings.HasSuffix(lines[0], "\tlock"))
	assert.True(t, strings.HasSuffix(lines[1], "\tunlock"))

	var jsonOut bytes.Buffer
	require.NoError(t, printHistory(&jsonOut, list, true))
	assert.Equal(t, 2, strings.Count(jsonOut.String(), "\n"))
	assert.Contains(t, jsonOut.String(), `"payload":"unlock"`)
}

// TestVersionCommand 测试版本命令
func TestVersionCommand(t *testing.T) {
	var buf bytes.Buffer
	rootCmd.SetOut(&buf)
	rootCmd.SetArgs([]string{"version"})
	defer rootCmd.SetArgs(nil)

	require.NoError(t, rootCmd.Execute())
	assert.Contains(t, buf.String(), "lockwatch v"+version)
	assert.Contains(t, buf.String(), "source:")
}

// TestLineSinkHistoryFailure 测试写历史失败不影响已输出的事件
func TestLineSinkHistoryFailure(t *testing.T) {
	var buf bytes.Buffer
	sink := newLineSink(&buf, false)
	sink.history = failingHistory{}

	require.NoError(t, sink.Publish(screenlock.EventName, "lock"), "事件行已输出，不应向监控任务报错")
	assert.True(t, strings.HasSuffix(buf.String(), "\tlock\n"))
}

// TestQueryHistory 测试按条数和按时间窗口查询历史
func TestQueryHistory(t *testing.T) {
	repo := newHistoryRepo(t)

	now := time.Date(2024, 1, 29, 12, 0, 0, 0, time.UTC)
	for i, payload := range []string{"lock", "unlock", "lock"} {
		require.NoError(t, repo.Save(storage.LockEvent{
			ID:         string(rune('a' + i)),
			Name:       screenlock.EventName,
			Payload:    payload,
			OccurredAt: now.Add(-time.Duration(48-24*i) * time.Hour),
		}))
	}

	recent, err := queryHistory(repo, 2, 0, now)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, "b", recent[0].ID)
	assert.Equal(t, "c", recent[1].ID)

	window, err := queryHistory(repo, 2, 30*time.Hour, now)
	require.NoError(t, err)
	require.Len(t, window, 2)
	assert.Equal(t, "unlock", window[0].Payload)
	assert.Equal(t, "lock", window[1].Payload)
}

// TestLoadConfigLoggerLevel 测试没有配置文件时 CLI 日志级别仍然生效
//
// 加载配置前 logger 可能已经按环境变量懒加载，loadConfig 必须替换它。
func TestLoadConfigLoggerLevel(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("USERPROFILE", home)
	t.Setenv("ENV", "development")

	cfgFile, verbose = "", false
	logger.Debug("加载配置之前的日志")

	cfg, err := loadConfig()
	require.NoError(t, err)
	assert.NotNil(t, cfg)

	core := logger.GetLogger().Core()
	assert.False(t, core.Enabled(zapcore.DebugLevel), "未指定 --verbose 时不应输出 debug 日志")
	assert.False(t, core.Enabled(zapcore.InfoLevel))
	assert.True(t, core.Enabled(zapcore.WarnLevel))
}
