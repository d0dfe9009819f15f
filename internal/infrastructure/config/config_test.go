package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestLoadDefault 测试默认配置
func TestLoadDefault(t *testing.T) {
	t.Setenv("HOME", "/home/tester")

	config, err := LoadDefault()
	require.NoError(t, err)

	assert.Equal(t, "LockWatch", config.Application.Name)
	assert.Equal(t, "1s", config.Monitor.PollInterval)
	assert.Equal(t, time.Second, config.PollInterval())
	assert.Equal(t, "/home/tester/.lockwatch/lockwatch.db", config.Storage.SQLite.Path)
	assert.Equal(t, time.Hour, config.Storage.SQLite.ConnMaxLifetimeDuration())
	assert.True(t, config.History.Enabled)
	assert.Equal(t, 30, config.History.RetentionDays)
	assert.NoError(t, config.Validate())
}

// TestLoadFrom 测试从文件加载并保留未配置字段的默认值
func TestLoadFrom(t *testing.T) {
	t.Setenv("LOCKWATCH_DATA", "/data")

	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
application:
  name: lockwatch-test
  debug: true
monitor:
  poll_interval: 250ms
storage:
  sqlite:
    path: ${LOCKWATCH_DATA}/history.db
history:
  retention_days: 7
logging:
  format: json
  output: file
  file:
    path: ${LOCKWATCH_DATA}/lockwatch.log
    max_size: 5
    compress: true
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	config, err := LoadFrom(path)
	require.NoError(t, err)

	assert.Equal(t, "lockwatch-test", config.Application.Name)
	assert.Equal(t, "1.0.0", config.Application.Version, "未配置字段应保留默认值")
	assert.Equal(t, 250*time.Millisecond, config.PollInterval())
	assert.Equal(t, "/data/history.db", config.Storage.SQLite.Path)
	assert.Equal(t, 7, config.History.RetentionDays)
	assert.Equal(t, 50, config.History.Limit)
	assert.True(t, config.Events.Async)
	assert.Equal(t, 256, config.Events.BufferSize)

	opts := config.LoggerOptions()
	assert.Equal(t, "production", opts.Env)
	assert.Equal(t, "debug", opts.Level)
	assert.Equal(t, "/data/lockwatch.log", opts.File)
	assert.Equal(t, 5, opts.MaxSizeMB)
	assert.True(t, opts.Compress)
}

// TestLoadFromMissingFile 测试文件不存在
func TestLoadFromMissingFile(t *testing.T) {
	_, err := LoadFrom(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

// TestParseEmpty 测试空配置文件使用默认值
func TestParseEmpty(t *testing.T) {
	config, err := Parse([]byte(""))
	require.NoError(t, err)
	assert.Equal(t, "1s", config.Monitor.PollInterval)
}

// TestParseUnknownField 测试未知字段被拒绝
func TestParseUnknownField(t *testing.T) {
	_, err := Parse([]byte("monitor:\n  sample_rate: 10ms\n"))
	assert.Error(t, err)
}

// TestValidate 测试配置校验
func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *Config)
	}{
		{"非法间隔", func(c *Config) { c.Monitor.PollInterval = "soon" }},
		{"零间隔", func(c *Config) { c.Monitor.PollInterval = "0s" }},
		{"负间隔", func(c *Config) { c.Monitor.PollInterval = "-1s" }},
		{"非法连接生命周期", func(c *Config) { c.Storage.SQLite.ConnMaxLifetime = "forever" }},
		{"历史缺少数据库路径", func(c *Config) { c.Storage.SQLite.Path = "" }},
		{"负查询条数", func(c *Config) { c.History.Limit = -1 }},
		{"负事件缓冲区", func(c *Config) { c.Events.BufferSize = -1 }},
		{"文件输出缺少路径", func(c *Config) {
			c.Logging.Output = "file"
			c.Logging.File.Path = ""
		}},
		{"未知输出", func(c *Config) { c.Logging.Output = "syslog" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config, err := LoadDefault()
			require.NoError(t, err)

			tt.mutate(config)
			assert.ErrorIs(t, config.Validate(), ErrInvalidConfig)
		})
	}
}

// TestLoggerOptionsStdout 测试标准输出日志选项
func TestLoggerOptionsStdout(t *testing.T) {
	config, err := LoadDefault()
	require.NoError(t, err)

	opts := config.LoggerOptions()
	assert.Equal(t, "development", opts.Env)
	assert.Equal(t, "info", opts.Level)
	assert.Empty(t, opts.File)
}

// TestLoggerOptionsStderr 测试控制台日志改写到 stderr
func TestLoggerOptionsStderr(t *testing.T) {
	config, err := Parse([]byte("logging:\n  output: stderr\n"))
	require.NoError(t, err)

	opts := config.LoggerOptions()
	assert.True(t, opts.Stderr)
	assert.Empty(t, opts.File)
}
