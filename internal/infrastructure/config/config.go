/**
 * Package config 提供配置管理功能
 *
 * 负责加载和管理应用的配置信息
 */

package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/chenyang-zz/lockwatch/pkg/logger"
	"gopkg.in/yaml.v3"
)

/**
 * Config 应用配置结构体
 *
 * 包含应用的所有可配置参数
 */
type Config struct {
	// Application 应用基本配置
	Application ApplicationConfig `yaml:"application"`

	// Monitor 监控配置
	Monitor MonitorConfig `yaml:"monitor"`

	// Storage 存储配置
	Storage StorageConfig `yaml:"storage"`

	// History 锁定历史配置
	History HistoryConfig `yaml:"history"`

	// Events 内部事件总线配置
	Events EventsConfig `yaml:"events"`

	// Logging 日志配置
	Logging LoggingConfig `yaml:"logging"`
}

/**
 * ApplicationConfig 应用基本配置
 */
type ApplicationConfig struct {
	/** 应用名称 */
	Name string `yaml:"name"`

	/** 应用版本 */
	Version string `yaml:"version"`

	/** 日志级别 */
	LogLevel string `yaml:"log_level"`

	/** 是否启用调试模式 */
	Debug bool `yaml:"debug"`
}

/**
 * MonitorConfig 监控配置
 */
type MonitorConfig struct {
	/** 每次读数之后的等待间隔，如 "1s" */
	PollInterval string `yaml:"poll_interval"`
}

/**
 * StorageConfig 存储配置
 */
type StorageConfig struct {
	/** SQLite 配置 */
	SQLite SQLiteConfig `yaml:"sqlite"`
}

/**
 * SQLiteConfig SQLite 配置
 */
type SQLiteConfig struct {
	/** 数据库文件路径 */
	Path string `yaml:"path"`

	/** 最大打开连接数 */
	MaxOpenConns int `yaml:"max_open_conns"`

	/** 最大空闲连接数 */
	MaxIdleConns int `yaml:"max_idle_conns"`

	/** 连接最大生命周期 */
	ConnMaxLifetime string `yaml:"conn_max_lifetime"`
}

/**
 * HistoryConfig 锁定历史配置
 */
type HistoryConfig struct {
	/** 是否记录锁定历史 */
	Enabled bool `yaml:"enabled"`

	/** 历史保留天数，<= 0 表示永久保留 */
	RetentionDays int `yaml:"retention_days"`

	/** 默认查询条数 */
	Limit int `yaml:"limit"`
}

/**
 * EventsConfig 内部事件总线配置
 */
type EventsConfig struct {
	/** 是否异步交付（每个订阅者一个 goroutine） */
	Async bool `yaml:"async"`

	/** 每个订阅者的异步缓冲区大小 */
	BufferSize int `yaml:"buffer_size"`
}

/**
 * LoggingConfig 日志配置
 */
type LoggingConfig struct {
	/** 日志级别 */
	Level string `yaml:"level"`

	/** 日志格式（console/json），json 对应生产环境 logger */
	Format string `yaml:"format"`

	/** 输出目标（stdout/stderr/file） */
	Output string `yaml:"output"`

	/** 文件配置 */
	File FileConfig `yaml:"file"`
}

/**
 * FileConfig 文件配置
 */
type FileConfig struct {
	/** 日志文件路径 */
	Path string `yaml:"path"`

	/** 最大文件大小（MB） */
	MaxSize int `yaml:"max_size"`

	/** 最大备份文件数 */
	MaxBackups int `yaml:"max_backups"`

	/** 最大保留天数 */
	MaxAge int `yaml:"max_age"`

	/** 是否压缩 */
	Compress bool `yaml:"compress"`
}

// ErrInvalidConfig 配置校验失败
var ErrInvalidConfig = errors.New("invalid config")

/**
 * DefaultPath 默认配置文件路径 ~/.lockwatch/config.yaml
 *
 * Returns:
 *   - string: 配置文件路径
 *   - error: 无法获取用户主目录时返回错误
 */
func DefaultPath() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(homeDir, ".lockwatch", "config.yaml"), nil
}

/**
 * Load 加载配置文件
 *
 * 从默认路径加载配置文件，不存在时使用默认配置
 *
 * Returns:
 *   - *Config: 加载的配置
 *   - error: 错误信息
 */
func Load() (*Config, error) {
	configPath, err := DefaultPath()
	if err != nil {
		return nil, err
	}

	// 这里还不能打日志：logger 要等配置加载完才按配置初始化
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return LoadDefault()
	}

	return LoadFrom(configPath)
}

/**
 * LoadFrom 从指定路径加载配置文件
 *
 * 文件中未出现的字段保留默认值；加载后展开环境变量并校验。
 *
 * Parameters:
 *   - path: 配置文件路径
 *
 * Returns:
 *   - *Config: 加载的配置
 *   - error: 读取、解析或校验失败时返回错误
 */
func LoadFrom(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("读取配置文件失败: %w", err)
	}

	return Parse(data)
}

/**
 * Parse 解析 YAML 配置内容
 *
 * Parameters:
 *   - data: YAML 内容
 *
 * Returns:
 *   - *Config: 解析后的配置（以默认配置为底）
 *   - error: 解析或校验失败时返回错误
 */
func Parse(data []byte) (*Config, error) {
	config, err := LoadDefault()
	if err != nil {
		return nil, err
	}

	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(config); err != nil {
		// 空文件视为全部使用默认值
		if !errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("解析配置文件失败: %w", err)
		}
	}

	expandEnvVars(config)

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

/**
 * LoadDefault 加载默认配置
 *
 * Returns:
 *   - *Config: 默认配置
 *   - error: 错误信息
 */
func LoadDefault() (*Config, error) {
	config := &Config{
		Application: ApplicationConfig{
			Name:     "LockWatch",
			Version:  "1.0.0",
			LogLevel: "info",
		},
		Monitor: MonitorConfig{
			PollInterval: "1s",
		},
		Storage: StorageConfig{
			SQLite: SQLiteConfig{
				Path:            "${HOME}/.lockwatch/lockwatch.db",
				MaxOpenConns:    1,
				MaxIdleConns:    1,
				ConnMaxLifetime: "1h",
			},
		},
		History: HistoryConfig{
			Enabled:       true,
			RetentionDays: 30,
			Limit:         50,
		},
		Events: EventsConfig{
			Async:      true,
			BufferSize: 256,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
			Output: "stdout",
			File: FileConfig{
				Path:       "${HOME}/.lockwatch/logs/lockwatch.log",
				MaxSize:    10,
				MaxBackups: 3,
				MaxAge:     28,
			},
		},
	}

	expandEnvVars(config)
	return config, nil
}

/**
 * Validate 校验配置
 *
 * Returns:
 *   - error: 校验失败时返回包装了 ErrInvalidConfig 的错误
 */
func (c *Config) Validate() error {
	interval, err := time.ParseDuration(c.Monitor.PollInterval)
	if err != nil {
		return fmt.Errorf("%w: monitor.poll_interval %q: %v", ErrInvalidConfig, c.Monitor.PollInterval, err)
	}
	if interval <= 0 {
		return fmt.Errorf("%w: monitor.poll_interval must be positive", ErrInvalidConfig)
	}

	if c.Storage.SQLite.ConnMaxLifetime != "" {
		if _, err := time.ParseDuration(c.Storage.SQLite.ConnMaxLifetime); err != nil {
			return fmt.Errorf("%w: storage.sqlite.conn_max_lifetime %q: %v", ErrInvalidConfig, c.Storage.SQLite.ConnMaxLifetime, err)
		}
	}

	if c.History.Enabled && c.Storage.SQLite.Path == "" {
		return fmt.Errorf("%w: history requires storage.sqlite.path", ErrInvalidConfig)
	}

	if c.History.Limit < 0 {
		return fmt.Errorf("%w: history.limit must not be negative", ErrInvalidConfig)
	}

	if c.Events.BufferSize < 0 {
		return fmt.Errorf("%w: events.buffer_size must not be negative", ErrInvalidConfig)
	}

	switch c.Logging.Output {
	case "", "stdout", "stderr":
	case "file":
		if c.Logging.File.Path == "" {
			return fmt.Errorf("%w: logging.output=file requires logging.file.path", ErrInvalidConfig)
		}
	default:
		return fmt.Errorf("%w: unknown logging.output %q", ErrInvalidConfig, c.Logging.Output)
	}

	return nil
}

/**
 * PollInterval 返回解析后的监控间隔
 *
 * 无法解析时返回 1 秒（Validate 会先拦截非法值）
 */
func (c *Config) PollInterval() time.Duration {
	interval, err := time.ParseDuration(c.Monitor.PollInterval)
	if err != nil || interval <= 0 {
		return time.Second
	}
	return interval
}

/**
 * ConnMaxLifetimeDuration 返回解析后的连接最大生命周期，未设置时为 0（不限制）
 */
func (c SQLiteConfig) ConnMaxLifetimeDuration() time.Duration {
	lifetime, err := time.ParseDuration(c.ConnMaxLifetime)
	if err != nil {
		return 0
	}
	return lifetime
}

/**
 * LoggerOptions 把日志配置转换为 logger.Options
 *
 * format=json 使用生产环境 logger；output=stderr 时控制台日志写 stderr；
 * output=file 时写入轮转文件。
 * application.debug 为 true 时强制 debug 级别。
 */
func (c *Config) LoggerOptions() logger.Options {
	opts := logger.Options{
		Env:   "development",
		Level: c.Logging.Level,
	}
	if c.Logging.Format == "json" {
		opts.Env = "production"
	}
	if c.Application.Debug {
		opts.Level = "debug"
	}
	if c.Logging.Output == "stderr" {
		opts.Stderr = true
	}
	if c.Logging.Output == "file" {
		opts.File = c.Logging.File.Path
		opts.MaxSizeMB = c.Logging.File.MaxSize
		opts.MaxBackups = c.Logging.File.MaxBackups
		opts.MaxAgeDays = c.Logging.File.MaxAge
		opts.Compress = c.Logging.File.Compress
	}
	return opts
}

/**
 * expandEnvVars 展开环境变量
 *
 * 替换路径类字段中的环境变量占位符，如 ${HOME}
 *
 * Parameters:
 *   - config: 配置对象
 */
func expandEnvVars(config *Config) {
	config.Storage.SQLite.Path = expandPath(config.Storage.SQLite.Path)
	config.Logging.File.Path = expandPath(config.Logging.File.Path)
}

// expandPath 展开单个路径，Windows 下 HOME 缺失时使用 USERPROFILE
func expandPath(path string) string {
	return os.Expand(path, func(key string) string {
		value := os.Getenv(key)
		if value == "" && key == "HOME" {
			value = os.Getenv("USERPROFILE")
		}
		return value
	})
}
