/**
 * Package logger 提供结构化日志功能
 *
 * 基于 uber-go/zap 实现的结构化日志系统，文件输出通过 lumberjack 滚动切割。
 * 支持开发环境和生产环境的不同配置。
 */
package logger

import (
	"os"
	"strconv"
	"strings"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

var (
	// mu 保护下面的全局状态
	mu sync.RWMutex

	// logger 全局日志实例
	logger *zap.Logger

	// sugar 全局 sugared logger 实例（更方便使用）
	sugar *zap.SugaredLogger

	// configured 是否已经按显式选项初始化
	//
	// 只由环境变量懒加载出来的 logger 不算，InitWithOptions 会替换它。
	configured bool
)

// Options 日志初始化选项
//
// 零值字段使用默认值：环境 development，级别随环境而定，不写文件。
type Options struct {
	// Env 环境类型（development/production）
	Env string

	// Level 日志级别（debug/info/warn/error/fatal）
	Level string

	// File 日志文件路径，为空时只输出到控制台
	File string

	// MaxSizeMB 单个日志文件最大大小（MB）
	MaxSizeMB int

	// MaxBackups 保留的旧日志文件数
	MaxBackups int

	// MaxAgeDays 旧日志文件最大保留天数
	MaxAgeDays int

	// Compress 是否压缩旧日志文件
	Compress bool

	// Stderr 控制台日志写到 stderr 而不是 stdout
	Stderr bool
}

// InitLogger 初始化日志系统
//
// 根据环境变量配置日志系统：
//   - 开发环境：控制台彩色输出，Debug 级别
//   - 生产环境：JSON 格式，Info 级别
//
// 环境变量：
//   - ENV: 环境类型（development/production），默认为 development
//   - LOG_LEVEL: 日志级别（debug/info/warn/error/fatal），默认根据环境自动设置
//   - LOG_FILE: 日志文件路径（可选）
//   - LOG_MAX_SIZE / LOG_MAX_BACKUPS / LOG_MAX_AGE / LOG_COMPRESS: 文件滚动参数（可选）
//
// 已有 logger 时什么都不做。
//
// Returns: error - 初始化失败时返回错误
func InitLogger() error {
	mu.Lock()
	defer mu.Unlock()

	if logger != nil {
		return nil
	}
	return install(OptionsFromEnv())
}

// OptionsFromEnv 从环境变量构造日志选项
//
// Returns: Options - 日志选项
func OptionsFromEnv() Options {
	return Options{
		Env:        getEnv("ENV", "development"),
		Level:      getEnv("LOG_LEVEL", ""),
		File:       getEnv("LOG_FILE", ""),
		MaxSizeMB:  getEnvInt("LOG_MAX_SIZE", 0),
		MaxBackups: getEnvInt("LOG_MAX_BACKUPS", 0),
		MaxAgeDays: getEnvInt("LOG_MAX_AGE", 0),
		Compress:   getEnvBool("LOG_COMPRESS", false),
	}
}

// InitWithOptions 按指定选项初始化日志系统
//
// 宿主应用在加载配置后、启动监控前调用。加载配置期间打出的日志会
// 懒加载一个环境变量 logger，这里会替换掉它；第一次显式初始化之后
// 再调用不生效。
//
// Parameters:
//   - opts: 日志选项
//
// Returns: error - 初始化失败时返回错误
func InitWithOptions(opts Options) error {
	mu.Lock()
	defer mu.Unlock()

	if configured {
		return nil
	}
	if err := install(opts); err != nil {
		return err
	}
	configured = true
	return nil
}

// install 构建 logger 并替换全局实例，调用方持有 mu
func install(opts Options) error {
	var (
		built *zap.Logger
		err   error
	)
	if opts.Env == "production" {
		built, err = initProductionLogger(opts)
	} else {
		built, err = initDevelopmentLogger(opts)
	}
	if err != nil {
		return err
	}

	if logger != nil {
		_ = logger.Sync()
	}
	logger = built
	sugar = logger.Sugar()
	return nil
}

// initDevelopmentLogger 初始化开发环境日志
//
// 开发环境配置：
//   - 控制台输出，彩色级别
//   - Debug 级别（详细信息）
//   - 友好的时间格式（2024-01-29 15:04:05.123）
//   - 指定文件时额外写一份不带颜色的文件日志
//
// Returns:
//   - *zap.Logger: 配置好的 logger
//   - error: 初始化失败时返回错误
func initDevelopmentLogger(opts Options) (*zap.Logger, error) {
	encoderConfig := zapcore.EncoderConfig{
		TimeKey:        "time",
		LevelKey:       "level",
		NameKey:        "logger",
		CallerKey:      "caller",
		FunctionKey:    "",
		MessageKey:     "msg",
		StacktraceKey:  "stacktrace",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    zapcore.CapitalColorLevelEncoder,
		EncodeTime:     zapcore.TimeEncoderOfLayout("2006-01-02 15:04:05.999"),
		EncodeDuration: zapcore.SecondsDurationEncoder,
		EncodeCaller:   zapcore.ShortCallerEncoder,
	}

	level := parseLevel(opts.Level, zapcore.DebugLevel)

	cores := []zapcore.Core{
		zapcore.NewCore(
			zapcore.NewConsoleEncoder(encoderConfig),
			consoleSink(opts),
			level,
		),
	}

	if opts.File != "" {
		fileEncoderConfig := encoderConfig
		fileEncoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
		cores = append(cores, zapcore.NewCore(
			zapcore.NewConsoleEncoder(fileEncoderConfig),
			zapcore.AddSync(newRotatingWriter(opts)),
			level,
		))
	}

	return zap.New(zapcore.NewTee(cores...), zap.AddCaller(), zap.Development()), nil
}

// initProductionLogger 初始化生产环境日志
//
// 生产环境配置：
//   - JSON 格式（机器可解析）
//   - Info 级别（避免过多日志）
//   - 指定文件时只写文件（lumberjack 滚动），否则写 stdout
//
// Returns:
//   - *zap.Logger: 配置好的 logger
//   - error: 初始化失败时返回错误
func initProductionLogger(opts Options) (*zap.Logger, error) {
	config := zap.NewProductionEncoderConfig()
	config.TimeKey = "timestamp"
	config.EncodeLevel = zapcore.CapitalLevelEncoder
	config.EncodeTime = zapcore.ISO8601TimeEncoder
	config.EncodeCaller = zapcore.ShortCallerEncoder

	level := parseLevel(opts.Level, zapcore.InfoLevel)

	sink := consoleSink(opts)
	if opts.File != "" {
		sink = zapcore.AddSync(newRotatingWriter(opts))
	}

	core := zapcore.NewCore(zapcore.NewJSONEncoder(config), sink, level)
	return zap.New(core, zap.AddCaller(), zap.AddStacktrace(zapcore.ErrorLevel)), nil
}

// consoleSink 控制台输出目标
func consoleSink(opts Options) zapcore.WriteSyncer {
	if opts.Stderr {
		return zapcore.Lock(os.Stderr)
	}
	return zapcore.Lock(os.Stdout)
}

// newRotatingWriter 创建按大小滚动的日志文件 writer
func newRotatingWriter(opts Options) *lumberjack.Logger {
	maxSize := opts.MaxSizeMB
	if maxSize <= 0 {
		maxSize = 10
	}

	return &lumberjack.Logger{
		Filename:   opts.File,
		MaxSize:    maxSize,
		MaxBackups: opts.MaxBackups,
		MaxAge:     opts.MaxAgeDays,
		Compress:   opts.Compress,
	}
}

// parseLevel 解析日志级别，无法解析时使用默认级别
func parseLevel(level string, fallback zapcore.Level) zap.AtomicLevel {
	if level == "" {
		return zap.NewAtomicLevelAt(fallback)
	}
	parsed, err := zapcore.ParseLevel(level)
	if err != nil {
		return zap.NewAtomicLevelAt(fallback)
	}
	return zap.NewAtomicLevelAt(parsed)
}

// GetLogger 获取全局 logger 实例
//
// 如果日志系统未初始化，会自动初始化（读取环境变量）。
//
// Returns: *zap.Logger - 全局 logger 实例
func GetLogger() *zap.Logger {
	if l := current(); l != nil {
		return l
	}
	_ = InitLogger()
	if l := current(); l != nil {
		return l
	}
	return zap.NewNop()
}

// GetSugaredLogger 获取全局 sugared logger 实例
//
// Returns: *zap.SugaredLogger - 全局 sugared logger 实例
func GetSugaredLogger() *zap.SugaredLogger {
	GetLogger()

	mu.RLock()
	defer mu.RUnlock()
	if sugar == nil {
		return zap.NewNop().Sugar()
	}
	return sugar
}

// Sync 刷新日志缓冲区
//
// 应用退出前应该调用此方法确保所有日志都已写入。
// Returns: error - 刷新失败时返回错误
func Sync() error {
	if l := current(); l != nil {
		return l.Sync()
	}
	return nil
}

func current() *zap.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return logger
}

// Debug 记录 Debug 级别日志
func Debug(msg string, fields ...zap.Field) {
	GetLogger().Debug(msg, fields...)
}

// Info 记录 Info 级别日志
func Info(msg string, fields ...zap.Field) {
	GetLogger().Info(msg, fields...)
}

// Warn 记录 Warn 级别日志
func Warn(msg string, fields ...zap.Field) {
	GetLogger().Warn(msg, fields...)
}

// Error 记录 Error 级别日志
func Error(msg string, fields ...zap.Field) {
	GetLogger().Error(msg, fields...)
}

// Fatal 记录 Fatal 级别日志后退出程序
//
// 记录日志后会调用 os.Exit(1)。
func Fatal(msg string, fields ...zap.Field) {
	GetLogger().Fatal(msg, fields...)
}

// With 创建带有预设字段的 logger
//
// Parameters:
//   - fields: 预设的日志字段
//
// Returns: *zap.Logger - 带有预设字段的 logger
func With(fields ...zap.Field) *zap.Logger {
	return GetLogger().With(fields...)
}

// getEnv 获取环境变量，不存在时返回默认值
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt 获取整数环境变量，不存在或无法解析时返回默认值
func getEnvInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}
	return n
}

// getEnvBool 获取布尔环境变量，不存在或无法识别时返回默认值
func getEnvBool(key string, defaultValue bool) bool {
	switch strings.ToLower(os.Getenv(key)) {
	case "true", "1", "yes":
		return true
	case "false", "0", "no":
		return false
	default:
		return defaultValue
	}
}
