// Command lockwatch 在没有图形宿主的环境下运行会话锁定监控
package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/chenyang-zz/lockwatch/internal/infrastructure/config"
	"github.com/chenyang-zz/lockwatch/internal/infrastructure/storage"
	"github.com/chenyang-zz/lockwatch/internal/platform"
	"github.com/chenyang-zz/lockwatch/pkg/logger"
	"github.com/chenyang-zz/lockwatch/pkg/screenlock"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	version = "1.0.0"
	cfgFile string
	asJSON  bool
	record  bool
	verbose bool
	limit   int
	since   time.Duration
)

var rootCmd = &cobra.Command{
	Use:          "lockwatch",
	Short:        "Session lock monitor",
	Long:         `lockwatch - reports when the interactive desktop session is locked or unlocked on Linux, Windows and macOS`,
	SilenceUsage: true,
}

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Print lock/unlock transitions until interrupted",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runWatch(cmd.OutOrStdout())
	},
}

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Print recorded lock/unlock transitions",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runHistory(cmd.OutOrStdout())
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "lockwatch v%s (source: %s)\n", version, platform.SourceKind())
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ~/.lockwatch/config.yaml)")
	rootCmd.PersistentFlags().BoolVar(&asJSON, "json", false, "print one JSON object per line")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log at debug level")

	watchCmd.Flags().BoolVar(&record, "record", false, "also record transitions in the history database")
	historyCmd.Flags().IntVarP(&limit, "limit", "n", 0, "number of records (default from config)")
	historyCmd.Flags().DurationVar(&since, "since", 0, "only records from this long ago, e.g. 24h (ignores --limit)")

	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// loadConfig 加载配置并初始化日志
//
// stdout 留给事件行，控制台日志一律写 stderr；未配置日志文件时只输出 warn 以上。
func loadConfig() (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if cfgFile != "" {
		cfg, err = config.LoadFrom(cfgFile)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	opts := cfg.LoggerOptions()
	opts.Stderr = true
	if opts.File == "" && !verbose {
		opts.Level = "warn"
	}
	if verbose {
		opts.Level = "debug"
	}
	if err := logger.InitWithOptions(opts); err != nil {
		return nil, fmt.Errorf("failed to init logger: %w", err)
	}

	return cfg, nil
}

// openHistory 打开并迁移历史数据库
func openHistory(cfg *config.Config) (*storage.SQLiteLockEventRepository, func(), error) {
	db, err := storage.NewSQLiteDB(storage.SQLiteConfig{
		Path:            cfg.Storage.SQLite.Path,
		MaxOpenConns:    cfg.Storage.SQLite.MaxOpenConns,
		MaxIdleConns:    cfg.Storage.SQLite.MaxIdleConns,
		ConnMaxLifetime: cfg.Storage.SQLite.ConnMaxLifetimeDuration(),
	})
	if err != nil {
		return nil, nil, err
	}
	if err := storage.RunMigrations(db); err != nil {
		db.Close()
		return nil, nil, err
	}
	return storage.NewSQLiteLockEventRepository(db), func() { db.Close() }, nil
}

func runWatch(out io.Writer) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	defer logger.Sync()

	sink := newLineSink(out, asJSON)
	if record {
		repo, closeDB, err := openHistory(cfg)
		if err != nil {
			return fmt.Errorf("failed to open history: %w", err)
		}
		defer closeDB()
		sink.history = repo
	}

	if err := screenlock.SetHandle(sink); err != nil {
		return err
	}

	plugin := screenlock.Init(screenlock.WithInterval(cfg.PollInterval()))
	logger.Info("开始监听会话锁定状态",
		zap.String("component", "cli"),
		zap.String("source", platform.SourceKind()),
	)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	select {
	case <-sigChan:
		return nil
	case <-plugin.Done():
		status := plugin.GetStatus()
		return fmt.Errorf("monitor terminated (%s): %s", status.SourceKind, status.LastError)
	}
}

func runHistory(out io.Writer) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	defer logger.Sync()

	repo, closeDB, err := openHistory(cfg)
	if err != nil {
		return fmt.Errorf("failed to open history: %w", err)
	}
	defer closeDB()

	n := limit
	if n <= 0 {
		n = cfg.History.Limit
	}
	list, err := queryHistory(repo, n, since, time.Now())
	if err != nil {
		return err
	}

	return printHistory(out, list, asJSON)
}

// queryHistory 按时间窗口或条数查询历史，window > 0 时优先按时间窗口
func queryHistory(repo storage.LockEventRepository, n int, window time.Duration, now time.Time) ([]storage.LockEvent, error) {
	if window > 0 {
		return repo.FindByTimeRange(now.Add(-window), now)
	}
	return repo.FindRecent(n)
}

// printHistory 输出历史记录，每条一行
func printHistory(out io.Writer, list []storage.LockEvent, jsonLines bool) error {
	for _, event := range list {
		if jsonLines {
			if err := json.NewEncoder(out).Encode(event); err != nil {
				return err
			}
			continue
		}
		fmt.Fprintf(out, "%s\t%s\n", event.OccurredAt.Local().Format(time.RFC3339), event.Payload)
	}
	return nil
}

// lineSink 把状态变更逐行写到输出，可选地同时写入历史
type lineSink struct {
	mu       sync.Mutex
	out      io.Writer
	jsonMode bool
	now      func() time.Time
	history  storage.LockEventRepository
}

func newLineSink(out io.Writer, jsonMode bool) *lineSink {
	return &lineSink{out: out, jsonMode: jsonMode, now: time.Now}
}

// Publish 实现 screenlock.Sink
func (s *lineSink) Publish(eventName string, payload string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	event := storage.LockEvent{
		ID:         uuid.New().String(),
		Name:       eventName,
		Payload:    payload,
		OccurredAt: s.now(),
	}

	var err error
	if s.jsonMode {
		err = json.NewEncoder(s.out).Encode(event)
	} else {
		_, err = fmt.Fprintf(s.out, "%s\t%s\n", event.OccurredAt.Format(time.RFC3339), payload)
	}
	if err != nil {
		return err
	}

	// 事件行已经输出，写历史失败只记日志
	if s.history != nil {
		if err := s.history.Save(event); err != nil {
			logger.Warn("写入锁定历史失败",
				zap.String("component", "cli"),
				zap.String("payload", payload),
				zap.Error(err),
			)
		}
	}
	return nil
}
