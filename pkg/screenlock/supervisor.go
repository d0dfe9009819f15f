package screenlock

import (
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/chenyang-zz/lockwatch/internal/platform"
	"github.com/shirou/gopsutil/v4/host"
	"go.uber.org/zap"
)

// DefaultInterval 每次迭代之后的固定等待时间
const DefaultInterval = time.Second

// Phase 监控任务阶段
type Phase string

const (
	// PhaseStarting 正在获取信号源
	PhaseStarting Phase = "starting"

	// PhaseRunning 正在循环读取状态
	PhaseRunning Phase = "running"

	// PhaseTerminated 已终止（终态，不会重启）
	PhaseTerminated Phase = "terminated"
)

// SourceOpener 信号源获取函数
//
// 在监控 goroutine 中调用，返回的信号源也只在该 goroutine 中使用。
type SourceOpener func() (platform.LockSource, error)

// Status 监控任务状态快照
type Status struct {
	Phase      Phase     `json:"phase"`
	Locked     bool      `json:"locked"`
	Payload    string    `json:"payload"`
	SourceKind string    `json:"source_kind"`
	Emitted    int       `json:"emitted"`
	LastError  string    `json:"last_error,omitempty"`
	StartedAt  time.Time `json:"started_at"`
	Platform   string    `json:"platform"`
}

// Supervisor 会话锁定监控任务
//
// 状态机：Starting → Running → Terminated。
// 获取或读取信号源失败都会直接终止，没有重启逻辑。
// 每处理完一次读数（无论是否变化）都等待 interval，避免轮询型信号源空转。
type Supervisor struct {
	open       SourceOpener
	emitter    *Emitter
	interval   time.Duration
	sourceKind string

	// sleep 迭代间等待，测试中可替换
	sleep func(time.Duration)

	// last 记住的上一次状态，只在 Run 所在 goroutine 中读写
	last LockState

	// mu 保护 status
	mu     sync.RWMutex
	status Status

	done chan struct{}
}

// NewSupervisor 创建监控任务
//
// Parameters:
//   - open: 信号源获取函数，为 nil 时使用 platform.OpenLockSource
//   - emitter: 通知发布器
//   - interval: 迭代间隔，<= 0 表示不等待
//
// Returns: *Supervisor - 新创建的监控任务（尚未运行）
func NewSupervisor(open SourceOpener, emitter *Emitter, interval time.Duration) *Supervisor {
	if open == nil {
		open = platform.OpenLockSource
	}
	kind := platform.SourceKind()

	return &Supervisor{
		open:       open,
		emitter:    emitter,
		interval:   interval,
		sourceKind: kind,
		sleep:      time.Sleep,
		last:       Unlocked,
		status: Status{
			Phase:      PhaseStarting,
			Payload:    Unlocked.String(),
			SourceKind: kind,
			Platform:   runtime.GOOS,
		},
		done: make(chan struct{}),
	}
}

// Run 在当前 goroutine 中执行状态机，直到任务终止才返回
func (s *Supervisor) Run() {
	defer close(s.done)

	s.update(func(st *Status) {
		st.StartedAt = time.Now()
		st.Platform = describeHost()
	})

	log().Info("启动会话锁定监控",
		zap.String("source", s.sourceKind),
		zap.String("platform", s.Status().Platform),
		zap.Duration("interval", s.interval),
	)

	source, err := s.open()
	if err != nil {
		s.terminate("获取信号源失败", err)
		return
	}
	defer func() {
		if err := source.Close(); err != nil {
			log().Warn("释放信号源失败", zap.Error(err))
		}
	}()

	s.update(func(st *Status) { st.Phase = PhaseRunning })

	for {
		observed, err := source.Next()
		if err != nil {
			s.terminate("读取锁定状态失败", err)
			return
		}

		s.observe(LockState(observed))

		if s.interval > 0 {
			s.sleep(s.interval)
		}
	}
}

// observe 去抖并在变化时发布
func (s *Supervisor) observe(observed LockState) {
	next, changed := Debounce(s.last, observed)
	if !changed {
		return
	}

	s.last = next
	emitted := s.emitter.Emit(next)

	s.update(func(st *Status) {
		st.Locked = bool(next)
		st.Payload = next.String()
		if emitted {
			st.Emitted++
		}
	})
}

// terminate 记录失败并进入终态
func (s *Supervisor) terminate(msg string, err error) {
	log().Warn(msg+"，监控任务终止",
		zap.String("source", s.sourceKind),
		zap.Error(err),
	)
	s.update(func(st *Status) {
		st.Phase = PhaseTerminated
		st.LastError = err.Error()
	})
}

func (s *Supervisor) update(fn func(st *Status)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(&s.status)
}

// Status 返回当前状态快照
func (s *Supervisor) Status() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.status
}

// Done 任务终止后关闭的通道
func (s *Supervisor) Done() <-chan struct{} {
	return s.done
}

// describeHost 使用 gopsutil 描述当前主机平台，失败时退回 GOOS/GOARCH
func describeHost() string {
	info, err := host.Info()
	if err != nil || info.Platform == "" {
		return runtime.GOOS + "/" + runtime.GOARCH
	}
	if info.PlatformVersion == "" {
		return fmt.Sprintf("%s (%s/%s)", info.Platform, info.OS, info.KernelArch)
	}
	return fmt.Sprintf("%s %s (%s/%s)", info.Platform, info.PlatformVersion, info.OS, info.KernelArch)
}
