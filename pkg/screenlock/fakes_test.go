package screenlock

import (
	"errors"
	"sync"

	"github.com/chenyang-zz/lockwatch/internal/platform"
)

var errFakeRead = errors.New("fake read failure")

// recordingSink 记录收到的事件
type recordingSink struct {
	mu       sync.Mutex
	names    []string
	payloads []string
	err      error
}

func newRecordingSink() *recordingSink {
	return &recordingSink{}
}

func (s *recordingSink) Publish(eventName string, payload string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.names = append(s.names, eventName)
	s.payloads = append(s.payloads, payload)
	return nil
}

func (s *recordingSink) Payloads() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.payloads...)
}

func (s *recordingSink) Names() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.names...)
}

// fakeSource 按顺序返回预设读数，读完后返回 errFakeRead
type fakeSource struct {
	mu       sync.Mutex
	readings []bool
	calls    int
	closed   bool

	// beforeNext 每次 Next 前调用，参数为本次调用序号（从 0 开始）
	beforeNext func(call int)

	// block 非 nil 时 Next 阻塞到通道关闭，然后返回 errFakeRead
	block chan struct{}
}

func (f *fakeSource) Next() (bool, error) {
	f.mu.Lock()
	call := f.calls
	f.calls++
	hook := f.beforeNext
	block := f.block
	f.mu.Unlock()

	if hook != nil {
		hook(call)
	}
	if block != nil {
		<-block
		return false, errFakeRead
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if call >= len(f.readings) {
		return false, errFakeRead
	}
	return f.readings[call], nil
}

func (f *fakeSource) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *fakeSource) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func (f *fakeSource) Closed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

// openerFor 返回固定信号源的获取函数
func openerFor(source *fakeSource) SourceOpener {
	return func() (platform.LockSource, error) {
		return source, nil
	}
}
