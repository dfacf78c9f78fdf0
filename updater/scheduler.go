package updater

import (
	"context"
	"sync"
	"time"

	"github.com/cxbdasheng/dupdate/helper"
)

const (
	// StartupDelay 启动后首次检查的延迟
	StartupDelay = 3 * time.Second
	// PollInterval 定时检查间隔
	PollInterval = 4 * time.Hour
)

// Scheduler 负责按时触发检查：启动延迟一次，之后按固定间隔重复
type Scheduler struct {
	delay    time.Duration
	interval time.Duration
	check    func(ctx context.Context)

	mu      sync.Mutex
	cancel  context.CancelFunc
	trigger chan struct{}
	wg      sync.WaitGroup
}

// NewScheduler 创建调度器，check 在单独的 worker 协程中串行执行
func NewScheduler(delay, interval time.Duration, check func(ctx context.Context)) *Scheduler {
	return &Scheduler{
		delay:    delay,
		interval: interval,
		check:    check,
		trigger:  make(chan struct{}, 1),
	}
}

// Start 启动定时器，重复调用不会叠加定时器
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cancel != nil {
		helper.Error(helper.LogTypeUpdate, "调度器已启动，忽略重复启动")
		return
	}

	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	s.wg.Add(2)
	go s.timerLoop(ctx)
	go s.workerLoop(ctx)
	helper.Debug(helper.LogTypeUpdate, "调度器已启动, 首次检查延迟 %v, 检查间隔 %v", s.delay, s.interval)
}

// Stop 取消两个定时器并等待 worker 退出
func (s *Scheduler) Stop() {
	s.mu.Lock()
	cancel := s.cancel
	s.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	s.wg.Wait()
}

// Trigger 立即请求一次检查。已有待处理的触发时合并
func (s *Scheduler) Trigger() {
	select {
	case s.trigger <- struct{}{}:
	default:
	}
}

// timerLoop 只负责投递触发信号，从不阻塞在检查上
func (s *Scheduler) timerLoop(ctx context.Context) {
	defer s.wg.Done()

	startup := time.NewTimer(s.delay)
	defer startup.Stop()
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-startup.C:
			s.Trigger()
		case <-ticker.C:
			s.Trigger()
		}
	}
}

func (s *Scheduler) workerLoop(ctx context.Context) {
	defer s.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.trigger:
		}

		s.check(ctx)
	}
}
