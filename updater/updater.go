// Package updater 实现更新生命周期：定时检查、下载、待安装、安装，
// 并把每次状态变化以事件的形式推送给展示层。
package updater

import (
	"context"
	"time"
)

// Updater 组合调度器与控制器，整个进程只持有一个实例
type Updater struct {
	*Controller
	scheduler *Scheduler
}

// New 使用固定的启动延迟与检查间隔创建 Updater
func New(opts Options, source ReleaseSource, installer Installer, publisher Publisher) *Updater {
	return newWithSchedule(opts, StartupDelay, PollInterval, source, installer, publisher)
}

func newWithSchedule(opts Options, delay, interval time.Duration, source ReleaseSource, installer Installer, publisher Publisher) *Updater {
	u := &Updater{
		Controller: NewController(opts, source, installer, publisher),
	}
	u.scheduler = NewScheduler(delay, interval, func(ctx context.Context) {
		// 自动检查的失败由控制器记录并推送，这里不处理返回值
		_, _ = u.CheckForUpdates(ctx, false)
	})
	return u
}

// Start 启动调度器
func (u *Updater) Start(ctx context.Context) {
	u.scheduler.Start(ctx)
}

// Stop 停止调度器与后台下载，仅在进程退出时调用
func (u *Updater) Stop() {
	u.scheduler.Stop()
	u.Controller.Close()
}
