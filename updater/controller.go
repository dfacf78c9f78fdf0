package updater

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	goversion "github.com/hashicorp/go-version"
	"golang.org/x/sync/singleflight"

	"github.com/cxbdasheng/dupdate/helper"
)

// ReleaseSource 发布源客户端
type ReleaseSource interface {
	// QueryLatest 查询最新版本
	QueryLatest(ctx context.Context) (*UpdateInfo, error)
	// FetchPackage 下载最近一次 QueryLatest 解析到的更新包，每个进度都回调 onProgress
	FetchPackage(ctx context.Context, onProgress func(Progress)) (*Package, error)
}

// Installer 安装器，成功时由安装器负责结束并重启进程
type Installer interface {
	Install(ctx context.Context, pkg *Package, silent, relaunch bool) error
}

// Options Controller 配置
type Options struct {
	CurrentVersion string
	// AutoDownload 发现新版本后是否直接下载，无需确认
	AutoDownload bool
	// QueryTimeout 单次版本查询的超时，0 表示不限制
	QueryTimeout time.Duration
	// DownloadTimeout 单次下载的超时，0 表示不限制
	DownloadTimeout time.Duration
}

// Controller 更新生命周期控制器，持有唯一的更新状态
type Controller struct {
	source    ReleaseSource
	installer Installer
	publisher Publisher

	queryTimeout    time.Duration
	downloadTimeout time.Duration
	autoDownload    atomic.Bool

	mu    sync.Mutex
	state state

	checkGroup singleflight.Group

	lifetime context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup
}

// NewController 创建控制器，初始阶段为 Idle
func NewController(opts Options, source ReleaseSource, installer Installer, publisher Publisher) *Controller {
	if publisher == nil {
		publisher = Publishers{}
	}
	ctx, cancel := context.WithCancel(context.Background())
	c := &Controller{
		source:          source,
		installer:       installer,
		publisher:       publisher,
		queryTimeout:    opts.QueryTimeout,
		downloadTimeout: opts.DownloadTimeout,
		state: state{
			phase:          PhaseIdle,
			currentVersion: opts.CurrentVersion,
		},
		lifetime: ctx,
		cancel:   cancel,
	}
	c.autoDownload.Store(opts.AutoDownload)
	return c
}

// CurrentVersion 当前运行的版本
func (c *Controller) CurrentVersion() string {
	return c.state.currentVersion
}

// State 返回当前状态的副本
func (c *Controller) State() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.snapshot()
}

// AutoDownload 是否自动下载
func (c *Controller) AutoDownload() bool {
	return c.autoDownload.Load()
}

// SetAutoDownload 修改自动下载开关，对下一次检查生效
func (c *Controller) SetAutoDownload(enabled bool) {
	if c.autoDownload.Swap(enabled) != enabled {
		helper.Info(helper.LogTypeUpdate, "自动下载已设置为: %v", enabled)
	}
}

// Close 取消后台下载并等待其结束
func (c *Controller) Close() {
	c.cancel()
	c.wg.Wait()
}

// CheckForUpdates 检查新版本。
// 下载中或已下载时不重新查询，直接返回当前的待更新信息。
// 没有新版本时返回 nil。手动调用返回失败，自动调用只记录。
func (c *Controller) CheckForUpdates(ctx context.Context, manual bool) (*UpdateInfo, error) {
	if info, busy := c.busyInfo(); busy {
		helper.Info(helper.LogTypeUpdate, "正在处理版本 %s, 跳过本次检查", versionOf(info))
		return info, nil
	}

	v, err, _ := c.checkGroup.Do("check", func() (any, error) {
		return c.check(ctx)
	})
	if err != nil {
		if manual {
			return nil, err
		}
		return nil, nil
	}

	info, _ := v.(*UpdateInfo)
	if info == nil {
		return nil, nil
	}
	infoCopy := *info
	return &infoCopy, nil
}

// DownloadUpdate 下载已发现的新版本。下载中或已下载时为空操作。
func (c *Controller) DownloadUpdate(ctx context.Context, manual bool) error {
	c.mu.Lock()
	switch c.state.phase {
	case PhaseDownloading, PhaseDownloaded:
		c.mu.Unlock()
		helper.Info(helper.LogTypeUpdate, "更新已在下载或已下载完成, 忽略重复下载")
		return nil
	case PhaseAvailable:
	default:
		phase := c.state.phase
		c.mu.Unlock()
		return fmt.Errorf("%w: 下载需要处于 %s 阶段, 当前为 %s", ErrInvalidPhase, PhaseAvailable, phase)
	}
	c.state.phase = PhaseDownloading
	c.state.progress = nil
	c.mu.Unlock()

	if err := c.download(ctx); err != nil {
		if manual {
			return err
		}
	}
	return nil
}

// InstallAndRestart 安装已下载的更新并重启。
// 安装器拒绝时阶段恢复为 Downloaded 并返回错误。
func (c *Controller) InstallAndRestart(ctx context.Context) error {
	c.mu.Lock()
	if c.state.phase != PhaseDownloaded {
		phase := c.state.phase
		c.mu.Unlock()
		return fmt.Errorf("%w: 当前阶段为 %s", ErrNotDownloaded, phase)
	}
	pkg := c.state.pkg
	version := versionOf(c.state.pendingInfo)
	c.state.phase = PhaseInstallPending
	c.mu.Unlock()

	helper.Info(helper.LogTypeUpdate, "正在安装版本 %s 并重启", version)
	if err := c.installer.Install(ctx, pkg, true, true); err != nil {
		c.mu.Lock()
		c.state.phase = PhaseDownloaded
		c.mu.Unlock()

		uerr := newUpdateError(InstallFailure, "安装更新失败", err)
		helper.Error(helper.LogTypeUpdate, "%v", uerr)
		return uerr
	}
	return nil
}

func (c *Controller) busyInfo() (*UpdateInfo, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch c.state.phase {
	case PhaseDownloading, PhaseDownloaded, PhaseInstallPending:
		return c.state.pendingCopy(), true
	}
	return nil, false
}

func (c *Controller) check(ctx context.Context) (*UpdateInfo, error) {
	c.mu.Lock()
	switch c.state.phase {
	case PhaseDownloading, PhaseDownloaded, PhaseInstallPending:
		info := c.state.pendingCopy()
		c.mu.Unlock()
		return info, nil
	}
	c.state.phase = PhaseChecking
	c.state.pendingInfo = nil
	c.state.lastError = nil
	current := c.state.currentVersion
	c.mu.Unlock()

	helper.Info(helper.LogTypeUpdate, "正在检查更新, 当前版本: %s", current)

	queryCtx := ctx
	if c.queryTimeout > 0 {
		var cancel context.CancelFunc
		queryCtx, cancel = context.WithTimeout(ctx, c.queryTimeout)
		defer cancel()
	}
	latest, err := c.source.QueryLatest(queryCtx)
	if err == nil && latest == nil {
		err = errors.New("发布源未返回版本信息")
	}

	var newer bool
	if err == nil {
		newer, err = isNewer(current, latest.Version)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if err != nil {
		if aborted(ctx, err) {
			c.state.phase = PhaseIdle
			helper.Info(helper.LogTypeUpdate, "检查更新已取消")
			return nil, err
		}
		uerr := newUpdateError(QueryFailure, "检查更新失败", err)
		c.failLocked(uerr)
		return nil, uerr
	}

	if !newer {
		c.state.phase = PhaseIdle
		c.state.pendingInfo = nil
		helper.Info(helper.LogTypeUpdate, "当前已是最新版本 (%s), 发布源版本: %s", current, latest.Version)
		return nil, nil
	}

	info := *latest
	c.state.pendingInfo = &info
	c.state.phase = PhaseAvailable
	helper.Info(helper.LogTypeUpdate, "发现新版本: %s -> %s", current, info.Version)
	c.emitLocked(newEvent(EventUpdateAvailable, info))

	if c.autoDownload.Load() {
		c.startDownloadLocked()
	}
	return c.state.pendingCopy(), nil
}

// startDownloadLocked 自动下载：同步进入 Downloading，在后台完成传输
func (c *Controller) startDownloadLocked() {
	c.state.phase = PhaseDownloading
	c.state.progress = nil

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		_ = c.download(c.lifetime)
	}()
}

func (c *Controller) download(ctx context.Context) error {
	helper.Info(helper.LogTypeUpdate, "开始下载更新")

	if c.downloadTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.downloadTimeout)
		defer cancel()
	}
	pkg, err := c.source.FetchPackage(ctx, c.onProgress)
	if err == nil && (pkg == nil || len(pkg.Data) == 0) {
		err = errors.New("更新包为空")
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if err != nil {
		// 进程退出时中断的下载保留待更新信息，不推送错误
		if aborted(ctx, err) {
			c.state.phase = PhaseAvailable
			c.state.progress = nil
			helper.Info(helper.LogTypeUpdate, "下载已取消")
			return err
		}
		uerr := newUpdateError(DownloadFailure, "下载更新失败", err)
		c.failLocked(uerr)
		return uerr
	}

	c.state.phase = PhaseDownloaded
	c.state.progress = nil
	c.state.pkg = pkg
	info := c.state.pendingCopy()
	helper.Info(helper.LogTypeUpdate, "更新 %s 下载完成", versionOf(info))
	if info != nil {
		c.emitLocked(newEvent(EventUpdateDownloaded, *info))
	}
	return nil
}

func (c *Controller) onProgress(p Progress) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state.phase != PhaseDownloading {
		return
	}
	c.state.progress = &p
	c.emitLocked(newEvent(EventDownloadProgress, p))
}

// failLocked 进入 Error 阶段并推送 update-error
func (c *Controller) failLocked(uerr *UpdateError) {
	c.state.phase = PhaseError
	c.state.lastError = uerr.info()
	c.state.progress = nil
	c.state.pendingInfo = nil
	c.state.pkg = nil

	helper.Error(helper.LogTypeUpdate, "%v", uerr)
	c.emitLocked(newEvent(EventUpdateError, *c.state.lastError))
}

func (c *Controller) emitLocked(event Event) {
	if err := c.publisher.Publish(event); err != nil {
		helper.Warn(helper.LogTypeUpdate, "推送事件 %s 失败: %v", event.Type, err)
	}
}

// aborted 调用方主动取消导致的失败，超时不在此列
func aborted(ctx context.Context, err error) bool {
	return ctx.Err() != nil && errors.Is(err, context.Canceled)
}

// isNewer 判断 latest 是否比 current 新。
// 当前版本无法解析（如 DEV 构建）时，只要字符串不同就视为有新版本。
func isNewer(current, latest string) (bool, error) {
	latestVer, err := goversion.NewVersion(latest)
	if err != nil {
		return false, fmt.Errorf("发布源返回的版本号 %q 无法解析: %w", latest, err)
	}
	currentVer, err := goversion.NewVersion(current)
	if err != nil {
		helper.Warn(helper.LogTypeUpdate, "当前版本 '%s' 不是语义化版本格式, 按字符串比较", current)
		return current != latest, nil
	}
	return latestVer.GreaterThan(currentVer), nil
}

func versionOf(info *UpdateInfo) string {
	if info == nil {
		return ""
	}
	return info.Version
}
