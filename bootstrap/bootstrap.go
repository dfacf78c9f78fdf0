package bootstrap

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/cxbdasheng/dupdate/config"
	"github.com/cxbdasheng/dupdate/helper"
	"github.com/cxbdasheng/dupdate/helper/update"
	"github.com/cxbdasheng/dupdate/updater"
	"github.com/cxbdasheng/dupdate/web"
)

// relaunchDelay 安装成功后延迟重启，让接口先返回结果
var relaunchDelay = time.Second

// App 后台运行时持有的更新组件
type App struct {
	Updater *updater.Updater
	Events  *web.EventHub

	webhook *config.WebhookPublisher
	cancel  context.CancelFunc
}

// Start 按配置创建更新器并启动定时检查，同时监听配置变化
func Start(ctx context.Context, version string) *App {
	conf, err := config.GetConfigCached()
	if err != nil {
		helper.Warn(helper.LogTypeConfig, "读取配置失败, 使用默认更新配置: %v", err)
	}
	updaterConf := conf.Updater.Defaults()

	app := &App{webhook: config.NewWebhookPublisher(nil)}
	app.Events = web.NewEventHub(func() updater.Snapshot {
		return app.Updater.State()
	})

	source := update.NewGitHubSource(updaterConf.APIURL, updaterConf.Repository)
	installer := &update.Installer{Relaunch: deferRelaunch}
	app.Updater = updater.New(updaterConf.ControllerOptions(version), source, installer,
		updater.Publishers{app.Events, app.webhook})

	ctx, app.cancel = context.WithCancel(ctx)
	app.Updater.Start(ctx)
	helper.Info(helper.LogTypeUpdate, "自动更新已启动, 当前版本: %s, 发布源: %s", version, source.ReleasesURL())

	if err := config.Watch(ctx, app.onConfigChange); err != nil {
		helper.Warn(helper.LogTypeConfig, "配置变化将在重启后生效: %v", err)
	}
	return app
}

func (a *App) onConfigChange(conf config.Config) {
	a.Updater.SetAutoDownload(conf.Updater.AutoDownloadEnabled())
}

// Stop 停止更新器并断开所有推送
func (a *App) Stop() {
	a.cancel()
	a.Updater.Stop()
	a.Events.Close()
	a.webhook.Close()
	helper.Info(helper.LogTypeSystem, "更新服务已停止")
}

// deferRelaunch 重启放到后台执行，安装接口可以先响应
func deferRelaunch(exePath string) error {
	time.AfterFunc(relaunchDelay, func() {
		if err := update.DefaultRelaunch(exePath); err != nil {
			helper.Error(helper.LogTypeUpdate, "重启失败, 请手动重启: %v", err)
		}
	})
	return nil
}

// NewCommandController 终端手动更新使用的控制器：不自动下载，进度输出到 out，
// 安装后不重启，由用户自行启动新版本
func NewCommandController(conf config.Config, version string, out io.Writer) *updater.Controller {
	updaterConf := conf.Updater.Defaults()
	opts := updaterConf.ControllerOptions(version)
	opts.AutoDownload = false

	installer := &update.Installer{
		Relaunch: func(exePath string) error {
			fmt.Fprintf(out, "已更新 %s, 请重新启动\n", exePath)
			return nil
		},
	}
	return updater.NewController(opts,
		update.NewGitHubSource(updaterConf.APIURL, updaterConf.Repository),
		installer, update.ProgressPrinter(out))
}
