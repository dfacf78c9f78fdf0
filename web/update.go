package web

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"runtime"

	"github.com/cxbdasheng/dupdate/helper"
	"github.com/cxbdasheng/dupdate/updater"
)

// UpdateController 更新接口依赖的控制器操作
type UpdateController interface {
	CurrentVersion() string
	State() updater.Snapshot
	CheckForUpdates(ctx context.Context, manual bool) (*updater.UpdateInfo, error)
	DownloadUpdate(ctx context.Context, manual bool) error
	InstallAndRestart(ctx context.Context) error
}

// UpdateAPI 展示层发起的手动更新命令
type UpdateAPI struct {
	Controller UpdateController
}

// VersionInfo 当前运行的版本
type VersionInfo struct {
	Version string `json:"version"`
	GoVer   string `json:"go"`
	OS      string `json:"os"`
	Arch    string `json:"arch"`
}

// Version GET /api/version
func (a *UpdateAPI) Version(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		helper.ReturnErrorCode(w, http.StatusMethodNotAllowed, "不支持的请求方法")
		return
	}
	helper.ReturnSuccess(w, "", VersionInfo{
		Version: a.Controller.CurrentVersion(),
		GoVer:   runtime.Version(),
		OS:      runtime.GOOS,
		Arch:    runtime.GOARCH,
	})
}

// State GET /api/update/state
func (a *UpdateAPI) State(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		helper.ReturnErrorCode(w, http.StatusMethodNotAllowed, "不支持的请求方法")
		return
	}
	helper.ReturnSuccess(w, "", a.Controller.State())
}

// Check POST /api/update/check。
// 检查不随请求取消，结果同时通过事件推送给其他页面。
func (a *UpdateAPI) Check(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		helper.ReturnErrorCode(w, http.StatusMethodNotAllowed, "不支持的请求方法")
		return
	}
	info, err := a.Controller.CheckForUpdates(context.WithoutCancel(r.Context()), true)
	if err != nil {
		helper.ReturnError(w, err.Error())
		return
	}
	if info == nil {
		helper.ReturnSuccess(w, "当前已是最新版本", nil)
		return
	}
	helper.ReturnSuccess(w, fmt.Sprintf("发现新版本 %s", info.Version), info)
}

// Download POST /api/update/download。
// 下载不随请求取消，关闭页面后继续在后台完成。
func (a *UpdateAPI) Download(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		helper.ReturnErrorCode(w, http.StatusMethodNotAllowed, "不支持的请求方法")
		return
	}
	if err := a.Controller.DownloadUpdate(context.WithoutCancel(r.Context()), true); err != nil {
		a.returnCommandError(w, err)
		return
	}
	helper.ReturnSuccess(w, "更新已下载", a.Controller.State())
}

// Install POST /api/update/install
func (a *UpdateAPI) Install(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		helper.ReturnErrorCode(w, http.StatusMethodNotAllowed, "不支持的请求方法")
		return
	}
	if err := a.Controller.InstallAndRestart(context.WithoutCancel(r.Context())); err != nil {
		a.returnCommandError(w, err)
		return
	}
	helper.ReturnSuccess(w, "更新已安装，正在重启", nil)
}

// returnCommandError 阶段不满足时返回 409，其余失败按普通错误返回
func (a *UpdateAPI) returnCommandError(w http.ResponseWriter, err error) {
	if errors.Is(err, updater.ErrInvalidPhase) || errors.Is(err, updater.ErrNotDownloaded) {
		helper.ReturnErrorCode(w, http.StatusConflict, err.Error())
		return
	}
	helper.ReturnError(w, err.Error())
}
