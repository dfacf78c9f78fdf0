package config

import (
	"time"

	"github.com/cxbdasheng/dupdate/updater"
)

const (
	// DefaultRepository 默认的发布仓库
	DefaultRepository = "cxbdasheng/dupdate"
	// DefaultQueryTimeout 默认的版本查询超时
	DefaultQueryTimeout = 30 * time.Second
)

// Updater 自动更新配置
type Updater struct {
	// AutoDownload 发现新版本后自动下载，未配置时为 true
	AutoDownload *bool `yaml:"auto_download,omitempty" json:"auto_download"`
	// Repository GitHub 仓库，owner/name
	Repository string `yaml:"repository,omitempty" json:"repository"`
	// APIURL GitHub API 地址，可指向镜像
	APIURL string `yaml:"api_url,omitempty" json:"api_url"`
	// QueryTimeout 版本查询超时
	QueryTimeout time.Duration `yaml:"query_timeout,omitempty" json:"query_timeout"`
	// DownloadTimeout 下载超时，0 表示不限制
	DownloadTimeout time.Duration `yaml:"download_timeout,omitempty" json:"download_timeout"`
}

// Defaults 补全未配置的字段
func (u Updater) Defaults() Updater {
	if u.AutoDownload == nil {
		enabled := true
		u.AutoDownload = &enabled
	}
	if u.Repository == "" {
		u.Repository = DefaultRepository
	}
	if u.QueryTimeout <= 0 {
		u.QueryTimeout = DefaultQueryTimeout
	}
	if u.DownloadTimeout < 0 {
		u.DownloadTimeout = 0
	}
	return u
}

// AutoDownloadEnabled 是否自动下载
func (u Updater) AutoDownloadEnabled() bool {
	return u.AutoDownload == nil || *u.AutoDownload
}

// SetAutoDownload 修改自动下载开关
func (u *Updater) SetAutoDownload(enabled bool) {
	u.AutoDownload = &enabled
}

// ControllerOptions 转换为更新控制器的配置
func (u Updater) ControllerOptions(currentVersion string) updater.Options {
	d := u.Defaults()
	return updater.Options{
		CurrentVersion:  currentVersion,
		AutoDownload:    d.AutoDownloadEnabled(),
		QueryTimeout:    d.QueryTimeout,
		DownloadTimeout: d.DownloadTimeout,
	}
}
