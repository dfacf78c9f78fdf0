package web

import (
	"encoding/json"
	"net/http"

	"github.com/cxbdasheng/dupdate/config"
	"github.com/cxbdasheng/dupdate/helper"
)

type SettingsRequest struct {
	Username          string `json:"username"`
	Password          string `json:"password"`
	NotAllowWanAccess bool   `json:"not_allow_wan_access"`
	// AutoDownload 为空时保持原值
	AutoDownload *bool `json:"auto_download"`
}

// SettingsResponse 返回给前端的设置，不包含密码
type SettingsResponse struct {
	Username          string `json:"username"`
	NotAllowWanAccess bool   `json:"not_allow_wan_access"`
	AutoDownload      bool   `json:"auto_download"`
	Repository        string `json:"repository"`
}

func Settings(writer http.ResponseWriter, request *http.Request) {
	switch request.Method {
	case http.MethodGet:
		handleSettingsGet(writer, request)
	case http.MethodPost:
		handleSettingsPost(writer, request)
	default:
		helper.ReturnErrorCode(writer, http.StatusMethodNotAllowed, "不支持的请求方法")
	}
}

func handleSettingsGet(writer http.ResponseWriter, _ *http.Request) {
	conf, err := config.GetConfigCached()
	if err != nil {
		helper.Warn(helper.LogTypeConfig, "获取配置失败: %v", err)
	}
	updaterConf := conf.Updater.Defaults()
	helper.ReturnSuccess(writer, "", SettingsResponse{
		Username:          conf.Username,
		NotAllowWanAccess: conf.NotAllowWanAccess,
		AutoDownload:      updaterConf.AutoDownloadEnabled(),
		Repository:        updaterConf.Repository,
	})
}

// handleSettingsPost 保存设置，自动下载开关由配置监听同步给更新器
func handleSettingsPost(writer http.ResponseWriter, request *http.Request) {
	var settingsReq SettingsRequest
	if err := json.NewDecoder(request.Body).Decode(&settingsReq); err != nil {
		helper.Warn(helper.LogTypeWeb, "请求解析失败: %v", err)
		helper.ReturnError(writer, "请求格式错误")
		return
	}
	conf, err := config.GetConfigCached()
	if err != nil {
		helper.Error(helper.LogTypeConfig, "获取配置失败: %v", err)
		helper.ReturnError(writer, "获取配置失败")
		return
	}
	conf.NotAllowWanAccess = settingsReq.NotAllowWanAccess
	if settingsReq.Username != "" {
		conf.Username = settingsReq.Username
	}
	if settingsReq.Password != "" {
		hashedPwd, err := conf.GeneratePassword(settingsReq.Password)
		if err != nil {
			helper.ReturnError(writer, "密码加密失败")
			return
		}
		conf.Password = hashedPwd
	}
	if settingsReq.AutoDownload != nil {
		conf.SetAutoDownload(*settingsReq.AutoDownload)
	}
	// 保存配置
	if err := conf.SaveConfig(); err != nil {
		helper.ReturnError(writer, "保存配置失败")
		return
	}

	helper.ReturnSuccess(writer, "配置保存成功", nil)
}
