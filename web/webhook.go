package web

import (
	"encoding/json"
	"net/http"

	"github.com/cxbdasheng/dupdate/config"
	"github.com/cxbdasheng/dupdate/helper"
)

func Webhook(writer http.ResponseWriter, request *http.Request) {
	switch request.Method {
	case http.MethodGet:
		handleWebhookGet(writer, request)
	case http.MethodPost:
		handleWebhookPost(writer, request)
	default:
		helper.ReturnErrorCode(writer, http.StatusMethodNotAllowed, "不支持的请求方法")
	}
}

func handleWebhookPost(writer http.ResponseWriter, request *http.Request) {
	var webhook config.Webhook
	if err := json.NewDecoder(request.Body).Decode(&webhook); err != nil {
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
	conf.Webhook = webhook
	// 保存配置
	if err := conf.SaveConfig(); err != nil {
		helper.ReturnError(writer, "保存配置失败")
		return
	}

	helper.ReturnSuccess(writer, "配置保存成功", nil)
}

func handleWebhookGet(writer http.ResponseWriter, _ *http.Request) {
	conf, err := config.GetConfigCached()
	if err != nil {
		helper.Warn(helper.LogTypeConfig, "获取配置失败: %v", err)
	}
	helper.ReturnSuccess(writer, "", conf.Webhook)
}

// WebhookTest 使用请求中的配置发送一次测试通知，不保存配置
func WebhookTest(writer http.ResponseWriter, request *http.Request) {
	if request.Method != http.MethodPost {
		helper.ReturnErrorCode(writer, http.StatusMethodNotAllowed, "不支持的请求方法")
		return
	}
	var webhook config.Webhook
	if err := json.NewDecoder(request.Body).Decode(&webhook); err != nil {
		helper.ReturnError(writer, "请求格式错误")
		return
	}
	if !config.ExecWebhook(&webhook, "test", "0.0.0", "D-Update Webhook 测试") {
		helper.ReturnError(writer, "Webhook 调用失败，请查看日志")
		return
	}
	helper.ReturnSuccess(writer, "测试成功", nil)
}
