package web

import (
	"net/http"
	"strconv"

	"github.com/cxbdasheng/dupdate/helper"
)

// Logs GET 返回最近的日志，可用 type 过滤、n 限制条数；DELETE 清空日志
func Logs(writer http.ResponseWriter, request *http.Request) {
	switch request.Method {
	case http.MethodGet:
		handleLogsGet(writer, request)
	case http.MethodDelete:
		helper.ClearLogs()
		helper.ReturnSuccess(writer, "日志已清空", nil)
	default:
		helper.ReturnErrorCode(writer, http.StatusMethodNotAllowed, "不支持的请求方法")
	}
}

func handleLogsGet(writer http.ResponseWriter, request *http.Request) {
	query := request.URL.Query()
	n, _ := strconv.Atoi(query.Get("n"))

	var logs []helper.LogEntry
	if logType := query.Get("type"); logType != "" {
		logs = helper.GetLogger().GetLogsByType(helper.LogType(logType))
		if n > 0 && n < len(logs) {
			logs = logs[len(logs)-n:]
		}
	} else if n > 0 {
		logs = helper.GetLogger().GetRecentLogs(n)
	} else {
		logs = helper.GetAllLogs()
	}
	helper.ReturnSuccess(writer, "", logs)
}
