package helper

import (
	"encoding/json"
	"net/http"
)

// Result 接口统一返回结构
type Result struct {
	Status bool        `json:"status"`
	Msg    string      `json:"msg"`
	Data   interface{} `json:"data"`
}

// ReturnError 返回错误信息
func ReturnError(w http.ResponseWriter, msg string) {
	ReturnErrorCode(w, http.StatusOK, msg)
}

// ReturnErrorCode 以指定状态码返回错误信息
func ReturnErrorCode(w http.ResponseWriter, code int, msg string) {
	writeResult(w, code, &Result{Status: false, Msg: msg})
}

// ReturnSuccess 返回成功信息
func ReturnSuccess(w http.ResponseWriter, msg string, data interface{}) {
	writeResult(w, http.StatusOK, &Result{Status: true, Msg: msg, Data: data})
}

func writeResult(w http.ResponseWriter, code int, result *Result) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(result); err != nil {
		Warn(LogTypeWeb, "写入响应失败: %v", err)
	}
}
