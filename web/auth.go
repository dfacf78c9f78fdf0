package web

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/cxbdasheng/dupdate/config"
	"github.com/cxbdasheng/dupdate/helper"
)

type ViewFunc func(http.ResponseWriter, *http.Request)

// AccessCheckResult 访问检查结果
type AccessCheckResult struct {
	Allowed bool
	Reason  string
}

// checkWANAccess 检查WAN访问权限（提取公共逻辑）
func checkWANAccess(r *http.Request) AccessCheckResult {
	clientIP := helper.GetClientIP(r)
	isPrivateIP := helper.IsLocalAddress(clientIP)

	conf, err := config.GetConfigCached()

	// 配置文件为空且启动时间超过3小时，禁止从公网访问
	if err != nil && time.Since(serverStartTime) > 3*time.Hour && !isPrivateIP {
		return AccessCheckResult{
			Allowed: false,
			Reason:  fmt.Sprintf("客户端 %s 被拒绝访问：配置文件为空，超过3小时禁止从公网访问", clientIP),
		}
	}

	// 当配置禁止公网访问时，检查客户端IP
	if conf.NotAllowWanAccess && !isPrivateIP {
		return AccessCheckResult{
			Allowed: false,
			Reason:  fmt.Sprintf("客户端 %s 被拒绝访问：禁止从公网访问", clientIP),
		}
	}

	return AccessCheckResult{Allowed: true}
}

// AuthAssert 只检查公网访问，用于登录等无需令牌的接口
func AuthAssert(f ViewFunc) ViewFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		accessResult := checkWANAccess(r)
		if !accessResult.Allowed {
			helper.Warn(helper.LogTypeAuth, "%s", accessResult.Reason)
			helper.ReturnErrorCode(w, http.StatusForbidden, "禁止访问")
			return
		}

		f(w, r) // 执行被装饰的函数
	}
}

// Auth 验证Token是否已经通过，令牌可以来自 Cookie 或 Authorization 头
func Auth(f ViewFunc) ViewFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		// 检查WAN访问权限
		accessResult := checkWANAccess(r)
		if !accessResult.Allowed {
			helper.Warn(helper.LogTypeAuth, "%s", accessResult.Reason)
			helper.ReturnErrorCode(w, http.StatusForbidden, "禁止访问")
			return
		}

		if IsValidToken(requestToken(r)) {
			f(w, r) // 执行被装饰的函数
			return
		}

		helper.ReturnErrorCode(w, http.StatusUnauthorized, "未登录或登录已过期")
	}
}

// requestToken 优先读取 Cookie，其次是 Bearer 令牌
func requestToken(r *http.Request) string {
	if cookie, err := r.Cookie(CookieName); err == nil && cookie.Value != "" {
		return cookie.Value
	}
	if token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer "); ok {
		return strings.TrimSpace(token)
	}
	return ""
}
