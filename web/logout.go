package web

import (
	"net/http"
	"time"

	"github.com/cxbdasheng/dupdate/helper"
)

func Logout(w http.ResponseWriter, r *http.Request) {
	cookie := &http.Cookie{
		Name:     CookieName,
		Value:    "",
		Path:     "/",
		Expires:  time.Unix(0, 0),
		MaxAge:   -1,
		HttpOnly: true,
	}
	setCurrentCookie(cookie)
	// 设置过期的 Cookie
	http.SetCookie(w, cookie)

	helper.ReturnSuccess(w, "已退出登录", nil)
}
