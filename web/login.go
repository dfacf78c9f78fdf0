package web

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/cxbdasheng/dupdate/config"
	"github.com/cxbdasheng/dupdate/helper"
)

// CookieName 登录令牌Cookie名称
const CookieName = "token"

// TokenLength 长度
const TokenLength = 32 // 32字节 = 256位熵

// CookieMaxAge Cookie最大存活时间配置
const (
	CookieMaxAgePublic  = 24 * time.Hour      // 外网访问：1天
	CookieMaxAgePrivate = 30 * 24 * time.Hour // 内网访问：30天
)

// LoginLimits 登录限制配置
const (
	MaxFailedAttempts = 5                // 最大失败尝试次数
	SetupTimeLimit    = 30 * time.Minute // 初始设置时间限制
	LoginLockDuration = 30 * time.Minute // 登录失败锁定时间
)

var (
	// cookieMu 保护 currentCookie
	cookieMu sync.RWMutex
	// currentCookie 当前系统Cookie实例（单例模式）
	currentCookie = &http.Cookie{}
)

// serverStartTime 服务启动时间
var serverStartTime = time.Now()

// LoginDetector 登录检测器
type LoginDetector struct {
	mu             sync.Mutex
	FailedAttempts uint32    // 失败尝试次数
	LockedUntil    time.Time // 锁定截止时间
}

// globalLoginDetector 全局登录检测器实例
var globalLoginDetector = &LoginDetector{}

// locked 是否处于锁定中，锁定到期后允许再尝试一次
func (d *LoginDetector) locked() bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.FailedAttempts < MaxFailedAttempts {
		return false
	}
	if d.LockedUntil.IsZero() {
		d.LockedUntil = time.Now().Add(LoginLockDuration)
		helper.Warn(helper.LogTypeAuth, "登录尝试已锁定 %v，失败次数: %d", LoginLockDuration, d.FailedAttempts)
		return true
	}
	if time.Now().Before(d.LockedUntil) {
		return true
	}
	// 解锁：重置为最大尝试次数-1，允许再次尝试
	d.FailedAttempts = MaxFailedAttempts - 1
	d.LockedUntil = time.Time{}
	helper.Info(helper.LogTypeAuth, "登录锁定已解除，可重新尝试登录")
	return false
}

func (d *LoginDetector) fail() uint32 {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.FailedAttempts++
	return d.FailedAttempts
}

func (d *LoginDetector) reset() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.FailedAttempts = 0
	d.LockedUntil = time.Time{}
}

// LoginRequest 登录请求结构体
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func Login(writer http.ResponseWriter, request *http.Request) {
	switch request.Method {
	case http.MethodGet:
		handleLoginGet(writer, request)
	case http.MethodPost:
		handleLoginPost(writer, request)
	default:
		helper.ReturnErrorCode(writer, http.StatusMethodNotAllowed, "不支持的请求方法")
	}
}

// handleLoginGet 返回是否需要初始化用户
func handleLoginGet(writer http.ResponseWriter, _ *http.Request) {
	// 初始化时无配置文件
	conf, _ := config.GetConfigCached()

	helper.ReturnSuccess(writer, "", struct {
		EmptyUser bool `json:"empty_user"`
	}{
		EmptyUser: conf.Username == "" || conf.Password == "",
	})
}

// handleLoginPost 处理登录POST请求
func handleLoginPost(writer http.ResponseWriter, request *http.Request) {
	// 检查登录失败次数限制
	if globalLoginDetector.locked() {
		helper.ReturnError(writer, "登录失败次数过多，请稍后再试")
		return
	}

	// 解析请求体
	var loginReq LoginRequest
	if err := json.NewDecoder(request.Body).Decode(&loginReq); err != nil {
		helper.Warn(helper.LogTypeAuth, "请求解析失败: %v", err)
		helper.ReturnError(writer, "请求格式错误")
		return
	}

	// 验证输入
	loginReq.Username = strings.TrimSpace(loginReq.Username)
	loginReq.Password = strings.TrimSpace(loginReq.Password)

	if loginReq.Username == "" || loginReq.Password == "" {
		helper.ReturnError(writer, "用户名和密码不能为空")
		return
	}
	// 获取配置
	conf, _ := config.GetConfigCached()
	clientIP := helper.GetClientIP(request)

	// 处理初始用户设置
	if conf.Username == "" || conf.Password == "" {
		helper.Info(helper.LogTypeAuth, "初始化用户 - 用户: %s, IP: %s", loginReq.Username, clientIP)
		if err := handleInitialSetup(&conf, loginReq, clientIP); err != nil {
			helper.Error(helper.LogTypeAuth, "初始设置失败: %v", err)
			helper.ReturnError(writer, err.Error())
			return
		}
	}

	// 验证登录信息
	if loginReq.Username == conf.Username && conf.VerifyPassword(loginReq.Password) {
		handleLoginSuccess(writer, &conf)
		return
	}

	// 登录失败处理
	attempts := globalLoginDetector.fail()
	helper.Warn(helper.LogTypeAuth, "登录失败 - 用户: %s, IP: %s, 失败次数: %d", loginReq.Username, clientIP, attempts)
	helper.ReturnError(writer, "用户名或密码错误")
}

// handleInitialSetup 处理初始用户设置
func handleInitialSetup(conf *config.Config, loginReq LoginRequest, clientIP string) error {
	if time.Since(serverStartTime) > SetupTimeLimit {
		deadline := serverStartTime.Add(SetupTimeLimit)
		return fmt.Errorf("需在 %s 之前完成用户名密码设置,请重启 D-Update",
			deadline.Format("2006-01-02 15:04:05"))
	}

	// 根据IP类型设置访问权限
	conf.NotAllowWanAccess = helper.IsPrivateIP(clientIP)

	conf.Username = loginReq.Username
	hashedPwd, err := conf.GeneratePassword(loginReq.Password)
	if err != nil {
		return fmt.Errorf("密码加密失败: %w", err)
	}

	conf.Password = hashedPwd
	if err = conf.SaveConfig(); err != nil {
		return fmt.Errorf("保存配置失败: %w", err)
	}

	helper.Info(helper.LogTypeAuth, "初始设置完成 - 用户: %s, 内网模式: %v", conf.Username, conf.NotAllowWanAccess)
	return nil
}

// handleLoginSuccess 处理登录成功
func handleLoginSuccess(writer http.ResponseWriter, conf *config.Config) {
	globalLoginDetector.reset()

	// 计算Cookie过期时间
	var expires time.Time
	if conf.NotAllowWanAccess {
		expires = time.Now().Add(CookieMaxAgePrivate)
	} else {
		expires = time.Now().Add(CookieMaxAgePublic)
	}

	// 生成并设置Cookie
	cookie := &http.Cookie{
		Name:     CookieName,
		Value:    generateToken(),
		Path:     "/",
		Expires:  expires,
		HttpOnly: true,
		SameSite: http.SameSiteStrictMode,
	}
	setCurrentCookie(cookie)

	http.SetCookie(writer, cookie)
	helper.Info(helper.LogTypeAuth, "用户登录成功: %s, Cookie过期时间: %v", conf.Username, expires.Format("2006-01-02 15:04:05"))

	helper.ReturnSuccess(writer, "用户登录成功", cookie.Value)
}

func setCurrentCookie(cookie *http.Cookie) {
	cookieMu.Lock()
	defer cookieMu.Unlock()
	currentCookie = cookie
}

// IsValidToken 验证令牌是否有效
func IsValidToken(token string) bool {
	cookieMu.RLock()
	defer cookieMu.RUnlock()

	if token == "" || currentCookie == nil || currentCookie.Value == "" {
		return false
	}

	// 检查Cookie是否过期
	if time.Now().After(currentCookie.Expires) {
		return false
	}

	return currentCookie.Value == token
}

// generateToken 生成安全的登录令牌
func generateToken() string {
	randomBytes := make([]byte, TokenLength)
	if _, err := rand.Read(randomBytes); err != nil {
		// 容错处理：使用时间戳作为后备方案
		helper.Warn(helper.LogTypeAuth, "生成随机令牌失败，使用时间戳后备: %v", err)
		return hex.EncodeToString([]byte(time.Now().Format("20060102150405.000000")))
	}

	return hex.EncodeToString(randomBytes)
}
