package helper

import (
	"net"
	"net/http"
	"strings"
	"time"
)

// DefaultHTTPTimeout 普通 API 请求的超时
const DefaultHTTPTimeout = 30 * time.Second

// CreateHTTPClient 创建带超时的 HTTP 客户端。timeout 为 0 时不限制整体耗时，
// 用于大文件下载，此时仍限制建连与响应头的等待时间。
func CreateHTTPClient(timeout time.Duration) *http.Client {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.ResponseHeaderTimeout = DefaultHTTPTimeout
	transport.TLSHandshakeTimeout = 10 * time.Second
	return &http.Client{
		Timeout:   timeout,
		Transport: transport,
	}
}

// GetClientIP 获取客户端IP，优先使用代理头
func GetClientIP(r *http.Request) string {
	if realIP := strings.TrimSpace(r.Header.Get("X-Real-IP")); realIP != "" {
		return realIP
	}

	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		var first string
		for _, part := range strings.Split(forwarded, ",") {
			ip := strings.TrimSpace(part)
			if ip == "" {
				continue
			}
			if first == "" {
				first = ip
			}
			// 取第一个公网地址
			if !IsPrivateIP(ip) {
				return ip
			}
		}
		if first != "" {
			return first
		}
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// IsPrivateIP 是否为私有地址，不包含回环地址
func IsPrivateIP(ip string) bool {
	parsed := net.ParseIP(ip)
	if parsed == nil {
		return false
	}
	return parsed.IsPrivate()
}

// IsLocalAddress 是否为内网或本机地址
func IsLocalAddress(ip string) bool {
	parsed := net.ParseIP(ip)
	if parsed == nil {
		return false
	}
	return parsed.IsPrivate() || parsed.IsLoopback() || parsed.IsLinkLocalUnicast()
}
