// Package signer 为发出的 Webhook 请求签名，接收方可用共享密钥校验来源。
package signer

import (
	"crypto/hmac"
	"crypto/sha1"
	"crypto/sha256"
	"encoding/hex"
	"hash"
	"net/http"
	"strconv"
	"strings"
	"time"
)

const (
	// SignatureHeader 签名，格式为 <算法>=<十六进制摘要>
	SignatureHeader = "X-DUpdate-Signature"
	// TimestampHeader 参与签名的 Unix 时间戳
	TimestampHeader = "X-DUpdate-Timestamp"

	DefaultSignMethod = "HMAC-SHA256"
)

var (
	signMethodMap = map[string]func() hash.Hash{
		"HMAC-SHA1":   sha1.New,
		"HMAC-SHA256": sha256.New,
	}
	signPrefixMap = map[string]string{
		"HMAC-SHA1":   "sha1",
		"HMAC-SHA256": "sha256",
	}
)

// HmacSign 对 "时间戳.请求体" 计算 HMAC，未知算法使用 HMAC-SHA256
func HmacSign(signMethod, secret string, timestamp int64, body []byte) []byte {
	method, ok := signMethodMap[signMethod]
	if !ok {
		method = sha256.New
	}
	h := hmac.New(method, []byte(secret))
	h.Write([]byte(strconv.FormatInt(timestamp, 10)))
	h.Write([]byte{'.'})
	h.Write(body)
	return h.Sum(nil)
}

// Signature 返回请求头中使用的签名值
func Signature(signMethod, secret string, timestamp int64, body []byte) string {
	prefix, ok := signPrefixMap[signMethod]
	if !ok {
		prefix = signPrefixMap[DefaultSignMethod]
	}
	return prefix + "=" + hex.EncodeToString(HmacSign(signMethod, secret, timestamp, body))
}

// SignRequest 设置签名与时间戳请求头，body 必须与实际发送的请求体一致
func SignRequest(r *http.Request, secret string, body []byte, now time.Time) {
	timestamp := now.Unix()
	r.Header.Set(TimestampHeader, strconv.FormatInt(timestamp, 10))
	r.Header.Set(SignatureHeader, Signature(DefaultSignMethod, secret, timestamp, body))
}

// Verify 校验签名，maxSkew 大于 0 时同时检查时间戳是否过期
func Verify(secret, timestampHeader, signature string, body []byte, now time.Time, maxSkew time.Duration) bool {
	timestamp, err := strconv.ParseInt(timestampHeader, 10, 64)
	if err != nil {
		return false
	}
	if maxSkew > 0 {
		skew := now.Sub(time.Unix(timestamp, 0))
		if skew < 0 {
			skew = -skew
		}
		if skew > maxSkew {
			return false
		}
	}

	prefix, digest, ok := strings.Cut(signature, "=")
	if !ok {
		return false
	}
	for method, p := range signPrefixMap {
		if p != prefix {
			continue
		}
		want, err := hex.DecodeString(digest)
		if err != nil {
			return false
		}
		return hmac.Equal(HmacSign(method, secret, timestamp, body), want)
	}
	return false
}
