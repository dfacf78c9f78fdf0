package signer

import (
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestHmacSign 测试 HMAC 签名
func TestHmacSign(t *testing.T) {
	body := []byte(`{"event":"update-available"}`)
	tests := []struct {
		name       string
		signMethod string
		wantLength int
	}{
		{name: "HMAC-SHA1 签名", signMethod: "HMAC-SHA1", wantLength: 20},
		{name: "HMAC-SHA256 签名", signMethod: "HMAC-SHA256", wantLength: 32},
		{name: "未知签名方法默认使用 SHA256", signMethod: "UNKNOWN", wantLength: 32},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := HmacSign(tt.signMethod, "secret", 1700000000, body)
			assert.Len(t, got, tt.wantLength)
			// 相同输入签名稳定
			assert.Equal(t, got, HmacSign(tt.signMethod, "secret", 1700000000, body))
		})
	}

	assert.NotEqual(t,
		HmacSign(DefaultSignMethod, "secret", 1700000000, body),
		HmacSign(DefaultSignMethod, "secret", 1700000001, body),
		"时间戳参与签名")
	assert.NotEqual(t,
		HmacSign(DefaultSignMethod, "secret", 1700000000, body),
		HmacSign(DefaultSignMethod, "other", 1700000000, body),
		"密钥参与签名")
}

func TestSignature_Prefix(t *testing.T) {
	assert.True(t, strings.HasPrefix(Signature("HMAC-SHA1", "k", 1, nil), "sha1="))
	assert.True(t, strings.HasPrefix(Signature("HMAC-SHA256", "k", 1, nil), "sha256="))
	assert.True(t, strings.HasPrefix(Signature("HMAC-MD5", "k", 1, nil), "sha256="))
}

func TestSignRequestAndVerify(t *testing.T) {
	now := time.Unix(1700000000, 0)
	body := []byte("event=update-downloaded&version=1.3.0")

	req, err := http.NewRequest(http.MethodPost, "http://example.com/hook", nil)
	require.NoError(t, err)
	SignRequest(req, "secret", body, now)

	ts := req.Header.Get(TimestampHeader)
	sig := req.Header.Get(SignatureHeader)
	assert.Equal(t, "1700000000", ts)
	require.NotEmpty(t, sig)

	tests := []struct {
		name    string
		secret  string
		ts      string
		sig     string
		body    []byte
		now     time.Time
		maxSkew time.Duration
		want    bool
	}{
		{name: "签名正确", secret: "secret", ts: ts, sig: sig, body: body, now: now, want: true},
		{name: "时间在允许范围内", secret: "secret", ts: ts, sig: sig, body: body, now: now.Add(time.Minute), maxSkew: 5 * time.Minute, want: true},
		{name: "时间戳过期", secret: "secret", ts: ts, sig: sig, body: body, now: now.Add(time.Hour), maxSkew: 5 * time.Minute},
		{name: "密钥错误", secret: "wrong", ts: ts, sig: sig, body: body, now: now},
		{name: "请求体被修改", secret: "secret", ts: ts, sig: sig, body: []byte("event=x"), now: now},
		{name: "时间戳被修改", secret: "secret", ts: "1700000001", sig: sig, body: body, now: now},
		{name: "时间戳格式错误", secret: "secret", ts: "abc", sig: sig, body: body, now: now},
		{name: "缺少算法前缀", secret: "secret", ts: ts, sig: strings.TrimPrefix(sig, "sha256="), body: body, now: now},
		{name: "未知算法", secret: "secret", ts: ts, sig: "md5=" + strings.TrimPrefix(sig, "sha256="), body: body, now: now},
		{name: "摘要不是十六进制", secret: "secret", ts: ts, sig: "sha256=zz", body: body, now: now},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Verify(tt.secret, tt.ts, tt.sig, tt.body, tt.now, tt.maxSkew))
		})
	}
}

func TestVerify_SHA1(t *testing.T) {
	body := []byte("payload")
	sig := Signature("HMAC-SHA1", "secret", 42, body)
	assert.True(t, Verify("secret", "42", sig, body, time.Time{}, 0))
}
