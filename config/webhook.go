package config

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/cxbdasheng/dupdate/helper"
	"github.com/cxbdasheng/dupdate/signer"
	"github.com/cxbdasheng/dupdate/updater"
)

// Webhook Webhook
type Webhook struct {
	WebhookEnabled     bool   `json:"webhook_enabled"`
	WebhookURL         string `json:"webhook_url"`
	WebhookHeaders     string `json:"webhook_headers"`
	WebhookRequestBody string `json:"webhook_request_body"`
	// WebhookSecret 不为空时对请求签名
	WebhookSecret string `json:"webhook_secret"`
}

const (
	webhookQueueSize  = 16
	webhookMaxRetries = 3
)

// newWebhookBackOff 失败重试的间隔策略
var newWebhookBackOff = func() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = time.Second
	b.MaxElapsedTime = time.Minute
	return backoff.WithMaxRetries(b, webhookMaxRetries)
}

// ExecWebhook 发送 Webhook，#{event} #{version} #{message} 会被替换
func ExecWebhook(conf *Webhook, event, version, message string) bool {
	if err := sendWebhook(context.Background(), conf, event, version, message); err != nil {
		helper.Warn(helper.LogTypeWebhook, "Webhook 调用失败: %v", err)
		return false
	}
	return true
}

func sendWebhook(ctx context.Context, conf *Webhook, event, version, message string) error {
	if strings.TrimSpace(conf.WebhookURL) == "" {
		return backoff.Permanent(errors.New("Webhook URL 为空"))
	}

	method := http.MethodGet
	contentType := ""
	body := ""
	if conf.WebhookRequestBody != "" {
		method = http.MethodPost
		if hasJSONPrefix(conf.WebhookRequestBody) {
			contentType = "application/json"
			body = replaceParaEscaped(conf.WebhookRequestBody, event, version, message, jsonEscape)
			if !json.Valid([]byte(body)) {
				helper.Warn(helper.LogTypeWebhook, "请求体不是合法的 JSON，仍按 JSON 发送")
			}
		} else {
			contentType = "application/x-www-form-urlencoded"
			body = replaceParaEscaped(conf.WebhookRequestBody, event, version, message, url.QueryEscape)
		}
	}

	requestURL := replaceParaEscaped(conf.WebhookURL, event, version, message, url.QueryEscape)
	u, err := url.Parse(requestURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return backoff.Permanent(fmt.Errorf("Webhook URL 不正确: %s", conf.WebhookURL))
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), strings.NewReader(body))
	if err != nil {
		return backoff.Permanent(fmt.Errorf("创建 Webhook 请求失败: %w", err))
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	for key, value := range extractHeaders(conf.WebhookHeaders) {
		if key == "" {
			continue
		}
		req.Header.Set(key, value)
	}
	if conf.WebhookSecret != "" {
		signer.SignRequest(req, conf.WebhookSecret, []byte(body), time.Now())
	}

	resp, err := helper.CreateHTTPClient(helper.DefaultHTTPTimeout).Do(req)
	if err != nil {
		return fmt.Errorf("请求 Webhook 失败: %w", err)
	}
	defer resp.Body.Close()
	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))

	switch {
	case resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests:
		return fmt.Errorf("Webhook 返回状态码 %d: %s", resp.StatusCode, bytes.TrimSpace(respBody))
	case resp.StatusCode >= 300:
		return backoff.Permanent(fmt.Errorf("Webhook 返回状态码 %d: %s", resp.StatusCode, bytes.TrimSpace(respBody)))
	}
	helper.Info(helper.LogTypeWebhook, "Webhook 调用成功, 返回: %s", helper.Truncate(string(bytes.TrimSpace(respBody)), 200))
	return nil
}

// hasJSONPrefix 请求体是否为 JSON
func hasJSONPrefix(s string) bool {
	return strings.HasPrefix(s, "{") || strings.HasPrefix(s, "[")
}

// extractHeaders 每行一个 Key: Value
func extractHeaders(headers string) map[string]string {
	result := make(map[string]string)
	for _, line := range helper.NonEmptyLines(headers) {
		parts := strings.Split(line, ":")
		if len(parts) != 2 {
			helper.Warn(helper.LogTypeWebhook, "Webhook Header 格式不正确: %s", line)
			continue
		}
		result[strings.TrimSpace(parts[0])] = strings.TrimSpace(parts[1])
	}
	return result
}

// replacePara 替换参数
func replacePara(orgPara, event, version, message string) string {
	return replaceParaEscaped(orgPara, event, version, message, nil)
}

func replaceParaEscaped(orgPara, event, version, message string, escape func(string) string) string {
	if escape == nil {
		escape = func(s string) string { return s }
	}
	return strings.NewReplacer(
		"#{event}", escape(event),
		"#{version}", escape(version),
		"#{message}", escape(message),
	).Replace(orgPara)
}

func jsonEscape(s string) string {
	b, err := json.Marshal(s)
	if err != nil {
		return s
	}
	return string(b[1 : len(b)-1])
}

// WebhookPublisher 将更新事件推送到用户配置的 Webhook。
// 下载进度不推送；发送在后台进行，失败时按退避策略重试。
type WebhookPublisher struct {
	load  func() (Webhook, error)
	queue chan updater.Event

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

var _ updater.Publisher = (*WebhookPublisher)(nil)

// NewWebhookPublisher 每次发送前通过 load 读取最新的 Webhook 配置
func NewWebhookPublisher(load func() (Webhook, error)) *WebhookPublisher {
	if load == nil {
		load = func() (Webhook, error) {
			conf, err := GetConfigCached()
			return conf.Webhook, err
		}
	}
	ctx, cancel := context.WithCancel(context.Background())
	p := &WebhookPublisher{
		load:   load,
		queue:  make(chan updater.Event, webhookQueueSize),
		ctx:    ctx,
		cancel: cancel,
	}
	p.wg.Add(1)
	go p.loop()
	return p
}

// Publish 只入队，不等待发送结果
func (p *WebhookPublisher) Publish(event updater.Event) error {
	if event.Type == updater.EventDownloadProgress {
		return nil
	}
	select {
	case <-p.ctx.Done():
		return errors.New("Webhook 推送已关闭")
	default:
	}
	select {
	case p.queue <- event:
		return nil
	default:
		return fmt.Errorf("Webhook 队列已满, 丢弃事件 %s", event.Type)
	}
}

// Close 停止发送，未发送的事件被丢弃
func (p *WebhookPublisher) Close() {
	p.cancel()
	p.wg.Wait()
}

func (p *WebhookPublisher) loop() {
	defer p.wg.Done()
	for {
		select {
		case <-p.ctx.Done():
			return
		case event := <-p.queue:
			p.deliver(event)
		}
	}
}

func (p *WebhookPublisher) deliver(event updater.Event) {
	conf, err := p.load()
	if err != nil {
		helper.Warn(helper.LogTypeWebhook, "读取 Webhook 配置失败: %v", err)
		return
	}
	if !conf.WebhookEnabled || conf.WebhookURL == "" {
		return
	}

	version, message := describeEvent(event)
	op := func() error {
		return sendWebhook(p.ctx, &conf, string(event.Type), version, message)
	}
	notify := func(err error, wait time.Duration) {
		helper.Warn(helper.LogTypeWebhook, "Webhook 发送失败, %s 后重试: %v", wait, err)
	}
	if err := backoff.RetryNotify(op, backoff.WithContext(newWebhookBackOff(), p.ctx), notify); err != nil {
		helper.Error(helper.LogTypeWebhook, "Webhook 推送事件 %s 失败: %v", event.Type, err)
	}
}

// describeEvent 事件对应的版本号与消息
func describeEvent(event updater.Event) (version, message string) {
	switch payload := event.Payload.(type) {
	case updater.UpdateInfo:
		version = payload.Version
		if event.Type == updater.EventUpdateDownloaded {
			message = fmt.Sprintf("新版本 %s 已下载，等待安装", payload.Version)
		} else {
			message = fmt.Sprintf("发现新版本 %s", payload.Version)
		}
	case updater.ErrorInfo:
		message = payload.Message
	}
	return version, message
}
