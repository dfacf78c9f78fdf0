package web

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"

	"github.com/cxbdasheng/dupdate/helper"
	"github.com/cxbdasheng/dupdate/updater"
)

const (
	// clientBuffer 每个连接待发送的消息上限，写不完的连接会被断开
	clientBuffer = 64
	writeTimeout = 5 * time.Second
)

// stateMessageType 连接建立后首先推送的当前状态
const stateMessageType = "state"

// EventHub 通过 WebSocket 把更新事件推送给展示层
type EventHub struct {
	state func() updater.Snapshot

	mu      sync.Mutex
	clients map[*eventClient]struct{}
	closed  bool
}

type eventClient struct {
	send chan []byte
	// done 被 hub 踢出或关闭时关闭
	done chan struct{}
	once sync.Once
}

func (c *eventClient) stop() {
	c.once.Do(func() { close(c.done) })
}

var _ updater.Publisher = (*EventHub)(nil)

// NewEventHub state 用于新连接的初始状态，可为空
func NewEventHub(state func() updater.Snapshot) *EventHub {
	return &EventHub{
		state:   state,
		clients: make(map[*eventClient]struct{}),
	}
}

// Publish 不阻塞，消息积压的连接会被断开
func (h *EventHub) Publish(event updater.Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		select {
		case c.send <- data:
		default:
			helper.Warn(helper.LogTypeWeb, "事件连接发送缓慢，已断开")
			delete(h.clients, c)
			c.stop()
		}
	}
	return nil
}

// Clients 当前连接数
func (h *EventHub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Close 断开所有连接，之后的连接请求被拒绝
func (h *EventHub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for c := range h.clients {
		delete(h.clients, c)
		c.stop()
	}
}

func (h *EventHub) register(c *eventClient) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return false
	}
	h.clients[c] = struct{}{}
	return true
}

func (h *EventHub) unregister(c *eventClient) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.clients, c)
}

// ServeHTTP 升级为 WebSocket 并持续推送事件，客户端发送的消息被忽略
func (h *EventHub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		helper.Warn(helper.LogTypeWeb, "WebSocket 握手失败: %v", err)
		return
	}
	defer conn.CloseNow()

	client := &eventClient{
		send: make(chan []byte, clientBuffer),
		done: make(chan struct{}),
	}

	// 先注册再取状态，取状态期间产生的事件不会丢失
	if !h.register(client) {
		conn.Close(websocket.StatusGoingAway, "服务正在关闭")
		return
	}
	defer h.unregister(client)

	// CloseRead 处理控制帧，客户端断开时取消 ctx
	ctx := conn.CloseRead(r.Context())
	helper.Debug(helper.LogTypeWeb, "事件连接已建立: %s", helper.GetClientIP(r))

	if data, ok := h.snapshotMessage(); ok {
		if err := writeMessage(ctx, conn, data); err != nil {
			return
		}
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-client.done:
			conn.Close(websocket.StatusGoingAway, "")
			return
		case data := <-client.send:
			if err := writeMessage(ctx, conn, data); err != nil {
				if !errors.Is(err, context.Canceled) {
					helper.Debug(helper.LogTypeWeb, "推送事件失败: %v", err)
				}
				return
			}
		}
	}
}

// snapshotMessage 当前状态消息，需在 h.mu 之外调用
func (h *EventHub) snapshotMessage() ([]byte, bool) {
	if h.state == nil {
		return nil, false
	}
	data, err := json.Marshal(struct {
		Type    string           `json:"type"`
		Time    time.Time        `json:"time"`
		Payload updater.Snapshot `json:"payload"`
	}{stateMessageType, time.Now(), h.state()})
	if err != nil {
		helper.Warn(helper.LogTypeWeb, "序列化当前状态失败: %v", err)
		return nil, false
	}
	return data, true
}

func writeMessage(ctx context.Context, conn *websocket.Conn, data []byte) error {
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	return conn.Write(ctx, websocket.MessageText, data)
}
