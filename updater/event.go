package updater

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"
)

// EventType 推送给展示层的事件类型
type EventType string

const (
	EventUpdateAvailable  EventType = "update-available"
	EventDownloadProgress EventType = "download-progress"
	EventUpdateDownloaded EventType = "update-downloaded"
	EventUpdateError      EventType = "update-error"
)

// Event 一次状态变化对应的事件
//
// Payload 的具体类型:
//   - update-available / update-downloaded: UpdateInfo
//   - download-progress: Progress
//   - update-error: ErrorInfo
type Event struct {
	ID      string    `json:"id"`
	Type    EventType `json:"type"`
	Time    time.Time `json:"time"`
	Payload any       `json:"payload"`
}

func newEvent(t EventType, payload any) Event {
	return Event{
		ID:      uuid.NewString(),
		Type:    t,
		Time:    time.Now(),
		Payload: payload,
	}
}

// Publisher 事件的接收方。Publish 在 Controller 持锁时被调用，不能回调 Controller。
type Publisher interface {
	Publish(event Event) error
}

// PublisherFunc 函数适配器
type PublisherFunc func(event Event) error

func (f PublisherFunc) Publish(event Event) error {
	return f(event)
}

// Publishers 将事件依次分发给多个 Publisher，任一失败不影响其他
type Publishers []Publisher

func (ps Publishers) Publish(event Event) error {
	var errs error
	for i, p := range ps {
		if p == nil {
			continue
		}
		if err := p.Publish(event); err != nil {
			errs = multierror.Append(errs, fmt.Errorf("publisher %d: %w", i, err))
		}
	}
	return errs
}
