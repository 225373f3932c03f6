package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"time"

	"barscan/internal/config"
)

const userAgent = "barscan/0.1.0"

// Event names a notification.
type Event string

const (
	EventAcquisitionCompleted Event = "acquisition_completed"
	EventSourceLost           Event = "source_lost"
	EventTest                 Event = "test"
)

// Payload carries event details keyed by name.
type Payload map[string]string

// Service publishes notifications.
type Service interface {
	Publish(ctx context.Context, event Event, payload Payload) error
}

// NewService builds a notification service backed by ntfy when configured.
// When no ntfy topic is configured, a noop implementation is returned.
func NewService(cfg *config.Config) Service {
	if cfg == nil {
		return noopService{}
	}
	topic := strings.TrimSpace(cfg.Notifications.NtfyTopic)
	if topic == "" {
		return noopService{}
	}

	timeout := time.Duration(cfg.Notifications.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &ntfyService{
		endpoint: topic,
		client:   &http.Client{Timeout: timeout},
		enabled: map[Event]bool{
			EventAcquisitionCompleted: cfg.Notifications.Acquisitions,
			EventSourceLost:           cfg.Notifications.SourceLost,
			EventTest:                 true,
		},
	}
}

type message struct {
	title    string
	body     string
	tags     []string
	priority string
}

type ntfyService struct {
	endpoint string
	client   *http.Client
	enabled  map[Event]bool
}

func (n *ntfyService) Publish(ctx context.Context, event Event, payload Payload) error {
	if !n.enabled[event] {
		return nil
	}
	msg, ok := format(event, payload)
	if !ok {
		return nil
	}
	return n.send(ctx, msg)
}

func format(event Event, payload Payload) (message, bool) {
	switch event {
	case EventAcquisitionCompleted:
		var body strings.Builder
		fmt.Fprintf(&body, "Acquisition %s complete", strings.TrimSpace(payload["id"]))
		keys := make([]string, 0, len(payload))
		for key := range payload {
			if key != "id" {
				keys = append(keys, key)
			}
		}
		sort.Strings(keys)
		for _, key := range keys {
			fmt.Fprintf(&body, "\n%s: %s", key, payload[key])
		}
		return message{
			title: "barscan - Acquisition Complete",
			body:  body.String(),
			tags:  []string{"barscan", "acquisition", "completed"},
		}, true
	case EventSourceLost:
		body := fmt.Sprintf("Capture stopped on %s", strings.TrimSpace(payload["device"]))
		if reason := strings.TrimSpace(payload["reason"]); reason != "" {
			body += ": " + reason
		}
		return message{
			title:    "barscan - Camera Lost",
			body:     body,
			tags:     []string{"barscan", "camera", "alert"},
			priority: "high",
		}, true
	case EventTest:
		return message{
			title:    "barscan - Test",
			body:     "Notification system test",
			tags:     []string{"barscan", "test"},
			priority: "low",
		}, true
	default:
		return message{}, false
	}
}

func (n *ntfyService) send(ctx context.Context, msg message) error {
	if n == nil || n.client == nil {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, strings.NewReader(msg.body))
	if err != nil {
		return fmt.Errorf("build ntfy request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	if msg.title != "" {
		req.Header.Set("Title", msg.title)
	}
	if len(msg.tags) > 0 {
		req.Header.Set("Tags", strings.Join(msg.tags, ","))
	}
	if msg.priority != "" && msg.priority != "default" {
		req.Header.Set("Priority", msg.priority)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send ntfy notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("ntfy returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

type noopService struct{}

func (noopService) Publish(context.Context, Event, Payload) error { return nil }
