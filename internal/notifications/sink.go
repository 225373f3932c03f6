package notifications

import (
	"context"
	"log/slog"
	"maps"
	"sync"
	"time"

	"barscan/internal/activity"
	"barscan/internal/logging"
)

// Sink forwards activity events that warrant a push notification. Delivery
// runs off the publishing goroutine; Close waits for pending deliveries.
type Sink struct {
	service Service
	logger  *slog.Logger
	timeout time.Duration
	wg      sync.WaitGroup
}

// NewSink wraps service as an activity.Sink.
func NewSink(service Service, logger *slog.Logger) *Sink {
	return &Sink{
		service: service,
		logger:  logging.NewComponentLogger(logger, "notifications"),
		timeout: 15 * time.Second,
	}
}

// Append implements activity.Sink.
func (s *Sink) Append(evt activity.Event) {
	if s == nil || s.service == nil {
		return
	}
	event, payload, ok := translate(evt)
	if !ok {
		return
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
		defer cancel()
		if err := s.service.Publish(ctx, event, payload); err != nil {
			logging.WarnWithContext(s.logger, "notification failed", "notification_failed",
				logging.String("notification", string(event)),
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check notifications.ntfy_topic and network access"),
				logging.String(logging.FieldImpact, "operators are not alerted for this event"),
			)
		}
	}()
}

// Close waits for in-flight deliveries.
func (s *Sink) Close() {
	if s != nil {
		s.wg.Wait()
	}
}

func translate(evt activity.Event) (Event, Payload, bool) {
	switch evt.Kind {
	case activity.KindAcquisitionCompleted:
		payload := Payload{}
		maps.Copy(payload, evt.Results)
		payload["id"] = evt.Message
		return EventAcquisitionCompleted, payload, true
	case activity.KindSourceLost:
		return EventSourceLost, Payload{"device": evt.Device, "reason": evt.Message}, true
	default:
		return "", nil, false
	}
}
