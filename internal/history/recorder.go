package history

import (
	"context"
	"log/slog"
	"time"

	"barscan/internal/activity"
	"barscan/internal/logging"
)

// Recorder is an activity sink that stores symbols-found events.
type Recorder struct {
	store   *Store
	logger  *slog.Logger
	timeout time.Duration
}

// NewRecorder wraps store as an activity.Sink.
func NewRecorder(store *Store, logger *slog.Logger) *Recorder {
	return &Recorder{
		store:   store,
		logger:  logging.NewComponentLogger(logger, "history"),
		timeout: 5 * time.Second,
	}
}

// Append implements activity.Sink.
func (r *Recorder) Append(evt activity.Event) {
	if r == nil || r.store == nil || evt.Kind != activity.KindSymbolsFound || len(evt.Symbols) == 0 {
		return
	}
	detections := make([]Detection, 0, len(evt.Symbols))
	for _, sym := range evt.Symbols {
		detections = append(detections, Detection{
			SessionID:  evt.SessionID,
			Device:     evt.Device,
			Symbology:  sym.Type,
			Data:       sym.Data,
			FrameSeq:   evt.FrameSeq,
			DetectedAt: evt.Timestamp,
		})
	}
	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()
	if err := r.store.RecordDetections(ctx, detections); err != nil {
		logging.WarnWithContext(r.logger, "failed to record detections", "history_write_failed",
			logging.Error(err),
			logging.Int("count", len(detections)),
			logging.String(logging.FieldErrorHint, "check free space and permissions under the state directory"),
			logging.String(logging.FieldImpact, "these detections are missing from history"),
		)
	}
}
