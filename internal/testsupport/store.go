package testsupport

import (
	"context"
	"testing"
	"time"

	"barscan/internal/config"
	"barscan/internal/history"
)

// MustOpenHistory opens the detection history for cfg and registers cleanup.
func MustOpenHistory(t testing.TB, cfg *config.Config) *history.Store {
	t.Helper()

	store, err := history.Open(cfg.HistoryPath())
	if err != nil {
		t.Fatalf("history.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

// RecordDetection stores one detection and returns it as written.
func RecordDetection(t testing.TB, store *history.Store, symbology, data string, at time.Time) history.Detection {
	t.Helper()

	det := history.Detection{
		SessionID:  "test-session",
		Device:     "/dev/video0",
		Symbology:  symbology,
		Data:       data,
		FrameSeq:   1,
		DetectedAt: at,
	}
	if err := store.RecordDetections(context.Background(), []history.Detection{det}); err != nil {
		t.Fatalf("RecordDetections: %v", err)
	}
	return det
}
