package history_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"barscan/internal/acquisition"
	"barscan/internal/activity"
	"barscan/internal/history"
)

func openStore(t *testing.T) *history.Store {
	t.Helper()
	store, err := history.Open(filepath.Join(t.TempDir(), "history.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestReopenKeepsSchema(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.db")
	store, err := history.Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	again, err := history.Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	_ = again.Close()
}

func TestDetectionsRoundTripAndPrune(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()
	old := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	recent := old.Add(48 * time.Hour)

	err := store.RecordDetections(ctx, []history.Detection{
		{SessionID: "s1", Device: "/dev/video0", Symbology: "QRCODE", Data: "#D%B", FrameSeq: 7, DetectedAt: old},
		{SessionID: "s1", Device: "/dev/video0", Symbology: "CODE128", Data: "P1", FrameSeq: 9, DetectedAt: recent},
	})
	if err != nil {
		t.Fatalf("RecordDetections: %v", err)
	}

	got, err := store.Recent(ctx, 10)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(got) != 2 || got[0].Data != "P1" || got[1].FrameSeq != 7 {
		t.Fatalf("unexpected detections %+v", got)
	}
	if !got[1].DetectedAt.Equal(old) {
		t.Fatalf("timestamp not preserved: %v", got[1].DetectedAt)
	}

	removed, err := store.Prune(ctx, old.Add(time.Hour))
	if err != nil {
		t.Fatalf("Prune: %v", err)
	}
	if removed != 1 {
		t.Fatalf("expected one row pruned, got %d", removed)
	}
	stats, err := store.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats.Detections != 1 {
		t.Fatalf("expected one detection left, got %d", stats.Detections)
	}
}

func TestAcquisitionUpsert(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()
	begun := time.Date(2026, 2, 1, 9, 0, 0, 0, time.UTC)
	rec := acquisition.Record{ID: "exp-1", BegunAt: begun}
	if err := store.SaveAcquisition(ctx, rec); err != nil {
		t.Fatalf("SaveAcquisition: %v", err)
	}
	done := begun.Add(time.Minute)
	rec.CompletedAt = &done
	rec.Results = map[string]string{"batch-id": "B7"}
	if err := store.SaveAcquisition(ctx, rec); err != nil {
		t.Fatalf("SaveAcquisition update: %v", err)
	}

	records, err := store.Acquisitions(ctx)
	if err != nil {
		t.Fatalf("Acquisitions: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("expected one record, got %d", len(records))
	}
	got := records[0]
	if got.CompletedAt == nil || !got.CompletedAt.Equal(done) || got.Results["batch-id"] != "B7" {
		t.Fatalf("unexpected record %+v", got)
	}
}

func TestRecorderStoresSymbolsFound(t *testing.T) {
	store := openStore(t)
	rec := history.NewRecorder(store, nil)
	rec.Append(activity.Event{Kind: activity.KindScanEnabled})
	rec.Append(activity.Event{
		Kind:      activity.KindSymbolsFound,
		SessionID: "s2",
		Device:    "/dev/video1",
		FrameSeq:  3,
		Timestamp: time.Now(),
		Symbols:   []activity.Symbol{{Type: "EAN13", Data: "4006381333931"}},
	})
	got, err := store.Recent(context.Background(), 5)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(got) != 1 || got[0].SessionID != "s2" || got[0].Symbology != "EAN13" {
		t.Fatalf("unexpected detections %+v", got)
	}
}
