package api

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
	"time"

	"barscan/internal/acquisition"
	"barscan/internal/activity"
	"barscan/internal/capture"
	"barscan/internal/faults"
	"barscan/internal/history"
	"barscan/internal/scan"
)

func TestStatusCode(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{nil, http.StatusOK},
		{fmt.Errorf("lookup: %w", faults.ErrUnknownField), http.StatusNotFound},
		{faults.Wrap(faults.ErrConfiguration, "scan", "start", "no config", nil), http.StatusBadRequest},
		{scan.ErrNotStarted, http.StatusServiceUnavailable},
		{faults.Wrap(faults.ErrDecode, "results", "extract", "", nil), http.StatusUnprocessableEntity},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		if got := StatusCode(tt.err); got != tt.want {
			t.Fatalf("StatusCode(%v) = %d, want %d", tt.err, got, tt.want)
		}
	}
}

func TestErrorFromIncludesHint(t *testing.T) {
	resp := ErrorFrom(fmt.Errorf("get bogus: %w", faults.ErrUnknownField))
	if resp.Kind != string(faults.KindUnknownField) {
		t.Fatalf("unexpected kind %q", resp.Kind)
	}
	if resp.Hint == "" {
		t.Fatal("expected hint for unknown field")
	}
}

func TestFromHandle(t *testing.T) {
	if FromHandle(nil, false) != nil {
		t.Fatal("expected nil session for nil handle")
	}
	started := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	h := &scan.Handle{
		SessionID: "abc",
		Device:    "/dev/video0",
		Config:    capture.Config{Kind: capture.KindV4L2, Device: "/dev/video0", Width: 640, Height: 480, FramerateNum: 30, FramerateDenom: 1},
		StartedAt: started,
	}
	dto := FromHandle(h, true)
	if dto.Resolution != "640x480" || dto.Framerate != "30/1" || !dto.Paused {
		t.Fatalf("unexpected session: %+v", dto)
	}
	if dto.StartedAt != "2026-03-01T12:00:00.000Z" {
		t.Fatalf("unexpected started at %q", dto.StartedAt)
	}
}

func TestFromAcquisition(t *testing.T) {
	begun := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	active := FromAcquisition(acquisition.Record{ID: "a", BegunAt: begun})
	if !active.Active || active.CompletedAt != "" {
		t.Fatalf("unexpected active acquisition: %+v", active)
	}
	done := begun.Add(time.Minute)
	completed := FromAcquisition(acquisition.Record{ID: "b", BegunAt: begun, CompletedAt: &done, Results: map[string]string{"product-id": "P1"}})
	if completed.Active || completed.CompletedAt == "" || completed.Results["product-id"] != "P1" {
		t.Fatalf("unexpected completed acquisition: %+v", completed)
	}
}

func TestFromEventsAndDetections(t *testing.T) {
	if FromEvents(nil) != nil {
		t.Fatal("expected nil for no events")
	}
	events := FromEvents([]activity.Event{{
		Sequence: 4,
		Kind:     activity.KindSymbolsFound,
		Symbols:  []activity.Symbol{{Type: "QRCODE", Data: "#D%B"}},
	}})
	if len(events) != 1 || events[0].Kind != "symbols-found" || events[0].Symbols[0].Data != "#D%B" {
		t.Fatalf("unexpected events: %+v", events)
	}

	rows := FromDetections([]history.Detection{{ID: 1, Symbology: "CODE128", Data: "P123"}})
	if rows[0].Type != "CODE128" || rows[0].DetectedAt != "" {
		t.Fatalf("unexpected detections: %+v", rows)
	}
}
