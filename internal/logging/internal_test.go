package logging

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"
	"time"
)

func TestRepeatSamplerSuppressesWithinWindow(t *testing.T) {
	clock := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	s := NewRepeatSampler(10 * time.Second)
	s.now = func() time.Time { return clock }

	if ok, _ := s.ShouldLog("read failed"); !ok {
		t.Fatal("first occurrence should log")
	}
	for i := 0; i < 3; i++ {
		clock = clock.Add(time.Second)
		if ok, _ := s.ShouldLog("read failed"); ok {
			t.Fatalf("repeat %d inside window should be suppressed", i)
		}
	}
	clock = clock.Add(10 * time.Second)
	ok, suppressed := s.ShouldLog("read failed")
	if !ok || suppressed != 3 {
		t.Fatalf("expected emission with 3 suppressed, got ok=%v suppressed=%d", ok, suppressed)
	}
	if ok, _ := s.ShouldLog("decoder panic"); !ok {
		t.Fatal("a new key should log immediately")
	}
}

func TestRepeatSamplerNilAndReset(t *testing.T) {
	var nilSampler *RepeatSampler
	if ok, _ := nilSampler.ShouldLog("x"); !ok {
		t.Fatal("nil sampler should always log")
	}
	nilSampler.Reset()

	s := NewRepeatSampler(0)
	if s.window != 30*time.Second {
		t.Fatalf("unexpected default window %v", s.window)
	}
	s.ShouldLog("x")
	s.Reset()
	if ok, _ := s.ShouldLog("x"); !ok {
		t.Fatal("reset sampler should log again")
	}
}

func TestFanoutHandlerRespectsLevels(t *testing.T) {
	var infoBuf, debugBuf bytes.Buffer
	infoLevel := new(slog.LevelVar)
	debugLevel := new(slog.LevelVar)
	debugLevel.Set(slog.LevelDebug)

	logger := TeeLogger(slog.New(newPrettyHandler(&infoBuf, infoLevel, false)),
		newJSONHandler(&debugBuf, debugLevel, false))
	logger.Debug("frame decoded")
	logger.Info("session started")

	if strings.Contains(infoBuf.String(), "frame decoded") {
		t.Fatalf("info handler received debug record: %q", infoBuf.String())
	}
	if !strings.Contains(infoBuf.String(), "session started") {
		t.Fatalf("info handler missing info record: %q", infoBuf.String())
	}
	if strings.Count(debugBuf.String(), "\n") != 2 {
		t.Fatalf("debug handler should receive both records: %q", debugBuf.String())
	}
}

func TestNewFanoutHandlerCollapses(t *testing.T) {
	if _, ok := newFanoutHandler().(NoopHandler); !ok {
		t.Fatal("expected noop handler for empty fanout")
	}
	single := NoopHandler{}
	if got := newFanoutHandler(nil, single); got != slog.Handler(single) {
		t.Fatal("expected single handler to be returned as-is")
	}
}

func TestSessionHandlerNilBase(t *testing.T) {
	h := newSessionIDHandler(nil, "x")
	if h.Enabled(context.Background(), slog.LevelError) {
		t.Fatal("nil base should produce a disabled handler")
	}
}

func TestDedupeKVsKeepsLastValue(t *testing.T) {
	in := []kv{
		{key: "a", value: slog.IntValue(1)},
		{key: "b", value: slog.IntValue(2)},
		{key: "a", value: slog.IntValue(3)},
	}
	out := dedupeKVsByKey(in)
	if len(out) != 2 || out[0].key != "a" || out[0].value.Int64() != 3 {
		t.Fatalf("unexpected dedupe result: %+v", out)
	}
}
