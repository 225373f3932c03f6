package activity_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"barscan/internal/activity"
)

func TestHubPublishAndFetch(t *testing.T) {
	hub := activity.NewHub(3)
	for i := 0; i < 5; i++ {
		hub.Publish(activity.Event{Kind: activity.KindSymbolsFound})
	}
	if first := hub.FirstSequence(); first != 3 {
		t.Fatalf("expected oldest sequence 3 after overflow, got %d", first)
	}

	events, next, err := hub.Fetch(context.Background(), 0, 10, false)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if len(events) != 3 || events[0].Sequence != 3 || next != 5 {
		t.Fatalf("unexpected fetch result: %d events, first %d, next %d", len(events), events[0].Sequence, next)
	}

	events, next, err = hub.Fetch(context.Background(), 3, 1, false)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if len(events) != 1 || events[0].Sequence != 4 || next != 4 {
		t.Fatalf("limit not honoured: %+v next=%d", events, next)
	}

	events, next, _ = hub.Fetch(context.Background(), 5, 10, false)
	if len(events) != 0 || next != 5 {
		t.Fatalf("expected no events past the head, got %d (next %d)", len(events), next)
	}
}

func TestHubFetchWaits(t *testing.T) {
	hub := activity.NewHub(8)
	done := make(chan []activity.Event, 1)
	go func() {
		events, _, _ := hub.Fetch(context.Background(), 0, 10, true)
		done <- events
	}()
	time.Sleep(20 * time.Millisecond)
	hub.Publish(activity.Event{Kind: activity.KindDeviceAdded, Device: "/dev/video2"})

	select {
	case events := <-done:
		if len(events) != 1 || events[0].Device != "/dev/video2" {
			t.Fatalf("unexpected events %+v", events)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Fetch did not wake up")
	}
}

func TestHubFetchHonoursContext(t *testing.T) {
	hub := activity.NewHub(8)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, _, err := hub.Fetch(ctx, 0, 10, true)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
}

type captureSink struct {
	mu     sync.Mutex
	events []activity.Event
}

func (s *captureSink) Append(evt activity.Event) {
	s.mu.Lock()
	s.events = append(s.events, evt)
	s.mu.Unlock()
}

func TestHubSinksAndTail(t *testing.T) {
	hub := activity.NewHub(4)
	sink := &captureSink{}
	hub.AddSink(sink)
	hub.Publish(activity.Event{Kind: activity.KindScanEnabled})
	hub.Publish(activity.Event{Kind: activity.KindScanDisabled})

	if len(sink.events) != 2 || sink.events[1].Sequence != 2 {
		t.Fatalf("sink did not receive sequenced events: %+v", sink.events)
	}
	tail, last := hub.Tail(1)
	if len(tail) != 1 || tail[0].Kind != activity.KindScanDisabled || last != 2 {
		t.Fatalf("unexpected tail %+v last=%d", tail, last)
	}

	var nilHub *activity.Hub
	nilHub.Publish(activity.Event{})
	if events, _ := nilHub.Tail(5); events != nil {
		t.Fatal("nil hub should be inert")
	}
}
