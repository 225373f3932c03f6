// Package activity buffers daemon events (symbols found, result changes,
// source lifecycle, camera hot-plug) for long-poll and WebSocket readers.
package activity

import (
	"context"
	"sync"
	"time"
)

// Kind classifies an activity event.
type Kind string

const (
	KindSymbolsFound         Kind = "symbols-found"
	KindResultsUpdated       Kind = "results-updated"
	KindSourceStarted        Kind = "source-started"
	KindSourceStopped        Kind = "source-stopped"
	KindSourceLost           Kind = "source-lost"
	KindSourcePaused         Kind = "source-paused"
	KindSourceResumed        Kind = "source-resumed"
	KindScanEnabled          Kind = "scan-enabled"
	KindScanDisabled         Kind = "scan-disabled"
	KindDeviceAdded          Kind = "device-added"
	KindDeviceRemoved        Kind = "device-removed"
	KindAcquisitionBegun     Kind = "acquisition-begun"
	KindAcquisitionCompleted Kind = "acquisition-completed"
)

// Symbol is the wire form of a detection.
type Symbol struct {
	Type string `json:"type"`
	Data string `json:"data"`
}

// Event is one entry in the hub.
type Event struct {
	Sequence  uint64            `json:"seq"`
	Timestamp time.Time         `json:"ts"`
	Kind      Kind              `json:"kind"`
	SessionID string            `json:"session_id,omitempty"`
	Device    string            `json:"device,omitempty"`
	FrameSeq  uint64            `json:"frame_seq,omitempty"`
	Symbols   []Symbol          `json:"symbols,omitempty"`
	Results   map[string]string `json:"results,omitempty"`
	Message   string            `json:"message,omitempty"`
}

// Sink receives every published event after it is buffered.
type Sink interface {
	Append(Event)
}

// Hub stores recent events and wakes waiters when new events arrive.
type Hub struct {
	mu       sync.Mutex
	cond     *sync.Cond
	capacity int
	buffer   []Event
	nextSeq  uint64
	sinks    []Sink
}

// NewHub constructs a bounded in-memory event buffer.
func NewHub(capacity int) *Hub {
	if capacity <= 0 {
		capacity = 512
	}
	h := &Hub{capacity: capacity}
	h.cond = sync.NewCond(&h.mu)
	return h
}

// AddSink wires an additional sink that receives every published event.
func (h *Hub) AddSink(sink Sink) {
	if h == nil || sink == nil {
		return
	}
	h.mu.Lock()
	h.sinks = append(h.sinks, sink)
	h.mu.Unlock()
}

// Publish appends evt, assigning its sequence number, and returns the stored copy.
func (h *Hub) Publish(evt Event) Event {
	if h == nil {
		return evt
	}
	h.mu.Lock()
	h.nextSeq++
	evt.Sequence = h.nextSeq
	if evt.Timestamp.IsZero() {
		evt.Timestamp = time.Now().UTC()
	}
	if len(h.buffer) == h.capacity {
		copy(h.buffer, h.buffer[1:])
		h.buffer = h.buffer[:h.capacity-1]
	}
	h.buffer = append(h.buffer, evt)
	sinks := append([]Sink(nil), h.sinks...)
	h.cond.Broadcast()
	h.mu.Unlock()

	for _, sink := range sinks {
		sink.Append(evt)
	}
	return evt
}

// Fetch returns up to limit events with sequence greater than since, plus the
// latest sequence. With wait set it blocks until an event arrives or ctx ends.
func (h *Hub) Fetch(ctx context.Context, since uint64, limit int, wait bool) ([]Event, uint64, error) {
	if h == nil {
		return nil, since, nil
	}
	if limit <= 0 || limit > h.capacity {
		limit = h.capacity
	}

	cancelWait := make(chan struct{})
	if wait && ctx != nil && ctx.Done() != nil {
		go func() {
			select {
			case <-ctx.Done():
				h.mu.Lock()
				h.cond.Broadcast()
				h.mu.Unlock()
			case <-cancelWait:
			}
		}()
	}
	defer close(cancelWait)

	h.mu.Lock()
	defer h.mu.Unlock()

	for {
		events, next := h.snapshotLocked(since, limit)
		if len(events) > 0 || !wait {
			return events, next, contextError(ctx)
		}
		if err := contextError(ctx); err != nil {
			return nil, next, err
		}
		h.cond.Wait()
	}
}

// Tail returns the most recent limit events without blocking.
func (h *Hub) Tail(limit int) ([]Event, uint64) {
	if h == nil {
		return nil, 0
	}
	if limit <= 0 || limit > h.capacity {
		limit = h.capacity
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	start := len(h.buffer) - limit
	if start < 0 {
		start = 0
	}
	if start == len(h.buffer) {
		return nil, h.nextSeq
	}
	out := make([]Event, len(h.buffer)-start)
	copy(out, h.buffer[start:])
	return out, h.nextSeq
}

// FirstSequence reports the smallest sequence number still buffered.
func (h *Hub) FirstSequence() uint64 {
	if h == nil {
		return 0
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.buffer) == 0 {
		return h.nextSeq
	}
	return h.buffer[0].Sequence
}

func (h *Hub) snapshotLocked(since uint64, limit int) ([]Event, uint64) {
	startIdx := -1
	for i, evt := range h.buffer {
		if evt.Sequence > since {
			startIdx = i
			break
		}
	}
	if startIdx < 0 {
		return nil, h.nextSeq
	}
	end := startIdx + limit
	if end > len(h.buffer) {
		end = len(h.buffer)
	}
	out := make([]Event, end-startIdx)
	copy(out, h.buffer[startIdx:end])
	return out, out[len(out)-1].Sequence
}

func contextError(ctx context.Context) error {
	if ctx == nil {
		return nil
	}
	return ctx.Err()
}
