package logging

import (
	"strings"
	"sync"
	"time"
)

// RepeatSampler suppresses repeated identical log lines while still surfacing
// a periodic reminder and every change of message. The scan loop uses it so a
// camera that fails on every tick logs once per window instead of at frame rate.
type RepeatSampler struct {
	mu         sync.Mutex
	window     time.Duration
	now        func() time.Time
	lastKey    string
	lastEmit   time.Time
	suppressed int
}

// NewRepeatSampler constructs a sampler that emits a repeated key at most once
// per window (default 30s).
func NewRepeatSampler(window time.Duration) *RepeatSampler {
	if window <= 0 {
		window = 30 * time.Second
	}
	return &RepeatSampler{window: window, now: time.Now}
}

// ShouldLog reports whether a line identified by key should be logged, plus
// the number of identical lines suppressed since the previous emission.
func (s *RepeatSampler) ShouldLog(key string) (bool, int) {
	if s == nil {
		return true, 0
	}
	key = strings.TrimSpace(key)
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	if key != s.lastKey || s.lastEmit.IsZero() || now.Sub(s.lastEmit) >= s.window {
		suppressed := s.suppressed
		s.lastKey = key
		s.lastEmit = now
		s.suppressed = 0
		return true, suppressed
	}
	s.suppressed++
	return false, 0
}

// Reset clears the sampler state (e.g. when a new scan session starts).
func (s *RepeatSampler) Reset() {
	if s == nil {
		return
	}
	s.mu.Lock()
	s.lastKey = ""
	s.lastEmit = time.Time{}
	s.suppressed = 0
	s.mu.Unlock()
}
