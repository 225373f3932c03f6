// Package scan drives the frame loop: it reads frames from a capture source,
// decodes them while scanning is enabled, and notifies subscribers of new
// frames and of symbol sets that differ from the previous pass.
package scan

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"barscan/internal/capture"
	"barscan/internal/decoder"
	"barscan/internal/faults"
	"barscan/internal/logging"
)

// DefaultInterval is the polling period of the frame loop.
const DefaultInterval = 150 * time.Millisecond

// ErrNotStarted is returned by Pause and Resume without an active session.
var ErrNotStarted = fmt.Errorf("%w: scanner is not started", faults.ErrSourceUnavailable)

// Handle describes a started session.
type Handle struct {
	SessionID string         `json:"session_id"`
	Device    string         `json:"device_name"`
	Config    capture.Config `json:"config"`
	StartedAt time.Time      `json:"started_at"`
}

// State is a read-only view of the scan state.
type State struct {
	Enabled     bool          `json:"enabled"`
	Processing  bool          `json:"processing"`
	LastSymbols SymbolSet     `json:"last_symbols,omitempty"`
	LastFrame   capture.Frame `json:"-"`
}

// Option customizes a Controller.
type Option func(*Controller)

// WithLogger sets the controller logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Controller) { c.logger = logger }
}

// WithInterval sets the frame polling period. Non-positive values are ignored.
func WithInterval(d time.Duration) Option {
	return func(c *Controller) {
		if d > 0 {
			c.interval = d
		}
	}
}

// WithLocker sets the device locker used to claim exclusive ownership.
func WithLocker(locker capture.Locker) Option {
	return func(c *Controller) {
		if locker != nil {
			c.locker = locker
		}
	}
}

// WithClock overrides the time source used to stamp symbols.
func WithClock(now func() time.Time) Option {
	return func(c *Controller) {
		if now != nil {
			c.now = now
		}
	}
}

// Controller owns the frame source, the enable switch and the processing guard.
type Controller struct {
	opener   capture.Opener
	decoder  decoder.Decoder
	locker   capture.Locker
	logger   *slog.Logger
	interval time.Duration
	now      func() time.Time
	sampler  *logging.RepeatSampler

	mu      sync.Mutex
	bound   *capture.Config
	current *session
	gen     atomic.Uint64

	scanning   atomic.Bool
	processing atomic.Bool
	// dispatchMu is held for the duration of one frame dispatch.
	dispatchMu sync.Mutex

	subMu   sync.RWMutex
	subs    []subscription
	nextSub uint64
}

type subscription struct {
	id      uint64
	handler Handler
}

type session struct {
	id        string
	gen       uint64
	cfg       capture.Config
	source    capture.Source
	unlock    func() error
	cancel    context.CancelFunc
	done      chan struct{}
	startedAt time.Time
	logger    *slog.Logger
	paused    atomic.Bool
	closeOnce sync.Once

	stateMu     sync.Mutex
	lastSymbols SymbolSet
	lastFrame   capture.Frame
}

func (s *session) reset() {
	s.stateMu.Lock()
	s.lastSymbols = nil
	s.lastFrame = capture.Frame{}
	s.stateMu.Unlock()
}

func (s *session) handle() *Handle {
	return &Handle{SessionID: s.id, Device: s.cfg.Device, Config: s.cfg, StartedAt: s.startedAt}
}

// New constructs a controller. Scanning starts disabled.
func New(opener capture.Opener, dec decoder.Decoder, opts ...Option) *Controller {
	c := &Controller{
		opener:   opener,
		decoder:  dec,
		locker:   capture.NopLocker{},
		interval: DefaultInterval,
		now:      time.Now,
		sampler:  logging.NewRepeatSampler(30 * time.Second),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = logging.NewComponentLogger(c.logger, "scan")
	return c
}

// Start opens the source described by cfg and starts the frame loop. A nil
// cfg reuses the last bound configuration. A running session is stopped first.
func (c *Controller) Start(ctx context.Context, cfg *capture.Config) (*Handle, error) {
	c.mu.Lock()
	resolved := cfg
	if resolved == nil {
		resolved = c.bound
	}
	if resolved == nil {
		c.mu.Unlock()
		return nil, faults.Wrap(faults.ErrConfiguration, "scan", "start", "no source configuration given and none bound", nil)
	}
	target := *resolved
	old := c.detachLocked()
	c.mu.Unlock()

	if old != nil {
		c.closeSession(ctx, old, StopRestarted, nil)
	}

	unlock, err := c.locker.Acquire(target.Device)
	if err != nil {
		return nil, err
	}
	src, err := c.opener.Open(ctx, target)
	if err != nil {
		_ = unlock()
		switch faults.KindOf(err) {
		case faults.KindConfiguration, faults.KindSourceUnavailable:
			return nil, err
		default:
			return nil, faults.Wrap(faults.ErrSourceUnavailable, "scan", "start", "open "+target.Device, err)
		}
	}

	loopCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	s := &session{
		id:        uuid.NewString(),
		cfg:       target,
		source:    src,
		unlock:    unlock,
		cancel:    cancel,
		done:      make(chan struct{}),
		startedAt: c.now(),
	}
	s.logger = c.logger.With(
		logging.ScanSession(s.id),
		logging.Device(target.Device),
	)

	c.mu.Lock()
	displaced := c.detachLocked()
	s.gen = c.gen.Add(1)
	bound := target
	c.bound = &bound
	c.current = s
	c.mu.Unlock()

	if displaced != nil {
		c.closeSession(ctx, displaced, StopRestarted, nil)
	}
	c.sampler.Reset()

	go c.run(loopCtx, s)

	s.logger.Info("scan session started",
		logging.String(logging.FieldEventType, "scan_session_started"),
		logging.String("resolution", target.Resolution()),
		logging.String("framerate", target.Framerate()),
		logging.Bool("scanning", c.scanning.Load()),
	)
	return s.handle(), nil
}

// Stop ends the current session and releases the source. It is a no-op when
// not started. Called from a handler with the handler's ctx it returns
// without waiting for the in-flight dispatch.
func (c *Controller) Stop(ctx context.Context) error {
	c.mu.Lock()
	s := c.detachLocked()
	c.mu.Unlock()
	if s == nil {
		return nil
	}
	return c.closeSession(ctx, s, StopRequested, nil)
}

// detachLocked makes the current session stale. Caller holds c.mu.
func (c *Controller) detachLocked() *session {
	s := c.current
	if s == nil {
		return nil
	}
	c.current = nil
	c.gen.Add(1)
	s.cancel()
	return s
}

// closeSession waits for the loop of s unless called from a dispatch, then
// releases the source and device lock exactly once.
func (c *Controller) closeSession(ctx context.Context, s *session, reason StopReason, cause error) error {
	var waitErr error
	if _, inDispatch := dispatchFrom(ctx, c); !inDispatch {
		select {
		case <-s.done:
		case <-ctx.Done():
			waitErr = ctx.Err()
		}
	}

	var releaseErr error
	closed := false
	s.closeOnce.Do(func() {
		closed = true
		if err := s.source.Release(); err != nil {
			releaseErr = fmt.Errorf("release source: %w", err)
		}
		if s.unlock != nil {
			if err := s.unlock(); err != nil {
				releaseErr = errors.Join(releaseErr, fmt.Errorf("release device lock: %w", err))
			}
		}
		s.reset()
	})
	if !closed {
		return waitErr
	}

	attrs := []logging.Attr{
		logging.String(logging.FieldEventType, "scan_session_stopped"),
		logging.String("reason", string(reason)),
		logging.Duration("uptime", c.now().Sub(s.startedAt)),
	}
	if cause != nil {
		attrs = append(attrs, logging.Error(cause))
	}
	s.logger.Info("scan session stopped", logging.Args(attrs...)...)

	c.publishAll(ctx, Event{
		Kind:      EventSourceStopped,
		SessionID: s.id,
		Device:    s.cfg.Device,
		Reason:    reason,
		Err:       cause,
		At:        c.now(),
	})
	return errors.Join(waitErr, releaseErr)
}

// Pause suspends frame delivery without releasing the source.
func (c *Controller) Pause() error {
	s := c.session()
	if s == nil {
		return ErrNotStarted
	}
	if !s.paused.CompareAndSwap(false, true) {
		return nil
	}
	if p, ok := s.source.(capture.Pauser); ok {
		if err := p.Pause(); err != nil {
			s.paused.Store(false)
			return faults.Wrap(faults.ErrSourceUnavailable, "scan", "pause", "", err)
		}
	}
	s.logger.Info("scan session paused", logging.String(logging.FieldEventType, "scan_session_paused"))
	return nil
}

// Resume continues a paused session.
func (c *Controller) Resume() error {
	s := c.session()
	if s == nil {
		return ErrNotStarted
	}
	if !s.paused.Load() {
		return nil
	}
	if p, ok := s.source.(capture.Pauser); ok {
		if err := p.Resume(); err != nil {
			return faults.Wrap(faults.ErrSourceUnavailable, "scan", "resume", "", err)
		}
	}
	s.paused.Store(false)
	s.logger.Info("scan session resumed", logging.String(logging.FieldEventType, "scan_session_resumed"))
	return nil
}

// EnableScan attaches decoding to frame delivery and clears the scan state.
// Enabling an enabled controller does nothing.
func (c *Controller) EnableScan() {
	if !c.scanning.CompareAndSwap(false, true) {
		return
	}
	if s := c.session(); s != nil {
		s.reset()
	}
	c.logger.Info("scanning enabled", logging.String(logging.FieldEventType, "scan_enabled"))
}

// DisableScan detaches decoding and clears the scan state. Once it returns
// no further symbols-found events are delivered. Disabling a disabled
// controller does nothing.
func (c *Controller) DisableScan(ctx context.Context) {
	if !c.scanning.CompareAndSwap(true, false) {
		return
	}
	if _, inDispatch := dispatchFrom(ctx, c); !inDispatch {
		// Wait out the in-flight dispatch.
		c.dispatchMu.Lock()
		c.dispatchMu.Unlock()
	}
	if s := c.session(); s != nil {
		s.reset()
	}
	c.logger.Info("scanning disabled", logging.String(logging.FieldEventType, "scan_disabled"))
}

// Subscribe registers h and returns a function that removes it.
func (c *Controller) Subscribe(h Handler) (unsubscribe func()) {
	if h == nil {
		return func() {}
	}
	c.subMu.Lock()
	c.nextSub++
	id := c.nextSub
	c.subs = append(c.subs, subscription{id: id, handler: h})
	c.subMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			c.subMu.Lock()
			defer c.subMu.Unlock()
			for i, sub := range c.subs {
				if sub.id == id {
					c.subs = append(c.subs[:i:i], c.subs[i+1:]...)
					return
				}
			}
		})
	}
}

// State returns a copy of the current scan state.
func (c *Controller) State() State {
	st := State{
		Enabled:    c.scanning.Load(),
		Processing: c.processing.Load(),
	}
	if s := c.session(); s != nil {
		s.stateMu.Lock()
		st.LastSymbols = s.lastSymbols.Clone()
		st.LastFrame = s.lastFrame
		s.stateMu.Unlock()
	}
	return st
}

// Bound returns the configuration the next nil-config Start will use.
func (c *Controller) Bound() (capture.Config, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.bound == nil {
		return capture.Config{}, false
	}
	return *c.bound, true
}

// Current describes the running session, or nil.
func (c *Controller) Current() *Handle {
	if s := c.session(); s != nil {
		return s.handle()
	}
	return nil
}

// Running reports whether a session is active.
func (c *Controller) Running() bool {
	return c.session() != nil
}

// Paused reports whether the active session is paused.
func (c *Controller) Paused() bool {
	s := c.session()
	return s != nil && s.paused.Load()
}

// Scanning reports whether decoding is enabled.
func (c *Controller) Scanning() bool {
	return c.scanning.Load()
}

func (c *Controller) session() *session {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

func (c *Controller) live(s *session) bool {
	return c.gen.Load() == s.gen
}
