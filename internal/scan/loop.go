package scan

import (
	"context"
	"errors"
	"fmt"
	"time"

	"barscan/internal/capture"
	"barscan/internal/faults"
	"barscan/internal/logging"
)

func (c *Controller) run(ctx context.Context, s *session) {
	defer close(s.done)
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		if s.paused.Load() {
			continue
		}

		frame, err := s.source.ReadFrame(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			if errors.Is(err, capture.ErrEndOfStream) {
				c.endOfStream(s, err)
				return
			}
			c.logSampled(s, "read", err, "frame read failed", "frame_read_failed",
				"check the capture device connection", "frames are skipped until reads recover")
			continue
		}
		c.onFrame(ctx, s, frame)
	}
}

// endOfStream retires s from its own loop goroutine.
func (c *Controller) endOfStream(s *session, cause error) {
	c.mu.Lock()
	if c.current == s {
		c.detachLocked()
	}
	c.mu.Unlock()
	ctx := context.WithValue(context.Background(), dispatchKey{}, &dispatchMark{controller: c, session: s})
	_ = c.closeSession(ctx, s, StopEndOfStream, cause)
}

// onFrame handles one frame of session s. Frames of a stale session are
// dropped without notification. The processing flag gates decoding: a frame
// that arrives while another pass holds it is published but not decoded.
func (c *Controller) onFrame(ctx context.Context, s *session, frame capture.Frame) {
	if !c.live(s) {
		return
	}

	decoding := false
	if c.scanning.Load() {
		if c.processing.CompareAndSwap(false, true) {
			decoding = true
			defer c.processing.Store(false)
		} else {
			s.logger.Debug("decode pass in progress; frame not decoded",
				logging.FrameSeq(frame.Seq),
			)
		}
	}
	var found SymbolSet
	if decoding {
		found = c.decodeFrame(s, frame)
	}

	c.dispatchMu.Lock()
	defer c.dispatchMu.Unlock()
	if !c.live(s) {
		return
	}
	dctx := context.WithValue(ctx, dispatchKey{}, &dispatchMark{controller: c, session: s})

	changed := false
	if decoding && c.scanning.Load() {
		s.stateMu.Lock()
		if len(found) > 0 && !Equal(found, s.lastSymbols) {
			s.lastSymbols = found.Clone()
			changed = true
		}
		s.stateMu.Unlock()
	}

	s.stateMu.Lock()
	s.lastFrame = frame
	s.stateMu.Unlock()

	at := c.now()
	c.publish(dctx, s, false, Event{
		Kind:      EventFrameUpdate,
		SessionID: s.id,
		Device:    s.cfg.Device,
		Frame:     frame,
		At:        at,
	})
	if changed {
		s.logger.Debug("symbols found",
			logging.String(logging.FieldEventType, "symbols_found"),
			logging.Int("count", len(found)),
			logging.FrameSeq(frame.Seq),
		)
		c.publish(dctx, s, true, Event{
			Kind:      EventSymbolsFound,
			SessionID: s.id,
			Device:    s.cfg.Device,
			Frame:     frame,
			Symbols:   found,
			At:        at,
		})
	}
}

// decodeFrame converts frame to gray and decodes it. Any failure counts as
// no symbols.
func (c *Controller) decodeFrame(s *session, frame capture.Frame) (symbols SymbolSet) {
	defer func() {
		if r := recover(); r != nil {
			err := faults.Wrap(faults.ErrDecode, "scan", "decode", fmt.Sprintf("panic: %v", r), nil)
			c.logSampled(s, "decode", err, "decoder fault", "decode_failed",
				"check the symbology configuration", "this frame is treated as empty")
			symbols = nil
		}
	}()
	if err := frame.Validate(); err != nil {
		c.logSampled(s, "frame", faults.Wrap(faults.ErrDecode, "scan", "decode", "", err),
			"malformed frame", "decode_failed", "check the capture resolution", "this frame is treated as empty")
		return nil
	}
	detections, err := c.decoder.Decode(frame.Gray())
	if err != nil {
		if !errors.Is(err, faults.ErrDecode) {
			err = faults.Wrap(faults.ErrDecode, "scan", "decode", "", err)
		}
		c.logSampled(s, "decode", err, "decoder fault", "decode_failed",
			"check the symbology configuration", "this frame is treated as empty")
		return nil
	}
	return symbolsFromDetections(detections, c.now())
}

// publish delivers ev to each subscriber while s is live. symbols events also
// require scanning to still be enabled.
func (c *Controller) publish(ctx context.Context, s *session, symbols bool, ev Event) {
	for _, sub := range c.subscribers() {
		if !c.live(s) || (symbols && !c.scanning.Load()) {
			return
		}
		c.deliver(ctx, sub, ev)
	}
}

func (c *Controller) publishAll(ctx context.Context, ev Event) {
	for _, sub := range c.subscribers() {
		c.deliver(ctx, sub, ev)
	}
}

func (c *Controller) deliver(ctx context.Context, sub subscription, ev Event) {
	defer func() {
		if r := recover(); r != nil {
			logging.ErrorWithContext(c.logger, "event handler panicked", "scan_handler_panic",
				logging.String("event", string(ev.Kind)),
				logging.Any("panic", r),
				logging.String(logging.FieldErrorHint, "fix the subscriber; the scan loop keeps running"),
			)
		}
	}()
	sub.handler(ctx, ev)
}

func (c *Controller) subscribers() []subscription {
	c.subMu.RLock()
	defer c.subMu.RUnlock()
	return append([]subscription(nil), c.subs...)
}

func (c *Controller) logSampled(s *session, key string, err error, msg, eventType, hint, impact string) {
	ok, suppressed := c.sampler.ShouldLog(key)
	if !ok {
		return
	}
	attrs := []logging.Attr{
		logging.Error(err),
		logging.String(logging.FieldErrorHint, hint),
		logging.String(logging.FieldImpact, impact),
	}
	if suppressed > 0 {
		attrs = append(attrs, logging.Int("suppressed", suppressed))
	}
	logging.WarnWithContext(s.logger, msg, eventType, attrs...)
}
