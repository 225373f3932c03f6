package scan

import (
	"context"
	"time"

	"barscan/internal/capture"
)

// EventKind names a controller notification.
type EventKind string

const (
	// EventFrameUpdate fires for every frame read while started, in frame order.
	EventFrameUpdate EventKind = "frame-update"
	// EventSymbolsFound fires after the frame-update of the same frame when
	// the decoded set is non-empty and differs from the previous one.
	EventSymbolsFound EventKind = "symbols-found"
	// EventSourceStopped fires once when a session ends.
	EventSourceStopped EventKind = "source-stopped"
)

// StopReason explains why a session ended.
type StopReason string

const (
	StopRequested   StopReason = "requested"
	StopRestarted   StopReason = "restarted"
	StopEndOfStream StopReason = "end-of-stream"
)

// Event is delivered to subscribers.
type Event struct {
	Kind      EventKind
	SessionID string
	Device    string
	Frame     capture.Frame
	Symbols   SymbolSet
	Reason    StopReason
	Err       error
	At        time.Time
}

// Handler receives events on the scan loop goroutine. ctx identifies the
// dispatch: Stop and DisableScan called with ctx, or a context derived from
// it, return without waiting for the dispatch to finish. With any other
// context they wait for it: Stop until that context is done, DisableScan
// unconditionally. A handler must therefore pass ctx along.
type Handler func(ctx context.Context, ev Event)

type dispatchKey struct{}

type dispatchMark struct {
	controller *Controller
	session    *session
}

func dispatchFrom(ctx context.Context, c *Controller) (*session, bool) {
	if ctx == nil {
		return nil, false
	}
	mark, ok := ctx.Value(dispatchKey{}).(*dispatchMark)
	if !ok || mark.controller != c {
		return nil, false
	}
	return mark.session, true
}
