package logging

import (
	"context"
	"log/slog"
	"time"
)

// Standard attribute keys. Every barscan log line that concerns a capture
// device or scan session carries the matching key so the console handler and
// the activity log can group them.
const (
	FieldComponent = "component"
	// FieldEventType classifies a line for filtering, e.g. "symbols_found".
	FieldEventType = "event_type"
	// FieldErrorHint is the operator's next step for a warning or error.
	FieldErrorHint = "error_hint"
	FieldImpact    = "impact"
	// FieldSessionID is the daemon run id, injected by the session handler.
	FieldSessionID = "session_id"
	// FieldDevice is the capture device: a V4L2 node, video file or stills
	// directory.
	FieldDevice = "device"
	// FieldScanSession is the id of one open-to-release capture session.
	FieldScanSession = "scan_session"
	// FieldFrameSeq is the per-session frame sequence number.
	FieldFrameSeq      = "frame_seq"
	FieldSymbology     = "symbology"
	FieldCorrelationID = "correlation_id"
)

type Attr = slog.Attr

func Any(key string, value any) Attr { return slog.Any(key, value) }

func Bool(key string, value bool) Attr { return slog.Bool(key, value) }

func Duration(key string, value time.Duration) Attr { return slog.Duration(key, value) }

func Int(key string, value int) Attr { return slog.Int(key, value) }

func Int64(key string, value int64) Attr { return slog.Int64(key, value) }

func Uint64(key string, value uint64) Attr { return slog.Uint64(key, value) }

func String(key string, value string) Attr { return slog.String(key, value) }

// Device tags a line with the capture device it concerns.
func Device(device string) Attr { return slog.String(FieldDevice, device) }

// ScanSession tags a line with a scan session id.
func ScanSession(id string) Attr { return slog.String(FieldScanSession, id) }

// FrameSeq tags a line with the frame it was produced for.
func FrameSeq(seq uint64) Attr { return slog.Uint64(FieldFrameSeq, seq) }

func Error(err error) Attr {
	if err == nil {
		return slog.String("error", "<nil>")
	}
	return slog.Any("error", err)
}

// Args converts attrs into the variadic form slog.Logger methods accept.
func Args(attrs ...Attr) []any {
	args := make([]any, 0, len(attrs))
	for _, attr := range attrs {
		args = append(args, attr)
	}
	return args
}

func NewNop() *slog.Logger {
	return slog.New(NoopHandler{})
}

// NewComponentLogger creates a logger with a standardized component attribute.
// If logger is nil, a no-op logger is used as the base.
func NewComponentLogger(logger *slog.Logger, component string) *slog.Logger {
	if logger == nil {
		logger = NewNop()
	}
	return logger.With(String(FieldComponent, component))
}

// HasAttrKey returns true if any attribute in attrs has the given key.
func HasAttrKey(attrs []Attr, key string) bool {
	for _, a := range attrs {
		if a.Key == key {
			return true
		}
	}
	return false
}

// WarnWithContext logs a warning that always carries event_type, error_hint
// and impact. Missing hints default to pointing at the daemon log.
func WarnWithContext(logger *slog.Logger, msg, eventType string, attrs ...Attr) {
	if logger == nil {
		return
	}
	if !HasAttrKey(attrs, FieldEventType) {
		attrs = append(attrs, String(FieldEventType, eventType))
	}
	if !HasAttrKey(attrs, FieldErrorHint) {
		attrs = append(attrs, String(FieldErrorHint, "see `barscan logs` for details"))
	}
	if !HasAttrKey(attrs, FieldImpact) {
		attrs = append(attrs, String(FieldImpact, "scanning continues"))
	}
	logger.Warn(msg, Args(attrs...)...)
}

// ErrorWithContext logs an error that always carries event_type and error_hint.
func ErrorWithContext(logger *slog.Logger, msg, eventType string, attrs ...Attr) {
	if logger == nil {
		return
	}
	if !HasAttrKey(attrs, FieldEventType) {
		attrs = append(attrs, String(FieldEventType, eventType))
	}
	if !HasAttrKey(attrs, FieldErrorHint) {
		attrs = append(attrs, String(FieldErrorHint, "see `barscan logs` for details"))
	}
	logger.Error(msg, Args(attrs...)...)
}

// NoopHandler discards all log output.
type NoopHandler struct{}

func (NoopHandler) Enabled(context.Context, slog.Level) bool { return false }

func (NoopHandler) Handle(context.Context, slog.Record) error { return nil }

func (NoopHandler) WithAttrs([]slog.Attr) slog.Handler { return NoopHandler{} }

func (NoopHandler) WithGroup(string) slog.Handler { return NoopHandler{} }
