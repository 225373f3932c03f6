package logging

import (
	"context"
	"log/slog"
)

// sessionIDHandler injects a session_id attribute into records that do not
// already carry one. A scan session's own id therefore wins over the daemon run id.
type sessionIDHandler struct {
	base      slog.Handler
	sessionID string
	explicit  bool
}

func newSessionIDHandler(base slog.Handler, sessionID string) slog.Handler {
	if base == nil {
		return NoopHandler{}
	}
	return &sessionIDHandler{base: base, sessionID: sessionID}
}

func (h *sessionIDHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.base.Enabled(ctx, level)
}

func (h *sessionIDHandler) Handle(ctx context.Context, record slog.Record) error {
	if h.explicit {
		return h.base.Handle(ctx, record)
	}
	present := false
	record.Attrs(func(attr slog.Attr) bool {
		if attr.Key == FieldSessionID {
			present = true
			return false
		}
		return true
	})
	if !present {
		record.AddAttrs(slog.String(FieldSessionID, h.sessionID))
	}
	return h.base.Handle(ctx, record)
}

func (h *sessionIDHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &sessionIDHandler{
		base:      h.base.WithAttrs(attrs),
		sessionID: h.sessionID,
		explicit:  h.explicit || HasAttrKey(attrs, FieldSessionID),
	}
}

func (h *sessionIDHandler) WithGroup(name string) slog.Handler {
	return &sessionIDHandler{
		base:      h.base.WithGroup(name),
		sessionID: h.sessionID,
		explicit:  h.explicit,
	}
}
