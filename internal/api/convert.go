package api

import (
	"maps"
	"net/http"
	"time"

	"barscan/internal/acquisition"
	"barscan/internal/activity"
	"barscan/internal/deps"
	"barscan/internal/faults"
	"barscan/internal/history"
	"barscan/internal/scan"
)

// FromHandle converts a scan session handle. paused is reported alongside
// because the handle itself is immutable.
func FromHandle(h *scan.Handle, paused bool) *SourceSession {
	if h == nil {
		return nil
	}
	return &SourceSession{
		SessionID:  h.SessionID,
		Device:     h.Device,
		Kind:       string(h.Config.Kind),
		Resolution: h.Config.Resolution(),
		Framerate:  h.Config.Framerate(),
		StartedAt:  FormatTime(h.StartedAt),
		Paused:     paused,
	}
}

// FromScanState converts the controller state. The last frame is not exposed.
func FromScanState(st scan.State) ScanState {
	out := ScanState{Enabled: st.Enabled, Processing: st.Processing}
	for _, sym := range st.LastSymbols {
		out.LastSymbols = append(out.LastSymbols, Symbol{
			Type:      string(sym.Type),
			Data:      sym.Data,
			Timestamp: FormatTime(sym.Timestamp),
		})
	}
	return out
}

// FromDependencies converts dependency checks.
func FromDependencies(statuses []deps.Status) []DependencyStatus {
	out := make([]DependencyStatus, 0, len(statuses))
	for _, dep := range statuses {
		out = append(out, DependencyStatus{
			Name:        dep.Name,
			Command:     dep.Command,
			Description: dep.Description,
			Optional:    dep.Optional,
			Available:   dep.Available,
			Detail:      dep.Detail,
		})
	}
	return out
}

// FromDetections converts history rows.
func FromDetections(rows []history.Detection) []Detection {
	out := make([]Detection, 0, len(rows))
	for _, row := range rows {
		out = append(out, Detection{
			ID:         row.ID,
			SessionID:  row.SessionID,
			Device:     row.Device,
			Type:       row.Symbology,
			Data:       row.Data,
			FrameSeq:   row.FrameSeq,
			DetectedAt: FormatTime(row.DetectedAt),
		})
	}
	return out
}

// FromAcquisition converts an acquisition record.
func FromAcquisition(rec acquisition.Record) Acquisition {
	dto := Acquisition{
		ID:      rec.ID,
		BegunAt: FormatTime(rec.BegunAt),
		Active:  rec.Active(),
		Results: maps.Clone(rec.Results),
	}
	if rec.CompletedAt != nil {
		dto.CompletedAt = FormatTime(*rec.CompletedAt)
	}
	return dto
}

// FromEvents converts activity hub entries.
func FromEvents(events []activity.Event) []Event {
	if len(events) == 0 {
		return nil
	}
	out := make([]Event, 0, len(events))
	for _, evt := range events {
		dto := Event{
			Sequence:  evt.Sequence,
			Timestamp: FormatTime(evt.Timestamp),
			Kind:      string(evt.Kind),
			SessionID: evt.SessionID,
			Device:    evt.Device,
			FrameSeq:  evt.FrameSeq,
			Results:   maps.Clone(evt.Results),
			Message:   evt.Message,
		}
		for _, sym := range evt.Symbols {
			dto.Symbols = append(dto.Symbols, Symbol{Type: sym.Type, Data: sym.Data})
		}
		out = append(out, dto)
	}
	return out
}

// StatusCode maps an error onto the HTTP status reported for it.
func StatusCode(err error) int {
	switch faults.KindOf(err) {
	case faults.KindNone:
		return http.StatusOK
	case faults.KindUnknownField:
		return http.StatusNotFound
	case faults.KindConfiguration:
		return http.StatusBadRequest
	case faults.KindSourceUnavailable, faults.KindTransient:
		return http.StatusServiceUnavailable
	case faults.KindDecode:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

// ErrorFrom renders err with its kind and remediation hint.
func ErrorFrom(err error) ErrorResponse {
	if err == nil {
		return ErrorResponse{}
	}
	return ErrorResponse{
		Error: err.Error(),
		Kind:  string(faults.KindOf(err)),
		Hint:  faults.Hint(err),
	}
}

// FormatTime renders t in UTC with millisecond precision; zero is "".
func FormatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(dateTimeFormat)
}
