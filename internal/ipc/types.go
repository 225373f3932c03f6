package ipc

import (
	"encoding/json"

	"barscan/internal/api"
)

// StartRequest starts (or restarts) capture. An empty Config reuses the
// bound configuration, falling back to the [source] section.
type StartRequest struct {
	Config json.RawMessage `json:"config,omitempty"`
}

// SessionResponse describes the current capture session, nil when idle.
type SessionResponse struct {
	Session *api.SourceSession `json:"session"`
}

// StopRequest stops the current capture session.
type StopRequest struct{}

// StopResponse indicates stop result.
type StopResponse struct {
	Stopped bool `json:"stopped"`
}

// PauseRequest suspends capture without releasing the device.
type PauseRequest struct{}

// ResumeRequest continues a paused session.
type ResumeRequest struct{}

// ScanRequest toggles decoding (EnableScan, DisableScan).
type ScanRequest struct{}

// ScanResponse reports the scan state after a toggle.
type ScanResponse struct {
	Changed bool          `json:"changed"`
	Scan    api.ScanState `json:"scan"`
}

// StatusRequest fetches daemon status.
type StatusRequest struct{}

// StatusResponse is the daemon status plus the log file path.
type StatusResponse struct {
	api.DaemonStatus
	LogPath string `json:"log_path"`
}

// ResultsRequest fetches every result field.
type ResultsRequest struct{}

// ResultsResponse carries every result field.
type ResultsResponse struct {
	Fields map[string]string `json:"fields"`
}

// FieldRequest names one result field; Value is used by SetField only.
type FieldRequest struct {
	Field string `json:"field"`
	Value string `json:"value,omitempty"`
}

// FieldResponse carries one result field.
type FieldResponse = api.FieldValue

// ResetResultsRequest restores every field to its default.
type ResetResultsRequest struct{}

// AcquisitionRequest names an acquisition; empty for BeginAcquisition.
type AcquisitionRequest struct {
	ID string `json:"id,omitempty"`
}

// AcquisitionResponse carries one acquisition record.
type AcquisitionResponse struct {
	Acquisition api.Acquisition `json:"acquisition"`
}

// AcquisitionStatusResponse reports whether an acquisition completed.
type AcquisitionStatusResponse struct {
	ID          string `json:"id"`
	Completed   bool   `json:"completed"`
	CompletedAt string `json:"completed_at,omitempty"`
}

// AcquisitionsRequest lists every known acquisition.
type AcquisitionsRequest struct{}

// AcquisitionsResponse lists acquisitions, oldest first.
type AcquisitionsResponse = api.AcquisitionListResponse

// HistoryRequest fetches recent detections.
type HistoryRequest struct {
	Limit int `json:"limit"`
}

// HistoryResponse lists detections, newest first.
type HistoryResponse = api.HistoryResponse

// EventsRequest fetches activity events after Since. A positive WaitMillis
// blocks until one arrives or the wait elapses.
type EventsRequest struct {
	Since      uint64 `json:"since"`
	Limit      int    `json:"limit"`
	WaitMillis int    `json:"wait_millis"`
}

// EventsResponse is one page of activity events.
type EventsResponse = api.EventsResponse

// LogTailRequest fetches lines from the daemon log file.
type LogTailRequest struct {
	Offset     int64 `json:"offset"`
	Limit      int   `json:"limit"`
	Follow     bool  `json:"follow"`
	WaitMillis int   `json:"wait_millis"`
}

// LogTailResponse returns log lines and the next offset.
type LogTailResponse struct {
	Lines  []string `json:"lines"`
	Offset int64    `json:"offset"`
}
