package api

// dateTimeFormat is used for RFC3339 timestamps in API payloads.
const dateTimeFormat = "2006-01-02T15:04:05.000Z07:00"

// Symbol is one decoded detection.
type Symbol struct {
	Type      string `json:"type"`
	Data      string `json:"data"`
	Timestamp string `json:"timestamp,omitempty"`
}

// SourceSession describes the running capture session.
type SourceSession struct {
	SessionID  string `json:"sessionId"`
	Device     string `json:"device"`
	Kind       string `json:"kind"`
	Resolution string `json:"resolution"`
	Framerate  string `json:"framerate"`
	StartedAt  string `json:"startedAt"`
	Paused     bool   `json:"paused"`
}

// ScanState mirrors the controller's enable switch and processing guard.
type ScanState struct {
	Enabled     bool     `json:"enabled"`
	Processing  bool     `json:"processing"`
	LastSymbols []Symbol `json:"lastSymbols,omitempty"`
}

// DependencyStatus captures availability of an external dependency.
type DependencyStatus struct {
	Name        string `json:"name"`
	Command     string `json:"command"`
	Description string `json:"description"`
	Optional    bool   `json:"optional"`
	Available   bool   `json:"available"`
	Detail      string `json:"detail,omitempty"`
}

// DaemonStatus aggregates daemon runtime information for API consumers.
type DaemonStatus struct {
	Running           bool               `json:"running"`
	PID               int                `json:"pid"`
	LockFilePath      string             `json:"lockFilePath"`
	HistoryPath       string             `json:"historyPath,omitempty"`
	Source            *SourceSession     `json:"source,omitempty"`
	Scan              ScanState          `json:"scan"`
	Results           map[string]string  `json:"results"`
	ActiveAcquisition string             `json:"activeAcquisition,omitempty"`
	Hotplug           bool               `json:"hotplug"`
	Dependencies      []DependencyStatus `json:"dependencies"`
}

// FieldValue is the body of GET and PUT /api/results/{field}.
type FieldValue struct {
	Field string `json:"field,omitempty"`
	Value string `json:"value"`
}

// Detection is one history row.
type Detection struct {
	ID         int64  `json:"id"`
	SessionID  string `json:"sessionId"`
	Device     string `json:"device"`
	Type       string `json:"type"`
	Data       string `json:"data"`
	FrameSeq   uint64 `json:"frameSeq"`
	DetectedAt string `json:"detectedAt"`
}

// HistoryResponse wraps recent detections, newest first.
type HistoryResponse struct {
	Detections []Detection `json:"detections"`
}

// Acquisition is an acquisition record.
type Acquisition struct {
	ID          string            `json:"id"`
	BegunAt     string            `json:"begunAt"`
	CompletedAt string            `json:"completedAt,omitempty"`
	Active      bool              `json:"active"`
	Results     map[string]string `json:"results,omitempty"`
}

// AcquisitionListResponse wraps every known acquisition, oldest first.
type AcquisitionListResponse struct {
	Acquisitions []Acquisition `json:"acquisitions"`
}

// Event is one activity hub entry.
type Event struct {
	Sequence  uint64            `json:"seq"`
	Timestamp string            `json:"ts"`
	Kind      string            `json:"kind"`
	SessionID string            `json:"sessionId,omitempty"`
	Device    string            `json:"device,omitempty"`
	FrameSeq  uint64            `json:"frameSeq,omitempty"`
	Symbols   []Symbol          `json:"symbols,omitempty"`
	Results   map[string]string `json:"results,omitempty"`
	Message   string            `json:"message,omitempty"`
}

// EventsResponse is one page of activity events. Next is the cursor to pass
// as "since" on the following request.
type EventsResponse struct {
	Events []Event `json:"events"`
	Next   uint64  `json:"next"`
}

// ErrorResponse is the body of every failed HTTP request.
type ErrorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind,omitempty"`
	Hint  string `json:"hint,omitempty"`
}
