// Package daemon coordinates the long-running barscan process and its system
// integration points.
//
// It wires the scan controller, result fields, activity hub, detection
// history, acquisitions and the camera hot-plug monitor into a single
// lifecycle with flock-based locking to prevent multiple instances. The
// daemon also serves the HTTP API (status, results, source control, JPEG
// preview, WebSocket events).
//
// Keep orchestration logic here: frame handling belongs to internal/scan and
// payload parsing to internal/results, while the daemon focuses on startup,
// shutdown, and routing controller events to the rest of the system.
package daemon
