// Package logs provides the read side of daemon diagnostics for the CLI:
// file tailing for the daemon log and an HTTP client for the activity event
// feed and preview frames.
//
// Tail streams log files with bounded memory usage, supports negative offsets
// for "last N lines" and powers `barscan logs --follow`. EventsClient talks to
// the daemon's HTTP API; IsAPIUnavailable lets callers fall back to the IPC
// socket when the API is disabled or unreachable.
package logs
