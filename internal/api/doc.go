// Package api defines wire-format types and converters shared by the IPC and
// HTTP layers. It translates scanner, history and acquisition models into
// transport-friendly DTOs so clients never couple to internal types.
//
// # Key Types
//
// DaemonStatus: daemon running state, the active source session, scan state,
// current result fields and dependency availability.
//
// Event/EventsResponse: activity hub entries for long-poll and WebSocket
// readers.
//
// Detection/Acquisition: history rows and acquisition records.
//
// # Design Notes
//
// DTOs use camelCase JSON tags. Result fields are the exception: they are a
// plain object keyed by field name ("product-id", "device-id", "batch-id") so
// the payload matches what the scanner has always emitted on exit. Timestamps
// use RFC3339 with milliseconds.
//
// StatusCode maps fault markers onto HTTP status codes; both transports use
// ErrorFrom to render errors with a kind and an operator hint.
package api
