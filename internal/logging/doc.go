// Package logging assembles structured slog loggers and formatting helpers used
// across barscan components.
//
// It owns the configurable console/JSON handlers, centralizes level and output
// plumbing, and exposes context-aware helpers so scan code can tag log lines
// with session identifiers and devices. The package also provides a no-op
// logger for tests and wiring code that cannot fail, and a RepeatSampler that
// keeps a failing camera from flooding the log at frame rate.
package logging
