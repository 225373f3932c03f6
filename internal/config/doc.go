// Package config loads, normalizes, and validates barscan configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours the BARSCAN_DEVICE environment
// fallback for the capture device. The Config type centralizes every knob the
// daemon and CLI need: capture source, scan timing, symbology directives,
// result extraction, history, preview, and logging.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical log formats, and clear validation errors.
package config
