// Package faults defines the error markers shared by the scanner components.
//
// Components wrap failures with one of the sentinel markers so transports
// (JSON-RPC, HTTP, CLI) can classify them without string matching.
package faults

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrConfiguration reports a missing or invalid source configuration.
	ErrConfiguration = errors.New("configuration error")
	// ErrSourceUnavailable reports a frame source that could not be opened or locked.
	ErrSourceUnavailable = errors.New("source unavailable")
	// ErrDecode reports a decoder fault or a malformed symbol payload.
	ErrDecode = errors.New("decode error")
	// ErrUnknownField reports a lookup of a field or identifier that does not exist.
	ErrUnknownField = errors.New("unknown field")
	// ErrTransient reports a failure that may succeed when retried.
	ErrTransient = errors.New("transient failure")
)

// Kind names an error class for transport status mapping.
type Kind string

const (
	KindNone              Kind = ""
	KindConfiguration     Kind = "configuration"
	KindSourceUnavailable Kind = "source_unavailable"
	KindDecode            Kind = "decode"
	KindUnknownField      Kind = "unknown_field"
	KindTransient         Kind = "transient"
	KindInternal          Kind = "internal"
)

// Wrap builds an error message that includes component context while tagging it
// with the provided marker for later classification. The marker should be one
// of the exported sentinel errors above.
func Wrap(marker error, component, operation, message string, err error) error {
	detail := buildDetail(component, operation, message)
	if marker == nil {
		marker = ErrTransient
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// KindOf classifies err by the first marker it carries.
func KindOf(err error) Kind {
	switch {
	case err == nil:
		return KindNone
	case errors.Is(err, ErrConfiguration):
		return KindConfiguration
	case errors.Is(err, ErrSourceUnavailable):
		return KindSourceUnavailable
	case errors.Is(err, ErrDecode):
		return KindDecode
	case errors.Is(err, ErrUnknownField):
		return KindUnknownField
	case errors.Is(err, ErrTransient):
		return KindTransient
	default:
		return KindInternal
	}
}

// Hint returns a short operator-facing remediation for err, or "" when none applies.
func Hint(err error) string {
	switch KindOf(err) {
	case KindConfiguration:
		return "pass a source config or set [source] in config.toml"
	case KindSourceUnavailable:
		return "check the camera is connected, not in use, and readable by this user"
	case KindDecode:
		return "decoder failed on this frame; persistent failures suggest a bad symbology config"
	case KindUnknownField:
		return "known fields are product-id, device-id, batch-id"
	default:
		return ""
	}
}

func buildDetail(component, operation, message string) string {
	parts := make([]string, 0, 3)
	if component = strings.TrimSpace(component); component != "" {
		parts = append(parts, component)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "scanner failure"
	}
	return strings.Join(parts, ": ")
}
