package faults_test

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"barscan/internal/faults"
)

func TestWrapIncludesContext(t *testing.T) {
	base := errors.New("boom")
	err := faults.Wrap(faults.ErrSourceUnavailable, "capture", "open", "device busy", base)
	if !errors.Is(err, faults.ErrSourceUnavailable) {
		t.Fatalf("expected marker to be retained, got %v", err)
	}
	if !errors.Is(err, base) {
		t.Fatalf("expected wrapped error to contain base error, got %v", err)
	}
	msg := err.Error()
	for _, fragment := range []string{"capture", "open", "device busy", "boom"} {
		if !strings.Contains(msg, fragment) {
			t.Fatalf("expected %q in error string %q", fragment, msg)
		}
	}
}

func TestWrapDefaultsToTransient(t *testing.T) {
	err := faults.Wrap(nil, "", "", "", nil)
	if !errors.Is(err, faults.ErrTransient) {
		t.Fatalf("expected transient marker, got %v", err)
	}
	if !strings.Contains(err.Error(), "scanner failure") {
		t.Fatalf("expected fallback detail, got %q", err)
	}
}

func TestKindOf(t *testing.T) {
	tests := []struct {
		err  error
		want faults.Kind
	}{
		{nil, faults.KindNone},
		{faults.Wrap(faults.ErrConfiguration, "scan", "start", "no config", nil), faults.KindConfiguration},
		{fmt.Errorf("outer: %w", faults.ErrSourceUnavailable), faults.KindSourceUnavailable},
		{faults.Wrap(faults.ErrDecode, "decoder", "decode", "", errors.New("panic")), faults.KindDecode},
		{faults.ErrUnknownField, faults.KindUnknownField},
		{faults.ErrTransient, faults.KindTransient},
		{errors.New("plain"), faults.KindInternal},
	}
	for _, tc := range tests {
		if got := faults.KindOf(tc.err); got != tc.want {
			t.Fatalf("KindOf(%v) = %q, want %q", tc.err, got, tc.want)
		}
	}
}

func TestHint(t *testing.T) {
	if faults.Hint(faults.ErrUnknownField) == "" {
		t.Fatal("expected hint for unknown field")
	}
	if faults.Hint(errors.New("plain")) != "" {
		t.Fatal("expected no hint for unclassified error")
	}
}
