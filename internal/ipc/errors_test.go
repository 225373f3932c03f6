package ipc

import (
	"errors"
	"net/rpc"
	"testing"

	"barscan/internal/faults"
)

func TestRemoteErrorRestoresMarker(t *testing.T) {
	tests := []struct {
		msg    string
		marker error
	}{
		{"source unavailable: scanner is not started", faults.ErrSourceUnavailable},
		{"unknown field: results: lookup: no field \"serial\"", faults.ErrUnknownField},
		{"configuration error", faults.ErrConfiguration},
	}
	for _, tt := range tests {
		err := remoteError(rpc.ServerError(tt.msg))
		if !errors.Is(err, tt.marker) {
			t.Fatalf("remoteError(%q) lost marker: %v", tt.msg, err)
		}
		if err.Error() != tt.msg {
			t.Fatalf("expected message %q, got %q", tt.msg, err.Error())
		}
	}
}

func TestRemoteErrorPassesThrough(t *testing.T) {
	if remoteError(nil) != nil {
		t.Fatal("nil should stay nil")
	}
	plain := remoteError(rpc.ServerError("boom"))
	if faults.KindOf(plain) != faults.KindInternal || plain.Error() != "boom" {
		t.Fatalf("unexpected plain error %v", plain)
	}
	shutdown := remoteError(rpc.ErrShutdown)
	if !errors.Is(shutdown, rpc.ErrShutdown) {
		t.Fatalf("expected transport errors unchanged, got %v", shutdown)
	}
}
