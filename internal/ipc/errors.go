package ipc

import (
	"errors"
	"net/rpc"
	"strings"

	"barscan/internal/faults"
)

var markers = []error{
	faults.ErrConfiguration,
	faults.ErrSourceUnavailable,
	faults.ErrDecode,
	faults.ErrUnknownField,
	faults.ErrTransient,
}

// remoteError restores the fault marker of an error returned by the server.
// Wrapped errors render as "<marker>: <detail>", so the prefix identifies it.
func remoteError(err error) error {
	var serverErr rpc.ServerError
	if !errors.As(err, &serverErr) {
		return err
	}
	msg := string(serverErr)
	for _, marker := range markers {
		prefix := marker.Error() + ": "
		if strings.HasPrefix(msg, prefix) {
			return faults.Wrap(marker, "", "", strings.TrimPrefix(msg, prefix), nil)
		}
		if msg == marker.Error() {
			return marker
		}
	}
	return errors.New(msg)
}
