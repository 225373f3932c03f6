package results

import (
	"errors"
	"fmt"
	"strings"

	"barscan/internal/decoder"
	"barscan/internal/faults"
)

// Payload is the part of a decoded symbol extraction looks at.
type Payload struct {
	Type decoder.Symbology
	Data string
}

// Extract maps payloads onto result fields. Linear codes set product-id;
// QR codes of the form "…#device%batch" set device-id and batch-id. Later
// payloads win over earlier ones. Unknown types are ignored.
//
// With strict false a QR payload missing a delimiter is sliced exactly as the
// scanner always has (see SplitQR). With strict true such payloads are
// skipped and reported as faults.ErrDecode; the returned delta still carries
// the fields from the well-formed payloads.
func Extract(payloads []Payload, strict bool) (Delta, error) {
	delta := Delta{}
	var errs []error
	for _, p := range payloads {
		switch {
		case p.Type == decoder.QRCode:
			device, batch, err := SplitQR(p.Data, strict)
			if err != nil {
				errs = append(errs, err)
				continue
			}
			delta[DeviceID] = device
			delta[BatchID] = batch
		case p.Type.Linear() && isKnownType(p.Type):
			delta[ProductID] = p.Data
		}
	}
	return delta, errors.Join(errs...)
}

func isKnownType(sym decoder.Symbology) bool {
	for _, known := range decoder.All {
		if sym == known {
			return true
		}
	}
	return false
}

// SplitQR extracts the device id between '#' and '%' and the batch id after
// '%'. In lenient mode a missing '#' starts the device id at the beginning,
// and a missing '%' drops the last character of the device id and returns
// the whole payload as the batch id.
func SplitQR(data string, strict bool) (device, batch string, err error) {
	hash := strings.IndexByte(data, '#')
	pct := strings.IndexByte(data, '%')
	if strict && (hash < 0 || pct < 0 || pct < hash) {
		return "", "", faults.Wrap(faults.ErrDecode, "results", "extract",
			fmt.Sprintf("qr payload %q is not of the form #device%%batch", data), nil)
	}
	return pySlice(data, hash+1, pct), pySlice(data, pct+1, len(data)), nil
}

// pySlice returns s[start:end] with negative indices counted from the end
// and out of range bounds clamped.
func pySlice(s string, start, end int) string {
	n := len(s)
	clamp := func(i int) int {
		if i < 0 {
			i += n
			if i < 0 {
				return 0
			}
		}
		if i > n {
			return n
		}
		return i
	}
	start, end = clamp(start), clamp(end)
	if start >= end {
		return ""
	}
	return s[start:end]
}
