// Package decoder turns grayscale frames into barcode detections.
//
// Decoding is delegated to gozxing readers. The package adds the scanner's
// symbology model on top: zbar-style configuration directives, per-type
// length limits, and the EAN-13 family split into UPC-A and ISBN types.
package decoder

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Symbology names a barcode type. Values match the zbar type names the
// scanner has always reported.
type Symbology string

const (
	QRCode  Symbology = "QRCODE"
	Code128 Symbology = "CODE128"
	Code39  Symbology = "CODE39"
	EAN8    Symbology = "EAN8"
	EAN13   Symbology = "EAN13"
	UPCA    Symbology = "UPCA"
	UPCE    Symbology = "UPCE"
	ISBN10  Symbology = "ISBN10"
	ISBN13  Symbology = "ISBN13"
	I25     Symbology = "I25"
)

// All lists every supported symbology.
var All = []Symbology{QRCode, Code128, Code39, EAN8, EAN13, UPCA, UPCE, ISBN10, ISBN13, I25}

// Linear reports whether s is a one-dimensional code. Only QR codes are matrix codes.
func (s Symbology) Linear() bool {
	return s != QRCode && s != ""
}

// ParseSymbology accepts zbar config names ("qrcode", "i25") and type names
// ("QR-Code", "EAN-13") case-insensitively.
func ParseSymbology(name string) (Symbology, bool) {
	key := strings.ToUpper(strings.NewReplacer("-", "", "_", "", " ", "").Replace(strings.TrimSpace(name)))
	switch key {
	case "QRCODE", "QR":
		return QRCode, true
	case "CODE128":
		return Code128, true
	case "CODE39":
		return Code39, true
	case "EAN8":
		return EAN8, true
	case "EAN13":
		return EAN13, true
	case "UPCA":
		return UPCA, true
	case "UPCE":
		return UPCE, true
	case "ISBN10":
		return ISBN10, true
	case "ISBN13":
		return ISBN13, true
	case "I25", "ITF", "INTERLEAVED25":
		return I25, true
	}
	return "", false
}

// Settings configures one symbology. Zero length limits are unbounded.
type Settings struct {
	Enabled   bool `json:"enabled"`
	ASCII     bool `json:"ascii,omitempty"`
	MinLength int  `json:"min_length,omitempty"`
	MaxLength int  `json:"max_length,omitempty"`
}

// accepts applies the length and character limits to a decoded payload.
func (s Settings) accepts(text string) bool {
	n := len(text)
	if s.MinLength > 0 && n < s.MinLength {
		return false
	}
	if s.MaxLength > 0 && n > s.MaxLength {
		return false
	}
	if s.ASCII {
		for i := 0; i < n; i++ {
			if text[i] < 0x20 || text[i] > 0x7e {
				return false
			}
		}
	}
	return true
}

// Symbologies maps each type to its settings. Types absent from the map are disabled.
type Symbologies map[Symbology]Settings

// DefaultSymbologies enables every supported type and restricts Code128 to
// 3..8 printable ASCII characters.
func DefaultSymbologies() Symbologies {
	syms := make(Symbologies, len(All))
	for _, s := range All {
		syms[s] = Settings{Enabled: true}
	}
	syms[Code128] = Settings{Enabled: true, ASCII: true, MinLength: 3, MaxLength: 8}
	return syms
}

// ParseConfig builds Symbologies from zbar-style directives applied in order
// to an all-enabled base, e.g. ["enable=0", "qrcode.enable=1", "code128.min=3"].
func ParseConfig(directives []string) (Symbologies, error) {
	syms := make(Symbologies, len(All))
	for _, s := range All {
		syms[s] = Settings{Enabled: true}
	}
	for _, directive := range directives {
		if err := syms.Apply(directive); err != nil {
			return nil, err
		}
	}
	return syms, nil
}

// Apply parses one "[symbology.]option[=value]" directive. Without a
// symbology prefix the option applies to every type. Options are enable,
// disable, ascii, min (min-length) and max (max-length); value defaults to 1.
func (s Symbologies) Apply(directive string) error {
	directive = strings.TrimSpace(directive)
	if directive == "" {
		return nil
	}
	key, rawValue, hasValue := strings.Cut(directive, "=")
	value := 1
	if hasValue {
		parsed, err := strconv.Atoi(strings.TrimSpace(rawValue))
		if err != nil || parsed < 0 {
			return fmt.Errorf("symbology directive %q: value must be a non-negative integer", directive)
		}
		value = parsed
	}

	targets := All
	option := strings.ToLower(strings.TrimSpace(key))
	if prefix, rest, ok := strings.Cut(option, "."); ok {
		sym, known := ParseSymbology(prefix)
		if !known {
			return fmt.Errorf("symbology directive %q: unknown symbology %q", directive, prefix)
		}
		targets = []Symbology{sym}
		option = rest
	}

	for _, sym := range targets {
		settings := s[sym]
		switch option {
		case "enable":
			settings.Enabled = value != 0
		case "disable":
			settings.Enabled = value == 0
		case "ascii":
			settings.ASCII = value != 0
		case "min", "min-length", "min_length":
			settings.MinLength = value
		case "max", "max-length", "max_length":
			settings.MaxLength = value
		default:
			return fmt.Errorf("symbology directive %q: unknown option %q", directive, option)
		}
		s[sym] = settings
	}
	return nil
}

// Enabled returns the enabled symbologies in a stable order.
func (s Symbologies) Enabled() []Symbology {
	out := make([]Symbology, 0, len(s))
	for sym, settings := range s {
		if settings.Enabled {
			out = append(out, sym)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// IsEnabled reports whether sym is enabled.
func (s Symbologies) IsEnabled(sym Symbology) bool {
	return s[sym].Enabled
}

// Validate rejects inverted length limits.
func (s Symbologies) Validate() error {
	for sym, settings := range s {
		if settings.MaxLength > 0 && settings.MinLength > settings.MaxLength {
			return fmt.Errorf("symbology %s: min length %d exceeds max length %d", sym, settings.MinLength, settings.MaxLength)
		}
	}
	return nil
}
