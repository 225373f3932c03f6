package scan

import (
	"image"
	"sort"
	"time"

	"barscan/internal/decoder"
)

// Symbol is one decoded detection. Two symbols are the same detection when
// Type and Data match; Points and Timestamp are informational.
type Symbol struct {
	Type      decoder.Symbology `json:"type"`
	Data      string            `json:"data"`
	Points    []image.Point     `json:"points,omitempty"`
	Timestamp time.Time         `json:"timestamp"`
}

// SymbolSet is the ordered list of symbols from one decode pass.
type SymbolSet []Symbol

// Equal reports whether a and b hold the same (Type, Data) pairs. Order,
// geometry and timestamps are ignored.
func Equal(a, b SymbolSet) bool {
	if len(a) != len(b) {
		return false
	}
	ka, kb := a.keys(), b.keys()
	for i := range ka {
		if ka[i] != kb[i] {
			return false
		}
	}
	return true
}

type symbolKey struct {
	typ  decoder.Symbology
	data string
}

func (s SymbolSet) keys() []symbolKey {
	keys := make([]symbolKey, len(s))
	for i, sym := range s {
		keys[i] = symbolKey{typ: sym.Type, data: sym.Data}
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].typ != keys[j].typ {
			return keys[i].typ < keys[j].typ
		}
		return keys[i].data < keys[j].data
	})
	return keys
}

// Clone returns a copy that shares no backing arrays with s.
func (s SymbolSet) Clone() SymbolSet {
	if s == nil {
		return nil
	}
	out := make(SymbolSet, len(s))
	for i, sym := range s {
		sym.Points = append([]image.Point(nil), sym.Points...)
		out[i] = sym
	}
	return out
}

func symbolsFromDetections(detections []decoder.Detection, at time.Time) SymbolSet {
	if len(detections) == 0 {
		return nil
	}
	out := make(SymbolSet, 0, len(detections))
	for _, d := range detections {
		out = append(out, Symbol{Type: d.Type, Data: d.Text, Points: d.Points, Timestamp: at})
	}
	return out
}
