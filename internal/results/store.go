// Package results holds the identifier fields filled in from decoded symbols.
package results

import (
	"encoding/json"
	"fmt"
	"sync"

	"barscan/internal/faults"
)

// Field names, in display order.
const (
	ProductID = "product-id"
	DeviceID  = "device-id"
	BatchID   = "batch-id"
)

// DefaultValue is the value of a field nothing has written yet.
const DefaultValue = "0"

var fieldNames = []string{ProductID, DeviceID, BatchID}

// Names returns the known field names in display order.
func Names() []string {
	return append([]string(nil), fieldNames...)
}

// Known reports whether name is a result field.
func Known(name string) bool {
	for _, n := range fieldNames {
		if n == name {
			return true
		}
	}
	return false
}

// Delta holds the fields one detection pass wants to overwrite.
type Delta map[string]string

// Store is the current set of result fields. Every known field always has a value.
type Store struct {
	mu     sync.RWMutex
	fields map[string]string
}

// NewStore returns a store with every field at DefaultValue.
func NewStore() *Store {
	s := &Store{}
	s.Reset()
	return s
}

// Get returns the value of name.
func (s *Store) Get(name string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	value, ok := s.fields[name]
	if !ok {
		return "", unknownField(name)
	}
	return value, nil
}

// Set overwrites a single field.
func (s *Store) Set(name, value string) error {
	if !Known(name) {
		return unknownField(name)
	}
	s.mu.Lock()
	s.fields[name] = value
	s.mu.Unlock()
	return nil
}

// Apply merges delta into the store and reports whether any value changed.
// Fields absent from delta keep their value. An unknown field rejects the
// whole delta.
func (s *Store) Apply(delta Delta) (bool, error) {
	for name := range delta {
		if !Known(name) {
			return false, unknownField(name)
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	changed := false
	for name, value := range delta {
		if s.fields[name] != value {
			s.fields[name] = value
			changed = true
		}
	}
	return changed, nil
}

// Snapshot copies the current fields.
func (s *Store) Snapshot() map[string]string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]string, len(s.fields))
	for k, v := range s.fields {
		out[k] = v
	}
	return out
}

// Reset returns every field to DefaultValue.
func (s *Store) Reset() {
	fields := make(map[string]string, len(fieldNames))
	for _, name := range fieldNames {
		fields[name] = DefaultValue
	}
	s.mu.Lock()
	s.fields = fields
	s.mu.Unlock()
}

// MarshalJSON renders {"batch-id":"…","device-id":"…","product-id":"…"}.
func (s *Store) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.Snapshot())
}

func unknownField(name string) error {
	return faults.Wrap(faults.ErrUnknownField, "results", "lookup", fmt.Sprintf("no field %q", name), nil)
}
