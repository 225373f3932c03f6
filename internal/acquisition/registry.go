// Package acquisition tracks experiment acquisitions started by an external
// controller and the result fields captured when each one completes.
package acquisition

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"barscan/internal/faults"
	"barscan/internal/logging"
)

// Record is one acquisition. CompletedAt is nil while it is active.
type Record struct {
	ID          string            `json:"id"`
	BegunAt     time.Time         `json:"begun_at"`
	CompletedAt *time.Time        `json:"completed_at,omitempty"`
	Results     map[string]string `json:"results,omitempty"`
}

// Active reports whether the acquisition has not completed.
func (r Record) Active() bool {
	return r.CompletedAt == nil
}

// Persister stores records as they change.
type Persister interface {
	SaveAcquisition(ctx context.Context, rec Record) error
}

// Option customizes a Registry.
type Option func(*Registry)

// WithPersister mirrors every change to p.
func WithPersister(p Persister) Option {
	return func(r *Registry) { r.persist = p }
}

// WithLogger sets the registry logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Registry) { r.logger = logger }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(r *Registry) {
		if now != nil {
			r.now = now
		}
	}
}

// Registry holds acquisitions in memory.
type Registry struct {
	mu       sync.Mutex
	records  map[string]*Record
	snapshot func() map[string]string
	persist  Persister
	logger   *slog.Logger
	now      func() time.Time
}

// NewRegistry returns an empty registry. snapshot supplies the result fields
// recorded on completion and may be nil.
func NewRegistry(snapshot func() map[string]string, opts ...Option) *Registry {
	r := &Registry{
		records:  make(map[string]*Record),
		snapshot: snapshot,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	r.logger = logging.NewComponentLogger(r.logger, "acquisition")
	return r
}

// Restore loads previously persisted records, replacing ids already present.
func (r *Registry) Restore(records []Record) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, rec := range records {
		copied := rec
		r.records[rec.ID] = &copied
	}
}

// Begin starts a new acquisition and returns its id.
func (r *Registry) Begin(ctx context.Context) (string, error) {
	rec := Record{ID: uuid.NewString(), BegunAt: r.now().UTC()}
	r.mu.Lock()
	r.records[rec.ID] = &rec
	r.mu.Unlock()

	r.logger.Info("acquisition begun",
		logging.String(logging.FieldEventType, "acquisition_begun"),
		logging.String("acquisition_id", rec.ID),
	)
	r.save(ctx, rec)
	return rec.ID, nil
}

// Complete marks id as completed, captures the current result fields and
// returns the completion time. Completing a completed acquisition returns
// the original time.
func (r *Registry) Complete(ctx context.Context, id string) (time.Time, error) {
	r.mu.Lock()
	rec, ok := r.records[id]
	if !ok {
		r.mu.Unlock()
		return time.Time{}, unknownAcquisition(id)
	}
	if rec.CompletedAt != nil {
		at := *rec.CompletedAt
		r.mu.Unlock()
		return at, nil
	}
	at := r.now().UTC()
	rec.CompletedAt = &at
	if r.snapshot != nil {
		rec.Results = r.snapshot()
	}
	copied := *rec
	r.mu.Unlock()

	r.logger.Info("acquisition completed",
		logging.String(logging.FieldEventType, "acquisition_completed"),
		logging.String("acquisition_id", id),
		logging.Duration("duration", at.Sub(copied.BegunAt)),
	)
	r.save(ctx, copied)
	return at, nil
}

// Status returns the completion time of id, or nil while it is active.
func (r *Registry) Status(_ context.Context, id string) (*time.Time, error) {
	rec, err := r.Get(id)
	if err != nil {
		return nil, err
	}
	return rec.CompletedAt, nil
}

// Get returns a copy of the record for id.
func (r *Registry) Get(id string) (Record, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.records[id]
	if !ok {
		return Record{}, unknownAcquisition(id)
	}
	return copyRecord(*rec), nil
}

// List returns every record, oldest first.
func (r *Registry) List() []Record {
	r.mu.Lock()
	out := make([]Record, 0, len(r.records))
	for _, rec := range r.records {
		out = append(out, copyRecord(*rec))
	}
	r.mu.Unlock()
	sort.Slice(out, func(i, j int) bool { return out[i].BegunAt.Before(out[j].BegunAt) })
	return out
}

// Active returns the most recently begun acquisition that has not completed.
func (r *Registry) Active() (Record, bool) {
	records := r.List()
	for i := len(records) - 1; i >= 0; i-- {
		if records[i].Active() {
			return records[i], true
		}
	}
	return Record{}, false
}

func (r *Registry) save(ctx context.Context, rec Record) {
	if r.persist == nil {
		return
	}
	if err := r.persist.SaveAcquisition(ctx, rec); err != nil {
		logging.WarnWithContext(r.logger, "failed to persist acquisition", "acquisition_persist_failed",
			logging.String("acquisition_id", rec.ID),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check the history database under the state directory"),
			logging.String(logging.FieldImpact, "the acquisition is tracked in memory only"),
		)
	}
}

func copyRecord(rec Record) Record {
	if rec.CompletedAt != nil {
		at := *rec.CompletedAt
		rec.CompletedAt = &at
	}
	if rec.Results != nil {
		results := make(map[string]string, len(rec.Results))
		for k, v := range rec.Results {
			results[k] = v
		}
		rec.Results = results
	}
	return rec
}

func unknownAcquisition(id string) error {
	return faults.Wrap(faults.ErrUnknownField, "acquisition", "lookup", fmt.Sprintf("unknown acquisition id %q", id), nil)
}
