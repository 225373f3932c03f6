package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"barscan/internal/acquisition"
)

// SaveAcquisition upserts rec.
func (s *Store) SaveAcquisition(ctx context.Context, rec acquisition.Record) error {
	results, err := json.Marshal(rec.Results)
	if err != nil {
		return fmt.Errorf("encode acquisition results: %w", err)
	}
	if rec.Results == nil {
		results = []byte("{}")
	}
	var completed sql.NullString
	if rec.CompletedAt != nil {
		completed = sql.NullString{String: formatTime(*rec.CompletedAt), Valid: true}
	}
	_, err = s.execWithRetry(ctx, `INSERT INTO acquisitions (id, begun_at, completed_at, results_json)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET completed_at = excluded.completed_at, results_json = excluded.results_json`,
		rec.ID, formatTime(rec.BegunAt), completed, string(results))
	if err != nil {
		return fmt.Errorf("save acquisition %s: %w", rec.ID, err)
	}
	return nil
}

// Acquisitions returns every stored acquisition, oldest first.
func (s *Store) Acquisitions(ctx context.Context) ([]acquisition.Record, error) {
	rows, err := s.db.QueryContext(ensureContext(ctx),
		`SELECT id, begun_at, completed_at, results_json FROM acquisitions ORDER BY begun_at`)
	if err != nil {
		return nil, fmt.Errorf("query acquisitions: %w", err)
	}
	defer rows.Close()

	var out []acquisition.Record
	for rows.Next() {
		var (
			rec       acquisition.Record
			begun     string
			completed sql.NullString
			results   string
		)
		if err := rows.Scan(&rec.ID, &begun, &completed, &results); err != nil {
			return nil, fmt.Errorf("scan acquisition: %w", err)
		}
		if rec.BegunAt, err = parseTime(begun); err != nil {
			return nil, err
		}
		if completed.Valid {
			at, err := parseTime(completed.String)
			if err != nil {
				return nil, err
			}
			rec.CompletedAt = &at
		}
		if err := json.Unmarshal([]byte(results), &rec.Results); err != nil {
			return nil, fmt.Errorf("decode acquisition results: %w", err)
		}
		if len(rec.Results) == 0 {
			rec.Results = nil
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}
