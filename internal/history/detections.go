package history

import (
	"context"
	"fmt"
	"time"
)

// Detection is one stored symbol.
type Detection struct {
	ID         int64     `json:"id"`
	SessionID  string    `json:"session_id"`
	Device     string    `json:"device"`
	Symbology  string    `json:"type"`
	Data       string    `json:"data"`
	FrameSeq   uint64    `json:"frame_seq"`
	DetectedAt time.Time `json:"detected_at"`
}

// RecordDetections appends detections in one transaction.
func (s *Store) RecordDetections(ctx context.Context, detections []Detection) error {
	if len(detections) == 0 {
		return nil
	}
	ctx = ensureContext(ctx)
	return retryOnBusy(ctx, func() error {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin detections tx: %w", err)
		}
		defer func() { _ = tx.Rollback() }()

		stmt, err := tx.PrepareContext(ctx, `INSERT INTO detections
			(session_id, device, symbology, data, frame_seq, detected_at)
			VALUES (?, ?, ?, ?, ?, ?)`)
		if err != nil {
			return fmt.Errorf("prepare detection insert: %w", err)
		}
		defer stmt.Close()

		for _, d := range detections {
			at := d.DetectedAt
			if at.IsZero() {
				at = time.Now()
			}
			if _, err := stmt.ExecContext(ctx, d.SessionID, d.Device, d.Symbology, d.Data, int64(d.FrameSeq), formatTime(at)); err != nil {
				return fmt.Errorf("insert detection: %w", err)
			}
		}
		return tx.Commit()
	})
}

// Recent returns up to limit detections, newest first.
func (s *Store) Recent(ctx context.Context, limit int) ([]Detection, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ensureContext(ctx), `SELECT id, session_id, device, symbology, data, frame_seq, detected_at
		FROM detections ORDER BY detected_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query detections: %w", err)
	}
	defer rows.Close()

	var out []Detection
	for rows.Next() {
		var (
			d        Detection
			frameSeq int64
			at       string
		)
		if err := rows.Scan(&d.ID, &d.SessionID, &d.Device, &d.Symbology, &d.Data, &frameSeq, &at); err != nil {
			return nil, fmt.Errorf("scan detection: %w", err)
		}
		d.FrameSeq = uint64(frameSeq)
		if d.DetectedAt, err = parseTime(at); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// Prune deletes detections older than cutoff and completed acquisitions
// finished before it. It returns the number of rows removed.
func (s *Store) Prune(ctx context.Context, cutoff time.Time) (int64, error) {
	stamp := formatTime(cutoff)
	res, err := s.execWithRetry(ctx, `DELETE FROM detections WHERE detected_at < ?`, stamp)
	if err != nil {
		return 0, fmt.Errorf("prune detections: %w", err)
	}
	removed, _ := res.RowsAffected()
	res, err = s.execWithRetry(ctx, `DELETE FROM acquisitions WHERE completed_at IS NOT NULL AND completed_at < ?`, stamp)
	if err != nil {
		return removed, fmt.Errorf("prune acquisitions: %w", err)
	}
	acq, _ := res.RowsAffected()
	return removed + acq, nil
}

// Stats summarizes the database for status output.
type Stats struct {
	Path         string `json:"path"`
	Detections   int    `json:"detections"`
	Acquisitions int    `json:"acquisitions"`
}

// Stats counts stored rows.
func (s *Store) Stats(ctx context.Context) (Stats, error) {
	ctx = ensureContext(ctx)
	stats := Stats{Path: s.path}
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM detections`).Scan(&stats.Detections); err != nil {
		return stats, fmt.Errorf("count detections: %w", err)
	}
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM acquisitions`).Scan(&stats.Acquisitions); err != nil {
		return stats, fmt.Errorf("count acquisitions: %w", err)
	}
	return stats, nil
}
