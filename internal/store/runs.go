package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/leandeep/marker-engine/internal/engine"
)

// SaveRun persists one analysis result together with its serialized
// export document. Per-marker activation counts are written alongside
// for frequency ranking.
func (s *SQLiteStore) SaveRun(ctx context.Context, res *engine.Result, payload []byte) (*Run, error) {
	if !json.Valid(payload) {
		return nil, fmt.Errorf("run payload is not valid JSON")
	}

	id := s.newID()
	now := time.Now().UTC()

	counts := make(map[string]int)
	for _, ev := range res.Events {
		counts[ev.MarkerID]++
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO runs (id, session_id, catalog_version, created_at, events, payload)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		id, res.SessionID, res.CatalogVersion, now.Format(time.RFC3339), len(res.Events), string(payload))
	if err != nil {
		return nil, fmt.Errorf("insert run: %w", err)
	}

	for markerID, n := range counts {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO run_markers (run_id, marker_id, n) VALUES (?, ?, ?)`,
			id, markerID, n); err != nil {
			return nil, fmt.Errorf("insert run marker %s: %w", markerID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	return &Run{
		ID:             id,
		SessionID:      res.SessionID,
		CatalogVersion: res.CatalogVersion,
		CreatedAt:      now,
		Events:         len(res.Events),
		Payload:        json.RawMessage(payload),
	}, nil
}

// GetRun retrieves one saved run, payload included.
func (s *SQLiteStore) GetRun(ctx context.Context, id string) (*Run, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, session_id, catalog_version, created_at, events, payload
		 FROM runs WHERE id = ?`, id)

	var r Run
	var createdAt, payload string
	err := row.Scan(&r.ID, &r.SessionID, &r.CatalogVersion, &createdAt, &r.Events, &payload)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("run not found: %s", id)
	}
	if err != nil {
		return nil, err
	}
	r.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	r.Payload = json.RawMessage(payload)
	return &r, nil
}

// LatestRun retrieves the most recently saved run, payload included.
func (s *SQLiteStore) LatestRun(ctx context.Context) (*Run, error) {
	var id string
	err := s.db.QueryRowContext(ctx,
		`SELECT id FROM runs ORDER BY created_at DESC, id DESC LIMIT 1`).Scan(&id)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("no runs saved")
	}
	if err != nil {
		return nil, err
	}
	return s.GetRun(ctx, id)
}

// ListRuns lists saved runs newest first, without payloads.
func (s *SQLiteStore) ListRuns(ctx context.Context, p RunListParams) ([]Run, error) {
	limit := p.Limit
	if limit <= 0 {
		limit = 20
	}

	query := `SELECT id, session_id, catalog_version, created_at, events
	          FROM runs`
	args := []any{}
	if p.SessionID != "" {
		query += ` WHERE session_id = ?`
		args = append(args, p.SessionID)
	}
	query += ` ORDER BY created_at DESC, id DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var r Run
		var createdAt string
		if err := rows.Scan(&r.ID, &r.SessionID, &r.CatalogVersion, &createdAt, &r.Events); err != nil {
			return nil, err
		}
		r.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		runs = append(runs, r)
	}
	return runs, rows.Err()
}
