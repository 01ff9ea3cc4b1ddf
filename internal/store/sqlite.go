package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	_ "modernc.org/sqlite"

	"github.com/leandeep/marker-engine/internal/marker"
)

// SQLiteStore persists markers and runs in a SQLite database.
type SQLiteStore struct {
	db      *sql.DB
	entropy *rand.Rand
}

// NewSQLiteStore opens or creates a SQLite database at the given path.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create db dir: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(wal)&_pragma=foreign_keys(on)")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	s := &SQLiteStore{
		db:      db,
		entropy: rand.New(rand.NewSource(time.Now().UnixNano())),
	}

	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return s, nil
}

func (s *SQLiteStore) newID() string {
	return ulid.MustNew(ulid.Timestamp(time.Now()), s.entropy).String()
}

func (s *SQLiteStore) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS markers (
		marker_id            TEXT PRIMARY KEY,
		level                TEXT NOT NULL,
		pattern              TEXT,
		activation_rule      TEXT,
		dependencies         TEXT,
		confidence_threshold REAL NOT NULL,
		weight               REAL NOT NULL,
		category             TEXT,
		description          TEXT,
		metadata             TEXT,
		created_at           TEXT NOT NULL,
		updated_at           TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_markers_level ON markers(level);
	CREATE INDEX IF NOT EXISTS idx_markers_category ON markers(category);

	CREATE TABLE IF NOT EXISTS marker_deps (
		marker_id TEXT NOT NULL REFERENCES markers(marker_id),
		dep_id    TEXT NOT NULL,
		PRIMARY KEY (marker_id, dep_id)
	);
	CREATE INDEX IF NOT EXISTS idx_deps_dep ON marker_deps(dep_id);

	CREATE TABLE IF NOT EXISTS runs (
		id              TEXT PRIMARY KEY,
		session_id      TEXT NOT NULL,
		catalog_version TEXT NOT NULL,
		created_at      TEXT NOT NULL,
		events          INTEGER NOT NULL DEFAULT 0,
		payload         TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_runs_created ON runs(created_at DESC);
	CREATE INDEX IF NOT EXISTS idx_runs_session ON runs(session_id);

	CREATE TABLE IF NOT EXISTS run_markers (
		run_id    TEXT NOT NULL REFERENCES runs(id),
		marker_id TEXT NOT NULL,
		n         INTEGER NOT NULL,
		PRIMARY KEY (run_id, marker_id)
	);
	CREATE INDEX IF NOT EXISTS idx_run_markers_marker ON run_markers(marker_id);
	`
	_, err := s.db.Exec(schema)
	return err
}

// UpsertMarkers inserts or updates definitions in one transaction.
// Updates keep the original created_at; the dependency rows are rebuilt
// for every definition in the batch.
func (s *SQLiteStore) UpsertMarkers(ctx context.Context, defs []marker.Definition) (*ImportResult, error) {
	now := time.Now().UTC().Format(time.RFC3339)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	res := &ImportResult{}
	for _, d := range defs {
		var depsJSON *string
		if len(d.Dependencies) > 0 {
			b, _ := json.Marshal(d.Dependencies)
			j := string(b)
			depsJSON = &j
		}
		var metaJSON *string
		if len(d.Metadata) > 0 {
			b, err := json.Marshal(d.Metadata)
			if err != nil {
				return nil, fmt.Errorf("marker %s: encode metadata: %w", d.MarkerID, err)
			}
			j := string(b)
			metaJSON = &j
		}

		var createdAt string
		err := tx.QueryRowContext(ctx,
			`SELECT created_at FROM markers WHERE marker_id = ?`, d.MarkerID).Scan(&createdAt)
		switch {
		case err == sql.ErrNoRows:
			_, err = tx.ExecContext(ctx,
				`INSERT INTO markers (marker_id, level, pattern, activation_rule, dependencies,
				                      confidence_threshold, weight, category, description, metadata,
				                      created_at, updated_at)
				 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
				d.MarkerID, string(d.Level), nullable(d.Pattern), nullable(d.ActivationRule), depsJSON,
				d.ConfidenceThreshold, d.Weight, nullable(d.Category), nullable(d.Description), metaJSON,
				now, now)
			if err != nil {
				return nil, fmt.Errorf("insert marker %s: %w", d.MarkerID, err)
			}
			res.Imported++
		case err == nil:
			_, err = tx.ExecContext(ctx,
				`UPDATE markers SET level = ?, pattern = ?, activation_rule = ?, dependencies = ?,
				                    confidence_threshold = ?, weight = ?, category = ?, description = ?,
				                    metadata = ?, updated_at = ?
				 WHERE marker_id = ?`,
				string(d.Level), nullable(d.Pattern), nullable(d.ActivationRule), depsJSON,
				d.ConfidenceThreshold, d.Weight, nullable(d.Category), nullable(d.Description), metaJSON,
				now, d.MarkerID)
			if err != nil {
				return nil, fmt.Errorf("update marker %s: %w", d.MarkerID, err)
			}
			res.Updated++
		default:
			return nil, err
		}

		if _, err := tx.ExecContext(ctx,
			`DELETE FROM marker_deps WHERE marker_id = ?`, d.MarkerID); err != nil {
			return nil, err
		}
		for _, dep := range d.Dependencies {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO marker_deps (marker_id, dep_id) VALUES (?, ?)`,
				d.MarkerID, dep); err != nil {
				return nil, fmt.Errorf("insert dep %s -> %s: %w", d.MarkerID, dep, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return res, nil
}

// GetMarker retrieves one definition by id.
func (s *SQLiteStore) GetMarker(ctx context.Context, id string) (*marker.Definition, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT marker_id, level, pattern, activation_rule, dependencies,
		       confidence_threshold, weight, category, description, metadata,
		       created_at, updated_at
		FROM markers WHERE marker_id = ?`, id)

	d, err := scanMarker(row)
	if err == sql.ErrNoRows {
		return nil, &marker.UnknownMarkerError{MarkerID: id}
	}
	if err != nil {
		return nil, err
	}
	return &d, nil
}

// ListMarkers lists definitions matching the filters, ordered by id.
func (s *SQLiteStore) ListMarkers(ctx context.Context, p ListParams) ([]marker.Definition, error) {
	where := []string{"1=1"}
	args := []any{}

	if p.Level != "" {
		where = append(where, "level = ?")
		args = append(args, p.Level)
	}
	if p.Category != "" {
		where = append(where, "category = ?")
		args = append(args, p.Category)
	}

	query := `SELECT marker_id, level, pattern, activation_rule, dependencies,
	                 confidence_threshold, weight, category, description, metadata,
	                 created_at, updated_at
	          FROM markers WHERE ` + strings.Join(where, " AND ") + ` ORDER BY marker_id`
	if p.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, p.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var defs []marker.Definition
	for rows.Next() {
		d, err := scanMarker(rows)
		if err != nil {
			return nil, err
		}
		defs = append(defs, d)
	}
	return defs, rows.Err()
}

// LoadDefinitions returns every stored definition, ordered by id, for
// catalog loading.
func (s *SQLiteStore) LoadDefinitions(ctx context.Context) ([]marker.Definition, error) {
	return s.ListMarkers(ctx, ListParams{})
}

// Dependencies returns the ids the given marker depends on, ordered
// by id.
func (s *SQLiteStore) Dependencies(ctx context.Context, id string) ([]string, error) {
	return s.depEdges(ctx,
		`SELECT dep_id FROM marker_deps WHERE marker_id = ? ORDER BY dep_id`, id)
}

// Dependents returns the ids of markers that depend on the given one,
// ordered by id.
func (s *SQLiteStore) Dependents(ctx context.Context, id string) ([]string, error) {
	return s.depEdges(ctx,
		`SELECT marker_id FROM marker_deps WHERE dep_id = ? ORDER BY marker_id`, id)
}

func (s *SQLiteStore) depEdges(ctx context.Context, query, id string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, query, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var dep string
		if err := rows.Scan(&dep); err != nil {
			return nil, err
		}
		out = append(out, dep)
	}
	return out, rows.Err()
}

// Close closes the store.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

type scanner interface {
	Scan(dest ...any) error
}

func scanMarker(row scanner) (marker.Definition, error) {
	var d marker.Definition
	var level string
	var pattern, rule, depsJSON, category, description, metaJSON sql.NullString
	var createdAt, updatedAt string

	err := row.Scan(
		&d.MarkerID, &level, &pattern, &rule, &depsJSON,
		&d.ConfidenceThreshold, &d.Weight, &category, &description, &metaJSON,
		&createdAt, &updatedAt,
	)
	if err != nil {
		return d, err
	}

	d.Level = marker.Level(level)
	if pattern.Valid {
		d.Pattern = pattern.String
	}
	if rule.Valid {
		d.ActivationRule = rule.String
	}
	if depsJSON.Valid {
		json.Unmarshal([]byte(depsJSON.String), &d.Dependencies)
	}
	if category.Valid {
		d.Category = category.String
	}
	if description.Valid {
		d.Description = description.String
	}
	if metaJSON.Valid {
		json.Unmarshal([]byte(metaJSON.String), &d.Metadata)
	}
	d.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	d.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)

	return d, nil
}
