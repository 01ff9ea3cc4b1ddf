package store

import (
	"context"
	"database/sql"
	"os"
	"time"
)

// Stats holds database statistics.
type Stats struct {
	DBPath      string          `json:"db_path"`
	DBSizeBytes int64           `json:"db_size_bytes"`
	Markers     int             `json:"markers"`
	Patterns    int             `json:"patterns"`
	Rules       int             `json:"rules"`
	Runs        int             `json:"runs"`
	LastImport  time.Time       `json:"last_import,omitzero"`
	Levels      []LevelStats    `json:"levels"`
	Categories  []CategoryStats `json:"categories,omitempty"`
}

// LevelStats holds per-level marker counts.
type LevelStats struct {
	Level string `json:"level"`
	Count int    `json:"count"`
}

// CategoryStats holds per-category marker counts.
type CategoryStats struct {
	Category string `json:"category"`
	Count    int    `json:"count"`
}

// Stats returns database statistics.
func (s *SQLiteStore) Stats(ctx context.Context, dbPath string) (*Stats, error) {
	st := &Stats{DBPath: dbPath}

	if info, err := os.Stat(dbPath); err == nil {
		st.DBSizeBytes = info.Size()
	}

	s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM markers`).Scan(&st.Markers)
	s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM markers WHERE pattern IS NOT NULL`).Scan(&st.Patterns)
	s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM markers WHERE activation_rule IS NOT NULL`).Scan(&st.Rules)
	s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM runs`).Scan(&st.Runs)

	var lastImport sql.NullString
	s.db.QueryRowContext(ctx, `SELECT MAX(updated_at) FROM markers`).Scan(&lastImport)
	if lastImport.Valid {
		st.LastImport, _ = time.Parse(time.RFC3339, lastImport.String)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT level, COUNT(*) as cnt
		FROM markers
		GROUP BY level ORDER BY cnt DESC, level`)
	if err != nil {
		return st, err
	}
	defer rows.Close()

	for rows.Next() {
		var ls LevelStats
		rows.Scan(&ls.Level, &ls.Count)
		st.Levels = append(st.Levels, ls)
	}
	if err := rows.Err(); err != nil {
		return st, err
	}

	catRows, err := s.db.QueryContext(ctx, `
		SELECT category, COUNT(*) as cnt
		FROM markers WHERE category IS NOT NULL
		GROUP BY category ORDER BY cnt DESC, category`)
	if err != nil {
		return st, err
	}
	defer catRows.Close()

	for catRows.Next() {
		var cs CategoryStats
		catRows.Scan(&cs.Category, &cs.Count)
		st.Categories = append(st.Categories, cs)
	}

	return st, catRows.Err()
}
