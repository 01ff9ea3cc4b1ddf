package store

import (
	"context"
	"strings"

	"github.com/leandeep/marker-engine/internal/marker"
)

// SearchMarkers finds definitions whose id, description, or category
// matches the query substring, case-insensitively.
func (s *SQLiteStore) SearchMarkers(ctx context.Context, p SearchParams) ([]marker.Definition, error) {
	limit := p.Limit
	if limit <= 0 {
		limit = 20
	}

	query := "%" + p.Query + "%"

	where := []string{"(marker_id LIKE ? OR description LIKE ? OR category LIKE ?)"}
	args := []any{query, query, query}

	if p.Level != "" {
		where = append(where, "level = ?")
		args = append(args, p.Level)
	}

	sqlQuery := `SELECT marker_id, level, pattern, activation_rule, dependencies,
	                    confidence_threshold, weight, category, description, metadata,
	                    created_at, updated_at
	             FROM markers WHERE ` + strings.Join(where, " AND ") + `
	             ORDER BY marker_id LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, sqlQuery, args...)
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
