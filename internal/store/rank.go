package store

import (
	"context"
	"math"
	"sort"
	"time"
)

// MarkerRank is one entry in the activation frequency ranking.
type MarkerRank struct {
	MarkerID string  `json:"marker_id"`
	Score    float64 `json:"score"`
	Total    int     `json:"total"`
	Runs     int     `json:"runs"`
}

// TopMarkers ranks markers by activation frequency across saved runs.
// Older runs count less: each run's contribution decays exponentially
// with its age in days.
func (s *SQLiteStore) TopMarkers(ctx context.Context, limit int) ([]MarkerRank, error) {
	if limit <= 0 {
		limit = 10
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT rm.marker_id, rm.n, r.created_at
		FROM run_markers rm
		INNER JOIN runs r ON r.id = rm.run_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	now := time.Now().UTC()
	byMarker := make(map[string]*MarkerRank)

	for rows.Next() {
		var markerID, createdAt string
		var n int
		if err := rows.Scan(&markerID, &n, &createdAt); err != nil {
			return nil, err
		}

		created, _ := time.Parse(time.RFC3339, createdAt)
		age := now.Sub(created).Hours() / 24.0
		if age < 0 {
			age = 0
		}
		weight := math.Exp(-0.1 * age)

		r := byMarker[markerID]
		if r == nil {
			r = &MarkerRank{MarkerID: markerID}
			byMarker[markerID] = r
		}
		r.Score += float64(n) * weight
		r.Total += n
		r.Runs++
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	ranks := make([]MarkerRank, 0, len(byMarker))
	for _, r := range byMarker {
		r.Score = math.Round(r.Score*100) / 100
		ranks = append(ranks, *r)
	}
	sort.Slice(ranks, func(i, j int) bool {
		if ranks[i].Score != ranks[j].Score {
			return ranks[i].Score > ranks[j].Score
		}
		return ranks[i].MarkerID < ranks[j].MarkerID
	})
	if len(ranks) > limit {
		ranks = ranks[:limit]
	}
	return ranks, nil
}
