package store

import (
	"context"
	"testing"

	"github.com/leandeep/marker-engine/internal/marker"
)

func seedSearchMarkers(t *testing.T, s *SQLiteStore) {
	t.Helper()
	greeting := atoDef("A_GREETING", `\bhello\b`)
	greeting.Category = "social"
	greeting.Description = "Detects greetings"

	sadness := atoDef("A_SADNESS", `\bsad\b`)
	sadness.Category = "emotion"
	sadness.Description = "Detects expressed sadness"

	warm := semDef("S_WARM_OPEN", "A_GREETING", "A_GREETING")
	warm.Category = "social"
	warm.Description = "Warm conversation opening"

	if _, err := s.UpsertMarkers(context.Background(), []marker.Definition{greeting, sadness, warm}); err != nil {
		t.Fatalf("seed: %v", err)
	}
}

func TestSearchMarkersByID(t *testing.T) {
	s := newTestStore(t)
	seedSearchMarkers(t, s)

	got, err := s.SearchMarkers(context.Background(), SearchParams{Query: "GREET"})
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(got) != 1 || got[0].MarkerID != "A_GREETING" {
		t.Errorf("expected [A_GREETING], got %v", got)
	}
}

func TestSearchMarkersByDescription(t *testing.T) {
	s := newTestStore(t)
	seedSearchMarkers(t, s)

	got, err := s.SearchMarkers(context.Background(), SearchParams{Query: "sadness"})
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(got) != 1 || got[0].MarkerID != "A_SADNESS" {
		t.Errorf("expected [A_SADNESS], got %v", got)
	}
}

func TestSearchMarkersByCategoryWithLevelFilter(t *testing.T) {
	s := newTestStore(t)
	seedSearchMarkers(t, s)

	all, err := s.SearchMarkers(context.Background(), SearchParams{Query: "social"})
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("expected 2 social markers, got %d", len(all))
	}

	sems, err := s.SearchMarkers(context.Background(), SearchParams{Query: "social", Level: "SEM"})
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(sems) != 1 || sems[0].MarkerID != "S_WARM_OPEN" {
		t.Errorf("expected [S_WARM_OPEN], got %v", sems)
	}
}

func TestSearchMarkersCaseInsensitive(t *testing.T) {
	s := newTestStore(t)
	seedSearchMarkers(t, s)

	got, err := s.SearchMarkers(context.Background(), SearchParams{Query: "greet"})
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(got) != 1 || got[0].MarkerID != "A_GREETING" {
		t.Errorf("expected [A_GREETING], got %v", got)
	}
}

func TestSearchMarkersNoMatch(t *testing.T) {
	s := newTestStore(t)
	seedSearchMarkers(t, s)

	got, err := s.SearchMarkers(context.Background(), SearchParams{Query: "zzz"})
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("expected no matches, got %v", got)
	}
}
