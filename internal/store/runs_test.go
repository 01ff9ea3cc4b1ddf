package store

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/leandeep/marker-engine/internal/engine"
	"github.com/leandeep/marker-engine/internal/marker"
)

func testResult(sessionID string, markerIDs ...string) *engine.Result {
	res := &engine.Result{
		SessionID:      sessionID,
		CatalogVersion: "abc123def456",
		Seq:            uint64(len(markerIDs)),
		Counts:         map[marker.Level]int{marker.LevelATO: len(markerIDs)},
	}
	for i, id := range markerIDs {
		res.Events = append(res.Events, marker.Event{
			ID:       "01EVT",
			MarkerID: id,
			Level:    marker.LevelATO,
			Seq:      uint64(i + 1),
		})
	}
	return res
}

func saveRun(t *testing.T, s *SQLiteStore, res *engine.Result) *Run {
	t.Helper()
	payload, err := json.Marshal(res)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	run, err := s.SaveRun(context.Background(), res, payload)
	if err != nil {
		t.Fatalf("save run: %v", err)
	}
	// ULIDs order by millisecond; keep successive runs distinct.
	time.Sleep(5 * time.Millisecond)
	return run
}

func TestSaveRunAndGet(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	res := testResult("s1", "A_X", "A_X", "A_Y")
	run := saveRun(t, s, res)

	if run.ID == "" {
		t.Error("expected non-empty run id")
	}
	if run.Events != 3 {
		t.Errorf("expected 3 events, got %d", run.Events)
	}

	got, err := s.GetRun(ctx, run.ID)
	if err != nil {
		t.Fatalf("get run: %v", err)
	}
	if got.SessionID != "s1" || got.CatalogVersion != "abc123def456" {
		t.Errorf("run metadata not persisted: %+v", got)
	}
	if !bytes.Equal(got.Payload, run.Payload) {
		t.Errorf("payload changed across save/get:\n%s\n%s", run.Payload, got.Payload)
	}
}

func TestSaveRunRejectsInvalidPayload(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	_, err := s.SaveRun(ctx, testResult("s1"), []byte("{not json"))
	if err == nil {
		t.Fatal("expected error for invalid payload")
	}
}

func TestGetRunMissing(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	if _, err := s.GetRun(ctx, "01NOPE"); err == nil {
		t.Fatal("expected error for missing run")
	}
}

func TestListRunsNewestFirstWithoutPayload(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	first := saveRun(t, s, testResult("s1", "A_X"))
	second := saveRun(t, s, testResult("s2", "A_Y"))

	runs, err := s.ListRuns(ctx, RunListParams{})
	if err != nil {
		t.Fatalf("list runs: %v", err)
	}
	if len(runs) != 2 {
		t.Fatalf("expected 2 runs, got %d", len(runs))
	}
	if runs[0].ID != second.ID || runs[1].ID != first.ID {
		t.Errorf("expected newest first [%s %s], got [%s %s]",
			second.ID, first.ID, runs[0].ID, runs[1].ID)
	}
	if len(runs[0].Payload) != 0 {
		t.Error("expected listing to omit payloads")
	}
}

func TestListRunsFiltersBySession(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	saveRun(t, s, testResult("s1", "A_X"))
	saveRun(t, s, testResult("s2", "A_Y"))
	saveRun(t, s, testResult("s1", "A_Z"))

	runs, err := s.ListRuns(ctx, RunListParams{SessionID: "s1"})
	if err != nil {
		t.Fatalf("list runs: %v", err)
	}
	if len(runs) != 2 {
		t.Fatalf("expected 2 runs for s1, got %d", len(runs))
	}
	for _, r := range runs {
		if r.SessionID != "s1" {
			t.Errorf("expected session s1, got %s", r.SessionID)
		}
	}
}

func TestLatestRun(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	if _, err := s.LatestRun(ctx); err == nil {
		t.Fatal("expected error with no runs")
	}

	saveRun(t, s, testResult("s1", "A_X"))
	last := saveRun(t, s, testResult("s2", "A_Y"))

	got, err := s.LatestRun(ctx)
	if err != nil {
		t.Fatalf("latest run: %v", err)
	}
	if got.ID != last.ID {
		t.Errorf("expected %s, got %s", last.ID, got.ID)
	}
	if len(got.Payload) == 0 {
		t.Error("expected latest run to include payload")
	}
}

func TestTopMarkersRanksByWeightedFrequency(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	saveRun(t, s, testResult("s1", "A_X", "A_X", "A_X", "A_Y"))
	saveRun(t, s, testResult("s2", "A_Y"))

	ranks, err := s.TopMarkers(ctx, 10)
	if err != nil {
		t.Fatalf("top markers: %v", err)
	}
	if len(ranks) != 2 {
		t.Fatalf("expected 2 ranked markers, got %d", len(ranks))
	}
	if ranks[0].MarkerID != "A_X" || ranks[0].Total != 3 || ranks[0].Runs != 1 {
		t.Errorf("unexpected first rank: %+v", ranks[0])
	}
	if ranks[1].MarkerID != "A_Y" || ranks[1].Total != 2 || ranks[1].Runs != 2 {
		t.Errorf("unexpected second rank: %+v", ranks[1])
	}
	// Fresh runs decay barely at all.
	if ranks[0].Score < 2.9 || ranks[0].Score > 3.0 {
		t.Errorf("expected score near 3.0, got %v", ranks[0].Score)
	}

	top1, _ := s.TopMarkers(ctx, 1)
	if len(top1) != 1 || top1[0].MarkerID != "A_X" {
		t.Errorf("expected [A_X] with limit 1, got %v", top1)
	}
}
