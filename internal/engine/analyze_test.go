package engine

import (
	"context"
	"testing"

	"github.com/leandeep/marker-engine/internal/affect"
	"github.com/leandeep/marker-engine/internal/marker"
)

func TestAnalyze_BuildsFullResult(t *testing.T) {
	e := newEngine(t,
		ato("A_GREET", `hello|hi`),
		ato("A_HAPPY", `happy|glad`),
		ruleDef("S_POSITIVE_GREETING", marker.LevelSEM, "A_GREET AND A_HAPPY"),
	)
	text := "Hello, I am happy today. Contact me at jane@example.com. Are you happy?"

	res, err := e.Analyze(context.Background(), text)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if res.SessionID == "" || res.CatalogVersion == "" {
		t.Errorf("expected identity fields, got %q %q", res.SessionID, res.CatalogVersion)
	}
	if res.Seq != uint64(len(res.Events)) {
		t.Errorf("expected seq %d to match %d events", res.Seq, len(res.Events))
	}
	if res.Counts[marker.LevelATO] < 2 {
		t.Errorf("expected at least 2 atomic events, got %d", res.Counts[marker.LevelATO])
	}
	found := false
	for _, ev := range res.Events {
		if ev.MarkerID == "S_POSITIVE_GREETING" {
			found = true
		}
	}
	if !found {
		t.Error("expected S_POSITIVE_GREETING in events")
	}

	if len(res.Entities) != 1 || res.Entities[0].Type != "EMAIL" || res.Entities[0].Text != "jane@example.com" {
		t.Errorf("expected one EMAIL entity, got %+v", res.Entities)
	}
	if res.Features.QuestionCount != 1 {
		t.Errorf("expected 1 question, got %d", res.Features.QuestionCount)
	}
	if res.Sentiment.Label != affect.LabelPositive {
		t.Errorf("expected positive sentiment, got %s", res.Sentiment.Label)
	}
	if res.Emotion.Samples == 0 {
		t.Error("expected emotion samples to be recorded")
	}

	// The session is ephemeral and already closed.
	if _, err := e.Snapshot(res.SessionID); err == nil {
		t.Error("expected the analysis session to be closed")
	}
}

func TestAnalyze_EmptyText(t *testing.T) {
	e := newEngine(t, ato("A_X", `x`))
	res, err := e.Analyze(context.Background(), "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(res.Events) != 0 || res.Seq != 0 {
		t.Errorf("expected an empty result, got %d events seq %d", len(res.Events), res.Seq)
	}
}

func TestAnalyze_SpansSurviveSegmentation(t *testing.T) {
	e := newEngine(t, ato("A_X", `xray`))
	text := "xray\n\nmore xray here"

	res, err := e.Analyze(context.Background(), text)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(res.Events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(res.Events))
	}
	for _, ev := range res.Events {
		got := text[ev.Span.Start : ev.Span.Start+ev.Span.Length]
		if got != "xray" {
			t.Errorf("span %+v points at %q, expected %q", ev.Span, got, "xray")
		}
	}
	if res.Events[0].Span.Start != 0 || res.Events[1].Span.Start != 11 {
		t.Errorf("expected starts 0 and 11, got %d and %d",
			res.Events[0].Span.Start, res.Events[1].Span.Start)
	}
}

func TestCollect_OnLiveSession(t *testing.T) {
	e := newEngine(t, ato("A_X", `xray`))
	if err := e.StartSession("s1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	feed(t, e, "s1", "xray and more")

	res, err := e.Collect("s1", "xray and more")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(res.Events) != 1 || res.Events[0].MarkerID != "A_X" {
		t.Fatalf("expected one A_X event, got %v", markerIDs(res.Events))
	}

	// The session stays live after a collect.
	feed(t, e, "s1", "xray again")
	if n := len(eventsOf(t, e, "s1")); n != 2 {
		t.Errorf("expected 2 events after further input, got %d", n)
	}
}
