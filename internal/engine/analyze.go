package engine

import (
	"context"
	"fmt"

	"github.com/leandeep/marker-engine/internal/affect"
	"github.com/leandeep/marker-engine/internal/marker"
	"github.com/leandeep/marker-engine/internal/textproc"
)

// Result is the outcome of one analysis: the session's events and
// aggregates plus the whole-text surface measures.
type Result struct {
	SessionID      string                `json:"session_id" yaml:"session_id"`
	CatalogVersion string                `json:"catalog_version" yaml:"catalog_version"`
	Seq            uint64                `json:"seq" yaml:"seq"`
	Events         []marker.Event        `json:"events" yaml:"events"`
	Counts         map[marker.Level]int  `json:"counts" yaml:"counts"`
	Emotion        marker.EmotionState   `json:"emotion" yaml:"emotion"`
	Skipped        []marker.SkippedChunk `json:"skipped,omitempty" yaml:"skipped,omitempty"`
	Features       textproc.Features     `json:"features" yaml:"features"`
	Entities       []textproc.Entity     `json:"entities,omitempty" yaml:"entities,omitempty"`
	Sentiment      affect.Score          `json:"sentiment" yaml:"sentiment"`
}

// Collect assembles a Result from a live session. text is the full
// input fed so far; the surface measures are computed from it.
func (e *Engine) Collect(sessionID, text string) (*Result, error) {
	events, err := e.EventsSince(sessionID, 0)
	if err != nil {
		return nil, err
	}
	snap, err := e.Snapshot(sessionID)
	if err != nil {
		return nil, err
	}
	return &Result{
		SessionID:      sessionID,
		CatalogVersion: e.holder.Current().Version(),
		Seq:            snap.Seq,
		Events:         events,
		Counts:         snap.Counts,
		Emotion:        snap.Emotion,
		Skipped:        snap.Skipped,
		Features:       textproc.ExtractFeatures(text),
		Entities:       textproc.ExtractEntities(text),
		Sentiment:      e.scorer.Score(text),
	}, nil
}

// Analyze runs the whole text through an ephemeral session and returns
// the collected result. The text is segmented; segment offsets keep
// event spans aligned with the input.
func (e *Engine) Analyze(ctx context.Context, text string) (*Result, error) {
	id := e.NewSessionID()
	if err := e.StartSession(id); err != nil {
		return nil, err
	}
	defer e.CloseSession(id)

	for _, seg := range textproc.Split(text, e.opts.Segment) {
		if err := e.FeedAt(ctx, id, seg.Text, seg.Offset); err != nil {
			return nil, fmt.Errorf("feeding chunk: %w", err)
		}
	}
	return e.Collect(id, text)
}
