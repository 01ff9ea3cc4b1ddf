package engine

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/leandeep/marker-engine/internal/catalog"
	"github.com/leandeep/marker-engine/internal/dsl"
	"github.com/leandeep/marker-engine/internal/marker"
	"github.com/leandeep/marker-engine/internal/session"
	"github.com/leandeep/marker-engine/internal/textproc"
)

// processChunk runs the full pipeline for one chunk: normalize, match
// atomic patterns, cascade rule activations, fold the chunk's affect
// sample. Runs on the session worker.
func (e *Engine) processChunk(h *sessionHandle, chunk string, base int) {
	cat := e.holder.Current()

	norm, err := textproc.Normalize(chunk)
	if err != nil {
		sk := marker.SkippedChunk{
			Span:   marker.Span{Start: base, Length: len(chunk)},
			Reason: err.Error(),
		}
		h.state.Skip(sk)
		e.logger.Debug("chunk skipped",
			zap.String("session", h.id),
			zap.Int("offset", base),
			zap.Error(err))
		h.bus.Publish(session.Update{Type: session.UpdateDiagnostic, SessionID: h.id, Skipped: &sk})
		return
	}

	hits, err := e.matcher.Match(context.Background(), cat, norm, base)
	if err != nil {
		sk := marker.SkippedChunk{
			Span:   marker.Span{Start: base, Length: len(chunk)},
			Reason: err.Error(),
		}
		h.state.Skip(sk)
		h.bus.Publish(session.Update{Type: session.UpdateDiagnostic, SessionID: h.id, Skipped: &sk})
		return
	}

	for _, hit := range hits {
		def, err := cat.Lookup(hit.MarkerID)
		if err != nil {
			continue
		}
		ev := h.state.Append(marker.Event{
			ID:         h.newID(),
			MarkerID:   hit.MarkerID,
			Level:      marker.LevelATO,
			Span:       hit.Span,
			Confidence: hit.Confidence,
			Timestamp:  time.Now().UTC(),
		})
		e.publishActivation(h, ev)
		e.observeValence(h, cat, def)
		e.fireDependents(h, cat, hit.MarkerID)
	}

	e.observeSample(h, cat, e.scorer.Score(chunk).Value)
}

func (e *Engine) publishActivation(h *sessionHandle, ev marker.Event) {
	e.logger.Debug("marker activated",
		zap.String("session", h.id),
		zap.String("marker", ev.MarkerID),
		zap.String("level", string(ev.Level)),
		zap.Uint64("seq", ev.Seq),
		zap.Float64("confidence", ev.Confidence))
	h.bus.Publish(session.Update{Type: session.UpdateActivation, SessionID: h.id, Event: &ev})
}

// observeValence folds a definition-declared valence into the emotion
// state when present.
func (e *Engine) observeValence(h *sessionHandle, cat *catalog.Catalog, def *marker.Definition) {
	if v, ok := def.Valence(); ok {
		e.observeSample(h, cat, v)
	}
}

// observeSample folds one affect sample and reacts to a drift
// transition into high.
func (e *Engine) observeSample(h *sessionHandle, cat *catalog.Catalog, a float64) {
	prev := h.calc.State()
	st, ok := h.calc.Observe(a)
	if !ok {
		e.logger.Debug("affect sample rejected",
			zap.String("session", h.id),
			zap.Float64("sample", a))
		return
	}
	h.state.SetEmotion(st)
	h.bus.Publish(session.Update{Type: session.UpdateEmotion, SessionID: h.id, Emotion: &st})

	if st.DriftLevel == marker.DriftHigh && prev.DriftLevel != marker.DriftHigh {
		h.state.BumpDriftEpoch()
		e.fireDriftRules(h, cat)
	}
}

// fireDependents re-evaluates every rule depending on markerID and
// cascades through the levels. Recursion is bounded by the strict
// level ordering of the dependency graph.
func (e *Engine) fireDependents(h *sessionHandle, cat *catalog.Catalog, markerID string) {
	for _, depID := range cat.Dependents(markerID) {
		e.drainRule(h, cat, depID)
	}
}

// fireDriftRules evaluates the drift-gated rules after an epoch bump.
func (e *Engine) fireDriftRules(h *sessionHandle, cat *catalog.Catalog) {
	for _, id := range cat.DriftDependents() {
		e.drainRule(h, cat, id)
	}
}

// drainRule fires a rule for as long as fresh satisfying sets exist.
// A firing that consumed nothing cannot repeat within the drain.
func (e *Engine) drainRule(h *sessionHandle, cat *catalog.Catalog, id string) {
	for {
		fired, consumed := e.tryActivate(h, cat, id)
		if fired {
			e.fireDependents(h, cat, id)
		}
		if !fired || !consumed {
			return
		}
	}
}

// tryActivate evaluates one rule over the unconsumed events. On
// success it appends the activation event, consumes the contributing
// events and publishes the update. The second return reports whether
// any events were consumed.
func (e *Engine) tryActivate(h *sessionHandle, cat *catalog.Catalog, id string) (bool, bool) {
	def, err := cat.Lookup(id)
	if err != nil {
		return false, false
	}
	rule := cat.Rule(id)
	if rule == nil {
		return false, false
	}
	if rule.UsesDrift && h.state.FiredInEpoch(id) {
		return false, false
	}

	st := h.state
	ok, cands := rule.Evaluate(&dsl.Context{
		Avail: func(markerID string) []dsl.Candidate {
			evs := st.Unconsumed(id, markerID)
			if len(evs) == 0 {
				return nil
			}
			cs := make([]dsl.Candidate, len(evs))
			for i, ev := range evs {
				cs[i] = dsl.Candidate{EventID: ev.ID, Seq: ev.Seq, Confidence: ev.Confidence}
			}
			return cs
		},
		DriftHigh: st.Emotion().DriftLevel == marker.DriftHigh,
		MaxSeq:    st.Seq(),
	})
	if !ok {
		return false, false
	}

	conf := clamp01(def.Weight)
	var trig []string
	span := marker.Span{}
	if len(cands) > 0 {
		minConf := cands[0].Confidence
		start, end := 0, 0
		trig = make([]string, len(cands))
		for i, c := range cands {
			if c.Confidence < minConf {
				minConf = c.Confidence
			}
			trig[i] = c.EventID
			if ev, ok := st.EventBySeq(c.Seq); ok {
				s, n := ev.Span.Start, ev.Span.Start+ev.Span.Length
				if i == 0 || s < start {
					start = s
				}
				if i == 0 || n > end {
					end = n
				}
			}
		}
		span = marker.Span{Start: start, Length: end - start}
		conf = clamp01(minConf * def.Weight)
	}

	if conf < def.ConfidenceThreshold {
		return false, false
	}

	ev := h.state.Append(marker.Event{
		ID:               h.newID(),
		MarkerID:         id,
		Level:            def.Level,
		Span:             span,
		Confidence:       conf,
		TriggeringEvents: trig,
		Timestamp:        time.Now().UTC(),
	})
	st.Consume(id, trig)
	if rule.UsesDrift {
		st.MarkFiredInEpoch(id)
	}
	e.publishActivation(h, ev)
	e.observeValence(h, cat, def)
	return true, len(trig) > 0
}

func clamp01(x float64) float64 {
	if x < 0 {
		return 0
	}
	if x > 1 {
		return 1
	}
	return x
}
