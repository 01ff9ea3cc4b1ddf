// Package session holds per-session state and update fan-out.
package session

import (
	"time"

	"github.com/leandeep/marker-engine/internal/marker"
)

// LastSeen records the most recent event of a marker.
type LastSeen struct {
	Seq       uint64    `json:"seq" yaml:"seq"`
	Timestamp time.Time `json:"timestamp" yaml:"timestamp"`
}

// Snapshot is a point-in-time copy of a session's aggregates.
type Snapshot struct {
	SessionID string                `json:"session_id" yaml:"session_id"`
	Seq       uint64                `json:"seq" yaml:"seq"`
	Counts    map[marker.Level]int  `json:"counts" yaml:"counts"`
	LastSeen  map[string]LastSeen   `json:"last_seen" yaml:"last_seen"`
	Emotion   marker.EmotionState   `json:"emotion" yaml:"emotion"`
	Skipped   []marker.SkippedChunk `json:"skipped" yaml:"skipped"`
}

// State is a session's append-only event log plus the aggregates the
// engine keeps alongside it. It is owned by the session's worker
// goroutine; methods are not safe for concurrent use.
type State struct {
	id     string
	seq    uint64
	events []marker.Event

	byMarker map[string][]int
	lastSeen map[string]LastSeen
	counts   map[marker.Level]int

	// consumed tracks, per dependent marker, the child event ids its
	// rule has already spent. Idempotent activation hangs off this.
	consumed map[string]map[string]struct{}

	skipped []marker.SkippedChunk
	emotion marker.EmotionState

	driftEpoch uint64
	driftFired map[string]uint64
}

// NewState creates an empty session state.
func NewState(id string) *State {
	return &State{
		id:         id,
		byMarker:   make(map[string][]int),
		lastSeen:   make(map[string]LastSeen),
		counts:     make(map[marker.Level]int),
		consumed:   make(map[string]map[string]struct{}),
		driftFired: make(map[string]uint64),
		emotion:    marker.EmotionState{DriftLevel: marker.DriftLow},
	}
}

// ID returns the session id.
func (s *State) ID() string { return s.id }

// Seq returns the sequence number of the latest event.
func (s *State) Seq() uint64 { return s.seq }

// Append assigns the next sequence number to ev, stores it and updates
// the aggregates. The stored event is returned.
func (s *State) Append(ev marker.Event) marker.Event {
	s.seq++
	ev.Seq = s.seq
	ev.SessionID = s.id
	s.events = append(s.events, ev)

	idx := len(s.events) - 1
	s.byMarker[ev.MarkerID] = append(s.byMarker[ev.MarkerID], idx)
	s.counts[ev.Level]++
	s.lastSeen[ev.MarkerID] = LastSeen{Seq: ev.Seq, Timestamp: ev.Timestamp}
	return ev
}

// Events returns the full event log. The returned slice must not be
// modified.
func (s *State) Events() []marker.Event {
	return s.events
}

// EventsSince returns every event with a sequence number greater than
// seq, in order.
func (s *State) EventsSince(seq uint64) []marker.Event {
	if seq >= s.seq {
		return nil
	}
	// Sequence numbers are dense, so the offset is direct.
	return s.events[seq:]
}

// EventBySeq returns the event holding a sequence number.
func (s *State) EventBySeq(seq uint64) (marker.Event, bool) {
	if seq == 0 || seq > s.seq {
		return marker.Event{}, false
	}
	return s.events[seq-1], true
}

// MarkerEvents returns the events of one marker in append order.
func (s *State) MarkerEvents(id string) []marker.Event {
	idxs := s.byMarker[id]
	if len(idxs) == 0 {
		return nil
	}
	evs := make([]marker.Event, len(idxs))
	for i, idx := range idxs {
		evs[i] = s.events[idx]
	}
	return evs
}

// Unconsumed returns the events of child that dependent's rule has not
// yet spent, in append order.
func (s *State) Unconsumed(dependent, child string) []marker.Event {
	spent := s.consumed[dependent]
	idxs := s.byMarker[child]
	var evs []marker.Event
	for _, idx := range idxs {
		ev := s.events[idx]
		if _, ok := spent[ev.ID]; ok {
			continue
		}
		evs = append(evs, ev)
	}
	return evs
}

// Consume marks event ids as spent for dependent.
func (s *State) Consume(dependent string, eventIDs []string) {
	if len(eventIDs) == 0 {
		return
	}
	spent := s.consumed[dependent]
	if spent == nil {
		spent = make(map[string]struct{})
		s.consumed[dependent] = spent
	}
	for _, id := range eventIDs {
		spent[id] = struct{}{}
	}
}

// Skip records a chunk the engine could not process.
func (s *State) Skip(sk marker.SkippedChunk) {
	s.skipped = append(s.skipped, sk)
}

// Skipped returns the skipped-chunk diagnostics in order.
func (s *State) Skipped() []marker.SkippedChunk {
	return s.skipped
}

// SetEmotion replaces the emotion snapshot.
func (s *State) SetEmotion(st marker.EmotionState) {
	s.emotion = st
}

// Emotion returns the current emotion snapshot.
func (s *State) Emotion() marker.EmotionState {
	return s.emotion
}

// DriftEpoch returns the current drift epoch. The epoch advances every
// time drift enters high, letting drift-gated rules fire once per
// excursion.
func (s *State) DriftEpoch() uint64 { return s.driftEpoch }

// BumpDriftEpoch advances the drift epoch.
func (s *State) BumpDriftEpoch() { s.driftEpoch++ }

// FiredInEpoch reports whether the drift-gated marker already fired in
// the current epoch.
func (s *State) FiredInEpoch(id string) bool {
	epoch, ok := s.driftFired[id]
	return ok && epoch == s.driftEpoch
}

// MarkFiredInEpoch records that the drift-gated marker fired in the
// current epoch.
func (s *State) MarkFiredInEpoch(id string) {
	s.driftFired[id] = s.driftEpoch
}

// Snapshot copies the aggregates into an independent value.
func (s *State) Snapshot() Snapshot {
	counts := make(map[marker.Level]int, len(s.counts))
	for l, n := range s.counts {
		counts[l] = n
	}
	lastSeen := make(map[string]LastSeen, len(s.lastSeen))
	for id, ls := range s.lastSeen {
		lastSeen[id] = ls
	}
	skipped := append([]marker.SkippedChunk(nil), s.skipped...)
	return Snapshot{
		SessionID: s.id,
		Seq:       s.seq,
		Counts:    counts,
		LastSeen:  lastSeen,
		Emotion:   s.emotion,
		Skipped:   skipped,
	}
}
