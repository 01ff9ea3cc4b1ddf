package profile

import (
	"bytes"
	"encoding/json"
	"reflect"
	"testing"
	"time"

	"github.com/leandeep/marker-engine/internal/catalog"
	"github.com/leandeep/marker-engine/internal/engine"
	"github.com/leandeep/marker-engine/internal/marker"
	"gopkg.in/yaml.v3"
)

func testCatalog(t *testing.T) *catalog.Catalog {
	t.Helper()
	ato := func(id, pattern, cat string) marker.Definition {
		return marker.Definition{
			MarkerID:            id,
			Level:               marker.LevelATO,
			Pattern:             pattern,
			Category:            cat,
			ConfidenceThreshold: marker.DefaultConfidenceThreshold,
			Weight:              marker.DefaultWeight,
		}
	}
	rule := func(id string, level marker.Level, rule, cat string) marker.Definition {
		return marker.Definition{
			MarkerID:            id,
			Level:               level,
			ActivationRule:      rule,
			Category:            cat,
			ConfidenceThreshold: marker.DefaultConfidenceThreshold,
			Weight:              marker.DefaultWeight,
		}
	}
	cat, err := catalog.Load([]marker.Definition{
		ato("A_QUESTION", `\?`, "question"),
		ato("A_SADNESS", `sad`, "emotion"),
		ato("A_ATTACK", `fight`, "conflict"),
		ato("A_PLAIN", `plain`, ""),
		rule("S_TENSION", marker.LevelSEM, "A_ATTACK", "conflict"),
		rule("C_SPIRAL", marker.LevelCLU, "S_TENSION", "emotion"),
		rule("C_LOOP", marker.LevelCLU, "A_SADNESS COUNT >= 2", "emotion"),
		rule("M_CORE", marker.LevelMEMA, "C_SPIRAL", "psychology"),
	})
	if err != nil {
		t.Fatalf("load catalog: %v", err)
	}
	return cat
}

func event(markerID string, level marker.Level, seq uint64, ts time.Time) marker.Event {
	return marker.Event{
		ID:        "01TEST",
		SessionID: "s1",
		MarkerID:  markerID,
		Level:     level,
		Seq:       seq,
		Timestamp: ts,
	}
}

func TestBuild_EmptyResult(t *testing.T) {
	cat := testCatalog(t)
	res := &engine.Result{Counts: map[marker.Level]int{}}

	p := Build(res, cat)

	if !p.Timestamp.IsZero() {
		t.Fatalf("expected zero timestamp, got %v", p.Timestamp)
	}
	if p.Summary.TotalEvents != 0 {
		t.Fatalf("expected 0 events, got %d", p.Summary.TotalEvents)
	}
	if p.Summary.DominantLevel != "NONE" {
		t.Fatalf("expected dominant level NONE, got %q", p.Summary.DominantLevel)
	}
	if p.Characteristics.CommunicationStyle != "Balanced" {
		t.Fatalf("expected Balanced, got %q", p.Characteristics.CommunicationStyle)
	}
	if len(p.RiskIndicators) != 0 {
		t.Fatalf("expected no risks, got %v", p.RiskIndicators)
	}
	if !reflect.DeepEqual(p.Recommendations, []string{"Continue monitoring patterns"}) {
		t.Fatalf("expected monitoring default, got %v", p.Recommendations)
	}
}

func TestBuild_TimestampComesFromLastEvent(t *testing.T) {
	cat := testCatalog(t)
	first := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	last := time.Date(2024, 3, 1, 10, 5, 0, 0, time.UTC)
	res := &engine.Result{
		Events: []marker.Event{
			event("A_PLAIN", marker.LevelATO, 1, first),
			event("A_PLAIN", marker.LevelATO, 2, last),
		},
		Counts: map[marker.Level]int{marker.LevelATO: 2},
	}

	p := Build(res, cat)
	if !p.Timestamp.Equal(last) {
		t.Fatalf("expected timestamp %v, got %v", last, p.Timestamp)
	}
}

func TestBuild_DominantLevelPrefersHighestCount(t *testing.T) {
	cat := testCatalog(t)
	res := &engine.Result{
		Counts: map[marker.Level]int{
			marker.LevelATO: 2,
			marker.LevelSEM: 5,
			marker.LevelCLU: 1,
		},
	}

	p := Build(res, cat)
	if p.Summary.DominantLevel != "SEM" {
		t.Fatalf("expected SEM, got %q", p.Summary.DominantLevel)
	}
}

func TestBuild_KeyPatternsRequireThreeOccurrences(t *testing.T) {
	cat := testCatalog(t)
	ts := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	var events []marker.Event
	for i := 0; i < 4; i++ {
		events = append(events, event("A_SADNESS", marker.LevelATO, uint64(i+1), ts))
	}
	for i := 0; i < 3; i++ {
		events = append(events, event("A_ATTACK", marker.LevelATO, uint64(i+5), ts))
	}
	events = append(events, event("A_QUESTION", marker.LevelATO, 8, ts))
	res := &engine.Result{Events: events, Counts: map[marker.Level]int{marker.LevelATO: 8}}

	p := Build(res, cat)
	want := []string{
		"Repeated emotion pattern (4 occurrences)",
		"Repeated conflict pattern (3 occurrences)",
	}
	if !reflect.DeepEqual(p.Summary.KeyPatterns, want) {
		t.Fatalf("expected %v, got %v", want, p.Summary.KeyPatterns)
	}
}

func TestBuild_CommunicationStyle(t *testing.T) {
	cat := testCatalog(t)
	ts := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	mk := func(ids ...string) []marker.Event {
		events := make([]marker.Event, len(ids))
		for i, id := range ids {
			events[i] = event(id, marker.LevelATO, uint64(i+1), ts)
		}
		return events
	}

	cases := []struct {
		name   string
		events []marker.Event
		want   string
	}{
		{"questions dominate", mk("A_QUESTION", "A_QUESTION", "A_PLAIN"), "Inquisitive"},
		{"emotion dominates", mk("A_SADNESS", "A_SADNESS", "A_SADNESS", "A_PLAIN"), "Emotional"},
		{"neither dominates", mk("A_PLAIN", "A_PLAIN", "A_PLAIN", "A_QUESTION"), "Balanced"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			res := &engine.Result{Events: tc.events, Counts: map[marker.Level]int{}}
			if got := Build(res, cat).Characteristics.CommunicationStyle; got != tc.want {
				t.Fatalf("expected %q, got %q", tc.want, got)
			}
		})
	}
}

func TestBuild_StabilityInvertsVariability(t *testing.T) {
	cat := testCatalog(t)
	cases := []struct {
		variability float64
		want        float64
	}{
		{0, 1},
		{0.3, 0.7},
		{1, 0},
		{1.4, 0},
	}
	for _, tc := range cases {
		res := &engine.Result{
			Counts:  map[marker.Level]int{},
			Emotion: marker.EmotionState{Variability: tc.variability},
		}
		got := Build(res, cat).Characteristics.EmotionalProfile.Stability
		if diff := got - tc.want; diff > 1e-9 || diff < -1e-9 {
			t.Fatalf("variability %v: expected stability %v, got %v", tc.variability, tc.want, got)
		}
	}
}

func TestBuild_CognitivePatterns(t *testing.T) {
	cat := testCatalog(t)
	ts := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	res := &engine.Result{
		Events: []marker.Event{
			event("C_SPIRAL", marker.LevelCLU, 1, ts),
			event("C_LOOP", marker.LevelCLU, 2, ts),
			event("M_CORE", marker.LevelMEMA, 3, ts),
		},
		Counts: map[marker.Level]int{marker.LevelCLU: 2, marker.LevelMEMA: 1},
	}

	p := Build(res, cat)
	want := []string{"Complex contextual processing", "Deep psychological indicators"}
	if !reflect.DeepEqual(p.Characteristics.CognitivePatterns, want) {
		t.Fatalf("expected %v, got %v", want, p.Characteristics.CognitivePatterns)
	}
}

func TestBuild_RisksDriveRecommendations(t *testing.T) {
	cat := testCatalog(t)
	ts := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	res := &engine.Result{
		Events: []marker.Event{event("A_ATTACK", marker.LevelATO, 1, ts)},
		Counts: map[marker.Level]int{marker.LevelATO: 1},
		Emotion: marker.EmotionState{
			HomeBase:    -0.4,
			Variability: 0.8,
			DriftLevel:  marker.DriftHigh,
			Samples:     9,
		},
	}

	p := Build(res, cat)
	wantRisks := []string{
		"High emotional instability",
		"Conflict indicators present",
		"High emotional variability",
	}
	if !reflect.DeepEqual(p.RiskIndicators, wantRisks) {
		t.Fatalf("expected risks %v, got %v", wantRisks, p.RiskIndicators)
	}
	wantRecs := []string{
		"Consider emotional regulation techniques",
		"Address conflict resolution strategies",
	}
	if !reflect.DeepEqual(p.Recommendations, wantRecs) {
		t.Fatalf("expected recommendations %v, got %v", wantRecs, p.Recommendations)
	}
}

func TestBuildExport_RepeatedMarshalIsIdentical(t *testing.T) {
	cat := testCatalog(t)
	ts := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	res := &engine.Result{
		SessionID:      "s1",
		CatalogVersion: cat.Version(),
		Seq:            2,
		Events: []marker.Event{
			event("A_SADNESS", marker.LevelATO, 1, ts),
			event("A_SADNESS", marker.LevelATO, 2, ts.Add(time.Second)),
		},
		Counts:  map[marker.Level]int{marker.LevelATO: 2},
		Emotion: marker.EmotionState{HomeBase: -0.2, DriftLevel: marker.DriftLow, Samples: 2},
	}

	a, err := json.Marshal(BuildExport(res, cat))
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	b, err := json.Marshal(BuildExport(res, cat))
	if err != nil {
		t.Fatalf("marshal again: %v", err)
	}
	if !bytes.Equal(a, b) {
		t.Fatalf("repeated export differs:\n%s\n%s", a, b)
	}

	ya, err := yaml.Marshal(BuildExport(res, cat))
	if err != nil {
		t.Fatalf("yaml marshal: %v", err)
	}
	yb, err := yaml.Marshal(BuildExport(res, cat))
	if err != nil {
		t.Fatalf("yaml marshal again: %v", err)
	}
	if !bytes.Equal(ya, yb) {
		t.Fatalf("repeated yaml export differs:\n%s\n%s", ya, yb)
	}
}
