// Package profile derives behavioral profiles and export documents
// from analysis results.
package profile

import (
	"fmt"
	"sort"
	"time"

	"github.com/leandeep/marker-engine/internal/catalog"
	"github.com/leandeep/marker-engine/internal/engine"
	"github.com/leandeep/marker-engine/internal/marker"
)

// Summary is the headline section of a profile.
type Summary struct {
	TotalEvents   int      `json:"total_events" yaml:"total_events"`
	DominantLevel string   `json:"dominant_level" yaml:"dominant_level"`
	KeyPatterns   []string `json:"key_patterns" yaml:"key_patterns"`
}

// EmotionalProfile summarizes the session's affect state.
type EmotionalProfile struct {
	Baseline   float64           `json:"baseline" yaml:"baseline"`
	Stability  float64           `json:"stability" yaml:"stability"`
	DriftLevel marker.DriftLevel `json:"drift_level" yaml:"drift_level"`
}

// Characteristics groups the derived behavioral traits.
type Characteristics struct {
	CommunicationStyle string           `json:"communication_style" yaml:"communication_style"`
	EmotionalProfile   EmotionalProfile `json:"emotional_profile" yaml:"emotional_profile"`
	CognitivePatterns  []string         `json:"cognitive_patterns" yaml:"cognitive_patterns"`
}

// Profile is a deterministic snapshot derived from one result. Its
// timestamp comes from the last event, never the wall clock, so
// repeated generation over the same result is identical.
type Profile struct {
	Timestamp       time.Time       `json:"timestamp" yaml:"timestamp"`
	Summary         Summary         `json:"summary" yaml:"summary"`
	Characteristics Characteristics `json:"characteristics" yaml:"characteristics"`
	RiskIndicators  []string        `json:"risk_indicators" yaml:"risk_indicators"`
	Recommendations []string        `json:"recommendations" yaml:"recommendations"`
}

// Export is the full analysis document: the result plus its profile.
type Export struct {
	engine.Result `yaml:",inline"`
	Profile       *Profile `json:"profile" yaml:"profile"`
}

const (
	styleInquisitive = "Inquisitive"
	styleEmotional   = "Emotional"
	styleBalanced    = "Balanced"

	riskInstability = "High emotional instability"
	riskConflict    = "Conflict indicators present"
	riskVariability = "High emotional variability"
)

// Build derives a profile from a result. cat resolves marker
// categories; markers missing from it count as uncategorized.
func Build(res *engine.Result, cat *catalog.Catalog) *Profile {
	return &Profile{
		Timestamp: lastTimestamp(res.Events),
		Summary: Summary{
			TotalEvents:   len(res.Events),
			DominantLevel: dominantLevel(res.Counts),
			KeyPatterns:   keyPatterns(res.Events, cat),
		},
		Characteristics: Characteristics{
			CommunicationStyle: communicationStyle(res.Events, cat),
			EmotionalProfile: EmotionalProfile{
				Baseline:   res.Emotion.HomeBase,
				Stability:  stability(res.Emotion.Variability),
				DriftLevel: res.Emotion.DriftLevel,
			},
			CognitivePatterns: cognitivePatterns(res.Events),
		},
		RiskIndicators:  riskIndicators(res, cat),
		Recommendations: recommendations(res, cat),
	}
}

// BuildExport pairs a result with its profile.
func BuildExport(res *engine.Result, cat *catalog.Catalog) *Export {
	return &Export{Result: *res, Profile: Build(res, cat)}
}

func lastTimestamp(events []marker.Event) time.Time {
	if len(events) == 0 {
		return time.Time{}
	}
	return events[len(events)-1].Timestamp
}

func dominantLevel(counts map[marker.Level]int) string {
	best, bestN := "NONE", 0
	for _, l := range marker.Levels() {
		if n := counts[l]; n > bestN {
			best, bestN = string(l), n
		}
	}
	return best
}

func category(cat *catalog.Catalog, id string) string {
	if cat == nil {
		return ""
	}
	def, err := cat.Lookup(id)
	if err != nil || def.Category == "" {
		return ""
	}
	return def.Category
}

func keyPatterns(events []marker.Event, cat *catalog.Catalog) []string {
	groups := make(map[string]int)
	for _, ev := range events {
		if c := category(cat, ev.MarkerID); c != "" {
			groups[c]++
		}
	}

	type pattern struct {
		category string
		n        int
	}
	var ps []pattern
	for c, n := range groups {
		if n >= 3 {
			ps = append(ps, pattern{c, n})
		}
	}
	sort.Slice(ps, func(i, j int) bool {
		if ps[i].n != ps[j].n {
			return ps[i].n > ps[j].n
		}
		return ps[i].category < ps[j].category
	})
	if len(ps) > 5 {
		ps = ps[:5]
	}

	out := make([]string, len(ps))
	for i, p := range ps {
		out[i] = fmt.Sprintf("Repeated %s pattern (%d occurrences)", p.category, p.n)
	}
	return out
}

func communicationStyle(events []marker.Event, cat *catalog.Catalog) string {
	if len(events) == 0 {
		return styleBalanced
	}
	var questions, emotions int
	for _, ev := range events {
		switch category(cat, ev.MarkerID) {
		case "question":
			questions++
		case "emotion":
			emotions++
		}
	}
	total := float64(len(events))
	switch {
	case float64(questions) > total*0.3:
		return styleInquisitive
	case float64(emotions) > total*0.4:
		return styleEmotional
	default:
		return styleBalanced
	}
}

func cognitivePatterns(events []marker.Event) []string {
	clusters := make(map[string]struct{})
	meta := false
	for _, ev := range events {
		switch ev.Level {
		case marker.LevelCLU:
			clusters[ev.MarkerID] = struct{}{}
		case marker.LevelMEMA:
			meta = true
		}
	}

	var patterns []string
	if len(clusters) >= 2 {
		patterns = append(patterns, "Complex contextual processing")
	}
	if meta {
		patterns = append(patterns, "Deep psychological indicators")
	}
	return patterns
}

func riskIndicators(res *engine.Result, cat *catalog.Catalog) []string {
	var risks []string
	if res.Emotion.DriftLevel == marker.DriftHigh {
		risks = append(risks, riskInstability)
	}
	for _, ev := range res.Events {
		if category(cat, ev.MarkerID) == "conflict" {
			risks = append(risks, riskConflict)
			break
		}
	}
	if res.Emotion.Variability > 0.7 {
		risks = append(risks, riskVariability)
	}
	return risks
}

func recommendations(res *engine.Result, cat *catalog.Catalog) []string {
	var recs []string
	for _, risk := range riskIndicators(res, cat) {
		switch risk {
		case riskInstability:
			recs = append(recs, "Consider emotional regulation techniques")
		case riskConflict:
			recs = append(recs, "Address conflict resolution strategies")
		}
	}
	if len(recs) == 0 {
		recs = append(recs, "Continue monitoring patterns")
	}
	return recs
}

func stability(variability float64) float64 {
	s := 1 - variability
	if s < 0 {
		return 0
	}
	if s > 1 {
		return 1
	}
	return s
}
