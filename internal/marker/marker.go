// Package marker defines the core marker data types.
package marker

import "time"

// Level is the tier of a marker in the detection hierarchy.
type Level string

// The four marker levels, atomic through meta.
const (
	LevelATO  Level = "ATO"
	LevelSEM  Level = "SEM"
	LevelCLU  Level = "CLU"
	LevelMEMA Level = "MEMA"
)

// ValidLevels are the allowed marker levels.
var ValidLevels = map[Level]bool{
	LevelATO:  true,
	LevelSEM:  true,
	LevelCLU:  true,
	LevelMEMA: true,
}

// levelRanks orders the hierarchy; every dependency edge must point to
// a strictly lower rank.
var levelRanks = map[Level]int{
	LevelATO:  1,
	LevelSEM:  2,
	LevelCLU:  3,
	LevelMEMA: 4,
}

// Rank returns the numeric position of the level in the hierarchy,
// or 0 for an unknown level.
func (l Level) Rank() int {
	return levelRanks[l]
}

// Levels lists the four levels in ascending rank order.
func Levels() []Level {
	return []Level{LevelATO, LevelSEM, LevelCLU, LevelMEMA}
}

// Definition is one marker definition. Definitions are immutable once
// loaded into a catalog; ATO markers carry a pattern, higher levels an
// activation rule.
type Definition struct {
	MarkerID            string         `json:"marker_id" yaml:"marker_id"`
	Level               Level          `json:"level" yaml:"level"`
	Pattern             string         `json:"pattern,omitempty" yaml:"pattern,omitempty"`
	ActivationRule      string         `json:"activation_rule,omitempty" yaml:"activation_rule,omitempty"`
	Dependencies        []string       `json:"dependencies,omitempty" yaml:"dependencies,omitempty"`
	ConfidenceThreshold float64        `json:"confidence_threshold" yaml:"confidence_threshold"`
	Weight              float64        `json:"weight" yaml:"weight"`
	Category            string         `json:"category,omitempty" yaml:"category,omitempty"`
	Description         string         `json:"description,omitempty" yaml:"description,omitempty"`
	Metadata            map[string]any `json:"metadata,omitempty" yaml:"metadata,omitempty"`
	CreatedAt           time.Time      `json:"created_at,omitzero" yaml:"created_at,omitempty"`
	UpdatedAt           time.Time      `json:"updated_at,omitzero" yaml:"updated_at,omitempty"`
}

// Default values applied to imported definitions when the field is absent.
const (
	DefaultConfidenceThreshold = 0.8
	DefaultWeight              = 1.0
)

// Valence reports the affect score attached to this marker via the
// "valence" metadata key, if one is declared and numeric.
func (d *Definition) Valence() (float64, bool) {
	if d.Metadata == nil {
		return 0, false
	}
	switch v := d.Metadata["valence"].(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	}
	return 0, false
}

// Span locates a detection in the original input stream, in bytes.
type Span struct {
	Start  int `json:"start" yaml:"start"`
	Length int `json:"length" yaml:"length"`
}

// Event is one marker activation. Events are immutable and uniquely
// ordered within a session by Seq.
type Event struct {
	ID               string    `json:"id" yaml:"id"`
	Seq              uint64    `json:"seq" yaml:"seq"`
	MarkerID         string    `json:"marker_id" yaml:"marker_id"`
	Level            Level     `json:"level" yaml:"level"`
	SessionID        string    `json:"session_id" yaml:"session_id"`
	Span             Span      `json:"span" yaml:"span"`
	Confidence       float64   `json:"confidence" yaml:"confidence"`
	TriggeringEvents []string  `json:"triggering_events,omitempty" yaml:"triggering_events,omitempty"`
	Timestamp        time.Time `json:"timestamp" yaml:"timestamp"`
}

// DriftLevel classifies how far the latest affect sample sits from the
// session's rolling baseline.
type DriftLevel string

const (
	DriftLow    DriftLevel = "low"
	DriftMedium DriftLevel = "medium"
	DriftHigh   DriftLevel = "high"
)

// EmotionState is the rolling affect summary for a session.
type EmotionState struct {
	HomeBase    float64    `json:"home_base" yaml:"home_base"`
	Variability float64    `json:"variability" yaml:"variability"`
	DriftLevel  DriftLevel `json:"drift_level" yaml:"drift_level"`
	Samples     int        `json:"samples" yaml:"samples"`
}

// SkippedChunk records an input chunk the pipeline could not process.
type SkippedChunk struct {
	Span   Span   `json:"span" yaml:"span"`
	Reason string `json:"reason" yaml:"reason"`
}
