// Package affect provides a pluggable interface for scoring chunk text
// into affect samples.
package affect

import (
	"regexp"
	"strings"
)

// Label classifies a score.
type Label string

const (
	LabelPositive Label = "positive"
	LabelNegative Label = "negative"
	LabelNeutral  Label = "neutral"
)

// Score is one scored chunk. Value is in [-1,1].
type Score struct {
	Value    float64 `json:"score" yaml:"score"`
	Label    Label   `json:"label" yaml:"label"`
	Positive int     `json:"positive_words" yaml:"positive_words"`
	Negative int     `json:"negative_words" yaml:"negative_words"`
}

// Scorer turns chunk text into an affect sample. Scorers are total:
// any text, including empty, yields a score.
type Scorer interface {
	Score(text string) Score
}

// --- Lexicon Scorer ---

var wordRe = regexp.MustCompile(`\b\w+\b`)

var positiveWords = map[string]struct{}{
	"good": {}, "great": {}, "excellent": {}, "amazing": {}, "wonderful": {},
	"fantastic": {}, "love": {}, "like": {}, "happy": {}, "joy": {},
	"pleased": {}, "satisfied": {}, "awesome": {},
}

var negativeWords = map[string]struct{}{
	"bad": {}, "terrible": {}, "awful": {}, "horrible": {}, "hate": {},
	"dislike": {}, "angry": {}, "sad": {}, "disappointed": {}, "frustrated": {},
	"annoyed": {}, "upset": {}, "worried": {},
}

// LexiconScorer counts positive and negative tokens against built-in
// word lists. The balance is amplified and clamped to [-1,1].
type LexiconScorer struct{}

// NewLexicon creates a lexicon scorer.
func NewLexicon() *LexiconScorer {
	return &LexiconScorer{}
}

func (s *LexiconScorer) Score(text string) Score {
	words := wordRe.FindAllString(strings.ToLower(text), -1)
	if len(words) == 0 {
		return Score{Label: LabelNeutral}
	}

	var pos, neg int
	for _, w := range words {
		if _, ok := positiveWords[w]; ok {
			pos++
		}
		if _, ok := negativeWords[w]; ok {
			neg++
		}
	}

	value := float64(pos-neg) / float64(len(words)) * 5
	if value > 1 {
		value = 1
	} else if value < -1 {
		value = -1
	}

	label := LabelNeutral
	switch {
	case value > 0.1:
		label = LabelPositive
	case value < -0.1:
		label = LabelNegative
	}

	return Score{Value: value, Label: label, Positive: pos, Negative: neg}
}

// --- Neutral Scorer ---

// NeutralScorer scores everything as neutral. Useful in tests and when
// affect tracking should run on marker valence alone.
type NeutralScorer struct{}

// NewNeutral creates a neutral scorer.
func NewNeutral() *NeutralScorer {
	return &NeutralScorer{}
}

func (s *NeutralScorer) Score(string) Score {
	return Score{Label: LabelNeutral}
}
