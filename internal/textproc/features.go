package textproc

import (
	"regexp"
	"unicode"
	"unicode/utf8"

	"github.com/leandeep/marker-engine/internal/marker"
)

// Features are surface statistics over an analysis input.
type Features struct {
	WordCount        int     `json:"word_count" yaml:"word_count"`
	CharCount        int     `json:"char_count" yaml:"char_count"`
	SentenceCount    int     `json:"sentence_count" yaml:"sentence_count"`
	AvgWordLength    float64 `json:"avg_word_length" yaml:"avg_word_length"`
	QuestionCount    int     `json:"question_count" yaml:"question_count"`
	ExclamationCount int     `json:"exclamation_count" yaml:"exclamation_count"`
	UppercaseRatio   float64 `json:"uppercase_ratio" yaml:"uppercase_ratio"`
}

var (
	wordRe     = regexp.MustCompile(`\b\w+\b`)
	sentenceRe = regexp.MustCompile(`[.!?]+`)
)

// ExtractFeatures computes surface statistics for text.
func ExtractFeatures(text string) Features {
	words := wordRe.FindAllString(text, -1)

	f := Features{
		WordCount:     len(words),
		CharCount:     utf8.RuneCountInString(text),
		SentenceCount: len(sentenceRe.Split(text, -1)),
	}

	totalLen := 0
	for _, w := range words {
		totalLen += utf8.RuneCountInString(w)
	}
	if len(words) > 0 {
		f.AvgWordLength = float64(totalLen) / float64(len(words))
	}

	upper := 0
	for _, r := range text {
		switch {
		case r == '?':
			f.QuestionCount++
		case r == '!':
			f.ExclamationCount++
		}
		if unicode.IsUpper(r) {
			upper++
		}
	}
	if f.CharCount > 0 {
		f.UppercaseRatio = float64(upper) / float64(f.CharCount)
	}

	return f
}

// Entity is a recognized surface entity.
type Entity struct {
	Type string      `json:"type" yaml:"type"`
	Text string      `json:"text" yaml:"text"`
	Span marker.Span `json:"span" yaml:"span"`
}

var entityPatterns = []struct {
	typ string
	re  *regexp.Regexp
}{
	{"EMAIL", regexp.MustCompile(`\b[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}\b`)},
	{"PHONE", regexp.MustCompile(`\b\d{3}[-.]?\d{3}[-.]?\d{4}\b`)},
	{"URL", regexp.MustCompile(`https?://\S+`)},
	{"MONEY", regexp.MustCompile(`\$\d+(?:,\d{3})*(?:\.\d{2})?`)},
}

// ExtractEntities finds email addresses, phone numbers, URLs and money
// amounts in text, in that scan order.
func ExtractEntities(text string) []Entity {
	var out []Entity
	for _, p := range entityPatterns {
		for _, loc := range p.re.FindAllStringIndex(text, -1) {
			out = append(out, Entity{
				Type: p.typ,
				Text: text[loc[0]:loc[1]],
				Span: marker.Span{Start: loc[0], Length: loc[1] - loc[0]},
			})
		}
	}
	return out
}
