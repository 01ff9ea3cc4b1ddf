// Package textproc normalizes and segments analysis input text.
package textproc

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/leandeep/marker-engine/internal/marker"
)

// Normalized is the case-folded, whitespace-collapsed form of one input
// chunk, with a byte-level mapping back to the original text. Pattern
// matching runs against Text; match spans are translated back through
// OrigSpan.
type Normalized struct {
	Text string

	starts []int
	ends   []int
}

// Normalize folds case and collapses every whitespace run to a single
// space, dropping leading and trailing runs. Invalid UTF-8 yields a
// MalformedInputError with the offending byte offset.
func Normalize(chunk string) (*Normalized, error) {
	var b strings.Builder
	n := &Normalized{}

	i := 0
	inSpace := false
	spaceStart, spaceEnd := 0, 0
	for i < len(chunk) {
		r, size := utf8.DecodeRuneInString(chunk[i:])
		if r == utf8.RuneError && size == 1 {
			return nil, &marker.MalformedInputError{Offset: i, Reason: "invalid UTF-8 sequence"}
		}
		if unicode.IsSpace(r) {
			if !inSpace {
				inSpace = true
				spaceStart = i
			}
			spaceEnd = i + size
			i += size
			continue
		}
		if inSpace {
			if b.Len() > 0 {
				b.WriteByte(' ')
				n.starts = append(n.starts, spaceStart)
				n.ends = append(n.ends, spaceEnd)
			}
			inSpace = false
		}
		lr := unicode.ToLower(r)
		b.WriteRune(lr)
		for k := 0; k < utf8.RuneLen(lr); k++ {
			n.starts = append(n.starts, i)
			n.ends = append(n.ends, i+size)
		}
		i += size
	}

	n.Text = b.String()
	return n, nil
}

// OrigSpan maps the byte range [start, end) of the normalized text back
// to the covering byte range of the original chunk.
func (n *Normalized) OrigSpan(start, end int) (origStart, origEnd int) {
	if start < 0 || end > len(n.starts) || start >= end {
		return 0, 0
	}
	return n.starts[start], n.ends[end-1]
}
