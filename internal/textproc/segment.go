package textproc

import "strings"

const (
	DefaultTargetSize = 400
	DefaultMaxSize    = 600
)

// Options configures input segmentation.
type Options struct {
	TargetSize int
	MaxSize    int
}

// DefaultOptions returns default segmentation options.
func DefaultOptions() Options {
	return Options{
		TargetSize: DefaultTargetSize,
		MaxSize:    DefaultMaxSize,
	}
}

// Segment is a contiguous slice of the source text together with its
// byte offset, so match spans inside a segment translate directly to
// stream positions.
type Segment struct {
	Text   string
	Offset int
}

// Split cuts source text into feed-sized segments on paragraph
// boundaries, merging short paragraphs up to TargetSize and splitting
// oversized runs on line boundaries. Every segment satisfies
// text[s.Offset:s.Offset+len(s.Text)] == s.Text.
func Split(text string, opts Options) []Segment {
	if opts.TargetSize == 0 {
		opts = DefaultOptions()
	}

	paras := splitParagraphs(text)
	if len(paras) == 0 {
		return nil
	}

	var out []Segment
	accStart, accEnd := -1, 0
	flush := func() {
		if accStart < 0 {
			return
		}
		if accEnd-accStart > opts.MaxSize {
			out = append(out, lineSplit(text, accStart, accEnd, opts)...)
		} else {
			out = append(out, Segment{Text: text[accStart:accEnd], Offset: accStart})
		}
		accStart = -1
	}

	for _, p := range paras {
		pEnd := p.Offset + len(p.Text)
		if accStart < 0 {
			accStart, accEnd = p.Offset, pEnd
			continue
		}
		if pEnd-accStart <= opts.TargetSize {
			accEnd = pEnd
		} else {
			flush()
			accStart, accEnd = p.Offset, pEnd
		}
	}
	flush()

	return out
}

// splitParagraphs splits on blank-line boundaries, trimming surrounding
// whitespace while keeping offsets accurate.
func splitParagraphs(text string) []Segment {
	var out []Segment
	start := 0
	for start < len(text) {
		idx := strings.Index(text[start:], "\n\n")
		var raw string
		var next int
		if idx < 0 {
			raw = text[start:]
			next = len(text)
		} else {
			raw = text[start : start+idx]
			next = start + idx + 2
		}
		if s, ok := trimSegment(raw, start); ok {
			out = append(out, s)
		}
		start = next
	}
	return out
}

func trimSegment(raw string, offset int) (Segment, bool) {
	trimmed := strings.TrimLeft(raw, " \t\r\n")
	offset += len(raw) - len(trimmed)
	trimmed = strings.TrimRight(trimmed, " \t\r\n")
	if trimmed == "" {
		return Segment{}, false
	}
	return Segment{Text: trimmed, Offset: offset}, true
}

// lineSplit breaks an oversized range on line boundaries. A single line
// longer than the target stays whole.
func lineSplit(text string, start, end int, opts Options) []Segment {
	var out []Segment
	curStart := start
	lineStart := start
	for lineStart < end {
		nl := strings.IndexByte(text[lineStart:end], '\n')
		var lineEnd int
		if nl < 0 {
			lineEnd = end
		} else {
			lineEnd = lineStart + nl + 1
		}
		if lineEnd-curStart > opts.TargetSize && lineStart > curStart {
			if s, ok := trimSegment(text[curStart:lineStart], curStart); ok {
				out = append(out, s)
			}
			curStart = lineStart
		}
		lineStart = lineEnd
	}
	if s, ok := trimSegment(text[curStart:end], curStart); ok {
		out = append(out, s)
	}
	return out
}
