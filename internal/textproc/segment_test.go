package textproc

import (
	"strings"
	"testing"
)

func TestSplit_EmptyInput(t *testing.T) {
	if segs := Split("", DefaultOptions()); segs != nil {
		t.Errorf("expected nil, got %v", segs)
	}
	if segs := Split("  \n\n  ", DefaultOptions()); segs != nil {
		t.Errorf("expected nil for whitespace-only input, got %v", segs)
	}
}

func TestSplit_ShortContent(t *testing.T) {
	text := "This is a short transcript."
	segs := Split(text, DefaultOptions())
	if len(segs) != 1 {
		t.Fatalf("expected 1 segment, got %d", len(segs))
	}
	if segs[0].Text != text {
		t.Errorf("expected %q, got %q", text, segs[0].Text)
	}
	if segs[0].Offset != 0 {
		t.Errorf("expected offset 0, got %d", segs[0].Offset)
	}
}

func TestSplit_MergesShortParagraphs(t *testing.T) {
	text := "Paragraph one.\n\nParagraph two."
	segs := Split(text, DefaultOptions())
	if len(segs) != 1 {
		t.Fatalf("expected 1 merged segment, got %d", len(segs))
	}
	if !strings.Contains(segs[0].Text, "one") || !strings.Contains(segs[0].Text, "two") {
		t.Errorf("expected merged segment to contain both paragraphs, got %q", segs[0].Text)
	}
}

func TestSplit_ParagraphBoundaries(t *testing.T) {
	para := strings.Repeat("This is a sentence. ", 15)
	text := para + "\n\n" + para + "\n\n" + para

	segs := Split(text, Options{TargetSize: 400, MaxSize: 500})
	if len(segs) < 2 {
		t.Fatalf("expected at least 2 segments, got %d", len(segs))
	}
}

func TestSplit_LongRunSplitsOnLines(t *testing.T) {
	var lines []string
	for i := 0; i < 20; i++ {
		lines = append(lines, "This is a line of text that is about fifty characters long.")
	}
	text := strings.Join(lines, "\n")

	segs := Split(text, Options{TargetSize: 200, MaxSize: 300})
	if len(segs) < 2 {
		t.Fatalf("expected at least 2 segments, got %d", len(segs))
	}
}

func TestSplit_OffsetsIndexSource(t *testing.T) {
	text := "  Leading space here.\n\n" +
		strings.Repeat("Filler sentence for length purposes. ", 20) +
		"\n\nShort tail."

	segs := Split(text, Options{TargetSize: 250, MaxSize: 400})
	if len(segs) == 0 {
		t.Fatal("expected segments")
	}
	for i, s := range segs {
		got := text[s.Offset : s.Offset+len(s.Text)]
		if got != s.Text {
			t.Errorf("segment %d: offset %d does not index its text", i, s.Offset)
		}
	}
}
