package cli

import (
	"testing"

	"github.com/leandeep/marker-engine/internal/marker"
)

func TestMergeDefinitionsOverlaysById(t *testing.T) {
	existing := []marker.Definition{
		{MarkerID: "A_X", Level: marker.LevelATO, Pattern: `x`},
		{MarkerID: "A_Y", Level: marker.LevelATO, Pattern: `y`},
	}
	incoming := []marker.Definition{
		{MarkerID: "A_Y", Level: marker.LevelATO, Pattern: `yy`},
		{MarkerID: "A_Z", Level: marker.LevelATO, Pattern: `z`},
	}

	merged, imported, updated := mergeDefinitions(existing, incoming)

	if imported != 1 || updated != 1 {
		t.Errorf("expected 1 imported 1 updated, got %d/%d", imported, updated)
	}
	if len(merged) != 3 {
		t.Fatalf("expected 3 merged, got %d", len(merged))
	}
	if merged[0].MarkerID != "A_X" || merged[1].MarkerID != "A_Y" || merged[2].MarkerID != "A_Z" {
		t.Errorf("unexpected order: %v", merged)
	}
	if merged[1].Pattern != `yy` {
		t.Errorf("expected incoming to win for A_Y, got %q", merged[1].Pattern)
	}
}

func TestMergeDefinitionsDuplicateIncoming(t *testing.T) {
	incoming := []marker.Definition{
		{MarkerID: "A_X", Level: marker.LevelATO, Pattern: `x`},
		{MarkerID: "A_X", Level: marker.LevelATO, Pattern: `xx`},
	}

	merged, imported, updated := mergeDefinitions(nil, incoming)

	if len(merged) != 1 {
		t.Fatalf("expected 1 merged, got %d", len(merged))
	}
	if merged[0].Pattern != `xx` {
		t.Errorf("expected last write to win, got %q", merged[0].Pattern)
	}
	if imported != 1 || updated != 1 {
		t.Errorf("expected 1 imported 1 updated, got %d/%d", imported, updated)
	}
}
