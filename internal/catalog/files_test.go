package catalog

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/leandeep/marker-engine/internal/marker"
)

func TestDecodeDefinitions_JSONArray(t *testing.T) {
	data := []byte(`[
		{"marker_id": "A_GREET", "level": "ATO", "pattern": "hello", "confidence_threshold": 0.9, "weight": 2.0},
		{"marker_id": "S_WARM", "level": "SEM", "activation_rule": "A_GREET"}
	]`)
	defs, err := DecodeDefinitions(data, "markers.json")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(defs) != 2 {
		t.Fatalf("expected 2 definitions, got %d", len(defs))
	}
	if defs[0].ConfidenceThreshold != 0.9 || defs[0].Weight != 2.0 {
		t.Errorf("explicit values not preserved: %+v", defs[0])
	}
	if defs[1].ConfidenceThreshold != marker.DefaultConfidenceThreshold {
		t.Errorf("expected default threshold %g, got %g", marker.DefaultConfidenceThreshold, defs[1].ConfidenceThreshold)
	}
	if defs[1].Weight != marker.DefaultWeight {
		t.Errorf("expected default weight %g, got %g", marker.DefaultWeight, defs[1].Weight)
	}
}

func TestDecodeDefinitions_WrappedMarkers(t *testing.T) {
	data := []byte(`{"markers": [{"marker_id": "A_X", "level": "ATO", "pattern": "x"}]}`)
	defs, err := DecodeDefinitions(data, "markers.json")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(defs) != 1 || defs[0].MarkerID != "A_X" {
		t.Fatalf("expected [A_X], got %+v", defs)
	}
}

func TestDecodeDefinitions_YAML(t *testing.T) {
	data := []byte(`markers:
  - marker_id: A_HELLO
    level: ATO
    pattern: "hello|hi"
    category: greeting
  - marker_id: S_POSITIVE_GREETING
    level: SEM
    activation_rule: "A_HELLO"
    confidence_threshold: 0.7
`)
	defs, err := DecodeDefinitions(data, "markers.yaml")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(defs) != 2 {
		t.Fatalf("expected 2 definitions, got %d", len(defs))
	}
	if defs[0].Category != "greeting" {
		t.Errorf("expected category greeting, got %q", defs[0].Category)
	}
	if defs[1].ConfidenceThreshold != 0.7 {
		t.Errorf("expected explicit threshold 0.7, got %g", defs[1].ConfidenceThreshold)
	}
}

func TestDecodeDefinitions_ExplicitZeroThresholdKept(t *testing.T) {
	data := []byte(`[{"marker_id": "A_X", "level": "ATO", "pattern": "x", "confidence_threshold": 0}]`)
	defs, err := DecodeDefinitions(data, "markers.json")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if defs[0].ConfidenceThreshold != 0 {
		t.Errorf("expected explicit zero threshold to survive, got %g", defs[0].ConfidenceThreshold)
	}
}

func TestDecodeDefinitions_SchemaRejections(t *testing.T) {
	cases := []struct {
		name string
		data string
	}{
		{"missing marker_id", `[{"level": "ATO", "pattern": "x"}]`},
		{"missing level", `[{"marker_id": "A_X", "pattern": "x"}]`},
		{"bad level", `[{"marker_id": "A_X", "level": "XYZ", "pattern": "x"}]`},
		{"ato without pattern", `[{"marker_id": "A_X", "level": "ATO"}]`},
		{"sem without rule", `[{"marker_id": "S_X", "level": "SEM"}]`},
		{"threshold above one", `[{"marker_id": "A_X", "level": "ATO", "pattern": "x", "confidence_threshold": 2}]`},
		{"not a document", `"hello"`},
	}
	for _, tc := range cases {
		if _, err := DecodeDefinitions([]byte(tc.data), "markers.json"); err == nil {
			t.Errorf("%s: expected error", tc.name)
		}
	}
}

func TestDecodeDefinitions_BadSyntax(t *testing.T) {
	if _, err := DecodeDefinitions([]byte(`{not json`), "markers.json"); err == nil {
		t.Error("expected JSON syntax error")
	}
	if _, err := DecodeDefinitions([]byte("markers: [unclosed"), "markers.yaml"); err == nil {
		t.Error("expected YAML syntax error")
	}
}

func TestLoadPath_File(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "defs.json")
	content := `[{"marker_id": "A_X", "level": "ATO", "pattern": "x"}]`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	defs, err := LoadPath(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(defs) != 1 || defs[0].MarkerID != "A_X" {
		t.Fatalf("expected [A_X], got %+v", defs)
	}
}

func TestLoadPath_DirectoryMergesInNameOrder(t *testing.T) {
	dir := t.TempDir()
	files := map[string]string{
		"02-sem.yaml": "markers:\n  - marker_id: S_Y\n    level: SEM\n    activation_rule: A_X\n",
		"01-ato.json": `[{"marker_id": "A_X", "level": "ATO", "pattern": "x"}]`,
		"notes.txt":   "ignore me",
	}
	for name, content := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	defs, err := LoadPath(dir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(defs) != 2 {
		t.Fatalf("expected 2 definitions, got %d", len(defs))
	}
	if defs[0].MarkerID != "A_X" || defs[1].MarkerID != "S_Y" {
		t.Errorf("expected name-ordered merge [A_X S_Y], got [%s %s]", defs[0].MarkerID, defs[1].MarkerID)
	}
}

func TestLoadPath_EmptyDirectory(t *testing.T) {
	_, err := LoadPath(t.TempDir())
	if err == nil || !strings.Contains(err.Error(), "no definition files") {
		t.Errorf("expected no-definition-files error, got %v", err)
	}
}

func TestLoadPath_MissingPath(t *testing.T) {
	if _, err := LoadPath(filepath.Join(t.TempDir(), "absent.json")); err == nil {
		t.Error("expected error for missing path")
	}
}
