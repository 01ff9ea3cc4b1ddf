package catalog

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/leandeep/marker-engine/internal/marker"
)

// defRecord shadows the defaulted numeric fields so an absent value can
// be told apart from an explicit zero.
type defRecord struct {
	marker.Definition
	ConfidenceThreshold *float64 `json:"confidence_threshold"`
	Weight              *float64 `json:"weight"`
}

// DecodeDefinitions parses a definition document, JSON or YAML, either
// a top-level array of records or an object wrapping the array under a
// "markers" key. The document is checked against the import schema and
// import defaults are applied. name is used for format detection and
// error messages.
func DecodeDefinitions(data []byte, name string) ([]marker.Definition, error) {
	var doc any
	if isYAMLName(name) {
		var y any
		if err := yaml.Unmarshal(data, &y); err != nil {
			return nil, fmt.Errorf("parsing %s: %w", name, err)
		}
		// Round-trip through JSON so schema validation sees the same
		// value shapes regardless of source format.
		j, err := json.Marshal(y)
		if err != nil {
			return nil, fmt.Errorf("converting %s: %w", name, err)
		}
		if err := json.Unmarshal(j, &doc); err != nil {
			return nil, fmt.Errorf("converting %s: %w", name, err)
		}
	} else {
		if err := json.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("parsing %s: %w", name, err)
		}
	}

	if err := marker.ValidateDocument(doc); err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}

	records := doc
	if m, ok := doc.(map[string]any); ok {
		records = m["markers"]
	}
	raw, err := json.Marshal(records)
	if err != nil {
		return nil, fmt.Errorf("decoding %s: %w", name, err)
	}
	var recs []defRecord
	if err := json.Unmarshal(raw, &recs); err != nil {
		return nil, fmt.Errorf("decoding %s: %w", name, err)
	}

	defs := make([]marker.Definition, 0, len(recs))
	for _, r := range recs {
		d := r.Definition
		d.ConfidenceThreshold = marker.DefaultConfidenceThreshold
		if r.ConfidenceThreshold != nil {
			d.ConfidenceThreshold = *r.ConfidenceThreshold
		}
		d.Weight = marker.DefaultWeight
		if r.Weight != nil {
			d.Weight = *r.Weight
		}
		defs = append(defs, d)
	}
	return defs, nil
}

func isYAMLName(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".yaml", ".yml":
		return true
	}
	return false
}

func isDefinitionName(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".json", ".yaml", ".yml":
		return true
	}
	return false
}

// LoadPath reads definitions from a file, or from every definition file
// directly inside a directory in name order.
func LoadPath(path string) ([]marker.Definition, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("reading definitions: %w", err)
	}

	if !info.IsDir() {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading definitions: %w", err)
		}
		return DecodeDefinitions(data, filepath.Base(path))
	}

	entries, err := os.ReadDir(path)
	if err != nil {
		return nil, fmt.Errorf("reading definitions dir: %w", err)
	}
	var names []string
	for _, e := range entries {
		if !e.IsDir() && isDefinitionName(e.Name()) {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	if len(names) == 0 {
		return nil, fmt.Errorf("no definition files in %s", path)
	}

	var defs []marker.Definition
	for _, name := range names {
		data, err := os.ReadFile(filepath.Join(path, name))
		if err != nil {
			return nil, fmt.Errorf("reading definitions: %w", err)
		}
		fileDefs, err := DecodeDefinitions(data, name)
		if err != nil {
			return nil, err
		}
		defs = append(defs, fileDefs...)
	}
	return defs, nil
}
