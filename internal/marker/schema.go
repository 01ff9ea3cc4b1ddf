package marker

import (
	"fmt"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// documentSchema validates marker definition documents before decoding.
// A document is either a JSON array of records or an object wrapping the
// array under a "markers" key.
const documentSchema = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "oneOf": [
    {"type": "array", "items": {"$ref": "#/$defs/marker"}},
    {
      "type": "object",
      "required": ["markers"],
      "properties": {"markers": {"type": "array", "items": {"$ref": "#/$defs/marker"}}}
    }
  ],
  "$defs": {
    "marker": {
      "type": "object",
      "required": ["marker_id", "level"],
      "properties": {
        "marker_id": {"type": "string", "minLength": 1},
        "level": {"enum": ["ATO", "SEM", "CLU", "MEMA"]},
        "pattern": {"type": "string"},
        "activation_rule": {"type": "string"},
        "dependencies": {"type": "array", "items": {"type": "string"}},
        "confidence_threshold": {"type": "number", "minimum": 0, "maximum": 1},
        "weight": {"type": "number", "minimum": 0},
        "category": {"type": "string"},
        "description": {"type": "string"},
        "metadata": {"type": "object"}
      },
      "allOf": [
        {
          "if": {"properties": {"level": {"const": "ATO"}}},
          "then": {"required": ["pattern"]}
        },
        {
          "if": {"properties": {"level": {"enum": ["SEM", "CLU", "MEMA"]}}},
          "then": {"required": ["activation_rule"]}
        }
      ]
    }
  }
}`

var (
	schemaOnce     sync.Once
	compiledSchema *jsonschema.Schema
	schemaErr      error
)

func compileSchema() (*jsonschema.Schema, error) {
	schemaOnce.Do(func() {
		compiler := jsonschema.NewCompiler()
		if err := compiler.AddResource("markers.schema.json", strings.NewReader(documentSchema)); err != nil {
			schemaErr = fmt.Errorf("adding schema resource: %w", err)
			return
		}
		compiledSchema, schemaErr = compiler.Compile("markers.schema.json")
	})
	return compiledSchema, schemaErr
}

// ValidateDocument checks a decoded definition document against the
// import schema. The value must come from encoding/json decoding.
func ValidateDocument(doc any) error {
	schema, err := compileSchema()
	if err != nil {
		return err
	}
	if err := schema.Validate(doc); err != nil {
		return fmt.Errorf("definition document invalid: %w", err)
	}
	return nil
}
