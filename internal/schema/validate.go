// Package schema validates authored assignment schema documents before they
// become the sampler's input contract.
package schema

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/unza-cs/grading-api/internal/models"
)

// ErrSchemaInvalid indicates a schema document that fails structural validation.
var ErrSchemaInvalid = errors.New("assignment schema invalid")

// The meta-schema keeps equal-effort variants structurally guaranteed:
// subset-of-pool requires an exact choose count, ranges require both bounds,
// pool-backed kinds require non-trivial pools.
const metaSchema = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "required": ["assignment_id", "parameters"],
  "properties": {
    "assignment_id": {"type": "string", "minLength": 1},
    "title": {"type": "string"},
    "parameters": {
      "type": "array",
      "minItems": 1,
      "items": {
        "type": "object",
        "required": ["name", "kind"],
        "properties": {
          "name": {"type": "string", "pattern": "^[a-z][a-z0-9_]*$"},
          "kind": {"enum": ["categorical", "integer-range", "float-range", "subset-of-pool", "permutation"]},
          "pool": {"type": "array", "items": {"type": "string", "minLength": 1}},
          "choose": {"type": "integer", "minimum": 1},
          "min": {"type": "number"},
          "max": {"type": "number"},
          "difficulty_weight": {"type": "number", "minimum": 0}
        },
        "allOf": [
          {
            "if": {"properties": {"kind": {"const": "subset-of-pool"}}},
            "then": {"required": ["pool", "choose"], "properties": {"pool": {"minItems": 2}}}
          },
          {
            "if": {"properties": {"kind": {"enum": ["categorical", "permutation"]}}},
            "then": {"required": ["pool"], "properties": {"pool": {"minItems": 2}}}
          },
          {
            "if": {"properties": {"kind": {"enum": ["integer-range", "float-range"]}}},
            "then": {"required": ["min", "max"]}
          }
        ]
      }
    }
  }
}`

var compiled = jsonschema.MustCompileString("assignment-schema.json", metaSchema)

// Document is the authored form of an assignment schema.
type Document struct {
	AssignmentID string                 `json:"assignment_id"`
	Title        string                 `json:"title"`
	Parameters   []models.ParameterSpec `json:"parameters"`
}

// Validate checks a raw schema document and decodes it. Beyond the JSON Schema
// pass it rejects duplicate parameter names, inverted ranges, and subset counts
// exceeding the pool, which the meta-schema cannot express.
func Validate(raw []byte) (Document, error) {
	var generic any
	if err := json.Unmarshal(raw, &generic); err != nil {
		return Document{}, fmt.Errorf("%w: %v", ErrSchemaInvalid, err)
	}

	if err := compiled.Validate(generic); err != nil {
		return Document{}, fmt.Errorf("%w: %v", ErrSchemaInvalid, err)
	}

	var doc Document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return Document{}, fmt.Errorf("%w: %v", ErrSchemaInvalid, err)
	}

	seen := make(map[string]struct{}, len(doc.Parameters))
	for _, spec := range doc.Parameters {
		if _, dup := seen[spec.Name]; dup {
			return Document{}, fmt.Errorf("%w: duplicate parameter %q", ErrSchemaInvalid, spec.Name)
		}
		seen[spec.Name] = struct{}{}

		switch spec.Kind {
		case models.ParameterKindIntegerRange, models.ParameterKindFloatRange:
			if spec.Max < spec.Min {
				return Document{}, fmt.Errorf("%w: parameter %q has max below min", ErrSchemaInvalid, spec.Name)
			}
		case models.ParameterKindSubsetOfPool:
			if spec.Choose > len(spec.Pool) {
				return Document{}, fmt.Errorf("%w: parameter %q chooses %d of %d", ErrSchemaInvalid, spec.Name, spec.Choose, len(spec.Pool))
			}
		}
	}

	return doc, nil
}
