package recipe

import (
	"encoding/json"
	"fmt"

	"github.com/invopop/jsonschema"
)

// JSONSchema overrides reflection for StepTarget: on the wire it is an
// integer step number or the explicit null "end" sentinel, never an object.
func (StepTarget) JSONSchema() *jsonschema.Schema {
	return &jsonschema.Schema{
		OneOf: []*jsonschema.Schema{
			{Type: "integer"},
			{Type: "null"},
		},
	}
}

// GenerateJSONSchema reflects the Recipe type into a JSON Schema document
// (Draft 2020-12), the counterpart to the schema.json file the store skips
// by name when scanning the catalog directory.
func GenerateJSONSchema() ([]byte, error) {
	r := new(jsonschema.Reflector)
	r.DoNotReference = false

	s := r.Reflect(&Recipe{})
	s.ID = "https://github.com/vantos-systems/workorder-engine/schemas/recipe.json"
	s.Title = "Work Order Recipe"
	s.Description = "Schema for a declarative work-order mutation recipe document"

	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal recipe schema: %w", err)
	}
	return data, nil
}
