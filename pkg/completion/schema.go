package completion

import (
	"encoding/json"
	"fmt"
)

// Property defines a single field of a response schema.
type Property struct {
	Type        string `json:"type"` // string, number, boolean, array, object
	Description string `json:"description,omitempty"`
}

// Schema describes the expected JSON shape of a model response. It is
// serialized into the prompt as a JSON Schema object.
type Schema struct {
	Name       string              `json:"name"`
	Properties map[string]Property `json:"properties"`
	Required   []string            `json:"required,omitempty"`
}

// jsonSchema is the wire form embedded in the prompt instruction.
type jsonSchema struct {
	Type                 string              `json:"type"`
	Properties           map[string]Property `json:"properties"`
	Required             []string            `json:"required,omitempty"`
	AdditionalProperties bool                `json:"additionalProperties"`
}

// MarshalJSON renders the schema as a JSON Schema object definition.
func (s Schema) MarshalJSON() ([]byte, error) {
	return json.Marshal(jsonSchema{
		Type:       "object",
		Properties: s.Properties,
		Required:   s.Required,
	})
}

// Validate checks data for required fields and per-field type conformance.
func (s Schema) Validate(data map[string]any) error {
	for _, required := range s.Required {
		if _, exists := data[required]; !exists {
			return fmt.Errorf("required field %q is missing", required)
		}
	}

	for fieldName, prop := range s.Properties {
		value, exists := data[fieldName]
		if !exists || value == nil {
			continue
		}

		if !isValidType(value, prop.Type) {
			return fmt.Errorf("field %q: expected type %s, got %T", fieldName, prop.Type, value)
		}
	}

	return nil
}

func isValidType(value any, expected string) bool {
	switch expected {
	case "string":
		_, ok := value.(string)
		return ok
	case "number":
		_, ok := value.(float64)
		return ok
	case "boolean":
		_, ok := value.(bool)
		return ok
	case "array":
		_, ok := value.([]any)
		return ok
	case "object":
		_, ok := value.(map[string]any)
		return ok
	default:
		return false
	}
}
