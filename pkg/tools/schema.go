package tools

import (
	"encoding/json"
	"fmt"
)

// Schema describes one callable tool as advertised to the model.
type Schema struct {
	Name        string
	Description string
	// Parameters is the JSON Schema object of the tool arguments.
	Parameters map[string]any
	// Server is the name of the server that provides the tool.
	Server string
}

// JSONSchema captures the subset of JSON Schema used for argument validation.
type JSONSchema struct {
	Type       string         `json:"type"`
	Properties map[string]any `json:"properties"`
	Required   []string       `json:"required"`
}

// ParseJSONSchema extracts the validated subset from a free-form schema map.
func ParseJSONSchema(params map[string]any) (*JSONSchema, error) {
	if len(params) == 0 {
		return nil, nil
	}
	raw, err := json.Marshal(params)
	if err != nil {
		return nil, fmt.Errorf("encode schema: %w", err)
	}
	var schema JSONSchema
	if err := json.Unmarshal(raw, &schema); err != nil {
		return nil, fmt.Errorf("decode schema: %w", err)
	}
	return &schema, nil
}
