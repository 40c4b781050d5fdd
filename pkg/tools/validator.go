package tools

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strings"
)

// Validator checks tool arguments before they are sent to a server.
type Validator interface {
	Validate(args map[string]any, schema *JSONSchema) error
}

// DefaultValidator checks required fields and the JSON type of each known property.
// A property may allow several types through a "type" list or "anyOf"/"oneOf"
// alternatives. Optional properties sent as null count as absent.
type DefaultValidator struct{}

// Validate ensures that args satisfy schema.
func (DefaultValidator) Validate(args map[string]any, schema *JSONSchema) error {
	if schema == nil {
		return nil
	}

	required := make(map[string]bool, len(schema.Required))
	for _, field := range schema.Required {
		required[field] = true
		if v, ok := args[field]; !ok || (v == nil && !allowsNull(schema.Properties[field])) {
			return fmt.Errorf("missing required field: %s", field)
		}
	}

	keys := make([]string, 0, len(args))
	for key := range args {
		if _, known := schema.Properties[key]; known {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)

	for _, key := range keys {
		value := args[key]
		if value == nil && !required[key] {
			continue
		}
		allowed := allowedTypes(schema.Properties[key])
		if len(allowed) == 0 {
			continue
		}
		if !matchesAny(value, allowed) {
			return fmt.Errorf("field %s: expected %s but got %s", key, strings.Join(allowed, " or "), jsonTypeName(value))
		}
	}
	return nil
}

// allowedTypes collects the JSON types a property definition accepts.
func allowedTypes(def any) []string {
	m, ok := def.(map[string]any)
	if !ok {
		return nil
	}
	var out []string
	switch t := m["type"].(type) {
	case string:
		out = append(out, t)
	case []any:
		for _, v := range t {
			if s, ok := v.(string); ok {
				out = append(out, s)
			}
		}
	}
	for _, key := range []string{"anyOf", "oneOf"} {
		alternatives, _ := m[key].([]any)
		for _, alt := range alternatives {
			out = append(out, allowedTypes(alt)...)
		}
	}
	return out
}

func allowsNull(def any) bool {
	for _, t := range allowedTypes(def) {
		if t == "null" {
			return true
		}
	}
	return false
}

func matchesAny(value any, allowed []string) bool {
	for _, t := range allowed {
		if matchesType(value, t) {
			return true
		}
	}
	return false
}

func matchesType(value any, expected string) bool {
	switch expected {
	case "string":
		_, ok := value.(string)
		return ok
	case "number":
		return isNumber(value)
	case "integer":
		return isInteger(value)
	case "boolean":
		_, ok := value.(bool)
		return ok
	case "object":
		_, ok := value.(map[string]any)
		return ok
	case "array":
		_, ok := value.([]any)
		return ok
	case "null":
		return value == nil
	default:
		// Unknown keywords are left to the server.
		return true
	}
}

func jsonTypeName(value any) string {
	switch {
	case value == nil:
		return "null"
	case isNumber(value):
		return "number"
	}
	switch value.(type) {
	case string:
		return "string"
	case bool:
		return "boolean"
	case map[string]any:
		return "object"
	case []any:
		return "array"
	default:
		return fmt.Sprintf("%T", value)
	}
}

func isNumber(value any) bool {
	switch v := value.(type) {
	case float32, float64, int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return true
	case json.Number:
		_, err := v.Float64()
		return err == nil
	}
	return false
}

func isInteger(value any) bool {
	switch v := value.(type) {
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return true
	case float32:
		return math.Trunc(float64(v)) == float64(v)
	case float64:
		return math.Trunc(v) == v
	case json.Number:
		_, err := v.Int64()
		return err == nil
	}
	return false
}
