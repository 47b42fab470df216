package registry

import "fmt"

// validateArguments checks args against a JSON-schema-shaped declaration:
// required field presence and scalar property types. Anything deeper is the
// handler's business.
func validateArguments(schema map[string]any, args map[string]any) error {
	if len(schema) == 0 {
		return nil
	}

	required, err := parseRequiredFields(schema["required"])
	if err != nil {
		return err
	}
	for _, field := range required {
		if _, ok := args[field]; !ok {
			return fmt.Errorf("missing required argument %q", field)
		}
	}

	properties, ok := asStringAnyMap(schema["properties"])
	if !ok {
		return nil
	}
	for key, value := range args {
		propertySchema, defined := asStringAnyMap(properties[key])
		if !defined {
			continue
		}
		expectedType, ok := propertySchema["type"].(string)
		if !ok {
			continue
		}
		if !matchesArgumentType(expectedType, value) {
			return fmt.Errorf("argument %q must be %q", key, expectedType)
		}
	}
	return nil
}

func parseRequiredFields(raw any) ([]string, error) {
	if raw == nil {
		return nil, nil
	}
	switch typed := raw.(type) {
	case []string:
		return typed, nil
	case []any:
		out := make([]string, 0, len(typed))
		for _, entry := range typed {
			field, ok := entry.(string)
			if !ok {
				return nil, fmt.Errorf("schema required entry %v is not a string", entry)
			}
			out = append(out, field)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("schema required must be a string list, got %T", raw)
	}
}

func asStringAnyMap(raw any) (map[string]any, bool) {
	typed, ok := raw.(map[string]any)
	return typed, ok
}

func matchesArgumentType(expected string, value any) bool {
	switch expected {
	case "string":
		_, ok := value.(string)
		return ok
	case "number", "integer":
		switch value.(type) {
		case float64, float32, int, int32, int64:
			return true
		default:
			return false
		}
	case "boolean":
		_, ok := value.(bool)
		return ok
	case "object":
		_, ok := value.(map[string]any)
		return ok
	case "array":
		_, ok := value.([]any)
		return ok
	default:
		return true
	}
}
