package tools

import (
	"errors"
	"fmt"
	"slices"
)

// ArgumentError reports a tool call whose arguments do not fit the schema.
// The message is fed back to the model, so it names the offending field.
type ArgumentError struct {
	Tool   string
	Field  string
	Reason string
}

func (e *ArgumentError) Error() string {
	return fmt.Sprintf("%s: %s %s", e.Tool, e.Field, e.Reason)
}

// ValidateCall checks that name is registered and args match its schema.
func ValidateCall(reg *Registry, name string, args map[string]interface{}) error {
	if reg == nil {
		return errors.New("tool registry unavailable")
	}
	schema, ok := reg.Schema(name)
	if !ok {
		return fmt.Errorf("unknown tool %q", name)
	}
	return validateAgainstSchema(schema, args)
}

func validateAgainstSchema(schema Schema, args map[string]interface{}) error {
	for _, field := range schema.Parameters {
		val, exists := args[field.Name]
		if !exists || val == nil {
			if field.Required {
				return &ArgumentError{Tool: schema.Name, Field: field.Name, Reason: "is required"}
			}
			continue
		}
		if !hasType(val, field.Type) {
			return &ArgumentError{Tool: schema.Name, Field: field.Name, Reason: "must be " + field.Type}
		}
		if len(field.Enum) > 0 {
			if s, _ := val.(string); !slices.Contains(field.Enum, s) {
				return &ArgumentError{Tool: schema.Name, Field: field.Name, Reason: fmt.Sprintf("must be one of %v", field.Enum)}
			}
		}
	}
	return nil
}

// hasType matches JSON-decoded values against JSON schema type names.
func hasType(val interface{}, typ string) bool {
	switch typ {
	case "string":
		_, ok := val.(string)
		return ok
	case "boolean":
		_, ok := val.(bool)
		return ok
	case "number":
		_, ok := val.(float64)
		return ok
	case "integer":
		f, ok := val.(float64)
		return ok && f == float64(int64(f))
	default:
		return true
	}
}
