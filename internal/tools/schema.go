package tools

import "github.com/OSchengdu/swissK-agent/internal/llm"

// Schema describes a tool for JSON schema/tool-calling.
type Schema struct {
	Name        string        `json:"name"`
	Description string        `json:"description"`
	Parameters  []SchemaField `json:"parameters"`
}

// SchemaField describes a single parameter.
type SchemaField struct {
	Name        string   `json:"name"`
	Type        string   `json:"type"`
	Description string   `json:"description"`
	Required    bool     `json:"required"`
	Enum        []string `json:"enum,omitempty"`
}

// ToolSpec renders the schema as a JSON-schema tool definition.
func (s Schema) ToolSpec() llm.ToolSpec {
	props := make(map[string]any, len(s.Parameters))
	required := make([]string, 0, len(s.Parameters))
	for _, f := range s.Parameters {
		prop := map[string]any{"type": f.Type}
		if f.Description != "" {
			prop["description"] = f.Description
		}
		if len(f.Enum) > 0 {
			prop["enum"] = f.Enum
		}
		props[f.Name] = prop
		if f.Required {
			required = append(required, f.Name)
		}
	}
	params := map[string]any{
		"type":       "object",
		"properties": props,
	}
	if len(required) > 0 {
		params["required"] = required
	}
	return llm.ToolSpec{Name: s.Name, Description: s.Description, Parameters: params}
}
