package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/OSchengdu/swissK-agent/internal/llm"
)

// Tool is a callable the agent may invoke.
type Tool interface {
	Schema() Schema
	Run(ctx context.Context, args map[string]interface{}) (string, error)
}

// Registry exposes the tools available to the agent.
type Registry struct {
	tools map[string]Tool
}

// NewRegistry builds a registry from instantiated tools.
func NewRegistry(tools ...Tool) *Registry {
	r := &Registry{tools: make(map[string]Tool, len(tools))}
	for _, t := range tools {
		r.tools[t.Schema().Name] = t
	}
	return r
}

// Default returns the built-in tool set.
func Default() *Registry {
	return NewRegistry(Calculator{}, Clock{})
}

// Schemas returns descriptors for every registered tool, sorted by name.
func (r *Registry) Schemas() []Schema {
	out := make([]Schema, 0, len(r.tools))
	for _, t := range r.tools {
		out = append(out, t.Schema())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Schema returns schema for a given tool name if present.
func (r *Registry) Schema(name string) (Schema, bool) {
	t, ok := r.tools[name]
	if !ok {
		return Schema{}, false
	}
	return t.Schema(), true
}

// Specs converts the schemas into chat tool specs.
func (r *Registry) Specs() []llm.ToolSpec {
	schemas := r.Schemas()
	out := make([]llm.ToolSpec, 0, len(schemas))
	for _, s := range schemas {
		out = append(out, s.ToolSpec())
	}
	return out
}

// Execute validates and runs a tool call with JSON-encoded arguments.
func (r *Registry) Execute(ctx context.Context, name string, rawArgs json.RawMessage) (string, error) {
	args := map[string]interface{}{}
	if len(rawArgs) > 0 && string(rawArgs) != "null" {
		if err := json.Unmarshal(rawArgs, &args); err != nil {
			return "", fmt.Errorf("decode arguments for %s: %w", name, err)
		}
	}
	if err := ValidateCall(r, name, args); err != nil {
		return "", err
	}
	return r.tools[name].Run(ctx, args)
}
