package agent

import (
	"fmt"
	"strings"

	"github.com/OSchengdu/swissK-agent/internal/config"
	"github.com/OSchengdu/swissK-agent/internal/tools"
)

const defaultSystemPrompt = "You are an agent."

// buildSystemPrompt returns the configured system prompt plus a tool summary.
func buildSystemPrompt(cfg config.AgentConfig, reg *tools.Registry) string {
	base := strings.TrimSpace(cfg.SystemPrompt)
	if base == "" {
		base = defaultSystemPrompt
	}
	if reg == nil {
		return base
	}
	schemas := reg.Schemas()
	if len(schemas) == 0 {
		return base
	}

	var b strings.Builder
	b.WriteString(base)
	b.WriteString("\n\nThink, call a tool when it helps, observe the result, then answer. Available tools:\n")
	for _, s := range schemas {
		fmt.Fprintf(&b, "- %s: %s\n", s.Name, s.Description)
	}
	return strings.TrimSpace(b.String())
}

func truncateForPrompt(text string, limit int) string {
	if limit <= 0 || len(text) <= limit {
		return text
	}
	return text[:limit] + "... [truncated]"
}
