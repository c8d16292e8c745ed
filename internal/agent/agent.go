package agent

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/OSchengdu/swissK-agent/internal/config"
	"github.com/OSchengdu/swissK-agent/internal/llm"
	"github.com/OSchengdu/swissK-agent/internal/task"
	"github.com/OSchengdu/swissK-agent/internal/tools"
)

// ErrMaxSteps is reported when the tool loop does not converge.
var ErrMaxSteps = errors.New("agent exceeded max steps")

// Agent runs a bounded tool-calling loop against a chat provider and
// resolves every prompt to a single string.
type Agent struct {
	registry *llm.Registry
	tools    *tools.Registry
	cfg      config.AgentConfig
	logger   *zap.Logger
}

// New creates a new Agent. A nil tool registry disables tool calling.
func New(registry *llm.Registry, toolRegistry *tools.Registry, cfg config.AgentConfig, logger *zap.Logger) *Agent {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Agent{
		registry: registry,
		tools:    toolRegistry,
		cfg:      cfg,
		logger:   logger,
	}
}

// Run returns the final answer, or an "Error: ..." string on failure.
func (a *Agent) Run(ctx context.Context, prompt string) string {
	out, err := a.Execute(ctx, prompt)
	if err != nil {
		return task.ErrorPrefix + err.Error()
	}
	return out
}

// Execute runs the loop and reports failures as errors.
func (a *Agent) Execute(ctx context.Context, prompt string) (string, error) {
	if strings.TrimSpace(prompt) == "" {
		return "", fmt.Errorf("prompt is required")
	}
	if a.registry == nil {
		return "", fmt.Errorf("agent unavailable")
	}

	provider, route, err := a.registry.Resolve("")
	if err != nil {
		return "", err
	}

	messages := []llm.ChatMessage{
		{Role: llm.RoleSystem, Content: buildSystemPrompt(a.cfg, a.tools)},
		{Role: llm.RoleUser, Content: prompt},
	}

	var specs []llm.ToolSpec
	if a.tools != nil {
		specs = a.tools.Specs()
	}

	var (
		lastContent string
		usage       llm.Usage
	)
	for step := 1; step <= a.MaxSteps(); step++ {
		resp, err := provider.Chat(ctx, llm.ChatRequest{
			Model:       route.Model,
			Messages:    messages,
			Tools:       specs,
			Temperature: pickTemperature(a.cfg.Temperature, route.Temperature),
		})
		if err != nil {
			return "", err
		}

		usage = usage.Add(resp.Usage)
		lastContent = strings.TrimSpace(resp.Message.Content)
		if !resp.Message.WantsTools() {
			a.logger.Debug("agent finished",
				zap.Int("step", step),
				zap.String("finish_reason", resp.FinishReason),
				zap.Int("total_tokens", usage.TotalTokens))
			return lastContent, nil
		}

		assistant := resp.Message
		assistant.Role = llm.RoleAssistant
		messages = append(messages, assistant)
		for _, call := range resp.Message.ToolCalls {
			messages = append(messages, a.invoke(ctx, step, call))
		}
	}

	if lastContent != "" {
		return lastContent, nil
	}
	return "", ErrMaxSteps
}

// invoke runs one tool call and wraps its observation as a tool message.
func (a *Agent) invoke(ctx context.Context, step int, call llm.ToolCall) llm.ChatMessage {
	var (
		output string
		err    error
	)
	if a.tools == nil {
		err = fmt.Errorf("tools are disabled")
	} else {
		output, err = a.tools.Execute(ctx, call.Function.Name, call.Function.Arguments)
	}
	if err != nil {
		a.logger.Info("tool call failed", zap.Int("step", step), zap.String("tool", call.Function.Name), zap.Error(err))
		output = "error: " + err.Error()
	} else {
		a.logger.Debug("tool call", zap.Int("step", step), zap.String("tool", call.Function.Name))
	}
	return llm.ChatMessage{
		Role:       llm.RoleTool,
		Name:       call.Function.Name,
		Content:    truncateForPrompt(output, 4000),
		ToolCallID: call.ID,
	}
}

// MaxSteps returns configured maximum steps (>0).
func (a *Agent) MaxSteps() int {
	if a.cfg.MaxSteps > 0 {
		return a.cfg.MaxSteps
	}
	return 1
}

func pickTemperature(agentTemp float64, routeTemp float64) float64 {
	if agentTemp > 0 {
		return agentTemp
	}
	if routeTemp > 0 {
		return routeTemp
	}
	return 0.2
}
