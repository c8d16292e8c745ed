package configbuilder

import (
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/OSchengdu/swissK-agent/internal/agent"
	"github.com/OSchengdu/swissK-agent/internal/config"
	"github.com/OSchengdu/swissK-agent/internal/llm"
	llmollama "github.com/OSchengdu/swissK-agent/internal/llm/providers/ollama"
	llmopenai "github.com/OSchengdu/swissK-agent/internal/llm/providers/openai"
	"github.com/OSchengdu/swissK-agent/internal/observability"
	"github.com/OSchengdu/swissK-agent/internal/router"
	"github.com/OSchengdu/swissK-agent/internal/tools"
	"github.com/OSchengdu/swissK-agent/internal/worker"
)

// AgentModel is the logical model name the agent resolves.
const AgentModel = "agent"

// NewGenerator builds the streaming generation client for the task worker.
func NewGenerator(cfg *config.Config, logger *zap.Logger) *llmollama.Provider {
	return llmollama.NewProvider("ollama", cfg.Endpoint.BaseURL, cfg.Endpoint.Timeout,
		llmollama.WithProxy(cfg.Endpoint.ProxyURL),
		llmollama.WithLogger(logger),
	)
}

// BuildRegistryFromConfig constructs a registry holding the agent's chat provider.
func BuildRegistryFromConfig(cfg *config.Config, logger *zap.Logger) (*llm.Registry, error) {
	reg := llm.NewRegistry()

	p, err := buildProvider(cfg, logger)
	if err != nil {
		return nil, err
	}
	reg.RegisterProvider(p.Name(), p)
	reg.RegisterModel(AgentModel, llm.ModelRoute{
		Provider:    p.Name(),
		Model:       cfg.Agent.Model,
		Temperature: cfg.Agent.Temperature,
	}, true)

	if _, _, err := reg.Resolve(""); err != nil {
		return nil, err
	}

	return reg, nil
}

func buildProvider(cfg *config.Config, logger *zap.Logger) (llm.Provider, error) {
	switch kind := strings.ToLower(strings.TrimSpace(cfg.Agent.Provider)); kind {
	case "openai":
		return llmopenai.NewProvider(kind, cfg.AgentBaseURL(), cfg.Agent.APIKey, cfg.Agent.Timeout), nil
	case "ollama":
		return llmollama.NewProvider(kind, cfg.AgentBaseURL(), cfg.Agent.Timeout,
			llmollama.WithProxy(cfg.Endpoint.ProxyURL),
			llmollama.WithLogger(logger),
		), nil
	default:
		return nil, fmt.Errorf("unknown agent provider type %q", cfg.Agent.Provider)
	}
}

// WorkerOptions wires router, generator and agent from cfg for worker.Start.
func WorkerOptions(cfg *config.Config, logger *zap.Logger, metrics *observability.Metrics) (worker.Options, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	registry, err := BuildRegistryFromConfig(cfg, logger)
	if err != nil {
		return worker.Options{}, fmt.Errorf("build registry: %w", err)
	}

	return worker.Options{
		Router: router.New(router.Models{
			Text:  cfg.Models.Text,
			Image: cfg.Models.Image,
			Rag:   cfg.Models.Rag,
		}),
		Generator: NewGenerator(cfg, logger),
		Agent:     agent.New(registry, tools.Default(), cfg.Agent, logger),
		Metrics:   metrics,
		Logger:    logger,
	}, nil
}
