package main

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/haasonsaas/conductor/internal/agent"
	"github.com/haasonsaas/conductor/internal/agent/providers"
	"github.com/haasonsaas/conductor/internal/chat"
	"github.com/haasonsaas/conductor/internal/config"
	"github.com/haasonsaas/conductor/internal/observability"
	"github.com/haasonsaas/conductor/internal/runs"
	"github.com/haasonsaas/conductor/internal/steps"
	"github.com/haasonsaas/conductor/internal/storage"
	"github.com/haasonsaas/conductor/internal/tools/assets"
	"github.com/haasonsaas/conductor/internal/tools/memorytool"
	"github.com/haasonsaas/conductor/internal/tools/subagent"
	"github.com/haasonsaas/conductor/internal/tools/websearch"
	"github.com/haasonsaas/conductor/internal/workflow"
)

// app holds the assembled service graph.
type app struct {
	stores    storage.StoreSet
	loop      *agent.Loop
	chat      *chat.Service
	recorder  *runs.Recorder
	executor  *steps.Executor
	workflows *workflow.Registry
	engine    *workflow.Engine
}

// buildApp wires storage, provider, tools, services, and workflows
// from config. The caller owns stores.Close. A nil metrics disables
// loop instrumentation.
func buildApp(cfg *config.Config, metrics *observability.Metrics, logger *slog.Logger) (*app, error) {
	stores, err := openStores(cfg)
	if err != nil {
		return nil, err
	}

	provider, defaultModel, err := buildProvider(cfg.LLM)
	if err != nil {
		stores.Close()
		return nil, err
	}

	registry := agent.NewToolRegistry()
	registry.Register(memorytool.New(stores.Memories))
	registry.Register(assets.New(stores.Assets))
	if cfg.Tools.WebSearch.Enabled {
		registry.Register(websearch.New(&websearch.Config{
			SearXNGURL: cfg.Tools.WebSearch.SearXNGURL,
			CacheTTL:   cfg.Tools.WebSearch.CacheTTL,
		}))
	}
	if cfg.Tools.SubAgent.Enabled {
		registry.Register(subagent.New(provider, registry, cfg.Tools.SubAgent.SystemPrompt))
	}

	loop := agent.NewLoop(provider, registry, &agent.LoopConfig{
		MaxIterations: cfg.Agent.MaxIterations,
		MaxTokens:     cfg.Agent.MaxTokens,
	})
	if defaultModel != "" {
		loop.SetDefaultModel(defaultModel)
	}
	if metrics != nil {
		loop.SetObserver(metrics)
	}

	executor := steps.NewExecutor(loop, logger)

	workflows := workflow.NewRegistry()
	for _, g := range builtinWorkflows(executor) {
		if err := workflows.Register(g); err != nil {
			stores.Close()
			return nil, fmt.Errorf("register workflow: %w", err)
		}
	}
	engine := workflow.NewEngine(workflows, stores.Instances, logger)
	if metrics != nil {
		engine.SetObserver(metrics)
	}

	return &app{
		stores:    stores,
		loop:      loop,
		chat:      chat.NewService(loop, stores.Conversations, cfg.Agent.SystemPrompt, logger),
		recorder:  runs.NewRecorder(loop, stores.Runs, cfg.Agent.SystemPrompt, logger),
		executor:  executor,
		workflows: workflows,
		engine:    engine,
	}, nil
}

func openStores(cfg *config.Config) (storage.StoreSet, error) {
	if cfg.Database.Path == "" {
		return storage.NewMemoryStoreSet(), nil
	}
	return storage.OpenSQLite(cfg.Database.Path)
}

// buildProvider constructs the configured default provider. The
// provider's configured default model is returned so the loop can
// adopt it. An unconfigured provider falls back to its conventional
// API key environment variable.
func buildProvider(cfg config.LLMConfig) (agent.LLMProvider, string, error) {
	name := cfg.DefaultProvider
	pc, ok := cfg.Providers[name]
	if !ok {
		switch strings.ToLower(name) {
		case "anthropic":
			pc.APIKey = os.Getenv("ANTHROPIC_API_KEY")
		case "openai":
			pc.APIKey = os.Getenv("OPENAI_API_KEY")
		}
		if pc.APIKey == "" {
			return nil, "", fmt.Errorf("llm provider %q is not configured and no API key found in the environment", name)
		}
	}

	switch strings.ToLower(name) {
	case "anthropic":
		p, err := providers.NewAnthropicProvider(providers.AnthropicConfig{
			APIKey:       pc.APIKey,
			BaseURL:      pc.BaseURL,
			MaxRetries:   pc.MaxRetries,
			RetryDelay:   pc.RetryDelay,
			DefaultModel: pc.DefaultModel,
		})
		if err != nil {
			return nil, "", err
		}
		return p, pc.DefaultModel, nil
	case "openai":
		p, err := providers.NewOpenAIProvider(providers.OpenAIConfig{
			APIKey:       pc.APIKey,
			BaseURL:      pc.BaseURL,
			MaxRetries:   pc.MaxRetries,
			RetryDelay:   pc.RetryDelay,
			DefaultModel: pc.DefaultModel,
		})
		if err != nil {
			return nil, "", err
		}
		return p, pc.DefaultModel, nil
	default:
		return nil, "", fmt.Errorf("unknown llm provider %q", name)
	}
}
