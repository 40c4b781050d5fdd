package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/minhyannv/mcp-agent-go/pkg/agent"
	configpkg "github.com/minhyannv/mcp-agent-go/pkg/config"
	"github.com/minhyannv/mcp-agent-go/pkg/llm"
	loggerpkg "github.com/minhyannv/mcp-agent-go/pkg/logger"
	"github.com/minhyannv/mcp-agent-go/pkg/mcp"
	"github.com/minhyannv/mcp-agent-go/pkg/prompt"
	"github.com/minhyannv/mcp-agent-go/pkg/tools"
)

// app wires the configured collaborators into a session.
type app struct {
	session  *agent.Session
	registry *tools.Registry
	tools    []tools.Schema
}

// newRegistry registers one MCP client per configured server.
func newRegistry(cfg configpkg.Config, logger loggerpkg.Logger) *tools.Registry {
	registry := tools.NewRegistry(
		tools.WithLogger(loggerpkg.Named(logger, "tools")),
		tools.WithVerbose(cfg.Verbose),
	)
	for _, name := range configpkg.ServerNames(cfg) {
		server := cfg.Servers[name]
		registry.AddServer(mcp.NewClient(mcp.ServerConfig{
			Name:      name,
			Transport: server.Transport,
			Command:   server.Command,
			Args:      server.Args,
			Env:       server.Env,
			URL:       server.URL,
		}, mcp.WithLogger(loggerpkg.Named(logger, "mcp."+name)), mcp.WithVerbose(cfg.Verbose)))
	}
	return registry
}

func loadPolicy(path string) (*prompt.Policy, error) {
	if path == "" {
		return prompt.Default(), nil
	}
	return prompt.LoadPolicy(path)
}

// newApp connects to every tool server, builds the system prompt and the loop.
func newApp(ctx context.Context, cfg configpkg.Config, logger loggerpkg.Logger, model agent.ModelClient, registry *tools.Registry) (*app, error) {
	if model == nil {
		client, err := llm.New(llm.Config{
			Provider: cfg.LLM.Provider,
			APIKey:   cfg.LLM.APIKey,
			BaseURL:  cfg.LLM.BaseURL,
			Model:    cfg.LLM.Model,
		}, llm.WithLogger(loggerpkg.Named(logger, "llm")), llm.WithVerbose(cfg.Verbose))
		if err != nil {
			return nil, fmt.Errorf("model client: %w", err)
		}
		model = client
	}

	policy, err := loadPolicy(cfg.PolicyFile)
	if err != nil {
		return nil, fmt.Errorf("load policy: %w", err)
	}

	schemas, err := registry.ListTools(ctx)
	if err != nil {
		return nil, fmt.Errorf("discover tools: %w", err)
	}
	if len(schemas) == 0 {
		return nil, errors.New("no tools were discovered on the configured servers")
	}
	loggerpkg.Info(logger, "tools discovered", map[string]any{"count": len(schemas)})

	loop, err := agent.New(model, registry,
		agent.WithLogger(loggerpkg.Named(logger, "agent")),
		agent.WithVerbose(cfg.Verbose),
		agent.WithMaxTurns(cfg.MaxTurns),
		agent.WithModelTimeout(cfg.ModelTimeout),
		agent.WithToolTimeout(cfg.ToolTimeout),
		agent.WithToolConcurrency(cfg.ToolConcurrency),
	)
	if err != nil {
		return nil, err
	}
	session, err := agent.NewSession(loop, prompt.BuildSystemPrompt(policy, schemas))
	if err != nil {
		return nil, err
	}
	return &app{session: session, registry: registry, tools: schemas}, nil
}
