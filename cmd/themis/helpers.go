package main

import (
	"fmt"
	"os"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/fatih/color"
	"gopkg.in/yaml.v3"

	"github.com/themis-legal/themis/internal/agents"
	"github.com/themis-legal/themis/internal/breaker"
	"github.com/themis-legal/themis/internal/config"
	"github.com/themis-legal/themis/internal/llm"
	"github.com/themis-legal/themis/internal/orchestrator"
	"github.com/themis-legal/themis/internal/retry"
	"github.com/themis-legal/themis/internal/state"
	"github.com/themis-legal/themis/pkg/models"
)

// loadMatter reads a matter description from a YAML or JSON file. JSON
// parses as a YAML subset, so one loader covers both.
func loadMatter(path string) (models.Matter, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading matter file: %w", err)
	}

	matter := models.Matter{}
	if err := yaml.Unmarshal(raw, &matter); err != nil {
		return nil, fmt.Errorf("parsing matter file %s: %w", path, err)
	}
	return matter, nil
}

// buildService wires an orchestrator service from the loaded config.
func buildService(cfg *config.Config) (*orchestrator.Service, error) {
	var repository state.Repository
	if cfg.Storage.Path != "" {
		repo, err := state.OpenSQLite(cfg.Storage.Path)
		if err != nil {
			return nil, fmt.Errorf("opening state database: %w", err)
		}
		repository = repo
	} else {
		repository = state.NewMemoryRepository()
	}

	var client llm.Client
	if key, err := config.GetAPIKey(cfg); err == nil {
		anthropicClient, err := llm.NewAnthropicClient(llm.AnthropicConfig{
			APIKey: key,
			Model:  anthropic.Model(cfg.Anthropic.Model),
		})
		if err != nil {
			return nil, fmt.Errorf("creating Anthropic client: %w", err)
		}
		client = anthropicClient
	} else {
		client = llm.NewStubClient()
	}

	retryPolicy := retry.DefaultAgentPolicy()
	if cfg.Retry.MaxAttempts > 0 {
		retryPolicy.MaxAttempts = cfg.Retry.MaxAttempts
	}
	if cfg.Retry.BaseDelay > 0 {
		retryPolicy.BaseDelay = cfg.Retry.BaseDelay
	}
	if cfg.Retry.MaxDelay > 0 {
		retryPolicy.MaxDelay = cfg.Retry.MaxDelay
	}

	breakerConfig := breaker.DefaultConfig()
	if cfg.Breaker.FailureThreshold > 0 {
		breakerConfig.FailureThreshold = cfg.Breaker.FailureThreshold
	}
	if cfg.Breaker.SuccessThreshold > 0 {
		breakerConfig.SuccessThreshold = cfg.Breaker.SuccessThreshold
	}
	if cfg.Breaker.Timeout > 0 {
		breakerConfig.Timeout = cfg.Breaker.Timeout
	}

	return orchestrator.NewService(orchestrator.Options{
		Agents:      agents.DefaultRegistry(client),
		Repository:  repository,
		RetryPolicy: &retryPolicy,
		Breakers:    breaker.NewRegistry(breakerConfig),
		CacheTTL:    cfg.Storage.CacheTTL,
	}), nil
}

// loadConfigOrExit loads the configuration, exiting on failure.
func loadConfigOrExit() *config.Config {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}
	return cfg
}

func printStatus(symbol, message string, colorAttr color.Attribute) {
	c := color.New(colorAttr)
	fmt.Printf("%s %s\n", c.Sprint(symbol), message)
}

// statusColor picks a display color for an execution or step status.
func statusColor(status models.Status) color.Attribute {
	switch status {
	case models.StatusComplete:
		return color.FgGreen
	case models.StatusFailed:
		return color.FgRed
	case models.StatusAttentionRequired:
		return color.FgYellow
	default:
		return color.FgCyan
	}
}
