// Package llm abstracts text generation so agents work the same whether
// they talk to the Anthropic API or run fully offline. The offline client
// produces deterministic prose from heuristic prompt analysis, which keeps
// the whole pipeline testable without credentials.
package llm

import (
	"context"
	"os"
)

// Request is a single text generation call.
type Request struct {
	System    string
	Prompt    string
	MaxTokens int64
}

// Client generates text for agent prompts.
type Client interface {
	// GenerateText returns prose for the request.
	GenerateText(ctx context.Context, req Request) (string, error)
	// Name identifies the backing implementation for logging.
	Name() string
}

// FromEnvironment returns an Anthropic-backed client when ANTHROPIC_API_KEY
// is set and the deterministic stub otherwise.
func FromEnvironment() Client {
	if os.Getenv("ANTHROPIC_API_KEY") != "" {
		c, err := NewAnthropicClient(AnthropicConfig{})
		if err == nil {
			return c
		}
	}
	return NewStubClient()
}
