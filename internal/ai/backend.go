// Package ai provides the pluggable text-generation capability agent
// workers call to process prompts.
package ai

import (
	"context"
	"fmt"

	"github.com/weftlabs/weft/internal/config"
	"github.com/weftlabs/weft/internal/errors"
	"github.com/weftlabs/weft/internal/logging"
)

// Message is one turn of conversation history passed to a backend.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ModelInfo identifies the model a backend talks to.
type ModelInfo struct {
	Provider string
	Model    string
}

// Backend generates text from a prompt and optional conversation
// history. Implementations are synchronous and may take seconds to low
// minutes; callers bound them with the request context.
type Backend interface {
	Generate(ctx context.Context, prompt string, history []Message) (string, error)
	ModelInfo() ModelInfo
}

// NewFromConfig builds the backend selected by cfg.
func NewFromConfig(cfg *config.AIConfig, logger *logging.Logger) (Backend, error) {
	switch cfg.Backend {
	case "anthropic":
		if cfg.APIKey == "" {
			return nil, errors.NewValidationError("anthropic backend requires an API key").
				WithField("ai.api_key")
		}
		return NewAnthropicBackend(cfg, logger), nil
	default:
		return nil, errors.NewValidationError(fmt.Sprintf("unknown backend %q", cfg.Backend)).
			WithField("ai.backend").
			WithValue(cfg.Backend)
	}
}
