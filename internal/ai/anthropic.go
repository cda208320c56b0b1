package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/weftlabs/weft/internal/audit"
	"github.com/weftlabs/weft/internal/config"
	"github.com/weftlabs/weft/internal/errors"
	"github.com/weftlabs/weft/internal/logging"
)

const (
	defaultBaseURL   = "https://api.anthropic.com/v1"
	anthropicVersion = "2023-06-01"
)

// AnthropicBackend talks to the Anthropic messages API.
type AnthropicBackend struct {
	apiKey     string
	baseURL    string
	model      string
	maxTokens  int
	maxRetries int
	client     *http.Client
	logger     *logging.Logger
}

// Anthropic API request/response structures
type anthropicRequest struct {
	Model     string    `json:"model"`
	Messages  []Message `json:"messages"`
	MaxTokens int       `json:"max_tokens"`
}

type anthropicResponse struct {
	Content []anthropicContent `json:"content"`
	Error   *anthropicError    `json:"error,omitempty"`
}

type anthropicContent struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type anthropicError struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// NewAnthropicBackend creates a backend from the AI configuration.
func NewAnthropicBackend(cfg *config.AIConfig, logger *logging.Logger) *AnthropicBackend {
	if logger == nil {
		logger = logging.Discard()
	}
	return &AnthropicBackend{
		apiKey:     cfg.APIKey,
		baseURL:    defaultBaseURL,
		model:      cfg.Model,
		maxTokens:  cfg.MaxTokens,
		maxRetries: cfg.MaxRetries,
		client:     &http.Client{Timeout: cfg.RequestTimeout()},
		logger:     logger,
	}
}

// ModelInfo implements Backend.
func (b *AnthropicBackend) ModelInfo() ModelInfo {
	return ModelInfo{Provider: "anthropic", Model: b.model}
}

// Generate sends the prompt plus history to the messages API. Transient
// failures (rate limits, server errors, timeouts) are retried with
// exponential backoff; other API errors fail immediately. Only the
// prompt hash is logged, never the prompt itself.
func (b *AnthropicBackend) Generate(ctx context.Context, prompt string, history []Message) (string, error) {
	messages := make([]Message, 0, len(history)+1)
	messages = append(messages, history...)
	messages = append(messages, Message{Role: "user", Content: prompt})

	b.logger.Debug("generating",
		"model", b.model,
		"prompt_hash", audit.Hash(prompt),
		"history_len", len(history))

	var lastErr error
	for attempt := 0; attempt <= b.maxRetries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(1<<(attempt-1)) * time.Second
			b.logger.Warn("retrying generation", "attempt", attempt, "backoff", backoff.String())
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return "", ctx.Err()
			}
		}

		text, err := b.generateOnce(ctx, messages)
		if err == nil {
			return text, nil
		}
		lastErr = err

		var backendErr *errors.BackendError
		if errors.As(err, &backendErr) && !backendErr.Retryable() {
			return "", err
		}
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
	}

	return "", errors.NewBackendError("max retries exceeded", errors.Join(errors.ErrMaxRetriesExceeded, lastErr))
}

func (b *AnthropicBackend) generateOnce(ctx context.Context, messages []Message) (string, error) {
	reqBody, err := json.Marshal(anthropicRequest{
		Model:     b.model,
		Messages:  messages,
		MaxTokens: b.maxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, b.baseURL+"/messages", bytes.NewReader(reqBody))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-api-key", b.apiKey)
	httpReq.Header.Set("anthropic-version", anthropicVersion)

	httpResp, err := b.client.Do(httpReq)
	if err != nil {
		// Transport errors and timeouts are retryable.
		return "", errors.NewBackendError("request failed", err)
	}
	defer httpResp.Body.Close()

	respBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return "", errors.NewBackendError("read response", err)
	}

	if httpResp.StatusCode != http.StatusOK {
		var apiResp anthropicResponse
		msg := fmt.Sprintf("API returned status %d", httpResp.StatusCode)
		backendErr := errors.NewBackendError(msg, errors.ErrBackendUnavailable).
			WithStatusCode(httpResp.StatusCode)
		if json.Unmarshal(respBody, &apiResp) == nil && apiResp.Error != nil {
			backendErr = errors.NewBackendError(apiResp.Error.Message, errors.ErrBackendUnavailable).
				WithStatusCode(httpResp.StatusCode).
				WithType(apiResp.Error.Type)
		}
		return "", backendErr
	}

	var apiResp anthropicResponse
	if err := json.Unmarshal(respBody, &apiResp); err != nil {
		return "", errors.NewBackendError("parse response", err)
	}

	var text string
	for _, content := range apiResp.Content {
		if content.Type == "text" {
			text += content.Text
		}
	}
	if text == "" {
		return "", errors.NewBackendError("empty response content", nil)
	}
	return text, nil
}
