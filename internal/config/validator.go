package config

import (
	"fmt"
	"slices"
	"strings"
)

// ValidationError represents a single validation failure
type ValidationError struct {
	Field   string // The config field path (e.g., "runtime.poll_interval_seconds")
	Value   any    // The invalid value
	Message string // Human-readable error description
}

// Error implements the error interface for ValidationError
func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s (got: %v)", e.Field, e.Message, e.Value)
}

// ValidationErrors is a collection of validation errors
type ValidationErrors []ValidationError

// Error implements the error interface for ValidationErrors
func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}
	if len(e) == 1 {
		return e[0].Error()
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%d validation errors:\n", len(e)))
	for i, err := range e {
		sb.WriteString(fmt.Sprintf("  %d. %s\n", i+1, err.Error()))
	}
	return sb.String()
}

// ValidLogLevels returns the list of valid log levels
func ValidLogLevels() []string {
	return []string{"debug", "info", "warn", "error"}
}

// ValidBackends returns the list of supported AI backends
func ValidBackends() []string {
	return []string{"anthropic"}
}

// Validate checks the Config for invalid values and returns all validation errors found
func (c *Config) Validate() []ValidationError {
	var errors []ValidationError

	if c.Paths.CodeRepo == "" {
		errors = append(errors, ValidationError{
			Field:   "paths.code_repo",
			Value:   c.Paths.CodeRepo,
			Message: "must not be empty",
		})
	}
	if c.Paths.AIHistory == "" {
		errors = append(errors, ValidationError{
			Field:   "paths.ai_history",
			Value:   c.Paths.AIHistory,
			Message: "must not be empty",
		})
	}

	if !slices.Contains(ValidBackends(), c.AI.Backend) {
		errors = append(errors, ValidationError{
			Field:   "ai.backend",
			Value:   c.AI.Backend,
			Message: fmt.Sprintf("must be one of: %s", strings.Join(ValidBackends(), ", ")),
		})
	}
	if c.AI.Model == "" {
		errors = append(errors, ValidationError{
			Field:   "ai.model",
			Value:   c.AI.Model,
			Message: "must not be empty",
		})
	}
	if c.AI.MaxTokens <= 0 {
		errors = append(errors, ValidationError{
			Field:   "ai.max_tokens",
			Value:   c.AI.MaxTokens,
			Message: "must be positive",
		})
	}
	if c.AI.MaxRetries < 0 {
		errors = append(errors, ValidationError{
			Field:   "ai.max_retries",
			Value:   c.AI.MaxRetries,
			Message: "must not be negative",
		})
	}
	if c.AI.RequestTimeoutSeconds <= 0 {
		errors = append(errors, ValidationError{
			Field:   "ai.request_timeout_seconds",
			Value:   c.AI.RequestTimeoutSeconds,
			Message: "must be positive",
		})
	}

	if c.Runtime.PollIntervalSeconds <= 0 {
		errors = append(errors, ValidationError{
			Field:   "runtime.poll_interval_seconds",
			Value:   c.Runtime.PollIntervalSeconds,
			Message: "must be positive",
		})
	}
	if c.Runtime.ResultTimeoutSeconds <= 0 {
		errors = append(errors, ValidationError{
			Field:   "runtime.result_timeout_seconds",
			Value:   c.Runtime.ResultTimeoutSeconds,
			Message: "must be positive",
		})
	}
	if c.Runtime.GitConcurrency <= 0 {
		errors = append(errors, ValidationError{
			Field:   "runtime.git_concurrency",
			Value:   c.Runtime.GitConcurrency,
			Message: "must be positive",
		})
	}

	if !slices.Contains(ValidLogLevels(), c.Logging.Level) {
		errors = append(errors, ValidationError{
			Field:   "logging.level",
			Value:   c.Logging.Level,
			Message: fmt.Sprintf("must be one of: %s", strings.Join(ValidLogLevels(), ", ")),
		})
	}

	return errors
}
