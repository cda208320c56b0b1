package config

import (
	"strings"
	"testing"
)

func TestValidateReportsAllErrors(t *testing.T) {
	cfg := &Config{
		Paths: PathsConfig{CodeRepo: "", AIHistory: ""},
		AI: AIConfig{
			Backend:               "openai",
			Model:                 "",
			MaxTokens:             0,
			MaxRetries:            -1,
			RequestTimeoutSeconds: 0,
		},
		Runtime: RuntimeConfig{
			PollIntervalSeconds:  0,
			ResultTimeoutSeconds: 0,
			GitConcurrency:       0,
		},
		Logging: LoggingConfig{Level: "verbose"},
	}

	errs := cfg.Validate()
	if len(errs) != 11 {
		t.Fatalf("Validate() returned %d errors, want 11:\n%v", len(errs), ValidationErrors(errs))
	}

	fields := make(map[string]bool)
	for _, e := range errs {
		fields[e.Field] = true
	}
	for _, field := range []string{
		"paths.code_repo",
		"paths.ai_history",
		"ai.backend",
		"ai.model",
		"ai.max_tokens",
		"ai.max_retries",
		"ai.request_timeout_seconds",
		"runtime.poll_interval_seconds",
		"runtime.result_timeout_seconds",
		"runtime.git_concurrency",
		"logging.level",
	} {
		if !fields[field] {
			t.Errorf("expected a validation error for %s", field)
		}
	}
}

func TestValidationErrorMessage(t *testing.T) {
	err := ValidationError{
		Field:   "ai.max_tokens",
		Value:   0,
		Message: "must be positive",
	}

	got := err.Error()
	if !strings.Contains(got, "ai.max_tokens") || !strings.Contains(got, "must be positive") {
		t.Errorf("Error() = %q, missing field or message", got)
	}
}

func TestValidationErrorsFormatting(t *testing.T) {
	var errs ValidationErrors
	if errs.Error() != "" {
		t.Error("empty ValidationErrors should format to empty string")
	}

	errs = append(errs, ValidationError{Field: "a", Message: "bad"})
	if strings.Contains(errs.Error(), "validation errors") {
		t.Error("single error should not use the multi-error header")
	}

	errs = append(errs, ValidationError{Field: "b", Message: "worse"})
	got := errs.Error()
	if !strings.Contains(got, "2 validation errors") {
		t.Errorf("multi-error format missing count header: %q", got)
	}
}
