package config

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config represents the complete Weft configuration
type Config struct {
	Paths   PathsConfig   `mapstructure:"paths"`
	AI      AIConfig      `mapstructure:"ai"`
	Runtime RuntimeConfig `mapstructure:"runtime"`
	Logging LoggingConfig `mapstructure:"logging"`
}

// PathsConfig controls where Weft reads and writes data
type PathsConfig struct {
	// CodeRepo is the path to the code repository worktrees are created from.
	// Supports ~ for home directory expansion.
	CodeRepo string `mapstructure:"code_repo"`
	// AIHistory is the path to the history repository holding queues,
	// state files, and agent definitions.
	AIHistory string `mapstructure:"ai_history"`
	// WorktreeDir is the directory where git worktrees are created.
	// If empty, defaults to "worktrees" inside the code repository.
	WorktreeDir string `mapstructure:"worktree_dir"`
}

// AIConfig controls the model backend used to process prompts
type AIConfig struct {
	// Backend selects the provider: "anthropic" (default)
	Backend string `mapstructure:"backend"`
	// Model is the model identifier passed to the backend
	Model string `mapstructure:"model"`
	// APIKey authenticates against the backend. Falls back to the
	// ANTHROPIC_API_KEY environment variable when empty.
	APIKey string `mapstructure:"api_key"`
	// MaxTokens caps the response length per request
	MaxTokens int `mapstructure:"max_tokens"`
	// MaxRetries is the number of retry attempts for transient failures
	MaxRetries int `mapstructure:"max_retries"`
	// RequestTimeoutSeconds bounds each backend request
	RequestTimeoutSeconds int `mapstructure:"request_timeout_seconds"`
}

// RuntimeConfig controls worker and orchestrator timing
type RuntimeConfig struct {
	// PollIntervalSeconds is how often workers scan their inbox for new prompts
	PollIntervalSeconds int `mapstructure:"poll_interval_seconds"`
	// ResultTimeoutSeconds is how long to wait for an agent result before giving up
	ResultTimeoutSeconds int `mapstructure:"result_timeout_seconds"`
	// GitConcurrency limits concurrent git operations across workers
	GitConcurrency int `mapstructure:"git_concurrency"`
}

// LoggingConfig controls debug logging behavior
type LoggingConfig struct {
	// Level is the log level: "debug", "info", "warn", "error" (default: "info")
	Level string `mapstructure:"level"`
	// Dir is the directory the log file is written to. Empty logs to stderr.
	Dir string `mapstructure:"dir"`
}

// RequestTimeout returns the backend request timeout as a time.Duration
func (c *AIConfig) RequestTimeout() time.Duration {
	return time.Duration(c.RequestTimeoutSeconds) * time.Second
}

// PollInterval returns the worker poll interval as a time.Duration
func (c *RuntimeConfig) PollInterval() time.Duration {
	return time.Duration(c.PollIntervalSeconds) * time.Second
}

// ResultTimeout returns the result wait timeout as a time.Duration
func (c *RuntimeConfig) ResultTimeout() time.Duration {
	return time.Duration(c.ResultTimeoutSeconds) * time.Second
}

// ResolveCodeRepo returns the resolved code repository path.
// If CodeRepo starts with ~, it expands to the user's home directory.
// A relative path is resolved relative to baseDir.
func (p *PathsConfig) ResolveCodeRepo(baseDir string) string {
	return resolvePath(p.CodeRepo, baseDir)
}

// ResolveAIHistory returns the resolved history repository path
func (p *PathsConfig) ResolveAIHistory(baseDir string) string {
	return resolvePath(p.AIHistory, baseDir)
}

// ResolveWorktreeDir returns the resolved worktree directory path.
// If WorktreeDir is empty, it returns the default "worktrees" directory
// inside the code repository.
func (p *PathsConfig) ResolveWorktreeDir(baseDir string) string {
	if p.WorktreeDir == "" {
		return filepath.Join(p.ResolveCodeRepo(baseDir), "worktrees")
	}
	return resolvePath(p.WorktreeDir, baseDir)
}

func resolvePath(path, baseDir string) string {
	if path == "" {
		return baseDir
	}

	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err == nil {
			path = filepath.Join(home, path[2:])
		}
	} else if path == "~" {
		home, err := os.UserHomeDir()
		if err == nil {
			path = home
		}
	}

	if !filepath.IsAbs(path) {
		path = filepath.Join(baseDir, path)
	}

	return path
}

// Default returns a Config with sensible default values
func Default() *Config {
	return &Config{
		Paths: PathsConfig{
			CodeRepo:    ".",
			AIHistory:   "ai-history",
			WorktreeDir: "",
		},
		AI: AIConfig{
			Backend:               "anthropic",
			Model:                 "claude-sonnet-4-20250514",
			APIKey:                "",
			MaxTokens:             8192,
			MaxRetries:            3,
			RequestTimeoutSeconds: 120,
		},
		Runtime: RuntimeConfig{
			PollIntervalSeconds:  5,
			ResultTimeoutSeconds: 600,
			GitConcurrency:       4,
		},
		Logging: LoggingConfig{
			Level: "info",
			Dir:   "",
		},
	}
}

// SetDefaults registers default values with viper
func SetDefaults() {
	defaults := Default()

	// Paths defaults
	viper.SetDefault("paths.code_repo", defaults.Paths.CodeRepo)
	viper.SetDefault("paths.ai_history", defaults.Paths.AIHistory)
	viper.SetDefault("paths.worktree_dir", defaults.Paths.WorktreeDir)

	// AI defaults
	viper.SetDefault("ai.backend", defaults.AI.Backend)
	viper.SetDefault("ai.model", defaults.AI.Model)
	viper.SetDefault("ai.api_key", defaults.AI.APIKey)
	viper.SetDefault("ai.max_tokens", defaults.AI.MaxTokens)
	viper.SetDefault("ai.max_retries", defaults.AI.MaxRetries)
	viper.SetDefault("ai.request_timeout_seconds", defaults.AI.RequestTimeoutSeconds)

	// Runtime defaults
	viper.SetDefault("runtime.poll_interval_seconds", defaults.Runtime.PollIntervalSeconds)
	viper.SetDefault("runtime.result_timeout_seconds", defaults.Runtime.ResultTimeoutSeconds)
	viper.SetDefault("runtime.git_concurrency", defaults.Runtime.GitConcurrency)

	// Logging defaults
	viper.SetDefault("logging.level", defaults.Logging.Level)
	viper.SetDefault("logging.dir", defaults.Logging.Dir)
}

// Load reads the configuration from viper into a Config struct and validates it
func Load() (*Config, error) {
	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if cfg.AI.APIKey == "" {
		cfg.AI.APIKey = os.Getenv("ANTHROPIC_API_KEY")
	}

	if errs := cfg.Validate(); len(errs) > 0 {
		return nil, ValidationErrors(errs)
	}

	return &cfg, nil
}

// Get returns the current configuration (convenience function)
func Get() *Config {
	cfg, err := Load()
	if err != nil {
		// Fall back to defaults if unmarshaling fails
		return Default()
	}
	return cfg
}

// ConfigFileName is the project-local config file viper searches for
const ConfigFileName = ".weftrc"

// ConfigDir returns the path to the user's config directory
func ConfigDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "weft")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".weft"
	}
	return filepath.Join(home, ".config", "weft")
}
