// Package config handles agent configuration: YAML file loading with
// environment overrides, defaults, and validation.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all agent configuration.
type Config struct {
	// Model is the Anthropic model identifier sent with every request.
	Model string `yaml:"model"`
	// MaxTokens caps output tokens per model call.
	MaxTokens int `yaml:"max_tokens"`
	// SystemPrompt is the base system prompt. A rolling conversation
	// summary, when present, is injected as a prefix at request time.
	SystemPrompt string `yaml:"system_prompt"`
	// CacheSystemPrompt marks the system prompt block with ephemeral
	// cache_control. Billing optimisation only.
	CacheSystemPrompt bool   `yaml:"cache_system_prompt"`
	LogLevel          string `yaml:"log_level"`

	API    APIConfig    `yaml:"api"`
	Agent  AgentConfig  `yaml:"agent"`
	Window WindowConfig `yaml:"window"`
	Retry  RetryConfig  `yaml:"retry"`
	Store  StoreConfig  `yaml:"store"`
	Vault  VaultConfig  `yaml:"vault"`
}

// APIConfig defines endpoint settings. The key itself is never stored in
// the file; KeyEnv names the environment variable that carries it.
type APIConfig struct {
	BaseURL string `yaml:"base_url"`
	KeyEnv  string `yaml:"key_env"`
}

// AgentConfig bounds a single conversational turn.
type AgentConfig struct {
	// MaxIterations caps request/tool round-trips per user turn so a
	// tool-calling loop always terminates.
	MaxIterations int `yaml:"max_iterations"`
}

// WindowConfig tunes history truncation and the send-window token budget.
type WindowConfig struct {
	// ContextWindow is the model's total token budget for a request.
	ContextWindow int `yaml:"context_window"`
	// OverheadTokens reserves room for the system prompt, tool schemas,
	// and formatting that the per-message estimator doesn't see.
	OverheadTokens int `yaml:"overhead_tokens"`
	// TokenBudget, when > 0, bypasses the derived budget entirely.
	// AGT_TOKEN_BUDGET sets this at load time.
	TokenBudget int `yaml:"token_budget"`

	// MaxMessages is the hard cap on history length before trimming or
	// summarization kicks in.
	MaxMessages int `yaml:"max_messages"`
	// RecentWindow is how many trailing messages survive a summarization
	// split verbatim.
	RecentWindow int `yaml:"recent_window"`
	// ProtectRecent trailing messages are exempt from per-message content
	// truncation.
	ProtectRecent int `yaml:"protect_recent"`
	// PruneKeep trailing messages are exempt from low-value pruning.
	PruneKeep int `yaml:"prune_keep"`
	// MinPrunableChars: shorter tool-free messages are considered
	// low-value outside the kept window.
	MinPrunableChars int `yaml:"min_prunable_chars"`

	MaxToolResultChars    int `yaml:"max_tool_result_chars"`
	MaxAssistantTextChars int `yaml:"max_assistant_text_chars"`

	// AutoSummarizeRatio: when estimated usage exceeds this fraction of
	// the token budget and the message cap is hit, older history is
	// summarized instead of dropped.
	AutoSummarizeRatio float64 `yaml:"auto_summarize_ratio"`
}

// MessageTokenBudget returns the input-token budget for the send window:
// the explicit TokenBudget when set, otherwise the context window minus
// output reservation and overhead.
func (w WindowConfig) MessageTokenBudget(maxOutputTokens int) int {
	if w.TokenBudget > 0 {
		return w.TokenBudget
	}
	return w.ContextWindow - maxOutputTokens - w.OverheadTokens
}

// RetryConfig tunes the overloaded-response retry schedule.
type RetryConfig struct {
	// Delays are consumed left to right, one per failed attempt.
	// Parsed with time.ParseDuration.
	Delays []string `yaml:"delays"`
}

// Policy parses Delays into durations.
func (r RetryConfig) Policy() ([]time.Duration, error) {
	out := make([]time.Duration, 0, len(r.Delays))
	for _, s := range r.Delays {
		d, err := time.ParseDuration(s)
		if err != nil {
			return nil, fmt.Errorf("retry delay %q: %w", s, err)
		}
		if d < 0 {
			return nil, fmt.Errorf("retry delay %q: negative", s)
		}
		out = append(out, d)
	}
	return out, nil
}

// StoreConfig tunes conversation persistence.
type StoreConfig struct {
	// Path of the single JSON blob holding all conversations.
	Path string `yaml:"path"`
	// MaxConversations bounds retention; the least recently updated
	// conversation is evicted past the bound.
	MaxConversations int `yaml:"max_conversations"`
	// Autosave writes the conversation after every completed turn.
	Autosave bool `yaml:"autosave"`
}

// VaultConfig defines the sandbox roots for file tools.
type VaultConfig struct {
	// ReadRoot is the directory file tools may read under. Defaults to
	// the working directory. AGT_READ_ROOT overrides at load time.
	ReadRoot string `yaml:"read_root"`
	// WriteRoot defaults to ReadRoot. AGT_WRITE_ROOT overrides.
	WriteRoot string `yaml:"write_root"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Model:             "claude-3-7-sonnet-latest",
		MaxTokens:         1024,
		CacheSystemPrompt: true,
		LogLevel:          "info",
		API: APIConfig{
			BaseURL: "https://api.anthropic.com",
			KeyEnv:  "ANTHROPIC_API_KEY",
		},
		Agent: AgentConfig{MaxIterations: 10},
		Window: WindowConfig{
			ContextWindow:         200000,
			OverheadTokens:        4096,
			MaxMessages:           40,
			RecentWindow:          10,
			ProtectRecent:         3,
			PruneKeep:             5,
			MinPrunableChars:      10,
			MaxToolResultChars:    4000,
			MaxAssistantTextChars: 3000,
			AutoSummarizeRatio:    0.7,
		},
		Retry: RetryConfig{Delays: []string{"1s", "2s", "4s"}},
		Store: StoreConfig{
			Path:             "conversations.json",
			MaxConversations: 10,
			Autosave:         true,
		},
	}
}

// DefaultSearchPaths returns the config file search order: ./agent.yaml,
// then ~/.config/agent-core/config.yaml.
func DefaultSearchPaths() []string {
	paths := []string{"agent.yaml"}
	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".config", "agent-core", "config.yaml"))
	}
	return paths
}

// FindConfig locates a config file. An explicit path (AGT_CONFIG or a
// caller-supplied one) must exist when given; otherwise the search paths
// are tried in order. Returns "" with no error when nothing was found;
// running on pure defaults is supported.
func FindConfig(explicit string) (string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			return "", fmt.Errorf("config file not found: %s", explicit)
		}
		return explicit, nil
	}
	for _, p := range DefaultSearchPaths() {
		if _, err := os.Stat(p); err == nil {
			return p, nil
		}
	}
	return "", nil
}

// Load reads configuration from path, layered over Default(). Environment
// variables in the file body are expanded before parsing, and AGT_*
// overrides are applied afterwards. An empty path loads defaults plus
// overrides.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		expanded := os.ExpandEnv(string(data))
		if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
			return nil, fmt.Errorf("parsing %s: %w", path, err)
		}
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnvOverrides maps the AGT_* environment knobs onto the config.
// Env wins over the file so a shell export can steer a single run.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("AGT_TOKEN_BUDGET"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Window.TokenBudget = n
		}
	}
	if v := os.Getenv("AGT_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("AGT_READ_ROOT"); v != "" {
		cfg.Vault.ReadRoot = v
	}
	if v := os.Getenv("AGT_WRITE_ROOT"); v != "" {
		cfg.Vault.WriteRoot = v
	}
}

// Validate rejects configurations the pipeline cannot run with.
func (c *Config) Validate() error {
	if c.Model == "" {
		return fmt.Errorf("model must not be empty")
	}
	if c.MaxTokens <= 0 {
		return fmt.Errorf("max_tokens must be positive, got %d", c.MaxTokens)
	}
	if c.Agent.MaxIterations <= 0 {
		return fmt.Errorf("agent.max_iterations must be positive, got %d", c.Agent.MaxIterations)
	}
	if c.Window.MessageTokenBudget(c.MaxTokens) <= 0 {
		return fmt.Errorf("window budget is not positive; check context_window/overhead_tokens/token_budget")
	}
	if c.Window.MaxMessages <= c.Window.RecentWindow {
		return fmt.Errorf("window.max_messages (%d) must exceed window.recent_window (%d)",
			c.Window.MaxMessages, c.Window.RecentWindow)
	}
	if r := c.Window.AutoSummarizeRatio; r < 0 || r > 1 {
		return fmt.Errorf("window.auto_summarize_ratio must be within [0,1], got %v", r)
	}
	// Content caps must leave room for the truncation marker.
	if n := c.Window.MaxToolResultChars; n > 0 && n < 64 {
		return fmt.Errorf("window.max_tool_result_chars must be 0 or at least 64, got %d", n)
	}
	if n := c.Window.MaxAssistantTextChars; n > 0 && n < 64 {
		return fmt.Errorf("window.max_assistant_text_chars must be 0 or at least 64, got %d", n)
	}
	if c.Store.MaxConversations <= 0 {
		return fmt.Errorf("store.max_conversations must be positive, got %d", c.Store.MaxConversations)
	}
	if _, err := c.Retry.Policy(); err != nil {
		return err
	}
	if _, err := ParseLogLevel(c.LogLevel); err != nil {
		return err
	}
	return nil
}

// APIKey reads the configured credential variable.
func (c *Config) APIKey() string {
	return os.Getenv(c.API.KeyEnv)
}
