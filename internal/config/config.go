// Package config provides configuration management for contentforge.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"contentforge/internal/domain"

	"github.com/BurntSushi/toml"
)

// Config is the root configuration structure. Model chains, rate limit
// rules and task sets are immutable lookup tables after Load.
type Config struct {
	Provider   ProviderConfig              `toml:"provider"`
	Generation GenerationConfig            `toml:"generation"`
	RateLimits map[string]RateLimitRule    `toml:"rate_limits"`
	Chains     map[string]domain.ModelChain `toml:"chains"`
	Scoring    ScoringConfig               `toml:"scoring"`
	Templates  TemplatesConfig             `toml:"templates"`
	Telemetry  TelemetryConfig             `toml:"telemetry"`
}

// ProviderConfig contains provider endpoint settings
type ProviderConfig struct {
	BaseURL     string                    `toml:"base_url"`
	APIKey      string                    `toml:"api_key"`
	HealerModel string                    `toml:"healer_model"`
	Connection  domain.ConnectionSettings `toml:"connection"`
}

// GenerationConfig contains orchestrator settings
type GenerationConfig struct {
	// MaxConcurrent is the global ceiling on in-flight provider calls.
	// It bounds total concurrency regardless of queued logical requests
	// and independently of per-user rate limits.
	MaxConcurrent int `toml:"max_concurrent"`

	MaxRetries  int           `toml:"max_retries"`
	BackoffBase time.Duration `toml:"backoff_base"`
	BackoffMax  time.Duration `toml:"backoff_max"`

	// BudgetRouted lists tasks that ask the provider to prefer the
	// cheapest eligible backend. All other tasks require strict
	// parameter fidelity.
	BudgetRouted []string `toml:"budget_routed"`

	// Structured lists tasks whose output is parsed as JSON.
	Structured []string `toml:"structured"`
}

// RateLimitRule is one (max, window) pair for an action
type RateLimitRule struct {
	Max    int64         `toml:"max"`
	Window time.Duration `toml:"window"`
}

// ScoringConfig contains the quality gate bands.
// Values are product-calibrated; see the scorer package for the
// per-axis constants.
type ScoringConfig struct {
	HardFloor     float64 `toml:"hard_floor"`     // below: reject outright
	CritiqueLow   float64 `toml:"critique_low"`   // critique band lower bound (inclusive)
	CritiqueHigh  float64 `toml:"critique_high"`  // critique band upper bound (inclusive)
	PassThreshold float64 `toml:"pass_threshold"` // at/above: accept as-is
}

// TemplatesConfig locates the prompt template files
type TemplatesConfig struct {
	Dir      string        `toml:"dir"`
	CacheTTL time.Duration `toml:"cache_ttl"`
}

// TelemetryConfig contains logging settings
type TelemetryConfig struct {
	LogLevel  string `toml:"log_level"`
	LogFormat string `toml:"log_format"` // "json" or "pretty"
}

// Default returns a default configuration
func Default() *Config {
	return &Config{
		Provider: ProviderConfig{
			BaseURL:     "https://openrouter.ai/api/v1",
			HealerModel: "openai/gpt-4o-mini",
			Connection:  domain.DefaultConnectionSettings(),
		},
		Generation: GenerationConfig{
			MaxConcurrent: 8,
			MaxRetries:    3,
			BackoffBase:   1 * time.Second,
			BackoffMax:    60 * time.Second,
			BudgetRouted:  []string{"outline", "critique", "heal"},
			Structured:    []string{"article", "outline", "review", "image_prompt"},
		},
		RateLimits: map[string]RateLimitRule{
			"generate":       {Max: 10, Window: time.Hour},
			"generate_image": {Max: 40, Window: time.Hour},
		},
		Chains: map[string]domain.ModelChain{
			"article":      {"anthropic/claude-sonnet-4", "openai/gpt-4o", "google/gemini-2.0-flash-001"},
			"social_post":  {"openai/gpt-4o-mini", "google/gemini-2.0-flash-001"},
			"review":       {"openai/gpt-4o", "anthropic/claude-sonnet-4"},
			"outline":      {"openai/gpt-4o-mini", "google/gemini-2.0-flash-001"},
			"critique":     {"anthropic/claude-sonnet-4", "openai/gpt-4o"},
			"image_prompt": {"openai/gpt-4o-mini"},
			"heal":         {"openai/gpt-4o-mini"},
		},
		Scoring: ScoringConfig{
			HardFloor:     40,
			CritiqueLow:   60,
			CritiqueHigh:  79,
			PassThreshold: 80,
		},
		Templates: TemplatesConfig{
			Dir:      "templates",
			CacheTTL: 5 * time.Minute,
		},
		Telemetry: TelemetryConfig{
			LogLevel:  "info",
			LogFormat: "json",
		},
	}
}

// Load loads configuration from a file
func Load(path string) (*Config, error) {
	cfg := Default()

	if _, err := toml.DecodeFile(path, cfg); err != nil {
		if os.IsNotExist(err) {
			cfg.substituteEnvVars()
			return cfg, cfg.Validate()
		}
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	cfg.substituteEnvVars()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the chain and limit tables
func (c *Config) Validate() error {
	for _, task := range domain.AllTasks() {
		chain, ok := c.Chains[string(task)]
		if !ok || len(chain) == 0 {
			return &domain.ConfigError{Subject: "chains." + string(task), Detail: "model chain must be a non-empty ordered list"}
		}
	}
	if c.Generation.MaxConcurrent <= 0 {
		return &domain.ConfigError{Subject: "generation.max_concurrent", Detail: "must be positive"}
	}
	for action, rule := range c.RateLimits {
		if rule.Max <= 0 || rule.Window <= 0 {
			return &domain.ConfigError{Subject: "rate_limits." + action, Detail: "max and window must be positive"}
		}
	}
	if c.Scoring.HardFloor > c.Scoring.CritiqueLow || c.Scoring.CritiqueHigh >= c.Scoring.PassThreshold {
		return &domain.ConfigError{Subject: "scoring", Detail: "bands must satisfy floor <= critique_low <= critique_high < pass_threshold"}
	}
	return nil
}

// ChainFor returns the model chain for a task
func (c *Config) ChainFor(task domain.Task) domain.ModelChain {
	return c.Chains[string(task)]
}

// IsBudgetRouted reports whether a task prefers the cheapest backend
func (c *Config) IsBudgetRouted(task domain.Task) bool {
	for _, t := range c.Generation.BudgetRouted {
		if t == string(task) {
			return true
		}
	}
	return false
}

// IsStructured reports whether a task's output is parsed as JSON
func (c *Config) IsStructured(task domain.Task) bool {
	for _, t := range c.Generation.Structured {
		if t == string(task) {
			return true
		}
	}
	return false
}

// substituteEnvVars expands ${VAR} patterns and applies direct
// CONTENTFORGE_* environment variable overrides
func (c *Config) substituteEnvVars() {
	c.Provider.BaseURL = expandEnv(c.Provider.BaseURL)
	c.Provider.APIKey = expandEnv(c.Provider.APIKey)

	if v := os.Getenv("CONTENTFORGE_PROVIDER_URL"); v != "" {
		c.Provider.BaseURL = v
	}
	if v := os.Getenv("CONTENTFORGE_API_KEY"); v != "" {
		c.Provider.APIKey = v
	}
	if v := os.Getenv("CONTENTFORGE_HEALER_MODEL"); v != "" {
		c.Provider.HealerModel = v
	}
	if v := os.Getenv("CONTENTFORGE_MAX_CONCURRENT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Generation.MaxConcurrent = n
		}
	}
	if v := os.Getenv("CONTENTFORGE_TEMPLATES_DIR"); v != "" {
		c.Templates.Dir = v
	}
	if v := os.Getenv("CONTENTFORGE_LOG_LEVEL"); v != "" {
		c.Telemetry.LogLevel = v
	}
}

// expandEnv expands ${VAR} or $VAR patterns
func expandEnv(s string) string {
	if s == "" {
		return s
	}
	return os.ExpandEnv(s)
}
