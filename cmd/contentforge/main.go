// Package main is the one-shot CLI driver for the contentforge generation layer.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"contentforge/internal/config"
	"contentforge/internal/domain"
	"contentforge/internal/orchestrator"
	"contentforge/internal/pipeline"
	"contentforge/internal/prompt"
	"contentforge/internal/provider"
	"contentforge/internal/ratelimit"
	"contentforge/internal/scorer"
	"contentforge/internal/storage"
	"contentforge/internal/telemetry"
)

// kvFlags collects repeatable -context key=value flags
type kvFlags map[string]string

func (f kvFlags) String() string { return "" }

func (f kvFlags) Set(value string) error {
	parts := strings.SplitN(value, "=", 2)
	if len(parts) != 2 || parts[0] == "" {
		return fmt.Errorf("expected key=value, got %q", value)
	}
	f[parts[0]] = parts[1]
	return nil
}

func main() {
	configPath := flag.String("config", "config.toml", "Path to configuration file")
	taskName := flag.String("task", "article", "Content task to run")
	userID := flag.String("user", "cli", "Owning user id for rate limiting")
	primary := flag.String("primary", "", "Primary SEO phrase")
	secondary := flag.String("secondary", "", "Comma-separated secondary phrases")
	vars := kvFlags{}
	flag.Var(vars, "context", "Template variable as key=value (repeatable)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	telemetry.SetupLogging(cfg.Telemetry.LogLevel, cfg.Telemetry.LogFormat)

	task, ok := domain.ParseTask(*taskName)
	if !ok {
		slog.Error("Unknown task", "task", *taskName)
		os.Exit(1)
	}

	client, err := provider.NewClient(cfg.Provider.APIKey, cfg.Provider.BaseURL, cfg.Provider.Connection)
	if err != nil {
		slog.Error("Failed to create provider client", "error", err)
		os.Exit(1)
	}

	store := storage.NewMemoryStore()

	rules := make(map[domain.Action]ratelimit.Rule, len(cfg.RateLimits))
	for action, rule := range cfg.RateLimits {
		rules[domain.Action(action)] = ratelimit.Rule{Max: rule.Max, Window: rule.Window}
	}
	limiter := ratelimit.New(store, rules)

	templates := prompt.NewCachedSource(prompt.NewFileSource(cfg.Templates.Dir), store, cfg.Templates.CacheTTL)
	renderer := prompt.NewRenderer(templates)

	metrics := telemetry.NewMetrics()
	orch := orchestrator.New(cfg, client, renderer, limiter, metrics)
	generator := pipeline.NewGenerator(orch, scorer.New(), cfg, metrics)

	job := &pipeline.Job{
		Task:             task,
		UserID:           *userID,
		Context:          vars,
		PrimaryPhrase:    *primary,
		SecondaryPhrases: splitNonEmpty(*secondary),
	}

	slog.Info("Starting generation", "task", task, "user", *userID)

	article, err := generator.Run(context.Background(), job)
	if err != nil {
		slog.Error("Generation failed", "task", task, "error", err)
		os.Exit(1)
	}

	out, err := json.MarshalIndent(article, "", "  ")
	if err != nil {
		slog.Error("Failed to encode result", "error", err)
		os.Exit(1)
	}
	fmt.Println(string(out))
}

func splitNonEmpty(s string) []string {
	if s == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(s, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
