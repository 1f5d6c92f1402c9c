// Package orchestrator routes generation requests onto the model chain for
// their task, with rate limiting, backpressure, retry and response healing.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"contentforge/internal/config"
	"contentforge/internal/domain"
	"contentforge/internal/prompt"
	"contentforge/internal/ratelimit"
	"contentforge/internal/telemetry"

	"github.com/google/uuid"
)

// Service turns abstract generation requests into concrete provider calls
type Service struct {
	client      domain.ChatClient
	renderer    *prompt.Renderer
	limiter     *ratelimit.Limiter
	cfg         *config.Config
	metrics     *telemetry.Metrics
	healerModel string

	// slots is the global concurrency ceiling: a counting semaphore
	// capping total in-flight provider calls regardless of how many
	// logical requests are queued. Acquired strictly before the outbound
	// call, released unconditionally after it resolves.
	slots chan struct{}
}

// New creates an orchestrator service
func New(cfg *config.Config, client domain.ChatClient, renderer *prompt.Renderer, limiter *ratelimit.Limiter, metrics *telemetry.Metrics) *Service {
	return &Service{
		client:      client,
		renderer:    renderer,
		limiter:     limiter,
		cfg:         cfg,
		metrics:     metrics,
		healerModel: cfg.Provider.HealerModel,
		slots:       make(chan struct{}, cfg.Generation.MaxConcurrent),
	}
}

// Generate executes one generation request against the task's model chain.
// It fails with a RateLimitError (never retried here; the caller decides)
// or a GenerationError on exhaustion of retries and fallbacks.
func (s *Service) Generate(ctx context.Context, req *domain.GenerationRequest) (*domain.GenerationResult, error) {
	action := domain.ActionForTask(req.Task)
	if err := s.limiter.Check(ctx, req.UserID, action); err != nil {
		var rlErr *domain.RateLimitError
		if errors.As(err, &rlErr) {
			s.metrics.RateLimitRejections.WithLabelValues(string(action)).Inc()
		}
		return nil, err
	}

	select {
	case s.slots <- struct{}{}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	s.metrics.GenerationsInFlight.Inc()
	defer func() {
		<-s.slots
		s.metrics.GenerationsInFlight.Dec()
	}()

	instructions, err := s.renderer.Render(ctx, req.Task, req.Context)
	if err != nil {
		return nil, err
	}

	chain := s.cfg.ChainFor(req.Task)
	call := &domain.ChatRequest{
		Model:          chain.Primary(),
		FallbackModels: chain.Fallbacks(),
		System:         instructions.System,
		Prompt:         instructions.User,
		MaxTokens:      instructions.MaxTokens,
		Temperature:    instructions.Temperature,
		BudgetRouted:   s.cfg.IsBudgetRouted(req.Task),
		RequestID:      uuid.NewString(),
	}
	if req.ExpectsStructured() {
		call.ResponseSchema = req.Schema
	}

	started := time.Now()
	resp, err := s.callWithRetry(ctx, req, call, instructions.Timeout)
	if err != nil {
		s.metrics.GenerationsTotal.WithLabelValues(string(req.Task), "error").Inc()
		return nil, err
	}

	result := &domain.GenerationResult{
		Text:            resp.Text,
		Model:           resp.Model,
		InputTokens:     resp.InputTokens,
		OutputTokens:    resp.OutputTokens,
		Duration:        time.Since(started),
		TemplateVersion: instructions.TemplateVersion,
		// Providers may append a variant suffix to the model identifier,
		// so primary attribution is a prefix match against chain[0].
		FallbackUsed: !strings.HasPrefix(resp.Model, chain.Primary()),
	}

	if req.ExpectsStructured() {
		structured, err := s.resolveStructured(ctx, resp.Text, req.Schema)
		if err != nil {
			s.metrics.GenerationsTotal.WithLabelValues(string(req.Task), "error").Inc()
			return nil, &domain.GenerationError{Task: req.Task, Model: resp.Model, Err: err}
		}
		result.Structured = structured
	}

	s.metrics.GenerationsTotal.WithLabelValues(string(req.Task), "ok").Inc()
	s.metrics.GenerationDuration.WithLabelValues(string(req.Task)).Observe(result.Duration.Seconds())
	s.metrics.TokensInput.WithLabelValues(string(req.Task)).Add(float64(resp.InputTokens))
	s.metrics.TokensOutput.WithLabelValues(string(req.Task)).Add(float64(resp.OutputTokens))
	if result.FallbackUsed {
		s.metrics.FallbackUsed.WithLabelValues(string(req.Task)).Inc()
	}

	return result, nil
}

// callWithRetry runs the provider call under the per-request retry budget.
// Only transient failures are retried; a truncated or empty response is a
// hard failure for the call.
func (s *Service) callWithRetry(ctx context.Context, req *domain.GenerationRequest, call *domain.ChatRequest, timeout time.Duration) (*domain.ChatResponse, error) {
	policy := RetryPolicy{
		MaxRetries:  req.MaxRetries,
		BackoffBase: s.cfg.Generation.BackoffBase,
		BackoffMax:  s.cfg.Generation.BackoffMax,
	}
	if policy.MaxRetries <= 0 {
		policy.MaxRetries = s.cfg.Generation.MaxRetries
	}

	var lastErr error
	for attempt := 0; attempt <= policy.MaxRetries; attempt++ {
		callCtx := ctx
		if timeout > 0 {
			var cancel context.CancelFunc
			callCtx, cancel = context.WithTimeout(ctx, timeout)
			defer cancel()
		}

		resp, err := s.client.ChatComplete(callCtx, call)
		if err == nil {
			if resp.Text == "" && len(resp.Images) == 0 {
				return nil, &domain.GenerationError{Task: req.Task, Model: resp.Model, Err: domain.ErrEmptyResponse}
			}
			if resp.FinishReason == domain.FinishReasonLength {
				// The caller must shrink the prompt or accept the loss;
				// retrying the same call would truncate again.
				return nil, &domain.GenerationError{Task: req.Task, Model: resp.Model, Err: domain.ErrTruncated}
			}
			return resp, nil
		}

		lastErr = err
		retryable, serverDelay := classify(err)
		if !retryable {
			return nil, &domain.GenerationError{Task: req.Task, Err: err}
		}

		if attempt < policy.MaxRetries {
			backoff := backoffFor(attempt, policy, serverDelay)
			s.metrics.RetryAttempts.WithLabelValues(retryReason(err)).Inc()
			slog.Debug("Retrying provider call",
				"task", req.Task, "attempt", attempt+1, "backoff", backoff, "error", err)

			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}
	}

	return nil, &domain.GenerationError{
		Task: req.Task,
		Err:  fmt.Errorf("retries exhausted after %d attempts: %w", policy.MaxRetries+1, lastErr),
	}
}

// resolveStructured runs the three-stage healing pipeline: direct parse,
// deterministic repair, then a single healer-model pass. Each stage's
// output must also satisfy the caller's schema.
func (s *Service) resolveStructured(ctx context.Context, text string, schema []byte) (map[string]any, error) {
	if parsed, err := parseStructured(text); err == nil {
		if err := validateAgainstSchema(parsed, schema); err == nil {
			s.metrics.HealingAttempts.WithLabelValues(healStageDirect, "ok").Inc()
			return parsed, nil
		}
	}
	s.metrics.HealingAttempts.WithLabelValues(healStageDirect, "fail").Inc()

	if parsed, err := parseStructured(repairJSON(text)); err == nil {
		if err := validateAgainstSchema(parsed, schema); err == nil {
			s.metrics.HealingAttempts.WithLabelValues(healStageRepair, "ok").Inc()
			return parsed, nil
		}
	}
	s.metrics.HealingAttempts.WithLabelValues(healStageRepair, "fail").Inc()

	parsed, err := s.healWithModel(ctx, text, schema)
	if err != nil {
		s.metrics.HealingAttempts.WithLabelValues(healStageModel, "fail").Inc()
		return nil, fmt.Errorf("structured output unhealable: %w", err)
	}
	s.metrics.HealingAttempts.WithLabelValues(healStageModel, "ok").Inc()
	return parsed, nil
}

func retryReason(err error) string {
	msg := err.Error()
	switch {
	case strings.Contains(msg, "429"):
		return "rate_limited"
	case strings.Contains(msg, "deadline exceeded") || strings.Contains(msg, "timeout"):
		return "timeout"
	default:
		return "server_error"
	}
}
