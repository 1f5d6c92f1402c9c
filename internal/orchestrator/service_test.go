package orchestrator

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"contentforge/internal/config"
	"contentforge/internal/domain"
	"contentforge/internal/prompt"
	"contentforge/internal/provider"
	"contentforge/internal/ratelimit"
	"contentforge/internal/storage"
	"contentforge/internal/telemetry"
)

// step is one scripted provider interaction
type step struct {
	resp *domain.ChatResponse
	err  error
}

// fakeClient replays a script of provider responses and records the calls
type fakeClient struct {
	mu     sync.Mutex
	script []step
	calls  []*domain.ChatRequest
}

func (c *fakeClient) ChatComplete(ctx context.Context, req *domain.ChatRequest) (*domain.ChatResponse, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.calls = append(c.calls, req)
	if len(c.script) == 0 {
		return nil, errors.New("script exhausted")
	}
	next := c.script[0]
	c.script = c.script[1:]
	return next.resp, next.err
}

// fakeTemplates serves one fixed template for every task
type fakeTemplates struct{}

func (fakeTemplates) GetActive(ctx context.Context, task domain.Task) (*domain.PromptTemplate, error) {
	return &domain.PromptTemplate{
		Task:    task,
		Version: "v1",
		System:  "You write content.",
		User:    "Write about {{topic}}.",
		Variables: []domain.VariableSpec{
			{Name: "topic", Required: false, Default: "anything"},
		},
	}, nil
}

func newTestService(t *testing.T, client domain.ChatClient, limit int64) *Service {
	t.Helper()

	cfg := config.Default()
	cfg.Generation.BackoffBase = time.Millisecond
	cfg.Generation.BackoffMax = 5 * time.Millisecond
	cfg.Generation.MaxRetries = 3
	cfg.Chains["article"] = domain.ModelChain{"model-a", "model-b"}

	store := storage.NewMemoryStore()
	limiter := ratelimit.New(store, map[domain.Action]ratelimit.Rule{
		domain.ActionGenerate: {Max: limit, Window: time.Hour},
	})
	renderer := prompt.NewRenderer(fakeTemplates{})

	return New(cfg, client, renderer, limiter, telemetry.NewMetricsForTest())
}

func okResponse(model, text string) *domain.ChatResponse {
	return &domain.ChatResponse{
		Text:         text,
		Model:        model,
		InputTokens:  120,
		OutputTokens: 350,
		FinishReason: domain.FinishReasonStop,
	}
}

func TestGenerate(t *testing.T) {
	ctx := context.Background()

	t.Run("primary succeeds after transient timeouts", func(t *testing.T) {
		client := &fakeClient{script: []step{
			{err: context.DeadlineExceeded},
			{err: context.DeadlineExceeded},
			{resp: okResponse("model-a-2025-01", "the article body")},
		}}
		svc := newTestService(t, client, 100)

		result, err := svc.Generate(ctx, &domain.GenerationRequest{
			Task: domain.TaskArticle, UserID: "u1",
			Context: map[string]string{"topic": "widgets"},
		})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if result.FallbackUsed {
			t.Error("fallback_used = true, want false (primary answered, variant suffix)")
		}
		if result.Model != "model-a-2025-01" {
			t.Errorf("model = %q", result.Model)
		}
		if len(client.calls) != 3 {
			t.Errorf("provider calls = %d, want 3", len(client.calls))
		}
		if result.TemplateVersion != "v1" {
			t.Errorf("template version = %q, want v1", result.TemplateVersion)
		}
	})

	t.Run("fallback model answering sets fallback_used", func(t *testing.T) {
		client := &fakeClient{script: []step{
			{resp: okResponse("model-b", "body")},
		}}
		svc := newTestService(t, client, 100)

		result, err := svc.Generate(ctx, &domain.GenerationRequest{Task: domain.TaskArticle, UserID: "u1"})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !result.FallbackUsed {
			t.Error("fallback_used = false, want true")
		}
	})

	t.Run("auth failure is terminal with no second attempt", func(t *testing.T) {
		client := &fakeClient{script: []step{
			{err: &provider.APIError{Status: 401, Body: "bad key", RetryAfter: -1}},
		}}
		svc := newTestService(t, client, 100)

		_, err := svc.Generate(ctx, &domain.GenerationRequest{Task: domain.TaskArticle, UserID: "u1"})
		var genErr *domain.GenerationError
		if !errors.As(err, &genErr) {
			t.Fatalf("expected GenerationError, got %v", err)
		}
		if len(client.calls) != 1 {
			t.Errorf("provider calls = %d, want 1 (no retry, no manual fallback)", len(client.calls))
		}
	})

	t.Run("truncated response is a hard failure", func(t *testing.T) {
		resp := okResponse("model-a", "cut off mid-sen")
		resp.FinishReason = domain.FinishReasonLength
		client := &fakeClient{script: []step{{resp: resp}}}
		svc := newTestService(t, client, 100)

		_, err := svc.Generate(ctx, &domain.GenerationRequest{Task: domain.TaskArticle, UserID: "u1"})
		if !errors.Is(err, domain.ErrTruncated) {
			t.Fatalf("expected ErrTruncated, got %v", err)
		}
		if len(client.calls) != 1 {
			t.Errorf("provider calls = %d, want 1 (truncation is not retried)", len(client.calls))
		}
	})

	t.Run("retries exhausted wraps the last error", func(t *testing.T) {
		client := &fakeClient{script: []step{
			{err: &provider.APIError{Status: 503, RetryAfter: -1}},
			{err: &provider.APIError{Status: 503, RetryAfter: -1}},
			{err: &provider.APIError{Status: 503, RetryAfter: -1}},
			{err: &provider.APIError{Status: 503, RetryAfter: -1}},
		}}
		svc := newTestService(t, client, 100)

		_, err := svc.Generate(ctx, &domain.GenerationRequest{Task: domain.TaskArticle, UserID: "u1", MaxRetries: 3})
		var genErr *domain.GenerationError
		if !errors.As(err, &genErr) {
			t.Fatalf("expected GenerationError, got %v", err)
		}
		if len(client.calls) != 4 {
			t.Errorf("provider calls = %d, want 4 (initial + 3 retries)", len(client.calls))
		}
	})

	t.Run("rate limited request never reaches the provider", func(t *testing.T) {
		client := &fakeClient{script: []step{
			{resp: okResponse("model-a", "body")},
		}}
		svc := newTestService(t, client, 1)

		if _, err := svc.Generate(ctx, &domain.GenerationRequest{Task: domain.TaskArticle, UserID: "u1"}); err != nil {
			t.Fatalf("first call rejected: %v", err)
		}

		_, err := svc.Generate(ctx, &domain.GenerationRequest{Task: domain.TaskArticle, UserID: "u1"})
		var rlErr *domain.RateLimitError
		if !errors.As(err, &rlErr) {
			t.Fatalf("expected RateLimitError, got %v", err)
		}
		if len(client.calls) != 1 {
			t.Errorf("provider calls = %d, want 1", len(client.calls))
		}
	})
}

func TestGenerateStructured(t *testing.T) {
	ctx := context.Background()
	objectSchema := []byte(`{"type": "object"}`)

	t.Run("array output is exposed under items", func(t *testing.T) {
		client := &fakeClient{script: []step{
			{resp: okResponse("model-a", `[1, 2, 3]`)},
		}}
		svc := newTestService(t, client, 100)

		result, err := svc.Generate(ctx, &domain.GenerationRequest{
			Task: domain.TaskArticle, UserID: "u1", Schema: objectSchema,
		})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		items, ok := result.Structured["items"].([]any)
		if !ok || len(items) != 3 {
			t.Fatalf("items = %v, want 3 entries", result.Structured["items"])
		}
	})

	t.Run("fenced output is repaired without a healer call", func(t *testing.T) {
		client := &fakeClient{script: []step{
			{resp: okResponse("model-a", "```json\n{\"title\": \"x\",}\n```")},
		}}
		svc := newTestService(t, client, 100)

		result, err := svc.Generate(ctx, &domain.GenerationRequest{
			Task: domain.TaskArticle, UserID: "u1", Schema: objectSchema,
		})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if result.Structured["title"] != "x" {
			t.Errorf("title = %v, want x", result.Structured["title"])
		}
		if len(client.calls) != 1 {
			t.Errorf("provider calls = %d, want 1 (deterministic repair sufficed)", len(client.calls))
		}
	})

	t.Run("unrepairable output goes to the healer model", func(t *testing.T) {
		client := &fakeClient{script: []step{
			{resp: okResponse("model-a", "I could not produce JSON, sorry.")},
			{resp: okResponse("healer", `{"ok": true}`)},
		}}
		svc := newTestService(t, client, 100)

		result, err := svc.Generate(ctx, &domain.GenerationRequest{
			Task: domain.TaskArticle, UserID: "u1", Schema: objectSchema,
		})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if result.Structured["ok"] != true {
			t.Errorf("ok = %v, want true", result.Structured["ok"])
		}
		if len(client.calls) != 2 {
			t.Fatalf("provider calls = %d, want 2", len(client.calls))
		}
		if client.calls[1].Model != svc.healerModel {
			t.Errorf("healer call used model %q, want %q", client.calls[1].Model, svc.healerModel)
		}
	})

	t.Run("healer failure ends the pipeline", func(t *testing.T) {
		client := &fakeClient{script: []step{
			{resp: okResponse("model-a", "still not JSON")},
			{resp: okResponse("healer", "also not JSON")},
		}}
		svc := newTestService(t, client, 100)

		_, err := svc.Generate(ctx, &domain.GenerationRequest{
			Task: domain.TaskArticle, UserID: "u1", Schema: objectSchema,
		})
		var genErr *domain.GenerationError
		if !errors.As(err, &genErr) {
			t.Fatalf("expected GenerationError, got %v", err)
		}
		// Exactly the main call and one healer attempt; no fourth stage.
		if len(client.calls) != 2 {
			t.Errorf("provider calls = %d, want 2", len(client.calls))
		}
	})
}

func TestGenerateRequestShape(t *testing.T) {
	ctx := context.Background()

	client := &fakeClient{script: []step{
		{resp: okResponse("model-a", "body")},
	}}
	svc := newTestService(t, client, 100)

	if _, err := svc.Generate(ctx, &domain.GenerationRequest{Task: domain.TaskArticle, UserID: "u1"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	call := client.calls[0]
	if call.Model != "model-a" {
		t.Errorf("primary = %q, want model-a", call.Model)
	}
	if len(call.FallbackModels) != 1 || call.FallbackModels[0] != "model-b" {
		t.Errorf("fallbacks = %v, want [model-b]", call.FallbackModels)
	}
	if call.RequestID == "" {
		t.Error("request id not set")
	}
}
