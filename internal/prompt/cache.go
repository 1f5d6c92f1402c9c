package prompt

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"contentforge/internal/domain"
)

// CachedSource fronts a TemplateSource with a shared key-value cache so
// repeated renders within the TTL avoid a template-store round trip.
type CachedSource struct {
	inner domain.TemplateSource
	store domain.KVStore
	ttl   time.Duration
}

// NewCachedSource wraps a template source with KV-store caching
func NewCachedSource(inner domain.TemplateSource, store domain.KVStore, ttl time.Duration) *CachedSource {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &CachedSource{inner: inner, store: store, ttl: ttl}
}

// GetActive returns the cached template for a task, falling through to the
// inner source on miss. Cache failures degrade to the inner source; they
// never fail the render.
func (s *CachedSource) GetActive(ctx context.Context, task domain.Task) (*domain.PromptTemplate, error) {
	key := cacheKey(task)

	if raw, ok, err := s.store.Get(ctx, key); err == nil && ok {
		var tmpl domain.PromptTemplate
		if err := json.Unmarshal([]byte(raw), &tmpl); err == nil {
			return &tmpl, nil
		}
		slog.Warn("Discarding undecodable cached template", "task", task)
	}

	tmpl, err := s.inner.GetActive(ctx, task)
	if err != nil {
		return nil, err
	}

	if raw, err := json.Marshal(tmpl); err == nil {
		if err := s.store.SetWithTTL(ctx, key, string(raw), s.ttl); err != nil {
			slog.Warn("Failed to cache template", "task", task, "error", err)
		}
	}

	return tmpl, nil
}

func cacheKey(task domain.Task) string {
	return fmt.Sprintf("template:active:%s", task)
}
