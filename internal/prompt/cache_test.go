package prompt

import (
	"context"
	"errors"
	"testing"
	"time"

	"contentforge/internal/domain"
	"contentforge/internal/storage"
)

func TestCachedSource(t *testing.T) {
	ctx := context.Background()

	t.Run("second lookup hits the cache", func(t *testing.T) {
		inner := &staticSource{tmpl: articleTemplate()}
		cached := NewCachedSource(inner, storage.NewMemoryStore(), time.Minute)

		first, err := cached.GetActive(ctx, domain.TaskArticle)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		second, err := cached.GetActive(ctx, domain.TaskArticle)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if inner.calls != 1 {
			t.Errorf("inner lookups = %d, want 1", inner.calls)
		}
		if second.Version != first.Version || second.User != first.User {
			t.Error("cached template differs from the original")
		}
	})

	t.Run("expired entry falls through to the source", func(t *testing.T) {
		inner := &staticSource{tmpl: articleTemplate()}
		store := storage.NewMemoryStore()
		cached := NewCachedSource(inner, store, time.Minute)

		now := time.Now()
		store.SetClock(func() time.Time { return now })

		if _, err := cached.GetActive(ctx, domain.TaskArticle); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		now = now.Add(2 * time.Minute)
		if _, err := cached.GetActive(ctx, domain.TaskArticle); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if inner.calls != 2 {
			t.Errorf("inner lookups = %d, want 2 after expiry", inner.calls)
		}
	})

	t.Run("undecodable cache entry is discarded", func(t *testing.T) {
		inner := &staticSource{tmpl: articleTemplate()}
		store := storage.NewMemoryStore()
		cached := NewCachedSource(inner, store, time.Minute)

		if err := store.SetWithTTL(ctx, cacheKey(domain.TaskArticle), "not json", time.Minute); err != nil {
			t.Fatalf("seeding cache: %v", err)
		}

		tmpl, err := cached.GetActive(ctx, domain.TaskArticle)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if tmpl.Version != "v3" {
			t.Errorf("version = %q, want the inner template", tmpl.Version)
		}
		if inner.calls != 1 {
			t.Errorf("inner lookups = %d, want 1", inner.calls)
		}
	})

	t.Run("inner failure propagates on miss", func(t *testing.T) {
		inner := &staticSource{err: errors.New("store down")}
		cached := NewCachedSource(inner, storage.NewMemoryStore(), time.Minute)

		if _, err := cached.GetActive(ctx, domain.TaskArticle); err == nil {
			t.Fatal("expected error")
		}
	})
}
