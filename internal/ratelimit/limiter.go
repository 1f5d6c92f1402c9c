// Package ratelimit bounds per-user usage with atomic counters in a shared
// key-value store.
package ratelimit

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"contentforge/internal/domain"
)

// Rule is one (max, window) pair for an action
type Rule struct {
	Max    int64
	Window time.Duration
}

// Limiter enforces per-(user, action) usage limits. All mutations are
// single round-trip atomic store operations; the limiter holds no locks of
// its own and never holds anything across a provider call.
type Limiter struct {
	store domain.KVStore
	rules map[domain.Action]Rule
}

// New creates a limiter over the given store and rule table.
// The rule table is resolved once at startup and never mutated.
func New(store domain.KVStore, rules map[domain.Action]Rule) *Limiter {
	return &Limiter{store: store, rules: rules}
}

// Check reserves one slot for (user, action). Actions with no configured
// rule are unlimited. On rejection it returns a RateLimitError carrying the
// remaining wait; the reservation is compensated so the stored counter
// never stays above the max.
func (l *Limiter) Check(ctx context.Context, userID string, action domain.Action) error {
	return l.reserve(ctx, userID, action, 1)
}

// CheckBatch atomically reserves n slots before a caller fans out n
// parallel calls. The reservation is all-or-nothing: the batch either fits
// entirely or is rejected entirely.
func (l *Limiter) CheckBatch(ctx context.Context, userID string, action domain.Action, n int64) error {
	if n <= 0 {
		return nil
	}
	return l.reserve(ctx, userID, action, n)
}

func (l *Limiter) reserve(ctx context.Context, userID string, action domain.Action, n int64) error {
	rule, ok := l.rules[action]
	if !ok {
		return nil
	}

	key := keyFor(userID, action)

	// Increment first, compare after. A check-then-increment order would
	// let two concurrent callers both pass a stale read.
	count, err := l.store.IncrBy(ctx, key, n)
	if err != nil {
		return fmt.Errorf("rate limit increment: %w", err)
	}

	// The increment that creates the key is the only point at which the
	// expiry is armed. Later increments never extend it, so the window is
	// anchored to first use.
	if count == n {
		if err := l.store.Expire(ctx, key, rule.Window); err != nil {
			return fmt.Errorf("rate limit expire: %w", err)
		}
	}

	if count <= rule.Max {
		return nil
	}

	// Over the limit: compensate the reservation before reporting.
	if _, err := l.store.DecrBy(ctx, key, n); err != nil {
		slog.Warn("Failed to compensate rate limit reservation",
			"key", key, "delta", n, "error", err)
	}

	retryAfter, err := l.store.TTL(ctx, key)
	if err != nil {
		return fmt.Errorf("rate limit ttl: %w", err)
	}
	if retryAfter < 0 {
		// The key somehow has no expiry; re-arm it so the window cannot
		// stay stuck open, then report a full window.
		if err := l.store.Expire(ctx, key, rule.Window); err != nil {
			slog.Warn("Failed to re-arm rate limit expiry", "key", key, "error", err)
		}
		retryAfter = rule.Window
	}

	return &domain.RateLimitError{
		UserID:     userID,
		Action:     action,
		RetryAfter: retryAfter,
	}
}

func keyFor(userID string, action domain.Action) string {
	return fmt.Sprintf("ratelimit:%s:%s", userID, action)
}
