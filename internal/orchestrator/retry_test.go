package orchestrator

import (
	"context"
	"errors"
	"testing"
	"time"

	"contentforge/internal/provider"
)

func TestClassify(t *testing.T) {
	cases := []struct {
		name          string
		err           error
		wantRetryable bool
		wantDelay     time.Duration
	}{
		{"unauthorized is terminal", &provider.APIError{Status: 401, RetryAfter: -1}, false, -1},
		{"forbidden is terminal", &provider.APIError{Status: 403, RetryAfter: -1}, false, -1},
		{"bad request is terminal", &provider.APIError{Status: 400, RetryAfter: -1}, false, -1},
		{"rate limited retries", &provider.APIError{Status: 429, RetryAfter: -1}, true, -1},
		{"rate limited honors server delay", &provider.APIError{Status: 429, RetryAfter: 7 * time.Second}, true, 7 * time.Second},
		{"server error retries", &provider.APIError{Status: 503, RetryAfter: -1}, true, -1},
		{"deadline retries", context.DeadlineExceeded, true, -1},
		{"unknown error is terminal", errors.New("protocol mismatch"), false, -1},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			retryable, delay := classify(tc.err)
			if retryable != tc.wantRetryable {
				t.Errorf("retryable = %v, want %v", retryable, tc.wantRetryable)
			}
			if delay != tc.wantDelay {
				t.Errorf("delay = %v, want %v", delay, tc.wantDelay)
			}
		})
	}
}

func TestBackoffFor(t *testing.T) {
	policy := RetryPolicy{
		MaxRetries:  5,
		BackoffBase: time.Second,
		BackoffMax:  60 * time.Second,
	}

	t.Run("grows exponentially from the base", func(t *testing.T) {
		want := []time.Duration{time.Second, 2 * time.Second, 4 * time.Second, 8 * time.Second}
		for attempt, expected := range want {
			if got := backoffFor(attempt, policy, -1); got != expected {
				t.Errorf("attempt %d: backoff = %v, want %v", attempt, got, expected)
			}
		}
	})

	t.Run("caps at the maximum", func(t *testing.T) {
		if got := backoffFor(20, policy, -1); got != 60*time.Second {
			t.Errorf("backoff = %v, want cap 60s", got)
		}
	})

	t.Run("prefers a non-negative server delay", func(t *testing.T) {
		if got := backoffFor(3, policy, 2*time.Second); got != 2*time.Second {
			t.Errorf("backoff = %v, want server delay 2s", got)
		}
		if got := backoffFor(3, policy, 0); got != 0 {
			t.Errorf("backoff = %v, want 0 (zero server delay is usable)", got)
		}
	})
}
