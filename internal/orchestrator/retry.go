package orchestrator

import (
	"context"
	"errors"
	"math"
	"net"
	"net/http"
	"time"

	"contentforge/internal/provider"
)

// RetryPolicy bounds the retry loop for one request
type RetryPolicy struct {
	MaxRetries  int
	BackoffBase time.Duration
	BackoffMax  time.Duration
}

// classify sorts a provider error into the retry taxonomy:
//   - network failures, timeouts, 429 and 5xx are transient and retryable
//   - 401/403 and the remaining 4xx are non-transient, non-quota problems
//     and are never retried
//
// For a 429 the server's own retry delay is preferred over computed
// backoff when present and non-negative.
func classify(err error) (retryable bool, serverDelay time.Duration) {
	serverDelay = -1

	var apiErr *provider.APIError
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.Status == http.StatusTooManyRequests:
			return true, apiErr.RetryAfter
		case apiErr.Status >= 500:
			return true, -1
		default:
			// 401, 403 and all other 4xx
			return false, -1
		}
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return true, -1
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return true, -1
	}

	// Transport-level failures that reach us as plain errors (connection
	// refused, reset, EOF mid-body) surface as *url.Error wrapping an
	// *net.OpError, both of which satisfy net.Error above. Anything else
	// is treated as non-retryable.
	return false, -1
}

// backoffFor computes the exponential backoff for an attempt, preferring
// an explicit server delay when one was provided.
func backoffFor(attempt int, policy RetryPolicy, serverDelay time.Duration) time.Duration {
	if serverDelay >= 0 {
		return serverDelay
	}

	backoff := time.Duration(float64(policy.BackoffBase) * math.Pow(2, float64(attempt)))
	if backoff > policy.BackoffMax || backoff <= 0 {
		backoff = policy.BackoffMax
	}
	return backoff
}
