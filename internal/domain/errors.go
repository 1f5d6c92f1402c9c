package domain

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Sentinel errors for provider response and template resolution
var (
	ErrEmptyResponse = errors.New("provider returned an empty response")
	ErrTruncated     = errors.New("response truncated by output length limit")
	ErrNoTemplate    = errors.New("no active template for task")
)

// RateLimitError reports that an action would exceed its configured limit.
// Never retried by the generation layer; callers map it to a
// "try again in N" message.
type RateLimitError struct {
	UserID     string
	Action     Action
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limit exceeded for %s on %q, retry after %s",
		e.UserID, e.Action, e.RetryAfter.Round(time.Second))
}

// GenerationError reports that a call exhausted its retries and fallbacks,
// produced output that could not be healed, or was truncated.
type GenerationError struct {
	Task  Task
	Model string
	Err   error
}

func (e *GenerationError) Error() string {
	if e.Model != "" {
		return fmt.Sprintf("generation failed for task %q (model %s): %v", e.Task, e.Model, e.Err)
	}
	return fmt.Sprintf("generation failed for task %q: %v", e.Task, e.Err)
}

func (e *GenerationError) Unwrap() error { return e.Err }

// ValidationError reports content rejected after generation: a quality score
// below the hard floor or a failed safety check. Distinct from soft
// warnings, which never block.
type ValidationError struct {
	Reason string
	Score  float64
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("content validation failed: %s (score %.1f)", e.Reason, e.Score)
}

// ConfigError reports an operator-side problem (missing template, missing
// required variable with no default). It will not self-resolve by retrying.
type ConfigError struct {
	Subject string
	Detail  string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("configuration error: %s: %s", e.Subject, e.Detail)
}

// ImageBatchError aggregates per-image failures for an all-failed batch.
// Per-image failures never fail a batch while at least one image survives.
type ImageBatchError struct {
	Causes []error
}

func (e *ImageBatchError) Error() string {
	parts := make([]string, 0, len(e.Causes))
	for i, cause := range e.Causes {
		parts = append(parts, fmt.Sprintf("image %d: %v", i+1, cause))
	}
	return fmt.Sprintf("all %d images failed: %s", len(e.Causes), strings.Join(parts, "; "))
}
