package domain

import (
	"context"
	"time"
)

// KVStore is the shared atomic key-value store used for rate limiting and
// template caching. The contract matches Redis counter semantics: IncrBy on
// a missing key creates it at the given delta, Expire arms a TTL, TTL
// reports the remaining window (a negative duration means no expiry is set).
// All operations are single round-trip and atomic.
type KVStore interface {
	IncrBy(ctx context.Context, key string, delta int64) (int64, error)
	DecrBy(ctx context.Context, key string, delta int64) (int64, error)
	Expire(ctx context.Context, key string, ttl time.Duration) error
	TTL(ctx context.Context, key string) (time.Duration, error)
	Get(ctx context.Context, key string) (string, bool, error)
	SetWithTTL(ctx context.Context, key, value string, ttl time.Duration) error
}

// TemplateSource serves versioned prompt templates. A missing template for a
// configured task is a configuration error, not a retry condition.
type TemplateSource interface {
	GetActive(ctx context.Context, task Task) (*PromptTemplate, error)
}

// ChatClient is the outbound provider boundary
type ChatClient interface {
	ChatComplete(ctx context.Context, req *ChatRequest) (*ChatResponse, error)
}

// ImageEncoder re-encodes image bytes to a bandwidth-efficient format.
// On failure it returns an error and the caller keeps the original bytes
// and extension; encode failure never escalates past one image.
type ImageEncoder interface {
	Reencode(data []byte, mime string) (encoded []byte, ext string, err error)
}
