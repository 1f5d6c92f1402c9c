// Package domain defines core domain types for the contentforge generation layer.
package domain

import (
	"time"
)

// =============================================================================
// Task Types
// =============================================================================

// Task identifies a supported content generation task. The set is closed:
// model chains, rate limits and templates are keyed by Task and resolved at
// process start.
type Task string

const (
	TaskArticle     Task = "article"
	TaskSocialPost  Task = "social_post"
	TaskReview      Task = "review"
	TaskOutline     Task = "outline"
	TaskCritique    Task = "critique"
	TaskImagePrompt Task = "image_prompt"
	TaskHeal        Task = "heal"
)

// AllTasks returns all supported tasks
func AllTasks() []Task {
	return []Task{
		TaskArticle,
		TaskSocialPost,
		TaskReview,
		TaskOutline,
		TaskCritique,
		TaskImagePrompt,
		TaskHeal,
	}
}

// ParseTask parses a task string
func ParseTask(s string) (Task, bool) {
	switch s {
	case "article":
		return TaskArticle, true
	case "social_post", "social":
		return TaskSocialPost, true
	case "review":
		return TaskReview, true
	case "outline":
		return TaskOutline, true
	case "critique":
		return TaskCritique, true
	case "image_prompt":
		return TaskImagePrompt, true
	case "heal":
		return TaskHeal, true
	default:
		return "", false
	}
}

// Action is the rate-limit action a task maps to. Several tasks may share
// one action so they draw from the same per-user budget.
type Action string

const (
	ActionGenerate      Action = "generate"
	ActionGenerateImage Action = "generate_image"
)

// ActionForTask maps a task to its rate-limit action
func ActionForTask(task Task) Action {
	if task == TaskImagePrompt {
		return ActionGenerateImage
	}
	return ActionGenerate
}

// =============================================================================
// Generation Types
// =============================================================================

// GenerationRequest describes one generation call. Immutable once built:
// one request produces exactly one GenerationResult or one failure.
type GenerationRequest struct {
	Task       Task              `json:"task"`
	Context    map[string]string `json:"context"`
	UserID     string            `json:"user_id"`
	MaxRetries int               `json:"max_retries"`

	// Schema, when set, marks the request as expecting structured output.
	// The raw JSON schema is attached to the provider call as a strict
	// response constraint and used to validate the parsed result.
	Schema []byte `json:"schema,omitempty"`
}

// ExpectsStructured reports whether the request wants a parsed JSON object
func (r *GenerationRequest) ExpectsStructured() bool {
	return len(r.Schema) > 0
}

// GenerationResult is the outcome of one successful generation call.
// Produced exactly once per request, never partially filled.
type GenerationResult struct {
	Text       string         `json:"text,omitempty"`
	Structured map[string]any `json:"structured,omitempty"`

	Model           string        `json:"model"`
	InputTokens     int64         `json:"input_tokens"`
	OutputTokens    int64         `json:"output_tokens"`
	Duration        time.Duration `json:"duration"`
	TemplateVersion string        `json:"template_version"`
	FallbackUsed    bool          `json:"fallback_used"`
}

// ModelChain is the ordered, non-empty model list for one task.
// Index 0 is the primary; the rest are fallbacks in declared order.
// Chains are static configuration, never mutated at runtime.
type ModelChain []string

// Primary returns the chain's primary model
func (c ModelChain) Primary() string {
	if len(c) == 0 {
		return ""
	}
	return c[0]
}

// Fallbacks returns the fallback models after the primary
func (c ModelChain) Fallbacks() []string {
	if len(c) <= 1 {
		return nil
	}
	return c[1:]
}

// Instructions is a rendered system/user instruction pair
type Instructions struct {
	System string
	User   string

	// Rendering metadata carried through to the provider call and result.
	TemplateVersion string
	MaxTokens       int32
	Temperature     float32
	Timeout         time.Duration
}

// =============================================================================
// Template Types
// =============================================================================

// VariableSpec declares one template variable
type VariableSpec struct {
	Name     string `json:"name" toml:"name"`
	Required bool   `json:"required" toml:"required"`
	Default  string `json:"default,omitempty" toml:"default"`
}

// PromptTemplate is a versioned instruction template for one task
type PromptTemplate struct {
	Task      Task           `json:"task" toml:"task"`
	Version   string         `json:"version" toml:"version"`
	System    string         `json:"system" toml:"system"`
	User      string         `json:"user" toml:"user"`
	Variables []VariableSpec `json:"variables" toml:"variables"`

	// Metadata block
	MaxTokens   int32         `json:"max_tokens" toml:"max_tokens"`
	Temperature float32       `json:"temperature" toml:"temperature"`
	Timeout     time.Duration `json:"timeout" toml:"timeout"`
}

// =============================================================================
// Chat Types (provider boundary)
// =============================================================================

// ChatRequest is a chat-completion-style provider call
type ChatRequest struct {
	Model          string   `json:"model"`
	FallbackModels []string `json:"fallback_models,omitempty"`
	System         string   `json:"system,omitempty"`
	Prompt         string   `json:"prompt"`
	MaxTokens      int32    `json:"max_tokens,omitempty"`
	Temperature    float32  `json:"temperature,omitempty"`

	// BudgetRouted asks the provider to prefer the cheapest eligible
	// backend; when false the call requires strict parameter fidelity.
	BudgetRouted bool `json:"budget_routed,omitempty"`

	// ResponseSchema, when set, is attached as a strict JSON-schema
	// response constraint.
	ResponseSchema []byte `json:"response_schema,omitempty"`

	RequestID string `json:"request_id,omitempty"`
}

// FinishReason indicates why the model stopped
type FinishReason string

const (
	FinishReasonStop   FinishReason = "stop"
	FinishReasonLength FinishReason = "length"
	FinishReasonError  FinishReason = "error"
)

// ChatResponse is the provider's normalized answer
type ChatResponse struct {
	Text         string       `json:"text"`
	Model        string       `json:"model"`
	InputTokens  int64        `json:"input_tokens"`
	OutputTokens int64        `json:"output_tokens"`
	FinishReason FinishReason `json:"finish_reason"`

	// Images holds decoded inline image payloads for multimodal answers.
	Images [][]byte `json:"-"`
}

// ConnectionSettings tunes the provider HTTP transport
type ConnectionSettings struct {
	MaxConnections     int  `toml:"max_connections"`
	MaxIdleConnections int  `toml:"max_idle_connections"`
	IdleTimeoutSec     int  `toml:"idle_timeout_sec"`
	RequestTimeoutSec  int  `toml:"request_timeout_sec"`
	EnableKeepAlive    bool `toml:"enable_keep_alive"`
	EnableHTTP2        bool `toml:"enable_http2"`
}

// DefaultConnectionSettings returns sensible transport defaults
func DefaultConnectionSettings() ConnectionSettings {
	return ConnectionSettings{
		MaxConnections:     50,
		MaxIdleConnections: 10,
		IdleTimeoutSec:     90,
		RequestTimeoutSec:  180,
		EnableKeepAlive:    true,
		EnableHTTP2:        true,
	}
}
