// Package pipeline sequences orchestrator calls into quality-gated
// multi-step content generation.
package pipeline

import (
	"contentforge/internal/domain"
)

// Job describes one content generation job
type Job struct {
	Task             domain.Task
	UserID           string
	Context          map[string]string
	PrimaryPhrase    string
	SecondaryPhrases []string

	// Grounding references for the advisory fabrication check.
	ReferencePrices []float64
	KnownContacts   string
}

// StepMeta records per-step generation metadata for billing and audit
type StepMeta struct {
	Step         string `json:"step"`
	Model        string `json:"model"`
	InputTokens  int64  `json:"input_tokens"`
	OutputTokens int64  `json:"output_tokens"`
	FallbackUsed bool   `json:"fallback_used"`
}

// Article is the pipeline's final product
type Article struct {
	Title           string               `json:"title"`
	MetaDescription string               `json:"meta_description,omitempty"`
	Markdown        string               `json:"markdown"`
	HTML            string               `json:"html"`
	Images          []domain.ImageMeta   `json:"images,omitempty"`
	Score           *domain.QualityScore `json:"score"`
	Warnings        []string             `json:"warnings,omitempty"`
	Steps           []StepMeta           `json:"steps"`
}

// Structured output schema for the outline step
const outlineSchema = `{
	"type": "object",
	"properties": {
		"sections": {
			"type": "array",
			"items": {
				"type": "object",
				"properties": {
					"heading":    {"type": "string"},
					"key_points": {"type": "array", "items": {"type": "string"}}
				},
				"required": ["heading"]
			}
		},
		"target_words": {"type": "integer"}
	},
	"required": ["sections"]
}`

// Structured output schema for the expand step
const articleSchema = `{
	"type": "object",
	"properties": {
		"title":            {"type": "string"},
		"meta_description": {"type": "string"},
		"body":             {"type": "string"},
		"images": {
			"type": "array",
			"items": {
				"type": "object",
				"properties": {
					"filename": {"type": "string"},
					"alt_text": {"type": "string"},
					"caption":  {"type": "string"},
					"prompt":   {"type": "string"}
				}
			}
		}
	},
	"required": ["title", "body"]
}`

// Structured output schema for the critique step
const critiqueSchema = `{
	"type": "object",
	"properties": {
		"body": {"type": "string"}
	},
	"required": ["body"]
}`
