package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"contentforge/internal/config"
	"contentforge/internal/domain"
	"contentforge/internal/scorer"
	"contentforge/internal/telemetry"
)

// Orchestrator is the generation entry point the pipeline drives
type Orchestrator interface {
	Generate(ctx context.Context, req *domain.GenerationRequest) (*domain.GenerationResult, error)
}

// Generator runs the quality-gated generation pipeline:
// outline → expand → score → conditional critique → validate.
type Generator struct {
	orch    Orchestrator
	scorer  *scorer.Scorer
	cfg     *config.Config
	metrics *telemetry.Metrics
}

// NewGenerator creates a pipeline generator
func NewGenerator(orch Orchestrator, sc *scorer.Scorer, cfg *config.Config, metrics *telemetry.Metrics) *Generator {
	return &Generator{orch: orch, scorer: sc, cfg: cfg, metrics: metrics}
}

// Run executes one job end to end
func (g *Generator) Run(ctx context.Context, job *Job) (*Article, error) {
	article := &Article{}

	// Outline failure is non-fatal: a worse result beats no result, so
	// the expand step proceeds with an empty outline.
	outline := g.runOutline(ctx, job, article)

	doc, err := g.runExpand(ctx, job, outline, article)
	if err != nil {
		return nil, err
	}
	article.Title = doc.title
	article.MetaDescription = doc.metaDescription
	article.Markdown = doc.body
	article.Images = doc.images

	rendered, err := RenderHTML(doc.body)
	if err != nil {
		return nil, &domain.GenerationError{Task: job.Task, Err: err}
	}
	article.HTML = rendered

	score := g.scorer.Score(rendered, job.PrimaryPhrase, job.SecondaryPhrases, g.cfg.Scoring.PassThreshold)
	article.Score = score

	bands := g.cfg.Scoring
	switch {
	case score.Total < bands.HardFloor:
		g.metrics.QualityScore.WithLabelValues(string(job.Task)).Observe(score.Total)
		return nil, &domain.ValidationError{
			Reason: fmt.Sprintf("quality score under the %.0f floor", bands.HardFloor),
			Score:  score.Total,
		}
	case score.Total >= bands.CritiqueLow && score.Total <= bands.CritiqueHigh:
		g.runCritique(ctx, job, article)
	}

	g.metrics.QualityScore.WithLabelValues(string(job.Task)).Observe(article.Score.Total)

	// Advisory only: fabrication findings never block.
	article.Warnings = g.scorer.CheckFabrication(article.HTML, job.ReferencePrices, job.KnownContacts)

	return article, nil
}

// runOutline produces the structured plan, or an empty outline on failure
func (g *Generator) runOutline(ctx context.Context, job *Job, article *Article) string {
	result, err := g.orch.Generate(ctx, &domain.GenerationRequest{
		Task:    domain.TaskOutline,
		Context: job.Context,
		UserID:  job.UserID,
		Schema:  []byte(outlineSchema),
	})
	if err != nil {
		slog.Warn("Outline step failed, continuing with empty outline",
			"task", job.Task, "user", job.UserID, "error", err)
		return ""
	}

	article.Steps = append(article.Steps, stepMeta("outline", result))

	raw, err := json.Marshal(result.Structured)
	if err != nil {
		return ""
	}
	return string(raw)
}

// expandedDoc is the parsed expand-step output
type expandedDoc struct {
	title           string
	metaDescription string
	body            string
	images          []domain.ImageMeta
}

// runExpand turns context plus outline into the full structured document.
// Failure here is fatal and propagates to the caller, who owns any
// compensating action such as a refund.
func (g *Generator) runExpand(ctx context.Context, job *Job, outline string, article *Article) (*expandedDoc, error) {
	expandCtx := make(map[string]string, len(job.Context)+1)
	for k, v := range job.Context {
		expandCtx[k] = v
	}
	if outline != "" {
		expandCtx["outline"] = outline
	}

	result, err := g.orch.Generate(ctx, &domain.GenerationRequest{
		Task:    job.Task,
		Context: expandCtx,
		UserID:  job.UserID,
		Schema:  []byte(articleSchema),
	})
	if err != nil {
		return nil, err
	}

	article.Steps = append(article.Steps, stepMeta("expand", result))

	doc := &expandedDoc{
		title:           stringField(result.Structured, "title"),
		metaDescription: stringField(result.Structured, "meta_description"),
		body:            stringField(result.Structured, "body"),
	}
	if doc.body == "" {
		return nil, &domain.GenerationError{Task: job.Task, Model: result.Model,
			Err: fmt.Errorf("expanded document has no body")}
	}

	if rawImages, ok := result.Structured["images"].([]any); ok {
		for _, rawImage := range rawImages {
			m, ok := rawImage.(map[string]any)
			if !ok {
				continue
			}
			doc.images = append(doc.images, domain.ImageMeta{
				Filename: stringField(m, "filename"),
				AltText:  stringField(m, "alt_text"),
				Caption:  stringField(m, "caption"),
				Prompt:   stringField(m, "prompt"),
			})
		}
	}

	return doc, nil
}

// runCritique issues one rewrite call with the scorer's issue list and
// adopts the revision only when its score does not regress. Strict >=:
// an equal-score rewrite is kept on the assumption the model incorporated
// qualitative fixes the number does not capture.
func (g *Generator) runCritique(ctx context.Context, job *Job, article *Article) {
	critiqueCtx := map[string]string{
		"body":   article.Markdown,
		"issues": strings.Join(article.Score.Issues, "\n"),
	}

	result, err := g.orch.Generate(ctx, &domain.GenerationRequest{
		Task:    domain.TaskCritique,
		Context: critiqueCtx,
		UserID:  job.UserID,
		Schema:  []byte(critiqueSchema),
	})
	if err != nil {
		slog.Warn("Critique step failed, keeping original document",
			"task", job.Task, "error", err)
		return
	}

	article.Steps = append(article.Steps, stepMeta("critique", result))

	revised := stringField(result.Structured, "body")
	if revised == "" {
		g.metrics.CritiquePasses.WithLabelValues("discarded").Inc()
		return
	}

	revisedHTML, err := RenderHTML(revised)
	if err != nil {
		g.metrics.CritiquePasses.WithLabelValues("discarded").Inc()
		return
	}

	revisedScore := g.scorer.Score(revisedHTML, job.PrimaryPhrase, job.SecondaryPhrases, g.cfg.Scoring.PassThreshold)
	if revisedScore.Total < article.Score.Total {
		// A regression is never adopted, even though we asked for it.
		slog.Info("Discarding critique revision with lower score",
			"original", article.Score.Total, "revised", revisedScore.Total)
		g.metrics.CritiquePasses.WithLabelValues("discarded").Inc()
		return
	}

	article.Markdown = revised
	article.HTML = revisedHTML
	article.Score = revisedScore
	g.metrics.CritiquePasses.WithLabelValues("accepted").Inc()
}

func stepMeta(step string, result *domain.GenerationResult) StepMeta {
	return StepMeta{
		Step:         step,
		Model:        result.Model,
		InputTokens:  result.InputTokens,
		OutputTokens: result.OutputTokens,
		FallbackUsed: result.FallbackUsed,
	}
}

func stringField(m map[string]any, key string) string {
	if m == nil {
		return ""
	}
	if v, ok := m[key].(string); ok {
		return strings.TrimSpace(v)
	}
	return ""
}
