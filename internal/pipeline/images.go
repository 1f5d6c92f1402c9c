package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"contentforge/internal/domain"
	"contentforge/internal/ratelimit"
)

// ImageGenerator produces one image for a prompt
type ImageGenerator interface {
	GenerateImage(ctx context.Context, prompt, aspectRatio string) (data []byte, mime string, err error)
}

// aspectRatios is the round-robin assignment cycle for a batch
var aspectRatios = []string{"16:9", "4:3", "1:1"}

// ImageBatch fans out image generation for a document's image descriptors
type ImageBatch struct {
	generator ImageGenerator
	limiter   *ratelimit.Limiter
}

// NewImageBatch creates an image batch runner
func NewImageBatch(generator ImageGenerator, limiter *ratelimit.Limiter) *ImageBatch {
	return &ImageBatch{generator: generator, limiter: limiter}
}

// Generate reserves the whole batch atomically, then fans out one call per
// image descriptor. Variation hints and aspect ratios are assigned by
// declared position, so assignment is deterministic even though completion
// order is not; each result keeps its slot. Per-image failures stay in
// their slots as failure markers for reconciliation to filter; only an
// all-failed batch returns an error, aggregating every per-image cause.
func (b *ImageBatch) Generate(ctx context.Context, userID string, metas []domain.ImageMeta) ([]domain.ImageResult, error) {
	if len(metas) == 0 {
		return nil, nil
	}

	if err := b.limiter.CheckBatch(ctx, userID, domain.ActionGenerateImage, int64(len(metas))); err != nil {
		return nil, err
	}

	results := make([]domain.ImageResult, len(metas))

	var wg sync.WaitGroup
	for i, meta := range metas {
		wg.Add(1)
		go func(slot int, meta domain.ImageMeta) {
			defer wg.Done()

			prompt := meta.Prompt
			if prompt == "" {
				prompt = meta.AltText
			}
			if prompt == "" {
				results[slot] = domain.ImageResult{Err: fmt.Errorf("image %d has no prompt", slot+1)}
				return
			}
			prompt = fmt.Sprintf("%s (variation %d)", prompt, slot+1)

			data, mime, err := b.generator.GenerateImage(ctx, prompt, aspectRatios[slot%len(aspectRatios)])
			if err != nil {
				slog.Warn("Image generation failed", "slot", slot+1, "error", err)
				results[slot] = domain.ImageResult{Err: err}
				return
			}
			results[slot] = domain.ImageResult{Data: data, Mime: mime}
		}(i, meta)
	}
	wg.Wait()

	var causes []error
	for i := range results {
		if results[i].Failed() {
			err := results[i].Err
			if err == nil {
				err = fmt.Errorf("empty image payload")
			}
			causes = append(causes, err)
		}
	}
	if len(causes) == len(results) {
		return nil, &domain.ImageBatchError{Causes: causes}
	}

	return results, nil
}
