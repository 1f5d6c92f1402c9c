// Package reconcile aligns independently generated text and images into
// one consistent, placeholder-free document.
package reconcile

import (
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"unicode"

	"contentforge/internal/domain"
	"contentforge/internal/telemetry"
)

// Image placeholders in generated markdown: an embed form and a bare token.
//
//	![alt]({{IMAGE_1}})
//	{{IMAGE_1}}
var (
	embedPlaceholderRe = regexp.MustCompile(`!\[[^\]]*\]\(\s*\{\{IMAGE_(\d+)\}\}[^)]*\)`)
	barePlaceholderRe  = regexp.MustCompile(`\{\{IMAGE_(\d+)\}\}`)
	multiBlankRe       = regexp.MustCompile(`\n{3,}`)
)

// Reconciler merges placeholder markdown with generated image results
type Reconciler struct {
	encoder domain.ImageEncoder
	metrics *telemetry.Metrics
}

// New creates a reconciler with the given encoder
func New(encoder domain.ImageEncoder, metrics *telemetry.Metrics) *Reconciler {
	return &Reconciler{encoder: encoder, metrics: metrics}
}

// Reconcile pairs surviving images with their metadata, rewrites the
// markdown placeholders and returns the upload list in document order.
//
// The two inputs fail independently: failure markers in results are
// filtered before any other processing, and the cardinality policy then
// compares surviving image count I against metadata count M. I pairs
// positionally with the first I metadata entries; images beyond M get
// metadata generated from the title and 1-based position; placeholders
// with no surviving image are stripped, never replaced with empty images.
func (r *Reconciler) Reconcile(markdownText string, metas []domain.ImageMeta, results []domain.ImageResult, title string) (string, []domain.ImageUpload, error) {
	survivors := make([]domain.ImageResult, 0, len(results))
	for _, res := range results {
		if res.Failed() {
			r.metrics.ReconciledImages.WithLabelValues("failed").Inc()
			continue
		}
		survivors = append(survivors, res)
	}

	uploads := make([]domain.ImageUpload, 0, len(survivors))
	for i, res := range survivors {
		meta := generatedMeta(title, i+1)
		outcome := "generated_meta"
		if i < len(metas) {
			meta = fillDefaults(metas[i], title, i+1)
			outcome = "paired"
		}
		r.metrics.ReconciledImages.WithLabelValues(outcome).Inc()

		data, ext := r.encode(res, i+1)
		filename := meta.Filename
		if !strings.HasSuffix(strings.ToLower(filename), ext) {
			filename = trimExt(filename) + ext
		}

		uploads = append(uploads, domain.ImageUpload{
			Data:     data,
			Filename: filename,
			AltText:  meta.AltText,
			Caption:  meta.Caption,
		})
	}

	cleaned := rewritePlaceholders(markdownText, uploads)
	cleaned = multiBlankRe.ReplaceAllString(cleaned, "\n\n")
	cleaned = strings.TrimSpace(cleaned) + "\n"

	return cleaned, uploads, nil
}

// encode re-encodes one image, falling back to the original bytes and
// extension on failure. The fallback is per image and never escalates.
func (r *Reconciler) encode(res domain.ImageResult, position int) ([]byte, string) {
	encoded, ext, err := r.encoder.Reencode(res.Data, res.Mime)
	if err != nil {
		slog.Warn("Image re-encode failed, keeping original bytes",
			"position", position, "mime", res.Mime, "error", err)
		return res.Data, extForMime(res.Mime)
	}
	return encoded, ext
}

// rewritePlaceholders replaces placeholders that have a surviving image
// with final embed syntax and strips the rest, embed form first so bare
// tokens left inside stripped embeds do not survive.
func rewritePlaceholders(text string, uploads []domain.ImageUpload) string {
	text = embedPlaceholderRe.ReplaceAllStringFunc(text, func(match string) string {
		idx := placeholderIndex(embedPlaceholderRe, match)
		if idx < 1 || idx > len(uploads) {
			return ""
		}
		return embedFor(uploads[idx-1])
	})

	return barePlaceholderRe.ReplaceAllStringFunc(text, func(match string) string {
		idx := placeholderIndex(barePlaceholderRe, match)
		if idx < 1 || idx > len(uploads) {
			return ""
		}
		return embedFor(uploads[idx-1])
	})
}

func embedFor(upload domain.ImageUpload) string {
	if upload.Caption != "" {
		return fmt.Sprintf("![%s](%s \"%s\")", upload.AltText, upload.Filename, upload.Caption)
	}
	return fmt.Sprintf("![%s](%s)", upload.AltText, upload.Filename)
}

func placeholderIndex(re *regexp.Regexp, match string) int {
	m := re.FindStringSubmatch(match)
	if len(m) < 2 {
		return 0
	}
	idx := 0
	for _, ch := range m[1] {
		idx = idx*10 + int(ch-'0')
	}
	return idx
}

// generatedMeta derives metadata from the document title and position
func generatedMeta(title string, position int) domain.ImageMeta {
	base := Slugify(title)
	if base == "" {
		base = "image"
	}
	return domain.ImageMeta{
		Filename: fmt.Sprintf("%s-%d", base, position),
		AltText:  fmt.Sprintf("%s, illustration %d", strings.TrimSpace(title), position),
		Caption:  "",
	}
}

// fillDefaults replaces empty supplied fields with generated defaults
func fillDefaults(meta domain.ImageMeta, title string, position int) domain.ImageMeta {
	gen := generatedMeta(title, position)
	if strings.TrimSpace(meta.Filename) == "" {
		meta.Filename = gen.Filename
	} else {
		meta.Filename = Slugify(trimExt(meta.Filename))
	}
	if strings.TrimSpace(meta.AltText) == "" {
		meta.AltText = gen.AltText
	}
	return meta
}

// Slugify lowercases a string and reduces it to hyphen-separated
// alphanumeric runs, suitable for filenames and URLs.
func Slugify(s string) string {
	var b strings.Builder
	lastHyphen := true
	for _, r := range strings.ToLower(s) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
			lastHyphen = false
		case !lastHyphen:
			b.WriteByte('-')
			lastHyphen = true
		}
	}
	return strings.Trim(b.String(), "-")
}

func trimExt(filename string) string {
	if idx := strings.LastIndex(filename, "."); idx > 0 {
		return filename[:idx]
	}
	return filename
}

func extForMime(mime string) string {
	switch strings.ToLower(mime) {
	case "image/jpeg", "image/jpg":
		return ".jpg"
	case "image/png":
		return ".png"
	case "image/gif":
		return ".gif"
	case "image/webp":
		return ".webp"
	default:
		return ".bin"
	}
}
