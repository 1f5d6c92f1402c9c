package pipeline

import (
	"bytes"
	"fmt"
	"regexp"
	"strings"

	"contentforge/internal/domain"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/renderer/html"
)

var markdown = goldmark.New(
	goldmark.WithExtensions(extension.GFM),
	goldmark.WithRendererOptions(html.WithUnsafe()),
)

// RenderHTML converts the body markdown to the final markup the scorer and
// publisher consume.
func RenderHTML(body string) (string, error) {
	var buf bytes.Buffer
	if err := markdown.Convert([]byte(body), &buf); err != nil {
		return "", fmt.Errorf("rendering markdown: %w", err)
	}
	return buf.String(), nil
}

var headingLineRe = regexp.MustCompile(`(?m)^(#{1,6})\s+(.+)$`)

// SplitBlocks splits a markdown document at heading boundaries into
// read-only content blocks. Text before the first heading becomes a block
// with an empty heading at level zero.
func SplitBlocks(body string) []domain.ContentBlock {
	var blocks []domain.ContentBlock

	matches := headingLineRe.FindAllStringSubmatchIndex(body, -1)
	if len(matches) == 0 {
		if trimmed := strings.TrimSpace(body); trimmed != "" {
			blocks = append(blocks, domain.ContentBlock{Body: trimmed})
		}
		return blocks
	}

	if lead := strings.TrimSpace(body[:matches[0][0]]); lead != "" {
		blocks = append(blocks, domain.ContentBlock{Body: lead})
	}

	for i, m := range matches {
		level := m[3] - m[2]
		headingText := strings.TrimSpace(body[m[4]:m[5]])

		end := len(body)
		if i+1 < len(matches) {
			end = matches[i+1][0]
		}
		blockBody := strings.TrimSpace(body[m[1]:end])

		blocks = append(blocks, domain.ContentBlock{
			Heading: headingText,
			Level:   level,
			Body:    blockBody,
		})
	}

	return blocks
}
