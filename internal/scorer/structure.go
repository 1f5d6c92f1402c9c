package scorer

import (
	"strings"

	"contentforge/internal/domain"
)

// Structure axis weights and calibrated targets
const (
	structNoTopHeadingPoints = 5.0
	structHeadingCountPoints = 5.0
	structFAQPoints          = 3.0
	structMetadataPoints     = 3.0
	structTOCPoints          = 2.0
	structLinksPoints        = 2.0

	headingCountMin  = 3
	headingCountMax  = 8
	minInternalLinks = 2
)

// scoreStructure grades document skeleton quality. The platform-level
// title plays the H1 role, so an H1 inside the body is a structural
// defect, not a bonus.
func (s *Scorer) scoreStructure(doc *document, score *domain.QualityScore) float64 {
	points := 0.0

	hasTopHeading := false
	sectionHeadings := 0
	for _, h := range doc.headings {
		if h.Level == 1 {
			hasTopHeading = true
		} else {
			sectionHeadings++
		}
	}

	if !hasTopHeading {
		points += structNoTopHeadingPoints
	} else {
		addIssue(score, "body contains a top-level heading; the platform title already fills that role")
	}

	if sectionHeadings >= headingCountMin && sectionHeadings <= headingCountMax {
		points += structHeadingCountPoints
	} else {
		addIssue(score, "section heading count %d outside the %d-%d target range", sectionHeadings, headingCountMin, headingCountMax)
	}

	if hasFAQSection(doc) {
		points += structFAQPoints
	} else {
		addIssue(score, "no FAQ section found")
	}

	if doc.hasMeta {
		points += structMetadataPoints
	} else {
		addIssue(score, "no embedded structured metadata found")
	}

	if doc.hasTOC {
		points += structTOCPoints
	} else {
		addIssue(score, "no table of contents marker found")
	}

	if doc.linkCount >= minInternalLinks {
		points += structLinksPoints
	} else {
		addIssue(score, "internal link count %d under the minimum %d", doc.linkCount, minInternalLinks)
	}

	if points > maxStructure {
		points = maxStructure
	}
	return points
}

func hasFAQSection(doc *document) bool {
	for _, h := range doc.headings {
		normalized := Normalize(h.Text)
		if strings.Contains(normalized, "faq") || strings.Contains(normalized, "frequently asked") {
			return true
		}
	}
	return false
}
