package scorer

import (
	"contentforge/internal/domain"
)

// Depth axis weights and calibrated floors
const (
	depthWordCountPoints = 4.0
	depthEntityPoints    = 2.0
	depthListPoints      = 2.0
	depthImagePoints     = 2.0

	minWordCount    = 800
	minEntityTokens = 10
)

// scoreDepth grades substance: length, named-entity density, list markup
// and imagery. None of its checks need the analyzer.
func (s *Scorer) scoreDepth(doc *document, score *domain.QualityScore) float64 {
	points := 0.0

	words := wordRe.FindAllString(doc.text, -1)
	if len(words) >= minWordCount {
		points += depthWordCountPoints
	} else {
		addIssue(score, "word count %d under the %d floor", len(words), minWordCount)
	}

	entities := 0
	for _, w := range words {
		if isCapitalizedToken(w) {
			entities++
		}
	}
	if entities >= minEntityTokens {
		points += depthEntityPoints
	} else {
		addIssue(score, "only %d capitalized tokens; at least %d expected as a named-entity proxy", entities, minEntityTokens)
	}

	if doc.hasList {
		points += depthListPoints
	} else {
		addIssue(score, "no list markup found")
	}

	if doc.imageCount > 0 {
		points += depthImagePoints
	} else {
		addIssue(score, "no images found")
	}

	if points > maxDepth {
		points = maxDepth
	}
	return points
}
