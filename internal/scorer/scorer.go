// Package scorer grades generated HTML on five independent axes and runs
// the advisory fabrication check.
//
// All numeric thresholds are product-calibrated constants carried over
// from operational tuning; they are named here rather than re-derived.
package scorer

import (
	"fmt"
	"strings"

	"contentforge/internal/domain"

	"github.com/PuerkitoBio/goquery"
)

// Axis caps. The five sub-scores sum to the 0-100 total.
const (
	maxSEO         = 30.0
	maxReadability = 25.0
	maxStructure   = 20.0
	maxNaturalness = 15.0
	maxDepth       = 10.0
)

// Scorer computes quality scores. Pure and deterministic given identical
// analyzer availability; Score never fails, internal analysis problems
// degrade the affected sub-score to zero with an explanatory issue.
type Scorer struct {
	analyzer *Analyzer
}

// New creates a scorer with the default analyzer
func New() *Scorer {
	return &Scorer{analyzer: NewAnalyzer()}
}

// NewWithAnalyzer creates a scorer with a specific analyzer, letting
// deployments without NLP support run the degraded path
func NewWithAnalyzer(a *Analyzer) *Scorer {
	return &Scorer{analyzer: a}
}

// Score grades HTML markup against a primary phrase and secondary phrases,
// judging pass/fail against the supplied threshold.
func (s *Scorer) Score(html, primaryPhrase string, secondaryPhrases []string, passThreshold float64) *domain.QualityScore {
	doc := parseDocument(html)

	score := &domain.QualityScore{
		Breakdown: make(map[string]float64, 5),
	}

	score.Breakdown[domain.ScoreSEO] = s.scoreSEO(doc, primaryPhrase, secondaryPhrases, score)
	score.Breakdown[domain.ScoreReadability] = s.scoreReadability(doc, score)
	score.Breakdown[domain.ScoreStructure] = s.scoreStructure(doc, score)
	score.Breakdown[domain.ScoreNaturalness] = s.scoreNaturalness(doc, score)
	score.Breakdown[domain.ScoreDepth] = s.scoreDepth(doc, score)

	for _, v := range score.Breakdown {
		score.Total += v
	}
	score.Passed = score.Total >= passThreshold

	return score
}

// addIssue appends a human-readable issue string
func addIssue(score *domain.QualityScore, format string, args ...any) {
	score.Issues = append(score.Issues, fmt.Sprintf(format, args...))
}

// =============================================================================
// Document parsing
// =============================================================================

type heading struct {
	Level int
	Text  string
}

// document is the parsed view of the scored markup
type document struct {
	text       string
	headings   []heading
	paragraphs []string
	linkCount  int
	imageCount int
	hasList    bool
	hasMeta    bool // embedded structured metadata (JSON-LD)
	hasTOC     bool
}

// parseDocument extracts the structural features every axis reads.
// Unparseable input degrades to a text-only document; goquery's HTML
// parser does not fail on malformed fragments, it repairs them.
func parseDocument(html string) *document {
	doc := &document{}

	gq, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		doc.text = foldSpaces(html)
		return doc
	}

	for level := 1; level <= 6; level++ {
		gq.Find(fmt.Sprintf("h%d", level)).Each(func(_ int, sel *goquery.Selection) {
			doc.headings = append(doc.headings, heading{Level: level, Text: foldSpaces(sel.Text())})
		})
	}

	gq.Find("p").Each(func(_ int, sel *goquery.Selection) {
		if text := foldSpaces(sel.Text()); text != "" {
			doc.paragraphs = append(doc.paragraphs, text)
		}
	})

	doc.linkCount = gq.Find("a[href]").Length()
	doc.imageCount = gq.Find("img").Length()
	doc.hasList = gq.Find("ul, ol").Length() > 0
	doc.hasMeta = gq.Find(`script[type="application/ld+json"]`).Length() > 0

	body := gq.Find("body")
	if body.Length() == 0 {
		body = gq.Selection
	}
	doc.text = foldSpaces(body.Text())

	lower := Normalize(doc.text)
	doc.hasTOC = strings.Contains(lower, "table of contents") ||
		strings.Contains(lower, "[toc]") ||
		strings.Contains(Normalize(html), `id="toc"`)

	return doc
}

// firstParagraph returns the opening paragraph, empty when none exists
func (d *document) firstParagraph() string {
	if len(d.paragraphs) == 0 {
		return ""
	}
	return d.paragraphs[0]
}

// lastParagraph returns the closing paragraph, empty when none exists
func (d *document) lastParagraph() string {
	if len(d.paragraphs) == 0 {
		return ""
	}
	return d.paragraphs[len(d.paragraphs)-1]
}

// firstSectionHeading returns the first heading regardless of level
func (d *document) firstSectionHeading() string {
	if len(d.headings) == 0 {
		return ""
	}
	return d.headings[0].Text
}
