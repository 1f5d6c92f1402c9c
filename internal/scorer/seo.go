package scorer

import (
	"strings"

	"contentforge/internal/domain"
)

// SEO axis weights and calibrated density bands
const (
	seoDensityPoints   = 12.0
	seoPlacementPoints = 3.0 // each of: first heading, first paragraph, last paragraph
	seoSecondaryPoints = 9.0
	// Partial credit when no secondary phrases were supplied: there is
	// nothing to fail, but full marks are reserved for demonstrated
	// coverage.
	seoSecondaryDefault = 6.0

	densityIdealLow  = 1.5 // percent
	densityIdealHigh = 2.5
	densityTaperLow  = 1.0
	densityTaperHigh = 3.0
)

// scoreSEO grades keyword density, primary phrase placement and secondary
// phrase coverage.
func (s *Scorer) scoreSEO(doc *document, primaryPhrase string, secondaryPhrases []string, score *domain.QualityScore) float64 {
	points := 0.0
	text := Normalize(doc.text)
	primary := Normalize(primaryPhrase)

	// Keyword density: full credit in the ideal band, linear taper on
	// either side, zero outside the taper band.
	density := phraseDensity(text, primary)
	switch {
	case density >= densityIdealLow && density <= densityIdealHigh:
		points += seoDensityPoints
	case density >= densityTaperLow && density < densityIdealLow:
		points += seoDensityPoints * (density - densityTaperLow) / (densityIdealLow - densityTaperLow)
		addIssue(score, "keyword density %.2f%% is below the ideal %.1f-%.1f%% band", density, densityIdealLow, densityIdealHigh)
	case density > densityIdealHigh && density <= densityTaperHigh:
		points += seoDensityPoints * (densityTaperHigh - density) / (densityTaperHigh - densityIdealHigh)
		addIssue(score, "keyword density %.2f%% is above the ideal %.1f-%.1f%% band", density, densityIdealLow, densityIdealHigh)
	default:
		addIssue(score, "keyword density %.2f%% is outside the usable %.1f-%.1f%% range", density, densityTaperLow, densityTaperHigh)
	}

	// Primary phrase placement.
	if primary != "" {
		if strings.Contains(Normalize(doc.firstSectionHeading()), primary) {
			points += seoPlacementPoints
		} else {
			addIssue(score, "primary phrase missing from the first section heading")
		}
		if strings.Contains(Normalize(doc.firstParagraph()), primary) {
			points += seoPlacementPoints
		} else {
			addIssue(score, "primary phrase missing from the opening paragraph")
		}
		if strings.Contains(Normalize(doc.lastParagraph()), primary) {
			points += seoPlacementPoints
		} else {
			addIssue(score, "primary phrase missing from the closing paragraph")
		}
	} else {
		addIssue(score, "no primary phrase supplied; placement checks skipped")
	}

	// Secondary phrase coverage, scaled linearly to full credit at 100%.
	if len(secondaryPhrases) == 0 {
		points += seoSecondaryDefault
	} else {
		covered := 0
		for _, phrase := range secondaryPhrases {
			if strings.Contains(text, Normalize(phrase)) {
				covered++
			}
		}
		coverage := float64(covered) / float64(len(secondaryPhrases))
		points += seoSecondaryPoints * coverage
		if coverage < 1 {
			addIssue(score, "secondary phrase coverage %d/%d", covered, len(secondaryPhrases))
		}
	}

	if points > maxSEO {
		points = maxSEO
	}
	return points
}

// phraseDensity returns phrase occurrences per hundred words
func phraseDensity(normalizedText, normalizedPhrase string) float64 {
	if normalizedPhrase == "" || normalizedText == "" {
		return 0
	}
	words := strings.Fields(normalizedText)
	if len(words) == 0 {
		return 0
	}
	occurrences := strings.Count(normalizedText, normalizedPhrase)
	phraseWords := len(strings.Fields(normalizedPhrase))
	return float64(occurrences*phraseWords) / float64(len(words)) * 100
}
