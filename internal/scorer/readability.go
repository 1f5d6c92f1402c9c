package scorer

import (
	"contentforge/internal/domain"
)

// Readability axis weights and calibrated thresholds
const (
	readEasePoints      = 10.0
	readSentencePoints  = 5.0
	readParagraphPoints = 5.0
	readDiversityPoints = 5.0

	// Localized reading-ease formula coefficients (Flesch adaptation
	// tuned for the product's mixed-language corpus).
	easeBase          = 206.835
	easeSentenceCoeff = 1.52
	easeSyllableCoeff = 65.14
	easeGoodThreshold = 60.0

	idealSentenceWords  = 20
	idealParagraphWords = 150
	minTypeTokenRatio   = 0.4
)

// scoreReadability grades reading ease, sentence and paragraph length, and
// vocabulary diversity. The ease and sentence-length checks need the
// analyzer; when it is unavailable the whole axis degrades to zero with an
// explanatory issue.
func (s *Scorer) scoreReadability(doc *document, score *domain.QualityScore) float64 {
	if !s.analyzer.Available() {
		addIssue(score, "readability scoring unavailable: no sentence analyzer in this deployment")
		return 0
	}

	sentences := s.analyzer.Sentences(doc.text)
	words := s.analyzer.Words(doc.text)
	if len(sentences) == 0 || len(words) == 0 {
		addIssue(score, "readability scoring skipped: no sentences found")
		return 0
	}

	points := 0.0

	totalSyllables := 0
	for _, w := range words {
		totalSyllables += s.analyzer.Syllables(w)
	}
	avgSentenceLen := float64(len(words)) / float64(len(sentences))
	syllablesPerWord := float64(totalSyllables) / float64(len(words))

	ease := easeBase - easeSentenceCoeff*avgSentenceLen - easeSyllableCoeff*syllablesPerWord
	switch {
	case ease >= easeGoodThreshold:
		points += readEasePoints
	case ease > 0:
		points += readEasePoints * ease / easeGoodThreshold
		addIssue(score, "reading ease %.0f below the %.0f target", ease, easeGoodThreshold)
	default:
		addIssue(score, "reading ease %.0f indicates very hard text", ease)
	}

	if avgSentenceLen <= idealSentenceWords {
		points += readSentencePoints
	} else {
		addIssue(score, "average sentence length %.1f words exceeds the %d-word ideal", avgSentenceLen, idealSentenceWords)
	}

	if avgWords := averageParagraphWords(doc.paragraphs); avgWords <= idealParagraphWords {
		points += readParagraphPoints
	} else {
		addIssue(score, "average paragraph length %.0f words exceeds the %d-word ideal", avgWords, idealParagraphWords)
	}

	if ttr := typeTokenRatio(words); ttr > minTypeTokenRatio {
		points += readDiversityPoints
	} else {
		addIssue(score, "type-token ratio %.2f under the %.1f diversity floor", ttr, minTypeTokenRatio)
	}

	if points > maxReadability {
		points = maxReadability
	}
	return points
}

func averageParagraphWords(paragraphs []string) float64 {
	if len(paragraphs) == 0 {
		return 0
	}
	total := 0
	for _, p := range paragraphs {
		total += len(wordRe.FindAllString(p, -1))
	}
	return float64(total) / float64(len(paragraphs))
}

// typeTokenRatio is distinct words over total words, a vocabulary
// diversity proxy
func typeTokenRatio(words []string) float64 {
	if len(words) == 0 {
		return 0
	}
	seen := make(map[string]struct{}, len(words))
	for _, w := range words {
		seen[Normalize(w)] = struct{}{}
	}
	return float64(len(seen)) / float64(len(words))
}
