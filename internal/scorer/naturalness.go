package scorer

import (
	"math"
	"regexp"
	"strings"

	"contentforge/internal/domain"

	"github.com/agnivade/levenshtein"
)

// Naturalness axis weights and calibrated thresholds
const (
	natFillerPoints   = 5.0
	natVariancePoints = 4.0
	natNumericPoints  = 3.0
	natHedgingPoints  = 3.0

	// Human prose is bursty: sentence lengths vary. A coefficient of
	// variation under this cutoff reads as uniform machine rhythm.
	minSentenceLengthCV = 0.45

	// Factual density proxy.
	minNumericTokens = 5

	// Similarity threshold for fuzzy blacklist matching, so trivial
	// rewordings of a filler phrase still count.
	fuzzyMatchThreshold = 0.85
)

// fillerPhrases is the blacklist of generic filler openers and connectors
var fillerPhrases = []string{
	"in today's fast-paced world",
	"in the ever-evolving landscape",
	"it is important to note that",
	"at the end of the day",
	"when it comes to",
	"in this day and age",
	"needless to say",
	"it goes without saying",
	"last but not least",
	"a game changer",
	"unlock the full potential",
	"take it to the next level",
}

// hedgingPhrases is the smaller blacklist of vague hedges
var hedgingPhrases = []string{
	"some might say",
	"it could be argued",
	"many people believe",
	"as we all know",
	"arguably",
	"more or less",
}

var numericTokenRe = regexp.MustCompile(`\b\d[\d.,:%/-]*\b`)

// scoreNaturalness rewards human-like rhythm and factual density and
// penalizes filler and hedging. The variance check needs the analyzer's
// sentence splitter; without it that sub-check degrades to zero.
func (s *Scorer) scoreNaturalness(doc *document, score *domain.QualityScore) float64 {
	points := 0.0
	text := Normalize(doc.text)

	if found := matchBlacklist(text, fillerPhrases); len(found) == 0 {
		points += natFillerPoints
	} else {
		addIssue(score, "generic filler phrases found: %s", strings.Join(found, "; "))
	}

	if s.analyzer.Available() {
		if cv := sentenceLengthCV(s.analyzer, doc.text); cv >= minSentenceLengthCV {
			points += natVariancePoints
		} else {
			addIssue(score, "sentence length variation %.2f below the %.2f burstiness cutoff", cv, minSentenceLengthCV)
		}
	} else {
		addIssue(score, "sentence variance check unavailable: no sentence analyzer in this deployment")
	}

	if n := len(numericTokenRe.FindAllString(doc.text, -1)); n >= minNumericTokens {
		points += natNumericPoints
	} else {
		addIssue(score, "only %d numeric/date tokens; at least %d expected for factual density", n, minNumericTokens)
	}

	if found := matchBlacklist(text, hedgingPhrases); len(found) == 0 {
		points += natHedgingPoints
	} else {
		addIssue(score, "vague hedging phrases found: %s", strings.Join(found, "; "))
	}

	if points > maxNaturalness {
		points = maxNaturalness
	}
	return points
}

// matchBlacklist finds blacklisted phrases in normalized text, exactly or
// by sliding-window similarity so near-verbatim variants still match.
func matchBlacklist(normalizedText string, phrases []string) []string {
	var found []string
	words := strings.Fields(normalizedText)

	for _, phrase := range phrases {
		if strings.Contains(normalizedText, phrase) {
			found = append(found, phrase)
			continue
		}
		if fuzzyContains(words, phrase) {
			found = append(found, phrase)
		}
	}
	return found
}

// fuzzyContains slides a window of the phrase's word count across the text
// and compares each window by normalized Levenshtein similarity.
func fuzzyContains(textWords []string, phrase string) bool {
	phraseWords := strings.Fields(phrase)
	n := len(phraseWords)
	if n < 3 || len(textWords) < n {
		// Short phrases match exactly or not at all; fuzzing them
		// produces too many false positives.
		return false
	}

	for i := 0; i+n <= len(textWords); i++ {
		window := strings.Join(textWords[i:i+n], " ")
		if similarity(window, phrase) >= fuzzyMatchThreshold {
			return true
		}
	}
	return false
}

// similarity is 1 - normalized Levenshtein distance
func similarity(a, b string) float64 {
	if a == b {
		return 1
	}
	longest := len([]rune(a))
	if l := len([]rune(b)); l > longest {
		longest = l
	}
	if longest == 0 {
		return 1
	}
	dist := levenshtein.ComputeDistance(a, b)
	return 1 - float64(dist)/float64(longest)
}

// sentenceLengthCV is the coefficient of variation of sentence word counts
func sentenceLengthCV(a *Analyzer, text string) float64 {
	sentences := a.Sentences(text)
	if len(sentences) < 2 {
		return 0
	}

	lengths := make([]float64, len(sentences))
	sum := 0.0
	for i, sentence := range sentences {
		lengths[i] = float64(len(a.Words(sentence)))
		sum += lengths[i]
	}
	mean := sum / float64(len(lengths))
	if mean == 0 {
		return 0
	}

	variance := 0.0
	for _, l := range lengths {
		variance += (l - mean) * (l - mean)
	}
	variance /= float64(len(lengths))

	return math.Sqrt(variance) / mean
}
