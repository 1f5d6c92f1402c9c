package scorer

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// Analyzer provides tokenization and sentence splitting for the two
// sub-scores that need them (readability, naturalness). Availability is a
// capability flag fixed at construction: deployments without the analyzer
// degrade those sub-scores to zero through an ordinary branch, never
// through a runtime failure.
type Analyzer struct {
	available bool
}

// NewAnalyzer returns the default analyzer, which is always available
func NewAnalyzer() *Analyzer {
	return &Analyzer{available: true}
}

// NewUnavailableAnalyzer returns an analyzer whose capability flag is off,
// for deployments (and tests) exercising the degraded path
func NewUnavailableAnalyzer() *Analyzer {
	return &Analyzer{available: false}
}

// Available reports whether tokenization and sentence splitting work
func (a *Analyzer) Available() bool {
	return a.available
}

var sentenceSplitRe = regexp.MustCompile(`[.!?]+[\s"')\]]*`)

// Sentences splits text into sentences, dropping empties
func (a *Analyzer) Sentences(text string) []string {
	parts := sentenceSplitRe.Split(text, -1)
	sentences := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			sentences = append(sentences, p)
		}
	}
	return sentences
}

var wordRe = regexp.MustCompile(`[\p{L}\p{N}]+(?:[-'’][\p{L}\p{N}]+)*`)

// Words tokenizes text into word tokens
func (a *Analyzer) Words(text string) []string {
	return wordRe.FindAllString(text, -1)
}

// Syllables estimates the syllable count of a word by counting vowel
// groups. Covers Latin and Cyrillic vowels; every word counts at least one.
func (a *Analyzer) Syllables(word string) int {
	const vowels = "aeiouyаеёиоуыэюяAEIOUYАЕЁИОУЫЭЮЯ"

	count := 0
	prevVowel := false
	for _, r := range word {
		isVowel := strings.ContainsRune(vowels, r)
		if isVowel && !prevVowel {
			count++
		}
		prevVowel = isVowel
	}
	if count == 0 {
		count = 1
	}
	return count
}

// Normalize lowercases and NFC-normalizes text for phrase matching
func Normalize(text string) string {
	return strings.ToLower(norm.NFC.String(text))
}

// foldSpaces collapses all whitespace runs to single spaces
func foldSpaces(text string) string {
	return strings.Join(strings.Fields(text), " ")
}

// isCapitalizedToken reports whether a token looks like a named-entity
// candidate: multi-character and starting with an uppercase letter.
func isCapitalizedToken(token string) bool {
	if len([]rune(token)) < 2 {
		return false
	}
	first := []rune(token)[0]
	return unicode.IsUpper(first)
}
