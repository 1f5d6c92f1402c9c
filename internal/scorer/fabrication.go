package scorer

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Fabrication tolerance: a price within ±20% of any reference amount is
// assumed to be a legitimate restatement, not an invention.
const priceTolerance = 0.20

var (
	currencyRe = regexp.MustCompile(`(?:[$€£₽]\s?(\d[\d\s.,]*\d|\d)|(\d[\d\s.,]*\d|\d)\s?(?:USD|EUR|GBP|RUB|руб\.?|₽|\$))`)
	phoneRe    = regexp.MustCompile(`(?:\+?\d{1,3}[\s.-]?)?(?:\(\d{2,4}\)[\s.-]?)?\d{3}[\s.-]?\d{2,4}[\s.-]?\d{2,4}`)

	statClaimPhrases = []string{
		"studies show",
		"research shows",
		"according to a survey",
		"statistics show",
		"experts estimate",
		"a recent study found",
	}
)

// CheckFabrication extracts verifiable claims from the body and flags the
// ones that cannot be grounded. All findings are advisory warnings; they
// never block publication.
//
// Prices are judged only when a reference price list is supplied; absence
// of a reference means no price can be called fabricated. Phone numbers
// are judged against a known-contact excerpt under the same rule.
func (s *Scorer) CheckFabrication(html string, referencePrices []float64, knownContacts string) []string {
	var warnings []string

	doc := parseDocument(html)

	if len(referencePrices) > 0 {
		for _, amount := range extractAmounts(doc.text) {
			if !nearAnyReference(amount, referencePrices) {
				warnings = append(warnings, fmt.Sprintf(
					"price %.2f does not match any reference amount within ±%.0f%%", amount, priceTolerance*100))
			}
		}
	}

	if knownContacts != "" {
		normalizedContacts := digitsOnly(knownContacts)
		for _, phone := range phoneRe.FindAllString(doc.text, -1) {
			digits := digitsOnly(phone)
			if len(digits) < 7 {
				continue
			}
			if !strings.Contains(normalizedContacts, digits) {
				warnings = append(warnings, fmt.Sprintf("phone number %q not present in known contacts", strings.TrimSpace(phone)))
			}
		}
	}

	lower := Normalize(doc.text)
	for _, phrase := range statClaimPhrases {
		if strings.Contains(lower, phrase) {
			warnings = append(warnings, fmt.Sprintf("unattributed statistic claim: %q", phrase))
		}
	}

	return warnings
}

// extractAmounts parses currency figures out of the text
func extractAmounts(text string) []float64 {
	var amounts []float64
	for _, match := range currencyRe.FindAllStringSubmatch(text, -1) {
		raw := match[1]
		if raw == "" {
			raw = match[2]
		}
		raw = strings.NewReplacer(" ", "", ",", "").Replace(raw)
		if amount, err := strconv.ParseFloat(raw, 64); err == nil {
			amounts = append(amounts, amount)
		}
	}
	return amounts
}

func nearAnyReference(amount float64, references []float64) bool {
	for _, ref := range references {
		if ref == 0 {
			continue
		}
		delta := amount - ref
		if delta < 0 {
			delta = -delta
		}
		if delta/ref <= priceTolerance {
			return true
		}
	}
	return false
}

func digitsOnly(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
