package model

import (
	"math"
	"strconv"
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

// NormalizeName folds a country name for matching: NFC, trimmed,
// case-folded. Display names are never replaced by this form.
func NormalizeName(s string) string {
	// Casers carry state; one per call.
	return cases.Fold().String(norm.NFC.String(strings.TrimSpace(s)))
}

// NormalizeHeader lower-cases a column header and drops everything except
// ASCII letters and digits.
func NormalizeHeader(s string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(s) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// ParseNumber parses a locale-tolerant decimal: surrounding and inner
// whitespace is ignored and the first ',' is read as a decimal point.
func ParseNumber(s string) (float64, bool) {
	cleaned := strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, s)
	if cleaned == "" {
		return 0, false
	}
	cleaned = strings.Replace(cleaned, ",", ".", 1)
	v, err := strconv.ParseFloat(cleaned, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}

// PlausibleEstimation reports whether v can be an engine estimation.
func PlausibleEstimation(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0) && v > 0 && v < 10000
}
