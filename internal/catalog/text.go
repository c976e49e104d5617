package catalog

import (
	"math"
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/unicode/norm"
)

var dottedThousands = regexp.MustCompile(`^\d{1,3}(\.\d{3})+$`)

// Fold trims, NFC-normalizes and lower-cases s for case-insensitive comparison.
// Catalog rows come from SQL Server exports where Vietnamese diacritics may be
// stored decomposed, so normalization happens before folding. A cases.Caser is
// stateful, so each call builds its own and Fold is safe for concurrent use.
func Fold(s string) string {
	s = strings.TrimSpace(norm.NFC.String(s))
	if s == "" {
		return ""
	}
	return cases.Lower(language.Und).String(s)
}

// FoldToken folds s and removes all whitespace, so "8 GB" and "8gb" compare equal.
func FoldToken(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, Fold(s))
}

// ParsePrice converts a raw catalog price into a number. Values that cannot be
// read as a non-negative finite number yield 0.
func ParsePrice(raw string) float64 {
	s := strings.TrimSpace(raw)
	s = strings.TrimSuffix(strings.TrimSuffix(s, "₫"), "đ")
	s = strings.TrimSpace(strings.TrimSuffix(strings.ToUpper(s), "VND"))
	s = strings.ReplaceAll(s, " ", "")
	if s == "" {
		return 0
	}

	if dottedThousands.MatchString(s) {
		s = strings.ReplaceAll(s, ".", "")
	}
	s = strings.ReplaceAll(s, ",", "")

	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
		return 0
	}
	return v
}

// FormatNumber renders a price without exponent or trailing zeros.
func FormatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
