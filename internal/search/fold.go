package search

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// FrenchStopwords are dropped when ranking memory entries.
var FrenchStopwords = []string{
	"le", "la", "les", "un", "une", "des", "du", "de", "d", "l", "et", "ou",
	"a", "au", "aux", "en", "dans", "sur", "pour", "par", "avec", "que", "qui",
	"est", "sont", "je", "tu", "il", "elle", "on", "nous", "vous", "ils",
	"mon", "ma", "mes", "ton", "ta", "tes", "son", "sa", "ses", "ce", "cette",
	"the", "an", "and", "or", "of", "to", "in", "is", "for", "on", "with",
}

// Fold lowercases s and strips combining marks.
func Fold(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		out = s
	}
	return strings.ToLower(out)
}

// Matches reports whether query occurs in any of fields, ignoring case and
// accents. An empty query matches everything.
func Matches(query string, fields ...string) bool {
	q := strings.TrimSpace(Fold(query))
	if q == "" {
		return true
	}
	for _, f := range fields {
		if strings.Contains(Fold(f), q) {
			return true
		}
	}
	return false
}
