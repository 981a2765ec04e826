package search

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// RemoveDiacritics removes diacritical marks from a string (e.g., "Jiří" -> "Jiri").
func RemoveDiacritics(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	result, _, _ := transform.String(t, s)
	return result
}

// NormalizeQuery normalizes a search query for matching (lowercase, no
// diacritics, collapsed whitespace).
func NormalizeQuery(q string) string {
	q = RemoveDiacritics(q)
	q = strings.ToLower(q)
	q = strings.Join(strings.Fields(q), " ")
	return q
}
