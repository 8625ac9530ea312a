package policy

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// NormalizeCategory lowercases, strips diacritics and trims a free-text category.
func NormalizeCategory(category string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	stripped, _, err := transform.String(t, category)
	if err != nil {
		stripped = category
	}
	return strings.TrimSpace(strings.ToLower(stripped))
}
