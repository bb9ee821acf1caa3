// Package fold normalises free text coming from the portal and from record
// files so it can be compared without caring about case, accents or spacing.
package fold

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// String lowercases s, strips combining marks and collapses runs of
// whitespace into a single space.
func String(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	stripped, _, err := transform.String(t, s)
	if err != nil {
		stripped = s
	}
	return strings.Join(strings.Fields(strings.ToLower(stripped)), " ")
}

// Contains reports whether the folded form of s contains the folded form of
// every fragment.
func Contains(s string, fragments ...string) bool {
	folded := String(s)
	for _, fragment := range fragments {
		if !strings.Contains(folded, String(fragment)) {
			return false
		}
	}
	return true
}
