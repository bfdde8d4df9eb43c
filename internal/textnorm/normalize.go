// Package textnorm canonicalizes strings for matching. Every header, name
// and identifier comparison in the pipeline goes through Normalize.
package textnorm

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/unicode/norm"
)

// invisible are zero-width characters that exports sometimes carry in headers.
var invisible = strings.NewReplacer(
	"\u200b", "",
	"\u200c", "",
	"\u200d", "",
	"\ufeff", "",
)

// Normalize trims, lowercases, composes to NFC, collapses runs of whitespace
// to one space and strips zero-width characters. It never fails and
// Normalize(Normalize(s)) == Normalize(s).
func Normalize(s string) string {
	if s == "" {
		return ""
	}
	s = invisible.Replace(s)
	// Casers carry state and must not be shared between goroutines.
	s = cases.Lower(language.Und).String(s)
	s = norm.NFC.String(s)
	return strings.Join(strings.Fields(s), " ")
}

// Equal reports whether a and b are the same after normalization.
func Equal(a, b string) bool {
	return Normalize(a) == Normalize(b)
}
