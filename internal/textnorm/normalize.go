// Package textnorm canonicalizes post content so that posts differing only
// in case, spacing or punctuation compare equal.
package textnorm

import (
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// Normalize lower-cases text, drops every rune that is not a letter,
// number, underscore or space, collapses whitespace runs to a single space
// and composes the result to NFC. Hangul syllables and jamo are letters, so
// Korean text survives intact. Composition runs again after filtering
// because dropping a rune can leave conjoining jamo adjacent.
//
// Normalize is idempotent: Normalize(Normalize(s)) == Normalize(s).
func Normalize(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	s = norm.NFC.String(strings.ToLower(s))

	var b strings.Builder
	b.Grow(len(s))

	space := false
	for _, r := range s {
		if unicode.IsSpace(r) {
			space = b.Len() > 0
			continue
		}
		if !keep(r) {
			continue
		}
		if space {
			b.WriteByte(' ')
			space = false
		}
		b.WriteRune(r)
	}
	return norm.NFC.String(b.String())
}

func keep(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsNumber(r) || r == '_'
}
