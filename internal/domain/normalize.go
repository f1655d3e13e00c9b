package domain

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// diacriticStripper decomposes characters and drops combining marks, so
// "Wisła" and "wisla" compare equal. Built once; transform.Chain values are
// stateless between Transform calls via transform.String.
var diacriticStripper = transform.Chain(
	norm.NFD,
	runes.Remove(runes.In(unicode.Mn)),
	norm.NFC,
)

// Normalize canonicalizes a free-text station, river, or region name for
// comparison: lowercase, diacritics stripped, separators collapsed to single
// spaces. Idempotent; empty input normalizes to the empty string.
func Normalize(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return ""
	}

	// ł does not decompose to l + combining mark, so handle it before the
	// generic mark stripper. Same for the stray upstream Ł that survives
	// ToLower on malformed input.
	s = strings.NewReplacer("ł", "l", "Ł", "l").Replace(s)

	if stripped, _, err := transform.String(diacriticStripper, s); err == nil {
		s = stripped
	}

	var b strings.Builder
	b.Grow(len(s))
	space := false
	for _, r := range s {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			if space && b.Len() > 0 {
				b.WriteByte(' ')
			}
			space = false
			b.WriteRune(r)
		default:
			// whitespace, hyphens, parentheses, dots all collapse
			space = true
		}
	}
	return b.String()
}
