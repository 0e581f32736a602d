package textnorm

import (
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
)

// replacements lists the accented characters thermal printers in the field
// render badly. Anything outside this set passes through untouched.
var replacements = map[rune]rune{
	'á': 'a', 'é': 'e', 'í': 'i', 'ó': 'o', 'ú': 'u',
	'Á': 'A', 'É': 'E', 'Í': 'I', 'Ó': 'O', 'Ú': 'U',
	'ç': 'c', 'Ç': 'C',
	'ã': 'a', 'õ': 'o',
	'â': 'a', 'ê': 'e', 'ô': 'o',
}

var stripper = runes.Map(func(r rune) rune {
	if out, ok := replacements[r]; ok {
		return out
	}
	return r
})

// Normalize strips the known diacritics from s.
// It is idempotent and the identity on text without them.
func Normalize(s string) string {
	out, _, err := transform.String(stripper, s)
	if err != nil {
		return s
	}
	return out
}

// Has reports whether s contains any character Normalize would rewrite.
func Has(s string) bool {
	for _, r := range s {
		if _, ok := replacements[r]; ok {
			return true
		}
	}
	return false
}
