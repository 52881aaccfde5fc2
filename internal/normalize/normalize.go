// Package normalize cleans raw recognized text before classification.
package normalize

import (
	"strings"
	"unicode"
)

// allowedPunct is the punctuation kept by Clean. Everything outside
// letters, digits, whitespace, and this set is recognizer noise.
const allowedPunct = `.,;:!?'"()[]{}<>-+=*/\%$#&@_^|~`

// confusions maps standalone tokens to their classic recognition
// corrections. Applied to whole tokens only, never mid-word, so real words
// are never corrupted.
var confusions = map[string]string{
	"|": "I",
	"l": "I",
	"0": "O",
	"¡": "i",
}

// Clean normalizes raw extracted text: strips characters outside the safe
// set, collapses whitespace runs to single spaces, and fixes standalone
// character confusions. Pure and idempotent: Clean(Clean(x)) == Clean(x).
func Clean(text string) string {
	stripped := strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsNumber(r) || unicode.IsSpace(r) {
			return r
		}
		if strings.ContainsRune(allowedPunct, r) {
			return r
		}
		return -1
	}, text)

	words := strings.Fields(stripped)
	for i, w := range words {
		if fixed, ok := confusions[w]; ok {
			words[i] = fixed
		}
	}
	return strings.Join(words, " ")
}
