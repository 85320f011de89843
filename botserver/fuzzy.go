package botserver

import (
	"strings"
	"unicode"

	"github.com/bbalet/stopwords"
)

// stopwordLanguages lists the catalog languages whose stopwords are dropped
// before scoring.
var stopwordLanguages = []string{"pt", "en"}

// Normalize lower-cases text, drops punctuation and stopwords and returns the
// remaining tokens joined by single spaces.
func Normalize(text string) string {
	cleaned := strings.Join(strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r) && !unicode.IsMark(r)
	}), " ")
	for _, lang := range stopwordLanguages {
		cleaned = stopwords.CleanString(cleaned, lang, false)
	}
	return strings.Join(strings.Fields(cleaned), " ")
}
