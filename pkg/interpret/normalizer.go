package interpret

import (
	"regexp"
	"strings"
	"unicode"
)

// Normalizer turns raw text into a canonical form plus tokens. It is an
// interface so callers can swap in a language-specific implementation.
type Normalizer interface {
	Normalize(raw string) (normalized string, tokens []string)
}

// DefaultNormalizer case-folds, collapses whitespace, and strips
// punctuation while keeping hyphens, dots and degree marks that carry
// meaning in coordinates and product names.
type DefaultNormalizer struct{}

var punctRe = regexp.MustCompile(`[^\w\s\-\.°]`)

func (DefaultNormalizer) Normalize(raw string) (string, []string) {
	text := strings.ToLower(raw)
	text = punctRe.ReplaceAllString(text, " ")

	// Hyphens, dots and degree marks survive the punctuation pass because
	// they carry meaning inside coordinates and product names; a token made
	// of nothing else carries none.
	var tokens []string
	for _, t := range strings.Fields(text) {
		if strings.IndexFunc(t, isWordRune) >= 0 {
			tokens = append(tokens, t)
		}
	}
	if len(tokens) == 0 {
		return "", nil
	}
	return strings.Join(tokens, " "), tokens
}

func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r)
}

var stopWords = map[string]bool{
	"a": true, "an": true, "the": true, "is": true, "are": true,
	"was": true, "were": true, "be": true, "been": true, "of": true,
	"for": true, "to": true, "from": true, "and": true, "or": true,
	"do": true, "does": true, "did": true, "can": true, "could": true,
	"i": true, "you": true, "me": true, "my": true, "your": true,
	"in": true, "on": true, "at": true, "by": true, "with": true,
	"about": true, "available": true, "please": true,
}

func isStopWord(token string) bool {
	return stopWords[token]
}

// pronouns that signal an elliptical follow-up question referring back to
// the previous turn.
var pronouns = map[string]bool{
	"it": true, "its": true, "they": true, "them": true, "those": true,
	"these": true, "that": true, "there": true, "one": true, "ones": true,
}

func hasPronoun(tokens []string) bool {
	for _, t := range tokens {
		if pronouns[t] {
			return true
		}
	}
	return false
}
