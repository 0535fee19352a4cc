package interest

import (
	"strings"
	"unicode"

	"github.com/jdkato/prose/v2"
)

var stopwords = map[string]struct{}{
	"a": {}, "an": {}, "and": {}, "the": {}, "of": {}, "in": {}, "on": {}, "for": {},
	"to": {}, "with": {}, "or": {}, "at": {}, "by": {}, "from": {}, "into": {},
	"i": {}, "ii": {}, "iii": {}, "1": {}, "2": {}, "3": {}, "intro": {},
	"introduction": {}, "topics": {}, "special": {}, "seminar": {},
}

// Tokenize splits text into lower-cased word tokens, dropping punctuation.
func Tokenize(text string) []string {
	doc, err := prose.NewDocument(text,
		prose.WithSegmentation(false),
		prose.WithTagging(false),
		prose.WithExtraction(false),
	)
	if err != nil {
		return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
			return !unicode.IsLetter(r) && !unicode.IsDigit(r)
		})
	}

	tokens := make([]string, 0, len(doc.Tokens()))
	for _, tok := range doc.Tokens() {
		word := strings.ToLower(strings.TrimFunc(tok.Text, func(r rune) bool {
			return !unicode.IsLetter(r) && !unicode.IsDigit(r)
		}))
		if word != "" {
			tokens = append(tokens, word)
		}
	}
	return tokens
}

// Keywords returns the distinct content words of terms, in order.
func Keywords(terms []string) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, term := range terms {
		for _, tok := range Tokenize(term) {
			if _, stop := stopwords[tok]; stop || len(tok) < 2 {
				continue
			}
			if _, ok := seen[tok]; ok {
				continue
			}
			seen[tok] = struct{}{}
			out = append(out, tok)
		}
	}
	return out
}
