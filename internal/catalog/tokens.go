package catalog

import (
	"regexp"
	"strings"

	porterstemmer "github.com/blevesearch/go-porterstemmer"
)

// tokenRegex matches alphanumeric word runs, keeping hyphenated compounds
// together so "third-party" survives as one token.
var tokenRegex = regexp.MustCompile(`[a-zA-Z0-9]+(?:-[a-zA-Z0-9]+)*`)

// stopWords are filtered out of derived keywords. Keeping this small avoids
// dropping domain terms like "high" or "over" that carry meaning in queries.
var stopWords = map[string]struct{}{
	"a": {}, "an": {}, "and": {}, "are": {}, "as": {}, "at": {},
	"be": {}, "by": {}, "for": {}, "from": {}, "has": {}, "in": {},
	"is": {}, "it": {}, "of": {}, "on": {}, "or": {}, "the": {},
	"to": {}, "with": {},
}

// Tokenize splits text into lowercased tokens, dropping stop words and
// tokens shorter than 2 characters. No stemming is applied.
func Tokenize(text string) []string {
	words := tokenRegex.FindAllString(text, -1)

	tokens := make([]string, 0, len(words))
	for _, w := range words {
		lower := strings.ToLower(w)
		if len(lower) < 2 {
			continue
		}
		if _, stop := stopWords[lower]; stop {
			continue
		}
		tokens = append(tokens, lower)
	}
	return tokens
}

// StemTokens returns Porter-stemmed copies of the given tokens,
// deduplicated while preserving first-seen order.
func StemTokens(tokens []string) []string {
	seen := make(map[string]struct{}, len(tokens))
	out := make([]string, 0, len(tokens))
	for _, t := range tokens {
		stemmed := porterstemmer.StemString(t)
		if stemmed == "" {
			continue
		}
		if _, dup := seen[stemmed]; dup {
			continue
		}
		seen[stemmed] = struct{}{}
		out = append(out, stemmed)
	}
	return out
}

// DeriveKeywords builds the stemmed keyword set for a variable from its
// name, description, and category.
func DeriveKeywords(name, description, category string) []string {
	raw := Tokenize(name + " " + description + " " + category)
	return StemTokens(raw)
}
