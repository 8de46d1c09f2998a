package query

import (
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// Normalize lowercases, applies Unicode NFKC, collapses whitespace, and
// strips punctuation. Hyphens inside compounds ("third-party") survive;
// leading and trailing hyphens do not.
func Normalize(raw string) string {
	s := norm.NFKC.String(raw)
	s = strings.ToLower(s)

	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
		case r == '-':
			b.WriteRune(r)
		case unicode.IsSpace(r):
			b.WriteRune(' ')
		case r == '$' || r == '%' || r == '+':
			// Currency, percent, and plus markers carry numeric meaning
			// ("$100k", "18+", "20%"); keep them for the numeric extractor.
			b.WriteRune(r)
		default:
			b.WriteRune(' ')
		}
	}

	fields := strings.Fields(b.String())
	for i, f := range fields {
		fields[i] = strings.Trim(f, "-")
	}

	out := make([]string, 0, len(fields))
	for _, f := range fields {
		if f != "" {
			out = append(out, f)
		}
	}
	return strings.Join(out, " ")
}
