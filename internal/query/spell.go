package query

import (
	"github.com/xrash/smetrics"
)

// Spell-correction bounds per the pipeline contract: only tokens of at
// least minCorrectLen are corrected, at up to maxEditDistance edits.
const (
	minCorrectLen   = 4
	maxEditDistance = 2
)

// CorrectTokens corrects tokens against a lexicon of known catalog terms.
// Tokens already in the lexicon, shorter than the minimum length, or purely
// numeric are left alone. Returns the corrected tokens and a map of applied
// corrections.
func CorrectTokens(tokens []string, lexicon map[string]struct{}) ([]string, map[string]string) {
	if len(lexicon) == 0 {
		return tokens, nil
	}

	var corrections map[string]string
	out := make([]string, len(tokens))
	for i, tok := range tokens {
		out[i] = tok

		if len(tok) < minCorrectLen || isNumericToken(tok) {
			continue
		}
		if _, known := lexicon[tok]; known {
			continue
		}

		if best, ok := closestTerm(tok, lexicon); ok {
			out[i] = best
			if corrections == nil {
				corrections = make(map[string]string)
			}
			corrections[tok] = best
		}
	}
	return out, corrections
}

// closestTerm finds the lexicon term with the smallest edit distance within
// the allowed maximum. Ties prefer terms sharing the token's first letter,
// then shorter terms, then lexicographic order for determinism.
func closestTerm(tok string, lexicon map[string]struct{}) (string, bool) {
	best := ""
	bestDist := maxEditDistance + 1

	for term := range lexicon {
		// Length difference is a lower bound on edit distance.
		if diff := len(term) - len(tok); diff > maxEditDistance || diff < -maxEditDistance {
			continue
		}
		dist := smetrics.WagnerFischer(tok, term, 1, 1, 1)
		if dist > maxEditDistance {
			continue
		}
		if dist < bestDist || (dist == bestDist && betterCandidate(tok, term, best)) {
			best = term
			bestDist = dist
		}
	}

	return best, best != ""
}

func betterCandidate(tok, candidate, current string) bool {
	if current == "" {
		return true
	}
	candFirst := candidate[0] == tok[0]
	currFirst := current[0] == tok[0]
	if candFirst != currFirst {
		return candFirst
	}
	if len(candidate) != len(current) {
		return len(candidate) < len(current)
	}
	return candidate < current
}

func isNumericToken(tok string) bool {
	for _, r := range tok {
		if r < '0' || r > '9' {
			return false
		}
	}
	return len(tok) > 0
}
