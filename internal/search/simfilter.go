package search

import (
	"github.com/xrash/smetrics"
)

// Similarity filter defaults. Catalogs carry long runs of near-identical
// variables ("Age 25-29", "Age 30-34"); the filter keeps each cluster to a
// representative sample.
const (
	DefaultSimilarityThreshold = 0.85
	DefaultMaxPerCluster       = 2
)

// FilterSimilar suppresses candidates whose names are near-duplicates of
// already-kept ones, keeping at most MaxPerCluster per similarity cluster.
// Order is preserved and the top-ranked candidate is always kept. Runs
// after scoring and before pagination.
func FilterSimilar(cands []Candidate, opts SimilarityOptions) []Candidate {
	if !opts.Enabled || len(cands) <= 1 {
		return cands
	}
	threshold := opts.Threshold
	if threshold <= 0 || threshold > 1 {
		threshold = DefaultSimilarityThreshold
	}
	maxPer := opts.MaxPerCluster
	if maxPer <= 0 {
		maxPer = DefaultMaxPerCluster
	}

	kept := make([]Candidate, 0, len(cands))
	kept = append(kept, cands[0])

	for _, c := range cands[1:] {
		similar := 0
		for _, k := range kept {
			if nameSimilarity(c.Name, k.Name) >= threshold {
				similar++
				if similar >= maxPer {
					break
				}
			}
		}
		if similar < maxPer {
			kept = append(kept, c)
		}
	}
	return kept
}

// nameSimilarity is Jaro-Winkler over names. Empty names never cluster.
func nameSimilarity(a, b string) float64 {
	if a == "" || b == "" {
		return 0
	}
	return smetrics.JaroWinkler(a, b, 0.7, 4)
}
