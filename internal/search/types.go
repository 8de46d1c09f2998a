// Package search runs hybrid retrieval: keyword and semantic lookups in
// parallel over one pinned snapshot, weighted score fusion, intent boosts,
// and near-duplicate suppression.
package search

import (
	"fmt"

	"github.com/segmenta-io/segmenta/internal/catalog"
	"github.com/segmenta-io/segmenta/internal/store"
)

// Retrieval methods reported in Result.MethodsUsed.
const (
	MethodKeyword  = "keyword"
	MethodSemantic = "semantic"
)

// WarningSemanticUnavailable flags results produced without the semantic
// path. Degradation is a successful outcome, not an error.
const WarningSemanticUnavailable = "semantic_unavailable"

// Candidate is one scored variable.
type Candidate struct {
	Code     string  `json:"code"`
	Name     string  `json:"name"`
	Keyword  float64 `json:"keyword_score"`
	Semantic float64 `json:"semantic_score"`
	Fused    float64 `json:"fused_score"`

	// Sources lists which indexes contributed this candidate.
	Sources []string `json:"sources"`

	// MatchedKeywords are the query terms covered by the variable's
	// keyword set. Filled for the returned page only.
	MatchedKeywords []string `json:"matched_keywords,omitempty"`

	// ConceptMatches counts distinct query concepts found in the
	// variable's text, for the coverage bonus.
	ConceptMatches int `json:"concept_matches,omitempty"`
}

// Weights are the fusion weights. Zero value means "use defaults".
type Weights struct {
	Semantic float64
	Keyword  float64
}

// SimilarityOptions controls the near-duplicate filter.
type SimilarityOptions struct {
	Enabled       bool
	Threshold     float64
	MaxPerCluster int
}

// Options are per-request search knobs.
type Options struct {
	TopK        int
	UseSemantic bool
	UseKeyword  bool
	Weights     *Weights
	Similarity  *SimilarityOptions

	// Filters restrict results by exact facet value.
	Theme    string
	Category string
}

// Result is the engine's output for one query.
type Result struct {
	Candidates      []Candidate
	TotalFound      int
	MethodsUsed     []string
	Warnings        []string
	SnapshotVersion uint64
}

// IndexSet binds the retrieval indexes to the snapshot they were built
// from. A set is immutable; reloads build a new one and swap.
type IndexSet struct {
	Snapshot *catalog.Snapshot
	Keyword  *store.KeywordIndex
	Vector   *store.VectorIndex
}

// BuildIndexSet constructs both indexes for a snapshot. A snapshot without
// embeddings yields a nil Vector; the engine treats that as keyword-only.
func BuildIndexSet(snap *catalog.Snapshot, bruteForceThreshold int) (*IndexSet, error) {
	kw, err := store.NewKeywordIndex(snap)
	if err != nil {
		return nil, fmt.Errorf("build keyword index: %w", err)
	}
	vec, err := store.NewVectorIndex(snap, bruteForceThreshold)
	if err != nil {
		_ = kw.Close()
		return nil, fmt.Errorf("build vector index: %w", err)
	}
	return &IndexSet{Snapshot: snap, Keyword: kw, Vector: vec}, nil
}

// Close releases both indexes.
func (s *IndexSet) Close() error {
	if s == nil {
		return nil
	}
	err := s.Keyword.Close()
	if s.Vector != nil {
		if verr := s.Vector.Close(); err == nil {
			err = verr
		}
	}
	return err
}
