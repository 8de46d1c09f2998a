// Package store holds the per-snapshot retrieval indexes: a bleve keyword
// index and an HNSW (or brute-force) vector index. Indexes are built from an
// immutable catalog snapshot and discarded wholesale when the snapshot is
// replaced; they never mutate in place after construction.
package store

// Indexed field names and their relevance boosts.
const (
	FieldName        = "name"
	FieldDescription = "description"
	FieldCategory    = "category"

	BoostName        = 3.0
	BoostDescription = 1.0
	BoostCategory    = 0.5
)

// KeywordHit is one keyword-index match, score normalized to [0,1]
// against the best hit of the same query.
type KeywordHit struct {
	Code  string
	Name  string
	Score float64
}

// VectorHit is one semantic match. Similarity is cosine shifted into
// [0,1]: (cos + 1) / 2.
type VectorHit struct {
	Code       string
	Similarity float64
}
