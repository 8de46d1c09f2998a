package store

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/coder/hnsw"

	"github.com/segmenta-io/segmenta/internal/catalog"
)

// VectorIndex answers nearest-neighbor queries over the snapshot's
// embedded variables. Small catalogs use exact brute-force scoring; above
// the threshold an HNSW graph takes over.
type VectorIndex struct {
	mu   sync.RWMutex
	dims int

	// Brute-force storage: normalized vectors, parallel to codes.
	codes   []string
	vectors [][]float32

	// ANN storage, nil when brute-forcing.
	graph *hnsw.Graph[string]

	closed bool
}

// NewVectorIndex builds the semantic index from a snapshot. Returns nil
// with no error when the snapshot carries no embeddings; callers treat a
// nil index as "semantic path unavailable".
func NewVectorIndex(snap *catalog.Snapshot, bruteForceThreshold int) (*VectorIndex, error) {
	embedded := snap.EmbeddedCodes()
	if len(embedded) == 0 {
		return nil, nil
	}

	vi := &VectorIndex{dims: snap.Dimensions()}

	if len(embedded) > bruteForceThreshold {
		graph := hnsw.NewGraph[string]()
		graph.Distance = hnsw.CosineDistance
		graph.M = 16
		graph.EfSearch = 64
		graph.Ml = 0.25
		vi.graph = graph
	}

	for _, code := range embedded {
		v := snap.Get(code)
		if v == nil || len(v.Embedding) != vi.dims {
			continue
		}
		vec := make([]float32, len(v.Embedding))
		copy(vec, v.Embedding)
		normalizeInPlace(vec)

		if vi.graph != nil {
			vi.graph.Add(hnsw.MakeNode(code, vec))
		} else {
			vi.codes = append(vi.codes, code)
			vi.vectors = append(vi.vectors, vec)
		}
	}

	if vi.Count() == 0 {
		return nil, nil
	}
	return vi, nil
}

// Search returns the k most similar variables to the query embedding,
// similarity in [0,1], descending with ties on code.
func (vi *VectorIndex) Search(ctx context.Context, query []float32, k int) ([]VectorHit, error) {
	vi.mu.RLock()
	defer vi.mu.RUnlock()

	if vi.closed {
		return nil, fmt.Errorf("vector index is closed")
	}
	if len(query) != vi.dims {
		return nil, fmt.Errorf("query dimensions %d, index has %d", len(query), vi.dims)
	}
	if k <= 0 {
		return nil, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	q := make([]float32, len(query))
	copy(q, query)
	normalizeInPlace(q)

	var hits []VectorHit
	if vi.graph != nil {
		for _, node := range vi.graph.Search(q, k) {
			cos := 1 - float64(hnsw.CosineDistance(q, node.Value))
			hits = append(hits, VectorHit{Code: node.Key, Similarity: (cos + 1) / 2})
		}
	} else {
		hits = make([]VectorHit, 0, len(vi.codes))
		for i, code := range vi.codes {
			cos := float64(dot(q, vi.vectors[i]))
			hits = append(hits, VectorHit{Code: code, Similarity: (cos + 1) / 2})
		}
	}

	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Similarity != hits[j].Similarity {
			return hits[i].Similarity > hits[j].Similarity
		}
		return hits[i].Code < hits[j].Code
	})
	if len(hits) > k {
		hits = hits[:k]
	}
	return hits, nil
}

// Count returns the number of indexed vectors.
func (vi *VectorIndex) Count() int {
	if vi == nil {
		return 0
	}
	vi.mu.RLock()
	defer vi.mu.RUnlock()
	if vi.graph != nil {
		return vi.graph.Len()
	}
	return len(vi.codes)
}

// Dimensions returns the vector dimensionality.
func (vi *VectorIndex) Dimensions() int {
	return vi.dims
}

// Close releases the index.
func (vi *VectorIndex) Close() error {
	vi.mu.Lock()
	defer vi.mu.Unlock()
	vi.closed = true
	vi.graph = nil
	vi.codes = nil
	vi.vectors = nil
	return nil
}

func normalizeInPlace(v []float32) {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	if sum == 0 {
		return
	}
	inv := float32(1 / math.Sqrt(sum))
	for i := range v {
		v[i] *= inv
	}
}

func dot(a, b []float32) float32 {
	var s float32
	for i := range a {
		s += a[i] * b[i]
	}
	return s
}
