package catalog

import (
	"sort"
	"sync/atomic"
	"time"
)

// Snapshot is an immutable point-in-time view of the whole catalog.
// All fields are fixed at build time; concurrent readers need no locking.
type Snapshot struct {
	version   uint64
	vars      map[string]*Variable
	ordered   []*Variable
	lexicon   map[string]struct{}
	embedded  []string
	dims      int
	model     string
	loadedAt  time.Time
	facets    map[string]map[string]int
}

// snapshotVersion is a process-wide monotonic snapshot counter.
var snapshotVersion atomic.Uint64

// NewSnapshot builds a snapshot from loaded variables. The slice is not
// retained; variables are, so callers must not mutate them afterwards.
func NewSnapshot(vars []*Variable, dims int, model string) *Snapshot {
	s := &Snapshot{
		version:  snapshotVersion.Add(1),
		vars:     make(map[string]*Variable, len(vars)),
		ordered:  make([]*Variable, 0, len(vars)),
		lexicon:  make(map[string]struct{}),
		dims:     dims,
		model:    model,
		loadedAt: time.Now(),
		facets: map[string]map[string]int{
			FacetCategory: {},
			FacetTheme:    {},
			FacetProduct:  {},
			FacetDomain:   {},
			FacetDataType: {},
		},
	}

	for _, v := range vars {
		if _, dup := s.vars[v.Code]; dup {
			continue
		}
		s.vars[v.Code] = v
		s.ordered = append(s.ordered, v)

		for _, tok := range Tokenize(v.Name + " " + v.Description + " " + v.Category) {
			s.lexicon[tok] = struct{}{}
		}
		if v.HasEmbedding() {
			s.embedded = append(s.embedded, v.Code)
		}

		s.countFacet(FacetCategory, v.Category)
		s.countFacet(FacetTheme, v.Theme)
		s.countFacet(FacetProduct, v.Product)
		s.countFacet(FacetDomain, v.Domain)
		s.countFacet(FacetDataType, string(v.DataType))
	}

	sort.Slice(s.ordered, func(i, j int) bool {
		return s.ordered[i].Code < s.ordered[j].Code
	})
	sort.Strings(s.embedded)

	return s
}

func (s *Snapshot) countFacet(facet, value string) {
	if value == "" {
		return
	}
	s.facets[facet][value]++
}

// Version is the monotonic identity of this snapshot. Cache keys include it
// so cached results expire naturally on reload.
func (s *Snapshot) Version() uint64 {
	return s.version
}

// Get returns the variable for a code, or nil when absent.
func (s *Snapshot) Get(code string) *Variable {
	return s.vars[code]
}

// Len returns the number of variables in the snapshot.
func (s *Snapshot) Len() int {
	return len(s.ordered)
}

// Iterate calls fn for every variable in code order. Iteration stops when
// fn returns false.
func (s *Snapshot) Iterate(fn func(*Variable) bool) {
	for _, v := range s.ordered {
		if !fn(v) {
			return
		}
	}
}

// Variables returns the ordered variable slice. Callers must treat it as
// read-only.
func (s *Snapshot) Variables() []*Variable {
	return s.ordered
}

// CountBy returns value counts for a facet (category, theme, product,
// domain, data_type). Unknown facets return an empty map.
func (s *Snapshot) CountBy(facet string) map[string]int {
	counts, ok := s.facets[facet]
	if !ok {
		return map[string]int{}
	}
	out := make(map[string]int, len(counts))
	for k, v := range counts {
		out[k] = v
	}
	return out
}

// Lexicon returns the set of surface tokens present in the catalog text.
// The spell corrector matches query tokens against it.
func (s *Snapshot) Lexicon() map[string]struct{} {
	return s.lexicon
}

// EmbeddedCodes returns the sorted codes of variables that carry embeddings.
func (s *Snapshot) EmbeddedCodes() []string {
	return s.embedded
}

// Dimensions is the declared embedding dimension D for this snapshot.
func (s *Snapshot) Dimensions() int {
	return s.dims
}

// EmbeddingModel is the model name recorded in the embeddings metadata.
func (s *Snapshot) EmbeddingModel() string {
	return s.model
}

// LoadedAt is when the snapshot finished building.
func (s *Snapshot) LoadedAt() time.Time {
	return s.loadedAt
}

// HasEmbeddings reports whether any variable carries an embedding.
func (s *Snapshot) HasEmbeddings() bool {
	return len(s.embedded) > 0
}
