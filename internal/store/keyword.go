package store

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/standard"
	"github.com/blevesearch/bleve/v2/mapping"
	"github.com/blevesearch/bleve/v2/search/query"

	"github.com/segmenta-io/segmenta/internal/catalog"
)

// Fuzzy matching applies only to terms with no exact posting, at up to
// two edits, and its hits carry a penalty multiplier.
const (
	maxFuzziness = 2
	fuzzyPenalty = 0.5
)

// keywordDoc is the bleve document for one catalog variable.
type keywordDoc struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Category    string `json:"category"`
}

// KeywordIndex is an in-memory bleve index over one catalog snapshot.
type KeywordIndex struct {
	mu     sync.RWMutex
	idx    bleve.Index
	names  map[string]string   // code -> display name, for tie-breaking
	terms  map[string]struct{} // every indexed token, drives the fuzzy decision
	closed bool
}

// NewKeywordIndex builds the keyword index from a snapshot. The index is
// memory-only: snapshots are cheap to re-index and replaced atomically, so
// nothing is persisted.
func NewKeywordIndex(snap *catalog.Snapshot) (*KeywordIndex, error) {
	idx, err := bleve.NewMemOnly(keywordMapping())
	if err != nil {
		return nil, fmt.Errorf("create keyword index: %w", err)
	}

	ki := &KeywordIndex{
		idx:   idx,
		names: make(map[string]string, snap.Len()),
		terms: make(map[string]struct{}),
	}

	batch := idx.NewBatch()
	var indexErr error
	snap.Iterate(func(v *catalog.Variable) bool {
		doc := keywordDoc{
			Name:        v.Name,
			Description: v.Description,
			Category:    v.Category,
		}
		if err := batch.Index(v.Code, doc); err != nil {
			indexErr = fmt.Errorf("index variable %s: %w", v.Code, err)
			return false
		}
		ki.names[v.Code] = v.Name
		for _, field := range []string{v.Name, v.Description, v.Category} {
			for _, tok := range strings.Fields(strings.ToLower(field)) {
				ki.terms[strings.Trim(tok, `.,;:!?"'()[]`)] = struct{}{}
			}
		}
		return true
	})
	if indexErr != nil {
		_ = idx.Close()
		return nil, indexErr
	}
	if err := idx.Batch(batch); err != nil {
		_ = idx.Close()
		return nil, fmt.Errorf("commit keyword batch: %w", err)
	}
	return ki, nil
}

// keywordMapping indexes exactly the three scored fields as text and
// keeps nothing else.
func keywordMapping() mapping.IndexMapping {
	textField := bleve.NewTextFieldMapping()
	textField.Analyzer = standard.Name
	textField.Store = false
	textField.IncludeInAll = false

	doc := bleve.NewDocumentMapping()
	doc.AddFieldMappingsAt(FieldName, textField)
	doc.AddFieldMappingsAt(FieldDescription, textField)
	doc.AddFieldMappingsAt(FieldCategory, textField)

	im := bleve.NewIndexMapping()
	im.DefaultAnalyzer = standard.Name
	im.DefaultMapping = doc
	return im
}

// Search scores the given terms against the index and returns up to limit
// hits with scores normalized to [0,1]. Ties order by shorter name, then
// code.
func (ki *KeywordIndex) Search(ctx context.Context, terms []string, limit int) ([]KeywordHit, error) {
	ki.mu.RLock()
	defer ki.mu.RUnlock()

	if ki.closed {
		return nil, fmt.Errorf("keyword index is closed")
	}
	if len(terms) == 0 || limit <= 0 {
		return nil, nil
	}

	q := ki.buildQuery(terms)
	req := bleve.NewSearchRequest(q)
	req.Size = limit

	res, err := ki.idx.SearchInContext(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("keyword search: %w", err)
	}
	if len(res.Hits) == 0 {
		return nil, nil
	}

	maxScore := res.Hits[0].Score
	for _, h := range res.Hits {
		if h.Score > maxScore {
			maxScore = h.Score
		}
	}

	hits := make([]KeywordHit, 0, len(res.Hits))
	for _, h := range res.Hits {
		score := 0.0
		if maxScore > 0 {
			score = h.Score / maxScore
		}
		hits = append(hits, KeywordHit{Code: h.ID, Name: ki.names[h.ID], Score: score})
	}

	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		if len(hits[i].Name) != len(hits[j].Name) {
			return len(hits[i].Name) < len(hits[j].Name)
		}
		return hits[i].Code < hits[j].Code
	})
	return hits, nil
}

// buildQuery assembles a disjunction of per-field match queries. Terms
// absent from the indexed vocabulary fall back to fuzzy queries at a
// penalized boost.
func (ki *KeywordIndex) buildQuery(terms []string) query.Query {
	fields := []struct {
		name  string
		boost float64
	}{
		{FieldName, BoostName},
		{FieldDescription, BoostDescription},
		{FieldCategory, BoostCategory},
	}

	var subs []query.Query
	for _, term := range terms {
		_, exact := ki.terms[term]
		for _, f := range fields {
			if exact || strings.Contains(term, " ") {
				mq := bleve.NewMatchQuery(term)
				mq.SetField(f.name)
				mq.SetBoost(f.boost)
				subs = append(subs, mq)
			} else {
				fq := bleve.NewFuzzyQuery(term)
				fq.SetField(f.name)
				fq.SetFuzziness(maxFuzziness)
				fq.SetBoost(f.boost * fuzzyPenalty)
				subs = append(subs, fq)
			}
		}
	}
	return bleve.NewDisjunctionQuery(subs...)
}

// DocCount returns the number of indexed variables.
func (ki *KeywordIndex) DocCount() int {
	ki.mu.RLock()
	defer ki.mu.RUnlock()
	if ki.closed {
		return 0
	}
	n, _ := ki.idx.DocCount()
	return int(n)
}

// Close releases the index. Safe to call twice.
func (ki *KeywordIndex) Close() error {
	ki.mu.Lock()
	defer ki.mu.Unlock()
	if ki.closed {
		return nil
	}
	ki.closed = true
	return ki.idx.Close()
}
