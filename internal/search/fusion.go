package search

import (
	"sort"
	"strings"

	"github.com/segmenta-io/segmenta/internal/catalog"
	"github.com/segmenta-io/segmenta/internal/query"
	"github.com/segmenta-io/segmenta/internal/store"
)

// Default fusion weights. Semantic similarity carries most of the signal;
// keyword scores arbitrate.
const (
	DefaultSemanticWeight = 0.7
	DefaultKeywordWeight  = 0.3

	domainBoost        = 1.1
	conceptBonusUnit   = 0.02
	conceptBonusMaxCnt = 5
)

// Fuse merges keyword and semantic hits into scored candidates. A
// candidate seen by only one index keeps that index's score unweighted, so
// keyword-only results are not halved when the semantic path is down.
func Fuse(kwHits []store.KeywordHit, vecHits []store.VectorHit, w Weights) []Candidate {
	if w.Semantic <= 0 && w.Keyword <= 0 {
		w = Weights{Semantic: DefaultSemanticWeight, Keyword: DefaultKeywordWeight}
	}

	byCode := make(map[string]*Candidate, len(kwHits)+len(vecHits))
	order := make([]string, 0, len(kwHits)+len(vecHits))

	for _, h := range kwHits {
		byCode[h.Code] = &Candidate{
			Code:    h.Code,
			Name:    h.Name,
			Keyword: h.Score,
			Sources: []string{MethodKeyword},
		}
		order = append(order, h.Code)
	}
	for _, h := range vecHits {
		if c, ok := byCode[h.Code]; ok {
			c.Semantic = h.Similarity
			c.Sources = append(c.Sources, MethodSemantic)
			continue
		}
		byCode[h.Code] = &Candidate{
			Code:     h.Code,
			Semantic: h.Similarity,
			Sources:  []string{MethodSemantic},
		}
		order = append(order, h.Code)
	}

	out := make([]Candidate, 0, len(order))
	for _, code := range order {
		c := byCode[code]
		switch {
		case len(c.Sources) == 2:
			c.Fused = w.Semantic*c.Semantic + w.Keyword*c.Keyword
		case c.Sources[0] == MethodSemantic:
			c.Fused = c.Semantic
		default:
			c.Fused = c.Keyword
		}
		out = append(out, *c)
	}
	return out
}

// ApplyBoosts mutates fused scores with the intent/category boost and the
// concept-coverage bonus, then re-sorts. Scores stay within [0,1].
func ApplyBoosts(cands []Candidate, q *query.Query, snap *catalog.Snapshot) {
	if q != nil && (len(q.IntentTags) > 0 || len(q.Concepts) > 0) {
		for i := range cands {
			v := snap.Get(cands[i].Code)
			if v == nil {
				continue
			}
			if matchesIntent(q.IntentTags, v) {
				cands[i].Fused *= domainBoost
			}
			if n := countConceptMatches(q.Concepts, v); n > 0 {
				cands[i].ConceptMatches = n
				if n > conceptBonusMaxCnt {
					n = conceptBonusMaxCnt
				}
				cands[i].Fused += conceptBonusUnit * float64(n)
			}
			if cands[i].Fused > 1.0 {
				cands[i].Fused = 1.0
			}
		}
	}
	SortCandidates(cands)
}

// SortCandidates orders by fused desc, keyword desc, code asc.
func SortCandidates(cands []Candidate) {
	sort.SliceStable(cands, func(i, j int) bool {
		if cands[i].Fused != cands[j].Fused {
			return cands[i].Fused > cands[j].Fused
		}
		if cands[i].Keyword != cands[j].Keyword {
			return cands[i].Keyword > cands[j].Keyword
		}
		return cands[i].Code < cands[j].Code
	})
}

// matchesIntent reports whether any intent tag refers to the variable's
// category, domain, or theme. Tag and facet vocabularies differ slightly
// ("finance" vs "Financial"), so matching is on a shared prefix.
func matchesIntent(tags []string, v *catalog.Variable) bool {
	facets := []string{
		strings.ToLower(v.Category),
		strings.ToLower(v.Domain),
		strings.ToLower(v.Theme),
	}
	for _, tag := range tags {
		tag = strings.ToLower(tag)
		for _, facet := range facets {
			if facet == "" {
				continue
			}
			if sharedPrefix(tag, facet) >= 5 {
				return true
			}
		}
	}
	return false
}

func sharedPrefix(a, b string) int {
	n := 0
	for n < len(a) && n < len(b) && a[n] == b[n] {
		n++
	}
	return n
}

// countConceptMatches counts distinct query concepts whose term occurs in
// the variable's name, description, or keywords.
func countConceptMatches(concepts []query.Concept, v *catalog.Variable) int {
	if len(concepts) == 0 {
		return 0
	}
	text := strings.ToLower(v.Name + " " + v.Description + " " + strings.Join(v.Keywords, " "))
	n := 0
	for _, c := range concepts {
		if strings.Contains(text, c.Term) {
			n++
		}
	}
	return n
}
