package search

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/segmenta-io/segmenta/internal/catalog"
	"github.com/segmenta-io/segmenta/internal/query"
	"github.com/segmenta-io/segmenta/internal/store"
)

func TestFuseWeightedCombination(t *testing.T) {
	kw := []store.KeywordHit{{Code: "A", Name: "A", Score: 1.0}}
	vec := []store.VectorHit{{Code: "A", Similarity: 0.8}}

	cands := Fuse(kw, vec, Weights{Semantic: 0.7, Keyword: 0.3})
	require.Len(t, cands, 1)
	assert.InDelta(t, 0.7*0.8+0.3*1.0, cands[0].Fused, 1e-9)
	assert.ElementsMatch(t, []string{MethodKeyword, MethodSemantic}, cands[0].Sources)
}

func TestFuseSingleContributorPassthrough(t *testing.T) {
	kw := []store.KeywordHit{{Code: "K", Name: "K", Score: 0.9}}
	vec := []store.VectorHit{{Code: "S", Similarity: 0.6}}

	cands := Fuse(kw, vec, Weights{Semantic: 0.7, Keyword: 0.3})
	require.Len(t, cands, 2)

	byCode := map[string]Candidate{}
	for _, c := range cands {
		byCode[c.Code] = c
	}
	// Neither score is halved by the missing contributor.
	assert.InDelta(t, 0.9, byCode["K"].Fused, 1e-9)
	assert.InDelta(t, 0.6, byCode["S"].Fused, 1e-9)
}

func TestFuseZeroWeightsFallBackToDefaults(t *testing.T) {
	kw := []store.KeywordHit{{Code: "A", Name: "A", Score: 0.5}}
	vec := []store.VectorHit{{Code: "A", Similarity: 0.5}}

	cands := Fuse(kw, vec, Weights{})
	require.Len(t, cands, 1)
	assert.InDelta(t, 0.5, cands[0].Fused, 1e-9)
}

func boostSnapshot() *catalog.Snapshot {
	return catalog.NewSnapshot([]*catalog.Variable{
		{Code: "FIN", Name: "Household Income", Description: "annual income bracket", Category: "Financial"},
		{Code: "DEM", Name: "Age Group", Description: "age bands", Category: "Demographics"},
	}, 0, "")
}

func TestApplyBoostsDomainBoost(t *testing.T) {
	cands := []Candidate{
		{Code: "FIN", Name: "Household Income", Fused: 0.5},
		{Code: "DEM", Name: "Age Group", Fused: 0.5},
	}
	q := &query.Query{IntentTags: []string{"finance"}}

	ApplyBoosts(cands, q, boostSnapshot())

	// "finance" shares a 5-char prefix with "financial"; FIN is boosted
	// ahead of DEM.
	assert.Equal(t, "FIN", cands[0].Code)
	assert.InDelta(t, 0.55, cands[0].Fused, 1e-9)
	assert.InDelta(t, 0.5, cands[1].Fused, 1e-9)
}

func TestApplyBoostsCapAtOne(t *testing.T) {
	cands := []Candidate{{Code: "FIN", Name: "Household Income", Fused: 0.99}}
	q := &query.Query{
		IntentTags: []string{"finance"},
		Concepts:   []query.Concept{{Term: "income", Category: query.CategoryFinancial}},
	}

	ApplyBoosts(cands, q, boostSnapshot())
	assert.Equal(t, 1.0, cands[0].Fused)
}

func TestApplyBoostsConceptCoverage(t *testing.T) {
	cands := []Candidate{{Code: "FIN", Name: "Household Income", Fused: 0.5}}
	q := &query.Query{
		Concepts: []query.Concept{
			{Term: "income", Category: query.CategoryFinancial},
			{Term: "household", Category: query.CategoryDemographic},
			{Term: "scuba", Category: query.CategoryBehavioral},
		},
	}

	ApplyBoosts(cands, q, boostSnapshot())
	assert.Equal(t, 2, cands[0].ConceptMatches)
	assert.InDelta(t, 0.5+0.02*2, cands[0].Fused, 1e-9)
}

func TestSortCandidatesOrdering(t *testing.T) {
	cands := []Candidate{
		{Code: "C", Fused: 0.5, Keyword: 0.2},
		{Code: "A", Fused: 0.5, Keyword: 0.9},
		{Code: "B", Fused: 0.9},
		{Code: "D", Fused: 0.5, Keyword: 0.2},
	}
	SortCandidates(cands)

	got := make([]string, len(cands))
	for i, c := range cands {
		got[i] = c.Code
	}
	assert.Equal(t, []string{"B", "A", "C", "D"}, got)
}
