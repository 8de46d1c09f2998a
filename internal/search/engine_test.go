package search

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/segmenta-io/segmenta/internal/catalog"
	"github.com/segmenta-io/segmenta/internal/config"
	"github.com/segmenta-io/segmenta/internal/embed"
	segerrors "github.com/segmenta-io/segmenta/internal/errors"
	"github.com/segmenta-io/segmenta/internal/query"
)

type stubProvider struct {
	vec []float32
	err error
}

func (s *stubProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	return s.vec, s.err
}

func (s *stubProvider) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if s.err != nil {
		return nil, s.err
	}
	out := make([][]float32, len(texts))
	for i := range out {
		out[i] = s.vec
	}
	return out, nil
}

func (s *stubProvider) Dimensions() int   { return len(s.vec) }
func (s *stubProvider) ModelName() string { return "stub" }
func (s *stubProvider) Close() error      { return nil }

func engineSnapshot() *catalog.Snapshot {
	vars := []*catalog.Variable{
		{
			Code: "FIN_INC", Name: "Household Income",
			Description: "annual household income bracket",
			Category:    "Financial", Theme: "Money",
			Embedding: []float32{1, 0, 0},
		},
		{
			Code: "DEM_AGE", Name: "Age Group",
			Description: "age bands for adults",
			Category:    "Demographics", Theme: "People",
			Embedding: []float32{0, 1, 0},
		},
		{
			Code: "BEH_SHOP", Name: "Online Shoppers",
			Description: "shops online frequently",
			Category:    "Behavioral", Theme: "Commerce",
			Embedding: []float32{0, 0, 1},
		},
	}
	for _, v := range vars {
		v.Keywords = catalog.DeriveKeywords(v.Name, v.Description, v.Category)
	}
	return catalog.NewSnapshot(vars, 3, "stub")
}

func newTestEngine(t *testing.T, provider *stubProvider) *Engine {
	t.Helper()
	cfg := config.SearchConfig{
		SemanticWeight: 0.7, KeywordWeight: 0.3,
		DefaultTopK: 50, MaxTopK: 200, SemanticCandidates: 200,
	}
	var p embed.Provider
	if provider != nil {
		p = provider
	}
	e := NewEngine(cfg, config.SimilarityConfig{}, p, nil)

	set, err := BuildIndexSet(engineSnapshot(), 1000)
	require.NoError(t, err)
	t.Cleanup(func() { _ = set.Close() })
	e.Swap(set)
	return e
}

func incomeQuery() *query.Query {
	return &query.Query{
		Raw:        "household income",
		Normalized: "household income",
		Tokens:     []string{"household", "income"},
	}
}

func TestEngineKeywordOnly(t *testing.T) {
	e := newTestEngine(t, nil)

	res, err := e.Search(context.Background(), incomeQuery(), Options{UseKeyword: true})
	require.NoError(t, err)
	require.NotEmpty(t, res.Candidates)

	assert.Equal(t, "FIN_INC", res.Candidates[0].Code)
	assert.Contains(t, res.Candidates[0].MatchedKeywords, "income")
	assert.Equal(t, []string{MethodKeyword}, res.MethodsUsed)
	assert.Empty(t, res.Warnings)
}

func TestEnginePinnedSetSurvivesSwap(t *testing.T) {
	e := newTestEngine(t, nil)
	pinned := e.Current()

	// A reload lands mid-request: only DEM_AGE survives.
	replacement, err := BuildIndexSet(catalog.NewSnapshot([]*catalog.Variable{
		{Code: "DEM_AGE", Name: "Age Group", Description: "age bands for adults",
			Category: "Demographics", Theme: "People", Embedding: []float32{0, 1, 0}},
	}, 3, "stub"), 1000)
	require.NoError(t, err)
	t.Cleanup(func() { _ = replacement.Close() })
	e.Swap(replacement)

	// The request keeps answering from the set it pinned.
	res, err := e.SearchIndex(context.Background(), pinned, incomeQuery(), Options{UseKeyword: true})
	require.NoError(t, err)
	require.NotEmpty(t, res.Candidates)
	assert.Equal(t, "FIN_INC", res.Candidates[0].Code)
	assert.Equal(t, pinned.Snapshot.Version(), res.SnapshotVersion)

	_, err = e.SearchIndex(context.Background(), nil, incomeQuery(), Options{UseKeyword: true})
	require.Error(t, err)
	assert.Equal(t, segerrors.ErrCodeSnapshotUnavailable, segerrors.GetCode(err))
}

func TestEngineSemanticUnavailableWhenNoProvider(t *testing.T) {
	e := newTestEngine(t, nil)

	res, err := e.Search(context.Background(), incomeQuery(), Options{UseKeyword: true, UseSemantic: true})
	require.NoError(t, err)
	assert.Contains(t, res.Warnings, WarningSemanticUnavailable)
	assert.Equal(t, []string{MethodKeyword}, res.MethodsUsed)
}

func TestEngineSemanticFailureDegrades(t *testing.T) {
	e := newTestEngine(t, &stubProvider{vec: []float32{1, 0, 0}, err: errors.New("provider down")})

	res, err := e.Search(context.Background(), incomeQuery(), Options{UseKeyword: true, UseSemantic: true})
	require.NoError(t, err)
	assert.Contains(t, res.Warnings, WarningSemanticUnavailable)
	assert.Equal(t, []string{MethodKeyword}, res.MethodsUsed)
	require.NotEmpty(t, res.Candidates)
}

func TestEngineHybridSearch(t *testing.T) {
	e := newTestEngine(t, &stubProvider{vec: []float32{1, 0, 0}})

	res, err := e.Search(context.Background(), incomeQuery(), Options{UseKeyword: true, UseSemantic: true})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{MethodKeyword, MethodSemantic}, res.MethodsUsed)
	assert.Empty(t, res.Warnings)

	require.NotEmpty(t, res.Candidates)
	assert.Equal(t, "FIN_INC", res.Candidates[0].Code)
	for _, c := range res.Candidates {
		assert.GreaterOrEqual(t, c.Fused, 0.0)
		assert.LessOrEqual(t, c.Fused, 1.0)
	}
}

func TestEngineNoSnapshot(t *testing.T) {
	e := NewEngine(config.SearchConfig{}, config.SimilarityConfig{}, nil, nil)

	_, err := e.Search(context.Background(), incomeQuery(), Options{UseKeyword: true})
	require.Error(t, err)
	assert.Equal(t, segerrors.ErrCodeSnapshotUnavailable, segerrors.GetCode(err))
}

func TestEngineTopKClamping(t *testing.T) {
	e := newTestEngine(t, nil)

	res, err := e.Search(context.Background(), incomeQuery(), Options{UseKeyword: true, TopK: 5000})
	require.NoError(t, err)
	assert.NotEmpty(t, res.Warnings)

	res, err = e.Search(context.Background(), incomeQuery(), Options{UseKeyword: true, TopK: -1})
	require.NoError(t, err)
	assert.NotEmpty(t, res.Warnings)
	assert.LessOrEqual(t, len(res.Candidates), 1)
}

func TestEngineCategoryFilter(t *testing.T) {
	e := newTestEngine(t, nil)

	q := &query.Query{Normalized: "income age shoppers", Tokens: []string{"income", "age", "shoppers"}}
	res, err := e.Search(context.Background(), q, Options{UseKeyword: true, Category: "financial"})
	require.NoError(t, err)
	for _, c := range res.Candidates {
		assert.Equal(t, "FIN_INC", c.Code)
	}
}

func TestEngineResultLimit(t *testing.T) {
	e := newTestEngine(t, nil)

	q := &query.Query{Normalized: "income age shoppers", Tokens: []string{"income", "age", "shoppers"}}
	res, err := e.Search(context.Background(), q, Options{UseKeyword: true, TopK: 1})
	require.NoError(t, err)
	assert.Len(t, res.Candidates, 1)
	assert.GreaterOrEqual(t, res.TotalFound, 1)
}

func TestEngineSwapReturnsPrevious(t *testing.T) {
	e := newTestEngine(t, nil)

	prev := e.Current()
	require.NotNil(t, prev)

	set, err := BuildIndexSet(engineSnapshot(), 1000)
	require.NoError(t, err)
	t.Cleanup(func() { _ = set.Close() })

	old := e.Swap(set)
	assert.Same(t, prev, old)
	assert.Same(t, set, e.Current())
}
