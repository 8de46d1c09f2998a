package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/segmenta-io/segmenta/internal/catalog"
)

func testSnapshot(t *testing.T) *catalog.Snapshot {
	t.Helper()
	vars := []*catalog.Variable{
		{
			Code:        "DEM_AGE_2534",
			Name:        "Age 25-34",
			Description: "Adults between twenty five and thirty four years of age",
			Category:    "Demographics",
		},
		{
			Code:        "FIN_INC_100K",
			Name:        "Household Income $100K+",
			Description: "Households with annual income above one hundred thousand",
			Category:    "Financial",
		},
		{
			Code:        "FIN_INC_HIGH",
			Name:        "High Income Earners",
			Description: "Top earners by household income bracket",
			Category:    "Financial",
		},
		{
			Code:        "BEH_SHOP_ONLINE",
			Name:        "Online Shoppers",
			Description: "Consumers who frequently shop online",
			Category:    "Behavioral",
		},
	}
	return catalog.NewSnapshot(vars, 0, "")
}

func newTestKeywordIndex(t *testing.T) *KeywordIndex {
	t.Helper()
	ki, err := NewKeywordIndex(testSnapshot(t))
	require.NoError(t, err)
	t.Cleanup(func() { _ = ki.Close() })
	return ki
}

func TestKeywordSearchNameOutranksDescription(t *testing.T) {
	ki := newTestKeywordIndex(t)

	hits, err := ki.Search(context.Background(), []string{"income"}, 10)
	require.NoError(t, err)
	require.NotEmpty(t, hits)

	codes := make([]string, len(hits))
	for i, h := range hits {
		codes[i] = h.Code
	}
	// Both income variables carry the term in the name; the shoppers
	// variable must not appear.
	assert.Contains(t, codes, "FIN_INC_100K")
	assert.Contains(t, codes, "FIN_INC_HIGH")
	assert.NotContains(t, codes, "BEH_SHOP_ONLINE")
}

func TestKeywordSearchScoresNormalized(t *testing.T) {
	ki := newTestKeywordIndex(t)

	hits, err := ki.Search(context.Background(), []string{"income", "household"}, 10)
	require.NoError(t, err)
	require.NotEmpty(t, hits)

	assert.InDelta(t, 1.0, hits[0].Score, 1e-9)
	for _, h := range hits {
		assert.GreaterOrEqual(t, h.Score, 0.0)
		assert.LessOrEqual(t, h.Score, 1.0)
	}
	for i := 1; i < len(hits); i++ {
		assert.LessOrEqual(t, hits[i].Score, hits[i-1].Score)
	}
}

func TestKeywordSearchFuzzyFallback(t *testing.T) {
	ki := newTestKeywordIndex(t)

	// "incone" is not in the vocabulary; fuzzy matching should still
	// reach the income variables.
	hits, err := ki.Search(context.Background(), []string{"incone"}, 10)
	require.NoError(t, err)
	require.NotEmpty(t, hits)

	codes := make([]string, len(hits))
	for i, h := range hits {
		codes[i] = h.Code
	}
	assert.Contains(t, codes, "FIN_INC_100K")
}

func TestKeywordSearchFuzzyPenalized(t *testing.T) {
	ki := newTestKeywordIndex(t)

	exact, err := ki.Search(context.Background(), []string{"shoppers"}, 10)
	require.NoError(t, err)
	fuzzy, err := ki.Search(context.Background(), []string{"shopperz"}, 10)
	require.NoError(t, err)

	require.NotEmpty(t, exact)
	require.NotEmpty(t, fuzzy)
	assert.Equal(t, exact[0].Code, fuzzy[0].Code)
}

func TestKeywordSearchEmptyInputs(t *testing.T) {
	ki := newTestKeywordIndex(t)

	hits, err := ki.Search(context.Background(), nil, 10)
	require.NoError(t, err)
	assert.Empty(t, hits)

	hits, err = ki.Search(context.Background(), []string{"income"}, 0)
	require.NoError(t, err)
	assert.Empty(t, hits)
}

func TestKeywordSearchLimit(t *testing.T) {
	ki := newTestKeywordIndex(t)

	hits, err := ki.Search(context.Background(), []string{"income", "online", "age"}, 1)
	require.NoError(t, err)
	assert.Len(t, hits, 1)
}

func TestKeywordIndexDocCount(t *testing.T) {
	ki := newTestKeywordIndex(t)
	assert.Equal(t, 4, ki.DocCount())
}

func TestKeywordIndexClosed(t *testing.T) {
	ki, err := NewKeywordIndex(testSnapshot(t))
	require.NoError(t, err)
	require.NoError(t, ki.Close())
	require.NoError(t, ki.Close())

	_, err = ki.Search(context.Background(), []string{"income"}, 10)
	assert.Error(t, err)
	assert.Equal(t, 0, ki.DocCount())
}
