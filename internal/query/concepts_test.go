package query

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

// Dictionary content is configuration, so tests inject their own terms
// instead of asserting on the shipped defaults.
func testDictionary() ConceptDictionary {
	return ConceptDictionary{
		CategoryDemographic: {"millennials", "parents", "young adults"},
		CategoryFinancial:   {"income", "affluent", "high income"},
		CategoryGeographic:  {"urban"},
	}
}

func TestConceptMatching(t *testing.T) {
	m := compileConceptDictionary(testDictionary())

	tests := []struct {
		name string
		in   string
		want []Concept
	}{
		{
			name: "unigrams",
			in:   "affluent millennials",
			want: []Concept{
				{Term: "affluent", Category: CategoryFinancial},
				{Term: "millennials", Category: CategoryDemographic},
			},
		},
		{
			name: "bigram plus contained unigram",
			in:   "high income households",
			want: []Concept{
				{Term: "high income", Category: CategoryFinancial},
				{Term: "income", Category: CategoryFinancial},
			},
		},
		{
			name: "duplicate terms emitted once",
			in:   "urban urban urban",
			want: []Concept{{Term: "urban", Category: CategoryGeographic}},
		},
		{
			name: "no matches",
			in:   "scuba divers",
			want: nil,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := m.match(strings.Fields(tt.in))
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestConceptMatchingBigramOrder(t *testing.T) {
	m := compileConceptDictionary(testDictionary())

	got := m.match(strings.Fields("young adults with income"))
	assert.Equal(t, []Concept{
		{Term: "young adults", Category: CategoryDemographic},
		{Term: "income", Category: CategoryFinancial},
	}, got)
}

func TestDefaultConceptDictionaryCoversAllCategories(t *testing.T) {
	dict := DefaultConceptDictionary()
	for _, cat := range []ConceptCategory{
		CategoryDemographic,
		CategoryFinancial,
		CategoryGeographic,
		CategoryBehavioral,
		CategoryPsychographic,
	} {
		assert.NotEmpty(t, dict[cat], "category %s", cat)
	}
}
