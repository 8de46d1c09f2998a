// Package query turns free-form audience descriptions into structured
// queries: normalized text, extracted concepts, numeric ranges, synonym
// expansions, and domain intent tags. Every pipeline stage is optional and
// independently disablable; a degraded pipeline still yields a valid Query.
package query

// ConceptCategory labels an extracted concept.
type ConceptCategory string

const (
	CategoryDemographic   ConceptCategory = "demographic"
	CategoryFinancial     ConceptCategory = "financial"
	CategoryGeographic    ConceptCategory = "geographic"
	CategoryBehavioral    ConceptCategory = "behavioral"
	CategoryPsychographic ConceptCategory = "psychographic"
)

// Concept is a labeled extraction from the query text.
type Concept struct {
	Term     string          `json:"term"`
	Category ConceptCategory `json:"category"`
}

// NumericRange is a recognized numeric constraint, e.g. age 25-34 or
// income over 100000. Bounds are open when the corresponding Has flag
// is false.
type NumericRange struct {
	Field   string  `json:"field"` // age, income, percent, or "" when unknown
	Low     float64 `json:"low"`
	High    float64 `json:"high"`
	HasLow  bool    `json:"has_low"`
	HasHigh bool    `json:"has_high"`
}

// Query is the structured representation of a user request. Built per
// request and discarded after scoring.
type Query struct {
	// Raw is the original text as submitted.
	Raw string `json:"raw"`

	// Normalized is the lowercased, punctuation-stripped, spell-corrected text.
	Normalized string `json:"normalized"`

	// Tokens are the normalized surface tokens.
	Tokens []string `json:"tokens"`

	// Concepts are labeled extractions from the text.
	Concepts []Concept `json:"concepts"`

	// NumericRanges are recognized numeric constraints.
	NumericRanges []NumericRange `json:"numeric_ranges,omitempty"`

	// Expansions are synonyms and related terms, up to k per surface token.
	Expansions []string `json:"expansions,omitempty"`

	// IntentTags are domain tags assigned by the rule-based classifier.
	IntentTags []string `json:"intent_tags,omitempty"`

	// Corrections maps misspelled tokens to their lexicon corrections.
	Corrections map[string]string `json:"corrections,omitempty"`

	// Degraded is set when the NLP-backed stages (numeric and concept
	// extraction) were skipped due to init failure or configuration.
	Degraded bool `json:"degraded,omitempty"`
}

// ConceptCategories returns the distinct categories present, in first-seen
// order.
func (q *Query) ConceptCategories() []ConceptCategory {
	seen := make(map[ConceptCategory]struct{}, len(q.Concepts))
	var out []ConceptCategory
	for _, c := range q.Concepts {
		if _, ok := seen[c.Category]; ok {
			continue
		}
		seen[c.Category] = struct{}{}
		out = append(out, c.Category)
	}
	return out
}

// HasIntent reports whether the query carries the given domain tag.
func (q *Query) HasIntent(tag string) bool {
	for _, t := range q.IntentTags {
		if t == tag {
			return true
		}
	}
	return false
}

// SearchTerms returns tokens plus expansions, deduplicated, for keyword
// retrieval.
func (q *Query) SearchTerms() []string {
	seen := make(map[string]struct{}, len(q.Tokens)+len(q.Expansions))
	out := make([]string, 0, len(q.Tokens)+len(q.Expansions))
	for _, lists := range [][]string{q.Tokens, q.Expansions} {
		for _, t := range lists {
			if _, ok := seen[t]; ok {
				continue
			}
			seen[t] = struct{}{}
			out = append(out, t)
		}
	}
	return out
}
