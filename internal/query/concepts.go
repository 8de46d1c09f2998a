package query

import "strings"

// ConceptDictionary maps a category to the surface terms that signal it.
// The dictionary is data, not logic: callers may supply their own via
// ProcessorOption, and tests parameterize over it.
type ConceptDictionary map[ConceptCategory][]string

// DefaultConceptDictionary returns the built-in marketing concept
// dictionary. Multi-word terms are matched against token bigrams.
func DefaultConceptDictionary() ConceptDictionary {
	return ConceptDictionary{
		CategoryDemographic: {
			"millennials", "millennial", "gen z", "gen x", "boomers", "seniors",
			"adults", "teens", "young adults", "parents", "families", "singles",
			"married", "retirees", "students", "age", "aged", "men", "women",
			"male", "female", "homeowners", "renters", "college educated",
		},
		CategoryFinancial: {
			"income", "affluent", "wealthy", "high earners", "disposable income",
			"net worth", "salary", "budget", "spending", "credit", "investors",
			"savings", "premium", "luxury", "value shoppers", "high income",
			"low income", "middle income",
		},
		CategoryGeographic: {
			"urban", "suburban", "rural", "city", "cities", "metro",
			"downtown", "coastal", "regional", "neighborhood", "zip", "state",
			"province", "toronto", "vancouver", "montreal",
		},
		CategoryBehavioral: {
			"shoppers", "buyers", "purchasers", "frequent", "loyal",
			"early adopters", "online shoppers", "in store", "subscription",
			"streaming", "travelers", "commuters", "drivers", "gamers",
			"diners", "fitness", "gym", "donors",
		},
		CategoryPsychographic: {
			"environmentally conscious", "eco friendly", "health conscious",
			"tech savvy", "trendsetters", "conscious", "sustainable",
			"adventurous", "family oriented", "career focused", "luxury minded",
			"price sensitive", "brand loyal",
		},
	}
}

// conceptMatcher is the compiled form of a ConceptDictionary: unigram and
// bigram terms indexed for single-pass matching.
type conceptMatcher struct {
	unigrams map[string]ConceptCategory
	bigrams  map[string]ConceptCategory
}

func compileConceptDictionary(dict ConceptDictionary) *conceptMatcher {
	m := &conceptMatcher{
		unigrams: make(map[string]ConceptCategory),
		bigrams:  make(map[string]ConceptCategory),
	}
	for category, terms := range dict {
		for _, term := range terms {
			term = strings.ToLower(strings.TrimSpace(term))
			if term == "" {
				continue
			}
			if strings.Contains(term, " ") {
				m.bigrams[term] = category
			} else {
				m.unigrams[term] = category
			}
		}
	}
	return m
}

// match emits a concept for each dictionary term found in the token
// stream. Bigrams are tried first; their tokens are still available for
// unigram matches so "high income" also yields "income".
func (m *conceptMatcher) match(tokens []string) []Concept {
	var out []Concept
	seen := make(map[string]struct{})

	emit := func(term string, cat ConceptCategory) {
		if _, dup := seen[term]; dup {
			return
		}
		seen[term] = struct{}{}
		out = append(out, Concept{Term: term, Category: cat})
	}

	for i := 0; i+1 < len(tokens); i++ {
		pair := tokens[i] + " " + tokens[i+1]
		if cat, ok := m.bigrams[pair]; ok {
			emit(pair, cat)
		}
	}
	for _, tok := range tokens {
		if cat, ok := m.unigrams[tok]; ok {
			emit(tok, cat)
		}
	}
	return out
}
