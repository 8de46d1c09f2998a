package query

// Domain tags assigned by the rule-based intent classifier. A domain is
// tagged when at least minConceptsPerDomain extracted concepts fall into
// its category, so a single stray term never flips intent.
const minConceptsPerDomain = 2

var domainForCategory = map[ConceptCategory]string{
	CategoryDemographic:   "demographics",
	CategoryFinancial:     "finance",
	CategoryGeographic:    "geography",
	CategoryBehavioral:    "behavior",
	CategoryPsychographic: "lifestyle",
}

// classifyIntent derives domain tags from extracted concepts and numeric
// ranges. Numeric age and income constraints count toward their domains
// like concepts do.
func classifyIntent(concepts []Concept, ranges []NumericRange) []string {
	counts := make(map[ConceptCategory]int)
	for _, c := range concepts {
		counts[c.Category]++
	}
	for _, r := range ranges {
		switch r.Field {
		case "age":
			counts[CategoryDemographic]++
		case "income":
			counts[CategoryFinancial]++
		}
	}

	var tags []string
	// Deterministic order regardless of map iteration.
	for _, cat := range []ConceptCategory{
		CategoryDemographic,
		CategoryFinancial,
		CategoryGeographic,
		CategoryBehavioral,
		CategoryPsychographic,
	} {
		if counts[cat] >= minConceptsPerDomain {
			tags = append(tags, domainForCategory[cat])
		}
	}
	return tags
}
