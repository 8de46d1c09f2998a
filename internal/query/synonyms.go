package query

// SynonymMap maps a surface token to its expansion terms. Expansions are
// additive: the original token always remains in the query.
type SynonymMap map[string][]string

// DefaultSynonymMap returns the built-in expansion table. Entries cover the
// vocabulary gap between how marketers phrase audiences and how catalog
// variables are named.
func DefaultSynonymMap() SynonymMap {
	return SynonymMap{
		"millennials": {"millennial", "gen y", "young adults", "25-40"},
		"millennial":  {"millennials", "gen y", "young adults"},
		"boomers":     {"baby boomers", "seniors", "55+"},
		"seniors":     {"elderly", "retirees", "65+", "older adults"},
		"teens":       {"teenagers", "adolescents", "youth"},
		"kids":        {"children", "child"},
		"parents":     {"families", "households with children", "moms", "dads"},
		"affluent":    {"wealthy", "high income", "high net worth", "upscale"},
		"wealthy":     {"affluent", "high income", "high net worth"},
		"income":      {"earnings", "salary", "household income"},
		"cheap":       {"budget", "value", "discount", "low cost"},
		"luxury":      {"premium", "upscale", "high end"},
		"urban":       {"city", "metro", "metropolitan"},
		"suburban":    {"suburbs", "suburb"},
		"rural":       {"country", "countryside", "small town"},
		"shoppers":    {"buyers", "purchasers", "consumers"},
		"buy":         {"purchase", "shop"},
		"car":         {"auto", "vehicle", "automobile"},
		"cars":        {"autos", "vehicles", "automobiles"},
		"home":        {"house", "household", "residence"},
		"tech":        {"technology", "digital", "electronics"},
		"fitness":     {"exercise", "gym", "workout", "health"},
		"travel":      {"vacation", "trips", "tourism"},
		"eco":         {"green", "sustainable", "environmentally friendly"},
		"pet":         {"pets", "dog", "cat", "animal"},
		"food":        {"grocery", "groceries", "dining"},
		"online":      {"internet", "digital", "ecommerce", "web"},
		"tv":          {"television", "streaming", "video"},
	}
}

// expandTokens returns up to maxPerToken expansions for each token, in
// token order, deduplicated against the tokens themselves and earlier
// expansions.
func expandTokens(tokens []string, syn SynonymMap, maxPerToken int) []string {
	if len(syn) == 0 || maxPerToken <= 0 {
		return nil
	}

	present := make(map[string]struct{}, len(tokens))
	for _, t := range tokens {
		present[t] = struct{}{}
	}

	var out []string
	for _, tok := range tokens {
		added := 0
		for _, exp := range syn[tok] {
			if added >= maxPerToken {
				break
			}
			if _, dup := present[exp]; dup {
				continue
			}
			present[exp] = struct{}{}
			out = append(out, exp)
			added++
		}
	}
	return out
}
