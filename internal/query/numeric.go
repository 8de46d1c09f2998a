package query

import (
	"regexp"
	"strconv"
	"strings"
)

// numericPatterns holds the compiled regexes for numeric-range recognition.
// Compilation happens inside the NLP extractor init so a pathological
// pattern set cannot stall request handling.
type numericPatterns struct {
	between  *regexp.Regexp // "between 25 and 34"
	span     *regexp.Regexp // "25-34", "25 to 34"
	over     *regexp.Regexp // "over 100k", "more than 50000", "above 80k"
	under    *regexp.Regexp // "under 50k", "less than 30000", "below 20k"
	plus     *regexp.Regexp // "18+", "100k+"
	percent  *regexp.Regexp // "20%", "top 10%"
	ageHint  *regexp.Regexp
	moneyHint *regexp.Regexp
}

const amount = `\$?(\d+(?:\.\d+)?)(k|m)?`

func compileNumericPatterns() *numericPatterns {
	return &numericPatterns{
		between:   regexp.MustCompile(`between\s+` + amount + `\s+and\s+` + amount),
		span:      regexp.MustCompile(amount + `\s*(?:-|to)\s*` + amount),
		over:      regexp.MustCompile(`(?:over|above|more than|at least|\bmin(?:imum)?)\s+` + amount),
		under:     regexp.MustCompile(`(?:under|below|less than|at most|\bmax(?:imum)?)\s+` + amount),
		plus:      regexp.MustCompile(amount + `\+`),
		percent:   regexp.MustCompile(`(\d+(?:\.\d+)?)\s*(?:%|percent)`),
		ageHint:   regexp.MustCompile(`\b(?:age|aged|ages|years old|year olds)\b`),
		moneyHint: regexp.MustCompile(`\b(?:income|salary|earn|earning|earners|spend|worth|household)\b|\$`),
	}
}

// extract recognizes numeric ranges in normalized query text.
func (p *numericPatterns) extract(normalized string) []NumericRange {
	var out []NumericRange
	claimed := make([]bool, len(normalized))

	claim := func(lo, hi int) bool {
		for i := lo; i < hi && i < len(claimed); i++ {
			if claimed[i] {
				return false
			}
		}
		for i := lo; i < hi && i < len(claimed); i++ {
			claimed[i] = true
		}
		return true
	}

	for _, m := range p.between.FindAllStringSubmatchIndex(normalized, -1) {
		if !claim(m[0], m[1]) {
			continue
		}
		low := parseAmount(group(normalized, m, 1), group(normalized, m, 2))
		high := parseAmount(group(normalized, m, 3), group(normalized, m, 4))
		field := p.fieldAt(normalized, m[0], m[1], group(normalized, m, 2) != "")
		out = append(out, NumericRange{Field: field, Low: low, High: high, HasLow: true, HasHigh: true})
	}

	for _, m := range p.span.FindAllStringSubmatchIndex(normalized, -1) {
		if !claim(m[0], m[1]) {
			continue
		}
		low := parseAmount(group(normalized, m, 1), group(normalized, m, 2))
		high := parseAmount(group(normalized, m, 3), group(normalized, m, 4))
		if high < low {
			continue
		}
		field := p.fieldAt(normalized, m[0], m[1], group(normalized, m, 2) != "" || group(normalized, m, 4) != "")
		out = append(out, NumericRange{Field: field, Low: low, High: high, HasLow: true, HasHigh: true})
	}

	for _, m := range p.over.FindAllStringSubmatchIndex(normalized, -1) {
		if !claim(m[0], m[1]) {
			continue
		}
		low := parseAmount(group(normalized, m, 1), group(normalized, m, 2))
		field := p.fieldAt(normalized, m[0], m[1], group(normalized, m, 2) != "")
		out = append(out, NumericRange{Field: field, Low: low, HasLow: true})
	}

	for _, m := range p.under.FindAllStringSubmatchIndex(normalized, -1) {
		if !claim(m[0], m[1]) {
			continue
		}
		high := parseAmount(group(normalized, m, 1), group(normalized, m, 2))
		field := p.fieldAt(normalized, m[0], m[1], group(normalized, m, 2) != "")
		out = append(out, NumericRange{Field: field, High: high, HasHigh: true})
	}

	for _, m := range p.plus.FindAllStringSubmatchIndex(normalized, -1) {
		if !claim(m[0], m[1]) {
			continue
		}
		low := parseAmount(group(normalized, m, 1), group(normalized, m, 2))
		field := p.fieldAt(normalized, m[0], m[1], group(normalized, m, 2) != "")
		out = append(out, NumericRange{Field: field, Low: low, HasLow: true})
	}

	for _, m := range p.percent.FindAllStringSubmatchIndex(normalized, -1) {
		if !claim(m[0], m[1]) {
			continue
		}
		v, _ := strconv.ParseFloat(group(normalized, m, 1), 64)
		out = append(out, NumericRange{Field: "percent", Low: v, High: v, HasLow: true, HasHigh: true})
	}

	return out
}

// fieldAt guesses whether a matched range refers to age or income by
// looking at a small window of text around the match. A magnitude suffix
// ($100k, 1.5m) is a strong income signal on its own.
func (p *numericPatterns) fieldAt(s string, lo, hi int, moneySuffix bool) string {
	if moneySuffix {
		return "income"
	}

	start := lo - 24
	if start < 0 {
		start = 0
	}
	end := hi + 12
	if end > len(s) {
		end = len(s)
	}
	window := s[start:end]

	money := p.moneyHint.MatchString(window)
	age := p.ageHint.MatchString(window)
	switch {
	case money:
		return "income"
	case age:
		return "age"
	default:
		return ""
	}
}

// parseAmount converts "100"/"100k"/"1.5m"/"$80k" captures to a float value.
func parseAmount(num, suffix string) float64 {
	v, err := strconv.ParseFloat(num, 64)
	if err != nil {
		return 0
	}
	switch strings.ToLower(suffix) {
	case "k":
		v *= 1_000
	case "m":
		v *= 1_000_000
	}
	return v
}

func group(s string, idx []int, n int) string {
	lo, hi := idx[2*n], idx[2*n+1]
	if lo < 0 || hi < 0 {
		return ""
	}
	return s[lo:hi]
}
