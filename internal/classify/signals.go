package classify

import (
	"regexp"
	"strings"
)

// Signal sources and the weight each one carries in fusion
const (
	SourceVendor  = "vendor"
	SourceItems   = "items"
	SourceKeyword = "keyword"
	SourceModel   = "model"

	WeightVendor  = 0.8
	WeightItems   = 0.6
	WeightKeyword = 0.4
	WeightModel   = 0.7
)

// Signal is the raw output of one classification source
type Signal struct {
	Source  string
	Weight  float64
	Matches []CategoryMatch
}

// vendorMatches looks the vendor up in the vendor table, then falls back to
// name cues. Returns nil when neither knows the vendor.
func vendorMatches(vendor string) []CategoryMatch {
	v := strings.ToLower(strings.TrimSpace(vendor))
	if v == "" {
		return nil
	}
	for _, e := range vendorTable {
		if vendorWord[e.name].MatchString(v) {
			return []CategoryMatch{e.match}
		}
	}
	for _, p := range vendorPatterns {
		for _, cue := range p.cues {
			if strings.Contains(v, cue) {
				return []CategoryMatch{{Category: p.category, Confidence: vendorPatternConfidence}}
			}
		}
	}
	return nil
}

// itemMatches scores each category by the keyword hits of every item, divided
// by the number of items so a single match among many items counts little.
func itemMatches(items []string) []CategoryMatch {
	if len(items) == 0 {
		return nil
	}
	scores := map[string]float64{}
	for _, item := range items {
		name := strings.ToLower(item)
		for _, ck := range itemKeywords {
			for _, kw := range ck.keywords {
				if strings.Contains(name, kw) {
					scores[ck.category] += keywordConfidence(kw, name)
					break
				}
			}
		}
	}
	return fromScores(scores, float64(len(items)))
}

// vendorWord holds a word-boundary pattern per vendorTable name
var vendorWord = func() map[string]*regexp.Regexp {
	m := map[string]*regexp.Regexp{}
	for _, e := range vendorTable {
		m[e.name] = regexp.MustCompile(`\b` + regexp.QuoteMeta(e.name) + `\b`)
	}
	return m
}()

// wholeWord holds a word-boundary pattern per item keyword
var wholeWord = func() map[string]*regexp.Regexp {
	m := map[string]*regexp.Regexp{}
	for _, ck := range itemKeywords {
		for _, kw := range ck.keywords {
			m[kw] = regexp.MustCompile(`\b` + regexp.QuoteMeta(kw) + `\b`)
		}
	}
	return m
}()

// keywordConfidence rates a keyword hit by specificity: longer keywords and
// whole-word hits score higher.
func keywordConfidence(keyword, text string) float64 {
	confidence := 0.5
	switch n := len([]rune(keyword)); {
	case n > 8:
		confidence += 0.3
	case n > 5:
		confidence += 0.2
	case n > 3:
		confidence += 0.1
	}
	if re, ok := wholeWord[keyword]; ok && re.MatchString(text) {
		confidence += 0.2
	}
	return min(confidence, 1.0)
}

// keywordMatches counts keyword occurrences in the full text
func keywordMatches(text string) []CategoryMatch {
	lower := strings.ToLower(text)
	scores := map[string]float64{}
	for _, tk := range textKeywords {
		if n := strings.Count(lower, tk.keyword); n > 0 {
			scores[tk.match.Category] += float64(n) * tk.match.Confidence
		}
	}
	for c, s := range scores {
		scores[c] = min(s, 1.0)
	}
	return fromScores(scores, 1)
}

// fromScores turns a score map into matches in AllCategories order
func fromScores(scores map[string]float64, divisor float64) []CategoryMatch {
	if len(scores) == 0 {
		return nil
	}
	out := make([]CategoryMatch, 0, len(scores))
	for _, c := range AllCategories {
		if s, ok := scores[c]; ok {
			out = append(out, CategoryMatch{Category: c, Confidence: s / divisor})
		}
	}
	return out
}
