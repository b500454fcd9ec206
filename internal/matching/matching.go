package matching

import (
	"strings"
	"unicode/utf8"

	"github.com/arbovm/levenshtein"
)

// Kind is the tier that produced a match
type Kind string

const (
	MatchExact    Kind = "exact"
	MatchContains Kind = "contains"
	MatchFuzzy    Kind = "fuzzy"
)

// Match is the best candidate for a query
type Match struct {
	Candidate  string  `json:"candidate"`
	Index      int     `json:"index"`
	Kind       Kind    `json:"kind"`
	Similarity float64 `json:"similarity"`
}

// Accepted applies a caller policy: exact and containment matches are always
// accepted, fuzzy ones only when their similarity reaches min.
func (m *Match) Accepted(min float64) bool {
	if m == nil {
		return false
	}
	if m.Kind != MatchFuzzy {
		return true
	}
	return m.Similarity >= min
}

// Similarity is 1 - levenshtein(a, b) / max(len(a), len(b)) over the lower
// cased strings, measured in runes. Two empty strings are identical.
func Similarity(a, b string) float64 {
	a, b = strings.ToLower(a), strings.ToLower(b)
	longest := max(utf8.RuneCountInString(a), utf8.RuneCountInString(b))
	if longest == 0 {
		return 1
	}
	return 1 - float64(levenshtein.Distance(a, b))/float64(longest)
}

// Find returns the best candidate for query, or nil for an empty query or
// pool. Tiers are tried in order: case-insensitive equality, containment in
// either direction, then plain similarity. Find never rejects a fuzzy match;
// use Match.Accepted for that.
func Find(query string, candidates []string) *Match {
	q := normalize(query)
	if q == "" || len(candidates) == 0 {
		return nil
	}

	for i, c := range candidates {
		if normalize(c) == q {
			return &Match{Candidate: c, Index: i, Kind: MatchExact, Similarity: 1}
		}
	}

	if m := best(q, candidates, func(c string) bool {
		return c != "" && (strings.Contains(c, q) || strings.Contains(q, c))
	}); m != nil {
		m.Kind = MatchContains
		return m
	}

	m := best(q, candidates, func(string) bool { return true })
	m.Kind = MatchFuzzy
	return m
}

// best returns the most similar candidate accepted by keep; the first one
// wins on ties.
func best(q string, candidates []string, keep func(string) bool) *Match {
	var m *Match
	for i, c := range candidates {
		n := normalize(c)
		if !keep(n) {
			continue
		}
		s := Similarity(q, n)
		if m == nil || s > m.Similarity {
			m = &Match{Candidate: c, Index: i, Similarity: s}
		}
	}
	return m
}

func normalize(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}
