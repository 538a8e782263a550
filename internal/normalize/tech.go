package normalize

import (
	"sort"
	"strings"
)

// techTable canonicalizes technology names through a synonym table with an
// exact match first and a bounded edit-distance fallback for near-misses
// ("Reactjs" -> "React"). Unmatched tokens pass through unchanged.
type techTable struct {
	synonyms  map[string]string // lower-cased alias -> canonical name
	canonical []string          // distinct canonical names for fuzzy matching
}

func newTechTable(synonyms map[string]string) *techTable {
	t := &techTable{synonyms: make(map[string]string, len(synonyms))}
	seen := map[string]bool{}
	for alias, canon := range synonyms {
		t.synonyms[strings.ToLower(strings.TrimSpace(alias))] = canon
		if !seen[canon] {
			seen[canon] = true
			t.canonical = append(t.canonical, canon)
		}
	}
	sort.Strings(t.canonical)
	return t
}

// canonicalize maps each tag through the table, deduplicating the result
// while preserving first-seen order.
func (t *techTable) canonicalize(tags []string) []string {
	var out []string
	seen := map[string]bool{}
	for _, tag := range tags {
		name := t.lookup(strings.TrimSpace(tag))
		if name == "" || seen[strings.ToLower(name)] {
			continue
		}
		seen[strings.ToLower(name)] = true
		out = append(out, name)
	}
	return out
}

func (t *techTable) lookup(tag string) string {
	if tag == "" {
		return ""
	}
	lower := strings.ToLower(tag)

	if canon, ok := t.synonyms[lower]; ok {
		return canon
	}

	// Common punctuation variants: "react.js" -> "reactjs".
	stripped := strings.Map(func(r rune) rune {
		switch r {
		case '.', '-', '_', ' ':
			return -1
		}
		return r
	}, lower)
	if canon, ok := t.synonyms[stripped]; ok {
		return canon
	}

	// Edit-distance fallback against canonical names. The threshold scales
	// with length so short names ("Go", "C#") never fuzzy-match.
	best, bestDist := "", 2
	for _, canon := range t.canonical {
		if len(canon) < 5 {
			continue
		}
		d := editDistance(lower, strings.ToLower(canon))
		if d < bestDist {
			best, bestDist = canon, d
		}
	}
	if best != "" {
		return best
	}

	return tag
}

// editDistance is the Levenshtein distance between a and b.
func editDistance(a, b string) int {
	ra, rb := []rune(a), []rune(b)
	prev := make([]int, len(rb)+1)
	curr := make([]int, len(rb)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(ra); i++ {
		curr[0] = i
		for j := 1; j <= len(rb); j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			curr[j] = min3(curr[j-1]+1, prev[j]+1, prev[j-1]+cost)
		}
		prev, curr = curr, prev
	}
	return prev[len(rb)]
}

func min3(a, b, c int) int {
	if b < a {
		a = b
	}
	if c < a {
		a = c
	}
	return a
}
