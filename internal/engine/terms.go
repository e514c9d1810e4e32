package engine

import (
	"sort"
	"strings"
)

// stopwords excluded from key-term extraction. Kept small: the goal is a
// cheap lexical overlap signal, not linguistic precision.
var stopwords = map[string]bool{
	"the": true, "and": true, "for": true, "are": true, "but": true,
	"not": true, "with": true, "this": true, "that": true, "from": true,
	"was": true, "were": true, "will": true, "have": true, "has": true,
	"had": true, "our": true, "their": true, "its": true, "into": true,
	"than": true, "then": true, "them": true, "they": true, "there": true,
	"what": true, "when": true, "where": true, "which": true, "who": true,
	"how": true, "why": true, "should": true, "would": true, "could": true,
	"can": true, "all": true, "any": true, "been": true, "being": true,
	"does": true, "about": true, "over": true, "under": true, "more": true,
	"most": true, "some": true, "such": true, "only": true, "also": true,
	"now": true, "today": true, "going": true, "forward": true,
}

// ExtractKeyTerms returns up to limit distinct key terms for a text,
// ordered by descending frequency then alphabetically. Terms are lowercase
// tokens with stopwords removed.
func ExtractKeyTerms(text string, limit int) []string {
	if limit <= 0 {
		limit = 12
	}

	freq := make(map[string]int)
	for _, tok := range tokenize(text) {
		if stopwords[tok] || len(tok) < 3 {
			continue
		}
		freq[tok]++
	}
	if len(freq) == 0 {
		return nil
	}

	terms := make([]string, 0, len(freq))
	for t := range freq {
		terms = append(terms, t)
	}
	sort.Slice(terms, func(i, j int) bool {
		if freq[terms[i]] != freq[terms[j]] {
			return freq[terms[i]] > freq[terms[j]]
		}
		return terms[i] < terms[j]
	})

	if len(terms) > limit {
		terms = terms[:limit]
	}
	return terms
}

// sharedTermCount counts how many terms of a appear in b.
func sharedTermCount(a, b []string) int {
	set := make(map[string]bool, len(b))
	for _, t := range b {
		set[t] = true
	}
	n := 0
	for _, t := range a {
		if set[t] {
			n++
		}
	}
	return n
}

// unionTerms merges term sets, preserving first-seen order.
func unionTerms(sets ...[]string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, set := range sets {
		for _, t := range set {
			if !seen[t] {
				seen[t] = true
				out = append(out, t)
			}
		}
	}
	return out
}

// fuzzyNameMatch reports whether a free-form reference names an item.
// Exact and containment matches win; otherwise token-set Jaccard above 0.5.
func fuzzyNameMatch(reference, name string) bool {
	ref := strings.ToLower(strings.TrimSpace(reference))
	nm := strings.ToLower(strings.TrimSpace(name))
	if ref == "" || nm == "" {
		return false
	}
	if ref == nm || strings.Contains(ref, nm) || strings.Contains(nm, ref) {
		return true
	}

	refTokens := tokenize(ref)
	nameTokens := tokenize(nm)
	if len(refTokens) == 0 || len(nameTokens) == 0 {
		return false
	}
	shared := sharedTermCount(refTokens, nameTokens)
	union := len(unionTerms(refTokens, nameTokens))
	if union == 0 {
		return false
	}
	return float64(shared)/float64(union) > 0.5
}
