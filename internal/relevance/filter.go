// Package relevance decides whether a scraped result belongs in the
// dataset. It is a heuristic keyword classifier, not a hard boundary:
// false positives and negatives are tolerated, but a brand-term match
// is mandatory and is never relaxed.
package relevance

import "strings"

// Filter matches title+snippet text against three keyword sets.
type Filter struct {
	brand    []string
	product  []string
	security []string
}

// New builds a Filter; matching is case-insensitive.
func New(brand, product, security []string) *Filter {
	return &Filter{
		brand:    lowerAll(brand),
		product:  lowerAll(product),
		security: lowerAll(security),
	}
}

// IsRelevant reports whether the item should be kept. The item must
// match the brand set, and then either the product or the security set;
// requiring both topical sets produced too few matches in practice.
func (f *Filter) IsRelevant(title, snippet string) bool {
	text := strings.ToLower(title + " " + snippet)
	if !containsAny(text, f.brand) {
		return false
	}
	return containsAny(text, f.product) || containsAny(text, f.security)
}

func containsAny(text string, terms []string) bool {
	for _, term := range terms {
		if term != "" && strings.Contains(text, term) {
			return true
		}
	}
	return false
}

func lowerAll(terms []string) []string {
	out := make([]string, 0, len(terms))
	for _, term := range terms {
		out = append(out, strings.ToLower(strings.TrimSpace(term)))
	}
	return out
}
