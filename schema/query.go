package schema

import "strings"

// Query is the analyzed form of a user question. It is produced once per
// analysis pass and treated as immutable downstream; a rewrite iteration
// produces a fresh Query rather than mutating the old one.
type Query struct {
	// OriginalText is the user's question as asked.
	OriginalText string `json:"original_text"`
	// RewrittenVariants are alternative phrasings, best first (at most
	// MaxRewrittenVariants).
	RewrittenVariants []string `json:"rewritten_variants,omitempty"`
	// KeyConcepts are the salient terms extracted from the question (at
	// most MaxKeyConcepts).
	KeyConcepts []string `json:"key_concepts,omitempty"`
	// Intent is the classified information need.
	Intent Intent `json:"intent"`
	// Strategy is the recommended retrieval strategy.
	Strategy Strategy `json:"strategy"`
}

// SearchTerms returns the lowercase terms of the original text plus the
// key concepts, deduplicated. Used for literal keyword matching.
func (q Query) SearchTerms() []string {
	seen := make(map[string]bool)
	var terms []string

	add := func(s string) {
		for _, w := range strings.Fields(strings.ToLower(s)) {
			w = strings.Trim(w, `.,;:!?"'()[]{}`)
			if w != "" && !seen[w] {
				seen[w] = true
				terms = append(terms, w)
			}
		}
	}

	add(q.OriginalText)
	for _, c := range q.KeyConcepts {
		add(c)
	}
	return terms
}
