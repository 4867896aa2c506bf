package reranker

import (
	"strings"

	"github.com/quarrylabs/quarry/schema"
)

// Quality score length thresholds.
const (
	shortContentChars = 50
	fullContentChars  = 500
	shortContentScore = 0.3
	sourceBonus       = 0.1
)

// keywordScore is the fraction of query terms literally present in the
// passage content, capped at 1.
func keywordScore(terms []string, content string) float64 {
	if len(terms) == 0 {
		return 0
	}
	lower := strings.ToLower(content)
	hits := 0
	for _, t := range terms {
		if strings.Contains(lower, t) {
			hits++
		}
	}
	return clampUnit(float64(hits) / float64(len(terms)))
}

// qualityScore rates a passage by content length, monotonically: passages
// under 50 characters score 0.3, passages of 500 characters or more score
// the maximum, with linear interpolation between. A known source earns a
// small bonus.
func qualityScore(p schema.Passage) float64 {
	length := len(p.Content)

	var score float64
	switch {
	case length < shortContentChars:
		score = shortContentScore
	case length >= fullContentChars:
		score = 1.0
	default:
		span := float64(fullContentChars - shortContentChars)
		score = shortContentScore + (1.0-shortContentScore)*float64(length-shortContentChars)/span
	}

	if p.Source != "" {
		score += sourceBonus
	}
	return clampUnit(score)
}

// diversityScore rewards a passage for differing from its predecessor in
// the current order: one minus the token-set Jaccard similarity to the
// previous passage. The first passage scores full diversity.
func diversityScore(tokens, prev map[string]bool) float64 {
	if prev == nil {
		return 1.0
	}
	return clampUnit(1.0 - jaccard(tokens, prev))
}

// jaccard computes the Jaccard similarity of two token sets.
func jaccard(a, b map[string]bool) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 1.0
	}
	if len(a) == 0 || len(b) == 0 {
		return 0
	}

	intersection := 0
	for t := range a {
		if b[t] {
			intersection++
		}
	}
	union := len(a) + len(b) - intersection
	return float64(intersection) / float64(union)
}
