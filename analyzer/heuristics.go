package analyzer

import (
	"strings"

	"github.com/quarrylabs/quarry/schema"
)

// longQueryWords is the word count past which a query is considered
// complex enough for multi-stage retrieval, and past which heuristic
// variants are truncated.
const longQueryWords = 12

// stopWords are filtered out of concept extraction.
var stopWords = map[string]bool{
	"a": true, "an": true, "the": true, "is": true, "are": true,
	"was": true, "were": true, "be": true, "been": true, "being": true,
	"have": true, "has": true, "had": true, "do": true, "does": true,
	"did": true, "will": true, "would": true, "could": true, "should": true,
	"what": true, "which": true, "who": true, "whom": true, "this": true,
	"that": true, "these": true, "those": true, "there": true, "here": true,
	"when": true, "where": true, "why": true, "how": true, "about": true,
	"into": true, "with": true, "from": true,
	"and": true, "but": true, "for": true, "not": true, "you": true,
	"can": true, "may": true, "your": true, "between": true, "through": true,
	"during": true, "before": true, "after": true, "above": true, "below": true,
	"them": true, "they": true, "their": true, "some": true,
	"such": true, "than": true, "then": true, "very": true, "just": true,
	"over": true, "under": true, "most": true, "more": true, "also": true,
}

// conjunctions signal multi-part questions.
var conjunctions = []string{" and ", " as well as ", " along with ", " versus ", " vs ", " compared to "}

// classifyIntent classifies a question by keyword presence. Order
// matters: the more specific patterns win.
func classifyIntent(text string) schema.Intent {
	lower := strings.ToLower(text)

	switch {
	case strings.Contains(lower, "how to"), strings.Contains(lower, "how do i"),
		strings.Contains(lower, "how can i"), strings.Contains(lower, "steps to"):
		return schema.IntentProcedural
	case strings.HasPrefix(lower, "what is"), strings.HasPrefix(lower, "what are"),
		strings.Contains(lower, "explain"), strings.Contains(lower, "describe"),
		strings.Contains(lower, "meaning of"):
		return schema.IntentConceptual
	}

	for _, conj := range conjunctions {
		if strings.Contains(lower, conj) {
			return schema.IntentMultiHop
		}
	}

	// Short direct questions are factual lookups; anything open-ended or
	// long is exploratory.
	if len(strings.Fields(text)) <= longQueryWords &&
		(strings.HasSuffix(strings.TrimSpace(text), "?") || strings.HasPrefix(lower, "who ")) {
		return schema.IntentFactual
	}
	return schema.IntentExploratory
}

// strategyFor maps intent and query complexity to a retrieval strategy.
// The mapping is deterministic: the same query always selects the same
// strategy.
func strategyFor(intent schema.Intent, text string) schema.Strategy {
	if len(strings.Fields(text)) > longQueryWords+3 {
		return schema.StrategyMultiStage
	}
	switch intent {
	case schema.IntentMultiHop:
		return schema.StrategyMultiStage
	case schema.IntentConceptual, schema.IntentExploratory:
		return schema.StrategyBroad
	default:
		return schema.StrategyFocused
	}
}

// heuristicVariants derives query variants without a model: the question
// mark is stripped and long queries are truncated to their leading words.
func heuristicVariants(text string) []string {
	variants := []string{}

	stripped := strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(text), "?"))
	if stripped != "" && stripped != text {
		variants = append(variants, stripped)
	}

	words := strings.Fields(stripped)
	if len(words) > longQueryWords {
		variants = append(variants, strings.Join(words[:longQueryWords], " "))
	}

	if len(variants) == 0 {
		variants = append(variants, text)
	}
	return variants
}

// ExtractConcepts pulls key concepts out of a question by dropping stop
// words and short tokens. Exported because the enricher reuses it for gap
// analysis.
func ExtractConcepts(text string) []string {
	seen := make(map[string]bool)
	concepts := []string{}

	for _, word := range strings.Fields(strings.ToLower(text)) {
		word = strings.Trim(word, `.,;:!?"'()[]{}`)
		if len(word) < 4 || stopWords[word] || seen[word] {
			continue
		}
		seen[word] = true
		concepts = append(concepts, word)
		if len(concepts) >= schema.MaxKeyConcepts {
			break
		}
	}
	return concepts
}
