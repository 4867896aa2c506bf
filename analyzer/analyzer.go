// Package analyzer turns a raw question into an analyzed Query: intent,
// rewritten variants, key concepts, and a retrieval strategy. Analysis
// prefers a structured language model call and falls back to deterministic
// heuristics when the model is unavailable, so the pipeline never stalls
// at its first stage.
package analyzer

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/quarrylabs/quarry/llm"
	"github.com/quarrylabs/quarry/schema"
)

const analyzePromptTemplate = `Analyze the following search query for a retrieval system.

Query: %s

Respond with a JSON object:
{
  "intent": one of "factual", "conceptual", "procedural", "multi_hop", "exploratory",
  "variants": 3 to 5 alternative phrasings of the query, best first,
  "concepts": 3 to 5 key concepts to search for,
  "strategy": one of "focused", "broad", "multi_stage"
}`

// analysisResult is the shape of the structured model reply.
type analysisResult struct {
	Intent   string   `json:"intent"`
	Variants []string `json:"variants"`
	Concepts []string `json:"concepts"`
	Strategy string   `json:"strategy"`
}

// Analyzer produces Queries from raw question text.
type Analyzer struct {
	llm    llm.Client
	logger *slog.Logger
}

// Option configures an Analyzer.
type Option func(*Analyzer)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(a *Analyzer) {
		a.logger = logger
	}
}

// New creates an Analyzer. client may be nil, in which case analysis is
// purely heuristic.
func New(client llm.Client, opts ...Option) *Analyzer {
	a := &Analyzer{
		llm:    client,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Analyze builds a Query for the given question. prior is the quality
// report from a failed attempt on the same turn; when present, the
// recommended strategy is upgraded and the report's issues join the key
// concepts as extra search terms.
func (a *Analyzer) Analyze(ctx context.Context, text string, prior *schema.QualityReport) (schema.Query, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return schema.Query{}, fmt.Errorf("analyzer: empty query text")
	}

	query := a.analyzeLLM(ctx, text)
	if query == nil {
		q := a.analyzeHeuristic(text)
		query = &q
	}

	if prior != nil {
		query.Strategy = query.Strategy.Upgrade()
		query.KeyConcepts = appendCapped(query.KeyConcepts, prior.Issues, schema.MaxKeyConcepts)
	}

	a.logger.Debug("query analyzed",
		"intent", query.Intent,
		"strategy", query.Strategy,
		"variants", len(query.RewrittenVariants),
		"concepts", len(query.KeyConcepts))

	return *query, nil
}

// analyzeLLM asks the model for a structured analysis. Returns nil on any
// failure; the caller falls back to heuristics.
func (a *Analyzer) analyzeLLM(ctx context.Context, text string) *schema.Query {
	if a.llm == nil {
		return nil
	}

	var result analysisResult
	prompt := fmt.Sprintf(analyzePromptTemplate, text)
	if err := a.llm.StructuredComplete(ctx, prompt, &result); err != nil {
		a.logger.Warn("llm analysis failed, using heuristics", "error", err)
		return nil
	}

	intent := schema.Intent(strings.ToLower(strings.TrimSpace(result.Intent)))
	if !intent.Valid() {
		intent = classifyIntent(text)
	}
	strategy := schema.Strategy(strings.ToLower(strings.TrimSpace(result.Strategy)))
	if !strategy.Valid() {
		strategy = strategyFor(intent, text)
	}

	variants := sanitize(result.Variants, schema.MaxRewrittenVariants)
	if len(variants) == 0 {
		variants = heuristicVariants(text)
	}
	concepts := sanitize(result.Concepts, schema.MaxKeyConcepts)
	if len(concepts) == 0 {
		concepts = ExtractConcepts(text)
	}

	return &schema.Query{
		OriginalText:      text,
		RewrittenVariants: variants,
		KeyConcepts:       concepts,
		Intent:            intent,
		Strategy:          strategy,
	}
}

// analyzeHeuristic is the deterministic fallback.
func (a *Analyzer) analyzeHeuristic(text string) schema.Query {
	intent := classifyIntent(text)
	return schema.Query{
		OriginalText:      text,
		RewrittenVariants: heuristicVariants(text),
		KeyConcepts:       ExtractConcepts(text),
		Intent:            intent,
		Strategy:          strategyFor(intent, text),
	}
}

// sanitize trims, drops empties, and caps a string list.
func sanitize(items []string, limit int) []string {
	out := make([]string, 0, len(items))
	for _, s := range items {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		out = append(out, s)
		if len(out) >= limit {
			break
		}
	}
	return out
}

// appendCapped appends extras to items up to limit, skipping duplicates.
func appendCapped(items, extras []string, limit int) []string {
	seen := make(map[string]bool, len(items))
	for _, s := range items {
		seen[strings.ToLower(s)] = true
	}
	for _, s := range extras {
		if len(items) >= limit {
			break
		}
		s = strings.TrimSpace(s)
		if s == "" || seen[strings.ToLower(s)] {
			continue
		}
		seen[strings.ToLower(s)] = true
		items = append(items, s)
	}
	return items
}
