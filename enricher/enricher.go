// Package enricher inspects a ranked passage set for coverage gaps: key
// concepts from the query that none of the passages mention. It flags
// whether another retrieval pass is worth the cost and can optionally ask
// the language model for supplemental search queries targeting the gaps.
package enricher

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/quarrylabs/quarry/llm"
	"github.com/quarrylabs/quarry/schema"
)

// gapPromptTemplate asks the model for follow-up searches.
const gapPromptTemplate = `A search for the question below failed to find material on some concepts.

Question: %s
Uncovered concepts: %s

Respond with a JSON object:
{"queries": up to 3 short search queries targeting the uncovered concepts}`

// minCoveredFraction is the covered-concept fraction below which another
// retrieval pass is recommended.
const minCoveredFraction = 0.5

// Report describes the coverage gaps found in a ranked set.
type Report struct {
	// MissingConcepts are key concepts absent from every ranked passage.
	MissingConcepts []string `json:"missing_concepts,omitempty"`
	// SupplementalQueries are model-suggested searches for the gaps.
	SupplementalQueries []string `json:"supplemental_queries,omitempty"`
	// NeedsMoreRetrieval flags that another retrieval pass is warranted.
	NeedsMoreRetrieval bool `json:"needs_more_retrieval"`
}

// Enricher analyzes ranked sets for gaps.
type Enricher struct {
	llm    llm.Client
	logger *slog.Logger
}

// Option configures an Enricher.
type Option func(*Enricher)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Enricher) {
		e.logger = logger
	}
}

// New creates an Enricher. client may be nil; gap analysis is then purely
// lexical.
func New(client llm.Client, opts ...Option) *Enricher {
	e := &Enricher{
		llm:    client,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Enrich reports which key concepts the ranked set leaves uncovered.
func (e *Enricher) Enrich(ctx context.Context, query schema.Query, ranked []schema.RankedPassage) Report {
	if len(query.KeyConcepts) == 0 {
		return Report{}
	}

	var sb strings.Builder
	for _, rp := range ranked {
		sb.WriteString(strings.ToLower(rp.Content))
		sb.WriteByte(' ')
	}
	content := sb.String()

	var missing []string
	for _, concept := range query.KeyConcepts {
		if !strings.Contains(content, strings.ToLower(concept)) {
			missing = append(missing, concept)
		}
	}

	covered := float64(len(query.KeyConcepts)-len(missing)) / float64(len(query.KeyConcepts))
	report := Report{
		MissingConcepts:    missing,
		NeedsMoreRetrieval: covered < minCoveredFraction,
	}

	if report.NeedsMoreRetrieval && e.llm != nil {
		report.SupplementalQueries = e.suggestQueries(ctx, query.OriginalText, missing)
	}

	e.logger.Debug("enrichment analysis",
		"missing_concepts", len(missing),
		"needs_more", report.NeedsMoreRetrieval)

	return report
}

// suggestQueries asks the model for searches targeting the gaps. Failures
// are absorbed; suggestions are a nicety, not a requirement.
func (e *Enricher) suggestQueries(ctx context.Context, question string, missing []string) []string {
	var result struct {
		Queries []string `json:"queries"`
	}
	prompt := fmt.Sprintf(gapPromptTemplate, question, strings.Join(missing, ", "))
	if err := e.llm.StructuredComplete(ctx, prompt, &result); err != nil {
		e.logger.Warn("gap query suggestion failed", "error", err)
		return nil
	}

	queries := result.Queries
	if len(queries) > 3 {
		queries = queries[:3]
	}
	return queries
}
