// Package retriever executes a Query against the vector search index
// using one of three strategies: focused (one generous search), broad
// (fan-out over variants and concepts), and multi_stage (sequential
// passes with a fallback). Sub-searches run concurrently under a bounded
// limit, and a failed sub-search contributes nothing instead of failing
// the strategy; retrieval as a whole fails only when every sub-search
// fails.
package retriever

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/quarrylabs/quarry/config"
	"github.com/quarrylabs/quarry/schema"
	"github.com/quarrylabs/quarry/search"
)

// Limits for the multi_stage strategy.
const (
	multiStageVariantLimit  = 20
	multiStageConceptLimit  = 15
	multiStageCombinedLimit = 20
	multiStageFallbackLimit = 10
	multiStageMinResults    = 50
	multiStageVariantCount  = 3
	combinedConceptCount    = 3
)

// Retriever runs retrieval strategies against a search client.
type Retriever struct {
	search      search.Client
	cfg         config.RetrievalConfig
	callTimeout time.Duration
	logger      *slog.Logger
}

// Option configures a Retriever.
type Option func(*Retriever)

// WithConfig sets the retrieval configuration.
func WithConfig(cfg config.RetrievalConfig) Option {
	return func(r *Retriever) {
		r.cfg = cfg
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Retriever) {
		r.logger = logger
	}
}

// WithCallTimeout bounds each individual search call. A sub-search that
// exceeds the timeout is treated like any other failed sub-search: logged
// and skipped. Zero disables the bound.
func WithCallTimeout(d time.Duration) Option {
	return func(r *Retriever) {
		r.callTimeout = d
	}
}

// New creates a Retriever.
func New(client search.Client, opts ...Option) *Retriever {
	r := &Retriever{
		search:      client,
		cfg:         config.Default().Retrieval,
		callTimeout: config.Default().Search.CallTimeout,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// subSearch is one search call within a strategy.
type subSearch struct {
	query string
	limit int
}

// Retrieve executes the query's strategy and returns the concatenated
// candidate passages. The result is not deduplicated; that happens during
// re-ranking.
func (r *Retriever) Retrieve(ctx context.Context, query schema.Query) ([]schema.Passage, error) {
	var (
		passages []schema.Passage
		err      error
	)

	switch query.Strategy {
	case schema.StrategyBroad:
		passages, err = r.retrieveBroad(ctx, query)
	case schema.StrategyMultiStage:
		passages, err = r.retrieveMultiStage(ctx, query)
	default:
		passages, err = r.retrieveFocused(ctx, query)
	}
	if err != nil {
		return nil, err
	}

	r.logger.Debug("retrieval complete",
		"strategy", query.Strategy,
		"candidates", len(passages))
	return passages, nil
}

// retrieveFocused issues a single search on the original text.
func (r *Retriever) retrieveFocused(ctx context.Context, query schema.Query) ([]schema.Passage, error) {
	return r.runSearches(ctx, []subSearch{
		{query: query.OriginalText, limit: r.cfg.FocusedLimit},
	})
}

// retrieveBroad fans out over the rewritten variants and key concepts.
func (r *Retriever) retrieveBroad(ctx context.Context, query schema.Query) ([]schema.Passage, error) {
	subs := make([]subSearch, 0, schema.MaxRewrittenVariants+schema.MaxKeyConcepts)
	for _, v := range capList(query.RewrittenVariants, schema.MaxRewrittenVariants) {
		subs = append(subs, subSearch{query: v, limit: r.cfg.BroadLimit})
	}
	for _, c := range capList(query.KeyConcepts, schema.MaxKeyConcepts) {
		subs = append(subs, subSearch{query: c, limit: r.cfg.BroadLimit})
	}
	if len(subs) == 0 {
		subs = append(subs, subSearch{query: query.OriginalText, limit: r.cfg.BroadLimit})
	}
	return r.runSearches(ctx, subs)
}

// retrieveMultiStage runs sequential stages: top variants, then concepts,
// then one combined query, then a fallback pass over the remaining
// concepts when too little was collected. Results accumulate across
// stages; there is no early termination.
func (r *Retriever) retrieveMultiStage(ctx context.Context, query schema.Query) ([]schema.Passage, error) {
	var all []schema.Passage
	anySucceeded := false

	collect := func(subs []subSearch) {
		if len(subs) == 0 {
			return
		}
		passages, err := r.runSearches(ctx, subs)
		if err == nil {
			anySucceeded = true
		}
		all = append(all, passages...)
	}

	// Stage 1: top variants.
	variants := capList(query.RewrittenVariants, multiStageVariantCount)
	if len(variants) == 0 {
		variants = []string{query.OriginalText}
	}
	subs := make([]subSearch, 0, len(variants))
	for _, v := range variants {
		subs = append(subs, subSearch{query: v, limit: multiStageVariantLimit})
	}
	collect(subs)

	// Stage 2: key concepts.
	concepts := capList(query.KeyConcepts, schema.MaxKeyConcepts)
	subs = subs[:0]
	for _, c := range concepts {
		subs = append(subs, subSearch{query: c, limit: multiStageConceptLimit})
	}
	collect(subs)

	// Stage 3: first variant combined with the top concepts.
	combined := variants[0]
	if n := min(combinedConceptCount, len(concepts)); n > 0 {
		combined = combined + " " + strings.Join(concepts[:n], " ")
	}
	collect([]subSearch{{query: combined, limit: multiStageCombinedLimit}})

	// Stage 4: fallback over the concepts left out of the combined query
	// when the haul is thin.
	if len(all) < multiStageMinResults && len(concepts) > combinedConceptCount {
		subs = subs[:0]
		for _, c := range concepts[combinedConceptCount:] {
			subs = append(subs, subSearch{query: c, limit: multiStageFallbackLimit})
		}
		collect(subs)
	}

	if !anySucceeded {
		return nil, fmt.Errorf("retriever: all multi_stage sub-searches failed: %w", schema.ErrExternalService)
	}
	return all, nil
}

// runSearches executes the sub-searches with bounded concurrency and
// concatenates their results in sub-search order. A failed sub-search is
// logged and skipped; an error is returned only when every sub-search
// failed.
func (r *Retriever) runSearches(ctx context.Context, subs []subSearch) ([]schema.Passage, error) {
	results := make([][]schema.Passage, len(subs))
	var (
		mu        sync.Mutex
		succeeded int
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.cfg.MaxConcurrency)

	for i, sub := range subs {
		i, sub := i, sub
		g.Go(func() error {
			sctx := gctx
			if r.callTimeout > 0 {
				var cancel context.CancelFunc
				sctx, cancel = context.WithTimeout(gctx, r.callTimeout)
				defer cancel()
			}
			passages, err := r.search.Search(sctx, sub.query, sub.limit)
			if err != nil {
				// Isolate and continue: a failed sub-search must not
				// cancel the others.
				r.logger.Warn("sub-search failed",
					"query", sub.query, "error", err)
				return nil
			}
			mu.Lock()
			results[i] = passages
			succeeded++
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	if succeeded == 0 {
		return nil, fmt.Errorf("retriever: all %d sub-searches failed: %w", len(subs), schema.ErrExternalService)
	}

	var all []schema.Passage
	for _, batch := range results {
		all = append(all, batch...)
	}
	return all, nil
}

// capList truncates items to at most n entries.
func capList(items []string, n int) []string {
	if len(items) > n {
		return items[:n]
	}
	return items
}
