// Package reranker refines a graded passage set: textual deduplication,
// scoring on four signals (semantic, keyword, quality, diversity),
// threshold filtering, truncation to the top K, and a deterministic
// reorder that places the strongest passages at the start and end of the
// sequence to counter the lost-in-the-middle effect.
package reranker

import (
	"context"
	"log/slog"
	"sort"
	"strings"

	"github.com/quarrylabs/quarry/config"
	"github.com/quarrylabs/quarry/schema"
)

// ReRanker scores and reorders graded passages.
type ReRanker struct {
	cfg    config.RerankConfig
	logger *slog.Logger
}

// Option configures a ReRanker.
type Option func(*ReRanker)

// WithConfig sets the re-ranking configuration.
func WithConfig(cfg config.RerankConfig) Option {
	return func(r *ReRanker) {
		r.cfg = cfg
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *ReRanker) {
		r.logger = logger
	}
}

// New creates a ReRanker.
func New(opts ...Option) *ReRanker {
	r := &ReRanker{
		cfg:    config.Default().Rerank,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Rerank deduplicates, scores, filters, truncates, and reorders the
// graded passages. The context parameter exists for interface symmetry
// with the other stages; re-ranking itself makes no external calls.
func (r *ReRanker) Rerank(ctx context.Context, query schema.Query, graded []schema.GradedPassage) ([]schema.RankedPassage, error) {
	deduped := Dedupe(graded)
	terms := query.SearchTerms()

	ranked := make([]schema.RankedPassage, 0, len(deduped))
	prevTokens := map[string]bool(nil)
	for _, gp := range deduped {
		tokens := tokenSet(gp.Content)
		breakdown := schema.ScoreBreakdown{
			Semantic:  clampUnit(gp.RawRelevance),
			Keyword:   keywordScore(terms, gp.Content),
			Quality:   qualityScore(gp.Passage),
			Diversity: diversityScore(tokens, prevTokens),
		}
		combined := clampUnit(
			r.cfg.SemanticWeight*breakdown.Semantic +
				r.cfg.KeywordWeight*breakdown.Keyword +
				r.cfg.QualityWeight*breakdown.Quality +
				r.cfg.DiversityWeight*breakdown.Diversity)

		ranked = append(ranked, schema.RankedPassage{
			GradedPassage: gp,
			CombinedScore: combined,
			Breakdown:     breakdown,
		})
		prevTokens = tokens
	}

	// Stable sort keeps retrieval order among ties.
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].CombinedScore > ranked[j].CombinedScore
	})

	kept := ranked[:0:0]
	for _, rp := range ranked {
		if rp.CombinedScore >= r.cfg.MinScore {
			kept = append(kept, rp)
		}
	}
	if len(kept) > r.cfg.TopK {
		kept = kept[:r.cfg.TopK]
	}

	reordered := reorderForPosition(kept)

	r.logger.Debug("re-ranking complete",
		"in", len(graded),
		"deduped", len(deduped),
		"kept", len(reordered))

	return reordered, nil
}

// reorderForPosition redistributes a score-descending list so the
// highest-scored passages sit at the start and end and the lowest in the
// middle: even-indexed items keep their order at the front, odd-indexed
// items follow in reverse. Purely a reordering; scores are untouched.
func reorderForPosition(sorted []schema.RankedPassage) []schema.RankedPassage {
	if len(sorted) <= 2 {
		return sorted
	}

	out := make([]schema.RankedPassage, 0, len(sorted))
	for i := 0; i < len(sorted); i += 2 {
		out = append(out, sorted[i])
	}
	lastOdd := len(sorted) - 1
	if lastOdd%2 == 0 {
		lastOdd--
	}
	for i := lastOdd; i >= 1; i -= 2 {
		out = append(out, sorted[i])
	}
	return out
}

// tokenSet returns the set of lowercase tokens in the content.
func tokenSet(content string) map[string]bool {
	set := make(map[string]bool)
	for _, w := range strings.Fields(strings.ToLower(content)) {
		w = strings.Trim(w, `.,;:!?"'()[]{}`)
		if w != "" {
			set[w] = true
		}
	}
	return set
}

// clampUnit clamps v to [0, 1].
func clampUnit(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
