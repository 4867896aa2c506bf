package reranker

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quarrylabs/quarry/config"
	"github.com/quarrylabs/quarry/schema"
)

func gradedPassage(content, source string, relevance float64) schema.GradedPassage {
	return schema.GradedPassage{
		Passage:    schema.NewPassage(content, source, 0, relevance),
		IsRelevant: true,
	}
}

// TestFingerprint tests content fingerprinting.
func TestFingerprint(t *testing.T) {
	t.Run("Identical content matches", func(t *testing.T) {
		assert.Equal(t, Fingerprint("same text"), Fingerprint("same text"))
	})

	t.Run("Whitespace differences collapse", func(t *testing.T) {
		assert.Equal(t, Fingerprint("same   text\nhere"), Fingerprint("same text here"))
	})

	t.Run("Different content differs", func(t *testing.T) {
		assert.NotEqual(t, Fingerprint("alpha"), Fingerprint("beta"))
	})

	t.Run("Long texts differing only in the middle collapse", func(t *testing.T) {
		head := strings.Repeat("a", 250)
		tail := strings.Repeat("z", 150)
		one := head + " middle one " + strings.Repeat("m", 400) + tail
		two := head + " middle two " + strings.Repeat("n", 400) + tail
		assert.Equal(t, Fingerprint(one), Fingerprint(two))
	})
}

// TestDedupe tests duplicate collapsing.
func TestDedupe(t *testing.T) {
	a := gradedPassage("first passage about raft", "a.md", 0.9)
	b := gradedPassage("second passage about paxos", "b.md", 0.8)
	dup := gradedPassage("first passage about raft", "c.md", 0.7)

	t.Run("Keeps the first occurrence", func(t *testing.T) {
		out := Dedupe([]schema.GradedPassage{a, b, dup})
		require.Len(t, out, 2)
		assert.Equal(t, a.ID, out[0].ID)
		assert.Equal(t, b.ID, out[1].ID)
	})

	t.Run("Is idempotent", func(t *testing.T) {
		once := Dedupe([]schema.GradedPassage{a, b, dup})
		twice := Dedupe(once)
		assert.Equal(t, once, twice)
	})
}

// TestScoring tests the individual signals.
func TestScoring(t *testing.T) {
	t.Run("Keyword score is the matched fraction", func(t *testing.T) {
		terms := []string{"raft", "election", "quorum", "paxos"}
		content := "Raft election rules"
		assert.InDelta(t, 0.5, keywordScore(terms, content), 1e-9)
	})

	t.Run("No terms scores zero", func(t *testing.T) {
		assert.Equal(t, 0.0, keywordScore(nil, "anything"))
	})

	t.Run("Quality rewards length and a known source", func(t *testing.T) {
		tiny := schema.Passage{Content: "short"}
		assert.Equal(t, 0.3, qualityScore(tiny))

		full := schema.Passage{Content: strings.Repeat("x", 600), Source: "doc.md"}
		assert.Equal(t, 1.0, qualityScore(full))

		mid := schema.Passage{Content: strings.Repeat("x", 275)}
		assert.InDelta(t, 0.65, qualityScore(mid), 0.01)
	})

	t.Run("Diversity penalizes similarity to the predecessor", func(t *testing.T) {
		a := tokenSet("alpha beta gamma")
		b := tokenSet("alpha beta gamma")
		c := tokenSet("delta epsilon zeta")

		assert.Equal(t, 1.0, diversityScore(a, nil))
		assert.InDelta(t, 0.0, diversityScore(b, a), 1e-9)
		assert.InDelta(t, 1.0, diversityScore(c, a), 1e-9)
	})
}

// TestRerank tests the full scoring, filtering, and reorder flow.
func TestRerank(t *testing.T) {
	ctx := context.Background()
	query := schema.Query{OriginalText: "raft leader election"}

	t.Run("Scores stay within the unit interval", func(t *testing.T) {
		graded := []schema.GradedPassage{
			gradedPassage(strings.Repeat("raft leader election details ", 30), "a.md", 0.95),
			gradedPassage("unrelated trivia", "b.md", 0.1),
		}
		r := New(WithConfig(config.RerankConfig{
			SemanticWeight: 0.4, KeywordWeight: 0.25, QualityWeight: 0.2, DiversityWeight: 0.15,
			TopK: 10, MinScore: 0,
		}))

		ranked, err := r.Rerank(ctx, query, graded)
		require.NoError(t, err)
		for _, rp := range ranked {
			assert.GreaterOrEqual(t, rp.CombinedScore, 0.0)
			assert.LessOrEqual(t, rp.CombinedScore, 1.0)
			for _, s := range []float64{rp.Breakdown.Semantic, rp.Breakdown.Keyword, rp.Breakdown.Quality, rp.Breakdown.Diversity} {
				assert.GreaterOrEqual(t, s, 0.0)
				assert.LessOrEqual(t, s, 1.0)
			}
		}
	})

	t.Run("Filters below the score floor and truncates to top K", func(t *testing.T) {
		var graded []schema.GradedPassage
		for i := 0; i < 20; i++ {
			graded = append(graded, gradedPassage(
				fmt.Sprintf("raft leader election topic %d with some distinct content body", i),
				fmt.Sprintf("doc%d.md", i), 0.9))
		}
		graded = append(graded, gradedPassage("x", "", 0.0))

		r := New()
		ranked, err := r.Rerank(ctx, query, graded)
		require.NoError(t, err)
		assert.LessOrEqual(t, len(ranked), 10)
		for _, rp := range ranked {
			assert.GreaterOrEqual(t, rp.CombinedScore, 0.3)
		}
	})

	t.Run("Drops duplicates before scoring", func(t *testing.T) {
		a := gradedPassage("identical raft content for the dedup check", "a.md", 0.9)
		b := gradedPassage("identical raft content for the dedup check", "b.md", 0.8)

		r := New(WithConfig(config.RerankConfig{
			SemanticWeight: 0.4, KeywordWeight: 0.25, QualityWeight: 0.2, DiversityWeight: 0.15,
			TopK: 10, MinScore: 0,
		}))
		ranked, err := r.Rerank(ctx, query, []schema.GradedPassage{a, b})
		require.NoError(t, err)
		assert.Len(t, ranked, 1)
	})

	t.Run("Empty input ranks to nothing", func(t *testing.T) {
		ranked, err := New().Rerank(ctx, query, nil)
		require.NoError(t, err)
		assert.Empty(t, ranked)
	})
}

// TestReorderForPosition tests the lost-in-the-middle mitigation.
func TestReorderForPosition(t *testing.T) {
	build := func(scores ...float64) []schema.RankedPassage {
		out := make([]schema.RankedPassage, len(scores))
		for i, s := range scores {
			out[i] = schema.RankedPassage{CombinedScore: s}
		}
		return out
	}

	extract := func(ranked []schema.RankedPassage) []float64 {
		out := make([]float64, len(ranked))
		for i, rp := range ranked {
			out[i] = rp.CombinedScore
		}
		return out
	}

	t.Run("Strongest passages end up at the edges", func(t *testing.T) {
		got := reorderForPosition(build(5, 4, 3, 2, 1))
		assert.Equal(t, []float64{5, 3, 1, 2, 4}, extract(got))
	})

	t.Run("Even length", func(t *testing.T) {
		got := reorderForPosition(build(6, 5, 4, 3, 2, 1))
		assert.Equal(t, []float64{6, 4, 2, 1, 3, 5}, extract(got))
	})

	t.Run("Two or fewer passages keep their order", func(t *testing.T) {
		assert.Equal(t, []float64{2, 1}, extract(reorderForPosition(build(2, 1))))
		assert.Empty(t, reorderForPosition(nil))
	})

	t.Run("Deterministic", func(t *testing.T) {
		first := extract(reorderForPosition(build(9, 8, 7, 6, 5, 4, 3)))
		second := extract(reorderForPosition(build(9, 8, 7, 6, 5, 4, 3)))
		assert.Equal(t, first, second)
	})
}
