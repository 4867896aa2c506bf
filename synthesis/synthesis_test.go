package synthesis

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quarrylabs/quarry/llm"
	"github.com/quarrylabs/quarry/schema"
)

func rankedFixture(content, source string, chunk int, score float64) schema.RankedPassage {
	return schema.RankedPassage{
		GradedPassage: schema.GradedPassage{
			Passage:    schema.Passage{ID: fmt.Sprintf("%s-%d", source, chunk), Content: content, Source: source, ChunkIndex: chunk},
			IsRelevant: true,
		},
		CombinedScore: score,
	}
}

// TestWrite tests answer synthesis.
func TestWrite(t *testing.T) {
	ctx := context.Background()
	query := schema.Query{OriginalText: "how does raft elect a leader"}
	report := schema.QualityReport{QualityScore: 0.8, Verdict: schema.VerdictExcellent}

	ranked := []schema.RankedPassage{
		rankedFixture("Raft elects a leader through randomized timeouts.", "raft.md", 0, 0.9),
		rankedFixture("Followers vote once per term.", "raft.md", 1, 0.7),
		rankedFixture("A candidate needs a majority of votes.", "votes.md", 0, 0.8),
	}

	t.Run("Empty set yields a no-material answer", func(t *testing.T) {
		answer, err := NewWriter(llm.NewMockClient("irrelevant")).Write(ctx, query, nil, report)
		require.NoError(t, err)
		assert.Contains(t, answer.Text, "No relevant material")
		assert.NotEmpty(t, answer.Limitations)
	})

	t.Run("Synthesized answer carries confidence and citations", func(t *testing.T) {
		mock := llm.NewMockClient("Raft elects a leader through randomized timeouts [1] and a majority vote [3].")
		answer, err := NewWriter(mock).Write(ctx, query, ranked, report)
		require.NoError(t, err)
		assert.Equal(t, 0.8, answer.Confidence)
		require.Len(t, answer.CitedSources, 2)
		assert.Equal(t, "raft.md", answer.CitedSources[0].Source)
	})

	t.Run("Prompt numbers the packed passages", func(t *testing.T) {
		var prompt string
		mock := &llm.MockClient{CompleteFunc: func(ctx context.Context, p string) (string, error) {
			prompt = p
			return "ok [1]", nil
		}}
		_, err := NewWriter(mock).Write(ctx, query, ranked, report)
		require.NoError(t, err)
		assert.Contains(t, prompt, "[1]")
		assert.Contains(t, prompt, "randomized timeouts")
		assert.Contains(t, prompt, query.OriginalText)
	})

	t.Run("Unreferenced answers cite every packed passage", func(t *testing.T) {
		mock := llm.NewMockClient("Leaders are elected by majority vote.")
		answer, err := NewWriter(mock).Write(ctx, query, ranked, report)
		require.NoError(t, err)
		assert.Len(t, answer.CitedSources, 3)
	})

	t.Run("Model failure degrades to a passage digest", func(t *testing.T) {
		mock := llm.NewMockClientWithError(errors.New("overloaded"))
		answer, err := NewWriter(mock).Write(ctx, query, ranked, report)
		require.NoError(t, err)
		assert.Contains(t, answer.Text, "most relevant retrieved passages")
		assert.Contains(t, answer.Limitations, "answer synthesis unavailable")
		assert.NotEmpty(t, answer.CitedSources)
		// Digest leads with the strongest passage, not the first in
		// positional order.
		assert.Contains(t, answer.Text, "randomized timeouts")
	})

	t.Run("Nil model goes straight to the digest", func(t *testing.T) {
		answer, err := NewWriter(nil).Write(ctx, query, ranked, report)
		require.NoError(t, err)
		assert.Contains(t, answer.Limitations, "no language model configured")
	})

	t.Run("Report issues surface as limitations", func(t *testing.T) {
		weak := schema.QualityReport{
			QualityScore: 0.35,
			Issues:       []string{"evidence drawn from too few sources"},
		}
		answer, err := NewWriter(llm.NewMockClient("thin answer [1]")).Write(ctx, query, ranked, weak)
		require.NoError(t, err)
		assert.Contains(t, answer.Limitations, "too few sources")
		assert.Equal(t, 0.35, answer.Confidence)
	})

	t.Run("Token budget truncates but keeps at least one passage", func(t *testing.T) {
		big := []schema.RankedPassage{
			rankedFixture(strings.Repeat("long passage content ", 200), "a.md", 0, 0.9),
			rankedFixture(strings.Repeat("second passage content ", 200), "b.md", 0, 0.8),
		}
		var prompt string
		mock := &llm.MockClient{CompleteFunc: func(ctx context.Context, p string) (string, error) {
			prompt = p
			return "ok [1]", nil
		}}
		_, err := NewWriter(mock, WithTokenBudget(50)).Write(ctx, query, big, report)
		require.NoError(t, err)
		assert.Contains(t, prompt, "long passage content")
		assert.NotContains(t, prompt, "second passage content")
	})
}

// TestVerify tests citation verification.
func TestVerify(t *testing.T) {
	ranked := []schema.RankedPassage{
		rankedFixture("Raft elects a leader.", "raft.md", 0, 0.9),
		rankedFixture("Votes need a majority.", "votes.md", 0, 0.8),
	}

	t.Run("Valid citations pass through untouched", func(t *testing.T) {
		answer := schema.Answer{
			Text:         "Leaders are elected [1] by majority [2].",
			CitedSources: []schema.Citation{{Source: "raft.md"}, {Source: "votes.md"}},
		}
		verified := NewVerifier().Verify(answer, ranked)
		assert.Len(t, verified.CitedSources, 2)
		assert.Empty(t, verified.Limitations)
	})

	t.Run("Citations to unknown sources are dropped and noted", func(t *testing.T) {
		answer := schema.Answer{
			Text:         "Leaders are elected [1].",
			CitedSources: []schema.Citation{{Source: "raft.md"}, {Source: "fabricated.md"}},
		}
		verified := NewVerifier().Verify(answer, ranked)
		assert.Len(t, verified.CitedSources, 1)
		assert.Contains(t, verified.Limitations, "1 citation(s) could not be matched")
	})

	t.Run("Out-of-range bracket references are counted", func(t *testing.T) {
		answer := schema.Answer{
			Text:         "This claim cites a passage that was never supplied [7].",
			CitedSources: []schema.Citation{{Source: "raft.md"}},
		}
		verified := NewVerifier().Verify(answer, ranked)
		assert.Contains(t, verified.Limitations, "1 citation(s) could not be matched")
	})

	t.Run("Existing limitations are appended to, not replaced", func(t *testing.T) {
		answer := schema.Answer{
			Text:         "Weak claim [9].",
			Limitations:  "evidence is thin",
			CitedSources: []schema.Citation{{Source: "raft.md"}},
		}
		verified := NewVerifier().Verify(answer, ranked)
		assert.Contains(t, verified.Limitations, "evidence is thin; ")
	})
}

// TestBracketRefs tests the reference parser.
func TestBracketRefs(t *testing.T) {
	assert.Equal(t, []int{1, 12}, bracketRefs("see [1] and [12]"))
	assert.Empty(t, bracketRefs("no refs here"))
	assert.Empty(t, bracketRefs("non-numeric [ref] ignored"))
	assert.Empty(t, bracketRefs("empty [] ignored"))
}
