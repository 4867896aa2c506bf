package enricher

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/quarrylabs/quarry/llm"
	"github.com/quarrylabs/quarry/schema"
)

func rankedWith(content string) schema.RankedPassage {
	return schema.RankedPassage{
		GradedPassage: schema.GradedPassage{
			Passage: schema.Passage{Content: content, Source: "doc.md"},
		},
		CombinedScore: 0.8,
	}
}

// TestEnrich tests gap detection over the ranked set.
func TestEnrich(t *testing.T) {
	ctx := context.Background()

	query := schema.Query{
		OriginalText: "how does raft handle snapshots and log compaction",
		KeyConcepts:  []string{"raft", "snapshots", "compaction", "log"},
	}

	t.Run("No concepts means nothing to check", func(t *testing.T) {
		report := New(nil).Enrich(ctx, schema.Query{OriginalText: "q"}, nil)
		assert.Empty(t, report.MissingConcepts)
		assert.False(t, report.NeedsMoreRetrieval)
	})

	t.Run("Finds concepts absent from every passage", func(t *testing.T) {
		ranked := []schema.RankedPassage{
			rankedWith("raft replicates the log to followers"),
			rankedWith("log entries are committed by majority"),
		}
		report := New(nil).Enrich(ctx, query, ranked)
		assert.ElementsMatch(t, []string{"snapshots", "compaction"}, report.MissingConcepts)
		assert.False(t, report.NeedsMoreRetrieval)
	})

	t.Run("Poor coverage recommends more retrieval", func(t *testing.T) {
		ranked := []schema.RankedPassage{rankedWith("raft basics only")}
		report := New(nil).Enrich(ctx, query, ranked)
		assert.Len(t, report.MissingConcepts, 3)
		assert.True(t, report.NeedsMoreRetrieval)
	})

	t.Run("Model suggests supplemental queries for the gaps", func(t *testing.T) {
		mock := &llm.MockClient{StructuredResponse: `{"queries": ["raft snapshot mechanism", "log compaction raft"]}`}
		ranked := []schema.RankedPassage{rankedWith("raft basics only")}

		report := New(mock).Enrich(ctx, query, ranked)
		assert.Equal(t, []string{"raft snapshot mechanism", "log compaction raft"}, report.SupplementalQueries)
	})

	t.Run("Model failure leaves the lexical report intact", func(t *testing.T) {
		mock := llm.NewMockClientWithError(errors.New("down"))
		ranked := []schema.RankedPassage{rankedWith("raft basics only")}

		report := New(mock).Enrich(ctx, query, ranked)
		assert.True(t, report.NeedsMoreRetrieval)
		assert.Empty(t, report.SupplementalQueries)
	})
}
