package schema

import "github.com/google/uuid"

// Passage is a retrievable unit of text with a known source and position.
// It is produced by retrieval and read-only downstream.
type Passage struct {
	// ID uniquely identifies the passage within a run.
	ID string `json:"id"`
	// Content is the passage text.
	Content string `json:"content"`
	// Source is the file path or URL the passage came from.
	Source string `json:"source"`
	// ChunkIndex is the passage's position within its source.
	ChunkIndex int `json:"chunk_index"`
	// RawRelevance is the similarity score reported by the vector search,
	// normalized to [0, 1].
	RawRelevance float64 `json:"raw_relevance"`
}

// NewPassage creates a Passage with a generated ID.
func NewPassage(content, source string, chunkIndex int, rawRelevance float64) Passage {
	return Passage{
		ID:           uuid.New().String(),
		Content:      content,
		Source:       source,
		ChunkIndex:   chunkIndex,
		RawRelevance: rawRelevance,
	}
}

// GradedPassage is a Passage with a binary relevance verdict attached.
type GradedPassage struct {
	Passage
	// IsRelevant is the grader's verdict for the passage.
	IsRelevant bool `json:"is_relevant"`
}

// ScoreBreakdown holds the individual signals behind a combined score.
type ScoreBreakdown struct {
	Semantic  float64 `json:"semantic"`
	Keyword   float64 `json:"keyword"`
	Quality   float64 `json:"quality"`
	Diversity float64 `json:"diversity"`
}

// RankedPassage is a GradedPassage with its combined re-ranking score.
type RankedPassage struct {
	GradedPassage
	// CombinedScore is the weighted sum of the breakdown signals, in [0, 1].
	CombinedScore float64 `json:"combined_score"`
	// Breakdown records the individual signals.
	Breakdown ScoreBreakdown `json:"score_breakdown"`
}
