package schema

// Citation points at a passage that supports the answer.
type Citation struct {
	// Source is the cited file path or URL.
	Source string `json:"source"`
	// ChunkIndex is the passage's position within the source.
	ChunkIndex int `json:"chunk_index"`
	// Score is the passage's combined re-ranking score.
	Score float64 `json:"score"`
}

// Answer is the terminal artifact of a pipeline run. It is immutable once
// emitted.
type Answer struct {
	// Text is the synthesized answer.
	Text string `json:"text"`
	// Confidence mirrors the quality score of the evidence used.
	Confidence float64 `json:"confidence"`
	// CitedSources lists the passages the answer draws on, best first.
	CitedSources []Citation `json:"cited_sources,omitempty"`
	// Limitations notes any degradation that occurred while producing the
	// answer (failed stages, exhausted rewrite budget, thin evidence).
	Limitations string `json:"limitations,omitempty"`
}
