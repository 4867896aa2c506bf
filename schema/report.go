package schema

// Verdict is the overall judgement of a retrieval result set.
type Verdict string

const (
	// VerdictExcellent means the evidence comfortably supports an answer.
	VerdictExcellent Verdict = "excellent"
	// VerdictGood means the evidence is solid.
	VerdictGood Verdict = "good"
	// VerdictAcceptable means the evidence is usable but thin.
	VerdictAcceptable Verdict = "acceptable"
	// VerdictInsufficient means the evidence does not support an answer.
	VerdictInsufficient Verdict = "insufficient"
)

// Passing reports whether the verdict allows proceeding to answer writing.
func (v Verdict) Passing() bool {
	return v != VerdictInsufficient
}

// StrategyHint suggests which retrieval strategy a re-retrieval should use.
type StrategyHint string

const (
	HintBroad      StrategyHint = "broad"
	HintFocused    StrategyHint = "focused"
	HintMultiStage StrategyHint = "multi_stage"
	HintNone       StrategyHint = "none"
)

// QualityReport is the assessor's judgement of a ranked passage set.
// All scores are in [0, 1].
type QualityReport struct {
	RelevanceScore float64 `json:"relevance_score"`
	CoverageScore  float64 `json:"coverage_score"`
	DiversityScore float64 `json:"diversity_score"`
	QualityScore   float64 `json:"quality_score"`
	// Verdict is derived from QualityScore.
	Verdict Verdict `json:"verdict"`
	// Issues lists specific problems found with the evidence.
	Issues []string `json:"issues,omitempty"`
	// NeedsReRetrieval recommends another retrieval pass.
	NeedsReRetrieval bool `json:"needs_re_retrieval"`
	// StrategyHint suggests the strategy for that pass.
	StrategyHint StrategyHint `json:"strategy_hint"`
}
