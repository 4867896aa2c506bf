package pipeline

// Stage identifies a position in the pipeline state machine.
type Stage string

// Processing stages, in execution order.
const (
	StageAnalyze  Stage = "analyze"
	StageRetrieve Stage = "retrieve"
	StageGrade    Stage = "grade"
	StageRank     Stage = "rank"
	StageEnrich   Stage = "enrich"
	StageAssess   Stage = "assess"
	StageRewrite  Stage = "rewrite"
	StageWrite    Stage = "write"
	StageVerify   Stage = "verify_citations"
	StageDone     Stage = "done"
)

// Interrupt stages, entered only in human-in-the-loop mode. Execution
// suspends at each until feedback arrives.
const (
	StageReviewAnalysis  Stage = "review_analysis"
	StageReviewRetrieval Stage = "review_retrieval"
	StageReviewRanking   Stage = "review_ranking"
	StageReviewDraft     Stage = "review_draft"
	StageFinalApproval   Stage = "final_approval"
)

// IsInterrupt reports whether the stage is a human review checkpoint.
func (s Stage) IsInterrupt() bool {
	switch s {
	case StageReviewAnalysis, StageReviewRetrieval, StageReviewRanking,
		StageReviewDraft, StageFinalApproval:
		return true
	}
	return false
}
