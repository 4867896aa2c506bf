package pipeline

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/quarrylabs/quarry/enricher"
	"github.com/quarrylabs/quarry/schema"
)

// Run is the aggregate state of one conversation thread as it moves
// through the state machine. It is mutated by each stage and persisted
// after every transition so a thread can suspend and resume, possibly in
// a different process.
type Run struct {
	// ThreadID keys the run in the checkpoint store.
	ThreadID string `json:"thread_id"`
	// TurnHistory is the conversation so far.
	TurnHistory []schema.ChatMessage `json:"turn_history,omitempty"`
	// Question is the user text driving the current turn.
	Question string `json:"question"`
	// CurrentQuery is the analyzed query for the current attempt.
	CurrentQuery schema.Query `json:"current_query"`
	// Candidates are the raw retrieval results.
	Candidates []schema.Passage `json:"candidates,omitempty"`
	// Graded are the candidates that survived grading.
	Graded []schema.GradedPassage `json:"graded,omitempty"`
	// Ranked is the re-ranked working set.
	Ranked []schema.RankedPassage `json:"ranked,omitempty"`
	// Enrichment is the optional gap analysis result.
	Enrichment *enricher.Report `json:"enrichment,omitempty"`
	// Quality is the latest assessment.
	Quality *schema.QualityReport `json:"quality,omitempty"`
	// Answer is the terminal artifact, set by the write stage.
	Answer *schema.Answer `json:"answer,omitempty"`
	// RewriteCount counts completed rewrite loops this turn. It only
	// ever increases; the coordinator refuses to loop past the
	// configured maximum.
	RewriteCount int `json:"rewrite_count"`
	// Stage is the machine's current position.
	Stage Stage `json:"stage"`
	// Degraded notes stages that failed and were absorbed; they surface
	// in the answer's limitations.
	Degraded []string `json:"degraded,omitempty"`
	// AwaitingFeedback marks a run suspended at an interrupt stage.
	AwaitingFeedback bool `json:"awaiting_feedback"`
	// Cancelled marks a run as permanently non-resumable.
	Cancelled bool `json:"cancelled"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// newTurn resets per-turn state for a fresh question, keeping the thread
// identity and conversation history.
func (r *Run) newTurn(question string) {
	r.Question = question
	r.CurrentQuery = schema.Query{}
	r.Candidates = nil
	r.Graded = nil
	r.Ranked = nil
	r.Enrichment = nil
	r.Quality = nil
	r.Answer = nil
	r.RewriteCount = 0
	r.Degraded = nil
	r.Stage = StageAnalyze
	r.AwaitingFeedback = false
	r.TurnHistory = append(r.TurnHistory, schema.NewUserMessage(question))
}

// restartTurn throws away all intermediate work for the current question
// so it can be processed again from scratch. Unlike newTurn it does not
// touch the conversation history.
func (r *Run) restartTurn() {
	r.CurrentQuery = schema.Query{}
	r.Candidates = nil
	r.Graded = nil
	r.Ranked = nil
	r.Enrichment = nil
	r.Quality = nil
	r.Answer = nil
	r.RewriteCount = 0
	r.Degraded = nil
	r.Stage = StageAnalyze
}

// degrade records a stage failure that was absorbed rather than fatal.
func (r *Run) degrade(note string) {
	r.Degraded = append(r.Degraded, note)
}

// Marshal serializes the run for the checkpoint store.
func (r *Run) Marshal() ([]byte, error) {
	data, err := json.Marshal(r)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal run: %w", err)
	}
	return data, nil
}

// UnmarshalRun deserializes a run from checkpoint state.
func UnmarshalRun(data []byte) (*Run, error) {
	var run Run
	if err := json.Unmarshal(data, &run); err != nil {
		return nil, fmt.Errorf("failed to unmarshal run: %w", err)
	}
	return &run, nil
}

// Result is what a Submit or Resume call produces: either a final answer
// or a suspension at a review checkpoint.
type Result struct {
	// ThreadID identifies the conversation.
	ThreadID string `json:"thread_id"`
	// Answer is set when the run reached Done.
	Answer *schema.Answer `json:"answer,omitempty"`
	// Suspended is true when the run paused for human feedback.
	Suspended bool `json:"suspended"`
	// NextCheckpoint is the interrupt stage the run paused at.
	NextCheckpoint Stage `json:"next_checkpoint,omitempty"`
}

// StageEvent is emitted by the streaming API as the run moves between
// stages. The final event carries the Result.
type StageEvent struct {
	Stage  Stage   `json:"stage"`
	Result *Result `json:"result,omitempty"`
	Err    error   `json:"-"`
}
