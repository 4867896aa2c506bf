// Package pipeline wires the retrieval stages into a resumable state
// machine. A Coordinator drives one question per turn through analysis,
// retrieval, grading, ranking, assessment, and synthesis, persisting the
// run after every stage so a thread can suspend at human review
// checkpoints and resume later, possibly in another process.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/quarrylabs/quarry/analyzer"
	"github.com/quarrylabs/quarry/checkpoint"
	"github.com/quarrylabs/quarry/config"
	"github.com/quarrylabs/quarry/enricher"
	"github.com/quarrylabs/quarry/grader"
	"github.com/quarrylabs/quarry/quality"
	"github.com/quarrylabs/quarry/reranker"
	"github.com/quarrylabs/quarry/retriever"
	"github.com/quarrylabs/quarry/schema"
	"github.com/quarrylabs/quarry/synthesis"
)

// Components are the stage implementations a Coordinator drives.
// Analyzer, Retriever, Grader, ReRanker, Assessor, and Writer are
// required. Enricher and Verifier are only consulted when the matching
// pipeline flags are enabled.
type Components struct {
	Analyzer  *analyzer.Analyzer
	Retriever *retriever.Retriever
	Grader    *grader.Grader
	ReRanker  *reranker.ReRanker
	Enricher  *enricher.Enricher
	Assessor  *quality.Assessor
	Writer    *synthesis.Writer
	Verifier  *synthesis.Verifier
}

func (c Components) validate(cfg config.PipelineConfig) error {
	switch {
	case c.Analyzer == nil:
		return errors.New("pipeline: analyzer is required")
	case c.Retriever == nil:
		return errors.New("pipeline: retriever is required")
	case c.Grader == nil:
		return errors.New("pipeline: grader is required")
	case c.ReRanker == nil:
		return errors.New("pipeline: re-ranker is required")
	case c.Assessor == nil:
		return errors.New("pipeline: quality assessor is required")
	case c.Writer == nil:
		return errors.New("pipeline: answer writer is required")
	case cfg.EnableEnrichment && c.Enricher == nil:
		return errors.New("pipeline: enrichment enabled but no enricher provided")
	case cfg.VerifyCitations && c.Verifier == nil:
		return errors.New("pipeline: citation verification enabled but no verifier provided")
	}
	return nil
}

// Coordinator owns the pipeline state machine for all threads sharing a
// checkpoint store.
type Coordinator struct {
	components Components
	store      checkpoint.Store
	cfg        config.PipelineConfig
	logger     *slog.Logger
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithConfig sets the pipeline configuration.
func WithConfig(cfg config.PipelineConfig) Option {
	return func(c *Coordinator) { c.cfg = cfg }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Coordinator) { c.logger = logger }
}

// New creates a Coordinator. The store may be nil, in which case runs
// are kept in process memory only.
func New(components Components, store checkpoint.Store, opts ...Option) (*Coordinator, error) {
	if store == nil {
		store = checkpoint.NewMemoryStore()
	}
	c := &Coordinator{
		components: components,
		store:      store,
		cfg:        config.Default().Pipeline,
		logger:     slog.New(slog.NewJSONHandler(os.Stderr, nil)),
	}
	for _, opt := range opts {
		opt(c)
	}
	if err := components.validate(c.cfg); err != nil {
		return nil, err
	}
	return c, nil
}

// Submit starts a new turn on the thread. An empty threadID starts a
// fresh thread with a generated ID. Returns ErrBusy if the thread is
// suspended awaiting feedback; a cancelled thread is revived with a
// clean turn.
func (c *Coordinator) Submit(ctx context.Context, threadID, question string) (*Result, error) {
	run, err := c.prepareSubmit(ctx, threadID, question)
	if err != nil {
		return nil, err
	}
	return c.advance(ctx, run, nil)
}

// SubmitStream is Submit with stage-by-stage progress reporting. The
// returned channel carries one event per stage transition and a final
// event holding the Result; it is closed when the run suspends or
// completes.
func (c *Coordinator) SubmitStream(ctx context.Context, threadID, question string) (<-chan StageEvent, error) {
	run, err := c.prepareSubmit(ctx, threadID, question)
	if err != nil {
		return nil, err
	}
	return c.stream(ctx, run), nil
}

// Resume delivers human feedback to a suspended thread and continues
// execution. Returns ErrInvalidState if the thread has no suspended run
// and ErrNotResumable if it was cancelled.
func (c *Coordinator) Resume(ctx context.Context, threadID, feedback string) (*Result, error) {
	run, err := c.prepareResume(ctx, threadID, feedback)
	if err != nil {
		return nil, err
	}
	return c.advance(ctx, run, nil)
}

// ResumeStream is Resume with stage-by-stage progress reporting.
func (c *Coordinator) ResumeStream(ctx context.Context, threadID, feedback string) (<-chan StageEvent, error) {
	run, err := c.prepareResume(ctx, threadID, feedback)
	if err != nil {
		return nil, err
	}
	return c.stream(ctx, run), nil
}

// Cancel marks the thread's run as permanently non-resumable. The
// persisted state is kept for inspection until deleted.
func (c *Coordinator) Cancel(ctx context.Context, threadID string) error {
	run, err := c.loadRun(ctx, threadID)
	if err != nil {
		return err
	}
	if run == nil {
		return ErrInvalidState
	}
	run.Cancelled = true
	run.AwaitingFeedback = false
	return c.save(ctx, run)
}

func (c *Coordinator) prepareSubmit(ctx context.Context, threadID, question string) (*Run, error) {
	if threadID == "" {
		threadID = uuid.NewString()
	}
	run, err := c.loadRun(ctx, threadID)
	if err != nil {
		return nil, err
	}
	if run == nil {
		run = &Run{ThreadID: threadID, CreatedAt: time.Now().UTC()}
	}
	if run.AwaitingFeedback {
		return nil, ErrBusy
	}
	run.Cancelled = false
	run.newTurn(question)
	return run, nil
}

func (c *Coordinator) prepareResume(ctx context.Context, threadID, feedback string) (*Run, error) {
	run, err := c.loadRun(ctx, threadID)
	if err != nil {
		return nil, err
	}
	if run == nil {
		return nil, ErrInvalidState
	}
	if run.Cancelled {
		return nil, ErrNotResumable
	}
	if !run.AwaitingFeedback || !run.Stage.IsInterrupt() {
		return nil, ErrInvalidState
	}
	cmd := ParseFeedback(feedback)
	c.logger.Info("resuming run",
		"thread_id", threadID, "stage", run.Stage, "command", cmd)
	run.AwaitingFeedback = false
	run.Stage = c.transition(run, cmd)
	return run, nil
}

// transition maps a feedback command at an interrupt stage to the next
// processing stage.
func (c *Coordinator) transition(run *Run, cmd Command) Stage {
	switch cmd {
	case CommandMoreSources:
		// Widen the net so the second pass is not a replay of the first.
		run.CurrentQuery.Strategy = run.CurrentQuery.Strategy.Upgrade()
		return StageRetrieve
	case CommandRewrite, CommandIterate:
		if run.RewriteCount < c.cfg.MaxRewrites {
			return StageRewrite
		}
		c.logger.Warn("rewrite requested but budget exhausted, continuing",
			"thread_id", run.ThreadID, "rewrites", run.RewriteCount)
		return c.successor(run.Stage)
	case CommandRevise:
		return StageWrite
	case CommandShip:
		return StageDone
	case CommandRestart:
		run.restartTurn()
		return StageAnalyze
	default:
		return c.successor(run.Stage)
	}
}

// successor is the natural next stage after approving an interrupt.
func (c *Coordinator) successor(s Stage) Stage {
	switch s {
	case StageReviewAnalysis:
		return StageRetrieve
	case StageReviewRetrieval:
		return StageGrade
	case StageReviewRanking:
		if c.cfg.EnableEnrichment {
			return StageEnrich
		}
		return StageAssess
	case StageReviewDraft:
		if c.cfg.VerifyCitations {
			return StageVerify
		}
		return StageDone
	case StageFinalApproval:
		return StageDone
	}
	return StageDone
}

// advance runs the state machine until the run completes or suspends.
// emit, when non-nil, is called with an event for every stage entered.
func (c *Coordinator) advance(ctx context.Context, run *Run, emit func(StageEvent)) (*Result, error) {
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if emit != nil {
			emit(StageEvent{Stage: run.Stage})
		}

		if run.Stage == StageDone {
			return c.finish(ctx, run)
		}
		if run.Stage.IsInterrupt() {
			run.AwaitingFeedback = true
			if err := c.save(ctx, run); err != nil {
				// Without a persisted checkpoint the suspension could
				// never be resumed, so this failure is fatal.
				return nil, fmt.Errorf("failed to checkpoint suspended run: %w", err)
			}
			c.logger.Info("run suspended for review",
				"thread_id", run.ThreadID, "checkpoint", run.Stage)
			return &Result{
				ThreadID:       run.ThreadID,
				Suspended:      true,
				NextCheckpoint: run.Stage,
			}, nil
		}

		next := c.step(ctx, run)
		c.logger.Debug("stage complete",
			"thread_id", run.ThreadID, "stage", run.Stage, "next", next)
		run.Stage = next
		if err := c.save(ctx, run); err != nil {
			// Mid-flight persistence trouble degrades resumability, not
			// the answer.
			c.logger.Warn("checkpoint save failed", "thread_id", run.ThreadID, "error", err)
		}
	}
}

func (c *Coordinator) stream(ctx context.Context, run *Run) <-chan StageEvent {
	ch := make(chan StageEvent, 8)
	go func() {
		defer close(ch)
		emit := func(ev StageEvent) {
			select {
			case ch <- ev:
			case <-ctx.Done():
			}
		}
		result, err := c.advance(ctx, run, emit)
		emit(StageEvent{Stage: run.Stage, Result: result, Err: err})
	}()
	return ch
}

// step executes the run's current processing stage and returns the next
// stage. Stage failures never abort the run; they are absorbed into the
// degradation log and surface in the answer's limitations.
func (c *Coordinator) step(ctx context.Context, run *Run) Stage {
	switch run.Stage {
	case StageAnalyze:
		return c.stepAnalyze(ctx, run)
	case StageRetrieve:
		return c.stepRetrieve(ctx, run)
	case StageGrade:
		return c.stepGrade(ctx, run)
	case StageRank:
		return c.stepRank(ctx, run)
	case StageEnrich:
		return c.stepEnrich(ctx, run)
	case StageAssess:
		return c.stepAssess(run)
	case StageRewrite:
		return c.stepRewrite(run)
	case StageWrite:
		return c.stepWrite(ctx, run)
	case StageVerify:
		return c.stepVerify(run)
	default:
		c.logger.Error("unknown stage, forcing completion",
			"thread_id", run.ThreadID, "stage", run.Stage)
		return StageDone
	}
}

func (c *Coordinator) stepAnalyze(ctx context.Context, run *Run) Stage {
	var prior *schema.QualityReport
	if run.RewriteCount > 0 {
		prior = run.Quality
	}
	query, err := c.components.Analyzer.Analyze(ctx, run.Question, prior)
	if err != nil {
		run.degrade("query analysis degraded: " + err.Error())
	}
	if prior != nil && prior.StrategyHint != schema.HintNone {
		if hinted := schema.Strategy(prior.StrategyHint); hinted.Valid() {
			query.Strategy = hinted
		}
	}
	if prior != nil && run.Enrichment != nil {
		// The previous pass's enrichment told us what was missing; search
		// for it this time around.
		query.RewrittenVariants = mergeVariants(query.RewrittenVariants,
			run.Enrichment.SupplementalQueries)
		run.Enrichment = nil
	}
	run.CurrentQuery = query
	if c.cfg.HumanInTheLoop {
		return StageReviewAnalysis
	}
	return StageRetrieve
}

func (c *Coordinator) stepRetrieve(ctx context.Context, run *Run) Stage {
	passages, err := c.components.Retriever.Retrieve(ctx, run.CurrentQuery)
	if err != nil {
		run.degrade("retrieval failed: " + err.Error())
		passages = nil
	}
	run.Candidates = passages
	if c.cfg.HumanInTheLoop {
		return StageReviewRetrieval
	}
	return StageGrade
}

func (c *Coordinator) stepGrade(ctx context.Context, run *Run) Stage {
	graded, err := c.components.Grader.Grade(ctx, run.Question, run.Candidates)
	if err != nil {
		run.degrade("grading failed, keeping all candidates: " + err.Error())
		graded = make([]schema.GradedPassage, 0, len(run.Candidates))
		for _, p := range run.Candidates {
			graded = append(graded, schema.GradedPassage{Passage: p, IsRelevant: true})
		}
	}
	run.Graded = graded
	return StageRank
}

func (c *Coordinator) stepRank(ctx context.Context, run *Run) Stage {
	ranked, err := c.components.ReRanker.Rerank(ctx, run.CurrentQuery, run.Graded)
	if err != nil {
		run.degrade("re-ranking failed: " + err.Error())
		ranked = nil
	}
	run.Ranked = ranked
	if c.cfg.HumanInTheLoop {
		return StageReviewRanking
	}
	if c.cfg.EnableEnrichment {
		return StageEnrich
	}
	return StageAssess
}

func (c *Coordinator) stepEnrich(ctx context.Context, run *Run) Stage {
	report := c.components.Enricher.Enrich(ctx, run.CurrentQuery, run.Ranked)
	run.Enrichment = &report
	return StageAssess
}

func (c *Coordinator) stepAssess(run *Run) Stage {
	report := c.components.Assessor.Assess(run.CurrentQuery, run.Ranked)
	run.Quality = &report

	needsLoop := !report.Verdict.Passing() || report.NeedsReRetrieval ||
		(run.Enrichment != nil && run.Enrichment.NeedsMoreRetrieval)
	if !needsLoop {
		return StageWrite
	}
	if run.RewriteCount < c.cfg.MaxRewrites {
		return StageRewrite
	}
	// Loop budget spent: answer with what we have and say so.
	run.Quality.Issues = append(run.Quality.Issues,
		"rewrite budget exhausted, answering with best available evidence")
	c.logger.Info("rewrite budget exhausted, forcing synthesis",
		"thread_id", run.ThreadID,
		"quality_score", report.QualityScore,
		"rewrites", run.RewriteCount)
	return StageWrite
}

func (c *Coordinator) stepRewrite(run *Run) Stage {
	run.RewriteCount++
	run.Candidates = nil
	run.Graded = nil
	run.Ranked = nil
	// Enrichment survives the reset; stepAnalyze consumes it.
	c.logger.Info("re-analyzing query",
		"thread_id", run.ThreadID, "attempt", run.RewriteCount+1)
	return StageAnalyze
}

func (c *Coordinator) stepWrite(ctx context.Context, run *Run) Stage {
	var report schema.QualityReport
	if run.Quality != nil {
		report = *run.Quality
	}
	answer, err := c.components.Writer.Write(ctx, run.CurrentQuery, run.Ranked, report)
	if err != nil {
		run.degrade("synthesis failed: " + err.Error())
		answer = schema.Answer{
			Text:        "An answer could not be produced for this question.",
			Limitations: "answer synthesis failed",
		}
	}
	answer.Limitations = joinLimitations(answer.Limitations, run.Degraded)
	run.Answer = &answer
	if c.cfg.HumanInTheLoop {
		return StageReviewDraft
	}
	if c.cfg.VerifyCitations {
		return StageVerify
	}
	return StageDone
}

func (c *Coordinator) stepVerify(run *Run) Stage {
	if run.Answer != nil {
		verified := c.components.Verifier.Verify(*run.Answer, run.Ranked)
		run.Answer = &verified
	}
	if c.cfg.HumanInTheLoop {
		return StageFinalApproval
	}
	return StageDone
}

func (c *Coordinator) finish(ctx context.Context, run *Run) (*Result, error) {
	if run.Answer != nil {
		run.TurnHistory = append(run.TurnHistory, schema.NewAssistantMessage(run.Answer.Text))
	}
	if err := c.save(ctx, run); err != nil {
		c.logger.Warn("final checkpoint save failed",
			"thread_id", run.ThreadID, "error", err)
	}
	c.logger.Info("run complete",
		"thread_id", run.ThreadID, "rewrites", run.RewriteCount)
	return &Result{ThreadID: run.ThreadID, Answer: run.Answer}, nil
}

func (c *Coordinator) loadRun(ctx context.Context, threadID string) (*Run, error) {
	data, err := c.store.Load(ctx, threadID)
	if errors.Is(err, checkpoint.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load run %s: %w", threadID, err)
	}
	return UnmarshalRun(data)
}

func (c *Coordinator) save(ctx context.Context, run *Run) error {
	run.UpdatedAt = time.Now().UTC()
	data, err := run.Marshal()
	if err != nil {
		return err
	}
	return c.store.Save(ctx, run.ThreadID, data)
}

// mergeVariants appends extras not already among the variants, holding
// the list to the schema cap.
func mergeVariants(variants, extras []string) []string {
	seen := make(map[string]struct{}, len(variants))
	for _, v := range variants {
		seen[strings.ToLower(v)] = struct{}{}
	}
	for _, e := range extras {
		if len(variants) >= schema.MaxRewrittenVariants {
			break
		}
		e = strings.TrimSpace(e)
		key := strings.ToLower(e)
		if e == "" {
			continue
		}
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		variants = append(variants, e)
	}
	return variants
}

func joinLimitations(existing string, degraded []string) string {
	parts := make([]string, 0, len(degraded)+1)
	if existing != "" {
		parts = append(parts, existing)
	}
	parts = append(parts, degraded...)
	if len(parts) == 0 {
		return ""
	}
	result := parts[0]
	for _, p := range parts[1:] {
		result += "; " + p
	}
	return result
}
