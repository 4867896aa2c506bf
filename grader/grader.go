// Package grader classifies candidate passages as relevant or irrelevant
// to a question with one yes/no language model call per passage, then
// drops the irrelevant ones. Grading fails open: a passage whose
// classification errors is kept, so a flaky model never starves the
// downstream stages.
package grader

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"golang.org/x/sync/semaphore"

	"github.com/quarrylabs/quarry/config"
	"github.com/quarrylabs/quarry/llm"
	"github.com/quarrylabs/quarry/schema"
)

const gradePromptTemplate = `You are grading whether a retrieved passage is relevant to a question.

Question: %s

Passage:
%s

Is the passage relevant to answering the question? Answer with a single word: YES or NO.`

// Grader filters passages by relevance.
type Grader struct {
	llm    llm.Client
	cfg    config.GradingConfig
	logger *slog.Logger
}

// Option configures a Grader.
type Option func(*Grader)

// WithConfig sets the grading configuration.
func WithConfig(cfg config.GradingConfig) Option {
	return func(g *Grader) {
		g.cfg = cfg
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(g *Grader) {
		g.logger = logger
	}
}

// New creates a Grader.
func New(client llm.Client, opts ...Option) *Grader {
	g := &Grader{
		llm:    client,
		cfg:    config.Default().Grading,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Grade classifies each passage against the question and returns the ones
// judged relevant, in their original order. Passages that fail to
// classify are included. A nil model keeps everything.
func (g *Grader) Grade(ctx context.Context, question string, passages []schema.Passage) ([]schema.GradedPassage, error) {
	if len(passages) == 0 {
		return nil, nil
	}

	graded := make([]schema.GradedPassage, len(passages))
	failed := 0

	if g.llm == nil {
		for i, p := range passages {
			graded[i] = schema.GradedPassage{Passage: p, IsRelevant: true}
		}
		return graded, nil
	}

	sem := semaphore.NewWeighted(int64(g.cfg.MaxConcurrency))
	var (
		wg sync.WaitGroup
		mu sync.Mutex
	)

	for i, p := range passages {
		i, p := i, p
		if err := sem.Acquire(ctx, 1); err != nil {
			// Context cancelled: fail open for the rest.
			mu.Lock()
			failed += len(passages) - i
			mu.Unlock()
			for j := i; j < len(passages); j++ {
				graded[j] = schema.GradedPassage{Passage: passages[j], IsRelevant: true}
			}
			break
		}

		wg.Add(1)
		go func() {
			defer wg.Done()
			defer sem.Release(1)

			relevant, err := g.gradeOne(ctx, question, p)
			if err != nil {
				// Fail open: keep the passage rather than drop it.
				g.logger.Warn("grading failed, keeping passage",
					"passage", p.ID, "error", err)
				mu.Lock()
				failed++
				mu.Unlock()
				relevant = true
			}
			graded[i] = schema.GradedPassage{Passage: p, IsRelevant: relevant}
		}()
	}
	wg.Wait()

	kept := graded[:0:0]
	for _, gp := range graded {
		if gp.IsRelevant {
			kept = append(kept, gp)
		}
	}

	g.logger.Info("grading complete",
		"in", len(passages),
		"kept", len(kept),
		"dropped", len(passages)-len(kept),
		"failed_open", failed)

	return kept, nil
}

// gradeOne issues a single yes/no classification.
func (g *Grader) gradeOne(ctx context.Context, question string, p schema.Passage) (bool, error) {
	prompt := fmt.Sprintf(gradePromptTemplate, question, p.Content)
	reply, err := g.llm.Complete(ctx, prompt)
	if err != nil {
		return false, err
	}

	answer := strings.ToLower(strings.TrimSpace(reply))
	switch {
	case strings.HasPrefix(answer, "yes"):
		return true, nil
	case strings.HasPrefix(answer, "no"):
		return false, nil
	}
	return false, fmt.Errorf("%w: unexpected grade %q", llm.ErrMalformedOutput, reply)
}
