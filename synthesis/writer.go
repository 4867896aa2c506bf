// Package synthesis turns a ranked passage set into a cited answer. The
// writer packs as many passages as the token budget allows into one
// synthesis prompt and falls back to a passage digest when the model is
// unavailable; the verifier cross-checks the citations afterwards.
package synthesis

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/pkoukk/tiktoken-go"

	"github.com/quarrylabs/quarry/llm"
	"github.com/quarrylabs/quarry/schema"
)

const writePromptTemplate = `Answer the question using only the numbered passages below. Cite the passages you draw on with bracketed numbers, e.g. [1].
%s
Question: %s

Passages:
%s

Answer:`

const limitationsNote = `
Note: the retrieved evidence has known gaps (%s). Acknowledge what the passages do not establish.
`

// Defaults for prompt packing.
const (
	defaultTokenBudget = 3000
	defaultEncoding    = "cl100k_base"
	fallbackPassages   = 3
)

// Writer synthesizes answers.
type Writer struct {
	llm         llm.Client
	tokenBudget int
	encoder     *tiktoken.Tiktoken
	logger      *slog.Logger
}

// WriterOption configures a Writer.
type WriterOption func(*Writer)

// WithTokenBudget caps the tokens spent on passage context.
func WithTokenBudget(budget int) WriterOption {
	return func(w *Writer) {
		w.tokenBudget = budget
	}
}

// WithWriterLogger sets the logger.
func WithWriterLogger(logger *slog.Logger) WriterOption {
	return func(w *Writer) {
		w.logger = logger
	}
}

// NewWriter creates a Writer.
func NewWriter(client llm.Client, opts ...WriterOption) *Writer {
	w := &Writer{
		llm:         client,
		tokenBudget: defaultTokenBudget,
		logger:      slog.Default(),
	}
	// Token counting degrades to a byte estimate when the encoding is
	// unavailable.
	if enc, err := tiktoken.GetEncoding(defaultEncoding); err == nil {
		w.encoder = enc
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Write synthesizes an answer from the ranked passages. Confidence mirrors
// the quality score; limitations carry the report's issues. On model
// failure the answer degrades to a digest of the strongest passages.
func (w *Writer) Write(ctx context.Context, query schema.Query, ranked []schema.RankedPassage, report schema.QualityReport) (schema.Answer, error) {
	if len(ranked) == 0 {
		return schema.Answer{
			Text:        "No relevant material was found in the indexed corpus for this question.",
			Confidence:  report.QualityScore,
			Limitations: limitationsFrom(report, "no passages were available to answer from"),
		}, nil
	}

	included := w.packPassages(ranked)
	prompt := w.buildPrompt(query.OriginalText, included, report)

	if w.llm == nil {
		return w.fallbackAnswer(ranked, report, "no language model configured"), nil
	}

	text, err := w.llm.Complete(ctx, prompt)
	if err != nil {
		w.logger.Warn("answer synthesis failed, using fallback", "error", err)
		return w.fallbackAnswer(ranked, report, "answer synthesis unavailable"), nil
	}

	return schema.Answer{
		Text:         strings.TrimSpace(text),
		Confidence:   report.QualityScore,
		CitedSources: extractCitations(text, included),
		Limitations:  limitationsFrom(report, ""),
	}, nil
}

// packPassages selects a prefix of the ranked set that fits the token
// budget. At least one passage is always included.
func (w *Writer) packPassages(ranked []schema.RankedPassage) []schema.RankedPassage {
	var included []schema.RankedPassage
	used := 0
	for _, rp := range ranked {
		cost := w.countTokens(rp.Content)
		if len(included) > 0 && used+cost > w.tokenBudget {
			break
		}
		included = append(included, rp)
		used += cost
	}
	return included
}

// buildPrompt renders the synthesis prompt.
func (w *Writer) buildPrompt(question string, included []schema.RankedPassage, report schema.QualityReport) string {
	var sb strings.Builder
	for i, rp := range included {
		fmt.Fprintf(&sb, "[%d] %s (chunk %d, score %.2f)\n%s\n\n",
			i+1, rp.Source, rp.ChunkIndex, rp.CombinedScore, rp.Content)
	}

	note := ""
	if len(report.Issues) > 0 {
		note = fmt.Sprintf(limitationsNote, strings.Join(report.Issues, "; "))
	}

	return fmt.Sprintf(writePromptTemplate, note, question, sb.String())
}

// fallbackAnswer digests the top passages when synthesis is impossible.
func (w *Writer) fallbackAnswer(ranked []schema.RankedPassage, report schema.QualityReport, reason string) schema.Answer {
	best := bestFirst(ranked)
	if len(best) > fallbackPassages {
		best = best[:fallbackPassages]
	}

	var sb strings.Builder
	sb.WriteString("The most relevant retrieved passages:\n\n")
	for _, rp := range best {
		fmt.Fprintf(&sb, "From %s (chunk %d):\n%s\n\n", rp.Source, rp.ChunkIndex, rp.Content)
	}

	return schema.Answer{
		Text:         strings.TrimSpace(sb.String()),
		Confidence:   report.QualityScore,
		CitedSources: citationsFor(best),
		Limitations:  limitationsFrom(report, reason),
	}
}

// countTokens counts tokens, estimating when no encoder is available.
func (w *Writer) countTokens(text string) int {
	if w.encoder != nil {
		return len(w.encoder.Encode(text, nil, nil))
	}
	return len(text) / 4
}

// bestFirst returns the passages sorted by combined score descending,
// undoing the positional reorder.
func bestFirst(ranked []schema.RankedPassage) []schema.RankedPassage {
	out := make([]schema.RankedPassage, len(ranked))
	copy(out, ranked)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CombinedScore > out[j].CombinedScore
	})
	return out
}

// citationsFor lists citations for the given passages in order.
func citationsFor(passages []schema.RankedPassage) []schema.Citation {
	cites := make([]schema.Citation, len(passages))
	for i, rp := range passages {
		cites[i] = schema.Citation{
			Source:     rp.Source,
			ChunkIndex: rp.ChunkIndex,
			Score:      rp.CombinedScore,
		}
	}
	return cites
}

// extractCitations scans the answer for bracketed passage numbers or
// literal source mentions. When nothing recognizable is referenced, every
// supplied passage is listed, which is the conservative reading.
func extractCitations(text string, included []schema.RankedPassage) []schema.Citation {
	var cited []schema.RankedPassage
	for i, rp := range included {
		marker := fmt.Sprintf("[%d]", i+1)
		if strings.Contains(text, marker) || (rp.Source != "" && strings.Contains(text, rp.Source)) {
			cited = append(cited, rp)
		}
	}
	if len(cited) == 0 {
		cited = included
	}
	return citationsFor(bestFirst(cited))
}

// limitationsFrom merges report issues with an extra degradation reason.
func limitationsFrom(report schema.QualityReport, extra string) string {
	parts := append([]string{}, report.Issues...)
	if extra != "" {
		parts = append(parts, extra)
	}
	return strings.Join(parts, "; ")
}
