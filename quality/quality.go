// Package quality judges whether a ranked passage set is good enough to
// answer from. It aggregates relevance, concept coverage, and source
// diversity into a single quality score, derives a verdict, and
// recommends whether (and how) retrieval should be retried. The assessor
// is pure computation; the coordinator owns what happens with the
// verdict.
package quality

import (
	"log/slog"
	"strings"

	"github.com/quarrylabs/quarry/schema"
)

// Score weights and decision thresholds.
const (
	relevanceWeight = 0.5
	coverageWeight  = 0.3
	diversityWeight = 0.2

	excellentThreshold  = 0.7
	goodThreshold       = 0.5
	acceptableThreshold = 0.4

	reRetrievalThreshold = 0.45
	lowSignalThreshold   = 0.3

	// defaultCoverage applies when no key concepts were extracted.
	defaultCoverage = 0.8
	// partialMatchWeight discounts concepts only partially present.
	partialMatchWeight = 0.5
	// comprehensiveSourceMin is the passage count at which a single
	// source stops being penalized for lack of diversity.
	comprehensiveSourceMin   = 5
	comprehensiveSourceScore = 0.7
)

// Assessor produces QualityReports.
type Assessor struct {
	logger *slog.Logger
}

// Option configures an Assessor.
type Option func(*Assessor)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(a *Assessor) {
		a.logger = logger
	}
}

// New creates an Assessor.
func New(opts ...Option) *Assessor {
	a := &Assessor{logger: slog.Default()}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Assess scores the ranked set against the query and renders a verdict.
func (a *Assessor) Assess(query schema.Query, ranked []schema.RankedPassage) schema.QualityReport {
	report := schema.QualityReport{
		RelevanceScore: relevanceScore(ranked),
		CoverageScore:  coverageScore(query.KeyConcepts, ranked),
		DiversityScore: diversityScore(ranked),
	}
	report.QualityScore = relevanceWeight*report.RelevanceScore +
		coverageWeight*report.CoverageScore +
		diversityWeight*report.DiversityScore

	switch {
	case report.QualityScore >= excellentThreshold:
		report.Verdict = schema.VerdictExcellent
	case report.QualityScore >= goodThreshold:
		report.Verdict = schema.VerdictGood
	case report.QualityScore >= acceptableThreshold:
		report.Verdict = schema.VerdictAcceptable
	default:
		report.Verdict = schema.VerdictInsufficient
	}

	report.Issues = issues(report, ranked)
	report.NeedsReRetrieval = report.QualityScore < reRetrievalThreshold
	report.StrategyHint = schema.HintNone
	if report.NeedsReRetrieval {
		switch {
		case report.CoverageScore < lowSignalThreshold:
			report.StrategyHint = schema.HintMultiStage
		case report.RelevanceScore < lowSignalThreshold:
			report.StrategyHint = schema.HintFocused
		default:
			report.StrategyHint = schema.HintBroad
		}
	}

	a.logger.Debug("quality assessed",
		"quality", report.QualityScore,
		"verdict", report.Verdict,
		"needs_re_retrieval", report.NeedsReRetrieval)

	return report
}

// relevanceScore is the mean combined score, 0 for an empty set.
func relevanceScore(ranked []schema.RankedPassage) float64 {
	if len(ranked) == 0 {
		return 0
	}
	sum := 0.0
	for _, rp := range ranked {
		sum += rp.CombinedScore
	}
	return sum / float64(len(ranked))
}

// coverageScore is the fraction of key concepts present, fully or
// partially, in the concatenated ranked content.
func coverageScore(concepts []string, ranked []schema.RankedPassage) float64 {
	if len(concepts) == 0 {
		return defaultCoverage
	}
	if len(ranked) == 0 {
		return 0
	}

	var sb strings.Builder
	for _, rp := range ranked {
		sb.WriteString(strings.ToLower(rp.Content))
		sb.WriteByte(' ')
	}
	content := sb.String()

	covered := 0.0
	for _, concept := range concepts {
		lower := strings.ToLower(concept)
		if strings.Contains(content, lower) {
			covered++
			continue
		}
		// Partial: any substantial word of a multi-word concept.
		for _, w := range strings.Fields(lower) {
			if len(w) >= 4 && strings.Contains(content, w) {
				covered += partialMatchWeight
				break
			}
		}
	}
	return covered / float64(len(concepts))
}

// diversityScore is the ratio of distinct sources to passage count. One
// comprehensive source with several passages is not treated as a failure.
func diversityScore(ranked []schema.RankedPassage) float64 {
	if len(ranked) == 0 {
		return 0
	}

	sources := make(map[string]bool)
	for _, rp := range ranked {
		sources[rp.Source] = true
	}
	score := float64(len(sources)) / float64(len(ranked))

	if len(sources) == 1 && len(ranked) >= comprehensiveSourceMin && score < comprehensiveSourceScore {
		score = comprehensiveSourceScore
	}
	return score
}

// issues lists the concrete problems behind a weak report.
func issues(report schema.QualityReport, ranked []schema.RankedPassage) []string {
	var out []string
	if len(ranked) == 0 {
		return append(out, "no relevant passages retrieved")
	}
	if report.RelevanceScore < lowSignalThreshold {
		out = append(out, "low relevance of retrieved passages")
	}
	if report.CoverageScore < lowSignalThreshold {
		out = append(out, "key concepts poorly covered")
	}
	if report.DiversityScore < lowSignalThreshold {
		out = append(out, "evidence drawn from too few sources")
	}
	return out
}
