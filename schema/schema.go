// Package schema defines the shared value types that flow through the
// retrieval pipeline: queries, passages at their various stages of
// refinement, quality reports, and answers.
package schema

// Limits applied when a query is analyzed.
const (
	// MaxRewrittenVariants is the maximum number of rewritten query variants.
	MaxRewrittenVariants = 5
	// MaxKeyConcepts is the maximum number of extracted key concepts.
	MaxKeyConcepts = 5
)

// Intent classifies what kind of information need a query expresses.
type Intent string

const (
	// IntentFactual is a simple fact lookup.
	IntentFactual Intent = "factual"
	// IntentConceptual asks what something is or means.
	IntentConceptual Intent = "conceptual"
	// IntentProcedural is a how-to question.
	IntentProcedural Intent = "procedural"
	// IntentMultiHop requires combining information from several places.
	IntentMultiHop Intent = "multi_hop"
	// IntentExploratory is an open-ended survey of a topic.
	IntentExploratory Intent = "exploratory"
)

// Valid reports whether i is one of the known intents.
func (i Intent) Valid() bool {
	switch i {
	case IntentFactual, IntentConceptual, IntentProcedural, IntentMultiHop, IntentExploratory:
		return true
	}
	return false
}

// Strategy selects how retrieval is executed for a query.
type Strategy string

const (
	// StrategyFocused issues a single search on the original text.
	StrategyFocused Strategy = "focused"
	// StrategyBroad fans out over variants and concepts.
	StrategyBroad Strategy = "broad"
	// StrategyMultiStage runs sequential search stages with a fallback pass.
	StrategyMultiStage Strategy = "multi_stage"
)

// Upgrade returns the next wider strategy, used when a retry needs more
// recall. multi_stage is already the widest and upgrades to itself.
func (s Strategy) Upgrade() Strategy {
	switch s {
	case StrategyFocused:
		return StrategyBroad
	case StrategyBroad:
		return StrategyMultiStage
	default:
		return StrategyMultiStage
	}
}

// Valid reports whether s is one of the known strategies.
func (s Strategy) Valid() bool {
	switch s {
	case StrategyFocused, StrategyBroad, StrategyMultiStage:
		return true
	}
	return false
}
