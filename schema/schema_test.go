package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// TestIntent tests intent validation.
func TestIntent(t *testing.T) {
	t.Run("Valid accepts all known intents", func(t *testing.T) {
		for _, i := range []Intent{IntentFactual, IntentConceptual, IntentProcedural, IntentMultiHop, IntentExploratory} {
			assert.True(t, i.Valid(), string(i))
		}
	})

	t.Run("Valid rejects unknown intents", func(t *testing.T) {
		assert.False(t, Intent("").Valid())
		assert.False(t, Intent("guesswork").Valid())
	})
}

// TestStrategy tests strategy validation and upgrades.
func TestStrategy(t *testing.T) {
	t.Run("Upgrade widens stepwise", func(t *testing.T) {
		assert.Equal(t, StrategyBroad, StrategyFocused.Upgrade())
		assert.Equal(t, StrategyMultiStage, StrategyBroad.Upgrade())
	})

	t.Run("multi_stage is terminal", func(t *testing.T) {
		assert.Equal(t, StrategyMultiStage, StrategyMultiStage.Upgrade())
	})

	t.Run("Valid rejects unknown strategies", func(t *testing.T) {
		assert.True(t, StrategyBroad.Valid())
		assert.False(t, Strategy("wide").Valid())
	})
}

// TestVerdict tests verdict gating.
func TestVerdict(t *testing.T) {
	assert.True(t, VerdictExcellent.Passing())
	assert.True(t, VerdictGood.Passing())
	assert.True(t, VerdictAcceptable.Passing())
	assert.False(t, VerdictInsufficient.Passing())
}

// TestQuerySearchTerms tests term extraction for keyword matching.
func TestQuerySearchTerms(t *testing.T) {
	t.Run("Lowercases and strips punctuation", func(t *testing.T) {
		q := Query{OriginalText: "How does Raft handle elections?"}
		assert.Equal(t, []string{"how", "does", "raft", "handle", "elections"}, q.SearchTerms())
	})

	t.Run("Merges concepts without duplicates", func(t *testing.T) {
		q := Query{
			OriginalText: "raft elections",
			KeyConcepts:  []string{"Raft", "leader election"},
		}
		assert.Equal(t, []string{"raft", "elections", "leader", "election"}, q.SearchTerms())
	})

	t.Run("Empty query yields no terms", func(t *testing.T) {
		assert.Empty(t, Query{}.SearchTerms())
	})
}

// TestNewPassage tests passage construction.
func TestNewPassage(t *testing.T) {
	p := NewPassage("some content", "doc.md", 3, 0.82)
	assert.NotEmpty(t, p.ID)
	assert.Equal(t, "some content", p.Content)
	assert.Equal(t, "doc.md", p.Source)
	assert.Equal(t, 3, p.ChunkIndex)
	assert.Equal(t, 0.82, p.RawRelevance)

	other := NewPassage("some content", "doc.md", 3, 0.82)
	assert.NotEqual(t, p.ID, other.ID)
}

// TestMessages tests chat message constructors.
func TestMessages(t *testing.T) {
	u := NewUserMessage("hello")
	assert.Equal(t, RoleUser, u.Role)
	assert.Equal(t, "hello", u.Content)

	a := NewAssistantMessage("hi")
	assert.Equal(t, RoleAssistant, a.Role)
}
