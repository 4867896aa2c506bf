package llm

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestExtractJSON tests fence stripping and brace trimming.
func TestExtractJSON(t *testing.T) {
	t.Run("Passes through clean JSON", func(t *testing.T) {
		assert.Equal(t, `{"a":1}`, ExtractJSON(`{"a":1}`))
	})

	t.Run("Strips json code fence", func(t *testing.T) {
		text := "```json\n{\"a\": 1}\n```"
		assert.Equal(t, `{"a": 1}`, ExtractJSON(text))
	})

	t.Run("Strips bare code fence around an object", func(t *testing.T) {
		text := "```\n{\"a\": 1}\n```"
		assert.Equal(t, `{"a": 1}`, ExtractJSON(text))
	})

	t.Run("Trims prose around the object", func(t *testing.T) {
		text := `Here is the analysis: {"a": 1} as requested.`
		assert.Equal(t, `{"a": 1}`, ExtractJSON(text))
	})

	t.Run("Returns empty when no object found", func(t *testing.T) {
		assert.Empty(t, ExtractJSON("no json here"))
	})
}

// TestMockClient tests the test double itself, since every other package
// leans on it.
func TestMockClient(t *testing.T) {
	ctx := context.Background()

	t.Run("Complete returns the fixed response", func(t *testing.T) {
		m := NewMockClient("fine")
		got, err := m.Complete(ctx, "prompt")
		require.NoError(t, err)
		assert.Equal(t, "fine", got)
		assert.Equal(t, 1, m.Calls)
	})

	t.Run("Error client fails both methods", func(t *testing.T) {
		boom := errors.New("boom")
		m := NewMockClientWithError(boom)

		_, err := m.Complete(ctx, "p")
		assert.ErrorIs(t, err, boom)

		var out map[string]any
		assert.ErrorIs(t, m.StructuredComplete(ctx, "p", &out), boom)
	})

	t.Run("StructuredComplete unmarshals the configured JSON", func(t *testing.T) {
		m := &MockClient{StructuredResponse: `{"n": 2}`}
		var out struct {
			N int `json:"n"`
		}
		require.NoError(t, m.StructuredComplete(ctx, "p", &out))
		assert.Equal(t, 2, out.N)
	})

	t.Run("Invalid structured response is malformed output", func(t *testing.T) {
		m := &MockClient{StructuredResponse: "not json"}
		var out map[string]any
		assert.ErrorIs(t, m.StructuredComplete(ctx, "p", &out), ErrMalformedOutput)
	})
}
