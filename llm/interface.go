// Package llm defines the language model boundary of the pipeline and an
// OpenAI-compatible implementation of it. The pipeline uses the model for
// query analysis, passage grading, and answer synthesis; every call site
// is expected to degrade gracefully when the model is unavailable.
package llm

import (
	"context"
	"errors"
)

// ErrMalformedOutput is returned (wrapped) by StructuredComplete when the
// model reply cannot be parsed into the requested shape. Callers that
// grade or classify treat it as a signal to fail open.
var ErrMalformedOutput = errors.New("llm: malformed structured output")

// Client is the interface for interacting with a language model.
type Client interface {
	// Complete generates a completion for the given prompt.
	Complete(ctx context.Context, prompt string) (string, error)
	// StructuredComplete generates a completion and parses it as JSON
	// into out. A reply that cannot be parsed returns an error wrapping
	// ErrMalformedOutput.
	StructuredComplete(ctx context.Context, prompt string, out any) error
}
