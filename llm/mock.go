package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
)

// MockClient is a mock implementation of Client for tests. It can be
// configured with fixed responses, an error, or per-call hooks. Grading
// calls it from several goroutines, so the call counter is locked.
type MockClient struct {
	// Response is the text returned by Complete.
	Response string
	// StructuredResponse is the JSON returned by StructuredComplete.
	StructuredResponse string
	// Err is returned by both methods when set.
	Err error
	// CompleteFunc, when set, overrides Complete entirely.
	CompleteFunc func(ctx context.Context, prompt string) (string, error)
	// StructuredFunc, when set, overrides StructuredComplete entirely.
	StructuredFunc func(ctx context.Context, prompt string, out any) error

	mu sync.Mutex
	// Calls counts invocations of both methods.
	Calls int
}

// NewMockClient creates a MockClient with a fixed text response.
func NewMockClient(response string) *MockClient {
	return &MockClient{Response: response}
}

// NewMockClientWithError creates a MockClient that always fails.
func NewMockClientWithError(err error) *MockClient {
	return &MockClient{Err: err}
}

func (m *MockClient) record() {
	m.mu.Lock()
	m.Calls++
	m.mu.Unlock()
}

func (m *MockClient) Complete(ctx context.Context, prompt string) (string, error) {
	m.record()
	if m.CompleteFunc != nil {
		return m.CompleteFunc(ctx, prompt)
	}
	if m.Err != nil {
		return "", m.Err
	}
	return m.Response, nil
}

func (m *MockClient) StructuredComplete(ctx context.Context, prompt string, out any) error {
	m.record()
	if m.StructuredFunc != nil {
		return m.StructuredFunc(ctx, prompt, out)
	}
	if m.Err != nil {
		return m.Err
	}
	if m.StructuredResponse == "" {
		return fmt.Errorf("%w: mock has no structured response", ErrMalformedOutput)
	}
	if err := json.Unmarshal([]byte(m.StructuredResponse), out); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedOutput, err)
	}
	return nil
}

// Ensure MockClient implements Client.
var _ Client = (*MockClient)(nil)
