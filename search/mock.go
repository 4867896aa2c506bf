package search

import (
	"context"
	"sync"

	"github.com/quarrylabs/quarry/schema"
)

// MockClient is a mock implementation of Client for tests. Search is
// called concurrently by retrieval strategies, so call recording is
// locked.
type MockClient struct {
	// Passages is returned by Search (truncated to the requested limit).
	Passages []schema.Passage
	// Err is returned by Search when set.
	Err error
	// SearchFunc, when set, overrides Search entirely.
	SearchFunc func(ctx context.Context, query string, limit int) ([]schema.Passage, error)

	mu sync.Mutex
	// Calls records the queries Search was invoked with.
	Calls []string
}

func (m *MockClient) Search(ctx context.Context, query string, limit int) ([]schema.Passage, error) {
	m.mu.Lock()
	m.Calls = append(m.Calls, query)
	m.mu.Unlock()

	if m.SearchFunc != nil {
		return m.SearchFunc(ctx, query, limit)
	}
	if m.Err != nil {
		return nil, m.Err
	}
	if limit < len(m.Passages) {
		return m.Passages[:limit], nil
	}
	return m.Passages, nil
}

// Ensure MockClient implements Client.
var _ Client = (*MockClient)(nil)
