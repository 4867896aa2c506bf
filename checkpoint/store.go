// Package checkpoint persists pipeline runs between suspensions. A store
// is keyed by thread ID with last-writer-wins semantics per thread;
// threads are independent conversations, so no cross-thread coordination
// is needed. Implementations must be safe for concurrent use by
// independent runs.
package checkpoint

import (
	"context"
	"errors"
	"sync"
)

// ErrNotFound is returned by Load when no checkpoint exists for the
// thread. For the pipeline this means "new conversation".
var ErrNotFound = errors.New("checkpoint: not found")

// Store persists serialized run state by thread ID.
type Store interface {
	// Save persists the state for the thread, replacing any previous state.
	Save(ctx context.Context, threadID string, state []byte) error
	// Load returns the persisted state, or ErrNotFound.
	Load(ctx context.Context, threadID string) ([]byte, error)
	// Delete removes the thread's state. Deleting an absent thread is not
	// an error.
	Delete(ctx context.Context, threadID string) error
}

// MemoryStore is an in-process Store for tests and single-process use.
type MemoryStore struct {
	mu   sync.RWMutex
	data map[string][]byte
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: make(map[string][]byte)}
}

func (s *MemoryStore) Save(ctx context.Context, threadID string, state []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	buf := make([]byte, len(state))
	copy(buf, state)
	s.data[threadID] = buf
	return nil
}

func (s *MemoryStore) Load(ctx context.Context, threadID string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	state, ok := s.data[threadID]
	if !ok {
		return nil, ErrNotFound
	}
	buf := make([]byte, len(state))
	copy(buf, state)
	return buf, nil
}

func (s *MemoryStore) Delete(ctx context.Context, threadID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, threadID)
	return nil
}

// Ensure MemoryStore implements Store.
var _ Store = (*MemoryStore)(nil)
