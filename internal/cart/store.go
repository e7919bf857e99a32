package cart

import (
	"context"
	"sync"

	"github.com/instrugate/api/internal/domain"
)

// MemoryStore keeps cart entries in process memory. It backs tests and
// anonymous sessions that have nothing durable behind them.
type MemoryStore struct {
	mu      sync.Mutex
	entries []domain.CartEntry
}

// NewMemoryStore returns an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// Load returns a copy of the stored entries.
func (s *MemoryStore) Load(context.Context) ([]domain.CartEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.CartEntry, len(s.entries))
	copy(out, s.entries)
	return out, nil
}

// Save replaces the stored entries.
func (s *MemoryStore) Save(_ context.Context, entries []domain.CartEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = make([]domain.CartEntry, len(entries))
	copy(s.entries, entries)
	return nil
}

// Clear drops all stored entries.
func (s *MemoryStore) Clear(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = nil
	return nil
}

var _ Store = (*MemoryStore)(nil)
