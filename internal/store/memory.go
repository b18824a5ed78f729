package store

import (
	"context"
	"sync"

	"github.com/m3rciful/relaybot/internal/routing"
)

// MemoryStore is an in-process Store used in tests and local development.
type MemoryStore struct {
	mu    sync.Mutex
	table routing.Table
}

// NewMemoryStore builds an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{table: routing.Table{}}
}

// Load returns a copy of the current table.
func (s *MemoryStore) Load(ctx context.Context) (routing.Table, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.copyLocked(), nil
}

// Save replaces the stored table.
func (s *MemoryStore) Save(ctx context.Context, t routing.Table) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.table = routing.Table{}
	for k, v := range t {
		s.table[k] = v
	}
	return nil
}

// Update applies fn to one entry under the store lock.
func (s *MemoryStore) Update(ctx context.Context, userID string, fn UpdateFunc) (routing.Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry := fn(s.table[userID])
	s.table[userID] = entry
	return entry, nil
}

func (s *MemoryStore) copyLocked() routing.Table {
	out := routing.Table{}
	for k, v := range s.table {
		out[k] = v
	}
	return out
}
