package cache

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrClosed is returned by a gateway or store after Close
var ErrClosed = errors.New("cache: closed")

// Entry is one memoized fetch result
type Entry struct {
	Key      string      `json:"key"`
	Payload  interface{} `json:"payload"`
	StoredAt time.Time   `json:"stored_at"`
}

// Store holds entries by key. Freshness is decided by the Gateway, not the store.
type Store interface {
	Get(ctx context.Context, key string) (*Entry, bool, error)
	Set(ctx context.Context, key string, entry *Entry) error
	Delete(ctx context.Context, key string) error
	Clear(ctx context.Context) error
	Len(ctx context.Context) (int, error)
	Close() error
}

// MemoryStore is an unbounded map. Stale entries stay until overwritten,
// deleted or cleared.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]*Entry
	closed  bool
}

// NewMemoryStore creates an empty in-process store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[string]*Entry)}
}

// Get implements Store
func (s *MemoryStore) Get(_ context.Context, key string) (*Entry, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, false, ErrClosed
	}
	entry, ok := s.entries[key]
	return entry, ok, nil
}

// Set implements Store
func (s *MemoryStore) Set(_ context.Context, key string, entry *Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	s.entries[key] = entry
	return nil
}

// Delete implements Store
func (s *MemoryStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	delete(s.entries, key)
	return nil
}

// Clear implements Store
func (s *MemoryStore) Clear(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	clear(s.entries)
	return nil
}

// Len implements Store
func (s *MemoryStore) Len(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return 0, ErrClosed
	}
	return len(s.entries), nil
}

// Close drops all entries and rejects further use
func (s *MemoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.entries = nil
	return nil
}
