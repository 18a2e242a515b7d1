package cache

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	lru "github.com/hashicorp/golang-lru/v2/expirable"
)

// LRUStore bounds the number of entries, evicting the least recently used.
// A positive retention also drops entries that outlive it.
type LRUStore struct {
	cache     *lru.LRU[string, *Entry]
	evictions atomic.Int64
	closed    atomic.Bool
}

// NewLRUStore creates a store holding at most maxEntries
func NewLRUStore(maxEntries int, retention time.Duration) (*LRUStore, error) {
	if maxEntries <= 0 {
		return nil, fmt.Errorf("lru store requires a positive size, got %d", maxEntries)
	}

	s := &LRUStore{}
	s.cache = lru.NewLRU[string, *Entry](maxEntries, func(string, *Entry) {
		s.evictions.Add(1)
	}, retention)
	return s, nil
}

// Get implements Store
func (s *LRUStore) Get(_ context.Context, key string) (*Entry, bool, error) {
	if s.closed.Load() {
		return nil, false, ErrClosed
	}
	entry, ok := s.cache.Get(key)
	return entry, ok, nil
}

// Set implements Store
func (s *LRUStore) Set(_ context.Context, key string, entry *Entry) error {
	if s.closed.Load() {
		return ErrClosed
	}
	s.cache.Add(key, entry)
	return nil
}

// Delete implements Store
func (s *LRUStore) Delete(_ context.Context, key string) error {
	if s.closed.Load() {
		return ErrClosed
	}
	s.cache.Remove(key)
	return nil
}

// Clear implements Store
func (s *LRUStore) Clear(_ context.Context) error {
	if s.closed.Load() {
		return ErrClosed
	}
	s.cache.Purge()
	return nil
}

// Len implements Store
func (s *LRUStore) Len(_ context.Context) (int, error) {
	if s.closed.Load() {
		return 0, ErrClosed
	}
	return s.cache.Len(), nil
}

// Evictions counts entries removed by the eviction callback, including
// removals triggered by Delete and Clear
func (s *LRUStore) Evictions() int64 {
	return s.evictions.Load()
}

// Close implements Store
func (s *LRUStore) Close() error {
	if s.closed.Swap(true) {
		return nil
	}
	s.cache.Purge()
	return nil
}
