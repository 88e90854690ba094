// Package skipstore persists skip sets between acquisition calls, keyed by publication
// identifier. A later call for the same identifier merges the stored set into its own so
// the waterfall resumes below the sources already tried.
package skipstore

import (
	"context"
	"sync"
	"time"

	"github.com/helixir/fulltext-acquisition-service/internal/domain"
)

// Store loads and saves skip sets.
type Store interface {
	// Load returns the stored set for key, or an empty set.
	Load(ctx context.Context, key string) (domain.SkipSet, error)
	// Save merges set into the stored set for key and refreshes its TTL.
	Save(ctx context.Context, key string, set domain.SkipSet) error
	// Clear forgets the stored set for key.
	Clear(ctx context.Context, key string) error
}

var _ Store = (*MemoryStore)(nil)

// MemoryStore is a process-local Store used when Redis is not configured.
type MemoryStore struct {
	mu      sync.Mutex
	ttl     time.Duration
	now     func() time.Time
	entries map[string]memoryEntry
}

type memoryEntry struct {
	set     domain.SkipSet
	expires time.Time
}

// NewMemoryStore creates a MemoryStore. A non-positive ttl keeps entries forever.
func NewMemoryStore(ttl time.Duration) *MemoryStore {
	return &MemoryStore{
		ttl:     ttl,
		now:     time.Now,
		entries: make(map[string]memoryEntry),
	}
}

// Load implements Store.
func (s *MemoryStore) Load(_ context.Context, key string) (domain.SkipSet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[key]
	if !ok {
		return domain.SkipSet{}, nil
	}
	if !e.expires.IsZero() && !s.now().Before(e.expires) {
		delete(s.entries, key)
		return domain.SkipSet{}, nil
	}
	return e.set, nil
}

// Save implements Store.
func (s *MemoryStore) Save(_ context.Context, key string, set domain.SkipSet) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	merged := set
	if e, ok := s.entries[key]; ok && (e.expires.IsZero() || s.now().Before(e.expires)) {
		merged = e.set.Union(set)
	}

	var expires time.Time
	if s.ttl > 0 {
		expires = s.now().Add(s.ttl)
	}
	s.entries[key] = memoryEntry{set: merged, expires: expires}
	return nil
}

// Clear implements Store.
func (s *MemoryStore) Clear(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, key)
	return nil
}
