package cache

import (
	"context"
	"sync"
	"time"

	"github.com/coffersTech/kwrule/internal/compiler"
	"github.com/coffersTech/kwrule/internal/config"
)

// Key identifies a compilation: the same expression compiles differently per
// format and precedence.
type Key struct {
	Format     compiler.Format
	Precedence config.Precedence
	Expr       string
}

// Entry is a cached compilation result.
type Entry struct {
	Result     compiler.Result
	StoredAt   time.Time
	LastSeenAt time.Time
	Hits       int64
}

// Store memoizes successful compilations.
type Store struct {
	mu      sync.RWMutex
	entries map[Key]*Entry
}

// NewStore creates an empty cache.
func NewStore() *Store {
	return &Store{
		entries: make(map[Key]*Entry),
	}
}

// Put stores a result, replacing any previous entry for key.
func (s *Store) Put(key Key, res compiler.Result) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	s.entries[key] = &Entry{Result: res, StoredAt: now, LastSeenAt: now}
}

// Get returns the cached result for key and refreshes its LastSeenAt.
func (s *Store) Get(key Key) (compiler.Result, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[key]
	if !ok {
		return compiler.Result{}, false
	}
	e.LastSeenAt = time.Now()
	e.Hits++
	return e.Result, true
}

// Len returns the number of cached entries.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// Stats returns a copy of every entry.
func (s *Store) Stats() map[Key]Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[Key]Entry, len(s.entries))
	for k, e := range s.entries {
		out[k] = *e
	}
	return out
}

// Prune removes entries that haven't been read for ttl and returns how many.
func (s *Store) Prune(ttl time.Duration) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := time.Now().Add(-ttl)
	count := 0
	for k, e := range s.entries {
		if e.LastSeenAt.Before(cutoff) {
			delete(s.entries, k)
			count++
		}
	}
	return count
}

// StartCleanupLoop starts a background goroutine that prunes stale entries
// until ctx is done.
func (s *Store) StartCleanupLoop(ctx context.Context, interval, ttl time.Duration) {
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				s.Prune(ttl)
			case <-ctx.Done():
				return
			}
		}
	}()
}
