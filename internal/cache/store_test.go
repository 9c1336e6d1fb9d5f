package cache

import (
	"context"
	"testing"
	"time"

	"github.com/coffersTech/kwrule/internal/compiler"
	"github.com/coffersTech/kwrule/internal/config"
)

func compiled(t *testing.T, expr string) compiler.Result {
	t.Helper()
	c, err := compiler.New(config.Default(), compiler.FormatRule)
	if err != nil {
		t.Fatalf("new compiler: %v", err)
	}
	res, err := c.Compile(expr)
	if err != nil {
		t.Fatalf("compile %q: %v", expr, err)
	}
	return res
}

func TestStore_PutGet(t *testing.T) {
	s := NewStore()
	key := Key{Format: compiler.FormatRule, Precedence: config.AndOuter, Expr: "A + B"}

	if _, ok := s.Get(key); ok {
		t.Fatal("empty store should miss")
	}

	s.Put(key, compiled(t, "A + B"))
	res, ok := s.Get(key)
	if !ok || res.Rule == nil {
		t.Fatalf("expected cached rule, got %+v", res)
	}

	other := key
	other.Precedence = config.AndTighter
	if _, ok := s.Get(other); ok {
		t.Error("precedence must be part of the key")
	}

	if got := s.Stats()[key].Hits; got != 1 {
		t.Errorf("expected 1 hit, got %d", got)
	}
}

func TestStore_Prune(t *testing.T) {
	s := NewStore()
	stale := Key{Expr: "A"}
	fresh := Key{Expr: "B"}

	s.Put(stale, compiled(t, "A"))
	s.Put(fresh, compiled(t, "B"))

	// Age the first entry directly, bypassing Put's timestamps.
	s.mu.Lock()
	s.entries[stale].LastSeenAt = time.Now().Add(-20 * time.Minute)
	s.mu.Unlock()

	if n := s.Prune(10 * time.Minute); n != 1 {
		t.Errorf("expected 1 pruned entry, got %d", n)
	}
	if _, ok := s.Get(stale); ok {
		t.Error("stale entry should have been pruned")
	}
	if _, ok := s.Get(fresh); !ok {
		t.Error("fresh entry should still exist")
	}
}

func TestStore_Cleanup(t *testing.T) {
	s := NewStore()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	s.Put(Key{Expr: "old"}, compiled(t, "old"))
	s.mu.Lock()
	s.entries[Key{Expr: "old"}].LastSeenAt = time.Now().Add(-time.Hour)
	s.mu.Unlock()

	s.Put(Key{Expr: "new"}, compiled(t, "new"))

	s.StartCleanupLoop(ctx, 10*time.Millisecond, 10*time.Minute)

	deadline := time.Now().Add(2 * time.Second)
	for s.Len() != 1 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}

	if s.Len() != 1 {
		t.Fatalf("expected 1 entry after cleanup, got %d", s.Len())
	}
	if _, ok := s.Get(Key{Expr: "new"}); !ok {
		t.Error("new entry should still exist")
	}
}
