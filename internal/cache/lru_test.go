package cache

import (
	"testing"
	"time"
)

func TestLRUCacheEvictsOldest(t *testing.T) {
	c := NewLRUCache[int](2, time.Minute)
	c.Set("a", 1)
	c.Set("b", 2)
	if _, ok := c.Get("a"); !ok {
		t.Fatalf("a should be cached")
	}
	c.Set("c", 3)

	if _, ok := c.Get("b"); ok {
		t.Fatalf("b should have been evicted")
	}
	if v, ok := c.Get("a"); !ok || v != 1 {
		t.Fatalf("a = %d, %v", v, ok)
	}
	if c.Size() != 2 {
		t.Fatalf("size = %d", c.Size())
	}
}

func TestLRUCacheExpiry(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	c := NewLRUCache[string](10, time.Minute)
	c.now = func() time.Time { return now }

	c.Set("owner-1", "snapshot")
	c.Set("owner-2", "snapshot")
	if _, ok := c.Get("owner-1"); !ok {
		t.Fatalf("fresh entry missing")
	}

	now = now.Add(2 * time.Minute)
	if _, ok := c.Get("owner-1"); ok {
		t.Fatalf("expired entry returned")
	}
	if removed := c.CleanExpired(); removed != 1 {
		t.Fatalf("CleanExpired removed %d, want 1", removed)
	}

	stats := c.Stats()
	if stats.Hits != 1 || stats.Misses != 1 || stats.Size != 0 {
		t.Fatalf("stats = %+v", stats)
	}
}

func TestManagerCleanAll(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	a := NewLRUCache[int](10, time.Second)
	b := NewLRUCache[int](10, time.Hour)
	a.now = func() time.Time { return now }
	b.now = func() time.Time { return now }
	a.Set("x", 1)
	b.Set("y", 2)

	m := NewManager(nil)
	m.Register(a)
	m.Register(b)

	now = now.Add(time.Minute)
	if cleaned := m.CleanAll(); cleaned != 1 {
		t.Fatalf("cleaned = %d, want 1", cleaned)
	}

	m.StartCleanup(time.Hour)
	m.Stop()
	m.Stop()
}
