package cache

import (
	"testing"
	"time"
)

func TestLRUCacheGetSet(t *testing.T) {
	c := NewLRUCache[int](2, time.Minute)

	if _, ok := c.Get("missing"); ok {
		t.Fatal("Get(missing) returned a hit")
	}

	c.Set("a", 1)
	c.Set("b", 2)

	if v, ok := c.Get("a"); !ok || v != 1 {
		t.Fatalf("Get(a) = %d, %v", v, ok)
	}

	// "a" was just touched, so adding a third entry evicts "b".
	c.Set("c", 3)
	if _, ok := c.Get("b"); ok {
		t.Fatal("least recently used entry was not evicted")
	}
	if c.Size() != 2 {
		t.Fatalf("Size() = %d, want 2", c.Size())
	}
}

func TestLRUCacheExpiry(t *testing.T) {
	c := NewLRUCache[string](10, 10*time.Millisecond)
	c.Set("k", "v")

	time.Sleep(20 * time.Millisecond)

	if _, ok := c.Get("k"); ok {
		t.Fatal("expired entry returned a hit")
	}
	if removed := c.CleanExpired(); removed != 0 {
		// Get already removed it lazily.
		t.Fatalf("CleanExpired() = %d, want 0", removed)
	}
}

func TestLRUCacheDeletePrefix(t *testing.T) {
	c := NewLRUCache[int](10, time.Minute)
	c.Set("summary:p1:all", 1)
	c.Set("summary:p1:material", 2)
	c.Set("summary:p2:all", 3)

	if removed := c.DeletePrefix("summary:p1:"); removed != 2 {
		t.Fatalf("DeletePrefix() = %d, want 2", removed)
	}
	if _, ok := c.Get("summary:p1:all"); ok {
		t.Fatal("prefixed entry survived DeletePrefix")
	}
	if _, ok := c.Get("summary:p2:all"); !ok {
		t.Fatal("unrelated entry was removed")
	}
}
