package cache

import (
	"testing"
	"time"
)

func TestLRUEvictsOldestAtCapacity(t *testing.T) {
	c := NewLRU[string, int](2, 0)
	var evicted []string
	c.OnEvict(func(k string, _ int) { evicted = append(evicted, k) })

	c.Set("a", 1)
	c.Set("b", 2)
	c.Set("c", 3)

	if _, ok := c.Get("a"); ok {
		t.Fatal("oldest entry should have been evicted")
	}
	if len(evicted) != 1 || evicted[0] != "a" {
		t.Fatalf("evicted = %v, want [a]", evicted)
	}
	if c.Len() != 2 {
		t.Fatalf("len = %d, want 2", c.Len())
	}
}

func TestLRUGetRefreshesRecency(t *testing.T) {
	c := NewLRU[string, int](2, 0)
	c.Set("a", 1)
	c.Set("b", 2)
	c.Get("a")
	c.Set("c", 3)

	if _, ok := c.Get("a"); !ok {
		t.Fatal("recently used entry was evicted")
	}
	if _, ok := c.Get("b"); ok {
		t.Fatal("least recently used entry survived")
	}
}

func TestLRUTTLExpiry(t *testing.T) {
	c := NewLRU[string, int](4, time.Millisecond)
	c.Set("a", 1)
	time.Sleep(5 * time.Millisecond)
	if _, ok := c.Get("a"); ok {
		t.Fatal("expired entry returned")
	}
}

func TestLRUZeroTTLNeverExpires(t *testing.T) {
	c := NewLRU[string, int](4, 0)
	c.Set("a", 1)
	time.Sleep(2 * time.Millisecond)
	if _, ok := c.Get("a"); !ok {
		t.Fatal("entry with zero ttl expired")
	}
}

func TestLRUGetOrCreate(t *testing.T) {
	c := NewLRU[string, *int](4, 0)
	calls := 0
	create := func() *int {
		calls++
		v := 42
		return &v
	}
	first := c.GetOrCreate("k", create)
	second := c.GetOrCreate("k", create)
	if first != second {
		t.Fatal("GetOrCreate returned different values for the same key")
	}
	if calls != 1 {
		t.Fatalf("create called %d times, want 1", calls)
	}
}

func TestLRURemoveFiresEviction(t *testing.T) {
	c := NewLRU[string, int](4, 0)
	fired := false
	c.OnEvict(func(string, int) { fired = true })

	c.Set("a", 1)
	if !c.Remove("a") {
		t.Fatal("Remove returned false for present key")
	}
	if !fired {
		t.Fatal("eviction callback not fired on Remove")
	}
	if c.Remove("a") {
		t.Fatal("Remove returned true for absent key")
	}
}
