package cache

import (
	"testing"
	"time"
)

func TestSetGetWithinTTL(t *testing.T) {
	c := New(10)
	c.Set("k", "v", time.Hour)

	v, ok := c.Get("k")
	if !ok || v != "v" {
		t.Fatalf("expected (v, true), got (%v, %v)", v, ok)
	}
}

func TestGetAfterTTLExpires(t *testing.T) {
	c := New(10)
	now := time.Now()
	c.clock = func() time.Time { return now }
	c.Set("k", "v", time.Millisecond)

	c.clock = func() time.Time { return now.Add(time.Second) }
	if _, ok := c.Get("k"); ok {
		t.Fatal("expected expired entry to read as absent")
	}
}

func TestLRUEvictsLeastRecentlyTouched(t *testing.T) {
	c := New(2)
	c.Set("a", 1, time.Hour)
	c.Set("b", 2, time.Hour)

	// touch "a" so "b" becomes least-recently-used
	c.Get("a")

	c.Set("c", 3, time.Hour)

	if _, ok := c.Get("b"); ok {
		t.Fatal("expected least-recently-touched key to be evicted")
	}
	if _, ok := c.Get("a"); !ok {
		t.Fatal("expected recently-touched key to survive")
	}
}

func TestMultiIndexAliasLookup(t *testing.T) {
	base := New(10)
	mi := NewMultiIndex(base)

	mi.SetWithAliases("paper:doi:10.1/x", []string{"paper:s2:abc123"}, "payload", time.Hour)

	if v, ok := mi.Get("paper:s2:abc123"); !ok || v != "payload" {
		t.Fatalf("expected alias lookup to resolve, got (%v, %v)", v, ok)
	}
	if v, ok := mi.Get("paper:doi:10.1/x"); !ok || v != "payload" {
		t.Fatalf("expected canonical lookup to resolve, got (%v, %v)", v, ok)
	}
}
