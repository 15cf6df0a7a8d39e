package cache

import (
	"fmt"
	"sync"
	"testing"
	"time"
)

func TestSetAndGet(t *testing.T) {
	c := NewLRUCache(10, 5*time.Second)
	c.Set("search:wizard", []byte(`[{"asin":"A1"}]`))

	got, ok := c.Get("search:wizard")
	if !ok {
		t.Fatal("expected cache hit, got miss")
	}
	if string(got) != `[{"asin":"A1"}]` {
		t.Fatalf("unexpected cached value %q", string(got))
	}
}

func TestGetMiss(t *testing.T) {
	c := NewLRUCache(10, 5*time.Second)

	if got, ok := c.Get("search:unseen"); ok {
		t.Fatalf("expected cache miss, got %q", string(got))
	}
}

func TestGetExpired(t *testing.T) {
	c := NewLRUCache(10, 20*time.Millisecond)
	c.Set("details:A1", []byte("meta"))

	if _, ok := c.Get("details:A1"); !ok {
		t.Fatal("expected hit before expiry")
	}

	time.Sleep(40 * time.Millisecond)
	if _, ok := c.Get("details:A1"); ok {
		t.Fatal("expected expired entry to miss")
	}
	if c.Size() != 0 {
		t.Fatalf("expected lazy eviction on Get, size is %d", c.Size())
	}
}

func TestEvictsOldestAtCapacity(t *testing.T) {
	c := NewLRUCache(3, time.Minute)
	for i := 0; i < 3; i++ {
		c.Set(fmt.Sprintf("search:q%d", i), []byte("r"))
		time.Sleep(time.Millisecond)
	}

	c.Set("search:q3", []byte("r"))

	if _, ok := c.Get("search:q0"); ok {
		t.Fatal("expected oldest entry to be evicted")
	}
	if _, ok := c.Get("search:q3"); !ok {
		t.Fatal("expected newest entry to be present")
	}
	if c.Size() != 3 {
		t.Fatalf("expected size 3, got %d", c.Size())
	}
}

func TestSetUpdatesExisting(t *testing.T) {
	c := NewLRUCache(2, time.Minute)
	c.Set("details:A1", []byte("old"))
	c.Set("details:A1", []byte("new"))

	got, ok := c.Get("details:A1")
	if !ok || string(got) != "new" {
		t.Fatalf("expected updated value, got %q (hit=%v)", string(got), ok)
	}
	if c.Size() != 1 {
		t.Fatalf("expected size 1 after in-place update, got %d", c.Size())
	}
}

func TestInvalidate(t *testing.T) {
	c := NewLRUCache(10, time.Minute)
	c.Set("search:wizard", []byte("r"))
	c.Set("details:A1", []byte("m"))

	c.Invalidate("search:wizard")
	if _, ok := c.Get("search:wizard"); ok {
		t.Fatal("expected invalidated key to miss")
	}

	c.InvalidateAll()
	if c.Size() != 0 {
		t.Fatalf("expected empty cache, size is %d", c.Size())
	}
}

func TestConcurrentAccess(t *testing.T) {
	c := NewLRUCache(100, time.Minute)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				key := fmt.Sprintf("search:q%d", j%20)
				c.Set(key, []byte("r"))
				c.Get(key)
			}
		}(i)
	}
	wg.Wait()
}
