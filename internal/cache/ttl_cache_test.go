package cache

import (
	"sync"
	"testing"
	"time"
)

// fakeClock is advanced by hand.
type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (f *fakeClock) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.t
}

func (f *fakeClock) Advance(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.t = f.t.Add(d)
}

func newTestCache(ttl time.Duration) (*TTLCache[string, string], *fakeClock) {
	clock := &fakeClock{t: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	c := New[string, string](ttl)
	c.now = clock.Now
	return c, clock
}

func TestSetAndGet(t *testing.T) {
	c, _ := newTestCache(time.Minute)

	c.Set("a", "1")
	if v, ok := c.Get("a"); !ok || v != "1" {
		t.Errorf("Get(a) = %q, %v; want 1, true", v, ok)
	}
	if _, ok := c.Get("missing"); ok {
		t.Error("Get(missing) should miss")
	}

	c.Set("a", "2")
	if v, _ := c.Get("a"); v != "2" {
		t.Errorf("overwrite: got %q, want 2", v)
	}
}

func TestPerEntryExpiry(t *testing.T) {
	c, clock := newTestCache(time.Minute)

	c.Set("old", "x")
	clock.Advance(40 * time.Second)
	c.Set("new", "y")
	clock.Advance(20 * time.Second)

	if _, ok := c.Get("old"); ok {
		t.Error("old entry should have expired at exactly ttl")
	}
	if _, ok := c.Get("new"); !ok {
		t.Error("new entry should still be live")
	}

	if n := c.Purge(); n != 1 {
		t.Errorf("Purge() = %d, want 1", n)
	}
	if c.Len() != 1 {
		t.Errorf("Len() = %d, want 1", c.Len())
	}
}

func TestDisabled(t *testing.T) {
	for _, ttl := range []time.Duration{0, -time.Second} {
		c, _ := newTestCache(ttl)
		c.Set("a", "1")
		if _, ok := c.Get("a"); ok {
			t.Errorf("ttl %v: cache should be disabled", ttl)
		}
		if c.Len() != 0 {
			t.Errorf("ttl %v: Len() = %d", ttl, c.Len())
		}
	}
}

func TestDelete(t *testing.T) {
	c, _ := newTestCache(time.Minute)
	c.Set("a", "1")
	c.Set("b", "2")

	c.Delete("a")
	if _, ok := c.Get("a"); ok {
		t.Error("deleted key still present")
	}

	if c.Len() != 1 {
		t.Errorf("Len() after Delete = %d, want 1", c.Len())
	}
	if c.TTL() != time.Minute {
		t.Errorf("TTL() = %v", c.TTL())
	}
}

func TestConcurrentAccess(t *testing.T) {
	c := New[int, int](time.Minute)
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				c.Set(id*100+j, j)
				c.Get(id*100 + j)
			}
		}(i)
	}
	wg.Wait()
	if c.Len() != 1000 {
		t.Errorf("Len() = %d, want 1000", c.Len())
	}
}
