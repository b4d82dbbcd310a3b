package cache

import (
	"fmt"
	"testing"
	"time"
)

func newTestCache(t *testing.T, opts Options) *Cache {
	t.Helper()
	c := New(opts)
	t.Cleanup(c.Close)
	return c
}

func TestKeyDeterministic(t *testing.T) {
	a := Key("web", "duckduckgo", "Golang Tutorial", map[string]any{"page": 1, "limit": 10})
	b := Key("web", "duckduckgo", "  golang tutorial ", map[string]any{"limit": 10, "page": 1})
	if a != b {
		t.Errorf("keys should match regardless of option order and query casing:\n%s\n%s", a, b)
	}

	c := Key("web", "duckduckgo", "another query", map[string]any{"page": 1, "limit": 10})
	if a == c {
		t.Error("different queries must produce different keys")
	}

	d := Key("images", "duckduckgo", "golang tutorial", map[string]any{"page": 1, "limit": 10})
	if a == d {
		t.Error("different search types must produce different keys")
	}
}

func TestGetSetRoundtrip(t *testing.T) {
	c := newTestCache(t, Options{})

	if _, ok := c.Get("missing"); ok {
		t.Fatal("expected miss for absent key")
	}

	c.Set("k", "value", 0)
	got, ok := c.Get("k")
	if !ok {
		t.Fatal("expected hit after Set")
	}
	if got.(string) != "value" {
		t.Errorf("got %v, want value", got)
	}
}

func TestTTLExpiry(t *testing.T) {
	c := newTestCache(t, Options{CheckPeriod: time.Hour})

	c.Set("k", "value", 10*time.Millisecond)
	if _, ok := c.Get("k"); !ok {
		t.Fatal("expected hit before expiry")
	}

	time.Sleep(20 * time.Millisecond)
	if _, ok := c.Get("k"); ok {
		t.Error("expected miss after TTL expiry")
	}
}

func TestMaxKeysBound(t *testing.T) {
	c := newTestCache(t, Options{MaxKeys: 5, CheckPeriod: time.Hour})

	for i := 0; i < 20; i++ {
		c.Set(fmt.Sprintf("key-%d", i), i, time.Minute)
	}

	if keys := c.Stats().Keys; keys > 5 {
		t.Errorf("cache holds %d keys, want at most 5", keys)
	}
}

func TestClear(t *testing.T) {
	c := newTestCache(t, Options{})

	c.Set("a", 1, time.Minute)
	c.Set("b", 2, time.Minute)
	c.Clear()

	if keys := c.Stats().Keys; keys != 0 {
		t.Errorf("cache holds %d keys after Clear, want 0", keys)
	}
}

func TestStats(t *testing.T) {
	c := newTestCache(t, Options{})

	c.Set("k", "v", time.Minute)
	c.Get("k")
	c.Get("k")
	c.Get("absent")

	stats := c.Stats()
	if stats.Hits != 2 {
		t.Errorf("hits = %d, want 2", stats.Hits)
	}
	if stats.Misses != 1 {
		t.Errorf("misses = %d, want 1", stats.Misses)
	}
	if stats.HitRate != "66.67%" {
		t.Errorf("hitRate = %s, want 66.67%%", stats.HitRate)
	}
}

func TestStatsEmptyRate(t *testing.T) {
	c := newTestCache(t, Options{})
	if rate := c.Stats().HitRate; rate != "0%" {
		t.Errorf("hitRate = %s, want 0%%", rate)
	}
}
