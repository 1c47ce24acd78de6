package githubapi

import (
	"testing"
	"time"
)

func TestResponseCacheReturnsFreshEntry(t *testing.T) {
	current := time.Unix(1700000000, 0)
	cache := NewResponseCache(5*time.Minute, func() time.Time { return current })

	cache.Set("https://api.github.com/user", []byte(`{"login":"octocat"}`))

	current = current.Add(4 * time.Minute)
	payload, ok := cache.Get("https://api.github.com/user")
	if !ok {
		t.Fatal("expected fresh entry to be returned")
	}
	if string(payload) != `{"login":"octocat"}` {
		t.Fatalf("unexpected payload: %s", payload)
	}
}

func TestResponseCacheExpiresAfterTTL(t *testing.T) {
	current := time.Unix(1700000000, 0)
	cache := NewResponseCache(5*time.Minute, func() time.Time { return current })

	cache.Set("key", []byte("value"))

	current = current.Add(5 * time.Minute)
	if _, ok := cache.Get("key"); ok {
		t.Fatal("expected entry at exactly TTL age to be expired")
	}
}

func TestResponseCacheMissForUnknownKey(t *testing.T) {
	cache := NewResponseCache(time.Minute, nil)
	if _, ok := cache.Get("absent"); ok {
		t.Fatal("expected miss for unknown key")
	}
}

func TestResponseCacheSweepExpired(t *testing.T) {
	current := time.Unix(1700000000, 0)
	cache := NewResponseCache(time.Minute, func() time.Time { return current })

	cache.Set("old", []byte("a"))
	current = current.Add(30 * time.Second)
	cache.Set("fresh", []byte("b"))
	current = current.Add(31 * time.Second)

	removed := cache.SweepExpired()
	if removed != 1 {
		t.Fatalf("removed = %d, want 1", removed)
	}
	if cache.Len() != 1 {
		t.Fatalf("len = %d, want 1", cache.Len())
	}
	if _, ok := cache.Get("fresh"); !ok {
		t.Fatal("fresh entry should survive the sweep")
	}
}

func TestResponseCacheClear(t *testing.T) {
	cache := NewResponseCache(time.Minute, nil)
	cache.Set("a", []byte("1"))
	cache.Set("b", []byte("2"))

	cache.Clear()
	if cache.Len() != 0 {
		t.Fatalf("len after clear = %d, want 0", cache.Len())
	}
}
