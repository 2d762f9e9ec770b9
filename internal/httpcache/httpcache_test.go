package httpcache

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

type memoryStore struct {
	data map[string][]byte
}

func newMemoryStore() *memoryStore {
	return &memoryStore{data: make(map[string][]byte)}
}

func (s *memoryStore) Read(key string) ([]byte, bool) {
	b, ok := s.data[key]
	return b, ok
}

func (s *memoryStore) Write(key string, value []byte) {
	s.data[key] = value
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestClient(store Store, ttl time.Duration) *client {
	return NewWithStore(store, ttl, testLogger()).(*client)
}

func TestGetCachesResponse(t *testing.T) {
	var hits int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		_, _ = w.Write([]byte("body-1"))
	}))
	defer server.Close()

	c := newTestClient(newMemoryStore(), time.Hour)

	for i := 0; i < 3; i++ {
		body, err := c.Get(server.URL)
		if err != nil {
			t.Fatalf("Get returned error: %v", err)
		}
		if string(body) != "body-1" {
			t.Fatalf("body = %q, want body-1", body)
		}
	}
	if hits != 1 {
		t.Errorf("server hits = %d, want 1 (fresh entries served from cache)", hits)
	}
}

func TestGetRefreshesStaleEntry(t *testing.T) {
	responses := []string{"old", "new"}
	var hits int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(responses[hits]))
		hits++
	}))
	defer server.Close()

	c := newTestClient(newMemoryStore(), time.Minute)

	if body, err := c.Get(server.URL); err != nil || string(body) != "old" {
		t.Fatalf("first Get = (%q, %v), want (old, nil)", body, err)
	}

	// Move the clock past the TTL.
	c.now = func() time.Time { return time.Now().Add(2 * time.Minute) }

	body, err := c.Get(server.URL)
	if err != nil {
		t.Fatalf("Get after expiry returned error: %v", err)
	}
	if string(body) != "new" {
		t.Errorf("body after expiry = %q, want new", body)
	}
	if hits != 2 {
		t.Errorf("server hits = %d, want 2", hits)
	}
}

func TestGetServesStaleOnRefreshFailure(t *testing.T) {
	store := newMemoryStore()
	c := newTestClient(store, time.Minute)

	// Seed an expired entry pointing at a dead server.
	deadURL := "http://127.0.0.1:1/unreachable"
	raw, _ := json.Marshal(entry{
		URL:       deadURL,
		FetchedAt: time.Now().Add(-time.Hour),
		Body:      []byte("stale-body"),
	})
	store.Write(cacheKey(deadURL), raw)

	body, err := c.Get(deadURL)
	if err != nil {
		t.Fatalf("Get returned error despite stale entry: %v", err)
	}
	if string(body) != "stale-body" {
		t.Errorf("body = %q, want stale-body", body)
	}
}

func TestGetFailsWhenAbsentAndUnreachable(t *testing.T) {
	c := newTestClient(newMemoryStore(), time.Minute)
	if _, err := c.Get("http://127.0.0.1:1/unreachable"); err == nil {
		t.Error("Get succeeded with no cache entry and an unreachable server")
	}
}

func TestGetRejectsNon2xx(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	c := newTestClient(newMemoryStore(), time.Minute)
	if _, err := c.Get(server.URL); err == nil {
		t.Error("Get succeeded on a 502 response")
	}
}

func TestCacheKeyCanonicalizesQueryOrder(t *testing.T) {
	a := cacheKey("https://example.com/api?b=2&a=1")
	b := cacheKey("https://example.com/api?a=1&b=2")
	if a != b {
		t.Error("cache keys differ for query-order permutations of the same URL")
	}

	other := cacheKey("https://example.com/api?a=1&b=3")
	if a == other {
		t.Error("cache keys collide for different queries")
	}
}
