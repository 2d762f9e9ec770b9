// Package httpcache provides the cached GET client every outbound API call
// flows through. Entries live on disk keyed by canonicalized URL, expire
// after a configurable TTL, and fall back to the last cached body when a
// revalidation fails (stale-if-error).
package httpcache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/peterbourgon/diskv/v3"
)

// DefaultTimeout bounds every outbound request.
const DefaultTimeout = 30 * time.Second

// Client is the cached GET interface handed to components that talk to
// external APIs. Tests substitute an in-memory implementation.
type Client interface {
	Get(url string) ([]byte, error)
}

// Store abstracts the persistence layer under the cache.
type Store interface {
	Read(key string) ([]byte, bool)
	Write(key string, value []byte)
}

type entry struct {
	URL       string    `json:"url"`
	FetchedAt time.Time `json:"fetched_at"`
	Body      []byte    `json:"body"`
}

type client struct {
	http   *http.Client
	store  Store
	ttl    time.Duration
	logger *slog.Logger
	now    func() time.Time
}

// New builds a disk-backed cached client rooted at dir.
func New(dir string, ttl time.Duration, logger *slog.Logger) Client {
	return NewWithStore(newDiskStore(dir), ttl, logger)
}

// NewWithStore builds a cached client over an explicit store.
func NewWithStore(store Store, ttl time.Duration, logger *slog.Logger) Client {
	return &client{
		http:   &http.Client{Timeout: DefaultTimeout},
		store:  store,
		ttl:    ttl,
		logger: logger.With("component", "httpcache"),
		now:    time.Now,
	}
}

// Get returns the body for url, serving from cache while fresh, refreshing
// when stale, and serving the stale body when the refresh fails.
func (c *client) Get(rawURL string) ([]byte, error) {
	key := cacheKey(rawURL)

	var cached *entry
	if raw, ok := c.store.Read(key); ok {
		var e entry
		if err := json.Unmarshal(raw, &e); err == nil {
			cached = &e
		}
	}

	if cached != nil && c.now().Sub(cached.FetchedAt) <= c.ttl {
		return cached.Body, nil
	}

	body, err := c.fetch(rawURL)
	if err != nil {
		if cached != nil {
			c.logger.Warn("refresh failed, serving stale cache entry",
				"url", rawURL,
				"age", c.now().Sub(cached.FetchedAt).String(),
				"error", err,
			)
			return cached.Body, nil
		}
		return nil, err
	}

	raw, err := json.Marshal(entry{URL: rawURL, FetchedAt: c.now(), Body: body})
	if err == nil {
		c.store.Write(key, raw)
	}
	return body, nil
}

func (c *client) fetch(rawURL string) ([]byte, error) {
	resp, err := c.http.Get(rawURL)
	if err != nil {
		c.logger.Warn("request failed", "url", rawURL, "error", err)
		return nil, fmt.Errorf("failed to fetch %s: %w", rawURL, err)
	}
	defer func(body io.ReadCloser) {
		_ = body.Close()
	}(resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.logger.Warn("request returned non-2xx status", "url", rawURL, "status", resp.StatusCode)
		return nil, fmt.Errorf("fetch %s returned status %d", rawURL, resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}

// cacheKey canonicalizes the URL (sorted query encoding) and hashes it so the
// key is filesystem-safe.
func cacheKey(rawURL string) string {
	canonical := rawURL
	if u, err := url.Parse(rawURL); err == nil {
		u.RawQuery = u.Query().Encode()
		canonical = u.String()
	}
	sum := sha256.Sum256([]byte(canonical))
	return hex.EncodeToString(sum[:])
}

type diskStore struct {
	kv *diskv.Diskv
}

func newDiskStore(dir string) *diskStore {
	return &diskStore{
		kv: diskv.New(diskv.Options{
			BasePath:     dir,
			CacheSizeMax: 8 << 20,
		}),
	}
}

func (s *diskStore) Read(key string) ([]byte, bool) {
	b, err := s.kv.Read(key)
	if err != nil {
		return nil, false
	}
	return b, true
}

func (s *diskStore) Write(key string, value []byte) {
	_ = s.kv.Write(key, value)
}
