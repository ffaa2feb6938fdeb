package cache

import (
	"container/list"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/gowebpki/jcs"
	"go.uber.org/zap"
)

// Per-operation freshness policy
const (
	SearchTTL     = 5 * time.Minute
	DetailsTTL    = time.Hour
	ReviewsTTL    = 30 * time.Minute
	CategoriesTTL = 24 * time.Hour
)

// TTLFor returns the freshness window for a provider operation
func TTLFor(operation string) time.Duration {
	switch operation {
	case "search":
		return SearchTTL
	case "details":
		return DetailsTTL
	case "reviews":
		return ReviewsTTL
	case "categories":
		return CategoriesTTL
	default:
		return SearchTTL
	}
}

// Key builds a cache key from the provider, the operation and its normalized
// parameters. Parameters are canonicalized (RFC 8785) so field order and
// number formatting never split the cache.
func Key(provider, operation string, params interface{}) (string, error) {
	raw, err := json.Marshal(params)
	if err != nil {
		return "", fmt.Errorf("marshal cache params: %w", err)
	}
	canonical, err := jcs.Transform(raw)
	if err != nil {
		return "", fmt.Errorf("canonicalize cache params: %w", err)
	}
	sum := sha256.Sum256(canonical)
	return provider + ":" + operation + ":" + hex.EncodeToString(sum[:]), nil
}

// cacheEntry represents a single cache entry with its own expiry
type cacheEntry struct {
	key       string
	value     interface{}
	expiresAt time.Time
	element   *list.Element // For LRU tracking
}

func (e *cacheEntry) isExpired(now time.Time) bool {
	return !now.Before(e.expiresAt)
}

// ResponseCache is an in-memory LRU cache with per-entry TTL for normalized
// provider responses. Entries are only invalidated by expiry or eviction.
type ResponseCache struct {
	mu      sync.Mutex
	entries map[string]*cacheEntry
	lruList *list.List
	maxSize int
	hits    uint64
	misses  uint64
	now     func() time.Time
	logger  *zap.Logger
}

// Option configures a ResponseCache
type Option func(*ResponseCache)

// WithClock overrides the time source
func WithClock(now func() time.Time) Option {
	return func(c *ResponseCache) { c.now = now }
}

// WithLogger attaches a logger for the cleanup worker
func WithLogger(logger *zap.Logger) Option {
	return func(c *ResponseCache) { c.logger = logger }
}

// NewResponseCache creates a new cache holding at most maxSize entries
func NewResponseCache(maxSize int, opts ...Option) *ResponseCache {
	c := &ResponseCache{
		entries: make(map[string]*cacheEntry),
		lruList: list.New(),
		maxSize: maxSize,
		now:     time.Now,
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Get returns a live entry. Expired entries count as misses and are dropped.
func (c *ResponseCache) Get(key string) (interface{}, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, exists := c.entries[key]
	if !exists || entry.isExpired(c.now()) {
		c.misses++
		if exists {
			c.removeEntry(key)
		}
		return nil, false
	}

	c.lruList.MoveToFront(entry.element)
	c.hits++
	return entry.value, true
}

// Set stores a value for ttl. A non-positive ttl is a no-op.
func (c *ResponseCache) Set(key string, value interface{}, ttl time.Duration) {
	if ttl <= 0 || c.maxSize <= 0 {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	expiresAt := c.now().Add(ttl)

	if entry, exists := c.entries[key]; exists {
		entry.value = value
		entry.expiresAt = expiresAt
		c.lruList.MoveToFront(entry.element)
		return
	}

	if c.lruList.Len() >= c.maxSize {
		c.evictLRU()
	}

	entry := &cacheEntry{
		key:       key,
		value:     value,
		expiresAt: expiresAt,
	}
	entry.element = c.lruList.PushFront(key)
	c.entries[key] = entry
}

// Invalidate removes a specific cache entry
func (c *ResponseCache) Invalidate(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.removeEntry(key)
}

// Clear removes all entries from the cache
func (c *ResponseCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries = make(map[string]*cacheEntry)
	c.lruList.Init()
}

// Stats returns cache statistics
func (c *ResponseCache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	return Stats{
		Size:    c.lruList.Len(),
		MaxSize: c.maxSize,
		Hits:    c.hits,
		Misses:  c.misses,
		HitRate: c.calculateHitRate(),
	}
}

// Stats represents cache statistics
type Stats struct {
	Size    int     `json:"size"`
	MaxSize int     `json:"max_size"`
	Hits    uint64  `json:"hits"`
	Misses  uint64  `json:"misses"`
	HitRate float64 `json:"hit_rate"`
}

func (c *ResponseCache) calculateHitRate() float64 {
	total := c.hits + c.misses
	if total == 0 {
		return 0
	}
	return float64(c.hits) / float64(total)
}

// removeEntry removes an entry from the cache (must be called with lock held)
func (c *ResponseCache) removeEntry(key string) {
	if entry, exists := c.entries[key]; exists {
		c.lruList.Remove(entry.element)
		delete(c.entries, key)
	}
}

// evictLRU evicts the least recently used entry (must be called with lock held)
func (c *ResponseCache) evictLRU() {
	back := c.lruList.Back()
	if back == nil {
		return
	}
	key := back.Value.(string)
	c.lruList.Remove(back)
	delete(c.entries, key)
}

// CleanupExpired removes all expired entries
func (c *ResponseCache) CleanupExpired() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	expired := make([]string, 0)
	for key, entry := range c.entries {
		if entry.isExpired(now) {
			expired = append(expired, key)
		}
	}
	for _, key := range expired {
		c.removeEntry(key)
	}
	return len(expired)
}

// StartCleanupWorker periodically drops expired entries until ctx is done
func (c *ResponseCache) StartCleanupWorker(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if n := c.CleanupExpired(); n > 0 {
				c.logger.Debug("evicted expired cache entries", zap.Int("count", n))
			}
		case <-ctx.Done():
			return
		}
	}
}
