package cache

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) Now() time.Time          { return c.t }
func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func newClock() *fakeClock {
	return &fakeClock{t: time.Date(2024, 1, 15, 12, 0, 0, 0, time.UTC)}
}

func TestKey(t *testing.T) {
	t.Run("field order does not matter", func(t *testing.T) {
		a, err := Key("yelp", "search", map[string]interface{}{"location": "Miami", "limit": 10})
		require.NoError(t, err)
		b, err := Key("yelp", "search", map[string]interface{}{"limit": 10, "location": "Miami"})
		require.NoError(t, err)
		assert.Equal(t, a, b)
		assert.True(t, strings.HasPrefix(a, "yelp:search:"))
	})

	t.Run("provider is part of the key", func(t *testing.T) {
		params := map[string]interface{}{"location": "Miami"}
		a, err := Key("yelp", "search", params)
		require.NoError(t, err)
		b, err := Key("foursquare", "search", params)
		require.NoError(t, err)
		assert.NotEqual(t, a, b)
	})

	t.Run("different params differ", func(t *testing.T) {
		a, _ := Key("yelp", "search", map[string]interface{}{"limit": 10})
		b, _ := Key("yelp", "search", map[string]interface{}{"limit": 11})
		assert.NotEqual(t, a, b)
	})

	t.Run("unmarshalable params", func(t *testing.T) {
		_, err := Key("yelp", "search", map[string]interface{}{"bad": make(chan int)})
		assert.Error(t, err)
	})
}

func TestTTLFor(t *testing.T) {
	tests := []struct {
		operation string
		want      time.Duration
	}{
		{"search", 5 * time.Minute},
		{"details", time.Hour},
		{"reviews", 30 * time.Minute},
		{"categories", 24 * time.Hour},
		{"unknown", 5 * time.Minute},
	}

	for _, tt := range tests {
		t.Run(tt.operation, func(t *testing.T) {
			assert.Equal(t, tt.want, TTLFor(tt.operation))
		})
	}
}

func TestResponseCache_GetSet(t *testing.T) {
	clock := newClock()
	c := NewResponseCache(10, WithClock(clock.Now))

	_, ok := c.Get("k")
	assert.False(t, ok)

	c.Set("k", []string{"a"}, time.Minute)
	v, ok := c.Get("k")
	require.True(t, ok)
	assert.Equal(t, []string{"a"}, v)

	stats := c.Stats()
	assert.Equal(t, uint64(1), stats.Hits)
	assert.Equal(t, uint64(1), stats.Misses)
	assert.Equal(t, 0.5, stats.HitRate)
}

func TestResponseCache_PerEntryTTL(t *testing.T) {
	clock := newClock()
	c := NewResponseCache(10, WithClock(clock.Now))

	c.Set("search", 1, SearchTTL)
	c.Set("details", 2, DetailsTTL)

	clock.Advance(5*time.Minute - time.Second)
	_, ok := c.Get("search")
	assert.True(t, ok, "still fresh just before the TTL")

	clock.Advance(time.Second)
	_, ok = c.Get("search")
	assert.False(t, ok, "expired exactly at the TTL")

	_, ok = c.Get("details")
	assert.True(t, ok)
	assert.Equal(t, 1, c.Stats().Size)
}

func TestResponseCache_LRUEviction(t *testing.T) {
	c := NewResponseCache(2)

	c.Set("a", 1, time.Minute)
	c.Set("b", 2, time.Minute)
	_, _ = c.Get("a")
	c.Set("c", 3, time.Minute)

	_, ok := c.Get("b")
	assert.False(t, ok, "least recently used entry evicted")
	_, ok = c.Get("a")
	assert.True(t, ok)
	_, ok = c.Get("c")
	assert.True(t, ok)
}

func TestResponseCache_UpdateExisting(t *testing.T) {
	clock := newClock()
	c := NewResponseCache(2, WithClock(clock.Now))

	c.Set("a", 1, time.Minute)
	clock.Advance(50 * time.Second)
	c.Set("a", 2, time.Minute)
	clock.Advance(50 * time.Second)

	v, ok := c.Get("a")
	require.True(t, ok)
	assert.Equal(t, 2, v)
	assert.Equal(t, 1, c.Stats().Size)
}

func TestResponseCache_NonPositiveTTL(t *testing.T) {
	c := NewResponseCache(2)
	c.Set("a", 1, 0)
	_, ok := c.Get("a")
	assert.False(t, ok)
}

func TestResponseCache_InvalidateAndClear(t *testing.T) {
	c := NewResponseCache(10)
	for i := 0; i < 3; i++ {
		c.Set(fmt.Sprintf("k%d", i), i, time.Minute)
	}

	c.Invalidate("k0")
	_, ok := c.Get("k0")
	assert.False(t, ok)

	c.Clear()
	assert.Equal(t, 0, c.Stats().Size)
}

func TestResponseCache_CleanupExpired(t *testing.T) {
	clock := newClock()
	c := NewResponseCache(10, WithClock(clock.Now))

	c.Set("short", 1, time.Minute)
	c.Set("long", 2, time.Hour)
	clock.Advance(2 * time.Minute)

	assert.Equal(t, 1, c.CleanupExpired())
	assert.Equal(t, 1, c.Stats().Size)
}

func TestResponseCache_StartCleanupWorker(t *testing.T) {
	c := NewResponseCache(10)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		c.StartCleanupWorker(ctx, 10*time.Millisecond)
		close(done)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("cleanup worker did not stop")
	}
}
