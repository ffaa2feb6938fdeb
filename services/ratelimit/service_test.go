package ratelimit

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/upb/market-intel/services"
	"go.uber.org/zap"
)

// fakeClock advances virtual time when the limiter sleeps
type fakeClock struct {
	mu     sync.Mutex
	t      time.Time
	sleeps []time.Duration
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2024, 1, 15, 14, 30, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

func (c *fakeClock) Sleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sleeps = append(c.sleeps, d)
	c.t = c.t.Add(d)
	return nil
}

func newLimiter(clock *fakeClock, limit int) *SlidingWindowLimiter {
	return NewSlidingWindowLimiter(
		func(string) int { return limit },
		zap.NewNop(),
		WithClock(clock.Now, clock.Sleep),
	)
}

func TestWait_UnderLimitIsImmediate(t *testing.T) {
	clock := newFakeClock()
	l := newLimiter(clock, 10)

	for i := 0; i < 10; i++ {
		waited, err := l.Wait(context.Background(), "yelp")
		require.NoError(t, err)
		assert.Zero(t, waited)
	}
	assert.Equal(t, 10, l.InWindow("yelp"))
	assert.Empty(t, clock.sleeps)
}

func TestWait_ThirdCallDelayedUntilOldestLeaves(t *testing.T) {
	clock := newFakeClock()
	l := newLimiter(clock, 2)
	ctx := context.Background()

	_, err := l.Wait(ctx, "foursquare")
	require.NoError(t, err)
	clock.Advance(400 * time.Millisecond)
	_, err = l.Wait(ctx, "foursquare")
	require.NoError(t, err)
	clock.Advance(400 * time.Millisecond)

	waited, err := l.Wait(ctx, "foursquare")
	require.NoError(t, err)

	assert.Equal(t, 60*time.Second-800*time.Millisecond, waited)
	assert.Equal(t, 2, l.InWindow("foursquare"))
}

func TestWait_NeverExceedsLimitInAnyWindow(t *testing.T) {
	clock := newFakeClock()
	l := newLimiter(clock, 3)
	ctx := context.Background()

	var admitted []time.Time
	gaps := []time.Duration{0, 5 * time.Second, 0, 0, 30 * time.Second, 0, 59 * time.Second, 0, 0, time.Second}
	for _, gap := range gaps {
		clock.Advance(gap)
		_, err := l.Wait(ctx, "google_places")
		require.NoError(t, err)
		admitted = append(admitted, clock.Now())
	}

	for i := range admitted {
		inside := 0
		for j := range admitted {
			d := admitted[j].Sub(admitted[i])
			if d >= 0 && d < DefaultWindow {
				inside++
			}
		}
		assert.LessOrEqual(t, inside, 3, "window starting at admission %d", i)
	}
}

func TestWait_ProvidersAreIndependent(t *testing.T) {
	clock := newFakeClock()
	l := newLimiter(clock, 1)
	ctx := context.Background()

	_, err := l.Wait(ctx, "yelp")
	require.NoError(t, err)
	waited, err := l.Wait(ctx, "foursquare")
	require.NoError(t, err)
	assert.Zero(t, waited)
}

func TestWait_PerProviderLimits(t *testing.T) {
	clock := newFakeClock()
	limits := map[string]int{"yelp": 1, "foursquare": 3}
	l := NewSlidingWindowLimiter(func(p string) int { return limits[p] }, zap.NewNop(),
		WithClock(clock.Now, clock.Sleep))
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		waited, err := l.Wait(ctx, "foursquare")
		require.NoError(t, err)
		assert.Zero(t, waited)
	}
	_, err := l.Wait(ctx, "yelp")
	require.NoError(t, err)
	waited, err := l.Wait(ctx, "yelp")
	require.NoError(t, err)
	assert.Equal(t, 60*time.Second, waited)
}

func TestWait_ContextCancelledWhileSuspended(t *testing.T) {
	clock := newFakeClock()
	l := newLimiter(clock, 1)

	_, err := l.Wait(context.Background(), "yelp")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = l.Wait(ctx, "yelp")
	require.Error(t, err)
	assert.True(t, services.IsRateLimitError(err))
	assert.Equal(t, 1, l.InWindow("yelp"), "cancelled caller is not recorded")
}

func TestWait_CustomWindow(t *testing.T) {
	clock := newFakeClock()
	l := NewSlidingWindowLimiter(func(string) int { return 1 }, zap.NewNop(),
		WithClock(clock.Now, clock.Sleep), WithWindow(10*time.Second))
	ctx := context.Background()

	_, err := l.Wait(ctx, "yelp")
	require.NoError(t, err)
	waited, err := l.Wait(ctx, "yelp")
	require.NoError(t, err)
	assert.Equal(t, 10*time.Second, waited)
}

func TestWait_RealSleepHonoursContext(t *testing.T) {
	l := NewSlidingWindowLimiter(func(string) int { return 1 }, zap.NewNop())

	_, err := l.Wait(context.Background(), "yelp")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	start := time.Now()
	_, err = l.Wait(ctx, "yelp")
	assert.Error(t, err)
	assert.Less(t, time.Since(start), 5*time.Second)
}
