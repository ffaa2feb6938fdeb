package ratelimit

import (
	"context"
	"sync"
	"time"

	"github.com/upb/market-intel/internal/observability"
	"github.com/upb/market-intel/services"
	"go.uber.org/zap"
)

// DefaultWindow is the sliding window length
const DefaultWindow = 60 * time.Second

// LimitFunc returns the admissions allowed per window for a provider
type LimitFunc func(provider string) int

// SleepFunc suspends the caller for d or until ctx is done
type SleepFunc func(ctx context.Context, d time.Duration) error

// SlidingWindowLimiter throttles calls per provider. It never rejects:
// a caller over the limit is suspended until the oldest admission leaves the window.
type SlidingWindowLimiter struct {
	mu      sync.Mutex
	windows map[string][]time.Time
	limit   LimitFunc
	window  time.Duration
	now     func() time.Time
	sleep   SleepFunc
	logger  *zap.Logger
	metrics observability.Metrics
}

// Option configures a SlidingWindowLimiter
type Option func(*SlidingWindowLimiter)

// WithWindow overrides the window length
func WithWindow(d time.Duration) Option {
	return func(l *SlidingWindowLimiter) { l.window = d }
}

// WithClock overrides the time source and the sleep implementation
func WithClock(now func() time.Time, sleep SleepFunc) Option {
	return func(l *SlidingWindowLimiter) {
		l.now = now
		l.sleep = sleep
	}
}

// WithMetrics reports suspension time
func WithMetrics(m observability.Metrics) Option {
	return func(l *SlidingWindowLimiter) { l.metrics = m }
}

// NewSlidingWindowLimiter creates a limiter. A nil limit function admits 10 per window.
func NewSlidingWindowLimiter(limit LimitFunc, logger *zap.Logger, opts ...Option) *SlidingWindowLimiter {
	if limit == nil {
		limit = func(string) int { return 10 }
	}
	l := &SlidingWindowLimiter{
		windows: make(map[string][]time.Time),
		limit:   limit,
		window:  DefaultWindow,
		now:     time.Now,
		sleep:   sleepContext,
		logger:  logger,
		metrics: observability.NopMetrics{},
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Wait blocks until the provider may issue one more request, then records it.
// It returns how long the caller was suspended. The only error is context
// cancellation while suspended, reported as a rate_limit error.
func (l *SlidingWindowLimiter) Wait(ctx context.Context, provider string) (time.Duration, error) {
	var waited time.Duration
	limit := l.limit(provider)
	if limit < 1 {
		limit = 1
	}

	for {
		l.mu.Lock()
		now := l.now()
		window := l.prune(provider, now)
		if len(window) < limit {
			l.windows[provider] = append(window, now)
			l.mu.Unlock()
			if waited > 0 {
				l.metrics.RecordRateWait(provider, waited)
			}
			return waited, nil
		}
		wait := l.window - now.Sub(window[0])
		if wait < 0 {
			wait = 0
		}
		l.mu.Unlock()

		l.logger.Info("rate limit reached, waiting",
			zap.String("provider", provider),
			zap.Int("limit", limit),
			zap.Duration("wait", wait))

		if err := l.sleep(ctx, wait); err != nil {
			return waited, services.NewDomainError(services.ErrorTypeRateLimit,
				"cancelled while waiting for rate limit", err).
				WithDetail("provider", provider).
				WithDetail("wait_seconds", wait.Seconds())
		}
		waited += wait
	}
}

// InWindow returns how many admissions the provider has inside the current window
func (l *SlidingWindowLimiter) InWindow(provider string) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	return len(l.prune(provider, l.now()))
}

// prune drops timestamps that left the window (must be called with lock held)
func (l *SlidingWindowLimiter) prune(provider string, now time.Time) []time.Time {
	window := l.windows[provider]
	i := 0
	for i < len(window) && now.Sub(window[i]) >= l.window {
		i++
	}
	if i > 0 {
		window = append(window[:0:0], window[i:]...)
		l.windows[provider] = window
	}
	return window
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
