package providers

import (
	"context"
	"time"

	"github.com/upb/market-intel/config"
	"github.com/upb/market-intel/internal/observability"
	"github.com/upb/market-intel/models"
	"github.com/upb/market-intel/services/cache"
	"go.uber.org/zap"
)

// BudgetGate admits and accounts metered calls. A successful Reserve is
// followed by exactly one Commit or Release.
type BudgetGate interface {
	Reserve(provider, operation string) error
	Commit(ctx context.Context, provider, operation string) (float64, error)
	Release(provider, operation string)
}

// RateGate suspends callers over the per-provider window
type RateGate interface {
	Wait(ctx context.Context, provider string) (time.Duration, error)
}

// ResponseCache memoizes normalized responses
type ResponseCache interface {
	Get(key string) (interface{}, bool)
	Set(key string, value interface{}, ttl time.Duration)
}

// Governed wraps a metered provider with the budget gate, the rate gate and
// the response cache, in that order. The budget slot is reserved before the
// rate wait and held until the call settles. Cache hits are not charged;
// failed calls are neither charged nor cached.
type Governed struct {
	inner   Provider
	budget  BudgetGate
	rate    RateGate
	cache   ResponseCache
	logger  *zap.Logger
	metrics observability.Metrics
}

// NewGoverned wraps inner. Unmetered providers are returned unwrapped.
func NewGoverned(inner Provider, budget BudgetGate, rate RateGate, responses ResponseCache, logger *zap.Logger, metrics observability.Metrics) Provider {
	if !inner.Metered() {
		return inner
	}
	if metrics == nil {
		metrics = observability.NopMetrics{}
	}
	return &Governed{
		inner:   inner,
		budget:  budget,
		rate:    rate,
		cache:   responses,
		logger:  logger,
		metrics: metrics,
	}
}

// Name returns the wrapped provider's name
func (g *Governed) Name() string { return g.inner.Name() }

// Metered is always true for a governed provider
func (g *Governed) Metered() bool { return true }

// Limits returns the wrapped provider's ceilings
func (g *Governed) Limits() Limits { return g.inner.Limits() }

// Unwrap returns the wrapped provider
func (g *Governed) Unwrap() Provider { return g.inner }

// Search runs a governed search. Parameters are clamped before keying the cache.
func (g *Governed) Search(ctx context.Context, params SearchParams) ([]models.Business, error) {
	params = params.Clamp(g.inner.Limits())
	return governedCall(ctx, g, config.OperationSearch, params, func(ctx context.Context) ([]models.Business, error) {
		return g.inner.Search(ctx, params)
	})
}

// GetDetails runs a governed details lookup
func (g *Governed) GetDetails(ctx context.Context, id string) (*models.Business, error) {
	key := map[string]string{"id": id}
	return governedCall(ctx, g, config.OperationDetails, key, func(ctx context.Context) (*models.Business, error) {
		return g.inner.GetDetails(ctx, id)
	})
}

// GetReviews runs a governed reviews lookup
func (g *Governed) GetReviews(ctx context.Context, id string, limit int) ([]models.Review, error) {
	limit = ClampLimit(limit)
	key := map[string]interface{}{"id": id, "limit": limit}
	return governedCall(ctx, g, config.OperationReviews, key, func(ctx context.Context) ([]models.Review, error) {
		return g.inner.GetReviews(ctx, id, limit)
	})
}

// GetCategories runs a governed category listing
func (g *Governed) GetCategories(ctx context.Context) ([]models.Category, error) {
	return governedCall(ctx, g, config.OperationCategories, struct{}{}, func(ctx context.Context) ([]models.Category, error) {
		return g.inner.GetCategories(ctx)
	})
}

func governedCall[T any](ctx context.Context, g *Governed, operation string, keyParams interface{}, call func(context.Context) (T, error)) (T, error) {
	var zero T
	name := g.inner.Name()
	info := CallInfoFromContext(ctx)

	if err := g.budget.Reserve(name, operation); err != nil {
		g.metrics.RecordProviderCall(name, operation, observability.OutcomeRejected)
		g.logger.Warn("budget rejected provider call",
			zap.String("provider", name),
			zap.String("operation", operation),
			zap.Error(err))
		return zero, err
	}

	waited, err := g.rate.Wait(ctx, name)
	if waited > 0 {
		g.metrics.RecordRateWait(name, waited)
	}
	if err != nil {
		g.budget.Release(name, operation)
		g.metrics.RecordProviderCall(name, operation, observability.OutcomeRejected)
		return zero, err
	}

	key, keyErr := cache.Key(name, operation, keyParams)
	if keyErr != nil {
		g.logger.Warn("failed to build cache key", zap.String("provider", name), zap.Error(keyErr))
	} else if v, ok := g.cache.Get(key); ok {
		if cached, ok := v.(T); ok {
			g.budget.Release(name, operation)
			g.metrics.RecordCacheLookup(name, operation, true)
			g.metrics.RecordProviderCall(name, operation, observability.OutcomeCached)
			if info != nil {
				info.CacheHit = true
			}
			return cached, nil
		}
	}
	if keyErr == nil {
		g.metrics.RecordCacheLookup(name, operation, false)
	}

	result, err := call(ctx)
	if err != nil {
		g.budget.Release(name, operation)
		g.metrics.RecordProviderCall(name, operation, observability.OutcomeError)
		return zero, err
	}
	g.metrics.RecordProviderCall(name, operation, observability.OutcomeSuccess)

	cost, err := g.budget.Commit(ctx, name, operation)
	if err != nil {
		g.logger.Error("failed to record provider request",
			zap.String("provider", name),
			zap.String("operation", operation),
			zap.Error(err))
	}
	if info != nil {
		info.Cost = cost
	}

	if keyErr == nil {
		g.cache.Set(key, result, cache.TTLFor(operation))
	}
	return result, nil
}
