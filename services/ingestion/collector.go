package ingestion

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/upb/market-intel/config"
	"github.com/upb/market-intel/internal/observability"
	"github.com/upb/market-intel/models"
	"github.com/upb/market-intel/services"
	"github.com/upb/market-intel/services/budget"
	"github.com/upb/market-intel/services/cache"
	"github.com/upb/market-intel/services/providers"
	"go.uber.org/zap"
)

// SourceAuto resolves to the first configured non-mock provider, else Mock
const SourceAuto = "auto"

const (
	sourceTypeReal = "real_api"
	sourceTypeMock = "mock_data"
)

// UsageReporter exposes the budget ledger view
type UsageReporter interface {
	UsageSummary() budget.Usage
}

// CacheReporter exposes response cache statistics
type CacheReporter interface {
	Stats() cache.Stats
}

// Collector selects a provider, runs the call under governance and falls back
// to Mock exactly once when a non-mock provider fails.
type Collector struct {
	registry        *providers.Registry
	mock            providers.Provider
	usage           UsageReporter
	cacheStats      CacheReporter
	defaultLocation string
	logger          *zap.Logger
	metrics         observability.Metrics
	now             func() time.Time
	newID           func() string
	requestID       func(context.Context) string
}

// Option configures a Collector
type Option func(*Collector)

// WithUsageReporter attaches the budget view used by Budget
func WithUsageReporter(u UsageReporter) Option {
	return func(c *Collector) { c.usage = u }
}

// WithCacheReporter attaches the cache view used by Budget
func WithCacheReporter(r CacheReporter) Option {
	return func(c *Collector) { c.cacheStats = r }
}

// WithDefaultLocation sets the location used when a search omits one
func WithDefaultLocation(location string) Option {
	return func(c *Collector) { c.defaultLocation = location }
}

// WithMetrics reports fallbacks
func WithMetrics(m observability.Metrics) Option {
	return func(c *Collector) { c.metrics = m }
}

// WithClock overrides the timestamp source
func WithClock(now func() time.Time) Option {
	return func(c *Collector) { c.now = now }
}

// WithRequestID reads the caller's request id from the context. Results carry
// it instead of a generated id when it is set.
func WithRequestID(fn func(context.Context) string) Option {
	return func(c *Collector) { c.requestID = fn }
}

// NewCollector creates a collector. The registry must contain the mock provider.
func NewCollector(registry *providers.Registry, logger *zap.Logger, opts ...Option) (*Collector, error) {
	mock, err := registry.Get(models.SourceMock)
	if err != nil {
		return nil, services.ErrMockUnavailable
	}

	c := &Collector{
		registry:        registry,
		mock:            mock,
		defaultLocation: "New York",
		logger:          logger,
		metrics:         observability.NopMetrics{},
		now:             time.Now,
		newID:           uuid.NewString,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// CollectBusinesses searches the resolved source
func (c *Collector) CollectBusinesses(ctx context.Context, source string, params providers.SearchParams) (*SearchResult, error) {
	if strings.TrimSpace(params.Location) == "" {
		params.Location = c.defaultLocation
	}
	params.Limit = providers.ClampLimit(params.Limit)

	businesses, env, err := execute(ctx, c, source, "", config.OperationSearch,
		func(ctx context.Context, p providers.Provider) ([]models.Business, error) {
			return p.Search(ctx, params)
		})
	if err != nil {
		return nil, err
	}

	if businesses == nil {
		businesses = []models.Business{}
	}
	env.Count = len(businesses)
	return &SearchResult{
		Envelope:   env,
		Location:   params.Location,
		Query:      params.Query,
		Category:   params.Category,
		Radius:     params.Radius,
		Limit:      params.Limit,
		Businesses: businesses,
	}, nil
}

// GetBusinessDetails fetches one business. With source "auto", mock ids resolve to Mock.
func (c *Collector) GetBusinessDetails(ctx context.Context, source, id string) (*DetailsResult, error) {
	if strings.TrimSpace(id) == "" {
		return nil, services.NewDomainError(services.ErrorTypeValidation, "business id is required", nil)
	}

	details, env, err := execute(ctx, c, source, id, config.OperationDetails,
		func(ctx context.Context, p providers.Provider) (*models.Business, error) {
			return p.GetDetails(ctx, id)
		})
	if err != nil {
		return nil, err
	}

	env.Count = 1
	return &DetailsResult{Envelope: env, BusinessID: id, Details: details}, nil
}

// GetBusinessReviews fetches reviews (tips for Foursquare) for one business
func (c *Collector) GetBusinessReviews(ctx context.Context, source, id string, limit int) (*ReviewsResult, error) {
	if strings.TrimSpace(id) == "" {
		return nil, services.NewDomainError(services.ErrorTypeValidation, "business id is required", nil)
	}
	limit = providers.ClampLimit(limit)

	reviews, env, err := execute(ctx, c, source, id, config.OperationReviews,
		func(ctx context.Context, p providers.Provider) ([]models.Review, error) {
			return p.GetReviews(ctx, id, limit)
		})
	if err != nil {
		return nil, err
	}

	if reviews == nil {
		reviews = []models.Review{}
	}
	env.Count = len(reviews)
	return &ReviewsResult{Envelope: env, BusinessID: id, Limit: limit, Reviews: reviews}, nil
}

// GetCategories lists the resolved source's categories
func (c *Collector) GetCategories(ctx context.Context, source string) (*CategoriesResult, error) {
	categories, env, err := execute(ctx, c, source, "", config.OperationCategories,
		func(ctx context.Context, p providers.Provider) ([]models.Category, error) {
			return p.GetCategories(ctx)
		})
	if err != nil {
		return nil, err
	}

	if categories == nil {
		categories = []models.Category{}
	}
	env.Count = len(categories)
	return &CategoriesResult{Envelope: env, Categories: categories}, nil
}

// SourceInfo lists the registered sources in resolution order
func (c *Collector) SourceInfo() SourcesInfo {
	primary := c.mock.Name()
	if p, ok := c.registry.Primary(); ok {
		primary = p.Name()
	}

	info := SourcesInfo{Primary: primary}
	for _, p := range c.registry.Providers() {
		kind := sourceTypeReal
		if !p.Metered() {
			kind = sourceTypeMock
		}
		info.Sources = append(info.Sources, SourceDescriptor{
			Name:    p.Name(),
			Type:    kind,
			Primary: p.Name() == primary,
			Limits:  p.Limits(),
		})
	}
	info.Count = len(info.Sources)
	return info
}

// TestSources runs a two-result search against every source, without fallback
func (c *Collector) TestSources(ctx context.Context) []SourceStatus {
	params := providers.SearchParams{Location: c.defaultLocation, Limit: 2}

	var statuses []SourceStatus
	for _, p := range c.registry.Providers() {
		start := c.now()
		businesses, err := p.Search(ctx, params)
		status := SourceStatus{
			Source:    p.Name(),
			Status:    "ok",
			Count:     len(businesses),
			LatencyMS: c.now().Sub(start).Milliseconds(),
		}
		if err != nil {
			status.Status = "error"
			status.Count = 0
			status.Error = err.Error()
			status.ErrorType = string(services.GetErrorType(err))
			c.logger.Warn("source connection test failed",
				zap.String("provider", p.Name()),
				zap.Error(err))
		}
		statuses = append(statuses, status)
	}
	return statuses
}

// Budget reports the ledger and cache statistics
func (c *Collector) Budget() BudgetReport {
	var report BudgetReport
	if c.usage != nil {
		report.Budget = c.usage.UsageSummary()
	}
	if c.cacheStats != nil {
		report.Cache = c.cacheStats.Stats()
	}
	return report
}

// resolve maps a requested source name to a provider
func (c *Collector) resolve(source, id string) (providers.Provider, error) {
	source = strings.ToLower(strings.TrimSpace(source))
	if source == "" || source == SourceAuto {
		if strings.HasPrefix(id, models.SourceMock+"_") {
			return c.mock, nil
		}
		if p, ok := c.registry.Primary(); ok {
			return p, nil
		}
		return c.mock, nil
	}

	p, err := c.registry.Get(source)
	if errors.Is(err, providers.ErrProviderNotFound) {
		available := append(c.registry.Names(), SourceAuto)
		return nil, services.NewInvalidSourceError(source, available)
	}
	return p, err
}

// execute runs one logical request with the single-hop Mock fallback
func execute[T any](ctx context.Context, c *Collector, source, id, operation string, call func(context.Context, providers.Provider) (T, error)) (T, Envelope, error) {
	var zero T
	requested := strings.ToLower(strings.TrimSpace(source))
	if requested == "" {
		requested = SourceAuto
	}

	p, err := c.resolve(source, id)
	if err != nil {
		return zero, Envelope{}, err
	}

	callCtx, info := providers.WithCallInfo(ctx)
	result, err := call(callCtx, p)
	if err == nil {
		return result, c.envelope(ctx, p.Name(), requested, operation, info, ""), nil
	}

	if !p.Metered() {
		c.logger.Error("mock provider failed", zap.String("operation", operation), zap.Error(err))
		return zero, Envelope{}, services.NewDomainError(services.ErrorTypeConfiguration, "mock provider unavailable", err)
	}
	if services.IsFatal(err) || services.IsNotFoundError(err) {
		return zero, Envelope{}, err
	}

	reason := string(services.GetErrorType(err))
	if reason == "" {
		reason = "error"
	}
	c.metrics.RecordFallback(p.Name(), reason)
	c.logger.Warn("provider call failed, falling back to mock",
		zap.String("provider", p.Name()),
		zap.String("operation", operation),
		zap.String("reason", reason),
		zap.Error(err))

	callCtx, info = providers.WithCallInfo(ctx)
	result, err = call(callCtx, c.mock)
	if err != nil {
		return zero, Envelope{}, services.NewDomainError(services.ErrorTypeConfiguration, "mock provider unavailable", err)
	}
	return result, c.envelope(ctx, c.mock.Name(), requested, operation, info, reason), nil
}

func (c *Collector) envelope(ctx context.Context, source, requested, operation string, info *providers.CallInfo, fallbackReason string) Envelope {
	var id string
	if c.requestID != nil {
		id = c.requestID(ctx)
	}
	if id == "" {
		id = c.newID()
	}
	return Envelope{
		Success:         true,
		RequestID:       id,
		Source:          source,
		RequestedSource: requested,
		Fallback:        fallbackReason != "",
		FallbackReason:  fallbackReason,
		Timestamp:       c.now().UTC().Format(time.RFC3339),
		CacheInfo: CacheInfo{
			CacheHit: info.CacheHit,
			Cost:     info.Cost,
			TTL:      int(cache.TTLFor(operation).Seconds()),
		},
	}
}
