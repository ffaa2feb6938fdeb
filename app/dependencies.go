package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/upb/market-intel/config"
	"github.com/upb/market-intel/internal/observability"
	"github.com/upb/market-intel/middleware"
	"github.com/upb/market-intel/repositories"
	"github.com/upb/market-intel/repositories/file"
	"github.com/upb/market-intel/repositories/memory"
	"github.com/upb/market-intel/repositories/postgres"
	"github.com/upb/market-intel/repositories/redis"
	"github.com/upb/market-intel/services"
	"github.com/upb/market-intel/services/budget"
	"github.com/upb/market-intel/services/cache"
	"github.com/upb/market-intel/services/ingestion"
	"github.com/upb/market-intel/services/providers"
	"github.com/upb/market-intel/services/providers/foursquare"
	"github.com/upb/market-intel/services/providers/googleplaces"
	"github.com/upb/market-intel/services/providers/mock"
	"github.com/upb/market-intel/services/providers/yelp"
	"github.com/upb/market-intel/services/ratelimit"
	"go.uber.org/zap"
)

// Dependencies holds all application dependencies.
// This is the central wiring point for dependency injection.
type Dependencies struct {
	// Infrastructure
	Config *config.Config
	Logger *zap.Logger
	DB     *postgres.DB    // set only for the postgres budget store
	Redis  *goredis.Client // set only for the redis budget store

	// Observability
	Metrics    observability.Metrics
	Prometheus *observability.PrometheusMetrics // nil when metrics are disabled

	// Governance
	BudgetStore repositories.BudgetRepository
	Budget      *budget.BudgetService
	RateLimiter *ratelimit.SlidingWindowLimiter
	Cache       *cache.ResponseCache

	// Providers
	Registry  *providers.Registry
	Collector *ingestion.Collector

	stopWorkers context.CancelFunc
}

// adapterFactory builds one real provider adapter from its config
type adapterFactory struct {
	name  string
	cfg   config.ProviderConfig
	build func(providers.ProviderConfig, *zap.Logger) (providers.Provider, error)
}

// NewDependencies creates and wires up all application dependencies
func NewDependencies(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Dependencies, error) {
	deps := &Dependencies{
		Config: cfg,
		Logger: logger,
	}

	deps.initMetrics(cfg)

	if err := deps.initBudgetStore(ctx, cfg); err != nil {
		_ = deps.closeStores()
		return nil, fmt.Errorf("failed to initialize budget store: %w", err)
	}

	if err := deps.initGovernors(ctx, cfg); err != nil {
		_ = deps.closeStores()
		return nil, fmt.Errorf("failed to initialize governors: %w", err)
	}

	if err := deps.initProviders(cfg); err != nil {
		_ = deps.Close(ctx)
		return nil, fmt.Errorf("failed to initialize providers: %w", err)
	}

	logger.Info("all dependencies initialized successfully",
		zap.Strings("sources", deps.Registry.Names()),
		zap.String("budget_store", cfg.Budget.Store))
	return deps, nil
}

// initMetrics selects Prometheus or the no-op collector
func (d *Dependencies) initMetrics(cfg *config.Config) {
	if !cfg.Observability.MetricsEnabled {
		d.Metrics = observability.NopMetrics{}
		return
	}
	d.Prometheus = observability.NewPrometheusMetrics()
	d.Metrics = d.Prometheus
}

// initBudgetStore opens the configured ledger backend
func (d *Dependencies) initBudgetStore(ctx context.Context, cfg *config.Config) error {
	switch cfg.Budget.Store {
	case config.BudgetStoreMemory:
		d.BudgetStore = memory.NewBudgetRepository()

	case config.BudgetStorePostgres:
		db, err := postgres.NewDB(cfg.Database, d.Logger)
		if err != nil {
			return err
		}
		d.DB = db
		if err := db.InitSchema(ctx); err != nil {
			return fmt.Errorf("failed to initialize schema: %w", err)
		}
		d.BudgetStore = postgres.NewBudgetRepository(db, postgres.DefaultLedgerID, d.Logger)

	case config.BudgetStoreRedis:
		rdb := goredis.NewClient(&goredis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		d.Redis = rdb

		pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		defer cancel()
		if err := rdb.Ping(pingCtx).Err(); err != nil {
			return fmt.Errorf("redis ping failed: %w", err)
		}
		d.BudgetStore = redis.NewBudgetRepository(rdb, redis.WithKey(cfg.Redis.BudgetKey))

	default:
		d.BudgetStore = file.NewBudgetRepository(cfg.Budget.FilePath)
	}

	d.Logger.Info("budget store ready", zap.String("store", cfg.Budget.Store))
	return nil
}

// initGovernors builds the budget governor, rate governor and response cache
// and starts their background workers
func (d *Dependencies) initGovernors(ctx context.Context, cfg *config.Config) error {
	gov := cfg.Governance
	if gov == nil {
		gov = config.DefaultGovernance()
	}

	budgetSvc, err := budget.NewBudgetService(ctx, d.BudgetStore, gov, d.Logger, budget.WithMetrics(d.Metrics))
	if err != nil {
		return err
	}
	d.Budget = budgetSvc

	d.RateLimiter = ratelimit.NewSlidingWindowLimiter(gov.RateLimit, d.Logger,
		ratelimit.WithWindow(gov.RateWindow),
		ratelimit.WithMetrics(d.Metrics))

	d.Cache = cache.NewResponseCache(cfg.Cache.MaxEntries, cache.WithLogger(d.Logger))

	workerCtx, cancel := context.WithCancel(context.Background())
	d.stopWorkers = cancel
	if cfg.Cache.CleanupInterval > 0 {
		go d.Cache.StartCleanupWorker(workerCtx, cfg.Cache.CleanupInterval)
	}
	if cfg.Budget.CleanupInterval > 0 && cfg.Budget.CleanupRetention > 0 {
		go d.Budget.StartCleanupWorker(workerCtx, cfg.Budget.CleanupInterval, cfg.Budget.CleanupRetention)
	}
	return nil
}

// initProviders registers every configured adapter behind the governors,
// then Mock. Resolution order for "auto" is registration order.
func (d *Dependencies) initProviders(cfg *config.Config) error {
	registry := providers.NewRegistry()

	factories := []adapterFactory{
		{
			name: "google_places",
			cfg:  cfg.Providers.GooglePlaces,
			build: func(c providers.ProviderConfig, l *zap.Logger) (providers.Provider, error) {
				return googleplaces.NewAdapter(c, l)
			},
		},
		{
			name: "yelp",
			cfg:  cfg.Providers.Yelp,
			build: func(c providers.ProviderConfig, l *zap.Logger) (providers.Provider, error) {
				return yelp.NewAdapter(c, l)
			},
		},
		{
			name: "foursquare",
			cfg:  cfg.Providers.Foursquare,
			build: func(c providers.ProviderConfig, l *zap.Logger) (providers.Provider, error) {
				return foursquare.NewAdapter(c, l)
			},
		},
	}

	for _, f := range factories {
		if !f.cfg.Configured() {
			d.Logger.Info("provider not configured, skipping", zap.String("provider", f.name))
			continue
		}
		adapter, err := f.build(providers.ProviderConfig{
			APIKey:  f.cfg.APIKey,
			BaseURL: f.cfg.BaseURL,
			Timeout: f.cfg.Timeout,
		}, d.Logger)
		if services.IsConfigurationError(err) {
			d.Logger.Warn("provider rejected its configuration, skipping",
				zap.String("provider", f.name),
				zap.Error(err))
			continue
		}
		if err != nil {
			return err
		}
		governed := providers.NewGoverned(adapter, d.Budget, d.RateLimiter, d.Cache, d.Logger, d.Metrics)
		if err := registry.Register(governed); err != nil {
			return err
		}
		d.Logger.Info("registered provider", zap.String("provider", f.name))
	}

	if err := registry.Register(mock.NewAdapter(cfg.Providers.MockSeed)); err != nil {
		return err
	}
	if registry.Count() == 1 {
		d.Logger.Warn("no real providers configured, serving mock data only")
	}
	d.Registry = registry

	collector, err := ingestion.NewCollector(registry, d.Logger,
		ingestion.WithUsageReporter(d.Budget),
		ingestion.WithCacheReporter(d.Cache),
		ingestion.WithDefaultLocation(cfg.DefaultLocation),
		ingestion.WithMetrics(d.Metrics),
		ingestion.WithRequestID(middleware.GetRequestIDFromContext))
	if err != nil {
		return err
	}
	d.Collector = collector
	return nil
}

// Close stops the background workers and releases the stores
func (d *Dependencies) Close(ctx context.Context) error {
	d.Logger.Info("shutting down dependencies")

	if d.stopWorkers != nil {
		d.stopWorkers()
	}

	err := d.closeStores()

	_ = d.Logger.Sync()
	return err
}

func (d *Dependencies) closeStores() error {
	var errs []error

	if d.Redis != nil {
		if err := d.Redis.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close redis: %w", err))
		}
	}
	if d.DB != nil {
		if err := d.DB.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close database: %w", err))
		}
	}

	return errors.Join(errs...)
}
