package app

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/upb/market-intel/config"
	"github.com/upb/market-intel/internal/observability"
	"github.com/upb/market-intel/services/providers"
	"github.com/upb/market-intel/services/providers/mock"
	"go.uber.org/zap/zaptest"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		Environment:     "test",
		DefaultLocation: "Chicago",
		Budget: config.BudgetConfig{
			Store:            config.BudgetStoreMemory,
			CleanupInterval:  time.Hour,
			CleanupRetention: 24 * time.Hour,
		},
		Cache: config.CacheConfig{
			MaxEntries:      100,
			CleanupInterval: time.Minute,
		},
		Observability: config.ObservabilityConfig{
			LogLevel:       "debug",
			MetricsEnabled: true,
		},
		Providers: config.ProvidersConfig{
			MockSeed: 7,
		},
		Governance: config.DefaultGovernance(),
	}
}

func TestNewDependencies(t *testing.T) {
	ctx := context.Background()

	t.Run("mock only when no keys are configured", func(t *testing.T) {
		cfg := testConfig(t)
		cfg.Providers.Yelp.APIKey = "your-yelp-api-key-here"

		deps, err := NewDependencies(ctx, cfg, zaptest.NewLogger(t))
		require.NoError(t, err)
		defer deps.Close(ctx)

		assert.Equal(t, []string{"mock"}, deps.Registry.Names())
		assert.NotNil(t, deps.Collector)
		assert.NotNil(t, deps.Prometheus)
		assert.Nil(t, deps.DB)
		assert.Nil(t, deps.Redis)

		result, err := deps.Collector.CollectBusinesses(ctx, "auto", providers.SearchParams{Limit: 3})
		require.NoError(t, err)
		assert.Equal(t, "mock", result.Source)
		assert.Equal(t, "Chicago", result.Location)
	})

	t.Run("configured providers are governed and ordered ahead of mock", func(t *testing.T) {
		cfg := testConfig(t)
		cfg.Providers.Yelp = config.ProviderConfig{APIKey: "yelp-key", BaseURL: "http://127.0.0.1:1", Timeout: time.Second}
		cfg.Providers.Foursquare = config.ProviderConfig{APIKey: "fsq-key", BaseURL: "http://127.0.0.1:1", Timeout: time.Second}

		deps, err := NewDependencies(ctx, cfg, zaptest.NewLogger(t))
		require.NoError(t, err)
		defer deps.Close(ctx)

		assert.Equal(t, []string{"yelp", "foursquare", "mock"}, deps.Registry.Names())

		primary, ok := deps.Registry.Primary()
		require.True(t, ok)
		assert.Equal(t, "yelp", primary.Name())
		_, governed := primary.(*providers.Governed)
		assert.True(t, governed)

		m, err := deps.Registry.Get("mock")
		require.NoError(t, err)
		_, isMock := m.(*mock.Adapter)
		assert.True(t, isMock)
	})

	t.Run("file store persists across restarts", func(t *testing.T) {
		cfg := testConfig(t)
		cfg.Budget.Store = config.BudgetStoreFile
		cfg.Budget.FilePath = filepath.Join(t.TempDir(), "budget.json")

		deps, err := NewDependencies(ctx, cfg, zaptest.NewLogger(t))
		require.NoError(t, err)
		_, err = deps.Budget.RecordRequest(ctx, "google_places", config.OperationSearch)
		require.NoError(t, err)
		require.NoError(t, deps.Close(ctx))

		restarted, err := NewDependencies(ctx, cfg, zaptest.NewLogger(t))
		require.NoError(t, err)
		defer restarted.Close(ctx)

		assert.InDelta(t, 0.017, restarted.Budget.UsageSummary().TotalCost, 1e-9)
	})

	t.Run("metrics disabled", func(t *testing.T) {
		cfg := testConfig(t)
		cfg.Observability.MetricsEnabled = false

		deps, err := NewDependencies(ctx, cfg, zaptest.NewLogger(t))
		require.NoError(t, err)
		defer deps.Close(ctx)

		assert.Nil(t, deps.Prometheus)
		assert.Equal(t, observability.NopMetrics{}, deps.Metrics)
	})

	t.Run("redis store unreachable", func(t *testing.T) {
		cfg := testConfig(t)
		cfg.Budget.Store = config.BudgetStoreRedis
		cfg.Redis.Addr = "127.0.0.1:1"

		deps, err := NewDependencies(ctx, cfg, zaptest.NewLogger(t))
		assert.Error(t, err)
		assert.Nil(t, deps)
		assert.Contains(t, err.Error(), "failed to initialize budget store")
	})
}

func TestDependenciesClose(t *testing.T) {
	ctx := context.Background()

	deps, err := NewDependencies(ctx, testConfig(t), zaptest.NewLogger(t))
	require.NoError(t, err)

	assert.NoError(t, deps.Close(ctx))
	assert.NotPanics(t, func() { _ = deps.Close(ctx) })
}
