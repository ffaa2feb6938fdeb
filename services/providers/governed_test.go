package providers

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/upb/market-intel/config"
	"github.com/upb/market-intel/models"
	"github.com/upb/market-intel/repositories/memory"
	"github.com/upb/market-intel/services"
	"github.com/upb/market-intel/services/budget"
	"github.com/upb/market-intel/services/cache"
	"go.uber.org/zap"
)

type fakeBudget struct {
	checkErr  error
	recordErr error
	cost      float64
	checks    []string
	recorded  []string
	released  []string
}

func (f *fakeBudget) Reserve(provider, operation string) error {
	f.checks = append(f.checks, provider+"/"+operation)
	return f.checkErr
}

func (f *fakeBudget) Commit(ctx context.Context, provider, operation string) (float64, error) {
	f.recorded = append(f.recorded, provider+"/"+operation)
	return f.cost, f.recordErr
}

func (f *fakeBudget) Release(provider, operation string) {
	f.released = append(f.released, provider+"/"+operation)
}

type fakeRate struct {
	waits int
	delay time.Duration
	err   error
}

func (f *fakeRate) Wait(ctx context.Context, provider string) (time.Duration, error) {
	f.waits++
	return f.delay, f.err
}

func newGovernedFixture(inner *stubProvider) (Provider, *fakeBudget, *fakeRate) {
	b := &fakeBudget{cost: 0.017}
	r := &fakeRate{}
	g := NewGoverned(inner, b, r, cache.NewResponseCache(100), zap.NewNop(), nil)
	return g, b, r
}

func TestNewGoverned_UnmeteredPassthrough(t *testing.T) {
	inner := &stubProvider{name: "mock"}
	g, b, r := newGovernedFixture(inner)

	assert.Same(t, inner, g)

	_, err := g.Search(context.Background(), SearchParams{Location: "x"})
	require.NoError(t, err)
	assert.Empty(t, b.checks)
	assert.Zero(t, r.waits)
}

func TestGoverned_SearchMissThenHit(t *testing.T) {
	inner := &stubProvider{
		name:       "google_places",
		metered:    true,
		limits:     Limits{MaxRadius: 50000, MaxLimit: 20},
		businesses: []models.Business{{ID: "a", Name: "A"}},
	}
	g, b, r := newGovernedFixture(inner)

	ctx, info := WithCallInfo(context.Background())
	results, err := g.Search(ctx, SearchParams{Location: "NYC", Limit: 999, Radius: 999999})
	require.NoError(t, err)
	assert.Len(t, results, 1)
	assert.False(t, info.CacheHit)
	assert.Equal(t, 0.017, info.Cost)
	assert.Equal(t, SearchParams{Location: "NYC", Limit: 20, Radius: 50000}, inner.lastParams)

	// same normalized request is a cache hit: no network, no charge
	ctx, info = WithCallInfo(context.Background())
	results, err = g.Search(ctx, SearchParams{Location: "NYC", Limit: 50, Radius: 60000})
	require.NoError(t, err)
	assert.Len(t, results, 1)
	assert.True(t, info.CacheHit)
	assert.Zero(t, info.Cost)

	assert.Equal(t, 1, inner.calls)
	assert.Equal(t, []string{"google_places/search"}, b.recorded)
	assert.Equal(t, []string{"google_places/search"}, b.released)
	assert.Len(t, b.checks, 2)
	assert.Equal(t, 2, r.waits)
}

func TestGoverned_BudgetRejectionSkipsEverything(t *testing.T) {
	inner := &stubProvider{name: "yelp", metered: true}
	g, b, r := newGovernedFixture(inner)
	b.checkErr = services.NewBudgetExceededError("yelp", "search", "daily limit")

	_, err := g.Search(context.Background(), SearchParams{Location: "SF"})
	require.Error(t, err)
	assert.True(t, services.IsBudgetError(err))
	assert.Zero(t, r.waits)
	assert.Zero(t, inner.calls)
	assert.Empty(t, b.recorded)
	assert.Empty(t, b.released)
}

func TestGoverned_RateCancellation(t *testing.T) {
	inner := &stubProvider{name: "yelp", metered: true}
	g, b, r := newGovernedFixture(inner)
	r.err = services.NewDomainError(services.ErrorTypeRateLimit, "cancelled while waiting", context.Canceled)

	_, err := g.GetDetails(context.Background(), "x")
	assert.True(t, services.IsRateLimitError(err))
	assert.Zero(t, inner.calls)
	assert.Equal(t, []string{"yelp/details"}, b.released)
}

func TestGoverned_FailedCallNotChargedOrCached(t *testing.T) {
	inner := &stubProvider{name: "foursquare", metered: true, err: errors.New("boom")}
	g, b, _ := newGovernedFixture(inner)

	_, err := g.GetDetails(context.Background(), "x")
	require.Error(t, err)
	_, err = g.GetDetails(context.Background(), "x")
	require.Error(t, err)

	assert.Equal(t, 2, inner.calls)
	assert.Empty(t, b.recorded)
	assert.Equal(t, []string{"foursquare/details", "foursquare/details"}, b.released)
}

func TestGoverned_RecordFailureStillReturnsResult(t *testing.T) {
	inner := &stubProvider{name: "yelp", metered: true}
	g, b, _ := newGovernedFixture(inner)
	b.recordErr = errors.New("disk full")

	reviews, err := g.GetReviews(context.Background(), "biz", 5)
	require.NoError(t, err)
	assert.Len(t, reviews, 1)
}

func TestGoverned_OperationsKeyedSeparately(t *testing.T) {
	inner := &stubProvider{name: "yelp", metered: true}
	g, b, _ := newGovernedFixture(inner)
	ctx := context.Background()

	_, err := g.GetReviews(ctx, "biz", 5)
	require.NoError(t, err)
	_, err = g.GetReviews(ctx, "biz", 3)
	require.NoError(t, err)
	_, err = g.GetDetails(ctx, "biz")
	require.NoError(t, err)
	_, err = g.GetCategories(ctx)
	require.NoError(t, err)
	_, err = g.GetCategories(ctx)
	require.NoError(t, err)

	assert.Equal(t, 4, inner.calls)
	assert.Equal(t, []string{"yelp/reviews", "yelp/reviews", "yelp/details", "yelp/categories"}, b.recorded)
}

type slowProvider struct {
	delay time.Duration
	fail  bool
	calls atomic.Int32
}

func (s *slowProvider) Name() string   { return "yelp" }
func (s *slowProvider) Metered() bool  { return true }
func (s *slowProvider) Limits() Limits { return Limits{MaxRadius: 40000, MaxLimit: 50} }

func (s *slowProvider) Search(ctx context.Context, params SearchParams) ([]models.Business, error) {
	s.calls.Add(1)
	time.Sleep(s.delay)
	if s.fail {
		return nil, errors.New("upstream down")
	}
	return []models.Business{{ID: params.Query, Name: "Biz", Source: "yelp"}}, nil
}

func (s *slowProvider) GetDetails(ctx context.Context, id string) (*models.Business, error) {
	return nil, services.NewNotFoundError("yelp", id)
}

func (s *slowProvider) GetReviews(ctx context.Context, id string, limit int) ([]models.Review, error) {
	return nil, nil
}

func (s *slowProvider) GetCategories(ctx context.Context) ([]models.Category, error) {
	return nil, nil
}

type openRate struct{}

func (openRate) Wait(ctx context.Context, provider string) (time.Duration, error) { return 0, nil }

func newCappedBudget(t *testing.T, limit int) *budget.BudgetService {
	t.Helper()
	gov := config.DefaultGovernance()
	gov.DailyLimits["yelp"] = limit
	svc, err := budget.NewBudgetService(context.Background(), memory.NewBudgetRepository(), gov, zap.NewNop())
	require.NoError(t, err)
	return svc
}

// searchConcurrently issues n distinct searches at once and counts the admitted ones
func searchConcurrently(g Provider, n int) int {
	var (
		wg       sync.WaitGroup
		admitted atomic.Int32
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			query := string(rune('a' + i))
			if _, err := g.Search(context.Background(), SearchParams{Location: "SF", Query: query}); err == nil {
				admitted.Add(1)
			}
		}(i)
	}
	wg.Wait()
	return int(admitted.Load())
}

func TestGoverned_ConcurrentCallsRespectDailyCap(t *testing.T) {
	svc := newCappedBudget(t, 5)
	inner := &slowProvider{delay: 20 * time.Millisecond}
	g := NewGoverned(inner, svc, openRate{}, cache.NewResponseCache(100), zap.NewNop(), nil)

	admitted := searchConcurrently(g, 20)

	assert.Equal(t, 5, admitted)
	assert.Equal(t, int32(5), inner.calls.Load())
	assert.Equal(t, 5, svc.Snapshot().Count(time.Now().Format("2006-01-02"), "yelp"))
	assert.False(t, svc.CanProceed("yelp", config.OperationSearch))
}

func TestGoverned_FailedCallsFreeTheirReservation(t *testing.T) {
	svc := newCappedBudget(t, 5)
	inner := &slowProvider{delay: 5 * time.Millisecond, fail: true}
	g := NewGoverned(inner, svc, openRate{}, cache.NewResponseCache(100), zap.NewNop(), nil)

	assert.Zero(t, searchConcurrently(g, 5))
	assert.Zero(t, svc.Snapshot().Count(time.Now().Format("2006-01-02"), "yelp"))
	assert.True(t, svc.CanProceed("yelp", config.OperationSearch))
}
