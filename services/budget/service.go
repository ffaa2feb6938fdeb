package budget

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/upb/market-intel/config"
	"github.com/upb/market-intel/internal/observability"
	"github.com/upb/market-intel/models"
	"github.com/upb/market-intel/repositories"
	"github.com/upb/market-intel/services"
	"go.uber.org/zap"
)

const dateLayout = "2006-01-02"

// BudgetService enforces the daily request caps and the global cost ceiling.
// All reads and writes of the ledger go through mu. Calls admitted by Reserve
// count against the caps until they are committed or released, so concurrent
// callers in one process cannot overshoot. Processes sharing one store do not
// see each other's reservations.
type BudgetService struct {
	mu          sync.Mutex
	store       repositories.BudgetRepository
	gov         *config.Governance
	state       *models.BudgetState
	pending     map[string]int
	pendingCost float64
	logger      *zap.Logger
	metrics     observability.Metrics
	now         func() time.Time
}

// Option configures a BudgetService
type Option func(*BudgetService)

// WithClock overrides the time source used for the daily key
func WithClock(now func() time.Time) Option {
	return func(s *BudgetService) { s.now = now }
}

// WithMetrics reports the running total
func WithMetrics(m observability.Metrics) Option {
	return func(s *BudgetService) { s.metrics = m }
}

// NewBudgetService loads the ledger once, creating and persisting an empty one if absent
func NewBudgetService(ctx context.Context, store repositories.BudgetRepository, gov *config.Governance, logger *zap.Logger, opts ...Option) (*BudgetService, error) {
	if gov == nil {
		gov = config.DefaultGovernance()
	}
	s := &BudgetService{
		store:   store,
		gov:     gov,
		pending: make(map[string]int),
		logger:  logger,
		metrics: observability.NopMetrics{},
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}

	state, err := store.Load(ctx)
	switch {
	case errors.Is(err, repositories.ErrBudgetStateNotFound):
		state = models.NewBudgetState()
		if err := store.Save(ctx, state); err != nil {
			return nil, fmt.Errorf("failed to create budget state: %w", err)
		}
		logger.Info("created budget state")
	case err != nil:
		return nil, fmt.Errorf("failed to load budget state: %w", err)
	}
	state.Normalize()
	s.state = state
	s.metrics.SetBudgetTotal(state.TotalCost)

	logger.Info("budget service initialized",
		zap.Float64("total_cost", state.TotalCost),
		zap.Float64("global_ceiling", gov.GlobalCeiling))

	return s, nil
}

// Check returns a budget error when the provider's daily cap is reached or the
// operation's cost would push the total past the global ceiling. Reserved calls
// count as spent. It never mutates state.
func (s *BudgetService) Check(provider, operation string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.check(provider, operation)
}

func (s *BudgetService) check(provider, operation string) error {
	today := s.today()
	limit := s.gov.DailyLimit(provider)
	if count := s.state.Count(today, provider) + s.pending[provider]; count >= limit {
		return services.NewBudgetExceededError(provider, operation,
			fmt.Sprintf("daily limit of %d requests reached for %s", limit, provider)).
			WithDetail("count", count).
			WithDetail("limit", limit)
	}

	cost := s.gov.Cost(provider, operation)
	if s.state.TotalCost+s.pendingCost+cost > s.gov.GlobalCeiling {
		return services.NewBudgetExceededError(provider, operation,
			fmt.Sprintf("request would exceed global budget ceiling of $%.2f", s.gov.GlobalCeiling)).
			WithDetail("total_cost", s.state.TotalCost).
			WithDetail("reserved_cost", s.pendingCost).
			WithDetail("cost", cost)
	}
	return nil
}

// CanProceed reports whether Check admits the call
func (s *BudgetService) CanProceed(provider, operation string) bool {
	return s.Check(provider, operation) == nil
}

// Reserve admits one call and holds its slot and cost until Commit or Release.
// It fails with the same errors as Check.
func (s *BudgetService) Reserve(provider, operation string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.check(provider, operation); err != nil {
		return err
	}
	s.pending[provider]++
	s.pendingCost += s.gov.Cost(provider, operation)
	return nil
}

// Commit turns a reservation into a recorded request
func (s *BudgetService) Commit(ctx context.Context, provider, operation string) (float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.release(provider, operation)
	return s.record(ctx, provider, operation)
}

// Release drops a reservation whose call was not made or failed
func (s *BudgetService) Release(provider, operation string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.release(provider, operation)
}

func (s *BudgetService) release(provider, operation string) {
	if s.pending[provider] == 0 {
		return
	}
	s.pending[provider]--
	if s.pending[provider] == 0 {
		delete(s.pending, provider)
	}
	if len(s.pending) == 0 {
		s.pendingCost = 0
		return
	}
	s.pendingCost = math.Max(0, s.pendingCost-s.gov.Cost(provider, operation))
}

// RecordRequest counts one accepted call, adds its tabulated cost and persists
// the ledger. Alerts that fire are appended and persisted once.
func (s *BudgetService) RecordRequest(ctx context.Context, provider, operation string) (float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.record(ctx, provider, operation)
}

func (s *BudgetService) record(ctx context.Context, provider, operation string) (float64, error) {
	today := s.today()
	cost := s.gov.Cost(provider, operation)

	s.state.Increment(today, provider)
	s.state.TotalCost += cost
	s.metrics.SetBudgetTotal(s.state.TotalCost)

	if err := s.store.Save(ctx, s.state); err != nil {
		return cost, services.WrapInternal("failed to persist budget state", err)
	}

	s.logger.Debug("recorded provider request",
		zap.String("provider", provider),
		zap.String("operation", operation),
		zap.Float64("cost", cost),
		zap.Float64("total_cost", s.state.TotalCost))

	if fired := s.evaluateAlerts(today, provider); fired > 0 {
		if err := s.store.Save(ctx, s.state); err != nil {
			return cost, services.WrapInternal("failed to persist budget alerts", err)
		}
	}

	return cost, nil
}

// evaluateAlerts appends alerts not yet sent and returns how many fired
func (s *BudgetService) evaluateAlerts(today, provider string) int {
	var candidates []string

	limit := s.gov.DailyLimit(provider)
	if limit > 0 {
		threshold := int(math.Ceil(float64(limit)*s.gov.AlertRatio - 1e-9))
		if s.state.Count(today, provider) >= threshold {
			candidates = append(candidates, fmt.Sprintf("%s %s: daily requests at %.0f%% of limit %d",
				today, provider, s.gov.AlertRatio*100, limit))
		}
	}

	for _, m := range s.gov.CostMilestones {
		if s.state.TotalCost >= m {
			candidates = append(candidates, fmt.Sprintf("total cost reached $%.2f", m))
		}
	}

	fired := 0
	for _, msg := range candidates {
		if s.state.HasAlert(msg) {
			continue
		}
		s.state.AlertsSent = append(s.state.AlertsSent, msg)
		fired++
		s.logger.Warn("budget alert",
			zap.String("alert", msg),
			zap.String("provider", provider),
			zap.Float64("total_cost", s.state.TotalCost))
	}
	return fired
}

// Usage is a read-only view of the ledger
type Usage struct {
	TotalCost       float64        `json:"total_cost"`
	GlobalCeiling   float64        `json:"global_ceiling"`
	RemainingBudget float64        `json:"remaining_budget"`
	Date            string         `json:"date"`
	TodayUsage      map[string]int `json:"today_usage"`
	DailyLimits     map[string]int `json:"daily_limits"`
	AlertsSent      []string       `json:"alerts_sent"`
}

// UsageSummary reports spend, today's counts and the configured caps
func (s *BudgetService) UsageSummary() Usage {
	s.mu.Lock()
	defer s.mu.Unlock()

	today := s.today()
	usage := Usage{
		TotalCost:       s.state.TotalCost,
		GlobalCeiling:   s.gov.GlobalCeiling,
		RemainingBudget: math.Max(0, s.gov.GlobalCeiling-s.state.TotalCost),
		Date:            today,
		TodayUsage:      make(map[string]int),
		DailyLimits:     make(map[string]int),
		AlertsSent:      append([]string{}, s.state.AlertsSent...),
	}
	for p, n := range s.state.DailyUsage[today] {
		usage.TodayUsage[p] = n
	}
	for p := range s.gov.DailyLimits {
		usage.DailyLimits[p] = s.gov.DailyLimit(p)
	}
	for p := range usage.TodayUsage {
		usage.DailyLimits[p] = s.gov.DailyLimit(p)
	}
	return usage
}

// Snapshot returns a copy of the ledger
func (s *BudgetService) Snapshot() *models.BudgetState {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.state.Clone()
}

// CleanupOldUsage drops daily counters older than retention. The total cost is kept.
func (s *BudgetService) CleanupOldUsage(ctx context.Context, retention time.Duration) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := s.now().Add(-retention).Format(dateLayout)

	var removed []string
	for _, date := range s.state.Dates() {
		if date >= cutoff {
			break
		}
		removed = append(removed, date)
	}
	if len(removed) == 0 {
		return 0, nil
	}

	for _, date := range removed {
		delete(s.state.DailyUsage, date)
	}
	if err := s.store.Save(ctx, s.state); err != nil {
		return 0, fmt.Errorf("failed to persist compacted budget state: %w", err)
	}

	sort.Strings(removed)
	s.logger.Info("cleaned up old budget usage",
		zap.Int("dates_removed", len(removed)),
		zap.String("oldest", removed[0]),
		zap.String("cutoff", cutoff))

	return len(removed), nil
}

// StartCleanupWorker starts a background worker to periodically compact old usage
func (s *BudgetService) StartCleanupWorker(ctx context.Context, interval time.Duration, retention time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.logger.Info("started budget cleanup worker",
		zap.Duration("interval", interval),
		zap.Duration("retention", retention))

	for {
		select {
		case <-ticker.C:
			if _, err := s.CleanupOldUsage(ctx, retention); err != nil {
				s.logger.Error("failed to cleanup old budget usage", zap.Error(err))
			}
		case <-ctx.Done():
			s.logger.Info("stopping budget cleanup worker")
			return
		}
	}
}

func (s *BudgetService) today() string {
	return s.now().Format(dateLayout)
}
