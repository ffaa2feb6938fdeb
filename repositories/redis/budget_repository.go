package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/upb/market-intel/models"
	"github.com/upb/market-intel/repositories"
)

// Client is the subset of *goredis.Client the repository needs
type Client interface {
	Get(ctx context.Context, key string) *goredis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *goredis.StatusCmd
}

// BudgetRepository stores the ledger as one JSON string value
type BudgetRepository struct {
	rdb Client
	key string
}

// BudgetOption configures a BudgetRepository
type BudgetOption func(*BudgetRepository)

// WithKey overrides the Redis key
func WithKey(key string) BudgetOption {
	return func(r *BudgetRepository) {
		if k := strings.Trim(key, ":"); k != "" {
			r.key = k
		}
	}
}

// NewBudgetRepository creates a repository on an existing client
func NewBudgetRepository(rdb Client, opts ...BudgetOption) *BudgetRepository {
	r := &BudgetRepository{
		rdb: rdb,
		key: "ingestion:budget",
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Key returns the Redis key holding the ledger
func (r *BudgetRepository) Key() string {
	return r.key
}

// Load fetches and decodes the ledger
func (r *BudgetRepository) Load(ctx context.Context) (*models.BudgetState, error) {
	raw, err := r.rdb.Get(ctx, r.key).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, repositories.ErrBudgetStateNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("redis get budget: %w", err)
	}

	var state models.BudgetState
	if err := json.Unmarshal(raw, &state); err != nil {
		return nil, fmt.Errorf("decode budget state: %w", err)
	}
	state.Normalize()
	return &state, nil
}

// Save replaces the ledger. The key never expires.
func (r *BudgetRepository) Save(ctx context.Context, state *models.BudgetState) error {
	b, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("encode budget state: %w", err)
	}
	if err := r.rdb.Set(ctx, r.key, b, 0).Err(); err != nil {
		return fmt.Errorf("redis set budget: %w", err)
	}
	return nil
}
