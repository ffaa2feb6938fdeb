package memory

import (
	"context"
	"sync"

	"github.com/upb/market-intel/models"
	"github.com/upb/market-intel/repositories"
)

// BudgetRepository keeps the ledger in process memory
type BudgetRepository struct {
	mu    sync.Mutex
	state *models.BudgetState
	saves int
}

// NewBudgetRepository creates an empty repository
func NewBudgetRepository() *BudgetRepository {
	return &BudgetRepository{}
}

// Load returns a copy of the stored ledger
func (r *BudgetRepository) Load(ctx context.Context) (*models.BudgetState, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.state == nil {
		return nil, repositories.ErrBudgetStateNotFound
	}
	return r.state.Clone(), nil
}

// Save stores a copy of the ledger
func (r *BudgetRepository) Save(ctx context.Context, state *models.BudgetState) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.state = state.Clone()
	r.saves++
	return nil
}

// Saves returns how many times Save was called
func (r *BudgetRepository) Saves() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.saves
}
