package repositories

import (
	"context"
	"errors"

	"github.com/upb/market-intel/models"
)

// ErrBudgetStateNotFound is returned by Load when nothing has been persisted yet
var ErrBudgetStateNotFound = errors.New("budget state not found")

// BudgetRepository persists the budget ledger as a single document
type BudgetRepository interface {
	// Load returns the persisted ledger or ErrBudgetStateNotFound
	Load(ctx context.Context) (*models.BudgetState, error)

	// Save replaces the persisted ledger
	Save(ctx context.Context, state *models.BudgetState) error
}
