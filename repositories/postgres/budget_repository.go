package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/upb/market-intel/models"
	"github.com/upb/market-intel/repositories"
	"go.uber.org/zap"
)

// DefaultLedgerID names the single ledger row
const DefaultLedgerID = "default"

// BudgetRepository implements repositories.BudgetRepository on a JSONB row
type BudgetRepository struct {
	db       *DB
	ledgerID string
	logger   *zap.Logger
	now      func() time.Time
}

// NewBudgetRepository creates a new budget repository
func NewBudgetRepository(db *DB, ledgerID string, logger *zap.Logger) *BudgetRepository {
	if ledgerID == "" {
		ledgerID = DefaultLedgerID
	}
	return &BudgetRepository{
		db:       db,
		ledgerID: ledgerID,
		logger:   logger,
		now:      time.Now,
	}
}

// Load retrieves the ledger row
func (r *BudgetRepository) Load(ctx context.Context) (*models.BudgetState, error) {
	query := `
		SELECT state
		FROM budget_state
		WHERE id = $1
	`

	var raw []byte
	err := r.db.QueryRowContext(ctx, query, r.ledgerID).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, repositories.ErrBudgetStateNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load budget state: %w", err)
	}

	var state models.BudgetState
	if err := json.Unmarshal(raw, &state); err != nil {
		return nil, fmt.Errorf("failed to decode budget state: %w", err)
	}
	state.Normalize()
	return &state, nil
}

// Save upserts the ledger row
func (r *BudgetRepository) Save(ctx context.Context, state *models.BudgetState) error {
	raw, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("failed to encode budget state: %w", err)
	}

	query := `
		INSERT INTO budget_state (id, state, updated_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (id)
		DO UPDATE SET
			state = EXCLUDED.state,
			updated_at = EXCLUDED.updated_at
	`

	if _, err := r.db.ExecContext(ctx, query, r.ledgerID, raw, r.now()); err != nil {
		return fmt.Errorf("failed to save budget state: %w", err)
	}

	r.logger.Debug("budget state saved",
		zap.String("ledger_id", r.ledgerID),
		zap.Float64("total_cost", state.TotalCost))
	return nil
}
