package file

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/upb/market-intel/models"
	"github.com/upb/market-intel/repositories"
)

// BudgetRepository stores the ledger as an indented JSON document on disk
type BudgetRepository struct {
	path string
}

// NewBudgetRepository creates a repository backed by path
func NewBudgetRepository(path string) *BudgetRepository {
	return &BudgetRepository{path: path}
}

// Path returns the backing file path
func (r *BudgetRepository) Path() string {
	return r.path
}

// Load reads and decodes the ledger file
func (r *BudgetRepository) Load(ctx context.Context) (*models.BudgetState, error) {
	b, err := os.ReadFile(r.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, repositories.ErrBudgetStateNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("read budget file: %w", err)
	}

	var state models.BudgetState
	if err := json.Unmarshal(b, &state); err != nil {
		return nil, fmt.Errorf("decode budget file: %w", err)
	}
	state.Normalize()
	return &state, nil
}

// Save writes the ledger to a temp file and renames it over the target,
// so readers never observe a partial document.
func (r *BudgetRepository) Save(ctx context.Context, state *models.BudgetState) error {
	b, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("encode budget state: %w", err)
	}

	dir := filepath.Dir(r.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create budget dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".budget-*.json")
	if err != nil {
		return fmt.Errorf("create temp budget file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(b); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write budget file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close budget file: %w", err)
	}
	if err := os.Rename(tmpName, r.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replace budget file: %w", err)
	}
	return nil
}
