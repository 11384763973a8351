package usecase

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrInconsistentLedger is returned when the ledger is not balanced.
	ErrInconsistentLedger = errors.New("ledger is inconsistent: debits do not equal credits")
)

// LedgerUseCase handles ledger-wide operations.
type LedgerUseCase struct {
	ledgerRepo LedgerRepository
}

// NewLedgerUseCase creates a new LedgerUseCase.
func NewLedgerUseCase(ledgerRepo LedgerRepository) *LedgerUseCase {
	return &LedgerUseCase{
		ledgerRepo: ledgerRepo,
	}
}

// CheckConsistency verifies that money was neither created nor destroyed:
// account balances and signed entries must both sum to zero.
func (uc *LedgerUseCase) CheckConsistency(ctx context.Context) (bool, error) {
	totalBalance, totalEntries, err := uc.ledgerRepo.CheckConsistency(ctx)
	if err != nil {
		return false, err
	}

	if !totalBalance.IsZero() {
		return false, fmt.Errorf("%w: total balance %s", ErrInconsistentLedger, totalBalance)
	}

	if !totalEntries.IsZero() {
		return false, fmt.Errorf("%w: total entries %s", ErrInconsistentLedger, totalEntries)
	}

	return true, nil
}
