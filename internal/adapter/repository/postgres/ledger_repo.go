package postgres

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/iho/ledgercore/internal/infrastructure/postgres/generated"
)

// LedgerRepository implements usecase.LedgerRepository.
type LedgerRepository struct {
	queries *generated.Queries
}

// NewLedgerRepository creates a new LedgerRepository.
func NewLedgerRepository(db generated.DBTX) *LedgerRepository {
	return &LedgerRepository{queries: generated.New(db)}
}

// CheckConsistency returns the sum of all account balances and the signed
// sum of all entries. Both are zero in a consistent closed ledger.
func (r *LedgerRepository) CheckConsistency(ctx context.Context) (decimal.Decimal, decimal.Decimal, error) {
	row, err := r.queries.CheckLedgerConsistency(ctx)
	if err != nil {
		return decimal.Zero, decimal.Zero, mapError(err)
	}

	return numericToDecimal(row.TotalAccountBalance), numericToDecimal(row.TotalEntryAmount), nil
}

// SumEntriesByAccount returns the signed sum of an account's entries.
func (r *LedgerRepository) SumEntriesByAccount(ctx context.Context, accountID string) (decimal.Decimal, error) {
	total, err := r.queries.SumEntriesByAccount(ctx, accountID)
	if err != nil {
		return decimal.Zero, mapError(err)
	}

	return numericToDecimal(total), nil
}
