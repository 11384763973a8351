package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/iho/ledgercore/internal/domain"
	"github.com/iho/ledgercore/internal/infrastructure/postgres/generated"
	"github.com/iho/ledgercore/internal/usecase"
)

// EntryRepository implements usecase.EntryRepository. The table is
// append-only; a trigger rejects UPDATE and DELETE.
type EntryRepository struct {
	queries *generated.Queries
}

// NewEntryRepository creates a new EntryRepository.
func NewEntryRepository(db generated.DBTX) *EntryRepository {
	return &EntryRepository{queries: generated.New(db)}
}

// Append inserts entry within tx.
func (r *EntryRepository) Append(ctx context.Context, tx usecase.Tx, entry *domain.LedgerEntry) error {
	queries, err := txQueries(tx)
	if err != nil {
		return err
	}

	err = queries.CreateLedgerEntry(ctx, generated.CreateLedgerEntryParams{
		ID:            entry.ID,
		AccountID:     entry.AccountID,
		TransactionID: entry.TransactionID,
		EntryType:     string(entry.EntryType),
		Amount:        decimalToNumeric(entry.Amount),
		BalanceAfter:  decimalToNumeric(entry.BalanceAfter),
		CreatedAt:     timeToPgTimestamptz(entry.CreatedAt),
	})

	return mapError(err)
}

// GetByTransaction retrieves the entries of a transaction.
func (r *EntryRepository) GetByTransaction(ctx context.Context, transactionID string) ([]*domain.LedgerEntry, error) {
	rows, err := r.queries.GetEntriesByTransaction(ctx, transactionID)
	if err != nil {
		return nil, mapError(err)
	}

	return rowsToEntries(rows), nil
}

// GetByAccount retrieves an account's entries in insertion order.
func (r *EntryRepository) GetByAccount(ctx context.Context, accountID string, limit, offset int) ([]*domain.LedgerEntry, error) {
	rows, err := r.queries.GetEntriesByAccount(ctx, generated.GetEntriesByAccountParams{
		AccountID: accountID,
		Limit:     int32(limit),
		Offset:    int32(offset),
	})
	if err != nil {
		return nil, mapError(err)
	}

	return rowsToEntries(rows), nil
}

// GetBalanceAtTime returns the balance after the last entry created at or
// before at, or zero when there is none.
func (r *EntryRepository) GetBalanceAtTime(ctx context.Context, accountID string, at time.Time) (decimal.Decimal, error) {
	balance, err := r.queries.GetBalanceAtTime(ctx, generated.GetBalanceAtTimeParams{
		AccountID: accountID,
		CreatedAt: timeToPgTimestamptz(at),
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return decimal.Zero, nil
		}
		return decimal.Zero, mapError(err)
	}

	return numericToDecimal(balance), nil
}

func rowsToEntries(rows []generated.LedgerEntry) []*domain.LedgerEntry {
	entries := make([]*domain.LedgerEntry, 0, len(rows))
	for _, row := range rows {
		entries = append(entries, &domain.LedgerEntry{
			ID:            row.ID,
			AccountID:     row.AccountID,
			TransactionID: row.TransactionID,
			EntryType:     domain.EntryType(row.EntryType),
			Amount:        numericToDecimal(row.Amount),
			BalanceAfter:  numericToDecimal(row.BalanceAfter),
			CreatedAt:     row.CreatedAt.Time,
		})
	}
	return entries
}
