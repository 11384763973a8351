package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/iho/ledgercore/internal/domain"
	"github.com/iho/ledgercore/internal/infrastructure/postgres/generated"
	"github.com/iho/ledgercore/internal/usecase"
)

// TransactionRepository implements usecase.TransactionRepository.
type TransactionRepository struct {
	queries *generated.Queries
}

// NewTransactionRepository creates a new TransactionRepository.
func NewTransactionRepository(db generated.DBTX) *TransactionRepository {
	return &TransactionRepository{queries: generated.New(db)}
}

// Create inserts txn. A duplicate idempotency key maps to
// domain.ErrPersistenceConflict; the insert blocks while a concurrent
// transaction holds the same key uncommitted.
func (r *TransactionRepository) Create(ctx context.Context, tx usecase.Tx, txn *domain.Transaction) error {
	queries, err := txQueries(tx)
	if err != nil {
		return err
	}

	metadata, err := marshalJSON(txn.Metadata)
	if err != nil {
		return fmt.Errorf("marshal metadata: %w", err)
	}

	err = queries.CreateTransaction(ctx, generated.CreateTransactionParams{
		ID:                txn.ID,
		IdempotencyKey:    txn.IdempotencyKey,
		SenderAccountID:   txn.SenderAccountID,
		ReceiverAccountID: txn.ReceiverAccountID,
		Amount:            decimalToNumeric(txn.Amount),
		Currency:          txn.Currency,
		Status:            string(txn.Status),
		FailureReason:     textOrNull(txn.FailureReason),
		Metadata:          metadata,
		CreatedAt:         timeToPgTimestamptz(txn.CreatedAt),
		UpdatedAt:         timeToPgTimestamptz(txn.UpdatedAt),
	})

	return mapError(err)
}

// UpdateStatus moves the row from -> to. It fails with
// domain.ErrInvalidStatusTransition when the stored status is not from.
func (r *TransactionRepository) UpdateStatus(ctx context.Context, tx usecase.Tx, id string, from, to domain.TransactionStatus, reason string, updatedAt time.Time) error {
	queries, err := txQueries(tx)
	if err != nil {
		return err
	}

	n, err := queries.UpdateTransactionStatus(ctx, generated.UpdateTransactionStatusParams{
		ToStatus:      string(to),
		FailureReason: textOrNull(reason),
		UpdatedAt:     timeToPgTimestamptz(updatedAt),
		ID:            id,
		FromStatus:    string(from),
	})
	if err != nil {
		return mapError(err)
	}
	if n == 0 {
		return fmt.Errorf("%w: transaction %s is not %s", domain.ErrInvalidStatusTransition, id, from)
	}

	return nil
}

// GetByID retrieves a transaction by ID.
func (r *TransactionRepository) GetByID(ctx context.Context, id string) (*domain.Transaction, error) {
	return scanTransaction(r.queries.GetTransactionByID(ctx, id))
}

// GetByIdempotencyKey retrieves a transaction by idempotency key.
func (r *TransactionRepository) GetByIdempotencyKey(ctx context.Context, key string) (*domain.Transaction, error) {
	return scanTransaction(r.queries.GetTransactionByIdempotencyKey(ctx, key))
}

// GetByIdempotencyKeyTx retrieves a transaction by idempotency key within tx.
func (r *TransactionRepository) GetByIdempotencyKeyTx(ctx context.Context, tx usecase.Tx, key string) (*domain.Transaction, error) {
	queries, err := txQueries(tx)
	if err != nil {
		return nil, err
	}
	return scanTransaction(queries.GetTransactionByIdempotencyKey(ctx, key))
}

// ListByAccount lists transactions where the account is sender or receiver,
// newest first.
func (r *TransactionRepository) ListByAccount(ctx context.Context, accountID string, limit, offset int) ([]*domain.Transaction, error) {
	rows, err := r.queries.ListTransactionsByAccount(ctx, generated.ListTransactionsByAccountParams{
		SenderAccountID: accountID,
		Limit:           int32(limit),
		Offset:          int32(offset),
	})
	if err != nil {
		return nil, mapError(err)
	}

	return rowsToTransactions(rows), nil
}

// ListPendingBefore lists PENDING transactions created before the cutoff,
// oldest first.
func (r *TransactionRepository) ListPendingBefore(ctx context.Context, before time.Time, limit int) ([]*domain.Transaction, error) {
	rows, err := r.queries.ListPendingTransactionsBefore(ctx, generated.ListPendingTransactionsBeforeParams{
		CreatedAt: timeToPgTimestamptz(before),
		Limit:     int32(limit),
	})
	if err != nil {
		return nil, mapError(err)
	}

	return rowsToTransactions(rows), nil
}

func scanTransaction(row generated.Transaction, err error) (*domain.Transaction, error) {
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrTransactionNotFound
		}
		return nil, mapError(err)
	}
	return rowToTransaction(row), nil
}

func rowsToTransactions(rows []generated.Transaction) []*domain.Transaction {
	txns := make([]*domain.Transaction, 0, len(rows))
	for _, row := range rows {
		txns = append(txns, rowToTransaction(row))
	}
	return txns
}

func rowToTransaction(row generated.Transaction) *domain.Transaction {
	return &domain.Transaction{
		ID:                row.ID,
		IdempotencyKey:    row.IdempotencyKey,
		SenderAccountID:   row.SenderAccountID,
		ReceiverAccountID: row.ReceiverAccountID,
		Amount:            numericToDecimal(row.Amount),
		Currency:          row.Currency,
		Status:            domain.TransactionStatus(row.Status),
		FailureReason:     row.FailureReason.String,
		Metadata:          unmarshalJSON(row.Metadata),
		CreatedAt:         row.CreatedAt.Time,
		UpdatedAt:         row.UpdatedAt.Time,
	}
}
