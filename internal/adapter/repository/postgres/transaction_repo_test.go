package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iho/ledgercore/internal/domain"
)

func transactionColumns() []string {
	return []string{
		"id", "idempotency_key", "sender_account_id", "receiver_account_id", "amount", "currency",
		"status", "failure_reason", "metadata", "created_at", "updated_at",
	}
}

func transactionRow(rows *pgxmock.Rows, txn *domain.Transaction, metadata []byte) *pgxmock.Rows {
	return rows.AddRow(
		txn.ID, txn.IdempotencyKey, txn.SenderAccountID, txn.ReceiverAccountID,
		decimalToNumeric(txn.Amount), txn.Currency, string(txn.Status),
		pgtype.Text{String: txn.FailureReason, Valid: txn.FailureReason != ""},
		metadata, timeToPgTimestamptz(txn.CreatedAt), timeToPgTimestamptz(txn.UpdatedAt),
	)
}

func newTestTransaction() *domain.Transaction {
	now := time.Now().UTC().Truncate(time.Microsecond)
	return domain.NewPendingTransaction("txn-1", "abc-123", "a", "b", decimal.NewFromInt(500), "INR", map[string]any{"note": "rent"}, now)
}

func TestTransactionRepo_Create(t *testing.T) {
	mock := newMockPool(t)
	repo := NewTransactionRepository(mock)
	tx := beginMockTx(t, mock)
	txn := newTestTransaction()

	mock.ExpectExec("INSERT INTO transactions").
		WithArgs(txn.ID, txn.IdempotencyKey, "a", "b", pgxmock.AnyArg(), "INR", "PENDING",
			pgtype.Text{}, []byte(`{"note":"rent"}`), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, repo.Create(context.Background(), tx, txn))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTransactionRepo_CreateDuplicateKey(t *testing.T) {
	mock := newMockPool(t)
	repo := NewTransactionRepository(mock)
	tx := beginMockTx(t, mock)

	mock.ExpectExec("INSERT INTO transactions").
		WithArgs(anyArgs(11)...).
		WillReturnError(&pgconn.PgError{Code: pgErrUniqueViolation, ConstraintName: "transactions_idempotency_key_key"})

	err := repo.Create(context.Background(), tx, newTestTransaction())
	assert.ErrorIs(t, err, domain.ErrPersistenceConflict)
}

func TestTransactionRepo_UpdateStatus(t *testing.T) {
	tests := []struct {
		name     string
		affected int64
		wantErr  error
	}{
		{"from matches", 1, nil},
		{"already settled", 0, domain.ErrInvalidStatusTransition},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock := newMockPool(t)
			repo := NewTransactionRepository(mock)
			tx := beginMockTx(t, mock)

			mock.ExpectExec("UPDATE transactions").
				WithArgs("FAILED", pgtype.Text{String: "insufficient_funds", Valid: true}, pgxmock.AnyArg(), "txn-1", "PENDING").
				WillReturnResult(pgxmock.NewResult("UPDATE", tt.affected))

			err := repo.UpdateStatus(context.Background(), tx, "txn-1",
				domain.TransactionStatusPending, domain.TransactionStatusFailed, "insufficient_funds", time.Now())
			if tt.wantErr == nil {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, tt.wantErr)
			}
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestTransactionRepo_GetByIdempotencyKey(t *testing.T) {
	mock := newMockPool(t)
	repo := NewTransactionRepository(mock)

	txn := newTestTransaction()
	txn.Status = domain.TransactionStatusFailed
	txn.FailureReason = "insufficient_funds"

	mock.ExpectQuery("SELECT .+ FROM transactions WHERE idempotency_key").
		WithArgs("abc-123").
		WillReturnRows(transactionRow(pgxmock.NewRows(transactionColumns()), txn, []byte(`{"note":"rent"}`)))

	got, err := repo.GetByIdempotencyKey(context.Background(), "abc-123")
	require.NoError(t, err)
	assert.Equal(t, "txn-1", got.ID)
	assert.Equal(t, domain.TransactionStatusFailed, got.Status)
	assert.Equal(t, "insufficient_funds", got.FailureReason)
	assert.Equal(t, "rent", got.Metadata["note"])
	assert.True(t, got.Amount.Equal(decimal.NewFromInt(500)))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTransactionRepo_GetByIdempotencyKeyTxNotFound(t *testing.T) {
	mock := newMockPool(t)
	repo := NewTransactionRepository(mock)
	tx := beginMockTx(t, mock)

	mock.ExpectQuery("SELECT .+ FROM transactions WHERE idempotency_key").
		WithArgs("nope").
		WillReturnError(pgx.ErrNoRows)

	_, err := repo.GetByIdempotencyKeyTx(context.Background(), tx, "nope")
	assert.ErrorIs(t, err, domain.ErrTransactionNotFound)
}

func TestTransactionRepo_ListPendingBefore(t *testing.T) {
	mock := newMockPool(t)
	repo := NewTransactionRepository(mock)

	rows := pgxmock.NewRows(transactionColumns())
	transactionRow(rows, newTestTransaction(), nil)

	mock.ExpectQuery("WHERE status = 'PENDING' AND created_at <").
		WithArgs(pgxmock.AnyArg(), int32(50)).
		WillReturnRows(rows)

	got, err := repo.ListPendingBefore(context.Background(), time.Now(), 50)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Nil(t, got[0].Metadata)
	assert.Equal(t, domain.TransactionStatusPending, got[0].Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTransactionRepo_ListByAccount(t *testing.T) {
	mock := newMockPool(t)
	repo := NewTransactionRepository(mock)

	rows := pgxmock.NewRows(transactionColumns())
	transactionRow(rows, newTestTransaction(), nil)

	mock.ExpectQuery("WHERE sender_account_id = \\$1 OR receiver_account_id = \\$1").
		WithArgs("a", int32(20), int32(0)).
		WillReturnRows(rows)

	got, err := repo.ListByAccount(context.Background(), "a", 20, 0)
	require.NoError(t, err)
	assert.Len(t, got, 1)
	assert.NoError(t, mock.ExpectationsWereMet())
}
