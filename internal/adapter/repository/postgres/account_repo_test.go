package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iho/ledgercore/internal/domain"
)

func accountColumns() []string {
	return []string{"id", "currency", "balance", "status", "version", "allow_negative_balance", "created_at", "updated_at"}
}

func accountRow(rows *pgxmock.Rows, a *domain.Account) *pgxmock.Rows {
	return rows.AddRow(
		a.ID, a.Currency, decimalToNumeric(a.Balance), string(a.Status), a.Version,
		a.AllowNegativeBalance, timeToPgTimestamptz(a.CreatedAt), timeToPgTimestamptz(a.UpdatedAt),
	)
}

func newTestAccount(id string, balance string) *domain.Account {
	now := time.Now().UTC().Truncate(time.Microsecond)
	return &domain.Account{
		ID:        id,
		Currency:  "USD",
		Balance:   decimal.RequireFromString(balance),
		Status:    domain.AccountStatusActive,
		Version:   3,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func TestAccountRepo_Create(t *testing.T) {
	mock := newMockPool(t)
	repo := NewAccountRepository(mock)
	a := newTestAccount("acc-1", "0")

	mock.ExpectExec("INSERT INTO accounts").
		WithArgs(a.ID, a.Currency, pgxmock.AnyArg(), "ACTIVE", a.Version, false, pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, repo.Create(context.Background(), a))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAccountRepo_CreateDuplicate(t *testing.T) {
	mock := newMockPool(t)
	repo := NewAccountRepository(mock)

	mock.ExpectExec("INSERT INTO accounts").
		WithArgs(anyArgs(8)...).
		WillReturnError(&pgconn.PgError{Code: pgErrUniqueViolation})

	err := repo.Create(context.Background(), newTestAccount("acc-1", "0"))
	assert.ErrorIs(t, err, domain.ErrPersistenceConflict)
}

func TestAccountRepo_GetByID(t *testing.T) {
	mock := newMockPool(t)
	repo := NewAccountRepository(mock)
	a := newTestAccount("acc-1", "125.50")

	mock.ExpectQuery("SELECT .+ FROM accounts WHERE id").
		WithArgs(a.ID).
		WillReturnRows(accountRow(pgxmock.NewRows(accountColumns()), a))

	got, err := repo.GetByID(context.Background(), a.ID)
	require.NoError(t, err)
	assert.Equal(t, a.ID, got.ID)
	assert.True(t, got.Balance.Equal(a.Balance), "balance %s", got.Balance)
	assert.Equal(t, domain.AccountStatusActive, got.Status)
	assert.Equal(t, int64(3), got.Version)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAccountRepo_GetByIDNotFound(t *testing.T) {
	mock := newMockPool(t)
	repo := NewAccountRepository(mock)

	mock.ExpectQuery("SELECT .+ FROM accounts WHERE id").
		WithArgs("missing").
		WillReturnError(pgx.ErrNoRows)

	_, err := repo.GetByID(context.Background(), "missing")
	assert.ErrorIs(t, err, domain.ErrAccountNotFound)
}

func TestAccountRepo_GetByIDsForUpdate(t *testing.T) {
	mock := newMockPool(t)
	repo := NewAccountRepository(mock)
	tx := beginMockTx(t, mock)

	a := newTestAccount("a", "10")
	b := newTestAccount("b", "20")
	rows := pgxmock.NewRows(accountColumns())
	accountRow(rows, a)
	accountRow(rows, b)

	mock.ExpectQuery("SELECT .+ FROM accounts\\s+WHERE id = ANY.+ORDER BY id\\s+FOR UPDATE").
		WithArgs([]string{"a", "b"}).
		WillReturnRows(rows)

	got, err := repo.GetByIDsForUpdate(context.Background(), tx, []string{"a", "b"})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "a", got[0].ID)
	assert.Equal(t, "b", got[1].ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAccountRepo_GetByIDsForUpdateLockTimeout(t *testing.T) {
	mock := newMockPool(t)
	repo := NewAccountRepository(mock)
	tx := beginMockTx(t, mock)

	mock.ExpectQuery("FOR UPDATE").
		WithArgs(pgxmock.AnyArg()).
		WillReturnError(&pgconn.PgError{Code: pgErrLockNotAvailable})

	_, err := repo.GetByIDsForUpdate(context.Background(), tx, []string{"a", "b"})
	assert.ErrorIs(t, err, domain.ErrLockTimeout)
}

func TestAccountRepo_UpdateBalance(t *testing.T) {
	tests := []struct {
		name     string
		affected int64
		wantErr  error
	}{
		{"version matches", 1, nil},
		{"stale version", 0, domain.ErrConcurrentModification},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock := newMockPool(t)
			repo := NewAccountRepository(mock)
			tx := beginMockTx(t, mock)

			mock.ExpectExec("UPDATE accounts\\s+SET balance").
				WithArgs("a", pgxmock.AnyArg(), int64(7), pgxmock.AnyArg()).
				WillReturnResult(pgxmock.NewResult("UPDATE", tt.affected))

			err := repo.UpdateBalance(context.Background(), tx, "a", decimal.NewFromInt(5), 7, time.Now())
			if tt.wantErr == nil {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, tt.wantErr)
			}
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestAccountRepo_UpdateStatusMissing(t *testing.T) {
	mock := newMockPool(t)
	repo := NewAccountRepository(mock)
	tx := beginMockTx(t, mock)

	mock.ExpectExec("UPDATE accounts SET status").
		WithArgs("gone", "FROZEN", pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err := repo.UpdateStatus(context.Background(), tx, "gone", domain.AccountStatusFrozen, time.Now())
	assert.ErrorIs(t, err, domain.ErrAccountNotFound)
}

func TestAccountRepo_List(t *testing.T) {
	mock := newMockPool(t)
	repo := NewAccountRepository(mock)

	rows := pgxmock.NewRows(accountColumns())
	accountRow(rows, newTestAccount("a", "1"))

	mock.ExpectQuery("SELECT .+ FROM accounts\\s+ORDER BY created_at").
		WithArgs(int32(10), int32(20)).
		WillReturnRows(rows)

	got, err := repo.List(context.Background(), 10, 20)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestNumericRoundTrip(t *testing.T) {
	for _, s := range []string{"0", "1", "-42.5", "1000000.000001", "0.10"} {
		d := decimal.RequireFromString(s)
		got := numericToDecimal(decimalToNumeric(d))
		assert.True(t, got.Equal(d), "%s round-tripped to %s", s, got)
	}
	assert.True(t, numericToDecimal(decimalToNumeric(decimal.Zero)).IsZero())
}
