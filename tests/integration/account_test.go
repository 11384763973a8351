package integration

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iho/ledgercore/internal/domain"
	"github.com/iho/ledgercore/tests/testutil"
)

func TestAccountLifecycle(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	ctx := context.Background()
	testDB := testutil.NewTestDB(t)
	testDB.TruncateAll(ctx)
	stack := testDB.NewStack()

	account := stack.CreateAccount(ctx, "eur", false)
	assert.Equal(t, "EUR", account.Currency)
	assert.Equal(t, domain.AccountStatusActive, account.Status)
	assert.True(t, account.Balance.IsZero())

	stack.Fund(ctx, account, decimal.NewFromInt(5))

	_, err := stack.AccountUC.SetAccountStatus(ctx, account.ID, domain.AccountStatusClosed)
	require.ErrorIs(t, err, domain.ErrAccountBalanceNotZero)

	frozen, err := stack.AccountUC.SetAccountStatus(ctx, account.ID, domain.AccountStatusFrozen)
	require.NoError(t, err)
	assert.Equal(t, domain.AccountStatusFrozen, frozen.Status)

	empty := stack.CreateAccount(ctx, "EUR", false)
	closed, err := stack.AccountUC.SetAccountStatus(ctx, empty.ID, domain.AccountStatusClosed)
	require.NoError(t, err)
	assert.Equal(t, domain.AccountStatusClosed, closed.Status)

	// Closed accounts are kept.
	got, err := stack.Accounts.GetByID(ctx, empty.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.AccountStatusClosed, got.Status)

	logs, err := stack.Audit.GetByResourceID(ctx, domain.AggregateTypeAccount, empty.ID)
	require.NoError(t, err)
	assert.Len(t, logs, 2)
}
