package usecase_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/iho/ledgercore/internal/adapter/repository/memory"
	"github.com/iho/ledgercore/internal/domain"
	"github.com/iho/ledgercore/internal/usecase"
	"github.com/iho/ledgercore/internal/usecase/mocks"
)

func newReconciliation(store *memory.Store) *usecase.ReconciliationUseCase {
	return usecase.NewReconciliationUseCase(
		store,
		store.Accounts(),
		store.Transactions(),
		store.Ledger(),
		store.Outbox(),
		store.Audit(),
		&seqIDs{},
		zerolog.Nop(),
	)
}

func TestReconcileAccount(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	h.store.Seed(&domain.Account{ID: "treasury", Currency: "INR", Status: domain.AccountStatusActive, AllowNegativeBalance: true})
	h.seed("acc-1", "INR", "0", domain.AccountStatusActive)
	h.seed("drifted", "INR", "75", domain.AccountStatusActive)

	_, err := h.uc.Transfer(ctx, input("fund", "treasury", "acc-1", "150"))
	require.NoError(t, err)

	rec := newReconciliation(h.store)

	result, err := rec.ReconcileAccount(ctx, "acc-1")
	require.NoError(t, err)
	assert.True(t, result.IsReconciled)
	assert.True(t, result.CalculatedBalance.Equal(decimal.NewFromInt(150)))

	result, err = rec.ReconcileAccount(ctx, "drifted")
	require.NoError(t, err)
	assert.False(t, result.IsReconciled)
	assert.True(t, result.Difference.Equal(decimal.NewFromInt(75)))

	_, err = rec.ReconcileAccount(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrAccountNotFound)
}

func TestGenerateReconciliationReport(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	h.store.Seed(&domain.Account{ID: "treasury", Currency: "INR", Status: domain.AccountStatusActive, AllowNegativeBalance: true})
	h.seed("acc-1", "INR", "0", domain.AccountStatusActive)

	_, err := h.uc.Transfer(ctx, input("fund", "treasury", "acc-1", "10"))
	require.NoError(t, err)

	rec := newReconciliation(h.store)

	report, err := rec.GenerateReconciliationReport(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, report.TotalAccounts)
	assert.Equal(t, 2, report.ReconciledAccounts)
	assert.Empty(t, report.Discrepancies)
	assert.True(t, report.LedgerConsistent)

	h.seed("drifted", "INR", "1", domain.AccountStatusActive)

	report, err = rec.GenerateReconciliationReport(ctx)
	require.NoError(t, err)
	assert.Len(t, report.Discrepancies, 1)
	assert.False(t, report.LedgerConsistent)
}

func TestCheckLedgerConsistency(t *testing.T) {
	tests := []struct {
		name         string
		totalBalance decimal.Decimal
		totalEntries decimal.Decimal
		repoErr      error
		wantErr      error
	}{
		{name: "balanced", totalBalance: decimal.Zero, totalEntries: decimal.Zero},
		{name: "unbalanced", totalBalance: decimal.NewFromInt(3), totalEntries: decimal.Zero, wantErr: usecase.ErrInconsistentLedger},
		{name: "repo error", repoErr: errors.New("timeout"), wantErr: errors.New("timeout")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			ledgerRepo := mocks.NewMockLedgerRepository(ctrl)
			ledgerRepo.EXPECT().CheckConsistency(gomock.Any()).Return(tt.totalBalance, tt.totalEntries, tt.repoErr)

			rec := usecase.NewReconciliationUseCase(nil, nil, nil, ledgerRepo, nil, nil, nil, zerolog.Nop())
			err := rec.CheckLedgerConsistency(context.Background())

			switch {
			case tt.wantErr == nil:
				assert.NoError(t, err)
			case errors.Is(tt.wantErr, usecase.ErrInconsistentLedger):
				assert.ErrorIs(t, err, usecase.ErrInconsistentLedger)
			default:
				assert.EqualError(t, err, tt.wantErr.Error())
			}
		})
	}
}

func TestExpireStalePending(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	txRepo := store.Transactions()

	old := time.Now().UTC().Add(-time.Hour)
	fresh := time.Now().UTC()

	tx, err := store.Begin(ctx)
	require.NoError(t, err)
	require.NoError(t, txRepo.Create(ctx, tx, domain.NewPendingTransaction("stale", "k-stale", "a", "b", decimal.NewFromInt(1), "USD", nil, old)))
	require.NoError(t, txRepo.Create(ctx, tx, domain.NewPendingTransaction("fresh", "k-fresh", "a", "b", decimal.NewFromInt(1), "USD", nil, fresh)))
	require.NoError(t, tx.Commit(ctx))

	rec := newReconciliation(store)

	expired, err := rec.ExpireStalePending(ctx, 5*time.Minute, 100)
	require.NoError(t, err)
	assert.Equal(t, 1, expired)

	stale, err := txRepo.GetByID(ctx, "stale")
	require.NoError(t, err)
	assert.Equal(t, domain.TransactionStatusFailed, stale.Status)
	assert.Equal(t, "stale_pending", stale.FailureReason)

	pending, err := txRepo.GetByID(ctx, "fresh")
	require.NoError(t, err)
	assert.Equal(t, domain.TransactionStatusPending, pending.Status)

	events, err := store.Outbox().GetByAggregate(ctx, domain.AggregateTypeTransaction, "stale", 10, 0)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, domain.EventTypeTransactionFailed, events[0].EventType)

	logs, err := store.Audit().GetByResourceID(ctx, domain.AggregateTypeTransaction, "stale")
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, domain.AuditActionTransactionExpire, logs[0].Action)

	again, err := rec.ExpireStalePending(ctx, 5*time.Minute, 100)
	require.NoError(t, err)
	assert.Zero(t, again)
}

type countingReconciliationObserver struct {
	expired      atomic.Int64
	inconsistent atomic.Int64
}

func (o *countingReconciliationObserver) ObserveExpired(n int)  { o.expired.Add(int64(n)) }
func (o *countingReconciliationObserver) ObserveInconsistency() { o.inconsistent.Add(1) }

func TestReconciliationRun(t *testing.T) {
	store := memory.NewStore()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	tx, err := store.Begin(ctx)
	require.NoError(t, err)
	old := time.Now().UTC().Add(-time.Hour)
	require.NoError(t, store.Transactions().Create(ctx, tx, domain.NewPendingTransaction("stale", "k-stale", "a", "b", decimal.NewFromInt(1), "USD", nil, old)))
	require.NoError(t, tx.Commit(ctx))

	store.Seed(&domain.Account{ID: "drifted", Currency: "USD", Balance: decimal.NewFromInt(5), Status: domain.AccountStatusActive})

	observer := &countingReconciliationObserver{}
	rec := newReconciliation(store).WithObserver(observer)

	done := make(chan struct{})
	go func() {
		rec.Run(ctx, 5*time.Millisecond, time.Minute)
		close(done)
	}()

	require.Eventually(t, func() bool {
		return observer.expired.Load() == 1 && observer.inconsistent.Load() > 0
	}, time.Second, 5*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not stop after cancellation")
	}

	stale, err := store.Transactions().GetByID(context.Background(), "stale")
	require.NoError(t, err)
	assert.Equal(t, domain.TransactionStatusFailed, stale.Status)
}
