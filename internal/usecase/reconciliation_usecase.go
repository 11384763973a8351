package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/iho/ledgercore/internal/domain"
)

const reconcilePageSize = 500

// ReconciliationUseCase handles balance reconciliation operations
type ReconciliationUseCase struct {
	txManager   TxManager
	accountRepo AccountRepository
	txRepo      TransactionRepository
	ledgerRepo  LedgerRepository
	outboxRepo  OutboxRepository
	auditRepo   AuditRepository
	idGen       IDGenerator
	logger      zerolog.Logger
	observer    ReconciliationObserver
}

// ReconciliationObserver receives sweeper and consistency outcomes for
// metrics.
type ReconciliationObserver interface {
	ObserveExpired(n int)
	ObserveInconsistency()
}

type nopReconciliationObserver struct{}

func (nopReconciliationObserver) ObserveExpired(int)    {}
func (nopReconciliationObserver) ObserveInconsistency() {}

// NewReconciliationUseCase creates a new reconciliation use case.
// outboxRepo and auditRepo may be nil.
func NewReconciliationUseCase(
	txManager TxManager,
	accountRepo AccountRepository,
	txRepo TransactionRepository,
	ledgerRepo LedgerRepository,
	outboxRepo OutboxRepository,
	auditRepo AuditRepository,
	idGen IDGenerator,
	logger zerolog.Logger,
) *ReconciliationUseCase {
	return &ReconciliationUseCase{
		txManager:   txManager,
		accountRepo: accountRepo,
		txRepo:      txRepo,
		ledgerRepo:  ledgerRepo,
		outboxRepo:  outboxRepo,
		auditRepo:   auditRepo,
		idGen:       idGen,
		logger:      logger,
		observer:    nopReconciliationObserver{},
	}
}

// WithObserver sets the observer used by Run.
func (uc *ReconciliationUseCase) WithObserver(o ReconciliationObserver) *ReconciliationUseCase {
	if o != nil {
		uc.observer = o
	}
	return uc
}

// ReconciliationResult represents the result of a reconciliation check
type ReconciliationResult struct {
	AccountID         string
	RecordedBalance   decimal.Decimal
	CalculatedBalance decimal.Decimal
	Difference        decimal.Decimal
	IsReconciled      bool
	LastChecked       time.Time
}

// ReconcileAccount compares the stored balance with the sum of the account's
// signed ledger entries.
func (uc *ReconciliationUseCase) ReconcileAccount(ctx context.Context, accountID string) (*ReconciliationResult, error) {
	account, err := uc.accountRepo.GetByID(ctx, accountID)
	if err != nil {
		return nil, err
	}

	calculated, err := uc.ledgerRepo.SumEntriesByAccount(ctx, accountID)
	if err != nil {
		return nil, err
	}

	diff := account.Balance.Sub(calculated)

	return &ReconciliationResult{
		AccountID:         accountID,
		RecordedBalance:   account.Balance,
		CalculatedBalance: calculated,
		Difference:        diff,
		IsReconciled:      diff.IsZero(),
		LastChecked:       time.Now().UTC(),
	}, nil
}

// ReconcileAllAccounts reconciles all accounts in the system
func (uc *ReconciliationUseCase) ReconcileAllAccounts(ctx context.Context) ([]*ReconciliationResult, error) {
	var results []*ReconciliationResult

	for offset := 0; ; offset += reconcilePageSize {
		accounts, err := uc.accountRepo.List(ctx, reconcilePageSize, offset)
		if err != nil {
			return nil, err
		}

		for _, account := range accounts {
			result, err := uc.ReconcileAccount(ctx, account.ID)
			if err != nil {
				return nil, fmt.Errorf("failed to reconcile account %s: %w", account.ID, err)
			}
			results = append(results, result)
		}

		if len(accounts) < reconcilePageSize {
			return results, nil
		}
	}
}

// CheckLedgerConsistency verifies double-entry bookkeeping consistency
func (uc *ReconciliationUseCase) CheckLedgerConsistency(ctx context.Context) error {
	totalBalance, totalEntries, err := uc.ledgerRepo.CheckConsistency(ctx)
	if err != nil {
		return err
	}

	if !totalBalance.IsZero() || !totalEntries.IsZero() {
		return fmt.Errorf(
			"%w: balances=%s entries=%s",
			ErrInconsistentLedger,
			totalBalance.String(),
			totalEntries.String(),
		)
	}

	return nil
}

// ReconciliationReport represents a full reconciliation report
type ReconciliationReport struct {
	TotalAccounts      int
	ReconciledAccounts int
	Discrepancies      []*ReconciliationResult
	LedgerConsistent   bool
	CheckedAt          time.Time
}

// GenerateReconciliationReport generates a comprehensive reconciliation report
func (uc *ReconciliationUseCase) GenerateReconciliationReport(ctx context.Context) (*ReconciliationReport, error) {
	results, err := uc.ReconcileAllAccounts(ctx)
	if err != nil {
		return nil, err
	}

	ledgerErr := uc.CheckLedgerConsistency(ctx)
	if ledgerErr != nil && !errors.Is(ledgerErr, ErrInconsistentLedger) {
		return nil, ledgerErr
	}

	report := &ReconciliationReport{
		TotalAccounts:    len(results),
		Discrepancies:    make([]*ReconciliationResult, 0),
		LedgerConsistent: ledgerErr == nil,
		CheckedAt:        time.Now().UTC(),
	}

	for _, result := range results {
		if result.IsReconciled {
			report.ReconciledAccounts++
		} else {
			report.Discrepancies = append(report.Discrepancies, result)
		}
	}

	return report, nil
}

// ExpireStalePending drives PENDING transactions created before now-olderThan
// to FAILED. Rows that settled in the meantime are skipped.
func (uc *ReconciliationUseCase) ExpireStalePending(ctx context.Context, olderThan time.Duration, limit int) (int, error) {
	before := time.Now().UTC().Add(-olderThan)

	stale, err := uc.txRepo.ListPendingBefore(ctx, before, limit)
	if err != nil {
		return 0, err
	}

	expired := 0
	for _, txn := range stale {
		err := uc.expire(ctx, txn)
		switch {
		case err == nil:
			expired++
		case errors.Is(err, domain.ErrInvalidStatusTransition):
			continue
		default:
			return expired, fmt.Errorf("expire transaction %s: %w", txn.ID, err)
		}
	}

	return expired, nil
}

func (uc *ReconciliationUseCase) expire(ctx context.Context, txn *domain.Transaction) error {
	tx, err := uc.txManager.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(context.WithoutCancel(ctx)) }()

	now := time.Now().UTC()
	if err := txn.TransitionTo(domain.TransactionStatusFailed, reasonStalePending, now); err != nil {
		return err
	}

	if err := uc.txRepo.UpdateStatus(ctx, tx, txn.ID, domain.TransactionStatusPending, txn.Status, txn.FailureReason, now); err != nil {
		return err
	}

	state := domain.MarshalState(domain.NewTransactionEvent(txn))

	if uc.outboxRepo != nil {
		event := &domain.OutboxEvent{
			ID:            uc.idGen.Generate(),
			AggregateID:   txn.ID,
			AggregateType: domain.AggregateTypeTransaction,
			EventType:     domain.EventTypeTransactionFailed,
			Payload:       state,
			CreatedAt:     now,
		}
		if err := uc.outboxRepo.Create(ctx, tx, event); err != nil {
			return err
		}
	}

	if uc.auditRepo != nil {
		log := &domain.AuditLog{
			ID:           uc.idGen.Generate(),
			Actor:        defaultActor,
			Action:       domain.AuditActionTransactionExpire,
			ResourceType: domain.AggregateTypeTransaction,
			ResourceID:   txn.ID,
			BeforeState:  domain.JSON{"status": string(domain.TransactionStatusPending)},
			AfterState:   state,
			Status:       domain.AuditStatusFailure,
			ErrorMessage: reasonStalePending,
			CreatedAt:    now,
		}
		if err := uc.auditRepo.CreateTx(ctx, tx, log); err != nil {
			return err
		}
	}

	return tx.Commit(ctx)
}

// Run sweeps stale PENDING transactions and checks ledger consistency every
// interval until ctx is cancelled.
func (uc *ReconciliationUseCase) Run(ctx context.Context, interval, staleAfter time.Duration) {
	if interval <= 0 {
		return
	}
	if staleAfter <= 0 {
		staleAfter = DefaultStalePendingAfter
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			uc.runOnce(ctx, staleAfter)
		}
	}
}

func (uc *ReconciliationUseCase) runOnce(ctx context.Context, staleAfter time.Duration) {
	expired, err := uc.ExpireStalePending(ctx, staleAfter, reconcilePageSize)
	if err != nil {
		uc.logger.Error().Err(err).Msg("failed to expire stale pending transactions")
	}
	if expired > 0 {
		uc.observer.ObserveExpired(expired)
		uc.logger.Warn().Int("count", expired).Msg("expired stale pending transactions")
	}

	if err := uc.CheckLedgerConsistency(ctx); err != nil {
		if errors.Is(err, ErrInconsistentLedger) {
			uc.observer.ObserveInconsistency()
		}
		uc.logger.Error().Err(err).Msg("ledger consistency check failed")
	}
}
