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

const reasonPolicyFlagged = "policy_flagged"

// TransferConfig wires the dependencies of TransferUseCase.
// OutboxRepo, AuditRepo, Resolver, Policy, Retrier and Observer are optional.
type TransferConfig struct {
	TxManager   TxManager
	AccountRepo AccountRepository
	TxRepo      TransactionRepository
	EntryRepo   EntryRepository
	OutboxRepo  OutboxRepository
	AuditRepo   AuditRepository
	IDGen       IDGenerator
	Resolver    *IdempotencyResolver
	Policy      TransferPolicy
	Retrier     Retrier
	Observer    TransferObserver
	Logger      zerolog.Logger
	Timeout     time.Duration
	Now         func() time.Time
}

// TransferUseCase moves money between two accounts exactly once per
// idempotency key.
type TransferUseCase struct {
	txManager   TxManager
	accountRepo AccountRepository
	txRepo      TransactionRepository
	entryRepo   EntryRepository
	outboxRepo  OutboxRepository
	auditRepo   AuditRepository
	idGen       IDGenerator
	resolver    *IdempotencyResolver
	locker      *AccountLocker
	policy      TransferPolicy
	retrier     Retrier
	observer    TransferObserver
	logger      zerolog.Logger
	timeout     time.Duration
	now         func() time.Time
}

// NewTransferUseCase creates a new TransferUseCase.
func NewTransferUseCase(cfg TransferConfig) *TransferUseCase {
	uc := &TransferUseCase{
		txManager:   cfg.TxManager,
		accountRepo: cfg.AccountRepo,
		txRepo:      cfg.TxRepo,
		entryRepo:   cfg.EntryRepo,
		outboxRepo:  cfg.OutboxRepo,
		auditRepo:   cfg.AuditRepo,
		idGen:       cfg.IDGen,
		resolver:    cfg.Resolver,
		locker:      NewAccountLocker(cfg.AccountRepo),
		policy:      cfg.Policy,
		retrier:     cfg.Retrier,
		observer:    cfg.Observer,
		logger:      cfg.Logger,
		timeout:     cfg.Timeout,
		now:         cfg.Now,
	}

	if uc.resolver == nil {
		uc.resolver = NewIdempotencyResolver(cfg.TxRepo, nil, 0, cfg.Logger)
	}
	if uc.policy == nil {
		uc.policy = AllowAll{}
	}
	if uc.retrier == nil {
		uc.retrier = noRetry{}
	}
	if uc.observer == nil {
		uc.observer = nopObserver{}
	}
	if uc.timeout <= 0 {
		uc.timeout = DefaultTransactionTimeout
	}
	if uc.now == nil {
		uc.now = func() time.Time { return time.Now().UTC() }
	}

	return uc
}

// TransferInput represents a transfer request.
type TransferInput struct {
	Metadata          map[string]any
	IdempotencyKey    string
	SenderAccountID   string
	ReceiverAccountID string
	Currency          string
	Amount            decimal.Decimal
}

type attemptResult struct {
	txn        *domain.Transaction
	rejection  error
	replayed   bool
	rowWritten bool
}

// Transfer executes a transfer.
//
// A repeated idempotency key returns the stored transaction unchanged with a
// nil error. A business rejection returns the FAILED transaction together with
// the rejection error. Infrastructure errors leave no trace and return a nil
// transaction; domain.IsRetryable tells whether resubmitting may succeed.
func (uc *TransferUseCase) Transfer(ctx context.Context, input TransferInput) (*domain.Transaction, error) {
	started := time.Now()
	input.Currency = domain.NormalizeCurrency(input.Currency)

	if err := validateTransferInput(input); err != nil {
		uc.observer.ObserveError("invalid_input")
		return nil, err
	}

	log := uc.loggerFor(ctx).With().Str("idempotency_key", input.IdempotencyKey).Logger()

	existing, err := uc.resolver.Resolve(ctx, input.IdempotencyKey)
	if err == nil {
		uc.observer.ObserveReplay()
		log.Debug().Str("transaction_id", existing.ID).Str("status", string(existing.Status)).Msg("idempotent replay")
		return existing, nil
	}
	if !errors.Is(err, domain.ErrTransactionNotFound) {
		uc.observer.ObserveError("storage")
		return nil, fmt.Errorf("resolve idempotency key: %w", err)
	}

	var res attemptResult
	err = uc.retrier.Retry(ctx, func() error {
		var attemptErr error
		res, attemptErr = uc.attempt(ctx, input)
		return attemptErr
	})

	if errors.Is(err, domain.ErrPersistenceConflict) {
		winner, resolveErr := uc.resolver.Resolve(ctx, input.IdempotencyKey)
		if resolveErr == nil {
			uc.observer.ObserveReplay()
			log.Debug().Str("transaction_id", winner.ID).Msg("idempotency key taken by concurrent request")
			return winner, nil
		}
	}

	if err != nil {
		switch {
		case ctx.Err() != nil && res.rowWritten:
			uc.recordCancelled(ctx, input)
		case ctx.Err() == nil && errors.Is(err, context.DeadlineExceeded) && !domain.IsRetryable(err):
			// The attempt outlived its own timeout, not the caller's.
			err = fmt.Errorf("%w: %w", domain.ErrStorageUnavailable, err)
		}

		if errors.Is(err, domain.ErrConcurrentModification) {
			log.Error().Err(err).Msg("account balance changed while locked")
		} else {
			log.Warn().Err(err).Msg("transfer attempt failed")
		}

		uc.observer.ObserveError(errorKind(err))
		return nil, err
	}

	if res.replayed {
		uc.observer.ObserveReplay()
		return res.txn, nil
	}

	uc.resolver.Remember(ctx, res.txn)
	uc.observer.ObserveTransfer(res.txn.Status, res.txn.FailureReason, time.Since(started))

	log.Info().
		Str("transaction_id", res.txn.ID).
		Str("status", string(res.txn.Status)).
		Str("failure_reason", res.txn.FailureReason).
		Msg("transfer settled")

	return res.txn, res.rejection
}

// attempt runs one atomic unit. Row locks are held from LockPair until the
// deferred rollback or the commit.
func (uc *TransferUseCase) attempt(ctx context.Context, input TransferInput) (attemptResult, error) {
	var res attemptResult

	ctx, cancel := context.WithTimeout(ctx, uc.timeout)
	defer cancel()

	tx, err := uc.txManager.Begin(ctx)
	if err != nil {
		return res, fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(context.WithoutCancel(ctx)) }()

	sender, receiver, rejection := uc.locker.LockPair(ctx, tx, input.SenderAccountID, input.ReceiverAccountID)
	if rejection != nil && !domain.IsRejection(rejection) {
		return res, rejection
	}

	// A concurrent request with the same key may have committed while we waited.
	existing, err := uc.txRepo.GetByIdempotencyKeyTx(ctx, tx, input.IdempotencyKey)
	switch {
	case err == nil:
		res.txn, res.replayed = existing, true
		return res, nil
	case !errors.Is(err, domain.ErrTransactionNotFound):
		return res, fmt.Errorf("check idempotency key: %w", err)
	}

	if rejection == nil {
		rejection = validateBalances(sender, receiver, input)
	}

	decision := PolicyAllow
	if rejection == nil {
		decision, err = uc.policy.Evaluate(ctx, PolicyInput{
			Sender:         sender,
			Receiver:       receiver,
			Amount:         input.Amount,
			Currency:       input.Currency,
			IdempotencyKey: input.IdempotencyKey,
			Metadata:       input.Metadata,
		})
		if err != nil {
			return res, fmt.Errorf("evaluate transfer policy: %w", err)
		}
		if decision == PolicyReject {
			rejection = domain.ErrTransferRejected
		}
	}

	now := uc.now()
	txn := domain.NewPendingTransaction(
		uc.idGen.Generate(),
		input.IdempotencyKey,
		input.SenderAccountID,
		input.ReceiverAccountID,
		input.Amount,
		input.Currency,
		input.Metadata,
		now,
	)

	if err := uc.txRepo.Create(ctx, tx, txn); err != nil {
		return res, fmt.Errorf("create transaction: %w", err)
	}
	res.rowWritten = true

	switch {
	case rejection != nil:
		err = uc.settle(ctx, tx, txn, domain.TransactionStatusFailed, domain.FailureReason(rejection), now)
	case decision == PolicyFlag:
		err = uc.settle(ctx, tx, txn, domain.TransactionStatusFlagged, reasonPolicyFlagged, now)
	default:
		err = uc.moveFunds(ctx, tx, txn, sender, receiver, now)
		if err == nil {
			err = uc.settle(ctx, tx, txn, domain.TransactionStatusSuccess, "", now)
		}
	}
	if err != nil {
		return res, err
	}

	if err := uc.recordSettlement(ctx, tx, txn); err != nil {
		return res, err
	}

	if err := tx.Commit(ctx); err != nil {
		return res, fmt.Errorf("commit transaction: %w", err)
	}

	res.txn = txn
	res.rejection = rejection

	return res, nil
}

func (uc *TransferUseCase) moveFunds(
	ctx context.Context,
	tx Tx,
	txn *domain.Transaction,
	sender, receiver *domain.Account,
	now time.Time,
) error {
	senderBalance := sender.ApplyDebit(txn.Amount)
	if err := uc.accountRepo.UpdateBalance(ctx, tx, sender.ID, senderBalance, sender.Version, now); err != nil {
		return fmt.Errorf("debit sender: %w", err)
	}

	receiverBalance := receiver.ApplyCredit(txn.Amount)
	if err := uc.accountRepo.UpdateBalance(ctx, tx, receiver.ID, receiverBalance, receiver.Version, now); err != nil {
		return fmt.Errorf("credit receiver: %w", err)
	}

	entries := []*domain.LedgerEntry{
		{
			ID:            uc.idGen.Generate(),
			AccountID:     sender.ID,
			TransactionID: txn.ID,
			EntryType:     domain.EntryTypeDebit,
			Amount:        txn.Amount,
			BalanceAfter:  senderBalance,
			CreatedAt:     now,
		},
		{
			ID:            uc.idGen.Generate(),
			AccountID:     receiver.ID,
			TransactionID: txn.ID,
			EntryType:     domain.EntryTypeCredit,
			Amount:        txn.Amount,
			BalanceAfter:  receiverBalance,
			CreatedAt:     now,
		},
	}

	for _, entry := range entries {
		if err := uc.entryRepo.Append(ctx, tx, entry); err != nil {
			return fmt.Errorf("append %s entry: %w", entry.EntryType, err)
		}
	}

	sender.Balance, sender.Version = senderBalance, sender.Version+1
	receiver.Balance, receiver.Version = receiverBalance, receiver.Version+1

	return nil
}

func (uc *TransferUseCase) settle(
	ctx context.Context,
	tx Tx,
	txn *domain.Transaction,
	status domain.TransactionStatus,
	reason string,
	now time.Time,
) error {
	from := txn.Status
	if err := txn.TransitionTo(status, reason, now); err != nil {
		return err
	}

	if err := uc.txRepo.UpdateStatus(ctx, tx, txn.ID, from, status, reason, now); err != nil {
		return fmt.Errorf("update transaction status: %w", err)
	}

	return nil
}

// recordSettlement writes the outbox event and audit log for a settled
// transaction inside the same atomic unit.
func (uc *TransferUseCase) recordSettlement(ctx context.Context, tx Tx, txn *domain.Transaction) error {
	state := domain.MarshalState(domain.NewTransactionEvent(txn))

	if uc.outboxRepo != nil {
		event := &domain.OutboxEvent{
			ID:            uc.idGen.Generate(),
			AggregateID:   txn.ID,
			AggregateType: domain.AggregateTypeTransaction,
			EventType:     domain.TransactionEventType(txn.Status),
			Payload:       state,
			CreatedAt:     txn.UpdatedAt,
		}
		if err := uc.outboxRepo.Create(ctx, tx, event); err != nil {
			return fmt.Errorf("create outbox event: %w", err)
		}
	}

	if uc.auditRepo != nil {
		log := &domain.AuditLog{
			ID:           uc.idGen.Generate(),
			Actor:        ActorFromContext(ctx),
			Action:       domain.AuditActionTransfer,
			ResourceType: domain.AggregateTypeTransaction,
			ResourceID:   txn.ID,
			RequestID:    RequestIDFromContext(ctx),
			AfterState:   state,
			Status:       domain.AuditStatusFor(txn.Status),
			ErrorMessage: txn.FailureReason,
			CreatedAt:    txn.UpdatedAt,
		}
		if err := uc.auditRepo.CreateTx(ctx, tx, log); err != nil {
			return fmt.Errorf("create audit log: %w", err)
		}
	}

	return nil
}

// recordCancelled persists a FAILED transaction for a request whose caller went
// away after the PENDING row had been written, so the key resolves to a
// terminal state instead of nothing.
func (uc *TransferUseCase) recordCancelled(ctx context.Context, input TransferInput) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), uc.timeout)
	defer cancel()

	log := uc.loggerFor(ctx).With().Str("idempotency_key", input.IdempotencyKey).Logger()

	err := uc.retrier.Retry(ctx, func() error {
		tx, err := uc.txManager.Begin(ctx)
		if err != nil {
			return err
		}
		defer func() { _ = tx.Rollback(ctx) }()

		now := uc.now()
		txn := domain.NewPendingTransaction(
			uc.idGen.Generate(),
			input.IdempotencyKey,
			input.SenderAccountID,
			input.ReceiverAccountID,
			input.Amount,
			input.Currency,
			input.Metadata,
			now,
		)

		if err := uc.txRepo.Create(ctx, tx, txn); err != nil {
			return err
		}
		if err := uc.settle(ctx, tx, txn, domain.TransactionStatusFailed, reasonCancelled, now); err != nil {
			return err
		}
		if err := uc.recordSettlement(ctx, tx, txn); err != nil {
			return err
		}

		return tx.Commit(ctx)
	})

	switch {
	case err == nil:
		log.Info().Msg("cancelled transfer recorded as failed")
	case errors.Is(err, domain.ErrPersistenceConflict):
		// The key was settled by another request.
	default:
		log.Error().Err(err).Msg("failed to record cancelled transfer")
	}
}

// GetTransaction retrieves a transaction by ID.
func (uc *TransferUseCase) GetTransaction(ctx context.Context, id string) (*domain.Transaction, error) {
	return uc.txRepo.GetByID(ctx, id)
}

// GetTransactionByKey retrieves a transaction by its idempotency key.
func (uc *TransferUseCase) GetTransactionByKey(ctx context.Context, key string) (*domain.Transaction, error) {
	if err := domain.ValidateIdempotencyKey(key); err != nil {
		return nil, err
	}
	return uc.resolver.Resolve(ctx, key)
}

// ListTransactionsByAccount lists transactions where the account is sender or receiver.
func (uc *TransferUseCase) ListTransactionsByAccount(ctx context.Context, accountID string, limit, offset int) ([]*domain.Transaction, error) {
	limit, offset, err := domain.ValidatePagination(limit, offset)
	if err != nil {
		return nil, err
	}
	return uc.txRepo.ListByAccount(ctx, accountID, limit, offset)
}

func (uc *TransferUseCase) loggerFor(ctx context.Context) zerolog.Logger {
	if l := zerolog.Ctx(ctx); l.GetLevel() != zerolog.Disabled {
		return *l
	}
	return uc.logger
}

func validateTransferInput(input TransferInput) error {
	if err := domain.ValidateIdempotencyKey(input.IdempotencyKey); err != nil {
		return err
	}

	if input.SenderAccountID == "" || input.ReceiverAccountID == "" {
		return domain.ErrAccountNotFound
	}

	if input.SenderAccountID == input.ReceiverAccountID {
		return domain.ErrSameAccount
	}

	if err := domain.ValidateAmount(input.Amount); err != nil {
		return err
	}

	if err := domain.ValidateCurrency(input.Currency); err != nil {
		return err
	}

	return domain.ValidateMetadata(input.Metadata)
}

func validateBalances(sender, receiver *domain.Account, input TransferInput) error {
	if sender.Currency != input.Currency || receiver.Currency != input.Currency {
		return domain.ErrCurrencyMismatch
	}
	if err := sender.ValidateDebit(input.Amount); err != nil {
		return err
	}
	return receiver.ValidateCredit(input.Amount)
}

func errorKind(err error) string {
	switch {
	case errors.Is(err, domain.ErrLockTimeout):
		return "lock_timeout"
	case errors.Is(err, domain.ErrStorageUnavailable):
		return "storage"
	case errors.Is(err, domain.ErrConcurrentModification):
		return "concurrent_modification"
	case errors.Is(err, domain.ErrPersistenceConflict):
		return "conflict"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "cancelled"
	default:
		return "internal"
	}
}

type noRetry struct{}

func (noRetry) Retry(_ context.Context, operation func() error) error {
	return operation()
}

type nopObserver struct{}

func (nopObserver) ObserveTransfer(domain.TransactionStatus, string, time.Duration) {}
func (nopObserver) ObserveReplay()                                                {}
func (nopObserver) ObserveError(string)                                           {}
