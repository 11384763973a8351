package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/iho/ledgercore/internal/domain"
)

// AccountUseCase handles account business logic.
type AccountUseCase struct {
	txManager   TxManager
	accountRepo AccountRepository
	outboxRepo  OutboxRepository
	auditRepo   AuditRepository
	idGen       IDGenerator
}

// NewAccountUseCase creates a new AccountUseCase. outboxRepo and auditRepo may be nil.
func NewAccountUseCase(
	txManager TxManager,
	accountRepo AccountRepository,
	outboxRepo OutboxRepository,
	auditRepo AuditRepository,
	idGen IDGenerator,
) *AccountUseCase {
	return &AccountUseCase{
		txManager:   txManager,
		accountRepo: accountRepo,
		outboxRepo:  outboxRepo,
		auditRepo:   auditRepo,
		idGen:       idGen,
	}
}

// CreateAccountInput represents input for creating an account.
type CreateAccountInput struct {
	Currency             string
	AllowNegativeBalance bool
}

// CreateAccount creates a new ACTIVE account with zero balance.
func (uc *AccountUseCase) CreateAccount(ctx context.Context, input CreateAccountInput) (*domain.Account, error) {
	currency := domain.NormalizeCurrency(input.Currency)
	if err := domain.ValidateCurrency(currency); err != nil {
		return nil, err
	}

	now := time.Now().UTC()

	account := &domain.Account{
		ID:                   uc.idGen.Generate(),
		Currency:             currency,
		Balance:              decimal.Zero,
		Status:               domain.AccountStatusActive,
		Version:              0,
		AllowNegativeBalance: input.AllowNegativeBalance,
		CreatedAt:            now,
		UpdatedAt:            now,
	}

	tx, err := uc.txManager.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(context.WithoutCancel(ctx)) }()

	if err := uc.accountRepo.CreateTx(ctx, tx, account); err != nil {
		return nil, err
	}

	payload := domain.MarshalState(domain.AccountCreatedEvent{AccountID: account.ID, Currency: account.Currency})
	if err := uc.record(ctx, tx, account.ID, domain.EventTypeAccountCreated, domain.AuditActionAccountCreate, nil, payload, now); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit transaction: %w", err)
	}

	return account, nil
}

// GetAccount retrieves an account by ID.
func (uc *AccountUseCase) GetAccount(ctx context.Context, id string) (*domain.Account, error) {
	return uc.accountRepo.GetByID(ctx, id)
}

// ListAccountsInput represents input for listing accounts.
type ListAccountsInput struct {
	Limit  int
	Offset int
}

// ListAccounts lists accounts with pagination.
func (uc *AccountUseCase) ListAccounts(ctx context.Context, input ListAccountsInput) ([]*domain.Account, error) {
	limit, offset, err := domain.ValidatePagination(input.Limit, input.Offset)
	if err != nil {
		return nil, err
	}
	return uc.accountRepo.List(ctx, limit, offset)
}

// SetAccountStatus freezes, unfreezes or closes an account. Accounts are never
// deleted; a CLOSED account cannot be reopened and must have zero balance.
func (uc *AccountUseCase) SetAccountStatus(ctx context.Context, id string, status domain.AccountStatus) (*domain.Account, error) {
	if err := domain.ValidateAccountStatus(status); err != nil {
		return nil, err
	}

	tx, err := uc.txManager.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(context.WithoutCancel(ctx)) }()

	accounts, err := uc.accountRepo.GetByIDsForUpdate(ctx, tx, []string{id})
	if err != nil {
		return nil, err
	}
	if len(accounts) == 0 {
		return nil, domain.ErrAccountNotFound
	}

	account := accounts[0]
	previous := account.Status

	if previous == status {
		return account, nil
	}
	if previous == domain.AccountStatusClosed {
		return nil, fmt.Errorf("%w: account is closed", domain.ErrInvalidAccountStatus)
	}
	if status == domain.AccountStatusClosed && !account.Balance.IsZero() {
		return nil, domain.ErrAccountBalanceNotZero
	}

	now := time.Now().UTC()
	if err := uc.accountRepo.UpdateStatus(ctx, tx, id, status, now); err != nil {
		return nil, err
	}
	account.Status = status
	account.UpdatedAt = now

	payload := domain.MarshalState(domain.AccountStatusChangedEvent{AccountID: id, From: string(previous), To: string(status)})
	before := domain.JSON{"status": string(previous)}
	if err := uc.record(ctx, tx, id, domain.EventTypeAccountStatusChanged, domain.AuditActionAccountStatusChange, before, payload, now); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit transaction: %w", err)
	}

	return account, nil
}

func (uc *AccountUseCase) record(
	ctx context.Context,
	tx Tx,
	accountID, eventType string,
	action domain.AuditAction,
	before, after domain.JSON,
	now time.Time,
) error {
	if uc.outboxRepo != nil {
		event := &domain.OutboxEvent{
			ID:            uc.idGen.Generate(),
			AggregateID:   accountID,
			AggregateType: domain.AggregateTypeAccount,
			EventType:     eventType,
			Payload:       after,
			CreatedAt:     now,
		}
		if err := uc.outboxRepo.Create(ctx, tx, event); err != nil {
			return fmt.Errorf("create outbox event: %w", err)
		}
	}

	if uc.auditRepo != nil {
		log := &domain.AuditLog{
			ID:           uc.idGen.Generate(),
			Actor:        ActorFromContext(ctx),
			Action:       action,
			ResourceType: domain.AggregateTypeAccount,
			ResourceID:   accountID,
			RequestID:    RequestIDFromContext(ctx),
			BeforeState:  before,
			AfterState:   after,
			Status:       domain.AuditStatusSuccess,
			CreatedAt:    now,
		}
		if err := uc.auditRepo.CreateTx(ctx, tx, log); err != nil {
			return fmt.Errorf("create audit log: %w", err)
		}
	}

	return nil
}
