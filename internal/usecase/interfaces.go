package usecase

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/iho/ledgercore/internal/domain"
)

// AccountRepository defines data access for accounts.
type AccountRepository interface {
	Create(ctx context.Context, account *domain.Account) error
	CreateTx(ctx context.Context, tx Tx, account *domain.Account) error
	GetByID(ctx context.Context, id string) (*domain.Account, error)
	// GetByIDsForUpdate locks the rows in ascending id order. Missing ids are
	// omitted from the result.
	GetByIDsForUpdate(ctx context.Context, tx Tx, ids []string) ([]*domain.Account, error)
	// UpdateBalance is a compare-and-set on version; a stale version yields
	// domain.ErrConcurrentModification.
	UpdateBalance(ctx context.Context, tx Tx, id string, balance decimal.Decimal, expectedVersion int64, updatedAt time.Time) error
	UpdateStatus(ctx context.Context, tx Tx, id string, status domain.AccountStatus, updatedAt time.Time) error
	List(ctx context.Context, limit, offset int) ([]*domain.Account, error)
}

// TransactionRepository defines data access for transfer transactions.
type TransactionRepository interface {
	// Create fails with domain.ErrPersistenceConflict when the idempotency key
	// is already taken.
	Create(ctx context.Context, tx Tx, txn *domain.Transaction) error
	// UpdateStatus only succeeds while the stored status equals from.
	UpdateStatus(ctx context.Context, tx Tx, id string, from, to domain.TransactionStatus, reason string, updatedAt time.Time) error
	GetByID(ctx context.Context, id string) (*domain.Transaction, error)
	GetByIdempotencyKey(ctx context.Context, key string) (*domain.Transaction, error)
	GetByIdempotencyKeyTx(ctx context.Context, tx Tx, key string) (*domain.Transaction, error)
	ListByAccount(ctx context.Context, accountID string, limit, offset int) ([]*domain.Transaction, error)
	ListPendingBefore(ctx context.Context, before time.Time, limit int) ([]*domain.Transaction, error)
}

// EntryRepository is the append-only ledger entry store.
type EntryRepository interface {
	Append(ctx context.Context, tx Tx, entry *domain.LedgerEntry) error
	GetByTransaction(ctx context.Context, transactionID string) ([]*domain.LedgerEntry, error)
	// GetByAccount returns entries in application order.
	GetByAccount(ctx context.Context, accountID string, limit, offset int) ([]*domain.LedgerEntry, error)
	GetBalanceAtTime(ctx context.Context, accountID string, at time.Time) (decimal.Decimal, error)
}

// LedgerRepository defines data access for ledger-wide operations.
type LedgerRepository interface {
	CheckConsistency(ctx context.Context) (totalBalance, totalEntries decimal.Decimal, err error)
	SumEntriesByAccount(ctx context.Context, accountID string) (decimal.Decimal, error)
}

// OutboxRepository defines data access for outbox events.
type OutboxRepository interface {
	Create(ctx context.Context, tx Tx, event *domain.OutboxEvent) error
	GetUnpublished(ctx context.Context, limit int) ([]*domain.OutboxEvent, error)
	MarkPublished(ctx context.Context, id string, publishedAt time.Time) error
	GetByAggregate(ctx context.Context, aggregateType, aggregateID string, limit, offset int) ([]*domain.OutboxEvent, error)
	DeletePublished(ctx context.Context, before time.Time) error
}

// AuditRepository defines data access for audit logs.
type AuditRepository interface {
	CreateTx(ctx context.Context, tx Tx, log *domain.AuditLog) error
	GetByResourceID(ctx context.Context, resourceType, resourceID string) ([]*domain.AuditLog, error)
}

// Tx represents a database transaction. Row locks taken through it are held
// until Commit or Rollback.
type Tx interface {
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// TxManager handles transaction lifecycle.
type TxManager interface {
	Begin(ctx context.Context) (Tx, error)
}

// IDGenerator generates unique IDs.
type IDGenerator interface {
	Generate() string
}

// IdempotencyCache is a read-through cache of settled transactions keyed by
// idempotency key. A miss returns (nil, nil).
type IdempotencyCache interface {
	Get(ctx context.Context, key string) (*domain.Transaction, error)
	Set(ctx context.Context, txn *domain.Transaction, ttl time.Duration) error
}

// Retrier re-runs an operation on transient storage errors.
type Retrier interface {
	Retry(ctx context.Context, operation func() error) error
}

// TransferObserver receives transfer outcomes for metrics.
type TransferObserver interface {
	ObserveTransfer(status domain.TransactionStatus, reason string, duration time.Duration)
	ObserveReplay()
	ObserveError(kind string)
}
