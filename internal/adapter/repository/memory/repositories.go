package memory

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/iho/ledgercore/internal/domain"
	"github.com/iho/ledgercore/internal/usecase"
)

var (
	errTxClosed  = errors.New("memory: transaction already closed")
	errForeignTx = errors.New("memory: transaction was not started by this store")
	errNotLocked = errors.New("memory: account not locked by transaction")
)

// AccountRepository implements usecase.AccountRepository.
type AccountRepository struct {
	store *Store
}

// Create inserts a committed account.
func (r *AccountRepository) Create(_ context.Context, account *domain.Account) error {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.accounts[account.ID]; ok {
		return fmt.Errorf("memory: account %s already exists", account.ID)
	}
	s.accounts[account.ID] = copyAccount(account)
	s.accountOrder = append(s.accountOrder, account.ID)

	return nil
}

// CreateTx stages an account insert.
func (r *AccountRepository) CreateTx(_ context.Context, tx usecase.Tx, account *domain.Account) error {
	mtx, err := asTx(tx)
	if err != nil {
		return err
	}

	r.store.mu.Lock()
	_, exists := r.store.accounts[account.ID]
	r.store.mu.Unlock()
	if _, staged := mtx.accounts[account.ID]; exists || staged {
		return fmt.Errorf("memory: account %s already exists", account.ID)
	}

	mtx.accounts[account.ID] = copyAccount(account)
	mtx.newAccts = append(mtx.newAccts, account.ID)

	return nil
}

// GetByID returns the committed account.
func (r *AccountRepository) GetByID(_ context.Context, id string) (*domain.Account, error) {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.accounts[id]
	if !ok {
		return nil, domain.ErrAccountNotFound
	}
	return copyAccount(a), nil
}

// GetByIDsForUpdate locks existing accounts in ascending id order.
func (r *AccountRepository) GetByIDsForUpdate(ctx context.Context, tx usecase.Tx, ids []string) ([]*domain.Account, error) {
	mtx, err := asTx(tx)
	if err != nil {
		return nil, err
	}

	s := r.store
	accounts := make([]*domain.Account, 0, len(ids))

	var prev string
	for i, id := range sortedCopy(ids) {
		if i > 0 && id == prev {
			continue
		}
		prev = id

		if staged, ok := mtx.accounts[id]; ok {
			accounts = append(accounts, copyAccount(staged))
			continue
		}

		s.mu.Lock()
		_, exists := s.accounts[id]
		s.mu.Unlock()
		if !exists {
			continue
		}

		if !mtx.holds(id) {
			if err := s.acquire(ctx, id); err != nil {
				return nil, err
			}
			mtx.held = append(mtx.held, id)
		}

		s.mu.Lock()
		a := copyAccount(s.accounts[id])
		s.mu.Unlock()

		accounts = append(accounts, a)
	}

	return accounts, nil
}

func (r *AccountRepository) current(mtx *Tx, id string) (*domain.Account, error) {
	if staged, ok := mtx.accounts[id]; ok {
		return staged, nil
	}
	if !mtx.holds(id) {
		return nil, fmt.Errorf("%w: %s", errNotLocked, id)
	}

	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	a, ok := r.store.accounts[id]
	if !ok {
		return nil, domain.ErrAccountNotFound
	}
	return copyAccount(a), nil
}

// UpdateBalance stages a balance change if the version still matches.
func (r *AccountRepository) UpdateBalance(_ context.Context, tx usecase.Tx, id string, balance decimal.Decimal, expectedVersion int64, updatedAt time.Time) error {
	mtx, err := asTx(tx)
	if err != nil {
		return err
	}

	a, err := r.current(mtx, id)
	if err != nil {
		return err
	}
	if a.Version != expectedVersion {
		return fmt.Errorf("%w: account %s version %d, expected %d", domain.ErrConcurrentModification, id, a.Version, expectedVersion)
	}

	a.Balance = balance
	a.Version++
	a.UpdatedAt = updatedAt
	mtx.accounts[id] = a

	return nil
}

// UpdateStatus stages a status change.
func (r *AccountRepository) UpdateStatus(_ context.Context, tx usecase.Tx, id string, status domain.AccountStatus, updatedAt time.Time) error {
	mtx, err := asTx(tx)
	if err != nil {
		return err
	}

	a, err := r.current(mtx, id)
	if err != nil {
		return err
	}

	a.Status = status
	a.UpdatedAt = updatedAt
	mtx.accounts[id] = a

	return nil
}

// List returns committed accounts in creation order.
func (r *AccountRepository) List(_ context.Context, limit, offset int) ([]*domain.Account, error) {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()

	ids := page(s.accountOrder, limit, offset)
	accounts := make([]*domain.Account, 0, len(ids))
	for _, id := range ids {
		accounts = append(accounts, copyAccount(s.accounts[id]))
	}
	return accounts, nil
}

// TransactionRepository implements usecase.TransactionRepository.
type TransactionRepository struct {
	store *Store
}

// Create stages a transaction row. A key that is committed, or staged by this
// transaction, is a conflict; a key staged by another live transaction blocks
// until that transaction finishes.
func (r *TransactionRepository) Create(ctx context.Context, tx usecase.Tx, txn *domain.Transaction) error {
	mtx, err := asTx(tx)
	if err != nil {
		return err
	}

	s := r.store
	key := txn.IdempotencyKey

	for {
		s.mu.Lock()
		if _, ok := s.byKey[key]; ok {
			s.mu.Unlock()
			return fmt.Errorf("%w: idempotency key %s", domain.ErrPersistenceConflict, key)
		}

		owner, ok := s.reserved[key]
		if !ok {
			s.reserved[key] = mtx
			s.mu.Unlock()
			break
		}
		if owner == mtx {
			s.mu.Unlock()
			return fmt.Errorf("%w: idempotency key %s", domain.ErrPersistenceConflict, key)
		}

		done := owner.done
		s.mu.Unlock()

		select {
		case <-done:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	mtx.keys = append(mtx.keys, key)
	mtx.txns[txn.ID] = copyTransaction(txn)
	mtx.newTxns = append(mtx.newTxns, txn.ID)

	return nil
}

// UpdateStatus stages a status change guarded on the current status.
func (r *TransactionRepository) UpdateStatus(_ context.Context, tx usecase.Tx, id string, from, to domain.TransactionStatus, reason string, updatedAt time.Time) error {
	mtx, err := asTx(tx)
	if err != nil {
		return err
	}

	current, ok := mtx.txns[id]
	if !ok {
		r.store.mu.Lock()
		committed, found := r.store.transactions[id]
		if found {
			current = copyTransaction(committed)
		}
		r.store.mu.Unlock()
		if !found {
			return domain.ErrTransactionNotFound
		}
		mtx.txnFrom[id] = current.Status
	}

	if current.Status != from {
		return fmt.Errorf("%w: %s is %s, not %s", domain.ErrInvalidStatusTransition, id, current.Status, from)
	}

	current.Status = to
	current.FailureReason = reason
	current.UpdatedAt = updatedAt
	mtx.txns[id] = current

	return nil
}

// GetByID returns a committed transaction.
func (r *TransactionRepository) GetByID(_ context.Context, id string) (*domain.Transaction, error) {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.transactions[id]
	if !ok {
		return nil, domain.ErrTransactionNotFound
	}
	return copyTransaction(t), nil
}

// GetByIdempotencyKey returns the committed transaction for key.
func (r *TransactionRepository) GetByIdempotencyKey(_ context.Context, key string) (*domain.Transaction, error) {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()

	id, ok := s.byKey[key]
	if !ok {
		return nil, domain.ErrTransactionNotFound
	}
	return copyTransaction(s.transactions[id]), nil
}

// GetByIdempotencyKeyTx also sees rows staged by tx.
func (r *TransactionRepository) GetByIdempotencyKeyTx(ctx context.Context, tx usecase.Tx, key string) (*domain.Transaction, error) {
	mtx, err := asTx(tx)
	if err != nil {
		return nil, err
	}

	for _, id := range mtx.newTxns {
		if t := mtx.txns[id]; t.IdempotencyKey == key {
			return copyTransaction(t), nil
		}
	}

	return r.GetByIdempotencyKey(ctx, key)
}

// ListByAccount returns committed transactions touching accountID, newest first.
func (r *TransactionRepository) ListByAccount(_ context.Context, accountID string, limit, offset int) ([]*domain.Transaction, error) {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()

	var ids []string
	for i := len(s.txOrder) - 1; i >= 0; i-- {
		t := s.transactions[s.txOrder[i]]
		if t.SenderAccountID == accountID || t.ReceiverAccountID == accountID {
			ids = append(ids, t.ID)
		}
	}

	result := make([]*domain.Transaction, 0, len(ids))
	for _, id := range page(ids, limit, offset) {
		result = append(result, copyTransaction(s.transactions[id]))
	}
	return result, nil
}

// ListPendingBefore returns committed PENDING transactions created before the given time.
func (r *TransactionRepository) ListPendingBefore(_ context.Context, before time.Time, limit int) ([]*domain.Transaction, error) {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()

	var result []*domain.Transaction
	for _, id := range s.txOrder {
		t := s.transactions[id]
		if t.Status == domain.TransactionStatusPending && t.CreatedAt.Before(before) {
			result = append(result, copyTransaction(t))
			if limit > 0 && len(result) == limit {
				break
			}
		}
	}
	return result, nil
}

// EntryRepository implements usecase.EntryRepository. Entries are never
// updated or removed.
type EntryRepository struct {
	store *Store
}

// Append stages an entry. The account must be locked by tx.
func (r *EntryRepository) Append(_ context.Context, tx usecase.Tx, entry *domain.LedgerEntry) error {
	mtx, err := asTx(tx)
	if err != nil {
		return err
	}
	if !mtx.holds(entry.AccountID) {
		return fmt.Errorf("%w: %s", errNotLocked, entry.AccountID)
	}

	mtx.entries = append(mtx.entries, copyEntry(entry))
	return nil
}

// GetByTransaction returns the entries of a transaction.
func (r *EntryRepository) GetByTransaction(_ context.Context, transactionID string) ([]*domain.LedgerEntry, error) {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()

	result := make([]*domain.LedgerEntry, 0, 2)
	for _, e := range s.entries {
		if e.TransactionID == transactionID {
			result = append(result, copyEntry(e))
		}
	}
	return result, nil
}

// GetByAccount returns an account's entries in application order.
func (r *EntryRepository) GetByAccount(_ context.Context, accountID string, limit, offset int) ([]*domain.LedgerEntry, error) {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()

	var all []*domain.LedgerEntry
	for _, e := range s.entries {
		if e.AccountID == accountID {
			all = append(all, e)
		}
	}

	result := make([]*domain.LedgerEntry, 0, len(all))
	for _, e := range page(all, limit, offset) {
		result = append(result, copyEntry(e))
	}
	return result, nil
}

// GetBalanceAtTime returns balance_after of the last entry at or before at.
func (r *EntryRepository) GetBalanceAtTime(_ context.Context, accountID string, at time.Time) (decimal.Decimal, error) {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.accounts[accountID]; !ok {
		return decimal.Zero, domain.ErrAccountNotFound
	}

	balance := decimal.Zero
	for _, e := range s.entries {
		if e.AccountID == accountID && !e.CreatedAt.After(at) {
			balance = e.BalanceAfter
		}
	}
	return balance, nil
}

// LedgerRepository implements usecase.LedgerRepository.
type LedgerRepository struct {
	store *Store
}

// CheckConsistency sums all balances and all signed entries.
func (r *LedgerRepository) CheckConsistency(context.Context) (decimal.Decimal, decimal.Decimal, error) {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()

	totalBalance := decimal.Zero
	for _, a := range s.accounts {
		totalBalance = totalBalance.Add(a.Balance)
	}

	return totalBalance, domain.SumSigned(s.entries), nil
}

// SumEntriesByAccount sums an account's signed entries.
func (r *LedgerRepository) SumEntriesByAccount(_ context.Context, accountID string) (decimal.Decimal, error) {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()

	total := decimal.Zero
	for _, e := range s.entries {
		if e.AccountID == accountID {
			total = total.Add(e.SignedAmount())
		}
	}
	return total, nil
}

// OutboxRepository implements usecase.OutboxRepository.
type OutboxRepository struct {
	store *Store
}

// Create stages an outbox event.
func (r *OutboxRepository) Create(_ context.Context, tx usecase.Tx, event *domain.OutboxEvent) error {
	mtx, err := asTx(tx)
	if err != nil {
		return err
	}
	c := *event
	mtx.outbox = append(mtx.outbox, &c)
	return nil
}

// GetUnpublished returns the oldest unpublished events.
func (r *OutboxRepository) GetUnpublished(_ context.Context, limit int) ([]*domain.OutboxEvent, error) {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()

	var result []*domain.OutboxEvent
	for _, e := range s.outbox {
		if e.Published {
			continue
		}
		c := *e
		result = append(result, &c)
		if limit > 0 && len(result) == limit {
			break
		}
	}
	return result, nil
}

// MarkPublished marks an event as published.
func (r *OutboxRepository) MarkPublished(_ context.Context, id string, publishedAt time.Time) error {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, e := range s.outbox {
		if e.ID == id {
			at := publishedAt
			e.Published = true
			e.PublishedAt = &at
			return nil
		}
	}
	return fmt.Errorf("memory: outbox event %s not found", id)
}

// GetByAggregate returns events for an aggregate, oldest first.
func (r *OutboxRepository) GetByAggregate(_ context.Context, aggregateType, aggregateID string, limit, offset int) ([]*domain.OutboxEvent, error) {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()

	var all []*domain.OutboxEvent
	for _, e := range s.outbox {
		if e.AggregateType == aggregateType && e.AggregateID == aggregateID {
			c := *e
			all = append(all, &c)
		}
	}
	return page(all, limit, offset), nil
}

// DeletePublished removes events published before the given time.
func (r *OutboxRepository) DeletePublished(_ context.Context, before time.Time) error {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.outbox[:0]
	for _, e := range s.outbox {
		if e.Published && e.PublishedAt != nil && e.PublishedAt.Before(before) {
			continue
		}
		kept = append(kept, e)
	}
	s.outbox = kept
	return nil
}

// AuditRepository implements usecase.AuditRepository.
type AuditRepository struct {
	store *Store
}

// CreateTx stages an audit log.
func (r *AuditRepository) CreateTx(_ context.Context, tx usecase.Tx, log *domain.AuditLog) error {
	mtx, err := asTx(tx)
	if err != nil {
		return err
	}
	c := *log
	mtx.audit = append(mtx.audit, &c)
	return nil
}

// GetByResourceID returns audit logs for a resource, oldest first.
func (r *AuditRepository) GetByResourceID(_ context.Context, resourceType, resourceID string) ([]*domain.AuditLog, error) {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()

	var result []*domain.AuditLog
	for _, l := range s.audit {
		if l.ResourceType == resourceType && l.ResourceID == resourceID {
			c := *l
			result = append(result, &c)
		}
	}
	return result, nil
}

func page[T any](items []T, limit, offset int) []T {
	if offset >= len(items) {
		return nil
	}
	items = items[offset:]
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}
