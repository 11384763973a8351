// Package memory is an in-process implementation of the repository ports.
// Accounts are guarded by per-account locks taken through
// AccountRepository.GetByIDsForUpdate; all writes made through a Tx are
// buffered and become visible atomically on Commit.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/iho/ledgercore/internal/domain"
	"github.com/iho/ledgercore/internal/usecase"
)

// DefaultLockTimeout bounds the wait for an account lock.
const DefaultLockTimeout = 5 * time.Second

// Store holds committed state shared by all repositories.
type Store struct {
	mu           sync.Mutex
	accounts     map[string]*domain.Account
	accountOrder []string
	transactions map[string]*domain.Transaction
	byKey        map[string]string
	txOrder      []string
	entries      []*domain.LedgerEntry
	outbox       []*domain.OutboxEvent
	audit        []*domain.AuditLog

	locks    map[string]chan struct{}
	reserved map[string]*Tx

	lockTimeout time.Duration
}

// Option configures a Store.
type Option func(*Store)

// WithLockTimeout sets how long GetByIDsForUpdate waits for a lock.
func WithLockTimeout(d time.Duration) Option {
	return func(s *Store) { s.lockTimeout = d }
}

// NewStore creates an empty store.
func NewStore(opts ...Option) *Store {
	s := &Store{
		accounts:     make(map[string]*domain.Account),
		transactions: make(map[string]*domain.Transaction),
		byKey:        make(map[string]string),
		locks:        make(map[string]chan struct{}),
		reserved:     make(map[string]*Tx),
		lockTimeout:  DefaultLockTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Begin starts a transaction. It implements usecase.TxManager.
func (s *Store) Begin(ctx context.Context) (usecase.Tx, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return &Tx{
		store:    s,
		accounts: make(map[string]*domain.Account),
		txns:     make(map[string]*domain.Transaction),
		txnFrom:  make(map[string]domain.TransactionStatus),
		done:     make(chan struct{}),
	}, nil
}

// Accounts returns the account repository.
func (s *Store) Accounts() *AccountRepository { return &AccountRepository{store: s} }

// Transactions returns the transaction repository.
func (s *Store) Transactions() *TransactionRepository { return &TransactionRepository{store: s} }

// Entries returns the ledger entry repository.
func (s *Store) Entries() *EntryRepository { return &EntryRepository{store: s} }

// Ledger returns the ledger repository.
func (s *Store) Ledger() *LedgerRepository { return &LedgerRepository{store: s} }

// Outbox returns the outbox repository.
func (s *Store) Outbox() *OutboxRepository { return &OutboxRepository{store: s} }

// Audit returns the audit repository.
func (s *Store) Audit() *AuditRepository { return &AuditRepository{store: s} }

// Seed inserts a committed account directly, bypassing transactions.
func (s *Store) Seed(account *domain.Account) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.accounts[account.ID]; !ok {
		s.accountOrder = append(s.accountOrder, account.ID)
	}
	s.accounts[account.ID] = copyAccount(account)
}

func (s *Store) lockFor(id string) chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	ch, ok := s.locks[id]
	if !ok {
		ch = make(chan struct{}, 1)
		s.locks[id] = ch
	}
	return ch
}

func (s *Store) acquire(ctx context.Context, id string) error {
	ch := s.lockFor(id)

	timer := time.NewTimer(s.lockTimeout)
	defer timer.Stop()

	select {
	case ch <- struct{}{}:
		return nil
	case <-timer.C:
		return fmt.Errorf("%w: account %s", domain.ErrLockTimeout, id)
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Store) release(id string) {
	ch := s.lockFor(id)
	<-ch
}

// Tx buffers writes until Commit.
type Tx struct {
	store    *Store
	held     []string
	accounts map[string]*domain.Account
	newAccts []string
	txns     map[string]*domain.Transaction
	newTxns  []string
	txnFrom  map[string]domain.TransactionStatus
	entries  []*domain.LedgerEntry
	outbox   []*domain.OutboxEvent
	audit    []*domain.AuditLog
	keys     []string
	done     chan struct{}
	finished bool
}

func (tx *Tx) holds(id string) bool {
	for _, h := range tx.held {
		if h == id {
			return true
		}
	}
	return false
}

// Commit applies buffered writes atomically and releases locks.
func (tx *Tx) Commit(ctx context.Context) error {
	if tx.finished {
		return errTxClosed
	}
	if err := ctx.Err(); err != nil {
		tx.finish()
		return err
	}

	s := tx.store
	s.mu.Lock()

	for _, id := range tx.newTxns {
		key := tx.txns[id].IdempotencyKey
		if existing, ok := s.byKey[key]; ok && existing != id {
			s.mu.Unlock()
			tx.finish()
			return fmt.Errorf("%w: idempotency key %s", domain.ErrPersistenceConflict, key)
		}
	}

	for id, from := range tx.txnFrom {
		if committed := s.transactions[id]; committed.Status != from {
			s.mu.Unlock()
			tx.finish()
			return fmt.Errorf("%w: %s is %s, not %s", domain.ErrInvalidStatusTransition, id, committed.Status, from)
		}
	}

	for _, id := range tx.newAccts {
		s.accountOrder = append(s.accountOrder, id)
	}
	for id, a := range tx.accounts {
		s.accounts[id] = a
	}
	for _, id := range tx.newTxns {
		s.txOrder = append(s.txOrder, id)
		s.byKey[tx.txns[id].IdempotencyKey] = id
	}
	for id, t := range tx.txns {
		s.transactions[id] = t
	}
	s.entries = append(s.entries, tx.entries...)
	s.outbox = append(s.outbox, tx.outbox...)
	s.audit = append(s.audit, tx.audit...)

	s.mu.Unlock()
	tx.finish()

	return nil
}

// Rollback discards buffered writes and releases locks. It is a no-op after
// Commit.
func (tx *Tx) Rollback(context.Context) error {
	if !tx.finished {
		tx.finish()
	}
	return nil
}

func (tx *Tx) finish() {
	tx.finished = true

	s := tx.store
	s.mu.Lock()
	for _, key := range tx.keys {
		if s.reserved[key] == tx {
			delete(s.reserved, key)
		}
	}
	s.mu.Unlock()
	close(tx.done)

	for i := len(tx.held) - 1; i >= 0; i-- {
		s.release(tx.held[i])
	}
	tx.held = nil
}

func asTx(tx usecase.Tx) (*Tx, error) {
	mtx, ok := tx.(*Tx)
	if !ok || mtx == nil {
		return nil, errForeignTx
	}
	if mtx.finished {
		return nil, errTxClosed
	}
	return mtx, nil
}

func sortedCopy(ids []string) []string {
	out := append([]string(nil), ids...)
	sort.Strings(out)
	return out
}

func copyAccount(a *domain.Account) *domain.Account {
	c := *a
	return &c
}

func copyTransaction(t *domain.Transaction) *domain.Transaction {
	c := *t
	if t.Metadata != nil {
		c.Metadata = make(map[string]any, len(t.Metadata))
		for k, v := range t.Metadata {
			c.Metadata[k] = v
		}
	}
	return &c
}

func copyEntry(e *domain.LedgerEntry) *domain.LedgerEntry {
	c := *e
	return &c
}
