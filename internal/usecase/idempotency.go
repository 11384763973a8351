package usecase

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/iho/ledgercore/internal/domain"
)

// IdempotencyResolver looks up the transaction previously recorded for an
// idempotency key. The transaction store is authoritative; the cache only
// holds settled transactions and any cache failure falls through to the store.
type IdempotencyResolver struct {
	txRepo TransactionRepository
	cache  IdempotencyCache
	ttl    time.Duration
	logger zerolog.Logger
}

// NewIdempotencyResolver creates a resolver. cache may be nil.
func NewIdempotencyResolver(txRepo TransactionRepository, cache IdempotencyCache, ttl time.Duration, logger zerolog.Logger) *IdempotencyResolver {
	if ttl <= 0 {
		ttl = IdempotencyKeyTTL
	}
	return &IdempotencyResolver{
		txRepo: txRepo,
		cache:  cache,
		ttl:    ttl,
		logger: logger,
	}
}

// Resolve returns the transaction for key or domain.ErrTransactionNotFound.
func (r *IdempotencyResolver) Resolve(ctx context.Context, key string) (*domain.Transaction, error) {
	if r.cache != nil {
		cached, err := r.cache.Get(ctx, key)
		if err != nil {
			r.logger.Warn().Err(err).Str("idempotency_key", key).Msg("idempotency cache read failed")
		} else if cached != nil {
			return cached, nil
		}
	}

	txn, err := r.txRepo.GetByIdempotencyKey(ctx, key)
	if err != nil {
		return nil, err
	}

	r.Remember(ctx, txn)

	return txn, nil
}

// Remember caches txn if it is settled. Errors are logged and dropped.
func (r *IdempotencyResolver) Remember(ctx context.Context, txn *domain.Transaction) {
	if r.cache == nil || txn == nil || !txn.Status.IsTerminal() {
		return
	}

	if err := r.cache.Set(ctx, txn, r.ttl); err != nil && !errors.Is(err, context.Canceled) {
		r.logger.Warn().Err(err).Str("transaction_id", txn.ID).Msg("idempotency cache write failed")
	}
}
