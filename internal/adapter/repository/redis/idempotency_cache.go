package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"github.com/iho/ledgercore/internal/domain"
)

const idempotencyPrefix = "idempotency:"

// IdempotencyCache implements usecase.IdempotencyCache using Redis. Entries
// are a read-through copy of settled transactions; the database stays the
// source of truth.
type IdempotencyCache struct {
	client redis.Cmdable
	prefix string
}

// NewIdempotencyCache creates a new IdempotencyCache.
func NewIdempotencyCache(client redis.Cmdable) *IdempotencyCache {
	return &IdempotencyCache{
		client: client,
		prefix: idempotencyPrefix,
	}
}

type cachedTransaction struct {
	ID                string          `json:"id"`
	IdempotencyKey    string          `json:"idempotency_key"`
	SenderAccountID   string          `json:"sender_account_id"`
	ReceiverAccountID string          `json:"receiver_account_id"`
	Amount            decimal.Decimal `json:"amount"`
	Currency          string          `json:"currency"`
	Status            string          `json:"status"`
	FailureReason     string          `json:"failure_reason,omitempty"`
	Metadata          map[string]any  `json:"metadata,omitempty"`
	CreatedAt         time.Time       `json:"created_at"`
	UpdatedAt         time.Time       `json:"updated_at"`
}

// Get returns the cached transaction for key, or nil on a miss.
func (c *IdempotencyCache) Get(ctx context.Context, key string) (*domain.Transaction, error) {
	val, err := c.client.Get(ctx, c.prefix+key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("redis idempotency get: %w", err)
	}

	var cached cachedTransaction
	if err := json.Unmarshal(val, &cached); err != nil {
		return nil, fmt.Errorf("redis idempotency decode: %w", err)
	}

	return &domain.Transaction{
		ID:                cached.ID,
		IdempotencyKey:    cached.IdempotencyKey,
		SenderAccountID:   cached.SenderAccountID,
		ReceiverAccountID: cached.ReceiverAccountID,
		Amount:            cached.Amount,
		Currency:          cached.Currency,
		Status:            domain.TransactionStatus(cached.Status),
		FailureReason:     cached.FailureReason,
		Metadata:          cached.Metadata,
		CreatedAt:         cached.CreatedAt,
		UpdatedAt:         cached.UpdatedAt,
	}, nil
}

// Set stores txn under its idempotency key with ttl.
func (c *IdempotencyCache) Set(ctx context.Context, txn *domain.Transaction, ttl time.Duration) error {
	data, err := json.Marshal(cachedTransaction{
		ID:                txn.ID,
		IdempotencyKey:    txn.IdempotencyKey,
		SenderAccountID:   txn.SenderAccountID,
		ReceiverAccountID: txn.ReceiverAccountID,
		Amount:            txn.Amount,
		Currency:          txn.Currency,
		Status:            string(txn.Status),
		FailureReason:     txn.FailureReason,
		Metadata:          txn.Metadata,
		CreatedAt:         txn.CreatedAt,
		UpdatedAt:         txn.UpdatedAt,
	})
	if err != nil {
		return fmt.Errorf("redis idempotency encode: %w", err)
	}

	if err := c.client.Set(ctx, c.prefix+txn.IdempotencyKey, data, ttl).Err(); err != nil {
		return fmt.Errorf("redis idempotency set: %w", err)
	}
	return nil
}
