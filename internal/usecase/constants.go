package usecase

import "time"

const (
	// DefaultTransactionTimeout is the maximum duration for a database transaction
	// This prevents long-running transactions from blocking tables
	DefaultTransactionTimeout = 10 * time.Second

	// IdempotencyKeyTTL is how long settled transactions stay in the idempotency cache
	IdempotencyKeyTTL = 24 * time.Hour

	// DefaultStalePendingAfter is the age after which a PENDING row is expired
	DefaultStalePendingAfter = 5 * time.Minute

	reasonCancelled    = "cancelled"
	reasonStalePending = "stale_pending"
)
