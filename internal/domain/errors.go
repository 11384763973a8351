package domain

import (
	"errors"
	"fmt"
)

var (
	// Account errors
	ErrAccountNotFound        = errors.New("account not found")
	ErrAccountNotUsable       = errors.New("account is not active")
	ErrInsufficientFunds      = errors.New("insufficient funds")
	ErrConcurrentModification = errors.New("account balance modified outside of lock")
	ErrAccountBalanceNotZero  = errors.New("account balance must be zero to close")
	ErrBalanceLimitExceeded   = errors.New("resulting balance exceeds the storable range")

	// Transaction errors
	ErrSameAccount             = errors.New("cannot transfer to same account")
	ErrInvalidAmount           = errors.New("amount must be positive")
	ErrCurrencyMismatch        = errors.New("cannot transfer between different currencies")
	ErrTransactionNotFound     = errors.New("transaction not found")
	ErrMissingIdempotencyKey   = errors.New("idempotency key is required")
	ErrInvalidStatusTransition = errors.New("invalid transaction status transition")
	ErrTransferRejected        = errors.New("transfer rejected by policy")

	// Infrastructure errors
	ErrPersistenceConflict = errors.New("persistence conflict")
	ErrLockTimeout         = errors.New("timed out waiting for account lock")
	ErrStorageUnavailable  = errors.New("storage unavailable")
)

// Side identifies which party of a transfer an error refers to.
type Side string

const (
	SideSender   Side = "sender"
	SideReceiver Side = "receiver"
)

// AccountNotFoundError reports which side of a transfer is missing.
type AccountNotFoundError struct {
	Side      Side
	AccountID string
}

func (e *AccountNotFoundError) Error() string {
	return fmt.Sprintf("%s account %s not found", e.Side, e.AccountID)
}

func (e *AccountNotFoundError) Unwrap() error {
	return ErrAccountNotFound
}

// AccountNotUsableError reports which side of a transfer is not active.
type AccountNotUsableError struct {
	Side      Side
	AccountID string
	Status    AccountStatus
}

func (e *AccountNotUsableError) Error() string {
	return fmt.Sprintf("%s account %s is %s", e.Side, e.AccountID, e.Status)
}

func (e *AccountNotUsableError) Unwrap() error {
	return ErrAccountNotUsable
}

// IsRetryable reports whether err is transient and the same request may be
// submitted again with the same idempotency key.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrLockTimeout) || errors.Is(err, ErrStorageUnavailable)
}

// IsRejection reports whether err is an input/state rejection that is
// recorded as a FAILED transaction.
func IsRejection(err error) bool {
	switch {
	case errors.Is(err, ErrAccountNotFound),
		errors.Is(err, ErrAccountNotUsable),
		errors.Is(err, ErrCurrencyMismatch),
		errors.Is(err, ErrInsufficientFunds),
		errors.Is(err, ErrBalanceLimitExceeded),
		errors.Is(err, ErrTransferRejected):
		return true
	}
	return false
}

// FailureReason returns the short code stored on a FAILED transaction.
func FailureReason(err error) string {
	switch {
	case errors.Is(err, ErrAccountNotFound):
		return "account_not_found"
	case errors.Is(err, ErrAccountNotUsable):
		return "account_not_usable"
	case errors.Is(err, ErrCurrencyMismatch):
		return "currency_mismatch"
	case errors.Is(err, ErrInsufficientFunds):
		return "insufficient_funds"
	case errors.Is(err, ErrBalanceLimitExceeded):
		return "balance_limit_exceeded"
	case errors.Is(err, ErrTransferRejected):
		return "policy_rejected"
	default:
		return "internal_error"
	}
}
