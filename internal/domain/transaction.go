package domain

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// TransactionStatus is the state of a transfer.
type TransactionStatus string

const (
	TransactionStatusPending TransactionStatus = "PENDING"
	TransactionStatusSuccess TransactionStatus = "SUCCESS"
	TransactionStatusFailed  TransactionStatus = "FAILED"
	TransactionStatusFlagged TransactionStatus = "FLAGGED"
)

// PENDING is the only state with successors.
var transactionTransitions = map[TransactionStatus][]TransactionStatus{
	TransactionStatusPending: {
		TransactionStatusSuccess,
		TransactionStatusFailed,
		TransactionStatusFlagged,
	},
}

// IsValid reports whether s is a known transaction status.
func (s TransactionStatus) IsValid() bool {
	switch s {
	case TransactionStatusPending, TransactionStatusSuccess, TransactionStatusFailed, TransactionStatusFlagged:
		return true
	}
	return false
}

// IsTerminal reports whether no transition may leave s.
func (s TransactionStatus) IsTerminal() bool {
	return s.IsValid() && len(transactionTransitions[s]) == 0
}

// CanTransitionTo reports whether s -> next is a legal transition.
func (s TransactionStatus) CanTransitionTo(next TransactionStatus) bool {
	for _, allowed := range transactionTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Transaction represents a money movement between two accounts.
type Transaction struct {
	ID                string
	IdempotencyKey    string
	SenderAccountID   string
	ReceiverAccountID string
	Amount            decimal.Decimal
	Currency          string
	Status            TransactionStatus
	FailureReason     string
	Metadata          map[string]any
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// NewPendingTransaction builds a transaction in the PENDING state.
func NewPendingTransaction(id, key, senderID, receiverID string, amount decimal.Decimal, currency string, metadata map[string]any, now time.Time) *Transaction {
	return &Transaction{
		ID:                id,
		IdempotencyKey:    key,
		SenderAccountID:   senderID,
		ReceiverAccountID: receiverID,
		Amount:            amount,
		Currency:          currency,
		Status:            TransactionStatusPending,
		Metadata:          metadata,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
}

// Validate validates the transfer request fields.
func (t *Transaction) Validate() error {
	if t.IdempotencyKey == "" {
		return ErrMissingIdempotencyKey
	}

	if t.SenderAccountID == t.ReceiverAccountID {
		return ErrSameAccount
	}

	if t.Amount.LessThanOrEqual(decimal.Zero) {
		return ErrInvalidAmount
	}

	return nil
}

// TransitionTo moves the transaction to next, rejecting illegal transitions.
func (t *Transaction) TransitionTo(next TransactionStatus, reason string, at time.Time) error {
	if !t.Status.CanTransitionTo(next) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidStatusTransition, t.Status, next)
	}

	t.Status = next
	t.FailureReason = reason
	t.UpdatedAt = at

	return nil
}
