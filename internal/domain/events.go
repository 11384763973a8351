package domain

import "time"

// Event types
const (
	EventTypeTransactionSucceeded = "transaction.succeeded"
	EventTypeTransactionFailed    = "transaction.failed"
	EventTypeTransactionFlagged   = "transaction.flagged"
	EventTypeAccountCreated       = "account.created"
	EventTypeAccountStatusChanged = "account.status_changed"
)

// Aggregate types
const (
	AggregateTypeTransaction = "transaction"
	AggregateTypeAccount     = "account"
)

// OutboxEvent represents an event to be published
type OutboxEvent struct {
	ID            string
	AggregateID   string
	AggregateType string
	EventType     string
	Payload       map[string]any
	CreatedAt     time.Time
	PublishedAt   *time.Time
	Published     bool
}

// TransactionEventType returns the event emitted when a transaction settles in status.
func TransactionEventType(status TransactionStatus) string {
	switch status {
	case TransactionStatusSuccess:
		return EventTypeTransactionSucceeded
	case TransactionStatusFlagged:
		return EventTypeTransactionFlagged
	default:
		return EventTypeTransactionFailed
	}
}

// TransactionEvent payload
type TransactionEvent struct {
	TransactionID     string `json:"transaction_id"`
	IdempotencyKey    string `json:"idempotency_key"`
	SenderAccountID   string `json:"sender_account_id"`
	ReceiverAccountID string `json:"receiver_account_id"`
	Amount            string `json:"amount"`
	Currency          string `json:"currency"`
	Status            string `json:"status"`
	FailureReason     string `json:"failure_reason,omitempty"`
	EventAt           string `json:"event_at"`
}

// NewTransactionEvent builds the outbox payload for a settled transaction.
func NewTransactionEvent(tx *Transaction) TransactionEvent {
	return TransactionEvent{
		TransactionID:     tx.ID,
		IdempotencyKey:    tx.IdempotencyKey,
		SenderAccountID:   tx.SenderAccountID,
		ReceiverAccountID: tx.ReceiverAccountID,
		Amount:            tx.Amount.StringFixed(6),
		Currency:          tx.Currency,
		Status:            string(tx.Status),
		FailureReason:     tx.FailureReason,
		EventAt:           tx.UpdatedAt.Format(time.RFC3339Nano),
	}
}

// AccountCreatedEvent payload
type AccountCreatedEvent struct {
	AccountID string `json:"account_id"`
	Currency  string `json:"currency"`
}

// AccountStatusChangedEvent payload
type AccountStatusChangedEvent struct {
	AccountID string `json:"account_id"`
	From      string `json:"from"`
	To        string `json:"to"`
}
