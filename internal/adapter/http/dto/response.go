package dto

import (
	"time"

	"github.com/iho/ledgercore/internal/domain"
)

// AccountResponse represents an account in API responses.
type AccountResponse struct {
	ID                   string    `json:"id"`
	Currency             string    `json:"currency"`
	Balance              string    `json:"balance"`
	Status               string    `json:"status"`
	Version              int64     `json:"version"`
	AllowNegativeBalance bool      `json:"allow_negative_balance"`
	CreatedAt            time.Time `json:"created_at"`
	UpdatedAt            time.Time `json:"updated_at"`
}

// AccountFromDomain converts domain account to response.
func AccountFromDomain(a *domain.Account) *AccountResponse {
	return &AccountResponse{
		ID:                   a.ID,
		Currency:             a.Currency,
		Balance:              a.Balance.StringFixed(domain.AmountScale),
		Status:               string(a.Status),
		Version:              a.Version,
		AllowNegativeBalance: a.AllowNegativeBalance,
		CreatedAt:            a.CreatedAt,
		UpdatedAt:            a.UpdatedAt,
	}
}

// AccountsFromDomain converts domain accounts to responses.
func AccountsFromDomain(accounts []*domain.Account) []*AccountResponse {
	result := make([]*AccountResponse, len(accounts))
	for i, a := range accounts {
		result[i] = AccountFromDomain(a)
	}
	return result
}

// ListAccountsResponse is a page of accounts.
type ListAccountsResponse struct {
	Accounts []*AccountResponse `json:"accounts"`
	Total    int64              `json:"total"`
}

// TransactionResponse represents a transfer transaction in API responses.
type TransactionResponse struct {
	ID                string         `json:"id"`
	IdempotencyKey    string         `json:"idempotency_key"`
	SenderAccountID   string         `json:"sender_account_id"`
	ReceiverAccountID string         `json:"receiver_account_id"`
	Amount            string         `json:"amount"`
	Currency          string         `json:"currency"`
	Status            string         `json:"status"`
	FailureReason     string         `json:"failure_reason,omitempty"`
	Metadata          map[string]any `json:"metadata,omitempty"`
	CreatedAt         time.Time      `json:"created_at"`
	UpdatedAt         time.Time      `json:"updated_at"`
}

// TransactionFromDomain converts a domain transaction to response.
func TransactionFromDomain(t *domain.Transaction) *TransactionResponse {
	return &TransactionResponse{
		ID:                t.ID,
		IdempotencyKey:    t.IdempotencyKey,
		SenderAccountID:   t.SenderAccountID,
		ReceiverAccountID: t.ReceiverAccountID,
		Amount:            t.Amount.StringFixed(domain.AmountScale),
		Currency:          t.Currency,
		Status:            string(t.Status),
		FailureReason:     t.FailureReason,
		Metadata:          t.Metadata,
		CreatedAt:         t.CreatedAt,
		UpdatedAt:         t.UpdatedAt,
	}
}

// TransactionsFromDomain converts domain transactions to responses.
func TransactionsFromDomain(txns []*domain.Transaction) []*TransactionResponse {
	result := make([]*TransactionResponse, len(txns))
	for i, t := range txns {
		result[i] = TransactionFromDomain(t)
	}
	return result
}

// EntryResponse represents a ledger entry in API responses.
type EntryResponse struct {
	ID            string    `json:"id"`
	AccountID     string    `json:"account_id"`
	TransactionID string    `json:"transaction_id"`
	EntryType     string    `json:"entry_type"`
	Amount        string    `json:"amount"`
	BalanceAfter  string    `json:"balance_after"`
	CreatedAt     time.Time `json:"created_at"`
}

// EntryFromDomain converts domain entry to response.
func EntryFromDomain(e *domain.LedgerEntry) *EntryResponse {
	return &EntryResponse{
		ID:            e.ID,
		AccountID:     e.AccountID,
		TransactionID: e.TransactionID,
		EntryType:     string(e.EntryType),
		Amount:        e.Amount.StringFixed(domain.AmountScale),
		BalanceAfter:  e.BalanceAfter.StringFixed(domain.AmountScale),
		CreatedAt:     e.CreatedAt,
	}
}

// EntriesFromDomain converts domain entries to responses.
func EntriesFromDomain(entries []*domain.LedgerEntry) []*EntryResponse {
	result := make([]*EntryResponse, len(entries))
	for i, e := range entries {
		result[i] = EntryFromDomain(e)
	}
	return result
}

// HistoricalBalanceResponse is an account balance as of a point in time.
type HistoricalBalanceResponse struct {
	AccountID string    `json:"account_id"`
	At        time.Time `json:"at"`
	Balance   string    `json:"balance"`
}

// ErrorResponse represents an error in API responses.
type ErrorResponse struct {
	Error     string `json:"error"`
	Message   string `json:"message,omitempty"`
	Retryable bool   `json:"retryable,omitempty"`
}
