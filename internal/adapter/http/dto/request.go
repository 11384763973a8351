package dto

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/iho/ledgercore/internal/domain"
	"github.com/iho/ledgercore/internal/usecase"
)

// CreateAccountRequest represents a request to create an account.
type CreateAccountRequest struct {
	Currency             string `json:"currency"`
	AllowNegativeBalance bool   `json:"allow_negative_balance"`
}

// ToUseCaseInput converts to use case input.
func (r *CreateAccountRequest) ToUseCaseInput() usecase.CreateAccountInput {
	return usecase.CreateAccountInput{
		Currency:             r.Currency,
		AllowNegativeBalance: r.AllowNegativeBalance,
	}
}

// UpdateAccountStatusRequest freezes, unfreezes or closes an account.
type UpdateAccountStatusRequest struct {
	Status string `json:"status"`
}

// CreateTransferRequest represents a request to create a transfer.
// The idempotency key may be sent in the body or the Idempotency-Key header.
type CreateTransferRequest struct {
	Metadata          map[string]any `json:"metadata,omitempty"`
	IdempotencyKey    string         `json:"idempotency_key,omitempty"`
	SenderAccountID   string         `json:"sender_account_id"`
	ReceiverAccountID string         `json:"receiver_account_id"`
	Amount            string         `json:"amount"`
	Currency          string         `json:"currency"`
}

// ToUseCaseInput converts to use case input. headerKey wins over the body key
// when both are set.
func (r *CreateTransferRequest) ToUseCaseInput(headerKey string) (usecase.TransferInput, error) {
	amount, err := decimal.NewFromString(r.Amount)
	if err != nil {
		return usecase.TransferInput{}, fmt.Errorf("%w: %q", domain.ErrInvalidAmount, r.Amount)
	}

	key := r.IdempotencyKey
	if headerKey != "" {
		key = headerKey
	}

	return usecase.TransferInput{
		Metadata:          r.Metadata,
		IdempotencyKey:    key,
		SenderAccountID:   r.SenderAccountID,
		ReceiverAccountID: r.ReceiverAccountID,
		Currency:          r.Currency,
		Amount:            amount,
	}, nil
}
