package dto

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/iho/ledgercore/internal/domain"
)

func TestAccountFromDomain(t *testing.T) {
	now := time.Now()
	account := &domain.Account{
		ID:        "acc-1",
		Currency:  "USD",
		Balance:   decimal.RequireFromString("123.45"),
		Status:    domain.AccountStatusFrozen,
		Version:   2,
		CreatedAt: now,
		UpdatedAt: now,
	}

	resp := AccountFromDomain(account)
	if resp.ID != account.ID || resp.Balance != "123.450000" || resp.Version != 2 || resp.Status != "FROZEN" {
		t.Fatalf("unexpected account response: %+v", resp)
	}

	list := AccountsFromDomain([]*domain.Account{account})
	if len(list) != 1 || list[0].ID != account.ID {
		t.Fatalf("AccountsFromDomain returned %+v", list)
	}
}

func TestTransactionFromDomain(t *testing.T) {
	now := time.Now()
	txn := &domain.Transaction{
		ID:                "txn-1",
		IdempotencyKey:    "k1",
		SenderAccountID:   "a",
		ReceiverAccountID: "b",
		Amount:            decimal.NewFromInt(500),
		Currency:          "USD",
		Status:            domain.TransactionStatusFailed,
		FailureReason:     "insufficient_funds",
		CreatedAt:         now,
		UpdatedAt:         now,
	}

	resp := TransactionFromDomain(txn)
	if resp.Amount != "500.000000" || resp.Status != "FAILED" || resp.FailureReason != "insufficient_funds" {
		t.Fatalf("unexpected transaction response: %+v", resp)
	}

	if list := TransactionsFromDomain([]*domain.Transaction{txn}); len(list) != 1 {
		t.Fatalf("TransactionsFromDomain returned %+v", list)
	}
}

func TestEntryFromDomain(t *testing.T) {
	entry := &domain.LedgerEntry{
		ID:            "e1",
		AccountID:     "a",
		TransactionID: "txn-1",
		EntryType:     domain.EntryTypeDebit,
		Amount:        decimal.NewFromInt(500),
		BalanceAfter:  decimal.NewFromInt(500),
		CreatedAt:     time.Now(),
	}

	resp := EntryFromDomain(entry)
	if resp.EntryType != string(domain.EntryTypeDebit) || resp.BalanceAfter != "500.000000" {
		t.Fatalf("unexpected entry response: %+v", resp)
	}
}
