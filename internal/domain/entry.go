package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// EntryType is the direction of a ledger entry.
type EntryType string

const (
	EntryTypeDebit  EntryType = "DEBIT"
	EntryTypeCredit EntryType = "CREDIT"
)

// LedgerEntry is one immutable balance movement of a transaction.
// Amount is always positive; EntryType carries the sign.
type LedgerEntry struct {
	CreatedAt     time.Time
	ID            string
	AccountID     string
	TransactionID string
	EntryType     EntryType
	Amount        decimal.Decimal
	BalanceAfter  decimal.Decimal
}

// SignedAmount returns -Amount for debits and +Amount for credits.
func (e *LedgerEntry) SignedAmount() decimal.Decimal {
	if e.EntryType == EntryTypeDebit {
		return e.Amount.Neg()
	}
	return e.Amount
}

// BalanceBefore returns the account balance before the entry was applied.
func (e *LedgerEntry) BalanceBefore() decimal.Decimal {
	return e.BalanceAfter.Sub(e.SignedAmount())
}

// SumSigned adds up the signed amounts of entries.
func SumSigned(entries []*LedgerEntry) decimal.Decimal {
	total := decimal.Zero
	for _, e := range entries {
		total = total.Add(e.SignedAmount())
	}
	return total
}
