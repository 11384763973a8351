package domain

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// AccountStatus is the lifecycle state of an account.
type AccountStatus string

const (
	AccountStatusActive AccountStatus = "ACTIVE"
	AccountStatusFrozen AccountStatus = "FROZEN"
	AccountStatusClosed AccountStatus = "CLOSED"
)

// IsValid reports whether s is a known account status.
func (s AccountStatus) IsValid() bool {
	switch s {
	case AccountStatusActive, AccountStatusFrozen, AccountStatusClosed:
		return true
	}
	return false
}

// Account represents a ledger account that can hold a balance.
type Account struct {
	ID                   string
	Currency             string
	Balance              decimal.Decimal
	Status               AccountStatus
	Version              int64
	AllowNegativeBalance bool
	CreatedAt            time.Time
	UpdatedAt            time.Time
}

// IsUsable reports whether the account may take part in a transfer.
func (a *Account) IsUsable() bool {
	return a.Status == AccountStatusActive
}

// ValidateDebit checks if account can be debited by amount.
func (a *Account) ValidateDebit(amount decimal.Decimal) error {
	if !a.AllowNegativeBalance && a.Balance.LessThan(amount) {
		return ErrInsufficientFunds
	}
	if a.Balance.Sub(amount).LessThan(maxAmount.Neg()) {
		return fmt.Errorf("%w: account %s", ErrBalanceLimitExceeded, a.ID)
	}
	return nil
}

// ValidateCredit checks that crediting amount keeps the balance within
// NUMERIC(20,6).
func (a *Account) ValidateCredit(amount decimal.Decimal) error {
	if a.Balance.Add(amount).GreaterThan(maxAmount) {
		return fmt.Errorf("%w: account %s", ErrBalanceLimitExceeded, a.ID)
	}
	return nil
}

// ApplyDebit returns new balance after debit.
func (a *Account) ApplyDebit(amount decimal.Decimal) decimal.Decimal {
	return a.Balance.Sub(amount)
}

// ApplyCredit returns new balance after credit.
func (a *Account) ApplyCredit(amount decimal.Decimal) decimal.Decimal {
	return a.Balance.Add(amount)
}
