package usecase

import (
	"context"
	"fmt"
	"sort"

	"github.com/iho/ledgercore/internal/domain"
)

// AccountLocker acquires exclusive locks on the two accounts of a transfer.
// Locks are taken in ascending id order so that concurrent transfers over the
// same pair in opposite directions cannot deadlock. They are released when tx
// commits or rolls back.
type AccountLocker struct {
	accountRepo AccountRepository
}

// NewAccountLocker creates a new AccountLocker.
func NewAccountLocker(accountRepo AccountRepository) *AccountLocker {
	return &AccountLocker{accountRepo: accountRepo}
}

// LockPair locks sender and receiver and returns their current state.
// When an account is missing or not ACTIVE the accounts that were found are
// still returned together with the rejection error.
func (l *AccountLocker) LockPair(ctx context.Context, tx Tx, senderID, receiverID string) (*domain.Account, *domain.Account, error) {
	ids := []string{senderID, receiverID}
	sort.Strings(ids)

	accounts, err := l.accountRepo.GetByIDsForUpdate(ctx, tx, ids)
	if err != nil {
		return nil, nil, fmt.Errorf("lock accounts: %w", err)
	}

	var sender, receiver *domain.Account
	for _, a := range accounts {
		switch a.ID {
		case senderID:
			sender = a
		case receiverID:
			receiver = a
		}
	}

	if sender == nil {
		return sender, receiver, &domain.AccountNotFoundError{Side: domain.SideSender, AccountID: senderID}
	}
	if receiver == nil {
		return sender, receiver, &domain.AccountNotFoundError{Side: domain.SideReceiver, AccountID: receiverID}
	}
	if !sender.IsUsable() {
		return sender, receiver, &domain.AccountNotUsableError{Side: domain.SideSender, AccountID: senderID, Status: sender.Status}
	}
	if !receiver.IsUsable() {
		return sender, receiver, &domain.AccountNotUsableError{Side: domain.SideReceiver, AccountID: receiverID, Status: receiver.Status}
	}

	return sender, receiver, nil
}
