package usecase

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/iho/ledgercore/internal/domain"
)

// PolicyDecision is the verdict of a TransferPolicy.
type PolicyDecision int

const (
	// PolicyAllow lets the transfer move funds.
	PolicyAllow PolicyDecision = iota
	// PolicyFlag records the transfer as FLAGGED without moving funds.
	PolicyFlag
	// PolicyReject records the transfer as FAILED.
	PolicyReject
)

func (d PolicyDecision) String() string {
	switch d {
	case PolicyAllow:
		return "allow"
	case PolicyFlag:
		return "flag"
	case PolicyReject:
		return "reject"
	default:
		return "unknown"
	}
}

// PolicyInput is what a policy sees. Accounts are locked while it runs.
type PolicyInput struct {
	Sender         *domain.Account
	Receiver       *domain.Account
	Amount         decimal.Decimal
	Currency       string
	IdempotencyKey string
	Metadata       map[string]any
}

// TransferPolicy is consulted after validation and before the transaction row
// is written. An error aborts the attempt and rolls back.
type TransferPolicy interface {
	Evaluate(ctx context.Context, input PolicyInput) (PolicyDecision, error)
}

// AllowAll is the default policy.
type AllowAll struct{}

func (AllowAll) Evaluate(context.Context, PolicyInput) (PolicyDecision, error) {
	return PolicyAllow, nil
}

// ThresholdPolicy flags transfers strictly above Threshold.
type ThresholdPolicy struct {
	Threshold decimal.Decimal
}

func (p ThresholdPolicy) Evaluate(_ context.Context, input PolicyInput) (PolicyDecision, error) {
	if p.Threshold.IsPositive() && input.Amount.GreaterThan(p.Threshold) {
		return PolicyFlag, nil
	}
	return PolicyAllow, nil
}

// PolicyFunc adapts a function to TransferPolicy.
type PolicyFunc func(ctx context.Context, input PolicyInput) (PolicyDecision, error)

func (f PolicyFunc) Evaluate(ctx context.Context, input PolicyInput) (PolicyDecision, error) {
	return f(ctx, input)
}
