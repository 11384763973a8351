package domain

import (
	"encoding/json"
	"time"
)

// AuditLog is an immutable record of a financial action.
type AuditLog struct {
	ID           string
	Actor        string // Who performed the action
	Action       AuditAction
	ResourceType string // transaction, account
	ResourceID   string
	RequestID    string // Request ID for tracing
	BeforeState  JSON
	AfterState   JSON
	Status       AuditStatus
	ErrorMessage string
	CreatedAt    time.Time
}

// JSON is a type alias for JSON data
type JSON map[string]any

// AuditAction represents different types of auditable actions
type AuditAction string

const (
	AuditActionTransfer            AuditAction = "transaction.transfer"
	AuditActionTransactionExpire   AuditAction = "transaction.expire"
	AuditActionAccountCreate       AuditAction = "account.create"
	AuditActionAccountStatusChange AuditAction = "account.status_change"
)

// AuditStatus represents the status of an audited action
type AuditStatus string

const (
	AuditStatusSuccess AuditStatus = "success"
	AuditStatusFailure AuditStatus = "failure"
	AuditStatusFlagged AuditStatus = "flagged"
)

// AuditStatusFor maps a settled transaction status to an audit status.
func AuditStatusFor(status TransactionStatus) AuditStatus {
	switch status {
	case TransactionStatusSuccess:
		return AuditStatusSuccess
	case TransactionStatusFlagged:
		return AuditStatusFlagged
	default:
		return AuditStatusFailure
	}
}

// MarshalState converts a domain object to JSON for audit logging
func MarshalState(v any) JSON {
	if v == nil {
		return nil
	}

	data, err := json.Marshal(v)
	if err != nil {
		return JSON{"error": "failed to marshal state"}
	}

	var result JSON
	if err := json.Unmarshal(data, &result); err != nil {
		return JSON{"error": "failed to unmarshal state"}
	}

	return result
}

// AuditFilter defines filters for querying audit logs
type AuditFilter struct {
	Actor        string
	Action       string
	ResourceType string
	ResourceID   string
	StartDate    *time.Time
	EndDate      *time.Time
	Limit        int
	Offset       int
}
