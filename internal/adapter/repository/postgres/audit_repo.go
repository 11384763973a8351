package postgres

import (
	"context"
	"fmt"

	"github.com/iho/ledgercore/internal/domain"
	"github.com/iho/ledgercore/internal/infrastructure/postgres/generated"
	"github.com/iho/ledgercore/internal/usecase"
)

// AuditRepository implements usecase.AuditRepository.
type AuditRepository struct {
	queries *generated.Queries
}

// NewAuditRepository creates a new audit repository.
func NewAuditRepository(db generated.DBTX) *AuditRepository {
	return &AuditRepository{queries: generated.New(db)}
}

// CreateTx inserts an audit log entry within tx so it commits or rolls back
// with the action it records.
func (r *AuditRepository) CreateTx(ctx context.Context, tx usecase.Tx, log *domain.AuditLog) error {
	queries, err := txQueries(tx)
	if err != nil {
		return err
	}

	before, err := marshalJSON(log.BeforeState)
	if err != nil {
		return fmt.Errorf("marshal before state: %w", err)
	}
	after, err := marshalJSON(log.AfterState)
	if err != nil {
		return fmt.Errorf("marshal after state: %w", err)
	}

	err = queries.CreateAuditLog(ctx, generated.CreateAuditLogParams{
		ID:           log.ID,
		Actor:        log.Actor,
		Action:       string(log.Action),
		ResourceType: log.ResourceType,
		ResourceID:   log.ResourceID,
		RequestID:    textOrNull(log.RequestID),
		BeforeState:  before,
		AfterState:   after,
		Status:       string(log.Status),
		ErrorMessage: textOrNull(log.ErrorMessage),
		CreatedAt:    timeToPgTimestamptz(log.CreatedAt),
	})

	return mapError(err)
}

// GetByResourceID retrieves the audit trail of a resource, oldest first.
func (r *AuditRepository) GetByResourceID(ctx context.Context, resourceType, resourceID string) ([]*domain.AuditLog, error) {
	rows, err := r.queries.GetAuditLogsByResource(ctx, generated.GetAuditLogsByResourceParams{
		ResourceType: resourceType,
		ResourceID:   resourceID,
	})
	if err != nil {
		return nil, mapError(err)
	}

	logs := make([]*domain.AuditLog, 0, len(rows))
	for _, row := range rows {
		logs = append(logs, &domain.AuditLog{
			ID:           row.ID,
			Actor:        row.Actor,
			Action:       domain.AuditAction(row.Action),
			ResourceType: row.ResourceType,
			ResourceID:   row.ResourceID,
			RequestID:    row.RequestID.String,
			BeforeState:  unmarshalJSON(row.BeforeState),
			AfterState:   unmarshalJSON(row.AfterState),
			Status:       domain.AuditStatus(row.Status),
			ErrorMessage: row.ErrorMessage.String,
			CreatedAt:    row.CreatedAt.Time,
		})
	}

	return logs, nil
}
