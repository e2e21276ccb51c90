package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/solutions224/payments-core/internal/models"
)

// AuditService writes immutable audit trail entries.
type AuditService struct {
	store AuditStore
}

func NewAuditService(store AuditStore) *AuditService {
	return &AuditService{store: store}
}

// Write stores a single immutable audit record.
func (s *AuditService) Write(ctx context.Context, entityType string, entityID uuid.UUID, fromStatus, toStatus, detail string) error {
	if err := s.store.InsertAuditLog(ctx, &models.AuditLog{
		ID:         uuid.New(),
		EntityType: entityType,
		EntityID:   entityID,
		FromStatus: fromStatus,
		ToStatus:   toStatus,
		Detail:     detail,
	}); err != nil {
		return fmt.Errorf("insert audit log: %w", err)
	}
	return nil
}
