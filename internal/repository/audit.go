package repository

import (
	"context"
	"fmt"

	"github.com/solutions224/payments-core/internal/models"
)

func (s *Store) InsertAuditLog(ctx context.Context, log *models.AuditLog) error {
	query := `INSERT INTO audit_logs (id, entity_type, entity_id, from_status, to_status, detail, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW()) RETURNING created_at`
	err := s.db.QueryRow(ctx, query, log.ID, log.EntityType, log.EntityID,
		log.FromStatus, log.ToStatus, log.Detail).Scan(&log.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert audit log: %w", err)
	}
	return nil
}
