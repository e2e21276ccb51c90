package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/solutions224/payments-core/internal/domain"
	"github.com/solutions224/payments-core/internal/models"
)

const intentColumns = `id, type, status, payload, priority, attempts, max_attempts, scheduled_at, error_code, error_detail, created_at, updated_at`

func scanIntent(row pgx.Row) (*models.TransferIntent, error) {
	intent := &models.TransferIntent{}
	var payload []byte
	err := row.Scan(&intent.ID, &intent.Type, &intent.Status, &payload, &intent.Priority,
		&intent.Attempts, &intent.MaxAttempts, &intent.ScheduledAt,
		&intent.ErrorCode, &intent.ErrorDetail, &intent.CreatedAt, &intent.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(payload, &intent.Payload); err != nil {
		return nil, fmt.Errorf("decode intent payload: %w", err)
	}
	return intent, nil
}

func (s *Store) CreateIntent(ctx context.Context, intent *models.TransferIntent) error {
	payload, err := json.Marshal(intent.Payload)
	if err != nil {
		return fmt.Errorf("encode intent payload: %w", err)
	}
	query := `INSERT INTO transfer_intents (id, type, status, payload, priority, attempts, max_attempts, scheduled_at, error_code, error_detail, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, '', '', NOW(), NOW()) RETURNING created_at, updated_at`
	err = s.db.QueryRow(ctx, query, intent.ID, intent.Type, intent.Status, payload,
		intent.Priority, intent.Attempts, intent.MaxAttempts, intent.ScheduledAt).
		Scan(&intent.CreatedAt, &intent.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create intent: %w", err)
	}
	return nil
}

func (s *Store) GetIntent(ctx context.Context, id uuid.UUID) (*models.TransferIntent, error) {
	row := s.db.QueryRow(ctx, `SELECT `+intentColumns+` FROM transfer_intents WHERE id = $1`, id)
	intent, err := scanIntent(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get intent: %w", err)
	}
	return intent, nil
}

// ClaimDue marks due intents processing and returns them. SKIP LOCKED keeps
// concurrent claimers from double-claiming a row.
func (s *Store) ClaimDue(ctx context.Context, now time.Time, limit int32) ([]models.TransferIntent, error) {
	query := `
		WITH due AS (
			SELECT id FROM transfer_intents
			WHERE status IN ($1, $2) AND scheduled_at <= $3
			ORDER BY priority DESC, scheduled_at ASC
			LIMIT $4
			FOR UPDATE SKIP LOCKED
		)
		UPDATE transfer_intents t
		SET status = $5, updated_at = NOW()
		FROM due
		WHERE t.id = due.id
		RETURNING t.` + intentColumns
	rows, err := s.db.Query(ctx, query,
		domain.IntentStatusPending, domain.IntentStatusRetrying, now,
		limit, domain.IntentStatusProcessing)
	if err != nil {
		return nil, fmt.Errorf("failed to claim intents: %w", err)
	}
	defer rows.Close()

	var claimed []models.TransferIntent
	for rows.Next() {
		intent, err := scanIntent(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan claimed intent: %w", err)
		}
		claimed = append(claimed, *intent)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to claim intents: %w", err)
	}
	// RETURNING does not preserve the CTE ordering.
	sort.SliceStable(claimed, func(i, j int) bool {
		if claimed[i].Priority != claimed[j].Priority {
			return claimed[i].Priority > claimed[j].Priority
		}
		return claimed[i].ScheduledAt.Before(claimed[j].ScheduledAt)
	})
	return claimed, nil
}

func (s *Store) MarkCompleted(ctx context.Context, id uuid.UUID) error {
	tag, err := s.db.Exec(ctx, `UPDATE transfer_intents SET status = $1, error_code = '', error_detail = '', updated_at = NOW() WHERE id = $2`,
		domain.IntentStatusCompleted, id)
	if err != nil {
		return fmt.Errorf("failed to complete intent: %w", err)
	}
	return requireExactlyOne(tag.RowsAffected(), "complete intent")
}

func (s *Store) MarkRetrying(ctx context.Context, id uuid.UUID, attempts int32, nextAttempt time.Time, code, detail string) error {
	tag, err := s.db.Exec(ctx, `UPDATE transfer_intents SET status = $1, attempts = $2, scheduled_at = $3, error_code = $4, error_detail = $5, updated_at = NOW() WHERE id = $6`,
		domain.IntentStatusRetrying, attempts, nextAttempt, code, detail, id)
	if err != nil {
		return fmt.Errorf("failed to reschedule intent: %w", err)
	}
	return requireExactlyOne(tag.RowsAffected(), "reschedule intent")
}

func (s *Store) MarkFailed(ctx context.Context, id uuid.UUID, attempts int32, code, detail string) error {
	tag, err := s.db.Exec(ctx, `UPDATE transfer_intents SET status = $1, attempts = $2, error_code = $3, error_detail = $4, updated_at = NOW() WHERE id = $5`,
		domain.IntentStatusFailed, attempts, code, detail, id)
	if err != nil {
		return fmt.Errorf("failed to fail intent: %w", err)
	}
	return requireExactlyOne(tag.RowsAffected(), "fail intent")
}

func (s *Store) CancelPending(ctx context.Context, id uuid.UUID) (bool, error) {
	tag, err := s.db.Exec(ctx, `UPDATE transfer_intents SET status = $1, updated_at = NOW() WHERE id = $2 AND status = $3`,
		domain.IntentStatusCancelled, id, domain.IntentStatusPending)
	if err != nil {
		return false, fmt.Errorf("failed to cancel intent: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (s *Store) RequeueProcessing(ctx context.Context, ids []uuid.UUID) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := s.db.Exec(ctx, `UPDATE transfer_intents SET status = $1, updated_at = NOW() WHERE id = ANY($2) AND status = $3`,
		domain.IntentStatusRetrying, ids, domain.IntentStatusProcessing)
	if err != nil {
		return fmt.Errorf("failed to requeue intents: %w", err)
	}
	return nil
}

func (s *Store) SweepStaleProcessing(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := s.db.Exec(ctx, `UPDATE transfer_intents SET status = $1, updated_at = NOW() WHERE status = $2 AND updated_at < $3`,
		domain.IntentStatusRetrying, domain.IntentStatusProcessing, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to sweep stale intents: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (s *Store) CountPending(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRow(ctx, `SELECT COUNT(*) FROM transfer_intents WHERE status IN ($1, $2)`,
		domain.IntentStatusPending, domain.IntentStatusRetrying).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count pending intents: %w", err)
	}
	return count, nil
}
