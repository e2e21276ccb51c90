package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/solutions224/payments-core/internal/models"
)

func (s *Store) GetTransferLimit(ctx context.Context, userID uuid.UUID) (*models.TransferLimit, error) {
	limit := &models.TransferLimit{}
	err := s.db.QueryRow(ctx, `SELECT user_id, daily_cap, monthly_cap FROM transfer_limits WHERE user_id = $1`, userID).
		Scan(&limit.UserID, &limit.DailyCap, &limit.MonthlyCap)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get transfer limit: %w", err)
	}
	return limit, nil
}

// GetUsage totals the user's recorded volume for the given day and month
// windows. Missing rows read as zero.
func (s *Store) GetUsage(ctx context.Context, userID uuid.UUID, dayKey, monthKey string) (models.LimitUsage, error) {
	var usage models.LimitUsage
	err := s.db.QueryRow(ctx, `
		SELECT
			COALESCE(SUM(amount) FILTER (WHERE window_key = $2), 0),
			COALESCE(SUM(amount) FILTER (WHERE window_key = $3), 0)
		FROM limit_usage
		WHERE user_id = $1 AND window_key IN ($2, $3)`,
		userID, dayKey, monthKey).Scan(&usage.DailyUsed, &usage.MonthlyUsed)
	if err != nil {
		return models.LimitUsage{}, fmt.Errorf("failed to get limit usage: %w", err)
	}
	return usage, nil
}

// AddUsage bumps the day and month counters together so a crash between
// the two upserts cannot leave the windows out of step.
func (s *Store) AddUsage(ctx context.Context, userID uuid.UUID, amount int64, dayKey, monthKey string) error {
	return s.RunInTx(ctx, func(tx pgx.Tx) error {
		for _, key := range []string{dayKey, monthKey} {
			_, err := tx.Exec(ctx, `
				INSERT INTO limit_usage (user_id, window_key, amount, updated_at)
				VALUES ($1, $2, $3, NOW())
				ON CONFLICT (user_id, window_key)
				DO UPDATE SET amount = limit_usage.amount + EXCLUDED.amount, updated_at = NOW()`,
				userID, key, amount)
			if err != nil {
				return fmt.Errorf("failed to record limit usage: %w", err)
			}
		}
		return nil
	})
}
