package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/solutions224/payments-core/internal/domain"
	"github.com/solutions224/payments-core/internal/models"
)

const escrowColumns = `id, payer_wallet_id, receiver_wallet_id, amount, currency, status, commission_amount, reference, released_at, refunded_at, created_at, updated_at`

func scanEscrow(row pgx.Row) (*models.EscrowTransaction, error) {
	esc := &models.EscrowTransaction{}
	err := row.Scan(&esc.ID, &esc.PayerWalletID, &esc.ReceiverWalletID, &esc.Amount, &esc.Currency,
		&esc.Status, &esc.CommissionAmount, &esc.Reference, &esc.ReleasedAt, &esc.RefundedAt,
		&esc.CreatedAt, &esc.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return esc, nil
}

func (s *Store) CreateEscrow(ctx context.Context, esc *models.EscrowTransaction) error {
	query := `INSERT INTO escrow_transactions (id, payer_wallet_id, receiver_wallet_id, amount, currency, status, commission_amount, reference, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, 0, $7, NOW(), NOW()) RETURNING created_at, updated_at`
	err := s.db.QueryRow(ctx, query, esc.ID, esc.PayerWalletID, esc.ReceiverWalletID,
		esc.Amount, esc.Currency, esc.Status, esc.Reference).
		Scan(&esc.CreatedAt, &esc.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create escrow: %w", err)
	}
	return nil
}

func (s *Store) GetEscrow(ctx context.Context, id uuid.UUID) (*models.EscrowTransaction, error) {
	row := s.db.QueryRow(ctx, `SELECT `+escrowColumns+` FROM escrow_transactions WHERE id = $1`, id)
	esc, err := scanEscrow(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get escrow: %w", err)
	}
	return esc, nil
}

// MarkReleased flips held to released. The WHERE clause is the compare and
// swap keeping released and refunded mutually exclusive.
func (s *Store) MarkReleased(ctx context.Context, id uuid.UUID, commission int64, at time.Time) (bool, error) {
	tag, err := s.db.Exec(ctx, `UPDATE escrow_transactions SET status = $1, commission_amount = $2, released_at = $3, updated_at = NOW() WHERE id = $4 AND status = $5`,
		domain.EscrowStatusReleased, commission, at, id, domain.EscrowStatusHeld)
	if err != nil {
		return false, fmt.Errorf("failed to release escrow: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (s *Store) MarkRefunded(ctx context.Context, id uuid.UUID, at time.Time) (bool, error) {
	tag, err := s.db.Exec(ctx, `UPDATE escrow_transactions SET status = $1, refunded_at = $2, updated_at = NOW() WHERE id = $3 AND status = $4`,
		domain.EscrowStatusRefunded, at, id, domain.EscrowStatusHeld)
	if err != nil {
		return false, fmt.Errorf("failed to refund escrow: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (s *Store) SumHeld(ctx context.Context) (int64, error) {
	var total int64
	err := s.db.QueryRow(ctx, `SELECT COALESCE(SUM(amount), 0) FROM escrow_transactions WHERE status = $1`,
		domain.EscrowStatusHeld).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("failed to sum held escrow: %w", err)
	}
	return total, nil
}

func (s *Store) ListByStatus(ctx context.Context, status string, limit int32) ([]models.EscrowTransaction, error) {
	rows, err := s.db.Query(ctx, `SELECT `+escrowColumns+` FROM escrow_transactions WHERE status = $1 ORDER BY created_at DESC LIMIT $2`,
		status, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list escrow: %w", err)
	}
	defer rows.Close()

	var escrows []models.EscrowTransaction
	for rows.Next() {
		esc, err := scanEscrow(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan escrow: %w", err)
		}
		escrows = append(escrows, *esc)
	}
	return escrows, rows.Err()
}
