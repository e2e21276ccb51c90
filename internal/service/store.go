package service

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/solutions224/payments-core/internal/models"
)

// IntentStore persists the durable transaction queue.
type IntentStore interface {
	CreateIntent(ctx context.Context, intent *models.TransferIntent) error
	GetIntent(ctx context.Context, id uuid.UUID) (*models.TransferIntent, error)

	// ClaimDue atomically marks up to limit due pending/retrying intents as
	// processing and returns them, highest priority first, oldest schedule
	// first. Concurrent claimers never receive the same intent.
	ClaimDue(ctx context.Context, now time.Time, limit int32) ([]models.TransferIntent, error)

	MarkCompleted(ctx context.Context, id uuid.UUID) error
	MarkRetrying(ctx context.Context, id uuid.UUID, attempts int32, nextAttempt time.Time, code, detail string) error
	MarkFailed(ctx context.Context, id uuid.UUID, attempts int32, code, detail string) error

	// CancelPending flips pending to cancelled and reports whether the
	// swap landed.
	CancelPending(ctx context.Context, id uuid.UUID) (bool, error)

	// RequeueProcessing returns claimed-but-unworked intents to retrying.
	RequeueProcessing(ctx context.Context, ids []uuid.UUID) error

	// SweepStaleProcessing returns intents stuck in processing since before
	// cutoff to retrying, and reports how many were swept.
	SweepStaleProcessing(ctx context.Context, cutoff time.Time) (int64, error)

	CountPending(ctx context.Context) (int64, error)
}

// EscrowStore persists escrow records. Rows are append-mostly: status flips
// forward through CAS updates and rows are never deleted.
type EscrowStore interface {
	CreateEscrow(ctx context.Context, esc *models.EscrowTransaction) error
	GetEscrow(ctx context.Context, id uuid.UUID) (*models.EscrowTransaction, error)

	// MarkReleased and MarkRefunded only succeed from held; they report
	// whether the swap landed.
	MarkReleased(ctx context.Context, id uuid.UUID, commission int64, at time.Time) (bool, error)
	MarkRefunded(ctx context.Context, id uuid.UUID, at time.Time) (bool, error)

	// SumHeld totals the amounts of all records still held.
	SumHeld(ctx context.Context) (int64, error)
	ListByStatus(ctx context.Context, status string, limit int32) ([]models.EscrowTransaction, error)
}

// LimitStore persists per-user caps and windowed usage counters.
type LimitStore interface {
	// GetTransferLimit returns nil when the user has no explicit row.
	GetTransferLimit(ctx context.Context, userID uuid.UUID) (*models.TransferLimit, error)
	GetUsage(ctx context.Context, userID uuid.UUID, dayKey, monthKey string) (models.LimitUsage, error)
	AddUsage(ctx context.Context, userID uuid.UUID, amount int64, dayKey, monthKey string) error
}

// AuditStore records immutable transition history.
type AuditStore interface {
	InsertAuditLog(ctx context.Context, log *models.AuditLog) error
}
