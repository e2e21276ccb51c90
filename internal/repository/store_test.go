package repository

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/solutions224/payments-core/internal/domain"
	"github.com/solutions224/payments-core/internal/models"
)

// setupTestDB connects to the Postgres instance named by DATABASE_URL,
// applies the migrations, and truncates the tables.
func setupTestDB(t *testing.T) *pgxpool.Pool {
	t.Helper()

	connString := os.Getenv("DATABASE_URL")
	if connString == "" {
		t.Skip("DATABASE_URL not set, skipping database-backed tests")
	}
	db, err := pgxpool.New(context.Background(), connString)
	if err != nil {
		t.Fatalf("failed to connect to DB: %v", err)
	}
	t.Cleanup(db.Close)

	ctx := context.Background()
	for _, file := range []string{"../../migrations/000001_init.up.sql", "../../migrations/000002_system_wallets.up.sql"} {
		sql, err := os.ReadFile(file)
		if err != nil {
			t.Fatalf("failed to read migration %s: %v", file, err)
		}
		if _, err := db.Exec(ctx, string(sql)); err != nil {
			t.Fatalf("failed to apply migration %s: %v", file, err)
		}
	}

	for _, table := range []string{"transfer_intents", "escrow_transactions", "transfer_limits", "limit_usage", "audit_logs", "ledger_operations", "idempotency_keys", "wallets"} {
		if _, err := db.Exec(ctx, "TRUNCATE TABLE "+table+" CASCADE"); err != nil {
			t.Fatalf("failed to truncate %s: %v", table, err)
		}
	}

	// Re-seed the system wallets the truncate removed.
	sql, err := os.ReadFile("../../migrations/000002_system_wallets.up.sql")
	if err != nil {
		t.Fatalf("failed to read system wallet seed: %v", err)
	}
	if _, err := db.Exec(ctx, string(sql)); err != nil {
		t.Fatalf("failed to seed system wallets: %v", err)
	}

	return db
}

func newDueIntent(priority int32, scheduledAt time.Time) *models.TransferIntent {
	return &models.TransferIntent{
		ID:     uuid.New(),
		Type:   domain.IntentTypeTransfer,
		Status: domain.IntentStatusPending,
		Payload: models.IntentPayload{
			SenderWalletID:   uuid.New(),
			ReceiverWalletID: uuid.New(),
			UserID:           uuid.New(),
			Amount:           1000,
			Currency:         domain.CurrencyGNF,
		},
		Priority:    priority,
		MaxAttempts: 3,
		ScheduledAt: scheduledAt,
	}
}

func TestIntentRoundTrip(t *testing.T) {
	db := setupTestDB(t)
	store := NewStore(db)
	ctx := context.Background()

	intent := newDueIntent(2, time.Now().UTC())
	require.NoError(t, store.CreateIntent(ctx, intent))

	got, err := store.GetIntent(ctx, intent.ID)
	require.NoError(t, err)
	assert.Equal(t, intent.ID, got.ID)
	assert.Equal(t, domain.IntentStatusPending, got.Status)
	assert.Equal(t, int32(2), got.Priority)
	assert.Equal(t, intent.Payload.SenderWalletID, got.Payload.SenderWalletID)
	assert.Equal(t, int64(1000), got.Payload.Amount)

	_, err = store.GetIntent(ctx, uuid.New())
	require.ErrorIs(t, err, domain.ErrNotFound)
}

func TestClaimDueOrderingAndStatusFlip(t *testing.T) {
	db := setupTestDB(t)
	store := NewStore(db)
	ctx := context.Background()
	now := time.Now().UTC()

	low := newDueIntent(0, now.Add(-2*time.Minute))
	high := newDueIntent(5, now.Add(-time.Minute))
	future := newDueIntent(9, now.Add(time.Hour))
	for _, intent := range []*models.TransferIntent{low, high, future} {
		require.NoError(t, store.CreateIntent(ctx, intent))
	}

	claimed, err := store.ClaimDue(ctx, now, 10)
	require.NoError(t, err)
	require.Len(t, claimed, 2, "future intent must not be claimed")
	assert.Equal(t, high.ID, claimed[0].ID, "higher priority first")
	assert.Equal(t, low.ID, claimed[1].ID)
	for _, intent := range claimed {
		assert.Equal(t, domain.IntentStatusProcessing, intent.Status)
	}

	// Claimed rows are not claimable again.
	again, err := store.ClaimDue(ctx, now, 10)
	require.NoError(t, err)
	assert.Empty(t, again)
}

func TestIntentStatusTransitions(t *testing.T) {
	db := setupTestDB(t)
	store := NewStore(db)
	ctx := context.Background()

	intent := newDueIntent(0, time.Now().UTC())
	require.NoError(t, store.CreateIntent(ctx, intent))

	next := time.Now().UTC().Add(5 * time.Second)
	require.NoError(t, store.MarkRetrying(ctx, intent.ID, 1, next, domain.CodeTimeout, "ledger timeout"))
	got, err := store.GetIntent(ctx, intent.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.IntentStatusRetrying, got.Status)
	assert.Equal(t, int32(1), got.Attempts)
	assert.Equal(t, domain.CodeTimeout, got.ErrorCode)

	require.NoError(t, store.MarkCompleted(ctx, intent.ID))
	got, err = store.GetIntent(ctx, intent.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.IntentStatusCompleted, got.Status)
	assert.Empty(t, got.ErrorCode)

	require.Error(t, store.MarkCompleted(ctx, uuid.New()), "unknown intent must not report success")
}

func TestCancelPendingCAS(t *testing.T) {
	db := setupTestDB(t)
	store := NewStore(db)
	ctx := context.Background()

	intent := newDueIntent(0, time.Now().UTC())
	require.NoError(t, store.CreateIntent(ctx, intent))

	cancelled, err := store.CancelPending(ctx, intent.ID)
	require.NoError(t, err)
	assert.True(t, cancelled)

	// Second cancel finds no pending row.
	cancelled, err = store.CancelPending(ctx, intent.ID)
	require.NoError(t, err)
	assert.False(t, cancelled)

	// A claimed intent cannot be cancelled.
	claimed := newDueIntent(0, time.Now().UTC().Add(-time.Minute))
	require.NoError(t, store.CreateIntent(ctx, claimed))
	_, err = store.ClaimDue(ctx, time.Now().UTC(), 10)
	require.NoError(t, err)
	cancelled, err = store.CancelPending(ctx, claimed.ID)
	require.NoError(t, err)
	assert.False(t, cancelled)
}

func TestSweepStaleProcessing(t *testing.T) {
	db := setupTestDB(t)
	store := NewStore(db)
	ctx := context.Background()

	intent := newDueIntent(0, time.Now().UTC().Add(-time.Minute))
	require.NoError(t, store.CreateIntent(ctx, intent))
	_, err := store.ClaimDue(ctx, time.Now().UTC(), 10)
	require.NoError(t, err)

	// Fresh processing rows are untouched.
	swept, err := store.SweepStaleProcessing(ctx, time.Now().UTC().Add(-2*time.Minute))
	require.NoError(t, err)
	assert.Zero(t, swept)

	// Age the claim as if the worker died mid-flight.
	_, err = db.Exec(ctx, "UPDATE transfer_intents SET updated_at = $1 WHERE id = $2",
		time.Now().UTC().Add(-3*time.Minute), intent.ID)
	require.NoError(t, err)

	swept, err = store.SweepStaleProcessing(ctx, time.Now().UTC().Add(-2*time.Minute))
	require.NoError(t, err)
	assert.Equal(t, int64(1), swept)

	got, err := store.GetIntent(ctx, intent.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.IntentStatusRetrying, got.Status)
}

func TestRequeueProcessing(t *testing.T) {
	db := setupTestDB(t)
	store := NewStore(db)
	ctx := context.Background()

	intent := newDueIntent(0, time.Now().UTC().Add(-time.Minute))
	require.NoError(t, store.CreateIntent(ctx, intent))
	_, err := store.ClaimDue(ctx, time.Now().UTC(), 10)
	require.NoError(t, err)

	require.NoError(t, store.RequeueProcessing(ctx, []uuid.UUID{intent.ID}))
	got, err := store.GetIntent(ctx, intent.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.IntentStatusRetrying, got.Status)

	require.NoError(t, store.RequeueProcessing(ctx, nil))
}

func TestEscrowCASTransitions(t *testing.T) {
	db := setupTestDB(t)
	store := NewStore(db)
	ctx := context.Background()

	esc := &models.EscrowTransaction{
		ID:               uuid.New(),
		PayerWalletID:    uuid.New(),
		ReceiverWalletID: uuid.New(),
		Amount:           20_000,
		Currency:         domain.CurrencyGNF,
		Status:           domain.EscrowStatusHeld,
		Reference:        "order-17",
	}
	require.NoError(t, store.CreateEscrow(ctx, esc))

	held, err := store.SumHeld(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(20_000), held)

	now := time.Now().UTC()
	swapped, err := store.MarkReleased(ctx, esc.ID, 1000, now)
	require.NoError(t, err)
	assert.True(t, swapped)

	// The record is no longer held: neither terminal swap can land again.
	swapped, err = store.MarkReleased(ctx, esc.ID, 1000, now)
	require.NoError(t, err)
	assert.False(t, swapped)
	swapped, err = store.MarkRefunded(ctx, esc.ID, now)
	require.NoError(t, err)
	assert.False(t, swapped)

	got, err := store.GetEscrow(ctx, esc.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.EscrowStatusReleased, got.Status)
	assert.Equal(t, int64(1000), got.CommissionAmount)
	require.NotNil(t, got.ReleasedAt)
	assert.Nil(t, got.RefundedAt)

	held, err = store.SumHeld(ctx)
	require.NoError(t, err)
	assert.Zero(t, held)

	released, err := store.ListByStatus(ctx, domain.EscrowStatusReleased, 10)
	require.NoError(t, err)
	require.Len(t, released, 1)
}

func TestTransferLimitsAndUsage(t *testing.T) {
	db := setupTestDB(t)
	store := NewStore(db)
	ctx := context.Background()
	userID := uuid.New()

	limit, err := store.GetTransferLimit(ctx, userID)
	require.NoError(t, err)
	assert.Nil(t, limit, "no row means defaults apply")

	_, err = db.Exec(ctx, "INSERT INTO transfer_limits (user_id, daily_cap, monthly_cap) VALUES ($1, $2, $3)",
		userID, int64(100_000), int64(500_000))
	require.NoError(t, err)

	limit, err = store.GetTransferLimit(ctx, userID)
	require.NoError(t, err)
	require.NotNil(t, limit)
	assert.Equal(t, int64(100_000), limit.DailyCap)

	require.NoError(t, store.AddUsage(ctx, userID, 5000, "2026-08-29", "2026-08"))
	require.NoError(t, store.AddUsage(ctx, userID, 3000, "2026-08-29", "2026-08"))

	usage, err := store.GetUsage(ctx, userID, "2026-08-29", "2026-08")
	require.NoError(t, err)
	assert.Equal(t, int64(8000), usage.DailyUsed)
	assert.Equal(t, int64(8000), usage.MonthlyUsed)

	// A different day in the same month keeps accruing monthly only.
	require.NoError(t, store.AddUsage(ctx, userID, 2000, "2026-08-30", "2026-08"))
	usage, err = store.GetUsage(ctx, userID, "2026-08-29", "2026-08")
	require.NoError(t, err)
	assert.Equal(t, int64(8000), usage.DailyUsed)
	assert.Equal(t, int64(10_000), usage.MonthlyUsed)
}

func TestAuditLogInsert(t *testing.T) {
	db := setupTestDB(t)
	store := NewStore(db)
	ctx := context.Background()

	log := &models.AuditLog{
		ID:         uuid.New(),
		EntityType: "escrow",
		EntityID:   uuid.New(),
		FromStatus: domain.EscrowStatusHeld,
		ToStatus:   domain.EscrowStatusReleased,
		Detail:     "order-17",
	}
	require.NoError(t, store.InsertAuditLog(ctx, log))

	var count int
	require.NoError(t, db.QueryRow(ctx, "SELECT COUNT(*) FROM audit_logs WHERE entity_id = $1", log.EntityID).Scan(&count))
	assert.Equal(t, 1, count)
}
