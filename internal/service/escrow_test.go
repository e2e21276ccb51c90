package service

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/solutions224/payments-core/internal/domain"
	"github.com/solutions224/payments-core/internal/ledger"
	"github.com/solutions224/payments-core/internal/models"
	"github.com/solutions224/payments-core/internal/repository"
)

func newEscrowFixture(t *testing.T) (*EscrowService, *ledger.InMemory, *repository.Memory) {
	t.Helper()
	store := repository.NewMemory()
	gateway := ledger.NewInMemory()
	svc := NewEscrowService(store, gateway, NewAuditService(store))
	return svc, gateway, store
}

func TestEscrowHoldMovesFundsIntoHolding(t *testing.T) {
	svc, gateway, _ := newEscrowFixture(t)
	payer := uuid.New()
	receiver := uuid.New()
	gateway.AddWallet(payer, uuid.NewString(), 50_000)
	gateway.AddWallet(receiver, uuid.NewString(), 0)

	esc, err := svc.CreateHold(context.Background(), HoldCommand{
		PayerWalletID:    payer,
		ReceiverWalletID: receiver,
		Amount:           20_000,
		Reference:        "ride-842",
	})
	require.NoError(t, err)
	assert.Equal(t, domain.EscrowStatusHeld, esc.Status)
	assert.Equal(t, int64(30_000), gateway.Balance(payer))
	assert.Equal(t, int64(20_000), gateway.Balance(uuid.MustParse(domain.EscrowHoldingWalletID)))
}

func TestEscrowHoldValidation(t *testing.T) {
	svc, gateway, _ := newEscrowFixture(t)
	payer := uuid.New()
	gateway.AddWallet(payer, uuid.NewString(), 1000)

	_, err := svc.CreateHold(context.Background(), HoldCommand{
		PayerWalletID:    payer,
		ReceiverWalletID: uuid.New(),
		Amount:           0,
	})
	require.Error(t, err)
	assert.Equal(t, domain.CodeInvalidAmount, domain.CodeOf(err))

	_, err = svc.CreateHold(context.Background(), HoldCommand{
		PayerWalletID:    payer,
		ReceiverWalletID: payer,
		Amount:           100,
	})
	require.Error(t, err)
	assert.Equal(t, domain.CodeSelfTransfer, domain.CodeOf(err))

	_, err = svc.CreateHold(context.Background(), HoldCommand{
		PayerWalletID:    payer,
		ReceiverWalletID: uuid.New(),
		Amount:           5000,
	})
	require.Error(t, err)
	assert.Equal(t, domain.CodeInsufficientBalance, domain.CodeOf(err))
	assert.Equal(t, int64(1000), gateway.Balance(payer))
}

func TestEscrowReleaseWithCommission(t *testing.T) {
	svc, gateway, _ := newEscrowFixture(t)
	payer := uuid.New()
	receiver := uuid.New()
	gateway.AddWallet(payer, uuid.NewString(), 50_000)
	gateway.AddWallet(receiver, uuid.NewString(), 0)

	esc, err := svc.CreateHold(context.Background(), HoldCommand{
		PayerWalletID:    payer,
		ReceiverWalletID: receiver,
		Amount:           20_000,
	})
	require.NoError(t, err)

	released, err := svc.Release(context.Background(), esc.ID, decimal.NewFromInt(5))
	require.NoError(t, err)
	assert.Equal(t, domain.EscrowStatusReleased, released.Status)
	assert.Equal(t, int64(1000), released.CommissionAmount)
	require.NotNil(t, released.ReleasedAt)

	assert.Equal(t, int64(19_000), gateway.Balance(receiver))
	assert.Equal(t, int64(1000), gateway.Balance(uuid.MustParse(domain.PlatformRevenueWalletID)))
	assert.Equal(t, int64(0), gateway.Balance(uuid.MustParse(domain.EscrowHoldingWalletID)))
}

func TestEscrowReleaseTwiceIsNoop(t *testing.T) {
	svc, gateway, _ := newEscrowFixture(t)
	payer := uuid.New()
	receiver := uuid.New()
	gateway.AddWallet(payer, uuid.NewString(), 50_000)
	gateway.AddWallet(receiver, uuid.NewString(), 0)

	esc, err := svc.CreateHold(context.Background(), HoldCommand{
		PayerWalletID:    payer,
		ReceiverWalletID: receiver,
		Amount:           10_000,
	})
	require.NoError(t, err)

	_, err = svc.Release(context.Background(), esc.ID, decimal.Zero)
	require.NoError(t, err)
	again, err := svc.Release(context.Background(), esc.ID, decimal.Zero)
	require.NoError(t, err)
	assert.Equal(t, domain.EscrowStatusReleased, again.Status)

	// The second release paid nothing.
	assert.Equal(t, int64(10_000), gateway.Balance(receiver))
}

func TestEscrowRefundReturnsFullAmount(t *testing.T) {
	svc, gateway, _ := newEscrowFixture(t)
	payer := uuid.New()
	receiver := uuid.New()
	gateway.AddWallet(payer, uuid.NewString(), 50_000)
	gateway.AddWallet(receiver, uuid.NewString(), 0)

	esc, err := svc.CreateHold(context.Background(), HoldCommand{
		PayerWalletID:    payer,
		ReceiverWalletID: receiver,
		Amount:           20_000,
	})
	require.NoError(t, err)

	refunded, err := svc.Refund(context.Background(), esc.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.EscrowStatusRefunded, refunded.Status)
	require.NotNil(t, refunded.RefundedAt)
	assert.Equal(t, int64(50_000), gateway.Balance(payer))
	assert.Equal(t, int64(0), gateway.Balance(receiver))
	assert.Equal(t, int64(0), gateway.Balance(uuid.MustParse(domain.EscrowHoldingWalletID)))
}

func TestEscrowCrossTerminalTransitionIsFatal(t *testing.T) {
	svc, gateway, _ := newEscrowFixture(t)
	payer := uuid.New()
	receiver := uuid.New()
	gateway.AddWallet(payer, uuid.NewString(), 50_000)
	gateway.AddWallet(receiver, uuid.NewString(), 0)

	esc, err := svc.CreateHold(context.Background(), HoldCommand{
		PayerWalletID:    payer,
		ReceiverWalletID: receiver,
		Amount:           20_000,
	})
	require.NoError(t, err)

	_, err = svc.Release(context.Background(), esc.ID, decimal.Zero)
	require.NoError(t, err)

	_, err = svc.Refund(context.Background(), esc.ID)
	require.Error(t, err)
	assert.Equal(t, domain.CodeInvariantViolation, domain.CodeOf(err))
	assert.True(t, domain.IsFatal(err))

	// No refund was paid out of the empty holding wallet.
	assert.Equal(t, int64(30_000), gateway.Balance(payer))
}

func TestEscrowCommissionClampedToAmount(t *testing.T) {
	svc, gateway, _ := newEscrowFixture(t)
	payer := uuid.New()
	receiver := uuid.New()
	gateway.AddWallet(payer, uuid.NewString(), 50_000)
	gateway.AddWallet(receiver, uuid.NewString(), 0)

	esc, err := svc.CreateHold(context.Background(), HoldCommand{
		PayerWalletID:    payer,
		ReceiverWalletID: receiver,
		Amount:           10_000,
	})
	require.NoError(t, err)

	released, err := svc.Release(context.Background(), esc.ID, decimal.NewFromInt(150))
	require.NoError(t, err)
	assert.Equal(t, int64(10_000), released.CommissionAmount)
	assert.Equal(t, int64(0), gateway.Balance(receiver))
	assert.Equal(t, int64(10_000), gateway.Balance(uuid.MustParse(domain.PlatformRevenueWalletID)))
}

// failingEscrowStore refuses record writes so the hold reversal path can be
// exercised.
type failingEscrowStore struct {
	*repository.Memory
}

func (f *failingEscrowStore) CreateEscrow(context.Context, *models.EscrowTransaction) error {
	return errors.New("record write failed")
}

func TestEscrowHoldReversedWhenRecordWriteFails(t *testing.T) {
	store := &failingEscrowStore{Memory: repository.NewMemory()}
	gateway := ledger.NewInMemory()
	svc := NewEscrowService(store, gateway, NewAuditService(store.Memory))

	payer := uuid.New()
	receiver := uuid.New()
	gateway.AddWallet(payer, uuid.NewString(), 50_000)
	gateway.AddWallet(receiver, uuid.NewString(), 0)

	_, err := svc.CreateHold(context.Background(), HoldCommand{
		PayerWalletID:    payer,
		ReceiverWalletID: receiver,
		Amount:           20_000,
	})
	require.Error(t, err)

	// Funds came back; nothing is stranded in the holding wallet.
	assert.Equal(t, int64(50_000), gateway.Balance(payer))
	assert.Equal(t, int64(0), gateway.Balance(uuid.MustParse(domain.EscrowHoldingWalletID)))
}

func TestEscrowAuditTrail(t *testing.T) {
	svc, gateway, store := newEscrowFixture(t)
	payer := uuid.New()
	receiver := uuid.New()
	gateway.AddWallet(payer, uuid.NewString(), 50_000)
	gateway.AddWallet(receiver, uuid.NewString(), 0)

	esc, err := svc.CreateHold(context.Background(), HoldCommand{
		PayerWalletID:    payer,
		ReceiverWalletID: receiver,
		Amount:           5000,
	})
	require.NoError(t, err)
	_, err = svc.Release(context.Background(), esc.ID, decimal.Zero)
	require.NoError(t, err)

	logs := store.AuditLogs()
	require.Len(t, logs, 2)
	assert.Equal(t, "escrow", logs[0].EntityType)
	assert.Equal(t, domain.EscrowStatusHeld, logs[0].ToStatus)
	assert.Equal(t, domain.EscrowStatusHeld, logs[1].FromStatus)
	assert.Equal(t, domain.EscrowStatusReleased, logs[1].ToStatus)
}
