package service

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/solutions224/payments-core/internal/domain"
	"github.com/solutions224/payments-core/internal/ledger"
	"github.com/solutions224/payments-core/internal/repository"
)

func newTransferFixture(t *testing.T) (*TransferService, *ledger.InMemory, *repository.Memory) {
	t.Helper()
	store := repository.NewMemory()
	gateway := ledger.NewInMemory()
	limits := NewLimitService(store, time.UTC, 1_000_000, 5_000_000)
	svc := NewTransferService(gateway, NewFeeCalculator(nil), limits)
	return svc, gateway, store
}

func TestTransferHappyPath(t *testing.T) {
	svc, gateway, _ := newTransferFixture(t)
	senderUser := uuid.New()
	sender := uuid.New()
	receiver := uuid.New()
	gateway.AddWallet(sender, senderUser.String(), 10_000)
	gateway.AddWallet(receiver, uuid.NewString(), 0)

	outcome, err := svc.Transfer(context.Background(), TransferCommand{
		SenderWalletID:   sender,
		ReceiverWalletID: receiver,
		SenderUserID:     senderUser,
		Amount:           5000,
		Role:             "merchant",
		ReferenceID:      "ref-happy",
	})
	require.NoError(t, err)

	// Merchant pricing: 2% of 5000 plus 100 fixed.
	assert.Equal(t, int64(200), outcome.Fee)
	assert.Equal(t, int64(4800), outcome.NewSenderBalance)
	assert.Equal(t, int64(4800), gateway.Balance(sender))
	assert.Equal(t, int64(5000), gateway.Balance(receiver))
	assert.Equal(t, int64(200), gateway.Balance(uuid.MustParse(domain.PlatformRevenueWalletID)))
}

func TestTransferIdempotentReplay(t *testing.T) {
	svc, gateway, _ := newTransferFixture(t)
	senderUser := uuid.New()
	sender := uuid.New()
	receiver := uuid.New()
	gateway.AddWallet(sender, senderUser.String(), 10_000)
	gateway.AddWallet(receiver, uuid.NewString(), 0)

	cmd := TransferCommand{
		SenderWalletID:   sender,
		ReceiverWalletID: receiver,
		SenderUserID:     senderUser,
		Amount:           2000,
		Role:             "client",
		ReferenceID:      "ref-replay",
	}

	first, err := svc.Transfer(context.Background(), cmd)
	require.NoError(t, err)
	second, err := svc.Transfer(context.Background(), cmd)
	require.NoError(t, err)

	assert.Equal(t, first.NewSenderBalance, second.NewSenderBalance)
	assert.Equal(t, int64(2000), gateway.Balance(receiver))
}

func TestTransferValidationGates(t *testing.T) {
	svc, gateway, store := newTransferFixture(t)
	senderUser := uuid.New()
	sender := uuid.New()
	receiver := uuid.New()
	blocked := uuid.New()
	gateway.AddWallet(sender, senderUser.String(), 10_000)
	gateway.AddWallet(receiver, uuid.NewString(), 0)
	gateway.AddWallet(blocked, uuid.NewString(), 0)
	gateway.Block(blocked)

	limitedUser := uuid.New()
	store.SetTransferLimit(limitedUser, 100, 100)

	base := TransferCommand{
		SenderWalletID:   sender,
		ReceiverWalletID: receiver,
		SenderUserID:     senderUser,
		Amount:           1000,
		Role:             "client",
		ReferenceID:      "ref-gate",
	}

	cases := []struct {
		name   string
		mutate func(*TransferCommand)
		code   string
	}{
		{
			name:   "non_positive_amount",
			mutate: func(c *TransferCommand) { c.Amount = 0 },
			code:   domain.CodeInvalidAmount,
		},
		{
			name:   "missing_reference",
			mutate: func(c *TransferCommand) { c.ReferenceID = "" },
			code:   domain.CodeInvalidAmount,
		},
		{
			name:   "self_transfer",
			mutate: func(c *TransferCommand) { c.ReceiverWalletID = sender },
			code:   domain.CodeSelfTransfer,
		},
		{
			name:   "receiver_not_found",
			mutate: func(c *TransferCommand) { c.ReceiverWalletID = uuid.New() },
			code:   domain.CodeReceiverNotFound,
		},
		{
			name:   "sender_not_found",
			mutate: func(c *TransferCommand) { c.SenderWalletID = uuid.New() },
			code:   domain.CodeNotFound,
		},
		{
			name:   "receiver_blocked",
			mutate: func(c *TransferCommand) { c.ReceiverWalletID = blocked },
			code:   domain.CodeWalletBlocked,
		},
		{
			name:   "limit_exceeded",
			mutate: func(c *TransferCommand) { c.SenderUserID = limitedUser },
			code:   domain.CodeLimitExceeded,
		},
		{
			name:   "insufficient_balance",
			mutate: func(c *TransferCommand) { c.Amount = 100_000 },
			code:   domain.CodeInsufficientBalance,
		},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			cmd := base
			tc.mutate(&cmd)
			_, err := svc.Transfer(context.Background(), cmd)
			require.Error(t, err)
			assert.Equal(t, tc.code, domain.CodeOf(err))
			assert.False(t, domain.IsRetryable(err))
		})
	}

	// No money moved on any refused path.
	assert.Equal(t, int64(10_000), gateway.Balance(sender))
	assert.Equal(t, int64(0), gateway.Balance(receiver))
}

func TestTransferBlockedSenderRefused(t *testing.T) {
	svc, gateway, _ := newTransferFixture(t)
	senderUser := uuid.New()
	sender := uuid.New()
	receiver := uuid.New()
	gateway.AddWallet(sender, senderUser.String(), 10_000)
	gateway.AddWallet(receiver, uuid.NewString(), 0)
	gateway.Block(sender)

	_, err := svc.Transfer(context.Background(), TransferCommand{
		SenderWalletID:   sender,
		ReceiverWalletID: receiver,
		SenderUserID:     senderUser,
		Amount:           1000,
		Role:             "client",
		ReferenceID:      "ref-blocked-sender",
	})
	require.Error(t, err)
	assert.Equal(t, domain.CodeWalletBlocked, domain.CodeOf(err))
}

func TestTransferRedeliveryAfterBalanceDrained(t *testing.T) {
	store := repository.NewMemory()
	gateway := ledger.NewInMemory()
	limits := NewLimitService(store, time.UTC, 1_000_000, 5_000_000)
	svc := NewTransferService(gateway, NewFeeCalculator(nil), limits)

	senderUser := uuid.New()
	sender := uuid.New()
	receiver := uuid.New()
	gateway.AddWallet(sender, senderUser.String(), 10_000)
	gateway.AddWallet(receiver, uuid.NewString(), 0)
	// The first application consumes the whole daily cap too.
	store.SetTransferLimit(senderUser, 9_000, 5_000_000)

	cmd := TransferCommand{
		SenderWalletID:   sender,
		ReceiverWalletID: receiver,
		SenderUserID:     senderUser,
		Amount:           9000,
		Role:             "client",
		ReferenceID:      "ref-drain",
	}

	first, err := svc.Transfer(context.Background(), cmd)
	require.NoError(t, err)
	require.Equal(t, int64(910), first.NewSenderBalance)

	// The remaining 910 covers neither the amount nor the limit check, but
	// a redelivered command must return the recorded outcome rather than
	// INSUFFICIENT_BALANCE or LIMIT_EXCEEDED.
	second, err := svc.Transfer(context.Background(), cmd)
	require.NoError(t, err)
	assert.Equal(t, first.NewSenderBalance, second.NewSenderBalance)
	assert.Equal(t, first.Fee, second.Fee)
	assert.Equal(t, int64(910), gateway.Balance(sender))
	assert.Equal(t, int64(9000), gateway.Balance(receiver))
}

func TestTransferReplayDoesNotDoubleCountUsage(t *testing.T) {
	store := repository.NewMemory()
	gateway := ledger.NewInMemory()
	limits := NewLimitService(store, time.UTC, 10_000_000, 50_000_000)
	svc := NewTransferService(gateway, NewFeeCalculator(nil), limits)

	senderUser := uuid.New()
	sender := uuid.New()
	receiver := uuid.New()
	gateway.AddWallet(sender, senderUser.String(), 100_000)
	gateway.AddWallet(receiver, uuid.NewString(), 0)

	cmd := TransferCommand{
		SenderWalletID:   sender,
		ReceiverWalletID: receiver,
		SenderUserID:     senderUser,
		Amount:           2000,
		Role:             "client",
		ReferenceID:      "ref-dup",
	}

	_, err := svc.Transfer(context.Background(), cmd)
	require.NoError(t, err)
	_, err = svc.Transfer(context.Background(), cmd)
	require.NoError(t, err)

	// Funds moved once, and the replayed success consumed no extra quota.
	assert.Equal(t, int64(2000), gateway.Balance(receiver))
	res, err := limits.Check(context.Background(), senderUser, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(10_000_000-2000), res.DailyRemaining)
}

func TestTransferRecordsLimitUsage(t *testing.T) {
	svc, gateway, store := newTransferFixture(t)
	senderUser := uuid.New()
	sender := uuid.New()
	receiver := uuid.New()
	gateway.AddWallet(sender, senderUser.String(), 1_000_000)
	gateway.AddWallet(receiver, uuid.NewString(), 0)
	store.SetTransferLimit(senderUser, 10_000, 10_000)

	_, err := svc.Transfer(context.Background(), TransferCommand{
		SenderWalletID:   sender,
		ReceiverWalletID: receiver,
		SenderUserID:     senderUser,
		Amount:           6000,
		Role:             "client",
		ReferenceID:      "ref-usage-1",
	})
	require.NoError(t, err)

	// 6000 of the 10000 daily cap is consumed; another 6000 must be refused.
	_, err = svc.Transfer(context.Background(), TransferCommand{
		SenderWalletID:   sender,
		ReceiverWalletID: receiver,
		SenderUserID:     senderUser,
		Amount:           6000,
		Role:             "client",
		ReferenceID:      "ref-usage-2",
	})
	require.Error(t, err)
	assert.Equal(t, domain.CodeLimitExceeded, domain.CodeOf(err))
}
