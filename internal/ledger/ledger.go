// Package ledger is the single boundary through which wallet balances change.
// Callers describe the movement and supply an idempotency key; the gateway
// guarantees atomic application and replay safety.
package ledger

import (
	"context"

	"github.com/google/uuid"

	"github.com/solutions224/payments-core/internal/models"
)

// TransferResult reports the balances observed immediately after a transfer
// committed.
type TransferResult struct {
	NewSenderBalance   int64
	NewReceiverBalance int64
}

// Gateway mutates wallet balances. Every mutation takes an idempotency key:
// replaying a key returns the originally recorded outcome without moving
// funds again, and reusing a key for a different movement is an
// IDEMPOTENCY_CONFLICT.
type Gateway interface {
	// TransferWithFee atomically debits sender by amount+fee, credits
	// receiver by amount, and credits the platform revenue wallet by fee.
	TransferWithFee(ctx context.Context, senderWalletID, receiverWalletID uuid.UUID, amount, fee int64, key string) (TransferResult, error)

	// LookupTransfer returns the recorded outcome of an already-applied
	// key without moving funds. ok is false when the key is unused. A key
	// recorded for a different movement is an IDEMPOTENCY_CONFLICT.
	LookupTransfer(ctx context.Context, senderWalletID, receiverWalletID uuid.UUID, amount, fee int64, key string) (TransferResult, bool, error)

	// IncrementBalance applies a signed delta to one wallet. A negative
	// delta that would take the balance below zero fails with
	// INSUFFICIENT_BALANCE.
	IncrementBalance(ctx context.Context, walletID uuid.UUID, delta int64, key string) (int64, error)

	// GetWallet returns the wallet row, or RECEIVER_NOT_FOUND.
	GetWallet(ctx context.Context, walletID uuid.UUID) (*models.Wallet, error)
}
