package ledger

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/solutions224/payments-core/internal/domain"
	"github.com/solutions224/payments-core/internal/models"
)

// InMemory is a Gateway backed by maps, for tests and local development.
// It honors the same idempotency and blocking semantics as the postgres
// implementation, and can be primed to fail for failure-path tests.
type InMemory struct {
	mu      sync.Mutex
	wallets map[uuid.UUID]*models.Wallet
	applied map[string]appliedOp

	// FailWith, when non-nil, is returned by the next mutation calls
	// until FailCount reaches zero (negative means fail forever).
	FailWith  error
	FailCount int
}

type appliedOp struct {
	hash   string
	result TransferResult
}

func NewInMemory() *InMemory {
	g := &InMemory{
		wallets: make(map[uuid.UUID]*models.Wallet),
		applied: make(map[string]appliedOp),
	}
	g.AddWallet(uuid.MustParse(domain.PlatformRevenueWalletID), domain.SystemUserID, 0)
	g.AddWallet(uuid.MustParse(domain.EscrowHoldingWalletID), domain.SystemUserID, 0)
	return g
}

// AddWallet registers an active wallet with a starting balance.
func (g *InMemory) AddWallet(id uuid.UUID, userID string, balance int64) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.wallets[id] = &models.Wallet{
		ID:        id,
		UserID:    uuid.MustParse(userID),
		Currency:  domain.CurrencyGNF,
		Balance:   balance,
		Status:    domain.WalletStatusActive,
		CreatedAt: time.Now().UTC(),
	}
}

// Block flips a wallet to blocked.
func (g *InMemory) Block(id uuid.UUID) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if w, ok := g.wallets[id]; ok {
		w.Status = domain.WalletStatusBlocked
	}
}

// Balance reads a wallet balance without going through GetWallet.
func (g *InMemory) Balance(id uuid.UUID) int64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	if w, ok := g.wallets[id]; ok {
		return w.Balance
	}
	return 0
}

func (g *InMemory) injectedFailure() error {
	if g.FailWith == nil || g.FailCount == 0 {
		return nil
	}
	if g.FailCount > 0 {
		g.FailCount--
	}
	return g.FailWith
}

func (g *InMemory) TransferWithFee(ctx context.Context, senderWalletID, receiverWalletID uuid.UUID, amount, fee int64, key string) (TransferResult, error) {
	if err := ctx.Err(); err != nil {
		return TransferResult{}, err
	}
	g.mu.Lock()
	defer g.mu.Unlock()

	if err := g.injectedFailure(); err != nil {
		return TransferResult{}, err
	}
	hash := payloadHash("transfer|", senderWalletID, "|", receiverWalletID, "|", amount, "|", fee)
	if op, ok := g.applied[key]; ok {
		if op.hash != hash {
			return TransferResult{}, domain.NewFatal(domain.CodeIdempotencyConflict, nil, "key %s reused with a different payload", key)
		}
		return op.result, nil
	}

	sender, ok := g.wallets[senderWalletID]
	if !ok {
		return TransferResult{}, domain.ErrWalletNotFound
	}
	receiver, ok := g.wallets[receiverWalletID]
	if !ok {
		return TransferResult{}, domain.ErrWalletNotFound
	}
	if sender.Status == domain.WalletStatusBlocked || receiver.Status == domain.WalletStatusBlocked {
		return TransferResult{}, domain.ErrWalletBlocked
	}
	if sender.Balance < amount+fee {
		return TransferResult{}, domain.ErrInsufficientFunds
	}

	sender.Balance -= amount + fee
	receiver.Balance += amount
	if fee > 0 {
		g.wallets[uuid.MustParse(domain.PlatformRevenueWalletID)].Balance += fee
	}

	result := TransferResult{NewSenderBalance: sender.Balance, NewReceiverBalance: receiver.Balance}
	g.applied[key] = appliedOp{hash: hash, result: result}
	return result, nil
}

func (g *InMemory) LookupTransfer(ctx context.Context, senderWalletID, receiverWalletID uuid.UUID, amount, fee int64, key string) (TransferResult, bool, error) {
	if err := ctx.Err(); err != nil {
		return TransferResult{}, false, err
	}
	g.mu.Lock()
	defer g.mu.Unlock()

	op, ok := g.applied[key]
	if !ok {
		return TransferResult{}, false, nil
	}
	hash := payloadHash("transfer|", senderWalletID, "|", receiverWalletID, "|", amount, "|", fee)
	if op.hash != hash {
		return TransferResult{}, false, domain.NewFatal(domain.CodeIdempotencyConflict, nil, "key %s reused with a different payload", key)
	}
	return op.result, true, nil
}

func (g *InMemory) IncrementBalance(ctx context.Context, walletID uuid.UUID, delta int64, key string) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	g.mu.Lock()
	defer g.mu.Unlock()

	if err := g.injectedFailure(); err != nil {
		return 0, err
	}
	hash := payloadHash("increment|", walletID, "|", delta)
	if op, ok := g.applied[key]; ok {
		if op.hash != hash {
			return 0, domain.NewFatal(domain.CodeIdempotencyConflict, nil, "key %s reused with a different payload", key)
		}
		return op.result.NewSenderBalance, nil
	}

	w, ok := g.wallets[walletID]
	if !ok {
		return 0, domain.ErrWalletNotFound
	}
	if w.Status == domain.WalletStatusBlocked {
		return 0, domain.ErrWalletBlocked
	}
	if w.Balance+delta < 0 {
		return 0, domain.ErrInsufficientFunds
	}

	w.Balance += delta
	g.applied[key] = appliedOp{hash: hash, result: TransferResult{NewSenderBalance: w.Balance}}
	return w.Balance, nil
}

func (g *InMemory) GetWallet(ctx context.Context, walletID uuid.UUID) (*models.Wallet, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	g.mu.Lock()
	defer g.mu.Unlock()

	w, ok := g.wallets[walletID]
	if !ok {
		return nil, domain.ErrWalletNotFound
	}
	copy := *w
	return &copy, nil
}
