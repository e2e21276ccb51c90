package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/solutions224/payments-core/internal/domain"
	"github.com/solutions224/payments-core/internal/ledger"
)

// TransferCommand describes one wallet-to-wallet transfer. ReferenceID is
// the idempotency key for the ledger mutation; re-submitting the same
// command with the same reference cannot move funds twice.
type TransferCommand struct {
	SenderWalletID   uuid.UUID
	ReceiverWalletID uuid.UUID
	SenderUserID     uuid.UUID
	Amount           int64
	Role             string
	ReferenceID      string
	Description      string
}

// TransferOutcome is returned to the caller after the ledger commit.
type TransferOutcome struct {
	ReferenceID      string `json:"reference_id"`
	Amount           int64  `json:"amount"`
	Fee              int64  `json:"fee"`
	NewSenderBalance int64  `json:"new_sender_balance"`
}

// TransferService sequences the gates in front of the ledger: validation,
// fees, replay lookup, receiver existence, limits, balance, then the single
// ledger call.
type TransferService struct {
	gateway ledger.Gateway
	fees    *FeeCalculator
	limits  *LimitService
}

func NewTransferService(gateway ledger.Gateway, fees *FeeCalculator, limits *LimitService) *TransferService {
	return &TransferService{gateway: gateway, fees: fees, limits: limits}
}

func (s *TransferService) Transfer(ctx context.Context, cmd TransferCommand) (*TransferOutcome, error) {
	if cmd.Amount <= 0 {
		return nil, domain.NewValidation(domain.CodeInvalidAmount, "amount must be positive, got %d", cmd.Amount)
	}
	if cmd.ReferenceID == "" {
		return nil, domain.NewValidation(domain.CodeInvalidAmount, "reference_id is required")
	}
	if cmd.SenderWalletID == cmd.ReceiverWalletID {
		return nil, domain.NewValidation(domain.CodeSelfTransfer, "cannot transfer to the same wallet")
	}

	breakdown, err := s.fees.Calculate(cmd.Role, cmd.Amount)
	if err != nil {
		return nil, err
	}

	// A redelivered command must replay the recorded outcome before any
	// gate runs: the first application may have drained the balance or
	// limit headroom the gates would now re-check, and a replayed
	// success must not consume quota again.
	replay, applied, err := s.gateway.LookupTransfer(ctx, cmd.SenderWalletID, cmd.ReceiverWalletID,
		cmd.Amount, breakdown.Fee, cmd.ReferenceID)
	if err != nil {
		return nil, err
	}
	if applied {
		return &TransferOutcome{
			ReferenceID:      cmd.ReferenceID,
			Amount:           cmd.Amount,
			Fee:              breakdown.Fee,
			NewSenderBalance: replay.NewSenderBalance,
		}, nil
	}

	receiver, err := s.gateway.GetWallet(ctx, cmd.ReceiverWalletID)
	if err != nil {
		return nil, err
	}
	if receiver.Status == domain.WalletStatusBlocked {
		return nil, domain.ErrWalletBlocked
	}

	if err := s.limits.Enforce(ctx, cmd.SenderUserID, cmd.Amount); err != nil {
		return nil, err
	}

	sender, err := s.gateway.GetWallet(ctx, cmd.SenderWalletID)
	if errors.Is(err, domain.ErrWalletNotFound) {
		return nil, domain.NewValidation(domain.CodeNotFound, "sender wallet %s not found", cmd.SenderWalletID)
	}
	if err != nil {
		return nil, err
	}
	if sender.Status == domain.WalletStatusBlocked {
		return nil, domain.ErrWalletBlocked
	}
	if sender.Balance < breakdown.Total {
		return nil, domain.ErrInsufficientFunds
	}

	result, err := s.gateway.TransferWithFee(ctx, cmd.SenderWalletID, cmd.ReceiverWalletID,
		cmd.Amount, breakdown.Fee, cmd.ReferenceID)
	if err != nil {
		return nil, fmt.Errorf("transfer %s: %w", cmd.ReferenceID, err)
	}

	// Usage recording is off the money path: a failure here must not fail
	// a transfer that already committed.
	if err := s.limits.Record(ctx, cmd.SenderUserID, cmd.Amount); err != nil {
		zap.L().Error("failed to record limit usage",
			zap.String("reference_id", cmd.ReferenceID),
			zap.String("user_id", cmd.SenderUserID.String()),
			zap.Error(err))
	}

	return &TransferOutcome{
		ReferenceID:      cmd.ReferenceID,
		Amount:           cmd.Amount,
		Fee:              breakdown.Fee,
		NewSenderBalance: result.NewSenderBalance,
	}, nil
}
