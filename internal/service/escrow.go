package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/solutions224/payments-core/internal/domain"
	"github.com/solutions224/payments-core/internal/ledger"
	"github.com/solutions224/payments-core/internal/models"
	"github.com/solutions224/payments-core/internal/observability"
)

// HoldCommand opens an escrow: payer funds move into the escrow holding
// wallet until release or refund.
type HoldCommand struct {
	PayerWalletID    uuid.UUID
	ReceiverWalletID uuid.UUID
	Amount           int64
	Reference        string
}

// EscrowService drives the hold/release/refund lifecycle. All ledger
// movements carry keys derived from the escrow ID, so any step can be
// retried after a crash without double-moving funds.
type EscrowService struct {
	store   EscrowStore
	gateway ledger.Gateway
	audit   *AuditService
}

func NewEscrowService(store EscrowStore, gateway ledger.Gateway, audit *AuditService) *EscrowService {
	return &EscrowService{store: store, gateway: gateway, audit: audit}
}

func escrowWalletID() uuid.UUID {
	return uuid.MustParse(domain.EscrowHoldingWalletID)
}

// GetEscrow returns the current record.
func (s *EscrowService) GetEscrow(ctx context.Context, id uuid.UUID) (*models.EscrowTransaction, error) {
	return s.store.GetEscrow(ctx, id)
}

// CreateHold debits the payer and writes the held record. The debit runs
// first: no record may exist for a debit that failed. If the record write
// fails after the debit, the hold is reversed before returning.
func (s *EscrowService) CreateHold(ctx context.Context, cmd HoldCommand) (*models.EscrowTransaction, error) {
	if cmd.Amount <= 0 {
		return nil, domain.NewValidation(domain.CodeInvalidAmount, "amount must be positive, got %d", cmd.Amount)
	}
	if cmd.PayerWalletID == cmd.ReceiverWalletID {
		return nil, domain.NewValidation(domain.CodeSelfTransfer, "payer and receiver must differ")
	}

	escrowID := uuid.New()
	holdKey := fmt.Sprintf("escrow:%s:hold", escrowID)

	if _, err := s.gateway.TransferWithFee(ctx, cmd.PayerWalletID, escrowWalletID(), cmd.Amount, 0, holdKey); err != nil {
		return nil, fmt.Errorf("escrow hold %s: %w", escrowID, err)
	}

	esc := &models.EscrowTransaction{
		ID:               escrowID,
		PayerWalletID:    cmd.PayerWalletID,
		ReceiverWalletID: cmd.ReceiverWalletID,
		Amount:           cmd.Amount,
		Currency:         domain.CurrencyGNF,
		Status:           domain.EscrowStatusHeld,
		Reference:        cmd.Reference,
	}
	if err := s.store.CreateEscrow(ctx, esc); err != nil {
		// Funds are already in the holding wallet; send them back rather
		// than strand them behind a record that does not exist.
		if _, revErr := s.gateway.TransferWithFee(ctx, escrowWalletID(), cmd.PayerWalletID, cmd.Amount, 0, holdKey+":reverse"); revErr != nil {
			zap.L().Error("failed to reverse orphaned escrow hold",
				zap.String("escrow_id", escrowID.String()), zap.Error(revErr))
			return nil, domain.NewFatal(domain.CodeInvariantViolation, revErr,
				"escrow %s: record write and hold reversal both failed", escrowID)
		}
		return nil, fmt.Errorf("escrow record %s: %w", escrowID, err)
	}

	if err := s.audit.Write(ctx, "escrow", escrowID, "", domain.EscrowStatusHeld, cmd.Reference); err != nil {
		zap.L().Error("failed to audit escrow hold", zap.String("escrow_id", escrowID.String()), zap.Error(err))
	}
	observability.IncrementEscrowTransition(domain.EscrowStatusHeld)
	return esc, nil
}

// Release pays the receiver amount minus commission and the platform the
// commission, then flips the record to released. Re-releasing is a no-op;
// releasing a refunded escrow is an invariant violation.
func (s *EscrowService) Release(ctx context.Context, escrowID uuid.UUID, commissionPercent decimal.Decimal) (*models.EscrowTransaction, error) {
	esc, err := s.store.GetEscrow(ctx, escrowID)
	if err != nil {
		return nil, err
	}
	if esc.Status == domain.EscrowStatusReleased {
		return esc, nil
	}
	if !canTransitionEscrow(esc.Status, domain.EscrowStatusReleased) {
		return nil, domain.NewFatal(domain.CodeInvariantViolation, nil,
			"escrow %s cannot be released from %s", escrowID, esc.Status)
	}

	commission := domain.NewMoney(esc.Amount, esc.Currency).Percent(commissionPercent)
	if commission < 0 {
		commission = 0
	}
	if commission > esc.Amount {
		commission = esc.Amount
	}
	payout := esc.Amount - commission

	// Keys are derived from the escrow ID: replays after a crash between
	// the credits and the status flip cannot double-pay.
	if payout > 0 {
		releaseKey := fmt.Sprintf("escrow:%s:release", escrowID)
		if _, err := s.gateway.TransferWithFee(ctx, escrowWalletID(), esc.ReceiverWalletID, payout, 0, releaseKey); err != nil {
			return nil, fmt.Errorf("escrow release %s: %w", escrowID, err)
		}
	}
	if commission > 0 {
		feeKey := fmt.Sprintf("escrow:%s:release-fee", escrowID)
		if _, err := s.gateway.TransferWithFee(ctx, escrowWalletID(), uuid.MustParse(domain.PlatformRevenueWalletID), commission, 0, feeKey); err != nil {
			return nil, fmt.Errorf("escrow commission %s: %w", escrowID, err)
		}
	}

	return s.finishTransition(ctx, esc, domain.EscrowStatusReleased, func(at time.Time) (bool, error) {
		return s.store.MarkReleased(ctx, escrowID, commission, at)
	})
}

// Refund returns the full amount to the payer and flips the record to
// refunded. Re-refunding is a no-op; refunding a released escrow is an
// invariant violation.
func (s *EscrowService) Refund(ctx context.Context, escrowID uuid.UUID) (*models.EscrowTransaction, error) {
	esc, err := s.store.GetEscrow(ctx, escrowID)
	if err != nil {
		return nil, err
	}
	if esc.Status == domain.EscrowStatusRefunded {
		return esc, nil
	}
	if !canTransitionEscrow(esc.Status, domain.EscrowStatusRefunded) {
		return nil, domain.NewFatal(domain.CodeInvariantViolation, nil,
			"escrow %s cannot be refunded from %s", escrowID, esc.Status)
	}

	refundKey := fmt.Sprintf("escrow:%s:refund", escrowID)
	if _, err := s.gateway.TransferWithFee(ctx, escrowWalletID(), esc.PayerWalletID, esc.Amount, 0, refundKey); err != nil {
		return nil, fmt.Errorf("escrow refund %s: %w", escrowID, err)
	}

	return s.finishTransition(ctx, esc, domain.EscrowStatusRefunded, func(at time.Time) (bool, error) {
		return s.store.MarkRefunded(ctx, escrowID, at)
	})
}

// finishTransition lands the CAS status flip after the ledger credits. A
// swap that does not land means a concurrent caller got there first: if it
// reached the same terminal state the call is a no-op success, otherwise
// the terminals diverged and that is an invariant violation.
func (s *EscrowService) finishTransition(ctx context.Context, esc *models.EscrowTransaction, toStatus string, swap func(time.Time) (bool, error)) (*models.EscrowTransaction, error) {
	swapped, err := swap(time.Now().UTC())
	if err != nil {
		return nil, err
	}
	if !swapped {
		current, err := s.store.GetEscrow(ctx, esc.ID)
		if err != nil {
			return nil, err
		}
		if current.Status == toStatus {
			return current, nil
		}
		return nil, domain.NewFatal(domain.CodeInvariantViolation, nil,
			"escrow %s ledger credited for %s but record is %s", esc.ID, toStatus, current.Status)
	}

	if err := s.audit.Write(ctx, "escrow", esc.ID, domain.EscrowStatusHeld, toStatus, ""); err != nil {
		zap.L().Error("failed to audit escrow transition",
			zap.String("escrow_id", esc.ID.String()), zap.String("to", toStatus), zap.Error(err))
	}
	observability.IncrementEscrowTransition(toStatus)

	current, err := s.store.GetEscrow(ctx, esc.ID)
	if err != nil {
		return nil, err
	}
	return current, nil
}
