package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/solutions224/payments-core/internal/domain"
	"github.com/solutions224/payments-core/internal/ledger"
	"github.com/solutions224/payments-core/internal/observability"
)

// ReconciliationService verifies escrow conservation invariants.
type ReconciliationService struct {
	store   EscrowStore
	gateway ledger.Gateway
}

// NewReconciliationService creates a reconciliation service.
func NewReconciliationService(store EscrowStore, gateway ledger.Gateway) *ReconciliationService {
	return &ReconciliationService{store: store, gateway: gateway}
}

// Run checks that the escrow holding wallet balance equals the sum of all
// held records, and that terminal records carry consistent stamps. Every
// franc held must be accounted for until it is released or refunded.
func (s *ReconciliationService) Run(ctx context.Context) error {
	heldTotal, err := s.store.SumHeld(ctx)
	if err != nil {
		return fmt.Errorf("sum held escrow: %w", err)
	}

	holding, err := s.gateway.GetWallet(ctx, uuid.MustParse(domain.EscrowHoldingWalletID))
	if err != nil {
		return fmt.Errorf("load escrow holding wallet: %w", err)
	}

	if holding.Balance != heldTotal {
		observability.IncrementConservationViolation("holding_balance")
		zap.L().Error("CRITICAL: escrow conservation violated",
			zap.Int64("holding_balance", holding.Balance),
			zap.Int64("held_total", heldTotal),
			zap.Int64("drift", holding.Balance-heldTotal))
		return nil
	}

	for _, status := range []string{domain.EscrowStatusReleased, domain.EscrowStatusRefunded} {
		records, err := s.store.ListByStatus(ctx, status, 500)
		if err != nil {
			zap.L().Error("failed to list escrow records", zap.String("status", status), zap.Error(err))
			continue
		}
		for _, esc := range records {
			switch status {
			case domain.EscrowStatusReleased:
				if esc.ReleasedAt == nil || esc.RefundedAt != nil || esc.CommissionAmount > esc.Amount {
					observability.IncrementConservationViolation("released_record")
					zap.L().Error("inconsistent released escrow record", zap.String("escrow_id", esc.ID.String()))
				}
			case domain.EscrowStatusRefunded:
				if esc.RefundedAt == nil || esc.ReleasedAt != nil {
					observability.IncrementConservationViolation("refunded_record")
					zap.L().Error("inconsistent refunded escrow record", zap.String("escrow_id", esc.ID.String()))
				}
			}
		}
	}

	zap.L().Info("escrow conservation holds", zap.Int64("held_total", heldTotal))
	return nil
}
