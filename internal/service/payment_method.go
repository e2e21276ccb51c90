package service

import (
	"context"

	"github.com/solutions224/payments-core/internal/domain"
	"github.com/solutions224/payments-core/internal/models"
)

// PaymentCommand is a purchase or ride payment to be settled with one of
// the supported methods.
type PaymentCommand struct {
	Payload     models.IntentPayload
	ReferenceID string
}

// MobileMoneyProvider hands a payment off to the external mobile-money
// network. The provider confirms asynchronously through the webhook.
type MobileMoneyProvider interface {
	Initiate(ctx context.Context, reference string, amount int64) error
}

// PaymentMethodService dispatches a payment by method and resolves every
// path to the same PaymentResult shape. Wallet payments settle immediately
// through the transfer pipeline; mobile money stays pending until the
// provider confirms; cash is trust-based and recorded as paid awaiting the
// physical exchange.
type PaymentMethodService struct {
	transfers *TransferService
	provider  MobileMoneyProvider
}

func NewPaymentMethodService(transfers *TransferService, provider MobileMoneyProvider) *PaymentMethodService {
	return &PaymentMethodService{transfers: transfers, provider: provider}
}

func (s *PaymentMethodService) Execute(ctx context.Context, cmd PaymentCommand) (models.PaymentResult, error) {
	switch cmd.Payload.Method {
	case domain.MethodWallet:
		outcome, err := s.transfers.Transfer(ctx, TransferCommand{
			SenderWalletID:   cmd.Payload.SenderWalletID,
			ReceiverWalletID: cmd.Payload.ReceiverWalletID,
			SenderUserID:     cmd.Payload.UserID,
			Amount:           cmd.Payload.Amount,
			Role:             cmd.Payload.Role,
			ReferenceID:      cmd.ReferenceID,
			Description:      cmd.Payload.Description,
		})
		if err != nil {
			return models.PaymentResult{Status: domain.PaymentStatusFailed, Error: err.Error()}, err
		}
		return models.PaymentResult{Status: domain.PaymentStatusPaid, TransactionID: outcome.ReferenceID}, nil

	case domain.MethodMobileMoney:
		if err := s.provider.Initiate(ctx, cmd.ReferenceID, cmd.Payload.Amount); err != nil {
			return models.PaymentResult{Status: domain.PaymentStatusFailed, Error: err.Error()}, err
		}
		return models.PaymentResult{Status: domain.PaymentStatusPending, TransactionID: cmd.ReferenceID}, nil

	case domain.MethodCash:
		return models.PaymentResult{Status: domain.PaymentStatusPaid, TransactionID: cmd.ReferenceID}, nil

	default:
		err := domain.NewValidation(domain.CodeUnsupportedMethod, "unsupported payment method: %q", cmd.Payload.Method)
		return models.PaymentResult{Status: domain.PaymentStatusFailed, Error: err.Error()}, err
	}
}
