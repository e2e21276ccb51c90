package service

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/solutions224/payments-core/internal/domain"
)

var (
	ErrInvalidSignature = errors.New("invalid signature")
)

// WebhookService handles confirmation callbacks from the mobile-money
// provider. A mobile-money payment intent stays unsettled after handoff;
// the provider's callback is what completes or fails it.
type WebhookService struct {
	store   IntentStore
	audit   *AuditService
	hmacKey []byte
	skipSig bool
}

// NewWebhookService creates a new WebhookService instance.
func NewWebhookService(store IntentStore, audit *AuditService, hmacKey string, skipSignature bool) *WebhookService {
	return &WebhookService{
		store:   store,
		audit:   audit,
		hmacKey: []byte(hmacKey),
		skipSig: skipSignature,
	}
}

// ProviderCallbackPayload is the provider's settlement notification.
// Reference is the intent ID the payment was initiated with.
type ProviderCallbackPayload struct {
	Reference             string `json:"reference"`
	Status                string `json:"status"` // "success" or "failed"
	ProviderTransactionID string `json:"provider_transaction_id"`
	Reason                string `json:"reason,omitempty"`
}

// ProviderCallbackResponse reports the intent state after the callback.
type ProviderCallbackResponse struct {
	IntentID uuid.UUID `json:"intent_id"`
	Status   string    `json:"status"`
	Message  string    `json:"message"`
}

// HandleMobileMoneyCallback verifies the HMAC signature and settles the
// referenced intent. Replayed callbacks are answered from the intent's
// current state without re-applying anything.
func (s *WebhookService) HandleMobileMoneyCallback(ctx context.Context, payload []byte, signature string) (*ProviderCallbackResponse, error) {
	if !s.verifyHMAC(payload, signature) {
		return nil, ErrInvalidSignature
	}

	var callback ProviderCallbackPayload
	if err := json.Unmarshal(payload, &callback); err != nil {
		return nil, fmt.Errorf("invalid payload: %w", err)
	}
	callback.Reference = strings.TrimSpace(callback.Reference)
	callback.Status = strings.ToLower(strings.TrimSpace(callback.Status))

	if callback.Reference == "" {
		return nil, domain.NewValidation(domain.CodeInvalidAmount, "reference is required")
	}
	intentID, err := uuid.Parse(callback.Reference)
	if err != nil {
		return nil, domain.NewValidation(domain.CodeNotFound, "invalid reference: %q", callback.Reference)
	}

	intent, err := s.store.GetIntent(ctx, intentID)
	if err != nil {
		return nil, err
	}
	if intent.Type != domain.IntentTypePayment || intent.Payload.Method != domain.MethodMobileMoney {
		return nil, domain.NewValidation(domain.CodeUnsupportedMethod,
			"intent %s is not a mobile-money payment", intentID)
	}

	switch intent.Status {
	case domain.IntentStatusCompleted, domain.IntentStatusFailed, domain.IntentStatusCancelled:
		return &ProviderCallbackResponse{
			IntentID: intentID,
			Status:   intent.Status,
			Message:  "callback already processed",
		}, nil
	}

	switch callback.Status {
	case "success":
		if err := s.store.MarkCompleted(ctx, intentID); err != nil {
			return nil, fmt.Errorf("complete intent from callback: %w", err)
		}
		if err := s.audit.Write(ctx, "intent", intentID, intent.Status, domain.IntentStatusCompleted, callback.ProviderTransactionID); err != nil {
			zap.L().Error("failed to audit callback completion", zap.String("intent_id", intentID.String()), zap.Error(err))
		}
		return &ProviderCallbackResponse{
			IntentID: intentID,
			Status:   domain.IntentStatusCompleted,
			Message:  "payment confirmed",
		}, nil

	case "failed":
		if err := s.store.MarkFailed(ctx, intentID, intent.Attempts, domain.CodeNetworkError, callback.Reason); err != nil {
			return nil, fmt.Errorf("fail intent from callback: %w", err)
		}
		if err := s.audit.Write(ctx, "intent", intentID, intent.Status, domain.IntentStatusFailed, callback.Reason); err != nil {
			zap.L().Error("failed to audit callback failure", zap.String("intent_id", intentID.String()), zap.Error(err))
		}
		return &ProviderCallbackResponse{
			IntentID: intentID,
			Status:   domain.IntentStatusFailed,
			Message:  "payment declined by provider",
		}, nil

	default:
		return nil, domain.NewValidation(domain.CodeUnsupportedMethod, "unknown callback status: %q", callback.Status)
	}
}

// verifyHMAC verifies the HMAC signature of the payload.
func (s *WebhookService) verifyHMAC(payload []byte, signature string) bool {
	if s.skipSig {
		return true
	}
	if len(s.hmacKey) == 0 {
		return false
	}

	h := hmac.New(sha256.New, s.hmacKey)
	h.Write(payload)
	expectedSig := "sha256=" + hex.EncodeToString(h.Sum(nil))

	return hmac.Equal([]byte(signature), []byte(expectedSig))
}
