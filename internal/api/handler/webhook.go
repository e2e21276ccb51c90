package handler

import (
	"errors"
	"io"
	"net/http"

	"go.uber.org/zap"

	"github.com/solutions224/payments-core/internal/service"
)

// WebhookHandler handles confirmation callbacks from the mobile-money provider.
type WebhookHandler struct {
	webhookSvc *service.WebhookService
}

// NewWebhookHandler creates a new WebhookHandler instance.
func NewWebhookHandler(webhookSvc *service.WebhookService) *WebhookHandler {
	return &WebhookHandler{
		webhookSvc: webhookSvc,
	}
}

// HandleMobileMoneyCallback handles POST /v1/webhooks/mobile-money.
// It verifies the HMAC signature and settles the referenced payment intent.
func (h *WebhookHandler) HandleMobileMoneyCallback(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		zap.L().Error("read webhook body failed", zap.Error(err))
		RespondError(w, r, http.StatusBadRequest, "request/invalid-body", "Failed to read request body")
		return
	}

	signature := r.Header.Get("X-Webhook-Signature")

	resp, err := h.webhookSvc.HandleMobileMoneyCallback(r.Context(), body, signature)
	if err != nil {
		zap.L().Error("process mobile-money callback failed", zap.Error(err))
		if errors.Is(err, service.ErrInvalidSignature) {
			RespondError(w, r, http.StatusUnauthorized, "webhook/invalid-signature", "Invalid signature")
			return
		}
		RespondDomainError(w, r, err)
		return
	}

	RespondJSON(w, http.StatusOK, resp)
}
