package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/solutions224/payments-core/internal/service"
)

// EscrowHandler handles HTTP requests for the escrow lifecycle.
type EscrowHandler struct {
	svc *service.EscrowService
}

// NewEscrowHandler creates a new EscrowHandler instance.
func NewEscrowHandler(svc *service.EscrowService) *EscrowHandler {
	return &EscrowHandler{svc: svc}
}

// CreateEscrowRequest represents the request body for opening a hold.
type CreateEscrowRequest struct {
	PayerWalletID    string `json:"payer_wallet_id"`
	ReceiverWalletID string `json:"receiver_wallet_id"`
	Amount           int64  `json:"amount"`
	Reference        string `json:"reference"`
}

// CreateEscrow handles POST /v1/escrow.
func (h *EscrowHandler) CreateEscrow(w http.ResponseWriter, r *http.Request) {
	var req CreateEscrowRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		RespondError(w, r, http.StatusBadRequest, "request/invalid-body", "Invalid request body")
		return
	}

	payerID, err := uuid.Parse(req.PayerWalletID)
	if err != nil {
		RespondError(w, r, http.StatusBadRequest, "request/invalid-wallet-id", "Invalid payer_wallet_id")
		return
	}
	receiverID, err := uuid.Parse(req.ReceiverWalletID)
	if err != nil {
		RespondError(w, r, http.StatusBadRequest, "request/invalid-wallet-id", "Invalid receiver_wallet_id")
		return
	}

	esc, err := h.svc.CreateHold(r.Context(), service.HoldCommand{
		PayerWalletID:    payerID,
		ReceiverWalletID: receiverID,
		Amount:           req.Amount,
		Reference:        req.Reference,
	})
	if err != nil {
		RespondDomainError(w, r, err)
		return
	}
	RespondJSON(w, http.StatusCreated, esc)
}

// GetEscrow handles GET /v1/escrow/{id}.
func (h *EscrowHandler) GetEscrow(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		RespondError(w, r, http.StatusBadRequest, "request/invalid-escrow-id", "Invalid escrow id")
		return
	}

	esc, err := h.svc.GetEscrow(r.Context(), id)
	if err != nil {
		RespondDomainError(w, r, err)
		return
	}
	RespondJSON(w, http.StatusOK, esc)
}

// ReleaseEscrowRequest carries the commission taken at release time.
type ReleaseEscrowRequest struct {
	CommissionPercent string `json:"commission_percent"`
}

// ReleaseEscrow handles POST /v1/escrow/{id}/release.
// Releasing an already-released escrow is a no-op success.
func (h *EscrowHandler) ReleaseEscrow(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		RespondError(w, r, http.StatusBadRequest, "request/invalid-escrow-id", "Invalid escrow id")
		return
	}

	var req ReleaseEscrowRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		RespondError(w, r, http.StatusBadRequest, "request/invalid-body", "Invalid request body")
		return
	}
	pct := decimal.Zero
	if req.CommissionPercent != "" {
		pct, err = decimal.NewFromString(req.CommissionPercent)
		if err != nil || pct.IsNegative() {
			RespondError(w, r, http.StatusBadRequest, "request/invalid-commission", "commission_percent must be a non-negative decimal")
			return
		}
	}

	esc, err := h.svc.Release(r.Context(), id, pct)
	if err != nil {
		RespondDomainError(w, r, err)
		return
	}
	RespondJSON(w, http.StatusOK, esc)
}

// RefundEscrow handles POST /v1/escrow/{id}/refund.
// Refunding an already-refunded escrow is a no-op success.
func (h *EscrowHandler) RefundEscrow(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		RespondError(w, r, http.StatusBadRequest, "request/invalid-escrow-id", "Invalid escrow id")
		return
	}

	esc, err := h.svc.Refund(r.Context(), id)
	if err != nil {
		RespondDomainError(w, r, err)
		return
	}
	RespondJSON(w, http.StatusOK, esc)
}
