package handler

import (
	"encoding/json"
	"net/http"

	"github.com/google/uuid"

	"github.com/solutions224/payments-core/internal/service"
)

type TransferHandler struct {
	svc *service.TransferService
}

func NewTransferHandler(svc *service.TransferService) *TransferHandler {
	return &TransferHandler{svc: svc}
}

// CreateTransferRequest represents the request body for a synchronous transfer.
type CreateTransferRequest struct {
	SenderWalletID   string `json:"sender_wallet_id"`
	ReceiverWalletID string `json:"receiver_wallet_id"`
	SenderUserID     string `json:"sender_user_id"`
	Amount           int64  `json:"amount"`
	Role             string `json:"role"`
	Description      string `json:"description"`
}

// MakeTransfer handles POST /v1/transfers.
// The Idempotency-Key is also the ledger reference, so a retried request
// can never move funds twice.
func (h *TransferHandler) MakeTransfer(w http.ResponseWriter, r *http.Request) {
	idempotencyKey := r.Header.Get("Idempotency-Key")
	if idempotencyKey == "" {
		RespondError(w, r, http.StatusBadRequest, "idempotency/missing-key", "Idempotency-Key header is required")
		return
	}

	var req CreateTransferRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		RespondError(w, r, http.StatusBadRequest, "request/invalid-body", "Invalid request body")
		return
	}

	senderID, err := uuid.Parse(req.SenderWalletID)
	if err != nil {
		RespondError(w, r, http.StatusBadRequest, "request/invalid-wallet-id", "Invalid sender_wallet_id")
		return
	}
	receiverID, err := uuid.Parse(req.ReceiverWalletID)
	if err != nil {
		RespondError(w, r, http.StatusBadRequest, "request/invalid-wallet-id", "Invalid receiver_wallet_id")
		return
	}
	userID, err := uuid.Parse(req.SenderUserID)
	if err != nil {
		RespondError(w, r, http.StatusBadRequest, "request/invalid-user-id", "Invalid sender_user_id")
		return
	}

	outcome, err := h.svc.Transfer(r.Context(), service.TransferCommand{
		SenderWalletID:   senderID,
		ReceiverWalletID: receiverID,
		SenderUserID:     userID,
		Amount:           req.Amount,
		Role:             req.Role,
		ReferenceID:      idempotencyKey,
		Description:      req.Description,
	})
	if err != nil {
		RespondDomainError(w, r, err)
		return
	}

	RespondJSON(w, http.StatusCreated, outcome)
}
