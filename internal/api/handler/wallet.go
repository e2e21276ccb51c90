package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/solutions224/payments-core/internal/ledger"
)

// WalletHandler exposes read-only wallet state from the ledger.
type WalletHandler struct {
	gateway ledger.Gateway
}

func NewWalletHandler(gateway ledger.Gateway) *WalletHandler {
	return &WalletHandler{gateway: gateway}
}

// GetWallet handles GET /v1/wallets/{id}.
func (h *WalletHandler) GetWallet(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		RespondError(w, r, http.StatusBadRequest, "request/invalid-wallet-id", "Invalid wallet id")
		return
	}

	wallet, err := h.gateway.GetWallet(r.Context(), id)
	if err != nil {
		RespondDomainError(w, r, err)
		return
	}
	RespondJSON(w, http.StatusOK, wallet)
}
