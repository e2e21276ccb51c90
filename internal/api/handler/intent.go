package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/solutions224/payments-core/internal/models"
	"github.com/solutions224/payments-core/internal/service"
)

// IntentHandler handles HTTP requests for the transaction queue.
type IntentHandler struct {
	queue *service.QueueService
}

// NewIntentHandler creates a new IntentHandler instance.
func NewIntentHandler(queue *service.QueueService) *IntentHandler {
	return &IntentHandler{queue: queue}
}

// CreateIntentRequest represents the request body for enqueueing an intent.
type CreateIntentRequest struct {
	Type     string               `json:"type"`
	Priority int32                `json:"priority"`
	Payload  models.IntentPayload `json:"payload"`
}

// CreateIntent handles POST /v1/intents.
// Validation failures are returned synchronously; accepted intents return
// 202 with the intent ID.
func (h *IntentHandler) CreateIntent(w http.ResponseWriter, r *http.Request) {
	var req CreateIntentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		RespondError(w, r, http.StatusBadRequest, "request/invalid-body", "Invalid request body")
		return
	}

	intent, err := h.queue.Enqueue(r.Context(), service.EnqueueCommand{
		Type:     req.Type,
		Payload:  req.Payload,
		Priority: req.Priority,
	})
	if err != nil {
		RespondDomainError(w, r, err)
		return
	}

	RespondJSON(w, http.StatusAccepted, map[string]interface{}{
		"intent_id": intent.ID,
		"status":    intent.Status,
	})
}

// GetIntent handles GET /v1/intents/{id}.
func (h *IntentHandler) GetIntent(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		RespondError(w, r, http.StatusBadRequest, "request/invalid-intent-id", "Invalid intent id")
		return
	}

	intent, err := h.queue.GetStatus(r.Context(), id)
	if err != nil {
		RespondDomainError(w, r, err)
		return
	}
	RespondJSON(w, http.StatusOK, intent)
}

// CancelIntent handles POST /v1/intents/{id}/cancel.
// Only intents still pending can be cancelled.
func (h *IntentHandler) CancelIntent(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		RespondError(w, r, http.StatusBadRequest, "request/invalid-intent-id", "Invalid intent id")
		return
	}

	if err := h.queue.Cancel(r.Context(), id); err != nil {
		RespondDomainError(w, r, err)
		return
	}
	RespondJSON(w, http.StatusOK, map[string]string{"status": "cancelled"})
}
