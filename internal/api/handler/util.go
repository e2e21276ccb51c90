package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/solutions224/payments-core/internal/api/problem"
	"github.com/solutions224/payments-core/internal/domain"
)

// RespondJSON writes a JSON response.
func RespondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// RespondError writes an error response.
func RespondError(w http.ResponseWriter, r *http.Request, status int, problemType, message string) {
	if problemType != "" && problemType != "about:blank" && !strings.HasPrefix(problemType, "http") {
		problemType = problem.Type(problemType)
	}
	problem.Write(w, r, status, problemType, http.StatusText(status), message)
}

// RespondDomainError maps coded domain errors onto HTTP statuses; anything
// uncoded is treated as an infrastructure failure.
func RespondDomainError(w http.ResponseWriter, r *http.Request, err error) {
	var coded *domain.Error
	if !errors.As(err, &coded) {
		RespondError(w, r, http.StatusServiceUnavailable, "internal/unavailable", "temporarily unable to process the request")
		return
	}

	status := http.StatusBadRequest
	switch coded.Code {
	case domain.CodeReceiverNotFound, domain.CodeNotFound:
		status = http.StatusNotFound
	case domain.CodeWalletBlocked:
		status = http.StatusForbidden
	case domain.CodeInsufficientBalance, domain.CodeLimitExceeded:
		status = http.StatusUnprocessableEntity
	case domain.CodeNotCancellable, domain.CodeIdempotencyConflict:
		status = http.StatusConflict
	case domain.CodeLedgerUnavailable, domain.CodeTimeout, domain.CodeNetworkError:
		status = http.StatusServiceUnavailable
	case domain.CodeInvariantViolation:
		status = http.StatusInternalServerError
	}
	RespondError(w, r, status, "error/"+strings.ToLower(strings.ReplaceAll(coded.Code, "_", "-")), coded.Message)
}
