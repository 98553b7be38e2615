package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gabapcia/escrowledger/internal/escrow"
	"github.com/gabapcia/escrowledger/internal/identity"
	"github.com/gabapcia/escrowledger/internal/pkg/logger"
	"github.com/gabapcia/escrowledger/internal/pkg/validator"
	"github.com/gabapcia/escrowledger/internal/transfer"
	"github.com/gabapcia/escrowledger/internal/txledger"
)

// errorResponse is the JSON body of every non-2xx answer.
type errorResponse struct {
	Error string `json:"error"`
}

// statusForError maps service errors onto HTTP status codes. Anything not in
// the table is an internal error and its text never reaches the client.
func statusForError(err error) int {
	switch {
	case errors.Is(err, validator.ErrValidationFailed):
		return http.StatusBadRequest
	case errors.Is(err, identity.ErrInvalidCredentials):
		return http.StatusUnauthorized
	case errors.Is(err, escrow.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, txledger.ErrTransactionNotFound),
		errors.Is(err, txledger.ErrTransferNotFound),
		errors.Is(err, escrow.ErrAgreementNotFound),
		errors.Is(err, identity.ErrIdentityNotFound):
		return http.StatusNotFound
	case errors.Is(err, escrow.ErrDuplicateAgreement),
		errors.Is(err, identity.ErrIdentityTaken):
		return http.StatusConflict
	case errors.Is(err, txledger.ErrTransactionPending),
		errors.Is(err, txledger.ErrTransactionFailed),
		errors.Is(err, transfer.ErrUnsupportedTokenContract),
		errors.Is(err, transfer.ErrMalformedTransferCall),
		errors.Is(err, escrow.ErrIllegalTransition):
		return http.StatusUnprocessableEntity
	case errors.Is(err, txledger.ErrOracleUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// writeJSON renders v as the response body with the given status.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		_ = json.NewEncoder(w).Encode(v)
	}
}

// writeError renders err with its mapped status. Internal errors are logged
// and replaced with a generic message.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusForError(err)

	message := err.Error()
	if status == http.StatusInternalServerError {
		logger.Error(r.Context(), "request failed",
			"method", r.Method,
			"path", r.URL.Path,
			"error", err,
		)
		message = "internal server error"
	}

	writeJSON(w, status, errorResponse{Error: message})
}
