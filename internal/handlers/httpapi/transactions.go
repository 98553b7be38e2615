package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
)

// recordTransactionRequest is the body of POST /transactions/record.
type recordTransactionRequest struct {
	TxHash string `json:"txHash"`
}

// recordTransaction verifies the transaction on chain and persists it.
// Recording is idempotent: the first caller gets 201, every repeat gets 200
// with the identical stored record.
func (s *server) recordTransaction(w http.ResponseWriter, r *http.Request) {
	var req recordTransactionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}

	record, created, err := s.ledger.Record(r.Context(), req.TxHash)
	if err != nil {
		writeError(w, r, err)
		return
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	writeJSON(w, status, record)
}

// listTransactions returns every recorded transfer the address took part in.
func (s *server) listTransactions(w http.ResponseWriter, r *http.Request) {
	records, err := s.ledger.FindByParticipant(r.Context(), chi.URLParam(r, "address"))
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, records)
}
