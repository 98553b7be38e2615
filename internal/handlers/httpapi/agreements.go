package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/gabapcia/escrowledger/internal/escrow"

	"github.com/go-chi/chi/v5"
)

// createAgreementRequest is the body of POST /agreements.
type createAgreementRequest struct {
	ContractAddress string `json:"contractAddress"`
	Depositor       string `json:"depositor"`
	Arbiter         string `json:"arbiter"`
	Beneficiary     string `json:"beneficiary"`
	Amount          string `json:"amount"`
	TokenKind       string `json:"token"`
	TokenAddress    string `json:"tokenAddress"`
}

// transitionAgreementRequest is the body of PUT /agreements/{contractAddress}/status.
type transitionAgreementRequest struct {
	Status          string `json:"status"`
	TransactionHash string `json:"transactionHash"`
}

func (s *server) createAgreement(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerFrom(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "missing credentials"})
		return
	}

	var req createAgreementRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}

	created, err := s.agreements.Create(r.Context(), escrow.CreateInput{
		ContractAddress: req.ContractAddress,
		Depositor:       req.Depositor,
		Arbiter:         req.Arbiter,
		Beneficiary:     req.Beneficiary,
		Amount:          req.Amount,
		TokenKind:       req.TokenKind,
		TokenAddress:    req.TokenAddress,
	}, caller.WalletAddress)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, created)
}

// listAgreements returns the agreements the authenticated caller participates
// in, each with its effective status.
func (s *server) listAgreements(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerFrom(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "missing credentials"})
		return
	}

	records, err := s.agreements.ListForParticipant(r.Context(), caller.WalletAddress)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, records)
}

func (s *server) getAgreement(w http.ResponseWriter, r *http.Request) {
	record, err := s.agreements.Get(r.Context(), chi.URLParam(r, "contractAddress"))
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, record)
}

func (s *server) transitionAgreement(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerFrom(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "missing credentials"})
		return
	}

	var req transitionAgreementRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}

	next, err := escrow.ParseStatus(req.Status)
	if err != nil {
		writeError(w, r, err)
		return
	}

	updated, err := s.agreements.Transition(r.Context(), chi.URLParam(r, "contractAddress"), next, req.TransactionHash, caller.WalletAddress)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, updated)
}
