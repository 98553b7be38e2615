package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
)

// registerIdentityRequest is the body of POST /identities.
type registerIdentityRequest struct {
	Username      string `json:"username"`
	Secret        string `json:"secret"`
	WalletAddress string `json:"walletAddress"`
}

func (s *server) registerIdentity(w http.ResponseWriter, r *http.Request) {
	var req registerIdentityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}

	registered, err := s.identities.Register(r.Context(), req.Username, req.Secret, req.WalletAddress)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, registered)
}

func (s *server) getIdentity(w http.ResponseWriter, r *http.Request) {
	found, err := s.identities.Lookup(r.Context(), chi.URLParam(r, "username"))
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, found)
}
