// Package httpapi exposes the transfer ledger, escrow and identity services
// over HTTP. Routes are public for recording and lookups; everything touching
// agreements requires basic auth resolved through the identity service.
package httpapi

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gabapcia/escrowledger/internal/escrow"
	"github.com/gabapcia/escrowledger/internal/identity"
	"github.com/gabapcia/escrowledger/internal/pkg/logger"
	"github.com/gabapcia/escrowledger/internal/txledger"

	"github.com/go-chi/chi/v5"
)

// shutdownTimeout bounds how long in-flight requests may drain on Shutdown.
const shutdownTimeout = 10 * time.Second

// server holds the services the handlers dispatch to.
type server struct {
	ledger     txledger.Service
	agreements escrow.Service
	identities identity.Service

	httpServer *http.Server
}

// New assembles the router and returns a server listening on addr once
// Start is called.
func New(addr string, ledger txledger.Service, agreements escrow.Service, identities identity.Service) *server {
	s := &server{
		ledger:     ledger,
		agreements: agreements,
		identities: identities,
	}

	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           s.routes(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

// routes wires every endpoint with the shared middleware chain.
func (s *server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(requestID, requestLogger)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	r.Post("/transactions/record", s.recordTransaction)
	r.Get("/transactions/{address}", s.listTransactions)

	r.Post("/identities", s.registerIdentity)
	r.Get("/identities/{username}", s.getIdentity)

	r.Group(func(authed chi.Router) {
		authed.Use(basicAuth(s.identities))

		authed.Post("/agreements", s.createAgreement)
		authed.Get("/agreements", s.listAgreements)
		authed.Get("/agreements/{contractAddress}", s.getAgreement)
		authed.Put("/agreements/{contractAddress}/status", s.transitionAgreement)
	})

	return r
}

// Start serves until the listener fails or Shutdown is called.
func (s *server) Start(ctx context.Context) error {
	logger.Info(ctx, "http server listening", "addr", s.httpServer.Addr)

	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests and closes the listener.
func (s *server) Shutdown(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, shutdownTimeout)
	defer cancel()

	return s.httpServer.Shutdown(ctx)
}
