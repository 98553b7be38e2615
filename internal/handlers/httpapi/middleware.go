package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/gabapcia/escrowledger/internal/identity"
	"github.com/gabapcia/escrowledger/internal/pkg/logger"

	"github.com/google/uuid"
)

type contextKey string

const (
	requestIDKey contextKey = "requestID"
	callerKey    contextKey = "caller"
)

// requestIDHeader carries the request id back to the client and accepts one
// from upstream proxies.
const requestIDHeader = "X-Request-Id"

// requestID assigns every request a uuid, reusing the one a proxy already
// attached.
func requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}

		w.Header().Set(requestIDHeader, id)
		ctx := context.WithValue(r.Context(), requestIDKey, id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// statusRecorder captures the status code a handler writes so the request
// logger can report it.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (rec *statusRecorder) WriteHeader(status int) {
	rec.status = status
	rec.ResponseWriter.WriteHeader(status)
}

// requestLogger emits one structured log line per request.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(rec, r)

		ctx := r.Context()
		logger.Info(ctx, "http request",
			"requestId", ctx.Value(requestIDKey),
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration", time.Since(start).String(),
		)
	})
}

// basicAuth authenticates the caller against the identity service and stores
// the resolved identity in the request context.
func basicAuth(identities identity.Service) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			username, secret, ok := r.BasicAuth()
			if !ok {
				w.Header().Set("WWW-Authenticate", `Basic realm="escrowledger"`)
				writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "missing credentials"})
				return
			}

			caller, err := identities.Authenticate(r.Context(), username, secret)
			if err != nil {
				writeError(w, r, err)
				return
			}

			ctx := context.WithValue(r.Context(), callerKey, caller)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// callerFrom returns the identity the basic auth middleware resolved.
func callerFrom(ctx context.Context) (identity.Identity, bool) {
	caller, ok := ctx.Value(callerKey).(identity.Identity)
	return caller, ok
}
