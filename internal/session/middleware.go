package session

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"
)

type ctxKey int

const identityKey ctxKey = iota

// IdentityFromContext returns the identity stored by the auth middleware.
func IdentityFromContext(ctx context.Context) (*Identity, bool) {
	id, ok := ctx.Value(identityKey).(*Identity)
	return id, ok
}

// WithIdentity returns a context carrying the identity. Exposed for handler
// tests.
func WithIdentity(ctx context.Context, id *Identity) context.Context {
	return context.WithValue(ctx, identityKey, id)
}

// Middleware authenticates the Authorization header via the Guard and stores
// the identity in the request context. Failures terminate the request with
// a JSON {"error": code} body.
func Middleware(guard *Guard, logger *zap.SugaredLogger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			identity, err := guard.Authenticate(r.Context(), r.Header.Get("Authorization"))
			if err != nil {
				status := StatusFor(err)
				if status == http.StatusInternalServerError {
					logger.Errorw("authentication failed", "err", err, "path", r.URL.Path)
					err = errServer
				}
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(status)
				_ = json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
				return
			}
			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), identity)))
		})
	}
}

var errServer = errors.New("ServerError")

// StatusFor maps authentication errors to their HTTP status.
func StatusFor(err error) int {
	switch {
	case errors.Is(err, ErrMissingAuthHeader),
		errors.Is(err, ErrInvalidToken),
		errors.Is(err, ErrInvalidTokenType),
		errors.Is(err, ErrExpiredToken):
		return http.StatusUnauthorized
	case errors.Is(err, ErrSessionNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}
