package router

import (
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/parleyhq/service-social-go/internal/friend"
	"github.com/parleyhq/service-social-go/internal/session"
	"github.com/parleyhq/service-social-go/internal/user"
)

// loggingResponseWriter wraps http.ResponseWriter to capture status and size.
type loggingResponseWriter struct {
	http.ResponseWriter
	status int
	size   int
}

func (lrw *loggingResponseWriter) WriteHeader(code int) {
	lrw.status = code
	lrw.ResponseWriter.WriteHeader(code)
}

func (lrw *loggingResponseWriter) Write(b []byte) (int, error) {
	if lrw.status == 0 {
		lrw.status = http.StatusOK
	}
	n, err := lrw.ResponseWriter.Write(b)
	lrw.size += n
	return n, err
}

// LoggingMiddleware logs requests at debug level using the provided sugared
// logger.
func LoggingMiddleware(logger *zap.SugaredLogger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			lrw := &loggingResponseWriter{ResponseWriter: w}
			next.ServeHTTP(lrw, r)
			dur := time.Since(start)
			status := lrw.status
			if status == 0 {
				status = http.StatusOK
			}
			logger.Debugw("http request",
				"method", r.Method,
				"path", r.URL.Path,
				"remote", r.RemoteAddr,
				"status", status,
				"duration_ms", float64(dur.Microseconds())/1000.0,
				"size", lrw.size,
			)
		})
	}
}

// SecurityHeadersMiddleware sets common HTTP security headers.
func SecurityHeadersMiddleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("X-Content-Type-Options", "nosniff")
			w.Header().Set("X-Frame-Options", "DENY")
			w.Header().Set("Referrer-Policy", "no-referrer-when-downgrade")
			next.ServeHTTP(w, r)
		})
	}
}

// RegisterRoutes mounts all HTTP handlers on a standard library ServeMux.
// Protected routes go through the Guard middleware, which is the only
// authentication path for HTTP traffic.
func RegisterRoutes(
	logger *zap.SugaredLogger,
	guard *session.Guard,
	users *user.Handler,
	sessions *session.Handler,
	friends *friend.Handler,
) http.Handler {
	mux := http.NewServeMux()
	authed := session.Middleware(guard, logger)
	protect := func(h http.HandlerFunc) http.Handler { return authed(h) }

	// health
	mux.HandleFunc("GET /social-api/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	// accounts and sessions
	mux.HandleFunc("POST /social-api/users", users.Register)
	mux.HandleFunc("POST /social-api/sessions", users.Login)
	mux.Handle("DELETE /social-api/sessions/current", protect(sessions.Logout))
	mux.Handle("DELETE /social-api/sessions", protect(sessions.LogoutAll))
	mux.Handle("GET /social-api/users/me", protect(users.Me))
	mux.Handle("PATCH /social-api/users/me", protect(users.Update))
	mux.Handle("PUT /social-api/users/me/password", protect(users.ChangePassword))
	mux.Handle("DELETE /social-api/users/me", protect(users.Delete))

	// relationships
	mux.Handle("GET /social-api/friends", protect(friends.List))
	mux.Handle("DELETE /social-api/friends/{userId}", protect(friends.Unfriend))
	mux.Handle("GET /social-api/friends/requests", protect(friends.ListRequests))
	mux.Handle("POST /social-api/friends/requests/{userId}", protect(friends.SendRequest))
	mux.Handle("PUT /social-api/friends/requests/{userId}", protect(friends.Respond))
	mux.Handle("DELETE /social-api/friends/requests/{userId}", protect(friends.Cancel))

	return LoggingMiddleware(logger)(SecurityHeadersMiddleware()(mux))
}
