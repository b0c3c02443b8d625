package session

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"
)

// Handler exposes HTTP endpoints for session teardown. Session creation
// (login) lives with the user handler, which owns credential verification.
type Handler struct {
	guard  *Guard
	logger *zap.SugaredLogger
}

func NewHandler(guard *Guard, logger *zap.SugaredLogger) *Handler {
	return &Handler{guard: guard, logger: logger}
}

// Logout deletes the current session.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	identity, ok := IdentityFromContext(r.Context())
	if !ok {
		h.writeJSON(w, http.StatusUnauthorized, map[string]string{"error": ErrMissingAuthHeader.Error()})
		return
	}
	if err := h.guard.Close(r.Context(), identity.SessionID); err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// LogoutAll deletes every session of the authenticated user.
func (h *Handler) LogoutAll(w http.ResponseWriter, r *http.Request) {
	identity, ok := IdentityFromContext(r.Context())
	if !ok {
		h.writeJSON(w, http.StatusUnauthorized, map[string]string{"error": ErrMissingAuthHeader.Error()})
		return
	}
	if err := h.guard.CloseAll(r.Context(), identity.UserID); err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	status := StatusFor(err)
	if status == http.StatusInternalServerError {
		h.logger.Errorw("session operation failed", "err", err)
		err = errServer
	}
	h.writeJSON(w, status, map[string]string{"error": err.Error()})
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
