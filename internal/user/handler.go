package user

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/parleyhq/service-social-go/internal/session"
)

// SessionOpener mints a session plus token for a freshly authenticated user.
// Implemented by session.Guard.
type SessionOpener interface {
	Open(ctx context.Context, userID string) (sessionID, token string, err error)
}

// Handler exposes HTTP endpoints for account operations and login.
type Handler struct {
	svc      *Service
	sessions SessionOpener
	logger   *zap.SugaredLogger
}

func NewHandler(svc *Service, sessions SessionOpener, logger *zap.SugaredLogger) *Handler {
	return &Handler{svc: svc, sessions: sessions, logger: logger}
}

// RegisterRequest is the signup payload.
type RegisterRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Register creates a new account.
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeJSON(w, http.StatusBadRequest, map[string]string{"error": ErrInvalidInput.Error()})
		return
	}
	u, err := h.svc.Register(r.Context(), req.Username, req.Email, req.Password)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, u)
}

// LoginRequest is the login payload. Identifier is an email or username.
type LoginRequest struct {
	Identifier string `json:"identifier"`
	Password   string `json:"password"`
}

// LoginResponse carries the session id and its bearer token.
type LoginResponse struct {
	SessionID string `json:"sessionId"`
	Token     string `json:"token"`
}

// Login verifies credentials and opens a session.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeJSON(w, http.StatusBadRequest, map[string]string{"error": ErrInvalidInput.Error()})
		return
	}
	u, err := h.svc.VerifyCredentials(r.Context(), req.Identifier, req.Password)
	if err != nil {
		h.writeError(w, err)
		return
	}
	sessionID, token, err := h.sessions.Open(r.Context(), u.ID)
	if err != nil {
		h.logger.Errorw("open session failed", "err", err, "user_id", u.ID)
		h.writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "ServerError"})
		return
	}
	h.writeJSON(w, http.StatusCreated, LoginResponse{SessionID: sessionID, Token: token})
}

// Me returns the authenticated user's account.
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	identity, _ := session.IdentityFromContext(r.Context())
	u, err := h.svc.Get(r.Context(), identity.UserID)
	if err != nil {
		// the authenticated user vanished between guard and handler
		if errors.Is(err, ErrUserNotFound) {
			h.logger.Errorw("authenticated user missing", "user_id", identity.UserID)
			h.writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "ServerError"})
			return
		}
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, u)
}

// UpdateRequest carries optional profile changes; empty fields are left
// untouched.
type UpdateRequest struct {
	Email    string `json:"email"`
	Username string `json:"username"`
}

// Update changes email and/or username of the authenticated user.
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	identity, _ := session.IdentityFromContext(r.Context())
	var req UpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeJSON(w, http.StatusBadRequest, map[string]string{"error": ErrInvalidInput.Error()})
		return
	}
	if req.Email == "" && req.Username == "" {
		h.writeJSON(w, http.StatusBadRequest, map[string]string{"error": ErrInvalidInput.Error()})
		return
	}
	if req.Email != "" {
		if err := h.svc.UpdateEmail(r.Context(), identity.UserID, req.Email); err != nil {
			h.writeError(w, err)
			return
		}
	}
	if req.Username != "" {
		if err := h.svc.UpdateUsername(r.Context(), identity.UserID, req.Username); err != nil {
			h.writeError(w, err)
			return
		}
	}
	w.WriteHeader(http.StatusNoContent)
}

// ChangePasswordRequest carries the current and the replacement password.
type ChangePasswordRequest struct {
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword"`
}

// ChangePassword rotates the credential and invalidates all sessions.
func (h *Handler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	identity, _ := session.IdentityFromContext(r.Context())
	var req ChangePasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeJSON(w, http.StatusBadRequest, map[string]string{"error": ErrInvalidInput.Error()})
		return
	}
	if err := h.svc.ChangePassword(r.Context(), identity.UserID, req.CurrentPassword, req.NewPassword); err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Delete removes the authenticated user's account.
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	identity, _ := session.IdentityFromContext(r.Context())
	if err := h.svc.Delete(r.Context(), identity.UserID); err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	var status int
	switch {
	case errors.Is(err, ErrUserNotFound):
		status = http.StatusNotFound
	case errors.Is(err, ErrInvalidPassword):
		status = http.StatusUnauthorized
	case errors.Is(err, ErrEmailAlreadyInUse),
		errors.Is(err, ErrUsernameAlreadyInUse),
		errors.Is(err, ErrCurrentPasswordRequired),
		errors.Is(err, ErrPasswordNotChanged),
		errors.Is(err, ErrInvalidInput):
		status = http.StatusBadRequest
	default:
		h.logger.Errorw("user operation failed", "err", err)
		h.writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "ServerError"})
		return
	}
	h.writeJSON(w, status, map[string]string{"error": err.Error()})
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
