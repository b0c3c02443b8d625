package friend

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/parleyhq/service-social-go/internal/session"
)

// Handler exposes HTTP endpoints for the relationship ledger. All routes
// require authentication; the target user id comes from the path.
type Handler struct {
	svc    *Service
	logger *zap.SugaredLogger
}

func NewHandler(svc *Service, logger *zap.SugaredLogger) *Handler {
	return &Handler{svc: svc, logger: logger}
}

// List returns the authenticated user's friends.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	identity, _ := session.IdentityFromContext(r.Context())
	friends, err := h.svc.ListFriends(r.Context(), identity.UserID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, friends)
}

// ListRequests returns pending requests involving the authenticated user.
func (h *Handler) ListRequests(w http.ResponseWriter, r *http.Request) {
	identity, _ := session.IdentityFromContext(r.Context())
	reqs, err := h.svc.ListRequests(r.Context(), identity.UserID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, reqs)
}

// SendRequest creates a friend request to the user named in the path.
func (h *Handler) SendRequest(w http.ResponseWriter, r *http.Request) {
	identity, _ := session.IdentityFromContext(r.Context())
	req, err := h.svc.SendRequest(r.Context(), identity.UserID, r.PathValue("userId"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, req)
}

// RespondRequest carries the accept/ignore decision.
type RespondRequest struct {
	Accept bool `json:"accept"`
}

// Respond answers an incoming request. The path names the sender.
func (h *Handler) Respond(w http.ResponseWriter, r *http.Request) {
	identity, _ := session.IdentityFromContext(r.Context())
	var body RespondRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		h.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "InvalidInput"})
		return
	}
	if err := h.svc.Respond(r.Context(), identity.UserID, r.PathValue("userId"), body.Accept); err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Cancel withdraws an outgoing request. The path names the receiver.
func (h *Handler) Cancel(w http.ResponseWriter, r *http.Request) {
	identity, _ := session.IdentityFromContext(r.Context())
	if err := h.svc.Cancel(r.Context(), identity.UserID, r.PathValue("userId")); err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Unfriend removes the friendship edge with the user named in the path.
func (h *Handler) Unfriend(w http.ResponseWriter, r *http.Request) {
	identity, _ := session.IdentityFromContext(r.Context())
	if err := h.svc.Unfriend(r.Context(), identity.UserID, r.PathValue("userId")); err != nil {
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
	case errors.Is(err, ErrCannotSendRequestToSelf),
		errors.Is(err, ErrRequestAlreadySent),
		errors.Is(err, ErrRequestNotFound),
		errors.Is(err, ErrFriendNotFound):
		status = http.StatusBadRequest
	default:
		h.logger.Errorw("friend operation failed", "err", err)
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
