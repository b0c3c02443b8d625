package session

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/parleyhq/service-social-go/internal/session/entity"
)

// Error messages double as the wire-level error codes surfaced to clients.
var (
	ErrMissingAuthHeader = errors.New("MissingAuthHeader")
	ErrInvalidToken      = errors.New("InvalidToken")
	ErrInvalidTokenType  = errors.New("InvalidTokenType")
	ErrExpiredToken      = errors.New("ExpiredToken")
	ErrSessionNotFound   = errors.New("SessionNotFound")
)

// IdleExpiry is the span of inactivity after which a session is dead. It is
// enforced lazily at access time; there is no background sweep.
const IdleExpiry = 14 * 24 * time.Hour

// Store is the exact set of storage operations the guard needs.
type Store interface {
	Create(ctx context.Context, id, userID string) error
	Get(ctx context.Context, id string) (*entity.Session, error)
	Touch(ctx context.Context, id string) error
	Delete(ctx context.Context, id string) (int64, error)
	DeleteAllForUser(ctx context.Context, userID string) (int64, error)
}

// Identity is the authenticated pair exposed to downstream logic.
type Identity struct {
	SessionID string
	UserID    string
}

// Guard is the per-request authentication gate combining token verification
// with the session liveness check. The same Guard instance backs the HTTP
// middleware and the relay's remote token-verification handler, so the two
// entry points cannot drift apart.
type Guard struct {
	codec *TokenCodec
	store Store
	now   func() time.Time
}

func NewGuard(codec *TokenCodec, store Store) *Guard {
	return &Guard{codec: codec, store: store, now: time.Now}
}

// Authenticate validates a raw Authorization header value and returns the
// authenticated identity:
//  1. header must be present,
//  2. exactly two space-separated parts with scheme Bearer,
//  3. token must verify,
//  4. the session row must exist,
//  5. the session must be within the idle-expiry window (stale rows are
//     deleted on discovery),
//  6. last_use is bumped on success.
func (g *Guard) Authenticate(ctx context.Context, rawHeader string) (*Identity, error) {
	if rawHeader == "" {
		return nil, ErrMissingAuthHeader
	}
	parts := strings.Split(rawHeader, " ")
	if len(parts) != 2 {
		return nil, ErrInvalidToken
	}
	if parts[0] != "Bearer" {
		return nil, ErrInvalidTokenType
	}
	return g.AuthenticateToken(ctx, parts[1])
}

// AuthenticateToken runs steps 3-6 of Authenticate on a bare token. The
// relay's VERIFY_TOKEN handler calls this directly since relay messages
// carry the token without an HTTP header around it.
func (g *Guard) AuthenticateToken(ctx context.Context, token string) (*Identity, error) {
	claims, err := g.codec.Verify(token)
	if err != nil {
		return nil, err
	}
	sess, err := g.store.Get(ctx, claims.SessionID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrExpiredToken
		}
		return nil, err
	}
	if g.now().Sub(sess.LastUse) > IdleExpiry {
		if _, err := g.store.Delete(ctx, sess.ID); err != nil {
			return nil, err
		}
		return nil, ErrExpiredToken
	}
	if err := g.store.Touch(ctx, sess.ID); err != nil {
		return nil, err
	}
	return &Identity{SessionID: sess.ID, UserID: sess.UserID}, nil
}

// Open mints a session for userID: new session id plus signed token, and a
// persisted session row.
func (g *Guard) Open(ctx context.Context, userID string) (sessionID, token string, err error) {
	sessionID, token, err = g.codec.Issue(userID)
	if err != nil {
		return "", "", err
	}
	if err := g.store.Create(ctx, sessionID, userID); err != nil {
		return "", "", err
	}
	return sessionID, token, nil
}

// Close deletes one session (logout).
func (g *Guard) Close(ctx context.Context, sessionID string) error {
	rows, err := g.store.Delete(ctx, sessionID)
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrSessionNotFound
	}
	return nil
}

// CloseAll deletes every session of a user (logout everywhere).
func (g *Guard) CloseAll(ctx context.Context, userID string) error {
	_, err := g.store.DeleteAllForUser(ctx, userID)
	return err
}
