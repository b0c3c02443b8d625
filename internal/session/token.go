package session

import (
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/parleyhq/service-social-go/pkg/utilities"
)

const (
	// Issuer identifies this service in token claims.
	Issuer = "parley-core"
	// GatewayAudience names the realtime gateway, which independently
	// verifies the same tokens.
	GatewayAudience = "parley-gateway"

	// tokenValidity is the absolute token lifetime. Deliberately much longer
	// than the idle-expiry window: the session row is the revocable source
	// of truth, not the token.
	tokenValidity = 12 * 7 * 24 * time.Hour
)

// Claims binds a session identifier and its owning user into a signed token.
type Claims struct {
	SessionID string `json:"sid"`
	UserID    string `json:"uid"`
	jwt.RegisteredClaims
}

// TokenCodec issues and verifies signed session tokens. It holds no mutable
// state beyond the signing secret loaded once at startup.
type TokenCodec struct {
	secret []byte
}

func NewTokenCodec(secret []byte) *TokenCodec {
	return &TokenCodec{secret: secret}
}

// Issue mints a fresh session identifier and signs a token binding it to
// userID. The caller is responsible for persisting the session row.
func (c *TokenCodec) Issue(userID string) (sessionID, token string, err error) {
	sessionID = utilities.NewKSUID()
	now := time.Now()
	claims := Claims{
		SessionID: sessionID,
		UserID:    userID,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    Issuer,
			Audience:  jwt.ClaimStrings{Issuer, GatewayAudience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(tokenValidity)),
		},
	}
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	token, err = t.SignedString(c.secret)
	if err != nil {
		return "", "", err
	}
	return sessionID, token, nil
}

// Verify validates signature, issuer, audience and absolute expiry. Any
// structural, signature or claim mismatch yields ErrInvalidToken.
func (c *TokenCodec) Verify(token string) (*Claims, error) {
	claims := &Claims{}
	t, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return c.secret, nil
	},
		jwt.WithIssuer(Issuer),
		jwt.WithExpirationRequired(),
	)
	if err != nil || !t.Valid {
		return nil, ErrInvalidToken
	}
	if !audienceMatches(claims.Audience) {
		return nil, ErrInvalidToken
	}
	if claims.SessionID == "" || claims.UserID == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// audienceMatches requires the audience list to name exactly this service
// and the gateway.
func audienceMatches(aud jwt.ClaimStrings) bool {
	if len(aud) != 2 {
		return false
	}
	seen := map[string]bool{}
	for _, a := range aud {
		seen[a] = true
	}
	return seen[Issuer] && seen[GatewayAudience]
}
