package jwtx

import (
	"crypto/rand"
	"encoding/base64"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Default lifetimes for the token pair handed out by the auth service.
const (
	DefaultAccessTokenTTL  = 15 * time.Minute
	DefaultRefreshTokenTTL = 14 * 24 * time.Hour
)

// Claims are the access-token claims. Subject carries the user id.
type Claims struct {
	jwt.RegisteredClaims

	Username string `json:"username,omitempty"`
}

// Custom holds the non-registered claims embedded by Issue.
type Custom struct {
	Username string
}

// NewJTI returns a URL-safe random identifier for the "jti" claim.
func NewJTI() string {
	var b [20]byte
	_, _ = rand.Read(b[:])
	return base64.RawURLEncoding.EncodeToString(b[:])
}

// ExpiresIn is the remaining lifetime at now, never negative.
func (c Claims) ExpiresIn(now time.Time) time.Duration {
	if c.ExpiresAt == nil {
		return 0
	}
	return max(c.ExpiresAt.Sub(now), 0)
}
