package domain

import "time"

// TokenPair is returned by register, login and refresh.
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int64  `json:"expires_in"` // access token lifetime in seconds
}

// RefreshToken is the stored record. The opaque token itself is never
// persisted, only its fingerprint.
type RefreshToken struct {
	ID        string
	UserID    string
	TokenHash string // base64url SHA-256 of the opaque token
	ExpiresAt time.Time
	Revoked   bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Expired reports whether the token's expiry is strictly before now. A token
// expiring exactly at now is still usable; purge uses the same boundary.
func (t RefreshToken) Expired(now time.Time) bool {
	return t.ExpiresAt.Before(now)
}

// Active reports whether the token can still be redeemed at now.
func (t RefreshToken) Active(now time.Time) bool {
	return !t.Revoked && !t.Expired(now)
}

// Session is the client-facing view of an active refresh token.
type Session struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// TokenStats is a point-in-time summary of the refresh token table. The
// counts come from independent queries and need not add up exactly.
type TokenStats struct {
	Total   int64     `json:"total"`
	Expired int64     `json:"expired"`
	Revoked int64     `json:"revoked"`
	Active  int64     `json:"active"`
	At      time.Time `json:"at"`
}
