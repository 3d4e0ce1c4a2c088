package jwtx

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// MinSecretSize is the shortest HS256 secret the codec accepts.
const MinSecretSize = 32

// Codec issues and verifies HS256 access tokens signed with a shared secret.
// Verification is stateless; nothing is persisted.
type Codec struct {
	secret []byte
	issuer string
	now    func() time.Time
}

// Option configures a Codec.
type Option func(*Codec)

// WithClock overrides the time source used for iat/exp and validation.
func WithClock(now func() time.Time) Option {
	return func(c *Codec) { c.now = now }
}

// NewCodec builds a codec. An empty issuer disables the iss check.
func NewCodec(secret []byte, issuer string, opts ...Option) (*Codec, error) {
	if len(secret) < MinSecretSize {
		return nil, ErrWeakSecret
	}

	c := &Codec{
		secret: append([]byte(nil), secret...),
		issuer: issuer,
		now:    func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Issue signs a token for subject valid for ttl from the codec's now.
// NumericDate claims carry whole seconds, so exp is rounded up and the token
// never expires before now+ttl.
func (c *Codec) Issue(subject string, custom Custom, ttl time.Duration) (string, Claims, error) {
	if subject == "" {
		return "", Claims{}, ErrNoSubject
	}

	now := c.now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    c.issuer,
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(ceilSecond(now.Add(ttl))),
			ID:        NewJTI(),
		},
		Username: custom.Username,
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.secret)
	if err != nil {
		return "", Claims{}, fmt.Errorf("jwtx: sign: %w", err)
	}
	return signed, claims, nil
}

func ceilSecond(t time.Time) time.Time {
	if r := t.Truncate(time.Second); !r.Equal(t) {
		return r.Add(time.Second)
	}
	return t
}

// Verify checks signature, algorithm, issuer, nbf and exp. A token is
// accepted only while now is strictly before exp. Failures map onto the
// package sentinels and hostile input never panics.
func (c *Codec) Verify(token string) (Claims, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(c.now),
		jwt.WithExpirationRequired(),
	}
	if c.issuer != "" {
		opts = append(opts, jwt.WithIssuer(c.issuer))
	}

	var claims Claims
	_, err := jwt.NewParser(opts...).ParseWithClaims(token, &claims, func(*jwt.Token) (any, error) {
		return c.secret, nil
	})
	if err != nil {
		return Claims{}, classify(err)
	}
	if claims.Subject == "" {
		return Claims{}, ErrNoSubject
	}
	return claims, nil
}

// Valid reports whether Verify accepts token.
func (c *Codec) Valid(token string) bool {
	_, err := c.Verify(token)
	return err == nil
}

// SubjectOf decodes the subject without checking the signature. Callers must
// Verify first before trusting the result.
func (c *Codec) SubjectOf(token string) (string, error) {
	var claims Claims
	if _, _, err := jwt.NewParser().ParseUnverified(token, &claims); err != nil {
		return "", ErrMalformed
	}
	if claims.Subject == "" {
		return "", ErrNoSubject
	}
	return claims.Subject, nil
}

func classify(err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return ErrExpired
	case errors.Is(err, jwt.ErrTokenNotValidYet):
		return ErrNotYetValid
	case errors.Is(err, jwt.ErrTokenInvalidIssuer):
		return ErrIssuer
	case errors.Is(err, jwt.ErrTokenSignatureInvalid), errors.Is(err, jwt.ErrTokenUnverifiable):
		return ErrInvalidSig
	default:
		return ErrMalformed
	}
}
