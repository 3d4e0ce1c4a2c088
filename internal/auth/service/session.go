package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/aussiebroadwan/kanban/internal/auth/domain"
	"github.com/aussiebroadwan/kanban/internal/auth/store"
	"github.com/aussiebroadwan/kanban/pkg/cryptox"
	"github.com/aussiebroadwan/kanban/pkg/idx"
	"github.com/aussiebroadwan/kanban/pkg/jwtx"
	"github.com/aussiebroadwan/kanban/pkg/slogx"
)

// AccessTokenIssuer signs access tokens. *jwtx.Codec implements it.
type AccessTokenIssuer interface {
	Issue(subject string, custom jwtx.Custom, ttl time.Duration) (string, jwtx.Claims, error)
}

// SessionService issues and invalidates sessions: a short-lived access JWT
// plus a single-use opaque refresh token.
type SessionService struct {
	Store      store.Store
	Tokens     AccessTokenIssuer
	Hasher     *cryptox.PasswordHasher
	AccessTTL  time.Duration
	RefreshTTL time.Duration

	// Now defaults to time.Now in UTC.
	Now func() time.Time
}

type RegisterInput struct {
	Username  string
	Password  string
	Email     string
	FirstName string
	LastName  string
	Gender    string
}

func (s *SessionService) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

func (s *SessionService) accessTTL() time.Duration {
	if s.AccessTTL > 0 {
		return s.AccessTTL
	}
	return jwtx.DefaultAccessTokenTTL
}

func (s *SessionService) refreshTTL() time.Duration {
	if s.RefreshTTL > 0 {
		return s.RefreshTTL
	}
	return jwtx.DefaultRefreshTokenTTL
}

// Register creates the account and signs it in. Username and email must both
// be unused.
func (s *SessionService) Register(ctx context.Context, in RegisterInput) (domain.TokenPair, error) {
	l := slogx.FromContext(ctx)

	in.Username = strings.TrimSpace(in.Username)
	in.FirstName = strings.TrimSpace(in.FirstName)
	in.LastName = strings.TrimSpace(in.LastName)
	for _, f := range []struct{ name, v string }{
		{"username", in.Username},
		{"first_name", in.FirstName},
		{"last_name", in.LastName},
	} {
		if err := required(f.name, f.v); err != nil {
			return domain.TokenPair{}, err
		}
	}
	if err := validatePassword(in.Password); err != nil {
		return domain.TokenPair{}, err
	}
	email, err := normalizeEmail(in.Email)
	if err != nil {
		return domain.TokenPair{}, err
	}
	gender, err := normalizeGender(in.Gender)
	if err != nil {
		return domain.TokenPair{}, err
	}

	// Hash before opening the transaction; argon2 is deliberately slow.
	hash, err := s.Hasher.Hash(in.Password)
	if err != nil {
		return domain.TokenPair{}, fmt.Errorf("hash password: %w", err)
	}

	now := s.now()
	user := domain.User{
		ID:           idx.NewAt(now).String(),
		Username:     in.Username,
		Email:        email,
		PasswordHash: hash,
		FirstName:    in.FirstName,
		LastName:     in.LastName,
		Gender:       gender,
		Role:         domain.RoleUser,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	var pair domain.TokenPair
	err = s.Store.WithTx(ctx, func(tx store.Tx) error {
		taken, err := tx.Users().ExistsByUsername(ctx, user.Username)
		if err != nil {
			return err
		}
		if taken {
			return ErrConflict
		}
		taken, err = tx.Users().ExistsByEmail(ctx, user.Email)
		if err != nil {
			return err
		}
		if taken {
			return ErrConflict
		}

		if err := tx.Users().CreateUser(ctx, user); err != nil {
			if errors.Is(err, store.ErrAlreadyExists) {
				return ErrConflict
			}
			return err
		}

		pair, err = s.issueTokens(ctx, tx, user, now)
		return err
	})
	if err != nil {
		if errors.Is(err, ErrConflict) {
			l.Info("registration rejected, identity taken", "username", user.Username)
		}
		return domain.TokenPair{}, err
	}

	l.Info("user registered", "user_id", user.ID)
	return pair, nil
}

// Login resolves the identifier as a username, then as an email. Unknown
// identity and wrong password both yield ErrInvalidCredentials and cost the
// same hashing work.
func (s *SessionService) Login(ctx context.Context, usernameOrEmail, password string) (domain.TokenPair, error) {
	l := slogx.FromContext(ctx)

	ident := strings.TrimSpace(usernameOrEmail)
	if ident == "" || password == "" {
		s.Hasher.VerifyDummy(password)
		return domain.TokenPair{}, ErrInvalidCredentials
	}

	user, err := s.lookupIdentity(ctx, ident)
	if errors.Is(err, store.ErrNotFound) {
		s.Hasher.VerifyDummy(password)
		l.Info("login failed", "reason", "unknown_identity")
		return domain.TokenPair{}, ErrInvalidCredentials
	}
	if err != nil {
		return domain.TokenPair{}, fmt.Errorf("lookup user: %w", err)
	}

	if err := s.Hasher.Verify(password, user.PasswordHash); err != nil {
		if !errors.Is(err, cryptox.ErrPasswordMismatch) {
			l.Error("stored password hash unusable", "user_id", user.ID, "err", err)
		}
		l.Info("login failed", "reason", "bad_password", "user_id", user.ID)
		return domain.TokenPair{}, ErrInvalidCredentials
	}

	now := s.now()
	var pair domain.TokenPair
	err = s.Store.WithTx(ctx, func(tx store.Tx) error {
		var err error
		pair, err = s.issueTokens(ctx, tx, user, now)
		return err
	})
	if err != nil {
		return domain.TokenPair{}, err
	}

	l.Info("user logged in", "user_id", user.ID)
	return pair, nil
}

func (s *SessionService) lookupIdentity(ctx context.Context, ident string) (domain.User, error) {
	user, err := s.Store.Users().GetUserByUsername(ctx, ident)
	if !errors.Is(err, store.ErrNotFound) {
		return user, err
	}
	return s.Store.Users().GetUserByEmail(ctx, strings.ToLower(ident))
}

// Refresh rotates a refresh token: the presented token is revoked and a new
// pair is issued in the same transaction. Unknown, revoked and expired tokens
// all yield ErrInvalidCredentials.
func (s *SessionService) Refresh(ctx context.Context, refreshToken string) (domain.TokenPair, error) {
	l := slogx.FromContext(ctx)

	refreshToken = strings.TrimSpace(refreshToken)
	if refreshToken == "" {
		return domain.TokenPair{}, ErrInvalidCredentials
	}
	hash := cryptox.FingerprintToken(refreshToken)
	now := s.now()

	var pair domain.TokenPair
	err := s.Store.WithTx(ctx, func(tx store.Tx) error {
		rt, err := tx.RefreshTokens().GetRefreshTokenByHash(ctx, hash)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return ErrInvalidCredentials
			}
			return err
		}

		if rt.Revoked {
			// A redeemed token coming back means it leaked or a client
			// retried. Reject and leave a trail.
			l.Warn("revoked refresh token presented",
				slog.String("user_id", rt.UserID),
				slog.String("token_id", rt.ID),
			)
			return ErrInvalidCredentials
		}
		if rt.Expired(now) {
			return ErrInvalidCredentials
		}

		if err := tx.RefreshTokens().RevokeRefreshToken(ctx, hash, now); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				l.Warn("refresh token redeemed concurrently", slog.String("token_id", rt.ID))
				return ErrInvalidCredentials
			}
			return err
		}

		user, err := tx.Users().GetUserByID(ctx, rt.UserID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return ErrInvalidCredentials
			}
			return err
		}

		pair, err = s.issueTokens(ctx, tx, user, now)
		if err != nil {
			return err
		}
		l.Info("refresh token rotated", slog.String("user_id", user.ID), slog.String("old_token_id", rt.ID))
		return nil
	})
	if err != nil {
		return domain.TokenPair{}, err
	}
	return pair, nil
}

// Logout revokes every refresh token the user holds, ending the session on
// all devices. It returns how many tokens were revoked.
func (s *SessionService) Logout(ctx context.Context, userID string) (int64, error) {
	var n int64
	err := s.Store.WithTx(ctx, func(tx store.Tx) error {
		var err error
		n, err = tx.RefreshTokens().RevokeAllUserRefreshTokens(ctx, userID, s.now())
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("revoke sessions: %w", err)
	}

	slogx.FromContext(ctx).Info("user logged out", "user_id", userID, "revoked", n)
	return n, nil
}

// ActiveSessions lists the refresh tokens of the user that can still be
// redeemed, newest first.
func (s *SessionService) ActiveSessions(ctx context.Context, userID string) ([]domain.Session, error) {
	tokens, err := s.Store.RefreshTokens().ListRefreshTokensByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}

	now := s.now()
	out := make([]domain.Session, 0, len(tokens))
	for _, t := range tokens {
		if !t.Active(now) {
			continue
		}
		out = append(out, domain.Session{ID: t.ID, CreatedAt: t.CreatedAt, ExpiresAt: t.ExpiresAt})
	}
	return out, nil
}

// issueTokens signs an access token and persists a fresh refresh token
// through tx. Token values never reach the logs.
func (s *SessionService) issueTokens(ctx context.Context, tx store.Tx, user domain.User, now time.Time) (domain.TokenPair, error) {
	access, claims, err := s.Tokens.Issue(user.ID, jwtx.Custom{Username: user.Username}, s.accessTTL())
	if err != nil {
		return domain.TokenPair{}, fmt.Errorf("issue access token: %w", err)
	}

	refresh, err := cryptox.GenerateToken(cryptox.TokenSize256)
	if err != nil {
		return domain.TokenPair{}, fmt.Errorf("generate refresh token: %w", err)
	}

	rt := domain.RefreshToken{
		ID:        idx.NewAt(now).String(),
		UserID:    user.ID,
		TokenHash: cryptox.FingerprintToken(refresh),
		ExpiresAt: now.Add(s.refreshTTL()),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := tx.RefreshTokens().CreateRefreshToken(ctx, rt); err != nil {
		return domain.TokenPair{}, fmt.Errorf("store refresh token: %w", err)
	}

	slogx.FromContext(ctx).Debug("tokens issued",
		slog.String("user_id", user.ID),
		slog.String("jti", claims.ID),
		slog.String("refresh_token_id", rt.ID),
	)

	return domain.TokenPair{
		AccessToken:  access,
		RefreshToken: refresh,
		TokenType:    "Bearer",
		ExpiresIn:    int64(claims.ExpiresIn(now) / time.Second),
	}, nil
}
