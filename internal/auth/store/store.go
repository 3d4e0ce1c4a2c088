package store

import (
	"context"
	"errors"
	"time"

	"github.com/aussiebroadwan/kanban/internal/auth/domain"
)

var (
	ErrNotFound      = errors.New("store: not found")
	ErrAlreadyExists = errors.New("store: already exists")
)

// Store is the root data access interface implemented by the sqlite and
// postgres drivers. Repositories hang off it so a Tx exposes the same
// surface as the Store it came from.
type Store interface {
	Users() Users
	RefreshTokens() RefreshTokens

	ApplyMigrations() error

	// Tx starts a read/write transaction. The caller must Commit or Rollback.
	Tx(ctx context.Context) (Tx, error)

	// WithTx runs fn in a transaction, committing when fn returns nil.
	// Inside fn only tx may be used; the outer Store may block on sqlite.
	WithTx(ctx context.Context, fn func(tx Tx) error) error

	Close() error
	Ping(ctx context.Context) error
}

type Tx interface {
	Store
	Commit() error
	Rollback() error
}

type Users interface {
	GetUserByID(ctx context.Context, id string) (domain.User, error)
	GetUserByUsername(ctx context.Context, username string) (domain.User, error)
	GetUserByEmail(ctx context.Context, email string) (domain.User, error)

	ExistsByUsername(ctx context.Context, username string) (bool, error)
	ExistsByEmail(ctx context.Context, email string) (bool, error)

	// CreateUser returns ErrAlreadyExists when username or email is taken.
	CreateUser(ctx context.Context, u domain.User) error

	// UpdateImageID sets or clears (nil) the profile image id.
	UpdateImageID(ctx context.Context, userID string, imageID *string, now time.Time) error

	// DeleteUser cascades to refresh_tokens.
	DeleteUser(ctx context.Context, userID string) error
}

type RefreshTokens interface {
	CreateRefreshToken(ctx context.Context, t domain.RefreshToken) error

	// GetRefreshTokenByHash looks a token up by exact fingerprint, whatever
	// its state.
	GetRefreshTokenByHash(ctx context.Context, hash string) (domain.RefreshToken, error)

	// RevokeRefreshToken flips revoked to true only if it is currently false.
	// ErrNotFound means no unrevoked token matched, so a concurrent caller
	// already redeemed it.
	RevokeRefreshToken(ctx context.Context, hash string, now time.Time) error

	// ListRefreshTokensByUser returns every token of the user, newest first.
	ListRefreshTokensByUser(ctx context.Context, userID string) ([]domain.RefreshToken, error)

	// RevokeAllUserRefreshTokens revokes every unrevoked token of the user
	// and returns how many changed.
	RevokeAllUserRefreshTokens(ctx context.Context, userID string, now time.Time) (int64, error)

	// DeleteRefreshTokensExpiredBefore removes tokens with expires_at < t.
	DeleteRefreshTokensExpiredBefore(ctx context.Context, t time.Time) (int64, error)

	CountRefreshTokens(ctx context.Context) (int64, error)
	CountRefreshTokensExpiredBefore(ctx context.Context, t time.Time) (int64, error)
	CountRevokedRefreshTokens(ctx context.Context) (int64, error)
	// CountActiveRefreshTokens counts unrevoked tokens with expires_at >= t.
	CountActiveRefreshTokens(ctx context.Context, t time.Time) (int64, error)
}
