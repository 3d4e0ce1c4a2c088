// Package storetest is a driver-agnostic conformance suite for store.Store.
package storetest

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/aussiebroadwan/kanban/internal/auth/domain"
	"github.com/aussiebroadwan/kanban/internal/auth/store"
	"github.com/aussiebroadwan/kanban/pkg/cryptox"
	"github.com/aussiebroadwan/kanban/pkg/idx"
	"github.com/stretchr/testify/require"
)

// Factory returns a migrated, empty store. It should register its own cleanup.
type Factory func(t *testing.T) store.Store

var base = time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)

// Run executes every conformance test against stores built by newStore.
func Run(t *testing.T, newStore Factory) {
	t.Run("users", func(t *testing.T) { testUsers(t, newStore(t)) })
	t.Run("user uniqueness", func(t *testing.T) { testUserUniqueness(t, newStore(t)) })
	t.Run("refresh token lifecycle", func(t *testing.T) { testRefreshLifecycle(t, newStore(t)) })
	t.Run("conditional revoke", func(t *testing.T) { testConditionalRevoke(t, newStore(t)) })
	t.Run("purge and counts", func(t *testing.T) { testPurgeAndCounts(t, newStore(t)) })
	t.Run("delete user cascades", func(t *testing.T) { testDeleteCascade(t, newStore(t)) })
	t.Run("transaction rollback", func(t *testing.T) { testRollback(t, newStore(t)) })
}

// NewUser builds a user row with unique username and email.
func NewUser(name string) domain.User {
	return domain.User{
		ID:           idx.New().String(),
		Username:     name,
		Email:        name + "@example.com",
		PasswordHash: "$argon2id$v=19$m=1,t=1,p=1$c2FsdA$aGFzaA",
		FirstName:    "First",
		LastName:     "Last",
		Role:         domain.RoleUser,
		CreatedAt:    base,
		UpdatedAt:    base,
	}
}

// NewToken builds a token row for userID expiring at expires.
func NewToken(userID string, expires time.Time) domain.RefreshToken {
	return domain.RefreshToken{
		ID:        idx.New().String(),
		UserID:    userID,
		TokenHash: cryptox.FingerprintToken(cryptox.MustGenerateToken(cryptox.TokenSize256)),
		ExpiresAt: expires,
		CreatedAt: base,
		UpdatedAt: base,
	}
}

func testUsers(t *testing.T, st store.Store) {
	ctx := context.Background()
	u := NewUser("alice")
	require.NoError(t, st.Users().CreateUser(ctx, u))

	byID, err := st.Users().GetUserByID(ctx, u.ID)
	require.NoError(t, err)
	require.Equal(t, u.Username, byID.Username)
	require.Equal(t, u.Email, byID.Email)
	require.Equal(t, u.PasswordHash, byID.PasswordHash)
	require.Equal(t, domain.RoleUser, byID.Role)
	require.Nil(t, byID.ImageID)
	require.True(t, u.CreatedAt.Equal(byID.CreatedAt))

	byName, err := st.Users().GetUserByUsername(ctx, "alice")
	require.NoError(t, err)
	require.Equal(t, u.ID, byName.ID)

	byEmail, err := st.Users().GetUserByEmail(ctx, "alice@example.com")
	require.NoError(t, err)
	require.Equal(t, u.ID, byEmail.ID)

	_, err = st.Users().GetUserByUsername(ctx, "bob")
	require.ErrorIs(t, err, store.ErrNotFound)
	_, err = st.Users().GetUserByEmail(ctx, "bob@example.com")
	require.ErrorIs(t, err, store.ErrNotFound)

	ok, err := st.Users().ExistsByUsername(ctx, "alice")
	require.NoError(t, err)
	require.True(t, ok)
	ok, err = st.Users().ExistsByEmail(ctx, "nobody@example.com")
	require.NoError(t, err)
	require.False(t, ok)

	img := "img-1"
	require.NoError(t, st.Users().UpdateImageID(ctx, u.ID, &img, base.Add(time.Minute)))
	got, err := st.Users().GetUserByID(ctx, u.ID)
	require.NoError(t, err)
	require.NotNil(t, got.ImageID)
	require.Equal(t, img, *got.ImageID)
	require.True(t, base.Add(time.Minute).Equal(got.UpdatedAt))

	require.NoError(t, st.Users().UpdateImageID(ctx, u.ID, nil, base.Add(2*time.Minute)))
	got, err = st.Users().GetUserByID(ctx, u.ID)
	require.NoError(t, err)
	require.Nil(t, got.ImageID)

	require.ErrorIs(t, st.Users().UpdateImageID(ctx, "missing", &img, base), store.ErrNotFound)
}

func testUserUniqueness(t *testing.T, st store.Store) {
	ctx := context.Background()
	require.NoError(t, st.Users().CreateUser(ctx, NewUser("alice")))

	dupName := NewUser("alice")
	dupName.Email = "other@example.com"
	require.ErrorIs(t, st.Users().CreateUser(ctx, dupName), store.ErrAlreadyExists)

	dupEmail := NewUser("bob")
	dupEmail.Email = "alice@example.com"
	require.ErrorIs(t, st.Users().CreateUser(ctx, dupEmail), store.ErrAlreadyExists)
}

func testRefreshLifecycle(t *testing.T, st store.Store) {
	ctx := context.Background()
	u := NewUser("carol")
	require.NoError(t, st.Users().CreateUser(ctx, u))

	tok := NewToken(u.ID, base.Add(time.Hour))
	require.NoError(t, st.RefreshTokens().CreateRefreshToken(ctx, tok))

	got, err := st.RefreshTokens().GetRefreshTokenByHash(ctx, tok.TokenHash)
	require.NoError(t, err)
	require.Equal(t, tok.ID, got.ID)
	require.Equal(t, u.ID, got.UserID)
	require.False(t, got.Revoked)
	require.True(t, tok.ExpiresAt.Equal(got.ExpiresAt))

	_, err = st.RefreshTokens().GetRefreshTokenByHash(ctx, "nope")
	require.ErrorIs(t, err, store.ErrNotFound)

	second := NewToken(u.ID, base.Add(2*time.Hour))
	second.CreatedAt = base.Add(time.Second)
	require.NoError(t, st.RefreshTokens().CreateRefreshToken(ctx, second))

	list, err := st.RefreshTokens().ListRefreshTokensByUser(ctx, u.ID)
	require.NoError(t, err)
	require.Len(t, list, 2)
	require.Equal(t, second.ID, list[0].ID)

	n, err := st.RefreshTokens().RevokeAllUserRefreshTokens(ctx, u.ID, base)
	require.NoError(t, err)
	require.EqualValues(t, 2, n)

	n, err = st.RefreshTokens().RevokeAllUserRefreshTokens(ctx, u.ID, base)
	require.NoError(t, err)
	require.Zero(t, n)

	got, err = st.RefreshTokens().GetRefreshTokenByHash(ctx, tok.TokenHash)
	require.NoError(t, err)
	require.True(t, got.Revoked)

	dup := NewToken(u.ID, base)
	dup.TokenHash = tok.TokenHash
	require.ErrorIs(t, st.RefreshTokens().CreateRefreshToken(ctx, dup), store.ErrAlreadyExists)
}

func testConditionalRevoke(t *testing.T, st store.Store) {
	ctx := context.Background()
	u := NewUser("dave")
	require.NoError(t, st.Users().CreateUser(ctx, u))
	tok := NewToken(u.ID, base.Add(time.Hour))
	require.NoError(t, st.RefreshTokens().CreateRefreshToken(ctx, tok))

	const racers = 8
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		winners int
	)
	for range racers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := st.RefreshTokens().RevokeRefreshToken(ctx, tok.TokenHash, base)
			if err == nil {
				mu.Lock()
				winners++
				mu.Unlock()
				return
			}
			if !errors.Is(err, store.ErrNotFound) {
				t.Errorf("unexpected revoke error: %v", err)
			}
		}()
	}
	wg.Wait()
	require.Equal(t, 1, winners)

	require.ErrorIs(t, st.RefreshTokens().RevokeRefreshToken(ctx, "missing", base), store.ErrNotFound)
}

func testPurgeAndCounts(t *testing.T, st store.Store) {
	ctx := context.Background()
	u := NewUser("erin")
	require.NoError(t, st.Users().CreateUser(ctx, u))

	now := base.Add(24 * time.Hour)
	expired := NewToken(u.ID, now.Add(-time.Second))
	boundary := NewToken(u.ID, now)
	active := NewToken(u.ID, now.Add(time.Hour))
	revoked := NewToken(u.ID, now.Add(time.Hour))
	for _, tok := range []domain.RefreshToken{expired, boundary, active, revoked} {
		require.NoError(t, st.RefreshTokens().CreateRefreshToken(ctx, tok))
	}
	require.NoError(t, st.RefreshTokens().RevokeRefreshToken(ctx, revoked.TokenHash, now))

	rt := st.RefreshTokens()
	total, err := rt.CountRefreshTokens(ctx)
	require.NoError(t, err)
	require.EqualValues(t, 4, total)

	nExpired, err := rt.CountRefreshTokensExpiredBefore(ctx, now)
	require.NoError(t, err)
	require.EqualValues(t, 1, nExpired)

	nRevoked, err := rt.CountRevokedRefreshTokens(ctx)
	require.NoError(t, err)
	require.EqualValues(t, 1, nRevoked)

	nActive, err := rt.CountActiveRefreshTokens(ctx, now)
	require.NoError(t, err)
	require.EqualValues(t, 2, nActive, "boundary token counts as active")

	deleted, err := rt.DeleteRefreshTokensExpiredBefore(ctx, now)
	require.NoError(t, err)
	require.EqualValues(t, 1, deleted)

	deleted, err = rt.DeleteRefreshTokensExpiredBefore(ctx, now)
	require.NoError(t, err)
	require.Zero(t, deleted)

	_, err = rt.GetRefreshTokenByHash(ctx, boundary.TokenHash)
	require.NoError(t, err, "token expiring exactly at now survives purge")
	_, err = rt.GetRefreshTokenByHash(ctx, expired.TokenHash)
	require.ErrorIs(t, err, store.ErrNotFound)
}

func testDeleteCascade(t *testing.T, st store.Store) {
	ctx := context.Background()
	u := NewUser("frank")
	require.NoError(t, st.Users().CreateUser(ctx, u))
	tok := NewToken(u.ID, base.Add(time.Hour))
	require.NoError(t, st.RefreshTokens().CreateRefreshToken(ctx, tok))

	require.NoError(t, st.Users().DeleteUser(ctx, u.ID))
	require.ErrorIs(t, st.Users().DeleteUser(ctx, u.ID), store.ErrNotFound)

	_, err := st.Users().GetUserByID(ctx, u.ID)
	require.ErrorIs(t, err, store.ErrNotFound)
	_, err = st.RefreshTokens().GetRefreshTokenByHash(ctx, tok.TokenHash)
	require.ErrorIs(t, err, store.ErrNotFound)
}

func testRollback(t *testing.T, st store.Store) {
	ctx := context.Background()
	boom := errors.New("boom")

	err := st.WithTx(ctx, func(tx store.Tx) error {
		require.NoError(t, tx.Users().CreateUser(ctx, NewUser("grace")))
		return boom
	})
	require.ErrorIs(t, err, boom)

	ok, err := st.Users().ExistsByUsername(ctx, "grace")
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, st.WithTx(ctx, func(tx store.Tx) error {
		return tx.Users().CreateUser(ctx, NewUser("grace"))
	}))
	ok, err = st.Users().ExistsByUsername(ctx, "grace")
	require.NoError(t, err)
	require.True(t, ok)
}
