package service_test

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/aussiebroadwan/kanban/internal/auth/service"
	"github.com/stretchr/testify/require"
)

// jpeg is the smallest payload http.DetectContentType reports as image/jpeg.
var jpeg = append([]byte{0xFF, 0xD8, 0xFF, 0xE0}, bytes.Repeat([]byte{0}, 64)...)

func registerAlice(t *testing.T, f *fixture) string {
	t.Helper()
	pair, err := f.sessions.Register(context.Background(), aliceInput())
	require.NoError(t, err)
	sub, err := f.codec.SubjectOf(pair.AccessToken)
	require.NoError(t, err)
	return sub
}

func TestProfileImage(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()
	uid := registerAlice(t, f)

	_, err := f.users.ProfileImage(ctx, uid)
	require.ErrorIs(t, err, service.ErrNotFound)

	require.NoError(t, f.users.SetProfileImage(ctx, uid, jpeg))
	obj, err := f.users.ProfileImage(ctx, uid)
	require.NoError(t, err)
	require.Equal(t, "image/jpeg", obj.ContentType)
	require.Equal(t, jpeg, obj.Data)

	user, err := f.users.GetUserByID(ctx, uid)
	require.NoError(t, err)
	require.NotNil(t, user.ImageID)
	first := *user.ImageID

	t.Run("replace removes the old object", func(t *testing.T) {
		second := append(append([]byte{}, jpeg...), 1, 2, 3)
		require.NoError(t, f.users.SetProfileImage(ctx, uid, second))
		require.Equal(t, 1, f.objects.Len())

		_, err := f.objects.Get(ctx, service.ProfileImageKey(uid, first))
		require.Error(t, err)

		obj, err := f.users.ProfileImage(ctx, uid)
		require.NoError(t, err)
		require.Equal(t, second, obj.Data)
	})
}

func TestProfileImage_Validation(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()
	uid := registerAlice(t, f)

	tests := []struct {
		name string
		data []byte
	}{
		{"empty", nil},
		{"png", []byte("\x89PNG\r\n\x1a\n0000000000000000")},
		{"text", []byte("hello, world")},
		{"too large", append(append([]byte{}, jpeg...), make([]byte, service.MaxProfileImageSize)...)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := f.users.SetProfileImage(ctx, uid, tt.data)
			require.ErrorIs(t, err, service.ErrValidation)
		})
	}
	require.Zero(t, f.objects.Len())
}

func TestProfileImage_UnknownUser(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	err := f.users.SetProfileImage(context.Background(), "01HZZZZZZZZZZZZZZZZZZZZZZZ", jpeg)
	require.ErrorIs(t, err, service.ErrNotFound)
	require.Zero(t, f.objects.Len())
}

func TestDeleteAccount(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()

	pair, err := f.sessions.Register(ctx, aliceInput())
	require.NoError(t, err)
	uid, err := f.codec.SubjectOf(pair.AccessToken)
	require.NoError(t, err)
	require.NoError(t, f.users.SetProfileImage(ctx, uid, jpeg))

	require.NoError(t, f.users.DeleteAccount(ctx, uid))

	_, err = f.users.GetUserByID(ctx, uid)
	require.ErrorIs(t, err, service.ErrNotFound)
	require.Zero(t, f.objects.Len(), "profile image removed")

	n, err := f.store.RefreshTokens().CountRefreshTokens(ctx)
	require.NoError(t, err)
	require.Zero(t, n, "refresh tokens cascade")

	_, err = f.sessions.Refresh(ctx, pair.RefreshToken)
	require.ErrorIs(t, err, service.ErrInvalidCredentials)

	// The access token still verifies but names nobody.
	require.True(t, f.codec.Valid(pair.AccessToken))
	resolver := &service.PrincipalResolver{Store: f.store}
	_, err = resolver.ResolvePrincipal(ctx, uid)
	require.ErrorIs(t, err, service.ErrUnauthorized)

	require.ErrorIs(t, f.users.DeleteAccount(ctx, uid), service.ErrNotFound)
}

func TestPrincipalResolver(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	uid := registerAlice(t, f)

	resolver := &service.PrincipalResolver{Store: f.store}
	u, err := resolver.ResolvePrincipal(context.Background(), uid)
	require.NoError(t, err)
	require.Equal(t, "alice", u.Username)
}

func TestUserService_UsesClock(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()
	uid := registerAlice(t, f)

	f.clock.Advance(time.Hour)
	require.NoError(t, f.users.SetProfileImage(ctx, uid, jpeg))

	u, err := f.users.GetUserByID(ctx, uid)
	require.NoError(t, err)
	require.True(t, u.UpdatedAt.Equal(f.clock.Now()))
	require.True(t, u.CreatedAt.Before(u.UpdatedAt))
}
