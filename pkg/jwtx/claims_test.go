package jwtx_test

import (
	"testing"
	"time"

	"github.com/aussiebroadwan/kanban/pkg/jwtx"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
)

func TestNewJTI_Unique(t *testing.T) {
	seen := make(map[string]struct{}, 100)
	for range 100 {
		jti := jwtx.NewJTI()
		require.Len(t, jti, 27)
		require.NotContains(t, seen, jti)
		seen[jti] = struct{}{}
	}
}

func TestClaims_ExpiresIn(t *testing.T) {
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	var c jwtx.Claims
	require.Zero(t, c.ExpiresIn(now))

	c.ExpiresAt = jwt.NewNumericDate(now.Add(time.Minute))
	require.Equal(t, time.Minute, c.ExpiresIn(now))
	require.Zero(t, c.ExpiresIn(now.Add(time.Hour)))
}
