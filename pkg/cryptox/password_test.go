package cryptox

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

// Cheap parameters keep the suite fast; production uses DefaultArgon2Params.
var testParams = Argon2Params{Memory: 1024, Iterations: 1, Parallelism: 1, KeyLength: 32, SaltLength: 16}

func TestPasswordHasher_RoundTrip(t *testing.T) {
	t.Parallel()

	h := NewPasswordHasherWithParams("pepper", testParams)
	for _, pw := range []string{"password123", "P@ssw0rd!#$%^&*()", strings.Repeat("a", 100), "", "пароль🔒"} {
		hash, err := h.Hash(pw)
		require.NoError(t, err)
		require.True(t, strings.HasPrefix(hash, "$argon2id$v=19$m=1024,t=1,p=1$"))
		require.NotContains(t, hash, pw+"pepper")
		require.NoError(t, h.Verify(pw, hash))
	}
}

func TestPasswordHasher_UniqueSalts(t *testing.T) {
	t.Parallel()

	h := NewPasswordHasherWithParams("pepper", testParams)
	a, err := h.Hash("same")
	require.NoError(t, err)
	b, err := h.Hash("same")
	require.NoError(t, err)
	require.NotEqual(t, a, b)
}

func TestPasswordHasher_Mismatch(t *testing.T) {
	t.Parallel()

	h := NewPasswordHasherWithParams("pepper", testParams)
	hash, err := h.Hash("correct-password")
	require.NoError(t, err)

	for _, wrong := range []string{"wrong", "Correct-Password", "correct-password ", ""} {
		require.ErrorIs(t, h.Verify(wrong, hash), ErrPasswordMismatch)
	}

	// Same password under a different pepper must not verify.
	other := NewPasswordHasherWithParams("other-pepper", testParams)
	require.ErrorIs(t, other.Verify("correct-password", hash), ErrPasswordMismatch)
}

func TestPasswordHasher_InvalidHash(t *testing.T) {
	t.Parallel()

	h := NewPasswordHasherWithParams("pepper", testParams)
	for _, bad := range []string{
		"",
		"$bcrypt$v=19$m=19456,t=2,p=1$c2FsdA$aGFzaA",
		"$argon2id$v=19$m=19456",
		"$argon2id$v=19$invalid$c2FsdA$aGFzaA",
		"$argon2id$v=19$m=19456,t=2,p=1$!!!$aGFzaA",
		"$argon2id$v=19$m=19456,t=2,p=1$c2FsdA$!!!",
		"$argon2id$v=18$m=19456,t=2,p=1$c2FsdA$aGFzaA",
	} {
		require.ErrorIs(t, h.Verify("pw", bad), ErrInvalidHash, "hash %q", bad)
	}
}

func TestLoadPepper(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "nested", "pepper")

	first, err := LoadPepper(path)
	require.NoError(t, err)
	require.NotEmpty(t, first)

	info, err := os.Stat(path)
	require.NoError(t, err)
	require.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	second, err := LoadPepper(path)
	require.NoError(t, err)
	require.Equal(t, first, second)
}

func TestLoadPepper_EmptyFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "pepper")
	require.NoError(t, os.WriteFile(path, []byte("  \n"), 0o600))

	_, err := LoadPepper(path)
	require.Error(t, err)
}

func TestLoadPepper_Ephemeral(t *testing.T) {
	t.Parallel()

	a, err := LoadPepper("")
	require.NoError(t, err)
	b, err := LoadPepper("")
	require.NoError(t, err)
	require.NotEqual(t, a, b)
}
