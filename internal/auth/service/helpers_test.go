package service_test

import (
	"sync"
	"testing"
	"time"

	"github.com/aussiebroadwan/kanban/internal/auth/service"
	"github.com/aussiebroadwan/kanban/internal/auth/store"
	"github.com/aussiebroadwan/kanban/internal/auth/store/drivers/sqlite"
	"github.com/aussiebroadwan/kanban/pkg/cryptox"
	"github.com/aussiebroadwan/kanban/pkg/jwtx"
	"github.com/aussiebroadwan/kanban/pkg/objectstore"
	"github.com/stretchr/testify/require"
)

var testSecret = []byte("service-test-secret-0123456789abcdef")

// clock is a manually advanced time source shared by services and codec.
type clock struct {
	mu sync.Mutex
	t  time.Time
}

func newClock() *clock {
	return &clock{t: time.Date(2025, 5, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

type fixture struct {
	store    store.Store
	clock    *clock
	codec    *jwtx.Codec
	sessions *service.SessionService
	users    *service.UserService
	objects  *objectstore.Memory
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	st, err := sqlite.NewStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	require.NoError(t, st.ApplyMigrations())

	clk := newClock()
	codec, err := jwtx.NewCodec(testSecret, "kanban-auth", jwtx.WithClock(clk.Now))
	require.NoError(t, err)

	hasher := cryptox.NewPasswordHasherWithParams("test-pepper", cryptox.Argon2Params{
		Memory: 1024, Iterations: 1, Parallelism: 1, KeyLength: 32, SaltLength: 16,
	})

	objects := objectstore.NewMemory()
	return &fixture{
		store: st,
		clock: clk,
		codec: codec,
		sessions: &service.SessionService{
			Store:      st,
			Tokens:     codec,
			Hasher:     hasher,
			AccessTTL:  15 * time.Minute,
			RefreshTTL: 14 * 24 * time.Hour,
			Now:        clk.Now,
		},
		users: &service.UserService{
			Store:   st,
			Objects: objects,
			Now:     clk.Now,
		},
		objects: objects,
	}
}

func aliceInput() service.RegisterInput {
	return service.RegisterInput{
		Username:  "alice",
		Password:  "correct horse",
		Email:     "a@x.com",
		FirstName: "Alice",
		LastName:  "Liddell",
		Gender:    "female",
	}
}
