package postgres_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/aussiebroadwan/kanban/internal/auth/store"
	"github.com/aussiebroadwan/kanban/internal/auth/store/drivers/postgres"
	"github.com/aussiebroadwan/kanban/internal/auth/store/storetest"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// startPostgres launches a throwaway postgres container. The test is skipped
// in -short mode or when no container runtime is reachable.
func startPostgres(t *testing.T) string {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping postgres integration test in short mode")
	}

	ctx := context.Background()
	req := testcontainers.ContainerRequest{
		Image:        "postgres:16-alpine",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "kanban",
			"POSTGRES_PASSWORD": "kanban",
			"POSTGRES_DB":       "auth",
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).
			WithStartupTimeout(60 * time.Second),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Skipf("postgres container unavailable: %v", err)
	}
	t.Cleanup(func() { _ = container.Terminate(context.Background()) })

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "5432")
	require.NoError(t, err)

	return fmt.Sprintf("postgres://kanban:kanban@%s:%s/auth?sslmode=disable", host, port.Port())
}

func TestConformance(t *testing.T) {
	dsn := startPostgres(t)

	storetest.Run(t, func(t *testing.T) store.Store {
		ctx := context.Background()
		st, err := postgres.NewStore(ctx, dsn)
		require.NoError(t, err)
		require.NoError(t, st.ApplyMigrations())

		// Subtests share the container; start each from empty tables.
		_, err = st.DB().ExecContext(ctx, `TRUNCATE refresh_tokens, users`)
		require.NoError(t, err)

		t.Cleanup(func() { _ = st.Close() })
		return st
	})
}
