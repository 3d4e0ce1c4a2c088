package service_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/aussiebroadwan/kanban/internal/auth/domain"
	"github.com/aussiebroadwan/kanban/internal/auth/service"
	"github.com/aussiebroadwan/kanban/internal/auth/store"
	"github.com/aussiebroadwan/kanban/internal/auth/store/storetest"
	"github.com/aussiebroadwan/kanban/pkg/slogx"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func newMaintenance(t *testing.T, f *fixture, reg prometheus.Registerer) *service.MaintenanceService {
	t.Helper()
	m, err := service.NewMaintenanceService(f.store, slogx.Discard(), service.MaintenanceConfig{}, reg)
	require.NoError(t, err)
	m.Now = f.clock.Now
	return m
}

// seedTokens stores one token per expiry offset relative to the fixture clock.
func seedTokens(t *testing.T, st store.Store, now time.Time, offsets ...time.Duration) domain.User {
	t.Helper()
	ctx := context.Background()

	u := storetest.NewUser("maint")
	require.NoError(t, st.Users().CreateUser(ctx, u))
	for _, off := range offsets {
		require.NoError(t, st.RefreshTokens().CreateRefreshToken(ctx, storetest.NewToken(u.ID, now.Add(off))))
	}
	return u
}

func TestMaintenance_PurgeIsStrictAndIdempotent(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()
	reg := prometheus.NewRegistry()
	m := newMaintenance(t, f, reg)

	now := f.clock.Now()
	// Two expired, one exactly at now, one in the future.
	seedTokens(t, f.store, now, -time.Hour, -time.Nanosecond, 0, time.Hour)

	n, err := m.Purge(ctx)
	require.NoError(t, err)
	require.EqualValues(t, 2, n)

	n, err = m.Purge(ctx)
	require.NoError(t, err)
	require.Zero(t, n)

	total, err := f.store.RefreshTokens().CountRefreshTokens(ctx)
	require.NoError(t, err)
	require.EqualValues(t, 2, total, "token expiring exactly now survives")

	mfs, err := reg.Gather()
	require.NoError(t, err)
	var purged float64
	for _, mf := range mfs {
		if mf.GetName() == "kanban_auth_refresh_tokens_purged_total" {
			purged = mf.GetMetric()[0].GetCounter().GetValue()
		}
	}
	require.EqualValues(t, 2, purged)
}

func TestMaintenance_Stats(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()
	reg := prometheus.NewRegistry()
	m := newMaintenance(t, f, reg)

	now := f.clock.Now()
	u := seedTokens(t, f.store, now, -time.Hour, 0, time.Hour, 2*time.Hour)

	// Revoke one of the live tokens.
	tokens, err := f.store.RefreshTokens().ListRefreshTokensByUser(ctx, u.ID)
	require.NoError(t, err)
	for _, tok := range tokens {
		if tok.ExpiresAt.Equal(now.Add(2 * time.Hour)) {
			require.NoError(t, f.store.RefreshTokens().RevokeRefreshToken(ctx, tok.TokenHash, now))
		}
	}

	st, err := m.Stats(ctx)
	require.NoError(t, err)
	require.Equal(t, domain.TokenStats{
		Total:   4,
		Expired: 1,
		Revoked: 1,
		Active:  2,
		At:      now,
	}, st)

	expected := `
# HELP kanban_auth_refresh_tokens Refresh tokens by state at the last stats run.
# TYPE kanban_auth_refresh_tokens gauge
kanban_auth_refresh_tokens{state="active"} 2
kanban_auth_refresh_tokens{state="expired"} 1
kanban_auth_refresh_tokens{state="revoked"} 1
kanban_auth_refresh_tokens{state="total"} 4
`
	require.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected), "kanban_auth_refresh_tokens"))
}

func TestMaintenance_StatsAfterPurge(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()
	m := newMaintenance(t, f, nil)

	seedTokens(t, f.store, f.clock.Now(), -time.Minute, time.Minute)
	_, err := m.Purge(ctx)
	require.NoError(t, err)

	st, err := m.Stats(ctx)
	require.NoError(t, err)
	require.EqualValues(t, 1, st.Total)
	require.Zero(t, st.Expired)
	require.EqualValues(t, 1, st.Active)
}

func TestMaintenance_InvalidSchedule(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	_, err := service.NewMaintenanceService(f.store, slogx.Discard(), service.MaintenanceConfig{
		PurgeSchedule: "every tuesday",
	}, nil)
	require.ErrorContains(t, err, "purge schedule")

	_, err = service.NewMaintenanceService(f.store, slogx.Discard(), service.MaintenanceConfig{
		StatsSchedule: "* * *",
	}, nil)
	require.ErrorContains(t, err, "stats schedule")
}

func TestMaintenance_StartStop(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	loc, err := time.LoadLocation("Australia/Sydney")
	if err != nil {
		loc = time.UTC
	}
	m, err := service.NewMaintenanceService(f.store, slogx.Discard(), service.MaintenanceConfig{
		PurgeSchedule: "@every 1h",
		StatsSchedule: "30 2 * * *",
		Location:      loc,
	}, prometheus.NewRegistry())
	require.NoError(t, err)

	m.Start()
	done := make(chan struct{})
	go func() {
		m.Stop()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Stop did not return")
	}
}

func TestMaintenance_UnregisteredMetrics(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	// Two services without a registry must not collide.
	newMaintenance(t, f, nil)
	m := newMaintenance(t, f, nil)

	_, err := m.Purge(context.Background())
	require.NoError(t, err)
}
