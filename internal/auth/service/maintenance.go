package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/aussiebroadwan/kanban/internal/auth/domain"
	"github.com/aussiebroadwan/kanban/internal/auth/store"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/robfig/cron/v3"
)

// Default schedules, standard five-field cron syntax.
const (
	DefaultPurgeSchedule = "0 3 * * *"
	DefaultStatsSchedule = "0 0 * * *"
)

type MaintenanceConfig struct {
	PurgeSchedule string
	StatsSchedule string
	Location      *time.Location
}

type maintenanceMetrics struct {
	tokens   *prometheus.GaugeVec
	purged   prometheus.Counter
	failures *prometheus.CounterVec
	lastRun  *prometheus.GaugeVec
}

func newMaintenanceMetrics(reg prometheus.Registerer) *maintenanceMetrics {
	f := promauto.With(reg)
	return &maintenanceMetrics{
		tokens: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "kanban",
			Subsystem: "auth",
			Name:      "refresh_tokens",
			Help:      "Refresh tokens by state at the last stats run.",
		}, []string{"state"}),
		purged: f.NewCounter(prometheus.CounterOpts{
			Namespace: "kanban",
			Subsystem: "auth",
			Name:      "refresh_tokens_purged_total",
			Help:      "Expired refresh tokens deleted by the purge job.",
		}),
		failures: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "kanban",
			Subsystem: "auth",
			Name:      "maintenance_failures_total",
			Help:      "Maintenance job runs that returned an error.",
		}, []string{"job"}),
		lastRun: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "kanban",
			Subsystem: "auth",
			Name:      "maintenance_last_success_timestamp_seconds",
			Help:      "Unix time of the last successful run per job.",
		}, []string{"job"}),
	}
}

// MaintenanceService runs the refresh token purge and stats jobs on their own
// cron schedules. Both jobs only touch the store through single statements,
// so they may overlap with each other and with live traffic.
type MaintenanceService struct {
	Store  store.Store
	Logger *slog.Logger
	Now    func() time.Time

	cron    *cron.Cron
	metrics *maintenanceMetrics
}

// NewMaintenanceService validates the schedules and registers metrics on reg.
// A nil reg leaves the metrics unregistered.
func NewMaintenanceService(st store.Store, logger *slog.Logger, cfg MaintenanceConfig, reg prometheus.Registerer) (*MaintenanceService, error) {
	if cfg.PurgeSchedule == "" {
		cfg.PurgeSchedule = DefaultPurgeSchedule
	}
	if cfg.StatsSchedule == "" {
		cfg.StatsSchedule = DefaultStatsSchedule
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}

	s := &MaintenanceService{
		Store:   st,
		Logger:  logger,
		metrics: newMaintenanceMetrics(reg),
	}

	cl := cronLogger{logger}
	s.cron = cron.New(
		cron.WithLocation(cfg.Location),
		cron.WithLogger(cl),
		cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
	)

	if _, err := s.cron.AddFunc(cfg.PurgeSchedule, s.runPurge); err != nil {
		return nil, fmt.Errorf("purge schedule %q: %w", cfg.PurgeSchedule, err)
	}
	if _, err := s.cron.AddFunc(cfg.StatsSchedule, s.runStats); err != nil {
		return nil, fmt.Errorf("stats schedule %q: %w", cfg.StatsSchedule, err)
	}
	return s, nil
}

func (s *MaintenanceService) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

// Start launches the scheduler in the background.
func (s *MaintenanceService) Start() {
	s.cron.Start()
	s.Logger.Info("maintenance scheduler started", "jobs", len(s.cron.Entries()))
}

// Stop halts scheduling and waits for running jobs to return.
func (s *MaintenanceService) Stop() {
	<-s.cron.Stop().Done()
	s.Logger.Info("maintenance scheduler stopped")
}

// Purge deletes every refresh token whose expiry is strictly before now.
func (s *MaintenanceService) Purge(ctx context.Context) (int64, error) {
	n, err := s.Store.RefreshTokens().DeleteRefreshTokensExpiredBefore(ctx, s.now())
	if err != nil {
		return 0, fmt.Errorf("purge refresh tokens: %w", err)
	}
	s.metrics.purged.Add(float64(n))
	return n, nil
}

// Stats reports token counts by state. The four counts are separate queries
// and may disagree slightly if tokens change state in between.
func (s *MaintenanceService) Stats(ctx context.Context) (domain.TokenStats, error) {
	now := s.now()
	rt := s.Store.RefreshTokens()

	var (
		st   = domain.TokenStats{At: now}
		errs []error
		err  error
	)
	if st.Total, err = rt.CountRefreshTokens(ctx); err != nil {
		errs = append(errs, fmt.Errorf("count total: %w", err))
	}
	if st.Expired, err = rt.CountRefreshTokensExpiredBefore(ctx, now); err != nil {
		errs = append(errs, fmt.Errorf("count expired: %w", err))
	}
	if st.Revoked, err = rt.CountRevokedRefreshTokens(ctx); err != nil {
		errs = append(errs, fmt.Errorf("count revoked: %w", err))
	}
	if st.Active, err = rt.CountActiveRefreshTokens(ctx, now); err != nil {
		errs = append(errs, fmt.Errorf("count active: %w", err))
	}
	if len(errs) > 0 {
		return domain.TokenStats{}, errors.Join(errs...)
	}

	s.metrics.tokens.WithLabelValues("total").Set(float64(st.Total))
	s.metrics.tokens.WithLabelValues("expired").Set(float64(st.Expired))
	s.metrics.tokens.WithLabelValues("revoked").Set(float64(st.Revoked))
	s.metrics.tokens.WithLabelValues("active").Set(float64(st.Active))
	return st, nil
}

func (s *MaintenanceService) runPurge() {
	start := time.Now()
	n, err := s.Purge(context.Background())
	if err != nil {
		s.metrics.failures.WithLabelValues("purge").Inc()
		s.Logger.Error("refresh token purge failed", "err", err)
		return
	}
	s.metrics.lastRun.WithLabelValues("purge").SetToCurrentTime()
	s.Logger.Info("refresh token purge completed",
		"deleted", n,
		"duration_ms", time.Since(start).Milliseconds(),
	)
}

func (s *MaintenanceService) runStats() {
	st, err := s.Stats(context.Background())
	if err != nil {
		s.metrics.failures.WithLabelValues("stats").Inc()
		s.Logger.Error("refresh token stats failed", "err", err)
		return
	}
	s.metrics.lastRun.WithLabelValues("stats").SetToCurrentTime()
	s.Logger.Info("refresh token stats",
		"total", st.Total,
		"expired", st.Expired,
		"revoked", st.Revoked,
		"active", st.Active,
	)
}

// cronLogger adapts slog to cron.Logger.
type cronLogger struct{ l *slog.Logger }

func (c cronLogger) Info(msg string, kv ...any) {
	c.l.Debug("cron: "+msg, kv...)
}

func (c cronLogger) Error(err error, msg string, kv ...any) {
	c.l.Error("cron: "+msg, append(kv, "err", err)...)
}
