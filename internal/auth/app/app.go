package app

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	httpapi "github.com/aussiebroadwan/kanban/internal/auth/http"
	"github.com/aussiebroadwan/kanban/internal/auth/service"
	"github.com/aussiebroadwan/kanban/internal/auth/store"
	"github.com/aussiebroadwan/kanban/internal/auth/store/drivers/postgres"
	"github.com/aussiebroadwan/kanban/internal/auth/store/drivers/sqlite"
	"github.com/aussiebroadwan/kanban/pkg/cryptox"
	"github.com/aussiebroadwan/kanban/pkg/jwtx"
	"github.com/aussiebroadwan/kanban/pkg/objectstore"
	"github.com/aussiebroadwan/kanban/pkg/slogx"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// BuildVersion is overridden at build time with -ldflags "-X ...".
var BuildVersion = "v0.1.0"

// Application owns the auth service and everything it depends on.
type Application struct {
	cfg    Config
	logger *slog.Logger

	db       store.Store
	codec    *jwtx.Codec
	objects  objectstore.Store
	registry *prometheus.Registry

	sessionService     *service.SessionService
	userService        *service.UserService
	maintenanceService *service.MaintenanceService

	server *http.Server
	router *httpapi.Router
}

func New(ctx context.Context, cfg Config) (*Application, error) {
	app := &Application{
		cfg: cfg,
		logger: slogx.New(slogx.Config{
			Service: "kanban-auth",
			Version: BuildVersion,
			Env:     cfg.Env,
			Level:   cfg.LogLevel,
			Format:  cfg.LogFormat,
		}),
		registry: prometheus.NewRegistry(),
	}
	app.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	if err := app.initDatabase(ctx); err != nil {
		return nil, err
	}
	if err := app.initCodec(); err != nil {
		_ = app.db.Close()
		return nil, err
	}
	if err := app.initObjectStore(ctx); err != nil {
		_ = app.db.Close()
		return nil, err
	}
	if err := app.initServices(); err != nil {
		_ = app.db.Close()
		return nil, err
	}
	app.initHTTP()

	return app, nil
}

// Run serves until SIGINT or SIGTERM, then shuts down gracefully.
func (app *Application) Run() error {
	app.maintenanceService.Start()

	app.logger.Info("auth service starting", "port", app.cfg.Port, "version", BuildVersion)

	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- app.server.ListenAndServe()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(shutdown)

	select {
	case err := <-serverErrors:
		app.maintenanceService.Stop()
		_ = app.db.Close()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
	case sig := <-shutdown:
		app.logger.Info("shutdown signal received", "signal", sig)
		if err := app.Shutdown(); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
	}
	return nil
}

// Shutdown drains HTTP, waits for running maintenance jobs, then closes the
// store.
func (app *Application) Shutdown() error {
	app.logger.Info("shutting down auth service")

	ctx, cancel := context.WithTimeout(context.Background(), app.cfg.ShutdownGracePeriod)
	defer cancel()

	if err := app.server.Shutdown(ctx); err != nil {
		app.logger.Error("graceful server shutdown failed", "err", err)
		if err := app.server.Close(); err != nil {
			app.logger.Error("error closing server", "err", err)
		}
	}

	app.maintenanceService.Stop()

	if err := app.db.Close(); err != nil {
		app.logger.Error("error closing database", "err", err)
		return err
	}

	app.logger.Info("auth service stopped")
	return nil
}

func (app *Application) initDatabase(ctx context.Context) error {
	var (
		db  store.Store
		err error
	)
	switch app.cfg.DatabaseDriver {
	case DriverPostgres:
		db, err = postgres.NewStore(ctx, app.cfg.DatabaseDSN)
	default:
		dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)", app.cfg.DatabaseFile)
		db, err = sqlite.NewStore(dsn)
	}
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	app.db = db

	if err := db.ApplyMigrations(); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to apply database migrations: %w", err)
	}

	app.logger.Info("database ready", "driver", app.cfg.DatabaseDriver)
	return nil
}

func (app *Application) initCodec() error {
	secret, err := app.cfg.Secret()
	if err != nil {
		return err
	}
	if secret == nil {
		secret = make([]byte, 32)
		if _, err := rand.Read(secret); err != nil {
			return fmt.Errorf("generate jwt secret: %w", err)
		}
		app.logger.Warn("AUTH_JWT_SECRET not set, using an ephemeral secret; tokens will not survive a restart")
	}

	codec, err := jwtx.NewCodec(secret, app.cfg.Issuer)
	if err != nil {
		return fmt.Errorf("jwt codec: %w", err)
	}
	app.codec = codec
	return nil
}

func (app *Application) initObjectStore(ctx context.Context) error {
	if app.cfg.S3.Bucket == "" {
		app.logger.Warn("S3_BUCKET not set, profile images are kept in memory")
		app.objects = objectstore.NewMemory()
		return nil
	}

	s3, err := objectstore.NewS3(ctx, objectstore.S3Config{
		Bucket:    app.cfg.S3.Bucket,
		Region:    app.cfg.S3.Region,
		Endpoint:  app.cfg.S3.Endpoint,
		AccessKey: app.cfg.S3.AccessKey,
		SecretKey: app.cfg.S3.SecretKey,
	})
	if err != nil {
		return fmt.Errorf("object store: %w", err)
	}
	app.objects = s3
	app.logger.Info("object store ready", "bucket", app.cfg.S3.Bucket)
	return nil
}

func (app *Application) initServices() error {
	if app.cfg.PepperFile == "" {
		app.logger.Warn("AUTH_PEPPER_FILE not set, using an ephemeral pepper; stored passwords will not verify after a restart")
	}
	pepper, err := cryptox.LoadPepper(app.cfg.PepperFile)
	if err != nil {
		return fmt.Errorf("load pepper: %w", err)
	}

	app.sessionService = &service.SessionService{
		Store:      app.db,
		Tokens:     app.codec,
		Hasher:     cryptox.NewPasswordHasher(pepper),
		AccessTTL:  app.cfg.AccessTTL,
		RefreshTTL: app.cfg.RefreshTTL,
	}
	app.userService = &service.UserService{
		Store:   app.db,
		Objects: app.objects,
	}

	loc, err := time.LoadLocation(app.cfg.SchedulerTimezone)
	if err != nil {
		return fmt.Errorf("scheduler timezone: %w", err)
	}
	app.maintenanceService, err = service.NewMaintenanceService(app.db, app.logger, service.MaintenanceConfig{
		PurgeSchedule: app.cfg.PurgeSchedule,
		StatsSchedule: app.cfg.StatsSchedule,
		Location:      loc,
	}, app.registry)
	if err != nil {
		return fmt.Errorf("maintenance: %w", err)
	}
	return nil
}

func (app *Application) initHTTP() {
	router := httpapi.NewRouter(app.codec, BuildVersion, app.db, app.logger)
	router.SessionService = app.sessionService
	router.UserService = app.userService
	router.Gatherer = app.registry
	router.Limits = app.cfg.RateLimits
	router.ApplyRoutes()

	app.router = router

	app.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", app.cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 3 * time.Second,
	}
}
