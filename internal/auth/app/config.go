package app

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	httpapi "github.com/aussiebroadwan/kanban/internal/auth/http"
	"github.com/aussiebroadwan/kanban/pkg/jwtx"
	"github.com/caarlos0/env/v11"
)

// Database drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Config is read from the environment. Env is one of dev, staging, prod.
type Config struct {
	Env                 string        `env:"ENV" envDefault:"dev"`
	LogLevel            string        `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat           string        `env:"LOG_FORMAT" envDefault:"json"`
	Port                int           `env:"PORT" envDefault:"8080"`
	ShutdownGracePeriod time.Duration `env:"SHUTDOWN_GRACE_PERIOD" envDefault:"10s"`

	Issuer     string        `env:"AUTH_ISSUER" envDefault:"kanban-auth"`
	AccessTTL  time.Duration `env:"AUTH_ACCESS_TTL" envDefault:"15m"`
	RefreshTTL time.Duration `env:"AUTH_REFRESH_TTL" envDefault:"336h"`

	// JWTSecret is base64 (standard or URL alphabet). Empty means a random
	// per-process secret: tokens die with the process.
	JWTSecret string `env:"AUTH_JWT_SECRET"`

	// PepperFile is created on first start. Empty means an in-memory pepper.
	PepperFile string `env:"AUTH_PEPPER_FILE" envDefault:"pepper"`

	DatabaseDriver string `env:"AUTH_DATABASE_DRIVER" envDefault:"sqlite"`
	DatabaseFile   string `env:"AUTH_DATABASE_FILE" envDefault:"auth.db"`
	DatabaseDSN    string `env:"AUTH_DATABASE_DSN"`

	PurgeSchedule     string `env:"TOKENS_PURGE_CRON" envDefault:"0 3 * * *"`
	StatsSchedule     string `env:"TOKENS_STATS_CRON" envDefault:"0 0 * * *"`
	SchedulerTimezone string `env:"SCHEDULER_TIMEZONE" envDefault:"UTC"`

	S3 S3Config `envPrefix:"S3_"`

	RateLimits httpapi.RateLimits `envPrefix:"RATELIMIT_"`
}

// S3Config is optional. Without a bucket, profile images live in memory.
type S3Config struct {
	Bucket    string `env:"BUCKET"`
	Region    string `env:"REGION" envDefault:"us-east-1"`
	Endpoint  string `env:"ENDPOINT"`
	AccessKey string `env:"ACCESS_KEY"`
	SecretKey string `env:"SECRET_KEY"`
}

// LoadConfig reads the environment over the built-in defaults and validates
// the result.
func LoadConfig() (Config, error) {
	cfg := Config{RateLimits: httpapi.DefaultRateLimits()}
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	var errs []error

	switch c.DatabaseDriver {
	case DriverSQLite:
		if c.DatabaseFile == "" {
			errs = append(errs, errors.New("AUTH_DATABASE_FILE must be set for sqlite"))
		}
	case DriverPostgres:
		if c.DatabaseDSN == "" {
			errs = append(errs, errors.New("AUTH_DATABASE_DSN must be set for postgres"))
		}
	default:
		errs = append(errs, fmt.Errorf("AUTH_DATABASE_DRIVER %q: want sqlite or postgres", c.DatabaseDriver))
	}

	if c.AccessTTL <= 0 {
		errs = append(errs, errors.New("AUTH_ACCESS_TTL must be positive"))
	}
	if c.RefreshTTL <= c.AccessTTL {
		errs = append(errs, errors.New("AUTH_REFRESH_TTL must exceed AUTH_ACCESS_TTL"))
	}
	if c.Port <= 0 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("PORT %d out of range", c.Port))
	}
	if c.JWTSecret != "" {
		if _, err := c.Secret(); err != nil {
			errs = append(errs, err)
		}
	}
	if _, err := time.LoadLocation(c.SchedulerTimezone); err != nil {
		errs = append(errs, fmt.Errorf("SCHEDULER_TIMEZONE: %w", err))
	}

	return errors.Join(errs...)
}

// Secret decodes JWTSecret. It returns nil, nil when no secret is set.
func (c Config) Secret() ([]byte, error) {
	if c.JWTSecret == "" {
		return nil, nil
	}
	raw := strings.TrimSpace(c.JWTSecret)
	for _, enc := range []*base64.Encoding{
		base64.StdEncoding, base64.RawStdEncoding,
		base64.URLEncoding, base64.RawURLEncoding,
	} {
		if b, err := enc.DecodeString(raw); err == nil {
			if len(b) < jwtx.MinSecretSize {
				return nil, fmt.Errorf("AUTH_JWT_SECRET: %w", jwtx.ErrWeakSecret)
			}
			return b, nil
		}
	}
	return nil, errors.New("AUTH_JWT_SECRET must be base64")
}
