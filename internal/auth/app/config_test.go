package app

import (
	"encoding/base64"
	"strings"
	"testing"
	"time"

	"github.com/aussiebroadwan/kanban/pkg/httpx"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := LoadConfig()
	require.NoError(t, err)

	require.Equal(t, "dev", cfg.Env)
	require.Equal(t, 8080, cfg.Port)
	require.Equal(t, "kanban-auth", cfg.Issuer)
	require.Equal(t, 15*time.Minute, cfg.AccessTTL)
	require.Equal(t, 14*24*time.Hour, cfg.RefreshTTL)
	require.Equal(t, DriverSQLite, cfg.DatabaseDriver)
	require.Equal(t, "0 3 * * *", cfg.PurgeSchedule)
	require.Equal(t, "0 0 * * *", cfg.StatsSchedule)
	require.Equal(t, "UTC", cfg.SchedulerTimezone)
	require.Equal(t, httpx.StrictLimit, cfg.RateLimits.Strict)
	require.Equal(t, httpx.LenientLimit, cfg.RateLimits.Lenient)
	require.Empty(t, cfg.S3.Bucket)
}

func TestLoadConfig_Overrides(t *testing.T) {
	secret := base64.StdEncoding.EncodeToString([]byte(strings.Repeat("k", 48)))

	t.Setenv("PORT", "9090")
	t.Setenv("AUTH_JWT_SECRET", secret)
	t.Setenv("AUTH_ACCESS_TTL", "5m")
	t.Setenv("AUTH_DATABASE_DRIVER", "postgres")
	t.Setenv("AUTH_DATABASE_DSN", "postgres://kanban@localhost/kanban")
	t.Setenv("TOKENS_PURGE_CRON", "*/10 * * * *")
	t.Setenv("SCHEDULER_TIMEZONE", "Australia/Sydney")
	t.Setenv("S3_BUCKET", "avatars")
	t.Setenv("S3_ENDPOINT", "http://minio:9000")
	t.Setenv("RATELIMIT_STRICT_REQUESTS", "2")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	require.Equal(t, 9090, cfg.Port)
	require.Equal(t, 5*time.Minute, cfg.AccessTTL)
	require.Equal(t, DriverPostgres, cfg.DatabaseDriver)
	require.Equal(t, "*/10 * * * *", cfg.PurgeSchedule)
	require.Equal(t, "avatars", cfg.S3.Bucket)
	require.Equal(t, "http://minio:9000", cfg.S3.Endpoint)
	require.Equal(t, "us-east-1", cfg.S3.Region)

	require.Equal(t, 2, cfg.RateLimits.Strict.Requests)
	require.Equal(t, httpx.StrictLimit.Window, cfg.RateLimits.Strict.Window, "unset fields keep the profile")
	require.Equal(t, httpx.ModerateLimit, cfg.RateLimits.Moderate)

	b, err := cfg.Secret()
	require.NoError(t, err)
	require.Len(t, b, 48)
}

func TestConfig_Validate(t *testing.T) {
	valid := func() Config {
		return Config{
			Port:              8080,
			AccessTTL:         15 * time.Minute,
			RefreshTTL:        time.Hour,
			DatabaseDriver:    DriverSQLite,
			DatabaseFile:      "auth.db",
			SchedulerTimezone: "UTC",
		}
	}
	require.NoError(t, valid().Validate())

	tests := []struct {
		name string
		mut  func(*Config)
		want string
	}{
		{"unknown driver", func(c *Config) { c.DatabaseDriver = "mysql" }, "AUTH_DATABASE_DRIVER"},
		{"postgres without dsn", func(c *Config) { c.DatabaseDriver = DriverPostgres }, "AUTH_DATABASE_DSN"},
		{"refresh shorter than access", func(c *Config) { c.RefreshTTL = time.Minute }, "AUTH_REFRESH_TTL"},
		{"bad port", func(c *Config) { c.Port = 70000 }, "PORT"},
		{"short secret", func(c *Config) { c.JWTSecret = base64.StdEncoding.EncodeToString([]byte("short")) }, "AUTH_JWT_SECRET"},
		{"secret not base64", func(c *Config) { c.JWTSecret = "!!not base64!!" }, "AUTH_JWT_SECRET"},
		{"bad timezone", func(c *Config) { c.SchedulerTimezone = "Mars/Olympus" }, "SCHEDULER_TIMEZONE"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mut(&cfg)
			err := cfg.Validate()
			require.Error(t, err)
			require.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestConfig_SecretAcceptsURLAlphabet(t *testing.T) {
	raw := []byte(strings.Repeat("\xfb\xff", 20))
	cfg := Config{JWTSecret: base64.RawURLEncoding.EncodeToString(raw)}

	b, err := cfg.Secret()
	require.NoError(t, err)
	require.Equal(t, raw, b)
}
