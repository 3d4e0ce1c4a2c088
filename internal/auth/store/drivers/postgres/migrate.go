package postgres

import (
	"context"
	"fmt"

	"github.com/aussiebroadwan/kanban/internal/auth/store/drivers/postgres/migrations"
	"github.com/pressly/goose/v3"
)

// ApplyMigrations runs the embedded goose migrations.
func (s *Store) ApplyMigrations() error {
	goose.SetBaseFS(migrations.Migrations)
	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("postgres: goose dialect: %w", err)
	}
	if err := goose.UpContext(context.Background(), s.db, "."); err != nil {
		return fmt.Errorf("postgres: migrate up: %w", err)
	}
	return nil
}
