// Package migrations embeds the goose migrations for postgres.
package migrations

import "embed"

//go:embed *.sql
var Migrations embed.FS
