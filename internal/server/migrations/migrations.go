// Package migrations embeds the backend's Postgres schema migrations for goose.
package migrations

import "embed"

//go:embed *.sql
var Migrations embed.FS
