// Package repomanager provides a concrete RepositoryManager for PostgreSQL,
// wiring together repository constructors and database migrations (via goose).
package repomanager

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/dmitrijs2005/paykiosk/internal/dbx"
	"github.com/dmitrijs2005/paykiosk/internal/server/migrations"
	"github.com/dmitrijs2005/paykiosk/internal/server/repositories/intents"
	"github.com/dmitrijs2005/paykiosk/internal/server/repositories/locations"
	"github.com/pressly/goose/v3"
)

// PostgresRepositoryManager vends PostgreSQL-backed repository implementations
// and exposes a schema migration hook.
type PostgresRepositoryManager struct{}

// Intents returns an intents.Repository bound to the provided DBTX.
func (m *PostgresRepositoryManager) Intents(db dbx.DBTX) intents.Repository {
	return intents.NewPostgresRepository(db)
}

// Locations returns a locations.Repository bound to the provided DBTX.
func (m *PostgresRepositoryManager) Locations(db dbx.DBTX) locations.Repository {
	return locations.NewPostgresRepository(db)
}

// migrateUp is a seam for testing the goose provider run.
var migrateUp = func(ctx context.Context, db *sql.DB) error {
	provider, err := goose.NewProvider(goose.DialectPostgres, db, migrations.Migrations)
	if err != nil {
		return fmt.Errorf("goose provider: %w", err)
	}
	if _, err := provider.Up(ctx); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

// RunMigrations applies the embedded migrations to db.
func (m *PostgresRepositoryManager) RunMigrations(ctx context.Context, db *sql.DB) error {
	return migrateUp(ctx, db)
}

// NewPostgresRepositoryManager constructs a PostgreSQL-backed RepositoryManager.
func NewPostgresRepositoryManager() RepositoryManager {
	return &PostgresRepositoryManager{}
}
