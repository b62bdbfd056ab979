package client

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite"

	"github.com/dmitrijs2005/paykiosk/internal/client/migrations"
	"github.com/dmitrijs2005/paykiosk/internal/client/repositories/intents"
	"github.com/dmitrijs2005/paykiosk/internal/client/repositories/preferences"
	"github.com/dmitrijs2005/paykiosk/internal/filex"
)

type Repositories struct {
	DB          *sql.DB
	Preferences preferences.Repository
	Intents     *intents.SQLiteRepository
}

func (r *Repositories) Close() error {
	return r.DB.Close()
}

// RunMigrations applies the embedded SQLite migrations. It is idempotent.
func RunMigrations(ctx context.Context, db *sql.DB) error {
	provider, err := goose.NewProvider(goose.DialectSQLite3, db, migrations.Migrations)
	if err != nil {
		return fmt.Errorf("goose provider: %w", err)
	}
	if _, err := provider.Up(ctx); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

// InitDatabase opens (creating if needed) the SQLite file at path and
// migrates it.
func InitDatabase(ctx context.Context, path string) (*Repositories, error) {
	abs, err := filex.EnsureParentDir(path)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", abs)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)

	if err := RunMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Repositories{
		DB:          db,
		Preferences: preferences.NewSQLiteRepository(db),
		Intents:     intents.NewSQLiteRepository(db),
	}, nil
}
