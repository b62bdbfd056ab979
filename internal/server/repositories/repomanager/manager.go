package repomanager

import (
	"context"
	"database/sql"

	"github.com/dmitrijs2005/paykiosk/internal/dbx"
	"github.com/dmitrijs2005/paykiosk/internal/server/repositories/intents"
	"github.com/dmitrijs2005/paykiosk/internal/server/repositories/locations"
)

// RepositoryManager vends repositories bound to either the pool or a
// transaction, so services can run several of them inside dbx.WithTx.
type RepositoryManager interface {
	RunMigrations(context.Context, *sql.DB) error
	Intents(db dbx.DBTX) intents.Repository
	Locations(db dbx.DBTX) locations.Repository
}
