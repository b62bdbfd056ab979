// Package locations stores reader locations in Postgres.
package locations

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/paykiosk/internal/common"
	"github.com/dmitrijs2005/paykiosk/internal/dbx"
	"github.com/dmitrijs2005/paykiosk/internal/server/models"
)

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Create(ctx context.Context, loc *models.Location) (*models.Location, error) {
	query :=
		`INSERT INTO locations (id, display_name, line1, line2, city, postal_code, state, country)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 RETURNING created_at
		 `

	a := loc.Address
	err := r.db.QueryRowContext(ctx, query,
		loc.ID, loc.DisplayName, a.Line1, a.Line2, a.City, a.PostalCode, a.State, a.Country).Scan(&loc.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}

	return loc, nil
}

func (r *PostgresRepository) Get(ctx context.Context, id string) (*models.Location, error) {
	query :=
		`SELECT id, display_name, line1, line2, city, postal_code, state, country, created_at
		 FROM locations
		 WHERE id = $1
		 `

	loc := &models.Location{}
	a := &loc.Address
	err := r.db.QueryRowContext(ctx, query, id).Scan(&loc.ID, &loc.DisplayName,
		&a.Line1, &a.Line2, &a.City, &a.PostalCode, &a.State, &a.Country, &loc.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	return loc, nil
}
