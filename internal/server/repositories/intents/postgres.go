// Package intents stores payment intents in Postgres.
package intents

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/paykiosk/internal/common"
	"github.com/dmitrijs2005/paykiosk/internal/dbx"
	"github.com/dmitrijs2005/paykiosk/internal/server/models"
)

const selectColumns = `id, client_secret, amount, currency, status, email,
		 extended_auth, incremental_auth, metadata, created_at, updated_at`

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Create(ctx context.Context, pi *models.PaymentIntent) (*models.PaymentIntent, error) {
	meta, err := encodeMetadata(pi.Metadata)
	if err != nil {
		return nil, err
	}

	query :=
		`INSERT INTO payment_intents (id, client_secret, amount, currency, status, email, extended_auth, incremental_auth, metadata)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		 RETURNING created_at, updated_at
		 `

	err = r.db.QueryRowContext(ctx, query,
		pi.ID, pi.ClientSecret, pi.Amount, pi.Currency, pi.Status, pi.Email,
		pi.ExtendedAuth, pi.IncrementalAuth, meta).Scan(&pi.CreatedAt, &pi.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}

	return pi, nil
}

func (r *PostgresRepository) Get(ctx context.Context, id string) (*models.PaymentIntent, error) {
	query :=
		`SELECT ` + selectColumns + `
		 FROM payment_intents
		 WHERE id = $1
		 `
	return r.scanOne(r.db.QueryRowContext(ctx, query, id))
}

func (r *PostgresRepository) GetForUpdate(ctx context.Context, id string) (*models.PaymentIntent, error) {
	query :=
		`SELECT ` + selectColumns + `
		 FROM payment_intents
		 WHERE id = $1
		 FOR UPDATE
		 `
	return r.scanOne(r.db.QueryRowContext(ctx, query, id))
}

func (r *PostgresRepository) UpdateStatus(ctx context.Context, id string, status string) (*models.PaymentIntent, error) {
	query :=
		`UPDATE payment_intents SET status = $2, updated_at = now()
		 WHERE id = $1
		 RETURNING ` + selectColumns + `
		 `
	return r.scanOne(r.db.QueryRowContext(ctx, query, id, status))
}

func (r *PostgresRepository) scanOne(row *sql.Row) (*models.PaymentIntent, error) {
	pi := &models.PaymentIntent{}
	var meta []byte

	err := row.Scan(&pi.ID, &pi.ClientSecret, &pi.Amount, &pi.Currency, &pi.Status, &pi.Email,
		&pi.ExtendedAuth, &pi.IncrementalAuth, &meta, &pi.CreatedAt, &pi.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	if len(meta) > 0 {
		if err := json.Unmarshal(meta, &pi.Metadata); err != nil {
			return nil, fmt.Errorf("decode metadata: %w", err)
		}
	}

	return pi, nil
}

func encodeMetadata(m map[string]string) ([]byte, error) {
	if m == nil {
		m = map[string]string{}
	}
	b, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("encode metadata: %w", err)
	}
	return b, nil
}
