// Package intents stores the payment intents, setup intents and refunds the
// kiosk created, so a later run can refund or cancel them by id.
package intents

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/paykiosk/internal/client/terminal"
	"github.com/dmitrijs2005/paykiosk/internal/dbx"
)

type SQLiteRepository struct {
	db dbx.DBTX
}

func NewSQLiteRepository(db dbx.DBTX) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

func (r *SQLiteRepository) PutPayment(ctx context.Context, pi terminal.PaymentIntent) error {
	if pi.ID == "" {
		return nil
	}
	meta, err := json.Marshal(pi.Metadata)
	if err != nil {
		return fmt.Errorf("failed to encode metadata of payment intent[%s]: %w", pi.ID, err)
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO payment_intents (id, client_secret, amount, currency, status, metadata)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			client_secret = excluded.client_secret,
			amount = excluded.amount,
			currency = excluded.currency,
			status = excluded.status,
			metadata = excluded.metadata,
			updated_at = CURRENT_TIMESTAMP
	`, pi.ID, pi.ClientSecret, pi.Amount, pi.Currency, string(pi.Status), string(meta))
	if err != nil {
		return fmt.Errorf("failed to store payment intent[%s]: %w", pi.ID, err)
	}
	return nil
}

func (r *SQLiteRepository) Payment(ctx context.Context, id string) (terminal.PaymentIntent, bool, error) {
	var (
		pi     terminal.PaymentIntent
		status string
		meta   string
	)
	err := r.db.QueryRowContext(ctx, `
		SELECT id, client_secret, amount, currency, status, metadata
		FROM payment_intents WHERE id = ?
	`, id).Scan(&pi.ID, &pi.ClientSecret, &pi.Amount, &pi.Currency, &status, &meta)
	if errors.Is(err, sql.ErrNoRows) {
		return terminal.PaymentIntent{}, false, nil
	}
	if err != nil {
		return terminal.PaymentIntent{}, false, fmt.Errorf("failed to get payment intent[%s]: %w", id, err)
	}

	pi.Status = terminal.IntentStatus(status)
	if err := json.Unmarshal([]byte(meta), &pi.Metadata); err != nil {
		return terminal.PaymentIntent{}, false, fmt.Errorf("failed to decode metadata of payment intent[%s]: %w", id, err)
	}
	return pi, true, nil
}

func (r *SQLiteRepository) PutSetup(ctx context.Context, si terminal.SetupIntent) error {
	if si.ID == "" {
		return nil
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO setup_intents (id, status) VALUES (?, ?)
		ON CONFLICT(id) DO UPDATE SET status = excluded.status, updated_at = CURRENT_TIMESTAMP
	`, si.ID, string(si.Status))
	if err != nil {
		return fmt.Errorf("failed to store setup intent[%s]: %w", si.ID, err)
	}
	return nil
}

func (r *SQLiteRepository) Setup(ctx context.Context, id string) (terminal.SetupIntent, bool, error) {
	var si terminal.SetupIntent
	var status string
	err := r.db.QueryRowContext(ctx, `SELECT id, status FROM setup_intents WHERE id = ?`, id).Scan(&si.ID, &status)
	if errors.Is(err, sql.ErrNoRows) {
		return terminal.SetupIntent{}, false, nil
	}
	if err != nil {
		return terminal.SetupIntent{}, false, fmt.Errorf("failed to get setup intent[%s]: %w", id, err)
	}
	si.Status = terminal.IntentStatus(status)
	return si, true, nil
}

func (r *SQLiteRepository) PutRefund(ctx context.Context, re terminal.Refund) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO refunds (id, payment_intent_id, amount, currency, status) VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET status = excluded.status
	`, re.ID, re.PaymentIntentID, re.Amount, re.Currency, string(re.Status))
	if err != nil {
		return fmt.Errorf("failed to store refund[%s]: %w", re.ID, err)
	}
	return nil
}

// Refunds returns the refunds of paymentIntentID in the order they were stored.
func (r *SQLiteRepository) Refunds(ctx context.Context, paymentIntentID string) ([]terminal.Refund, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, payment_intent_id, amount, currency, status
		FROM refunds WHERE payment_intent_id = ? ORDER BY rowid
	`, paymentIntentID)
	if err != nil {
		return nil, fmt.Errorf("failed to list refunds of payment intent[%s]: %w", paymentIntentID, err)
	}
	defer rows.Close()

	var result []terminal.Refund
	for rows.Next() {
		var re terminal.Refund
		var status string
		if err := rows.Scan(&re.ID, &re.PaymentIntentID, &re.Amount, &re.Currency, &status); err != nil {
			return nil, fmt.Errorf("failed to scan refund row: %w", err)
		}
		re.Status = terminal.IntentStatus(status)
		result = append(result, re)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate refund rows: %w", err)
	}
	return result, nil
}
