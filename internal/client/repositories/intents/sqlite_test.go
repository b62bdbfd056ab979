package intents

import (
	"context"
	"database/sql"
	"testing"

	"github.com/pressly/goose/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"github.com/dmitrijs2005/paykiosk/internal/client/migrations"
	"github.com/dmitrijs2005/paykiosk/internal/client/terminal"
	"github.com/dmitrijs2005/paykiosk/internal/dbx"
)

func setupDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })

	provider, err := goose.NewProvider(goose.DialectSQLite3, db, migrations.Migrations)
	require.NoError(t, err)
	_, err = provider.Up(context.Background())
	require.NoError(t, err)
	return db
}

func TestPaymentRoundTrip(t *testing.T) {
	r := NewSQLiteRepository(setupDB(t))
	ctx := context.Background()

	pi := terminal.PaymentIntent{
		ID:           "pi_1",
		ClientSecret: "pi_1_secret_ab",
		Amount:       1250,
		Currency:     "usd",
		Status:       terminal.RequiresCapture,
		Metadata:     map[string]string{"order_id": "abc"},
	}
	require.NoError(t, r.PutPayment(ctx, pi))

	got, found, err := r.Payment(ctx, "pi_1")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, pi, got)
}

func TestPutPayment_Upsert(t *testing.T) {
	r := NewSQLiteRepository(setupDB(t))
	ctx := context.Background()

	require.NoError(t, r.PutPayment(ctx, terminal.PaymentIntent{ID: "pi_1", Amount: 500, Currency: "cad", Status: terminal.RequiresPaymentMethod}))
	require.NoError(t, r.PutPayment(ctx, terminal.PaymentIntent{ID: "pi_1", Amount: 500, Currency: "cad", Status: terminal.Canceled}))

	got, found, err := r.Payment(ctx, "pi_1")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, terminal.Canceled, got.Status)
	assert.Nil(t, got.Metadata)
}

func TestPutPayment_EmptyIDIsIgnored(t *testing.T) {
	r := NewSQLiteRepository(setupDB(t))
	ctx := context.Background()

	require.NoError(t, r.PutPayment(ctx, terminal.PaymentIntent{Amount: 100}))
	_, found, err := r.Payment(ctx, "")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestMissingIDs(t *testing.T) {
	r := NewSQLiteRepository(setupDB(t))
	ctx := context.Background()

	_, found, err := r.Payment(ctx, "pi_nope")
	require.NoError(t, err)
	assert.False(t, found)

	_, found, err = r.Setup(ctx, "seti_nope")
	require.NoError(t, err)
	assert.False(t, found)

	refunds, err := r.Refunds(ctx, "pi_nope")
	require.NoError(t, err)
	assert.Empty(t, refunds)
}

func TestSetupRoundTrip(t *testing.T) {
	r := NewSQLiteRepository(setupDB(t))
	ctx := context.Background()

	require.NoError(t, r.PutSetup(ctx, terminal.SetupIntent{ID: "seti_1", Status: terminal.RequiresPaymentMethod}))
	require.NoError(t, r.PutSetup(ctx, terminal.SetupIntent{ID: "seti_1", Status: terminal.Succeeded}))

	got, found, err := r.Setup(ctx, "seti_1")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, terminal.SetupIntent{ID: "seti_1", Status: terminal.Succeeded}, got)
}

func TestRefunds_KeepInsertOrder(t *testing.T) {
	r := NewSQLiteRepository(setupDB(t))
	ctx := context.Background()

	first := terminal.Refund{ID: "re_b", PaymentIntentID: "pi_1", Amount: 200, Currency: "usd", Status: terminal.Succeeded}
	second := terminal.Refund{ID: "re_a", PaymentIntentID: "pi_1", Amount: 300, Currency: "usd", Status: terminal.Succeeded}
	other := terminal.Refund{ID: "re_c", PaymentIntentID: "pi_2", Amount: 100, Currency: "usd", Status: terminal.Succeeded}
	for _, re := range []terminal.Refund{first, second, other} {
		require.NoError(t, r.PutRefund(ctx, re))
	}

	got, err := r.Refunds(ctx, "pi_1")
	require.NoError(t, err)
	assert.Equal(t, []terminal.Refund{first, second}, got)
}

func TestWritesJoinTransaction(t *testing.T) {
	db := setupDB(t)
	ctx := context.Background()

	err := dbx.WithTx(ctx, db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		return NewSQLiteRepository(tx).PutPayment(ctx, terminal.PaymentIntent{ID: "pi_tx", Amount: 100, Currency: "usd", Status: terminal.Succeeded})
	})
	require.NoError(t, err)

	_, found, err := NewSQLiteRepository(db).Payment(ctx, "pi_tx")
	require.NoError(t, err)
	assert.True(t, found)
}

func TestErrorsWrapID(t *testing.T) {
	db := setupDB(t)
	r := NewSQLiteRepository(db)
	require.NoError(t, db.Close())
	ctx := context.Background()

	_, _, err := r.Payment(ctx, "pi_1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "payment intent[pi_1]")

	err = r.PutSetup(ctx, terminal.SetupIntent{ID: "seti_1"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "setup intent[seti_1]")

	err = r.PutRefund(ctx, terminal.Refund{ID: "re_1"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "refund[re_1]")
}
