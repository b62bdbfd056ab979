package intents

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/paykiosk/internal/common"
	"github.com/dmitrijs2005/paykiosk/internal/server/models"
)

func newRepoWithMock(t *testing.T) (*PostgresRepository, sqlmock.Sqlmock, *sql.DB) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	return NewPostgresRepository(db), mock, db
}

var columns = []string{"id", "client_secret", "amount", "currency", "status", "email",
	"extended_auth", "incremental_auth", "metadata", "created_at", "updated_at"}

func intentRow(status string, meta string) *sqlmock.Rows {
	ts := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	return sqlmock.NewRows(columns).
		AddRow("pi_1", "pi_1_secret_x", int64(1250), "cad", status, "a@b.c", true, false, []byte(meta), ts, ts)
}

const insertQ = `(?s)^INSERT\s+INTO\s+payment_intents\s*\(id,\s*client_secret,\s*amount,\s*currency,\s*status,\s*email,\s*extended_auth,\s*incremental_auth,\s*metadata\)\s*VALUES\s*\(\$1,\s*\$2,\s*\$3,\s*\$4,\s*\$5,\s*\$6,\s*\$7,\s*\$8,\s*\$9\)\s*RETURNING\s+created_at,\s*updated_at\s*$`

func TestCreate_Success(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	ts := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	mock.ExpectQuery(insertQ).
		WithArgs("pi_1", "pi_1_secret_x", int64(1250), "cad", models.StatusRequiresPaymentMethod, "",
			false, true, []byte(`{"order_id":"abc"}`)).
		WillReturnRows(sqlmock.NewRows([]string{"created_at", "updated_at"}).AddRow(ts, ts))

	pi := &models.PaymentIntent{
		ID: "pi_1", ClientSecret: "pi_1_secret_x", Amount: 1250, Currency: "cad",
		Status: models.StatusRequiresPaymentMethod, IncrementalAuth: true,
		Metadata: map[string]string{"order_id": "abc"},
	}
	got, err := repo.Create(context.Background(), pi)
	if err != nil {
		t.Fatalf("Create error: %v", err)
	}
	if !got.CreatedAt.Equal(ts) || !got.UpdatedAt.Equal(ts) {
		t.Fatalf("timestamps not scanned: %+v", got)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestCreate_NilMetadataStoredAsEmptyObject(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	ts := time.Now()
	mock.ExpectQuery(insertQ).
		WithArgs("pi_2", "s", int64(1), "usd", models.StatusRequiresPaymentMethod, "", false, false, []byte(`{}`)).
		WillReturnRows(sqlmock.NewRows([]string{"created_at", "updated_at"}).AddRow(ts, ts))

	_, err := repo.Create(context.Background(), &models.PaymentIntent{
		ID: "pi_2", ClientSecret: "s", Amount: 1, Currency: "usd", Status: models.StatusRequiresPaymentMethod,
	})
	if err != nil {
		t.Fatalf("Create error: %v", err)
	}
}

func TestCreate_DBError(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(insertQ).WillReturnError(errors.New("db down"))

	_, err := repo.Create(context.Background(), &models.PaymentIntent{ID: "pi_1"})
	if err == nil || !regexp.MustCompile(`db error: .*db down`).MatchString(err.Error()) {
		t.Fatalf("expected wrapped db error, got %v", err)
	}
}

func TestGet_Found(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	q := `(?s)^SELECT\s+id,.*updated_at\s+FROM\s+payment_intents\s+WHERE\s+id\s*=\s*\$1\s*$`
	mock.ExpectQuery(q).WithArgs("pi_1").WillReturnRows(intentRow(models.StatusRequiresPaymentMethod, `{"order_id":"abc"}`))

	got, err := repo.Get(context.Background(), "pi_1")
	if err != nil {
		t.Fatalf("Get error: %v", err)
	}
	if got.ID != "pi_1" || got.Amount != 1250 || got.Currency != "cad" || !got.ExtendedAuth {
		t.Fatalf("unexpected intent: %+v", got)
	}
	if got.Metadata["order_id"] != "abc" {
		t.Fatalf("metadata not decoded: %+v", got.Metadata)
	}
}

func TestGet_NotFound(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`(?s)^SELECT.*FROM\s+payment_intents`).WithArgs("nope").WillReturnError(sql.ErrNoRows)

	_, err := repo.Get(context.Background(), "nope")
	if !errors.Is(err, common.ErrorNotFound) {
		t.Fatalf("expected ErrorNotFound, got %v", err)
	}
}

func TestGet_BadMetadata(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`(?s)^SELECT.*FROM\s+payment_intents`).WithArgs("pi_1").
		WillReturnRows(intentRow(models.StatusSucceeded, `not json`))

	_, err := repo.Get(context.Background(), "pi_1")
	if err == nil || !regexp.MustCompile(`decode metadata`).MatchString(err.Error()) {
		t.Fatalf("expected decode error, got %v", err)
	}
}

func TestGetForUpdate_LocksRow(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	q := `(?s)^SELECT\s+id,.*FROM\s+payment_intents\s+WHERE\s+id\s*=\s*\$1\s+FOR\s+UPDATE\s*$`
	mock.ExpectQuery(q).WithArgs("pi_1").WillReturnRows(intentRow(models.StatusRequiresPaymentMethod, `{}`))

	got, err := repo.GetForUpdate(context.Background(), "pi_1")
	if err != nil {
		t.Fatalf("GetForUpdate error: %v", err)
	}
	if got.Status != models.StatusRequiresPaymentMethod {
		t.Fatalf("unexpected status %q", got.Status)
	}
}

func TestUpdateStatus(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	q := `(?s)^UPDATE\s+payment_intents\s+SET\s+status\s*=\s*\$2,\s*updated_at\s*=\s*now\(\)\s+WHERE\s+id\s*=\s*\$1\s+RETURNING\s+id,.*updated_at\s*$`

	t.Run("updated", func(t *testing.T) {
		mock.ExpectQuery(q).WithArgs("pi_1", models.StatusSucceeded).WillReturnRows(intentRow(models.StatusSucceeded, `{}`))

		got, err := repo.UpdateStatus(context.Background(), "pi_1", models.StatusSucceeded)
		if err != nil {
			t.Fatalf("UpdateStatus error: %v", err)
		}
		if got.Status != models.StatusSucceeded {
			t.Fatalf("unexpected status %q", got.Status)
		}
	})

	t.Run("missing row", func(t *testing.T) {
		mock.ExpectQuery(q).WithArgs("pi_9", models.StatusCanceled).WillReturnError(sql.ErrNoRows)

		_, err := repo.UpdateStatus(context.Background(), "pi_9", models.StatusCanceled)
		if !errors.Is(err, common.ErrorNotFound) {
			t.Fatalf("expected ErrorNotFound, got %v", err)
		}
	})
}
