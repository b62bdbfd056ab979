package services

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"github.com/dmitrijs2005/paykiosk/internal/client/repositories/preferences"
	"github.com/dmitrijs2005/paykiosk/internal/client/terminal"
	"github.com/dmitrijs2005/paykiosk/internal/dbx"
)

func newDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })

	_, err = db.Exec(`CREATE TABLE preferences (key TEXT PRIMARY KEY, value TEXT NOT NULL);`)
	require.NoError(t, err)
	return db
}

func newPrefs(t *testing.T) (ReaderPreferences, preferences.Repository) {
	t.Helper()
	db := newDB(t)
	return NewReaderPreferences(db), preferences.NewSQLiteRepository(db)
}

func TestReaderPreferences_RoundTrip(t *testing.T) {
	prefs, _ := newPrefs(t)
	ctx := context.Background()

	reader := terminal.Reader{ID: "tmr_1", SerialNumber: "SN-1", DeviceType: "wisepos_e"}
	require.NoError(t, prefs.Save(ctx, reader, terminal.USB, "tml_1"))

	got, err := prefs.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, SavedReaderInfo{
		ReaderID:        "tmr_1",
		Serial:          "SN-1",
		DiscoveryMethod: terminal.USB,
		LocationID:      "tml_1",
		DeviceType:      "wisepos_e",
	}, got)
	assert.True(t, got.Matches(terminal.Reader{ID: "tmr_1"}))
	assert.True(t, got.Matches(terminal.Reader{SerialNumber: "SN-1"}))
	assert.False(t, got.Matches(terminal.Reader{ID: "tmr_2", SerialNumber: "SN-2"}))
}

func TestReaderPreferences_EmptyDefaultsMethod(t *testing.T) {
	prefs, _ := newPrefs(t)

	got, err := prefs.Load(context.Background())
	require.NoError(t, err)
	assert.True(t, got.Empty())
	assert.Equal(t, terminal.BluetoothScan, got.DiscoveryMethod)
}

func TestReaderPreferences_UnknownMethodDefaults(t *testing.T) {
	prefs, repo := newPrefs(t)
	require.NoError(t, repo.Set(context.Background(), "discovery_method", "INTERNET"))

	got, err := prefs.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, terminal.BluetoothScan, got.DiscoveryMethod)
}

func TestReaderPreferences_ClearKeepsOtherKeys(t *testing.T) {
	prefs, repo := newPrefs(t)
	ctx := context.Background()

	require.NoError(t, repo.Set(ctx, "theme", "dark"))
	require.NoError(t, prefs.Save(ctx, terminal.Reader{ID: "tmr_1"}, terminal.BluetoothScan, "tml_1"))
	require.NoError(t, prefs.Clear(ctx))

	got, err := prefs.Load(ctx)
	require.NoError(t, err)
	assert.True(t, got.Empty())

	all, err := repo.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"theme": "dark"}, all)
}

type failingRepo struct{ preferences.Repository }

func (failingRepo) Set(context.Context, string, string) error { return errors.New("disk full") }
func (failingRepo) List(context.Context) (map[string]string, error) {
	return nil, errors.New("disk gone")
}
func (failingRepo) Delete(context.Context, ...string) error { return errors.New("locked") }

func TestReaderPreferences_Errors(t *testing.T) {
	prefs := &readerPreferences{
		db:      newDB(t),
		newRepo: func(dbx.DBTX) preferences.Repository { return failingRepo{} },
	}
	ctx := context.Background()

	assert.ErrorContains(t, prefs.Save(ctx, terminal.Reader{}, terminal.USB, ""), "save reader")
	_, err := prefs.Load(ctx)
	assert.ErrorContains(t, err, "load reader")
	assert.ErrorContains(t, prefs.Clear(ctx), "clear reader")
}

// failAfter lets n writes through and fails the rest.
type failAfter struct {
	preferences.Repository
	n *int
}

func (f failAfter) Set(ctx context.Context, key, value string) error {
	if *f.n == 0 {
		return errors.New("disk full")
	}
	*f.n--
	return f.Repository.Set(ctx, key, value)
}

func TestReaderPreferences_SaveIsAtomic(t *testing.T) {
	db := newDB(t)
	ctx := context.Background()

	good := NewReaderPreferences(db)
	require.NoError(t, good.Save(ctx, terminal.Reader{ID: "tmr_old", SerialNumber: "SN-OLD"}, terminal.USB, "tml_old"))

	writes := 2
	prefs := &readerPreferences{
		db: db,
		newRepo: func(tx dbx.DBTX) preferences.Repository {
			return failAfter{Repository: preferences.NewSQLiteRepository(tx), n: &writes}
		},
	}
	err := prefs.Save(ctx, terminal.Reader{ID: "tmr_new", SerialNumber: "SN-NEW"}, terminal.BluetoothScan, "tml_new")
	require.ErrorContains(t, err, "save reader")

	got, err := good.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, "tmr_old", got.ReaderID)
	assert.Equal(t, "SN-OLD", got.Serial)
	assert.Equal(t, terminal.USB, got.DiscoveryMethod)
	assert.Equal(t, "tml_old", got.LocationID)
}
