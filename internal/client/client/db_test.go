package client

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func tableExists(t *testing.T, db *sql.DB, name string) bool {
	t.Helper()
	var n int
	err := db.QueryRow(`SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name=?`, name).Scan(&n)
	require.NoError(t, err)
	return n > 0
}

func TestInitDatabase_CreatesPreferencesTable(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "kiosk.db")

	repos, err := InitDatabase(ctx, path)
	require.NoError(t, err)
	defer repos.Close()

	require.NoError(t, repos.DB.PingContext(ctx))
	assert.True(t, tableExists(t, repos.DB, "preferences"))

	require.NoError(t, repos.Preferences.Set(ctx, "reader_id", "tmr_1"))
	v, ok, err := repos.Preferences.Get(ctx, "reader_id")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "tmr_1", v)
}

func TestRunMigrations_IsIdempotent(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	db, err := sql.Open("sqlite", filepath.Join(t.TempDir(), "kiosk.db"))
	require.NoError(t, err)
	defer db.Close()

	require.NoError(t, RunMigrations(ctx, db))
	require.NoError(t, RunMigrations(ctx, db), "second run should be a no-op")
	assert.True(t, tableExists(t, db, "preferences"))
}

func TestInitDatabase_PersistsAcrossReopen(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "kiosk.db")

	repos, err := InitDatabase(ctx, path)
	require.NoError(t, err)
	require.NoError(t, repos.Preferences.Set(ctx, "location_id", "tml_1"))
	require.NoError(t, repos.Close())

	repos, err = InitDatabase(ctx, path)
	require.NoError(t, err)
	defer repos.Close()

	v, ok, err := repos.Preferences.Get(ctx, "location_id")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "tml_1", v)
}
