package database

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"postdeck/internal/platform/config"
)

func TestDSN(t *testing.T) {
	assert.Equal(t, ":memory:?_foreign_keys=on&_busy_timeout=5000", DSN(":memory:"))
	assert.Equal(t, "file:x.db?cache=shared&_foreign_keys=on&_busy_timeout=5000", DSN("file:x.db?cache=shared"))
}

func TestMigrate_UpDown(t *testing.T) {
	db, err := Open(config.DatabaseConfig{URL: ":memory:"})
	require.NoError(t, err)
	defer db.Close()

	require.NoError(t, Migrate(db, "up"))
	// Second run is a no-op.
	require.NoError(t, Migrate(db, "up"))

	var n int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = 'channels'`).Scan(&n))
	assert.Equal(t, 1, n)

	var fk int
	require.NoError(t, db.QueryRow(`PRAGMA foreign_keys`).Scan(&fk))
	assert.Equal(t, 1, fk)

	require.NoError(t, Migrate(db, "down"))
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = 'channels'`).Scan(&n))
	assert.Equal(t, 0, n)
}

func TestMigrate_BadDirection(t *testing.T) {
	assert.Error(t, Migrate(nil, "sideways"))
}
