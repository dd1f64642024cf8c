package migrate

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	apperrors "github.com/Aman-CERP/fttf/internal/errors"
)

func openDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func tableExists(t *testing.T, db *sql.DB, name string) bool {
	t.Helper()
	var n int
	require.NoError(t, db.QueryRow(
		`SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = ?`, name).Scan(&n))
	return n > 0
}

func sampleMigrations() []Migration {
	return []Migration{
		{Version: 1, Name: "one", SQL: `CREATE TABLE one (id INTEGER PRIMARY KEY)`},
		{Version: 2, Name: "two", SQL: `CREATE TABLE two (id INTEGER PRIMARY KEY)`},
		{Version: 3, Name: "three", SQL: `CREATE TABLE three (id INTEGER PRIMARY KEY)`},
	}
}

func TestRegister_KeepsVersionOrder(t *testing.T) {
	m := NewManager(openDB(t))
	migs := sampleMigrations()

	require.NoError(t, m.Register(migs[2]))
	require.NoError(t, m.Register(migs[0]))
	require.NoError(t, m.Register(migs[1]))

	assert.Equal(t, 3, m.AvailableVersion())
	for i, mig := range m.migrations {
		assert.Equal(t, i+1, mig.Version)
	}
}

func TestRegister_RejectsInvalid(t *testing.T) {
	m := NewManager(openDB(t))
	require.NoError(t, m.Register(Migration{Version: 1, Name: "one"}))

	err := m.Register(Migration{Version: 1, Name: "again"})
	assert.Equal(t, apperrors.ErrCodeInvalidMigration, apperrors.GetCode(err))

	err = m.Register(Migration{Version: 0, Name: "zero"})
	assert.Equal(t, apperrors.ErrCodeInvalidMigration, apperrors.GetCode(err))
}

func TestApply_AppliesAllInOrder(t *testing.T) {
	// Given: a fresh database and three migrations
	db := openDB(t)
	fixed := time.UnixMilli(1700000000000)
	m := NewManager(db, WithClock(func() time.Time { return fixed }))
	require.NoError(t, m.RegisterAll(sampleMigrations()...))

	// When: applying
	status, err := m.Apply(context.Background())

	// Then: every migration ran and was recorded
	require.NoError(t, err)
	assert.Equal(t, Status{OK: true, CurrentVersion: 3, AvailableVersion: 3}, status)
	for _, name := range []string{"one", "two", "three"} {
		assert.True(t, tableExists(t, db, name), name)
	}

	records, err := m.Applied(context.Background())
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, "two", records[1].Name)
	assert.Equal(t, fixed, records[1].AppliedAt)
}

func TestApply_Idempotent(t *testing.T) {
	// Given: a database where all migrations are applied
	db := openDB(t)
	m := NewManager(db)
	require.NoError(t, m.RegisterAll(sampleMigrations()...))
	_, err := m.Apply(context.Background())
	require.NoError(t, err)

	// When: applying again with a manager whose SQL would fail if executed
	again := NewManager(db)
	require.NoError(t, again.RegisterAll(
		Migration{Version: 1, Name: "one", SQL: `CREATE TABLE one (id INTEGER PRIMARY KEY)`},
		Migration{Version: 2, Name: "two", SQL: `CREATE TABLE two (id INTEGER PRIMARY KEY)`},
		Migration{Version: 3, Name: "three", SQL: `CREATE TABLE three (id INTEGER PRIMARY KEY)`},
	))
	status, err := again.Apply(context.Background())

	// Then: nothing ran and nothing failed
	require.NoError(t, err)
	assert.True(t, status.OK)
	assert.Equal(t, 3, status.CurrentVersion)
	assert.Zero(t, status.PendingCount)
}

func TestApply_PartialFailureKeepsEarlierVersions(t *testing.T) {
	// Given: migration 2 is broken
	db := openDB(t)
	m := NewManager(db)
	require.NoError(t, m.RegisterAll(
		Migration{Version: 1, Name: "one", SQL: `CREATE TABLE one (id INTEGER PRIMARY KEY)`},
		Migration{Version: 2, Name: "broken", SQL: `CREATE TABLE half (id INTEGER PRIMARY KEY); THIS IS NOT SQL`},
		Migration{Version: 3, Name: "three", SQL: `CREATE TABLE three (id INTEGER PRIMARY KEY)`},
	))

	// When: applying
	status, err := m.Apply(context.Background())

	// Then: version 1 stays, 2 rolled back, 3 not attempted
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrMigration)
	assert.False(t, status.OK)
	assert.Equal(t, 1, status.CurrentVersion)
	assert.Equal(t, 3, status.AvailableVersion)
	assert.Equal(t, 2, status.PendingCount)
	assert.Equal(t, err, status.Err)

	assert.True(t, tableExists(t, db, "one"))
	assert.False(t, tableExists(t, db, "half"))
	assert.False(t, tableExists(t, db, "three"))

	// When: the migration is fixed and applied again
	fixed := NewManager(db)
	require.NoError(t, fixed.RegisterAll(
		Migration{Version: 1, Name: "one", SQL: `CREATE TABLE one (id INTEGER PRIMARY KEY)`},
		Migration{Version: 2, Name: "fixed", SQL: `CREATE TABLE half (id INTEGER PRIMARY KEY)`},
		Migration{Version: 3, Name: "three", SQL: `CREATE TABLE three (id INTEGER PRIMARY KEY)`},
	))
	status, err = fixed.Apply(context.Background())

	// Then: the remaining versions apply
	require.NoError(t, err)
	assert.Equal(t, 3, status.CurrentVersion)
	assert.True(t, tableExists(t, db, "three"))
}

func TestApply_UpgradesLegacyTable(t *testing.T) {
	// Given: a migrations table that only tracks versions
	db := openDB(t)
	_, err := db.Exec(`CREATE TABLE migrations (
		id INTEGER PRIMARY KEY,
		version INTEGER UNIQUE NOT NULL,
		applied_at INTEGER NOT NULL
	)`)
	require.NoError(t, err)
	_, err = db.Exec(`INSERT INTO migrations (version, applied_at) VALUES (1, 1)`)
	require.NoError(t, err)

	// When: applying versions 1 and 2
	m := NewManager(db)
	require.NoError(t, m.RegisterAll(sampleMigrations()[:2]...))
	status, err := m.Apply(context.Background())

	// Then: the table gains columns and only version 2 runs
	require.NoError(t, err)
	assert.Equal(t, 2, status.CurrentVersion)
	assert.False(t, tableExists(t, db, "one"))
	assert.True(t, tableExists(t, db, "two"))

	records, err := m.Applied(context.Background())
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "legacy_migration", records[0].Name)
	assert.Equal(t, "two", records[1].Name)
}

func TestStatus_ReadOnly(t *testing.T) {
	db := openDB(t)
	m := NewManager(db)
	require.NoError(t, m.RegisterAll(sampleMigrations()...))

	status, err := m.Status(context.Background())
	require.NoError(t, err)
	assert.False(t, status.OK)
	assert.Equal(t, 0, status.CurrentVersion)
	assert.Equal(t, 3, status.PendingCount)
	assert.False(t, tableExists(t, db, "migrations"))

	records, err := m.Applied(context.Background())
	require.NoError(t, err)
	assert.Empty(t, records)
}
