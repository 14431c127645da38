package database

import (
	"context"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func testMigrations() fstest.MapFS {
	return fstest.MapFS{
		"m/000002_add_bio.up.sql":     {Data: []byte("ALTER TABLE people ADD COLUMN bio TEXT;")},
		"m/000002_add_bio.down.sql":   {Data: []byte("ALTER TABLE people DROP COLUMN bio;")},
		"m/000001_people.up.sql":      {Data: []byte("CREATE TABLE people (id INTEGER PRIMARY KEY, name TEXT);")},
		"m/000001_people.down.sql":    {Data: []byte("DROP TABLE people;")},
		"m/README.md":                 {Data: []byte("ignored")},
		"m/000003_broken.down.sql.bk": {Data: []byte("ignored")},
	}
}

func openSQLite(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{Logger: logger.Discard})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	return db
}

func TestLoadMigrations(t *testing.T) {
	ms, err := LoadMigrations(testMigrations(), "m")
	require.NoError(t, err)
	require.Len(t, ms, 2)
	assert.Equal(t, "000001_people", ms[0].String())
	assert.Equal(t, "add_bio", ms[1].Name)

	bad := fstest.MapFS{"m/nounderscore.up.sql": {Data: []byte("SELECT 1;")}}
	_, err = LoadMigrations(bad, "m")
	assert.Error(t, err)

	missingDown := fstest.MapFS{"m/000001_x.up.sql": {Data: []byte("SELECT 1;")}}
	_, err = LoadMigrations(missingDown, "m")
	assert.ErrorContains(t, err, "down script")

	dup := testMigrations()
	dup["m/01_again.up.sql"] = &fstest.MapFile{Data: []byte("SELECT 1;")}
	dup["m/01_again.down.sql"] = &fstest.MapFile{Data: []byte("SELECT 1;")}
	_, err = LoadMigrations(dup, "m")
	assert.ErrorContains(t, err, "version 1")
}

func TestMigrator_UpDown(t *testing.T) {
	ctx := context.Background()
	db := openSQLite(t)
	ms, err := LoadMigrations(testMigrations(), "m")
	require.NoError(t, err)
	m := NewMigrator(db, ms)

	applied, err := m.Up(ctx)
	require.NoError(t, err)
	assert.Len(t, applied, 2)
	require.NoError(t, db.Exec("INSERT INTO people (name, bio) VALUES ('ada', 'math')").Error)

	again, err := m.Up(ctx)
	require.NoError(t, err)
	assert.Empty(t, again, "second run is a no-op")

	logs, err := m.Applied(ctx)
	require.NoError(t, err)
	require.Len(t, logs, 2)
	assert.Equal(t, "people", logs[0].Name)

	require.NoError(t, m.Down(ctx, 2))
	pending, err := m.Pending(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, 2, pending[0].Version)

	assert.ErrorContains(t, m.Down(ctx, 2), "has not been applied")
	assert.ErrorContains(t, m.Down(ctx, 9), "not registered")
}

func TestMigrator_FailedMigrationIsNotRecorded(t *testing.T) {
	ctx := context.Background()
	db := openSQLite(t)
	ms := []Migration{
		{Version: 1, Name: "ok", Up: "CREATE TABLE a (id INTEGER);", Down: "DROP TABLE a;"},
		{Version: 2, Name: "bad", Up: "CREATE TABLE nope (;", Down: ""},
	}

	applied, err := NewMigrator(db, ms).Up(ctx)
	require.Error(t, err)
	assert.Len(t, applied, 1)

	logs, err := NewMigrator(db, ms).Applied(ctx)
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, 1, logs[0].Version)
}

func TestMigrator_RejectsUnknownAppliedVersions(t *testing.T) {
	ctx := context.Background()
	db := openSQLite(t)
	ms, err := LoadMigrations(testMigrations(), "m")
	require.NoError(t, err)

	_, err = NewMigrator(db, ms).Up(ctx)
	require.NoError(t, err)

	// An older build only knows the first migration.
	_, err = NewMigrator(db, ms[:1]).Pending(ctx)
	assert.ErrorContains(t, err, "000002_add_bio")
}

func TestNextMigrationFiles(t *testing.T) {
	ms := []Migration{{Version: 3, Name: "analytics"}}
	up, down := NextMigrationFiles(ms, "Add user-blocks")
	assert.Equal(t, "000004_add_user_blocks.up.sql", up)
	assert.Equal(t, "000004_add_user_blocks.down.sql", down)

	up, _ = NextMigrationFiles(nil, "init")
	assert.Equal(t, "000001_init.up.sql", up)
}
