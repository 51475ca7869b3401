package migrate

import (
	"context"
	"database/sql"
	"io/fs"
	"testing"
	"testing/fstest"

	"github.com/pressly/goose/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

var sampleMigrations = fstest.MapFS{
	"20250101000000_create_watches.sql": {Data: []byte(`-- +goose Up
CREATE TABLE watches (id TEXT PRIMARY KEY);
-- +goose Down
DROP TABLE watches;
`)},
	"20250102000000_add_brand.sql": {Data: []byte(`-- +goose Up
ALTER TABLE watches ADD COLUMN brand TEXT;
-- +goose Down
ALTER TABLE watches DROP COLUMN brand;
`)},
}

func sqliteDB(t *testing.T) *sql.DB {
	t.Helper()
	gdb, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := gdb.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	return sqlDB
}

func TestMigratorUpStatusAndTo(t *testing.T) {
	ctx := context.Background()
	m, err := newMigrator(goose.DialectSQLite3, sqliteDB(t), sampleMigrations)
	require.NoError(t, err)

	applied, err := m.Up(ctx)
	require.NoError(t, err)
	require.Len(t, applied, 2)
	assert.Equal(t, int64(20250101000000), applied[0].Version)
	assert.Equal(t, "up", applied[0].Direction)

	statuses, err := m.Status(ctx)
	require.NoError(t, err)
	require.Len(t, statuses, 2)
	assert.True(t, statuses[1].Applied)

	rolled, err := m.To(ctx, "20250101000000")
	require.NoError(t, err)
	require.Len(t, rolled, 1)
	assert.Equal(t, "down", rolled[0].Direction)
	assert.Equal(t, int64(20250102000000), rolled[0].Version)

	again, err := m.To(ctx, "20250101000000")
	require.NoError(t, err)
	assert.Empty(t, again)

	_, err = m.To(ctx, "latest")
	assert.ErrorContains(t, err, "invalid version")
}

func TestNewRequiresDatabaseAndDirectory(t *testing.T) {
	_, err := New(nil, "")
	assert.EqualError(t, err, "db is required")

	_, err = New(sqliteDB(t), t.TempDir()+"/missing")
	assert.ErrorContains(t, err, "migrations dir")
}

func TestEmbeddedSourceHasMigrations(t *testing.T) {
	fsys, err := source("")
	require.NoError(t, err)
	files, err := fs.Glob(fsys, "*.sql")
	require.NoError(t, err)
	assert.NotEmpty(t, files)
	assert.Contains(t, files, "20250301090000_create_catalog_tables.sql")
}
