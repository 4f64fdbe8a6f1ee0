package database

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/clubhub/core"
)

func TestMigrate(t *testing.T) {
	db, err := OpenSQLite(":memory:")
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	require.NoError(t, Migrate(context.Background(), db))
	require.NoError(t, Migrate(context.Background(), db), "migrating twice is a no-op")

	var tables []string
	require.NoError(t, db.Select(&tables,
		"SELECT name FROM sqlite_master WHERE type = 'table' AND name IN ('events', 'check_ins') ORDER BY name"))
	assert.Equal(t, []string{"check_ins", "events"}, tables)
}

func Test_postgresURL(t *testing.T) {
	conf := &core.Config{Database: core.DatabaseConfig{
		Engine:   EnginePostgres,
		Host:     "db",
		Port:     "5432",
		User:     "clubhub",
		Password: "s3cr3t",
	}}
	assert.Equal(t, "postgres://clubhub:s3cr3t@db:5432/clubhub?sslmode=require&timezone=utc", postgresURL("clubhub", conf))

	conf.Database.DisableTLS = true
	assert.Equal(t, "postgres://clubhub:s3cr3t@db:5432/events?sslmode=disable&timezone=utc", postgresURL("events", conf))
}

func TestOpen_UnsupportedEngine(t *testing.T) {
	_, err := Open(&core.Config{Database: core.DatabaseConfig{Engine: "oracle"}})
	assert.Error(t, err)
}

func TestCreateIfNotExist_SQLite(t *testing.T) {
	assert.NoError(t, CreateIfNotExist(&core.Config{Database: core.DatabaseConfig{Engine: EngineSQLite}}))
}
