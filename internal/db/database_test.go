package db

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Skotchmaster/pharmacy_portal/internal/config"
	"github.com/Skotchmaster/pharmacy_portal/internal/models"
)

func TestOpen_SQLiteAndMigrate(t *testing.T) {
	cfg := &config.Config{
		StoreDriver: config.StoreSQLite,
		SQLitePath:  filepath.Join(t.TempDir(), "portal.db"),
	}

	db, err := Open(context.Background(), cfg)
	require.NoError(t, err)
	require.NoError(t, Migrate(db))

	assert.True(t, db.Migrator().HasTable(&models.StorageEntry{}))
}

func TestOpen_RejectsNonSQLDriver(t *testing.T) {
	_, err := Open(context.Background(), &config.Config{StoreDriver: config.StoreRedis})
	require.Error(t, err)
}

func TestOpen_PostgresRequiresDSN(t *testing.T) {
	_, err := Open(context.Background(), &config.Config{StoreDriver: config.StorePostgres, PGDriver: "pgx"})
	require.Error(t, err)
}
