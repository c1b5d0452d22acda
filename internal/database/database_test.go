package database

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pageza/nutricalc/backend/config"
	"github.com/pageza/nutricalc/backend/internal/models"
)

func TestOpenMemory(t *testing.T) {
	db, err := OpenMemory()
	require.NoError(t, err)

	assert.NoError(t, HealthCheck(context.Background(), db))
	for _, m := range models.All() {
		assert.True(t, db.Migrator().HasTable(m), "missing table for %T", m)
	}

	family := models.Family{Name: "Beverages"}
	require.NoError(t, db.Create(&family).Error)
	assert.NotZero(t, family.ID)
}

func TestOpenSQLiteFile(t *testing.T) {
	cfg := &config.Config{DBDriver: config.DriverSQLite, DBPath: t.TempDir() + "/test.db"}

	db, err := Open(cfg)
	require.NoError(t, err)
	require.NoError(t, Migrate(db))
	assert.True(t, db.Migrator().HasTable(&models.Food{}))
}

func TestOpenUnsupportedDriver(t *testing.T) {
	_, err := Open(&config.Config{DBDriver: "oracle"})
	assert.Error(t, err)
}

func TestRedisOptions(t *testing.T) {
	opts, err := RedisOptions(&config.Config{RedisHost: "cache", RedisPort: "6380", RedisDB: 2})
	require.NoError(t, err)
	assert.Equal(t, "cache:6380", opts.Addr)
	assert.Equal(t, 2, opts.DB)

	opts, err = RedisOptions(&config.Config{RedisURL: "redis://:pw@example:6379/3"})
	require.NoError(t, err)
	assert.Equal(t, "example:6379", opts.Addr)
	assert.Equal(t, "pw", opts.Password)
	assert.Equal(t, 3, opts.DB)

	_, err = RedisOptions(&config.Config{RedisURL: "://bad"})
	assert.Error(t, err)
}
