package testhelpers

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pageza/nutricalc/backend/internal/models"
)

func TestSetupSQLiteDatabase(t *testing.T) {
	db := SetupSQLiteDatabase(t)
	for _, m := range models.All() {
		assert.True(t, db.Migrator().HasTable(m), "missing table for %T", m)
	}

	family := models.Family{Name: "Fruits"}
	require.NoError(t, db.Create(&family).Error)
	assert.NotZero(t, family.ID)
}

func TestSetupPostgresDatabase(t *testing.T) {
	db := SetupPostgresDatabase(t)
	assert.Equal(t, "postgres", db.Dialector.Name())
	for _, m := range models.All() {
		assert.True(t, db.Migrator().HasTable(m), "missing table for %T", m)
	}
}
