package database

import (
	"fmt"
	"log"

	"gorm.io/gorm"

	"github.com/pageza/nutricalc/backend/internal/models"
)

// Migrate creates or updates every table of the schema
func Migrate(db *gorm.DB) error {
	log.Printf("Running auto-migration (%s)", db.Dialector.Name())
	if err := db.AutoMigrate(models.All()...); err != nil {
		return fmt.Errorf("failed to migrate schema: %w", err)
	}
	return nil
}
