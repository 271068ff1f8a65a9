package migrations

import (
	"gorm.io/gorm"

	boardingpostgres "github.com/Apurer/temporary-care-api/internal/domains/boarding/adapters/persistence/postgres"
)

// Run applies the schema of every bounded context. Adapters never migrate on their own.
func Run(db *gorm.DB) error {
	if db == nil {
		return nil
	}
	return db.AutoMigrate(boardingpostgres.Models()...)
}
