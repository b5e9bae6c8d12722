package migrations

import (
	"gorm.io/gorm"

	fundspostgres "github.com/Apurer/fund-ledger/internal/domains/funds/adapters/persistence/postgres"
)

// Run applies the schema for the bounded contexts. Adapters never automigrate themselves.
func Run(db *gorm.DB) error {
	if db == nil {
		return nil
	}
	return db.AutoMigrate(fundspostgres.Models()...)
}
