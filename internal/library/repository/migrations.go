package repository

import (
	"gorm.io/gorm"

	"github.com/narwhalmedia/catalog/pkg/database"
)

// Migrations returns the catalog schema migrations in order.
func Migrations() []database.MigrationEntry {
	return []database.MigrationEntry{
		{
			Version: "20250601000001",
			Name:    "create_catalog_tables",
			Up: func(tx *gorm.DB) error {
				return tx.AutoMigrate(
					&Library{},
					&Movie{},
					&Show{},
					&Season{},
					&Episode{},
					&MediaFile{},
				)
			},
		},
		{
			Version: "20250601000002",
			Name:    "create_scan_history",
			Up: func(tx *gorm.DB) error {
				return tx.AutoMigrate(&ScanHistory{})
			},
		},
	}
}

// Migrate applies every pending catalog migration.
func Migrate(db *gorm.DB, logf func(format string, args ...interface{})) error {
	m := database.NewMigrator(db, Migrations())
	if logf != nil {
		m = m.WithLogf(logf)
	}
	return m.Migrate()
}
