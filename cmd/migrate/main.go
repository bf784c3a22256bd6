package main

import (
	"flag"
	"fmt"
	"log"

	"gorm.io/gorm"

	"github.com/narwhalmedia/catalog/internal/library/repository"
	"github.com/narwhalmedia/catalog/pkg/config"
	"github.com/narwhalmedia/catalog/pkg/database"
)

func main() {
	var (
		status = flag.Bool("status", false, "Show migration status")
		dryRun = flag.Bool("dry-run", false, "Show pending migrations without applying them")
	)
	flag.Parse()

	// database settings come from the catalog config files and CATALOG_ env
	cfg := config.MustLoadServiceConfig("catalog", config.GetDefaultCatalogConfig())

	db, err := openDB(cfg.Database)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	migrator := database.NewMigrator(db, repository.Migrations()).WithLogf(log.Printf)

	switch {
	case *status:
		showMigrationStatus(db, migrator)
	case *dryRun:
		showPendingMigrations(migrator)
	default:
		fmt.Println("Running database migrations...")
		if err := migrator.Migrate(); err != nil {
			log.Fatalf("Failed to run migrations: %v", err)
		}
		fmt.Println("Migrations completed successfully!")
	}
}

func openDB(cfg config.DatabaseConfig) (*gorm.DB, error) {
	if cfg.Driver == config.DriverSQLite {
		return database.NewSQLiteDB(cfg.Database, config.GormLogLevel(cfg.LogLevel))
	}
	return database.NewGormDB(cfg.ToPostgresConfig())
}

// showMigrationStatus displays the current migration status
func showMigrationStatus(db *gorm.DB, migrator *database.Migrator) {
	if err := db.AutoMigrate(&database.Migration{}); err != nil {
		log.Fatalf("Failed to create migrations table: %v", err)
	}

	var migrations []database.Migration
	if err := db.Order("applied_at DESC").Find(&migrations).Error; err != nil {
		log.Fatalf("Failed to get migrations: %v", err)
	}

	if len(migrations) == 0 {
		fmt.Println("No migrations have been applied yet.")
	} else {
		fmt.Println("Applied migrations:")
		fmt.Println("==================")
		for _, m := range migrations {
			fmt.Printf("%s | %s | Applied at: %s\n", m.Version, m.Name, m.AppliedAt.Format("2006-01-02 15:04:05"))
		}
	}

	showPendingMigrations(migrator)
}

// showPendingMigrations displays migrations that would be applied
func showPendingMigrations(migrator *database.Migrator) {
	pending, err := migrator.GetPendingMigrations()
	if err != nil {
		log.Fatalf("Failed to get pending migrations: %v", err)
	}

	if len(pending) == 0 {
		fmt.Println("\nAll migrations are up to date!")
		return
	}

	fmt.Println("\nPending migrations:")
	fmt.Println("==================")
	for _, m := range pending {
		fmt.Printf("%s | %s\n", m.Version, m.Name)
	}
}
