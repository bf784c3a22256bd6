package testutil

import (
	"testing"

	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/narwhalmedia/catalog/internal/library/repository"
	"github.com/narwhalmedia/catalog/pkg/database"
)

// NewSQLiteDB opens a private in-memory database with the catalog schema
// applied. It is closed when the test ends.
func NewSQLiteDB(t testing.TB) *gorm.DB {
	t.Helper()

	db, err := database.NewSQLiteDB(":memory:", logger.Silent)
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}
	t.Cleanup(func() {
		sqlDB, _ := db.DB()
		if sqlDB != nil {
			sqlDB.Close()
		}
	})

	if err := repository.Migrate(db, nil); err != nil {
		t.Fatalf("Failed to migrate test database: %v", err)
	}
	return db
}

// NewCatalog returns a gorm catalog over a fresh in-memory database.
func NewCatalog(t testing.TB) *repository.GormCatalog {
	t.Helper()
	return repository.NewGormCatalog(NewSQLiteDB(t))
}
