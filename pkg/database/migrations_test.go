package database

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type widget struct {
	ID   uint `gorm:"primaryKey"`
	Name string
}

func TestMigrator_AppliesOnce(t *testing.T) {
	db, err := NewSQLiteDB(":memory:", logger.Silent)
	require.NoError(t, err)

	calls := 0
	entries := []MigrationEntry{
		{Version: "001", Name: "widgets", Up: func(tx *gorm.DB) error {
			calls++
			return tx.AutoMigrate(&widget{})
		}},
	}

	require.NoError(t, NewMigrator(db, entries).Migrate())
	require.NoError(t, NewMigrator(db, entries).Migrate())

	assert.Equal(t, 1, calls)
	pending, err := NewMigrator(db, entries).GetPendingMigrations()
	require.NoError(t, err)
	assert.Empty(t, pending)
	assert.True(t, db.Migrator().HasTable(&widget{}))
}
