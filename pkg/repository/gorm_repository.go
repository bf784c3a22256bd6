package repository

import (
	"context"
	"errors"
	"fmt"
	"reflect"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	pkgerrors "github.com/narwhalmedia/catalog/pkg/errors"
)

// Create creates a new entity in the database.
func Create[T any](ctx context.Context, db *gorm.DB, entity *T) error {
	if err := db.WithContext(ctx).Create(entity).Error; err != nil {
		if pkgerrors.IsDuplicateError(err) {
			return pkgerrors.Conflict("entity already exists")
		}
		return err
	}
	return nil
}

// FindByID finds an entity by its ID. It preloads specified associations.
func FindByID[T any](ctx context.Context, db *gorm.DB, id uuid.UUID, preloads ...string) (*T, error) {
	var entity T
	query := db.WithContext(ctx)
	for _, preload := range preloads {
		query = query.Preload(preload)
	}

	if err := query.First(&entity, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.NotFound("entity not found")
		}
		return nil, err
	}
	return &entity, nil
}

// FindOneBy finds a single entity by a query condition.
func FindOneBy[T any](ctx context.Context, db *gorm.DB, query string, args ...interface{}) (*T, error) {
	var entity T
	if err := db.WithContext(ctx).Where(query, args...).First(&entity).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.NotFound("entity not found")
		}
		return nil, err
	}
	return &entity, nil
}

// Upsert inserts entity or, when a row with the same conflict columns
// exists, overwrites updateColumns on that row. The entity is reloaded
// afterwards so it carries the persisted primary key.
func Upsert[T any](ctx context.Context, db *gorm.DB, entity *T, conflictColumns, updateColumns []string) error {
	columns := make([]clause.Column, len(conflictColumns))
	for i, name := range conflictColumns {
		columns[i] = clause.Column{Name: name}
	}

	onConflict := clause.OnConflict{Columns: columns}
	if len(updateColumns) == 0 {
		onConflict.DoNothing = true
	} else {
		onConflict.DoUpdates = clause.AssignmentColumns(updateColumns)
	}

	tx := db.WithContext(ctx)
	if err := tx.Clauses(onConflict).Create(entity).Error; err != nil {
		return err
	}

	keys, err := columnValues(tx, entity, conflictColumns)
	if err != nil {
		return err
	}
	// a fresh value avoids gorm adding the generated primary key as a condition
	var stored T
	if err := tx.Where(keys).First(&stored).Error; err != nil {
		return err
	}
	*entity = stored
	return nil
}

func columnValues[T any](db *gorm.DB, entity *T, columns []string) (map[string]interface{}, error) {
	stmt := &gorm.Statement{DB: db}
	if err := stmt.Parse(entity); err != nil {
		return nil, fmt.Errorf("parse schema: %w", err)
	}

	rv := reflect.ValueOf(entity).Elem()
	values := make(map[string]interface{}, len(columns))
	for _, name := range columns {
		field := stmt.Schema.LookUpField(name)
		if field == nil {
			return nil, fmt.Errorf("unknown column %q", name)
		}
		value, _ := field.ValueOf(db.Statement.Context, rv)
		values[name] = value
	}
	return values, nil
}

// Delete removes an entity from the database by its ID.
func Delete[T any](ctx context.Context, db *gorm.DB, id uuid.UUID) error {
	var entity T
	result := db.WithContext(ctx).Delete(&entity, "id = ?", id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return pkgerrors.NotFound("entity not found for deletion")
	}
	return nil
}
