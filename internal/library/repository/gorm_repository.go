package repository

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/narwhalmedia/catalog/internal/library/domain"
	pkgerrors "github.com/narwhalmedia/catalog/pkg/errors"
	"github.com/narwhalmedia/catalog/pkg/repository"
)

// GormCatalog implements Catalog and LibraryStore using GORM.
type GormCatalog struct {
	db *gorm.DB
}

// NewGormCatalog creates a new GORM catalog.
func NewGormCatalog(db *gorm.DB) *GormCatalog {
	return &GormCatalog{db: db}
}

func persistence(op string, err error) error {
	return &domain.PersistenceError{Op: op, Err: err}
}

// CreateLibrary registers a library.
func (r *GormCatalog) CreateLibrary(ctx context.Context, library *domain.Library) error {
	model := fromDomainLibrary(library)
	if err := repository.Create(ctx, r.db, model); err != nil {
		if pkgerrors.IsConflict(err) {
			return err
		}
		return persistence("create library", err)
	}
	library.ID = model.ID
	library.CreatedAt = model.CreatedAt
	library.UpdatedAt = model.UpdatedAt
	return nil
}

// GetLibrary retrieves a library by ID.
func (r *GormCatalog) GetLibrary(ctx context.Context, id uuid.UUID) (*domain.Library, error) {
	model, err := repository.FindByID[Library](ctx, r.db, id)
	if err != nil {
		if pkgerrors.IsNotFound(err) {
			return nil, fmt.Errorf("%w: %s", domain.ErrLibraryNotFound, id)
		}
		return nil, persistence("get library", err)
	}
	return model.toDomain(), nil
}

// ListLibraries lists libraries, optionally filtered by enabled state.
func (r *GormCatalog) ListLibraries(ctx context.Context, enabled *bool) ([]*domain.Library, error) {
	query := r.db.WithContext(ctx)
	if enabled != nil {
		query = query.Where("enabled = ?", *enabled)
	}

	var models []*Library
	if err := query.Order("name").Find(&models).Error; err != nil {
		return nil, persistence("list libraries", err)
	}
	libraries := make([]*domain.Library, len(models))
	for i, m := range models {
		libraries[i] = m.toDomain()
	}
	return libraries, nil
}

// FindMediaFileByPath retrieves a media file by library and path.
func (r *GormCatalog) FindMediaFileByPath(ctx context.Context, libraryID uuid.UUID, path string) (*MediaFile, error) {
	file, err := repository.FindOneBy[MediaFile](ctx, r.db, "library_id = ? AND path = ?", libraryID, path)
	if err != nil {
		if pkgerrors.IsNotFound(err) {
			return nil, fmt.Errorf("%w: %s", domain.ErrMediaNotFound, path)
		}
		return nil, persistence("find media file", err)
	}
	return file, nil
}

// GetMediaFile retrieves a media file by ID.
func (r *GormCatalog) GetMediaFile(ctx context.Context, id uuid.UUID) (*MediaFile, error) {
	file, err := repository.FindByID[MediaFile](ctx, r.db, id)
	if err != nil {
		if pkgerrors.IsNotFound(err) {
			return nil, fmt.Errorf("%w: %s", domain.ErrMediaNotFound, id)
		}
		return nil, persistence("get media file", err)
	}
	return file, nil
}

// UpsertMediaFile inserts or updates a media file by (library_id, path).
func (r *GormCatalog) UpsertMediaFile(ctx context.Context, file *MediaFile) error {
	err := repository.Upsert(ctx, r.db, file,
		[]string{"library_id", "path"},
		[]string{
			"size", "modified_at", "kind", "match_status", "match_reason", "external_id", "score",
			"user_confirmed", "candidates", "movie_id", "episode_id", "last_seen_job_id", "updated_at",
		})
	if err != nil {
		return persistence("upsert media file", err)
	}
	return nil
}

// DeleteMediaFile deletes a media file.
func (r *GormCatalog) DeleteMediaFile(ctx context.Context, id uuid.UUID) error {
	if err := repository.Delete[MediaFile](ctx, r.db, id); err != nil {
		if pkgerrors.IsNotFound(err) {
			return fmt.Errorf("%w: %s", domain.ErrMediaNotFound, id)
		}
		return persistence("delete media file", err)
	}
	return nil
}

// ListMediaFilePaths maps every stored path of a library to its file id
// and last write time.
func (r *GormCatalog) ListMediaFilePaths(ctx context.Context, libraryID uuid.UUID) (map[string]StoredPath, error) {
	var rows []struct {
		ID        uuid.UUID
		Path      string
		UpdatedAt time.Time
	}
	err := r.db.WithContext(ctx).Model(&MediaFile{}).
		Select("id", "path", "updated_at").
		Where("library_id = ?", libraryID).
		Find(&rows).Error
	if err != nil {
		return nil, persistence("list media file paths", err)
	}

	paths := make(map[string]StoredPath, len(rows))
	for _, row := range rows {
		paths[row.Path] = StoredPath{ID: row.ID, UpdatedAt: row.UpdatedAt}
	}
	return paths, nil
}

// ListMediaFilesUnder returns the files stored below dir.
func (r *GormCatalog) ListMediaFilesUnder(ctx context.Context, libraryID uuid.UUID, dir string) ([]*MediaFile, error) {
	prefix := strings.TrimSuffix(filepath.Clean(dir), string(filepath.Separator)) + string(filepath.Separator)

	var candidates []*MediaFile
	err := r.db.WithContext(ctx).
		Where("library_id = ? AND path LIKE ?", libraryID, escapeLike(prefix)+"%").
		Order("path").
		Find(&candidates).Error
	if err != nil {
		return nil, persistence("list media files under", err)
	}

	// LIKE escaping differs between drivers, so the prefix is checked again
	files := candidates[:0]
	for _, f := range candidates {
		if strings.HasPrefix(f.Path, prefix) {
			files = append(files, f)
		}
	}
	return files, nil
}

func escapeLike(s string) string {
	return strings.NewReplacer("%", "_", "_", "_").Replace(s)
}

// UpsertMovie inserts or updates a movie by (library_id, provider, external_id).
func (r *GormCatalog) UpsertMovie(ctx context.Context, movie *Movie) error {
	err := repository.Upsert(ctx, r.db, movie,
		[]string{"library_id", "provider", "external_id"},
		[]string{"title", "original_title", "year", "overview", "runtime", "genres", "updated_at"})
	if err != nil {
		return persistence("upsert movie", err)
	}
	return nil
}

// UpsertShow inserts or updates a show by (library_id, provider, external_id).
func (r *GormCatalog) UpsertShow(ctx context.Context, show *Show) error {
	err := repository.Upsert(ctx, r.db, show,
		[]string{"library_id", "provider", "external_id"},
		[]string{"title", "original_title", "year", "overview", "genres", "updated_at"})
	if err != nil {
		return persistence("upsert show", err)
	}
	return nil
}

// UpsertSeason inserts or updates a season by (show_id, number).
func (r *GormCatalog) UpsertSeason(ctx context.Context, season *Season) error {
	err := repository.Upsert(ctx, r.db, season,
		[]string{"show_id", "number"},
		[]string{"name", "updated_at"})
	if err != nil {
		return persistence("upsert season", err)
	}
	return nil
}

// UpsertEpisode inserts or updates an episode by (season_id, number).
func (r *GormCatalog) UpsertEpisode(ctx context.Context, episode *Episode) error {
	err := repository.Upsert(ctx, r.db, episode,
		[]string{"season_id", "number"},
		[]string{"title", "air_date", "updated_at"})
	if err != nil {
		return persistence("upsert episode", err)
	}
	return nil
}

// SaveScanHistory stores a finished job summary, replacing an earlier one.
func (r *GormCatalog) SaveScanHistory(ctx context.Context, history *ScanHistory) error {
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{UpdateAll: true}).
		Create(history).Error
	if err != nil {
		return persistence("save scan history", err)
	}
	return nil
}

// ListScanHistory returns the most recent jobs of a library, newest first.
func (r *GormCatalog) ListScanHistory(ctx context.Context, libraryID uuid.UUID, limit int) ([]*ScanHistory, error) {
	var items []*ScanHistory
	err := r.db.WithContext(ctx).
		Where("library_id = ?", libraryID).
		Order("created_at DESC").
		Limit(limit).
		Find(&items).Error
	if err != nil {
		return nil, persistence("list scan history", err)
	}
	return items, nil
}

// Transaction runs fn inside a database transaction.
func (r *GormCatalog) Transaction(ctx context.Context, fn func(tx Catalog) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&GormCatalog{db: tx})
	})
}

// Ping checks that the database is reachable.
func (r *GormCatalog) Ping(ctx context.Context) error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return persistence("ping", err)
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		return persistence("ping", err)
	}
	return nil
}

// IsNotFound reports whether err means the requested record does not exist.
func IsNotFound(err error) bool {
	return errors.Is(err, domain.ErrMediaNotFound) || errors.Is(err, domain.ErrLibraryNotFound)
}

func fromDomainLibrary(l *domain.Library) *Library {
	return &Library{
		ID:           l.ID,
		Name:         l.Name,
		Path:         l.Path,
		Kind:         string(l.Kind),
		Enabled:      l.Enabled,
		WatchEnabled: l.WatchEnabled,
		ScanSchedule: l.ScanSchedule,
		LastScanAt:   l.LastScanAt,
	}
}

func (l *Library) toDomain() *domain.Library {
	return &domain.Library{
		ID:           l.ID,
		Name:         l.Name,
		Path:         l.Path,
		Kind:         domain.Kind(l.Kind),
		Enabled:      l.Enabled,
		WatchEnabled: l.WatchEnabled,
		ScanSchedule: l.ScanSchedule,
		LastScanAt:   l.LastScanAt,
		CreatedAt:    l.CreatedAt,
		UpdatedAt:    l.UpdatedAt,
	}
}
