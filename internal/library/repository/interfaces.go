package repository

import (
	"context"

	"github.com/google/uuid"

	"github.com/narwhalmedia/catalog/internal/library/domain"
)

// LibraryStore reads the registered libraries.
type LibraryStore interface {
	GetLibrary(ctx context.Context, id uuid.UUID) (*domain.Library, error)
	ListLibraries(ctx context.Context, enabled *bool) ([]*domain.Library, error)
}

// Catalog is the persistence surface of scan reconciliation. Upserts are
// keyed on each record's natural key and leave the record carrying its
// stored primary key.
type Catalog interface {
	FindMediaFileByPath(ctx context.Context, libraryID uuid.UUID, path string) (*MediaFile, error)
	GetMediaFile(ctx context.Context, id uuid.UUID) (*MediaFile, error)
	UpsertMediaFile(ctx context.Context, file *MediaFile) error
	DeleteMediaFile(ctx context.Context, id uuid.UUID) error

	// ListMediaFilePaths maps every stored path of a library to its file id
	// and last write time
	ListMediaFilePaths(ctx context.Context, libraryID uuid.UUID) (map[string]StoredPath, error)

	// ListMediaFilesUnder returns the files stored below a directory
	ListMediaFilesUnder(ctx context.Context, libraryID uuid.UUID, dir string) ([]*MediaFile, error)

	UpsertMovie(ctx context.Context, movie *Movie) error
	UpsertShow(ctx context.Context, show *Show) error
	UpsertSeason(ctx context.Context, season *Season) error
	UpsertEpisode(ctx context.Context, episode *Episode) error

	SaveScanHistory(ctx context.Context, history *ScanHistory) error
	ListScanHistory(ctx context.Context, libraryID uuid.UUID, limit int) ([]*ScanHistory, error)

	// Transaction runs fn against a catalog bound to one transaction
	Transaction(ctx context.Context, fn func(tx Catalog) error) error

	Ping(ctx context.Context) error
}
