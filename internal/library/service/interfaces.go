package service

import (
	"context"

	"github.com/google/uuid"

	"github.com/narwhalmedia/catalog/internal/library/domain"
	"github.com/narwhalmedia/catalog/internal/library/walker"
)

// ScanService defines the catalog operations exposed to the transport layer.
type ScanService interface {
	// Scan jobs
	StartScan(ctx context.Context, libraryID uuid.UUID) (uuid.UUID, error)
	CancelScan(jobID uuid.UUID) error
	ScanStatus(jobID uuid.UUID) (*domain.ScanJob, error)
	WaitJob(ctx context.Context, jobID uuid.UUID) (*domain.ScanJob, error)

	// User overrides
	Rematch(ctx context.Context, mediaFileID uuid.UUID, externalID string) error

	// Incremental work from the watcher
	Enqueue(ctx context.Context, item walker.WorkItem) error

	Shutdown(ctx context.Context) error
}

// Ensure ScanController implements the interface.
var _ ScanService = (*ScanController)(nil)
