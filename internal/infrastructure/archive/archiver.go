package archive

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"path"

	"github.com/narwhalmedia/catalog/internal/library/domain"
	"github.com/narwhalmedia/catalog/pkg/config"
	"github.com/narwhalmedia/catalog/pkg/interfaces"
)

// ReportArchiver stores the full report of a finished scan job, per-file
// outcomes included, as one JSON object per job.
type ReportArchiver struct {
	storage Storage
	prefix  string
	logger  interfaces.Logger
}

// NewReportArchiver creates an archiver writing below prefix.
func NewReportArchiver(storage Storage, prefix string, logger interfaces.Logger) *ReportArchiver {
	return &ReportArchiver{
		storage: storage,
		prefix:  prefix,
		logger:  logger.Named("archive"),
	}
}

// NewFromConfig builds the storage selected by cfg.
func NewFromConfig(ctx context.Context, cfg config.ArchiveSettings, logger interfaces.Logger) (*ReportArchiver, error) {
	var (
		storage Storage
		err     error
	)
	if cfg.Bucket != "" {
		storage, err = NewS3Storage(ctx, cfg.Bucket, cfg.Region, cfg.Endpoint, logger)
	} else {
		storage, err = NewLocalStorage(cfg.Dir, logger)
	}
	if err != nil {
		return nil, err
	}
	return NewReportArchiver(storage, cfg.Prefix, logger), nil
}

// Key returns the object key of a job's report.
func (a *ReportArchiver) Key(job *domain.ScanJob) string {
	return path.Join(a.prefix, job.LibraryID.String(), job.ID.String()+".json")
}

// Archive stores the report of a job.
func (a *ReportArchiver) Archive(ctx context.Context, job *domain.ScanJob) error {
	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshaling scan report: %w", err)
	}

	key := a.Key(job)
	if err := a.storage.Store(ctx, key, bytes.NewReader(data)); err != nil {
		return err
	}

	a.logger.Debug("Scan report archived",
		interfaces.String("job_id", job.ID.String()),
		interfaces.String("key", key))
	return nil
}
