package service

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/narwhalmedia/catalog/internal/library/domain"
	"github.com/narwhalmedia/catalog/internal/library/matcher"
	"github.com/narwhalmedia/catalog/internal/library/metadata"
	"github.com/narwhalmedia/catalog/internal/library/parser"
	"github.com/narwhalmedia/catalog/internal/library/repository"
	"github.com/narwhalmedia/catalog/internal/library/walker"
	"github.com/narwhalmedia/catalog/pkg/config"
	pkgerrors "github.com/narwhalmedia/catalog/pkg/errors"
	"github.com/narwhalmedia/catalog/pkg/interfaces"
)

// ErrProviderOutage fails a job when the provider cannot be reached and
// FailOnProviderOutage is set.
var ErrProviderOutage = errors.New("metadata provider unavailable")

// finishTimeout bounds the bookkeeping done after a job ends.
const finishTimeout = 10 * time.Second

// JobArchiver stores reports of finished jobs outside the catalog.
type JobArchiver interface {
	Archive(ctx context.Context, job *domain.ScanJob) error
}

type jobRun struct {
	library  *domain.Library
	stopWalk context.CancelFunc
	done     chan struct{}

	cancelled atomic.Bool

	mu  sync.Mutex
	job *domain.ScanJob
}

func (r *jobRun) record(o domain.FileOutcome, change Change) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.job.Record(o)
	switch change {
	case ChangeAdded:
		r.job.Counts.Added++
	case ChangeUpdated:
		r.job.Counts.Updated++
	}
}

func (r *jobRun) snapshot() *domain.ScanJob {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.job.Clone()
}

// ScanController runs scan jobs and incremental work against the catalog.
// At most one job runs per library.
type ScanController struct {
	libraries  repository.LibraryStore
	catalog    repository.Catalog
	provider   metadata.Provider
	persistent interfaces.Cache
	bus        interfaces.EventBus
	archiver   JobArchiver
	scanner    config.ScannerSettings
	matching   config.MatcherSettings
	cacheTTL   time.Duration
	logger     interfaces.Logger

	// library id -> running job id
	active sync.Map
	// bounds provider work of incremental changes to Workers
	incremental *semaphore.Weighted

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu       sync.Mutex
	closing  bool
	jobs     map[uuid.UUID]*jobRun
	finished []uuid.UUID
}

// Option configures optional collaborators of a ScanController.
type Option func(*ScanController)

// WithPersistentCache backs every job's provider cache with c.
func WithPersistentCache(c interfaces.Cache, ttl time.Duration) Option {
	return func(s *ScanController) {
		s.persistent = c
		s.cacheTTL = ttl
	}
}

// WithArchiver stores a report of every finished job.
func WithArchiver(a JobArchiver) Option {
	return func(s *ScanController) {
		s.archiver = a
	}
}

// NewScanController creates a scan controller.
func NewScanController(
	libraries repository.LibraryStore,
	catalog repository.Catalog,
	provider metadata.Provider,
	bus interfaces.EventBus,
	cfg *config.CatalogConfig,
	logger interfaces.Logger,
	opts ...Option,
) *ScanController {
	ctx, cancel := context.WithCancel(context.Background())
	c := &ScanController{
		libraries: libraries,
		catalog:   catalog,
		provider:  provider,
		bus:       bus,
		scanner:   cfg.Scanner,
		matching:  cfg.Matcher,
		logger:    logger.Named("scan"),
		ctx:       ctx,
		cancel:    cancel,
		jobs:      make(map[uuid.UUID]*jobRun),
	}
	if c.scanner.Workers < 1 {
		c.scanner.Workers = 1
	}
	if c.scanner.JobHistory < 1 {
		c.scanner.JobHistory = 1
	}
	c.incremental = semaphore.NewWeighted(int64(c.scanner.Workers))
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// StartScan starts a full scan of a library and returns the job id.
func (c *ScanController) StartScan(ctx context.Context, libraryID uuid.UUID) (uuid.UUID, error) {
	library, err := c.library(ctx, libraryID)
	if err != nil {
		return uuid.Nil, err
	}
	if !library.Enabled {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.ErrorTypeConflict, "library is disabled", domain.ErrLibraryDisabled)
	}

	job := domain.NewScanJob(library.ID)
	if _, loaded := c.active.LoadOrStore(library.ID, job.ID); loaded {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.ErrorTypeConflict, "scan already in progress", domain.ErrScanInProgress)
	}

	walkCtx, stopWalk := context.WithCancel(c.ctx)
	run := &jobRun{
		library:  library,
		stopWalk: stopWalk,
		done:     make(chan struct{}),
		job:      job,
	}

	c.mu.Lock()
	if c.closing {
		c.mu.Unlock()
		stopWalk()
		c.active.Delete(library.ID)
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.ErrorTypeUnavailable, "scan controller is shutting down", domain.ErrShuttingDown)
	}
	c.jobs[job.ID] = run
	c.wg.Add(1)
	c.mu.Unlock()

	go c.run(walkCtx, run)
	return job.ID, nil
}

// CancelScan asks a job to stop. Files already being processed finish;
// nothing new is dispatched.
func (c *ScanController) CancelScan(jobID uuid.UUID) error {
	run, err := c.lookup(jobID)
	if err != nil {
		return err
	}

	run.mu.Lock()
	defer run.mu.Unlock()
	if run.job.State.Terminal() {
		return pkgerrors.Wrap(pkgerrors.ErrorTypeConflict, "scan job already finished",
			fmt.Errorf("%w: %s -> %s", domain.ErrInvalidTransition, run.job.State, domain.JobCancelled))
	}

	run.cancelled.Store(true)
	run.stopWalk()
	if run.job.State == domain.JobPending {
		return run.job.Transition(domain.JobCancelled, time.Now().UTC())
	}
	return nil
}

// ScanStatus returns a snapshot of a job.
func (c *ScanController) ScanStatus(jobID uuid.UUID) (*domain.ScanJob, error) {
	run, err := c.lookup(jobID)
	if err != nil {
		return nil, err
	}
	return run.snapshot(), nil
}

// WaitJob blocks until a job has finished and returns its final state.
func (c *ScanController) WaitJob(ctx context.Context, jobID uuid.UUID) (*domain.ScanJob, error) {
	run, err := c.lookup(jobID)
	if err != nil {
		return nil, err
	}
	select {
	case <-run.done:
		return run.snapshot(), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// ActiveJob returns the running job of a library, if any.
func (c *ScanController) ActiveJob(libraryID uuid.UUID) (uuid.UUID, bool) {
	v, ok := c.active.Load(libraryID)
	if !ok {
		return uuid.Nil, false
	}
	return v.(uuid.UUID), true
}

// Rematch links a media file to the given external id as a user choice.
// Later scans keep the choice.
func (c *ScanController) Rematch(ctx context.Context, mediaFileID uuid.UUID, externalID string) error {
	externalID = strings.TrimSpace(externalID)
	if externalID == "" {
		return pkgerrors.BadRequest("external id is required")
	}

	file, err := c.catalog.GetMediaFile(ctx, mediaFileID)
	if err != nil {
		if repository.IsNotFound(err) {
			return pkgerrors.Wrap(pkgerrors.ErrorTypeNotFound, "media file not found", err)
		}
		return pkgerrors.Wrap(pkgerrors.ErrorTypeUnavailable, "catalog unavailable", err)
	}
	library, err := c.library(ctx, file.LibraryID)
	if err != nil {
		return err
	}

	log := c.logger.WithFields(
		interfaces.String("library_id", library.ID.String()),
		interfaces.String("media_file_id", file.ID.String()))
	provider := c.jobProvider(log)

	hint, err := parser.Parse(file.Path, library.Kind)
	if err != nil {
		hint = nil
	}
	d := matcher.New(provider, library.Kind, c.matching, log).Rematch(externalID, matcher.QueryKind(library.Kind, hint))

	info := FileInfo{Path: file.Path, Size: file.Size, ModTime: file.ModifiedAt}
	if _, _, err := NewReconciler(c.catalog, provider, c.bus, log).Apply(ctx, library, info, hint, d, nil, file); err != nil {
		switch {
		case metadata.IsNotFound(err):
			return pkgerrors.Wrap(pkgerrors.ErrorTypeNotFound, "external id not found", err)
		case metadata.IsTransient(err), domain.IsPersistenceError(err):
			return pkgerrors.Wrap(pkgerrors.ErrorTypeUnavailable, "rematch failed", err)
		default:
			return pkgerrors.Wrap(pkgerrors.ErrorTypeInternal, "rematch failed", err)
		}
	}

	log.Info("Media file rematched", interfaces.String("external_id", externalID))
	return nil
}

// Enqueue processes one incremental change outside of a full job.
func (c *ScanController) Enqueue(ctx context.Context, item walker.WorkItem) error {
	c.mu.Lock()
	if c.closing {
		c.mu.Unlock()
		return pkgerrors.Wrap(pkgerrors.ErrorTypeUnavailable, "scan controller is shutting down", domain.ErrShuttingDown)
	}
	c.wg.Add(1)
	c.mu.Unlock()
	defer c.wg.Done()

	library, err := c.library(ctx, item.LibraryID)
	if err != nil {
		return err
	}
	if !library.Enabled {
		return pkgerrors.Wrap(pkgerrors.ErrorTypeConflict, "library is disabled", domain.ErrLibraryDisabled)
	}
	if !within(library.Path, item.Path) {
		return pkgerrors.BadRequest(fmt.Sprintf("path %q is outside library %s", item.Path, library.ID))
	}

	log := c.logger.WithFields(
		interfaces.String("library_id", library.ID.String()),
		interfaces.String("path", item.Path))
	provider := c.jobProvider(log)
	rec := NewReconciler(c.catalog, provider, c.bus, log)

	if item.Op == walker.OpUpsert {
		fi, err := os.Stat(item.Path)
		switch {
		case errors.Is(err, os.ErrNotExist):
			item.Op = walker.OpRemove
		case err != nil:
			return fmt.Errorf("stat %s: %w", item.Path, err)
		case !fi.Mode().IsRegular():
			return nil
		default:
			if err := c.incremental.Acquire(ctx, 1); err != nil {
				return err
			}
			defer c.incremental.Release(1)

			m := matcher.New(provider, library.Kind, c.matching, log)
			outcome, change, err := c.process(ctx, library, m, rec, FileInfo{Path: item.Path, Size: fi.Size(), ModTime: fi.ModTime()}, nil)
			if err != nil {
				return err
			}
			log.Debug("Incremental change applied",
				interfaces.String("status", string(outcome.Status)),
				interfaces.String("change", string(change)))
			return nil
		}
	}

	return c.removePath(ctx, library, rec, item)
}

// Shutdown stops accepting work, cancels running jobs and waits for them.
// When ctx expires first, in-flight provider calls are aborted.
func (c *ScanController) Shutdown(ctx context.Context) error {
	c.mu.Lock()
	c.closing = true
	runs := make([]*jobRun, 0, len(c.jobs))
	for _, run := range c.jobs {
		runs = append(runs, run)
	}
	c.mu.Unlock()

	for _, run := range runs {
		run.cancelled.Store(true)
		run.stopWalk()
	}

	done := make(chan struct{})
	go func() {
		c.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		c.cancel()
		return nil
	case <-ctx.Done():
		c.cancel()
		return ctx.Err()
	}
}

func (c *ScanController) library(ctx context.Context, id uuid.UUID) (*domain.Library, error) {
	library, err := c.libraries.GetLibrary(ctx, id)
	if err != nil {
		if errors.Is(err, domain.ErrLibraryNotFound) {
			return nil, pkgerrors.Wrap(pkgerrors.ErrorTypeNotFound, "library not found", err)
		}
		return nil, pkgerrors.Wrap(pkgerrors.ErrorTypeUnavailable, "catalog unavailable", err)
	}
	return library, nil
}

func (c *ScanController) lookup(jobID uuid.UUID) (*jobRun, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	run, ok := c.jobs[jobID]
	if !ok {
		return nil, pkgerrors.Wrap(pkgerrors.ErrorTypeNotFound, "scan job not found", domain.ErrJobNotFound)
	}
	return run, nil
}

func (c *ScanController) jobProvider(logger interfaces.Logger) metadata.Provider {
	return metadata.NewCachedProvider(c.provider, metadata.NewJobCache(), c.persistent, c.cacheTTL, logger)
}

func (c *ScanController) walkOptions() walker.Options {
	return walker.Options{
		Extensions:     c.scanner.Extensions,
		IgnorePatterns: c.scanner.IgnorePatterns,
		FollowSymlinks: c.scanner.FollowSymlinks,
	}
}

func (c *ScanController) run(walkCtx context.Context, run *jobRun) {
	defer c.wg.Done()
	defer close(run.done)
	defer run.stopWalk()

	log := c.logger.WithFields(
		interfaces.String("library_id", run.library.ID.String()),
		interfaces.String("job_id", run.job.ID.String()))

	run.mu.Lock()
	started := run.job.State == domain.JobPending
	if started {
		_ = run.job.Transition(domain.JobRunning, time.Now().UTC())
	}
	run.mu.Unlock()

	var err error
	if started {
		log.Info("Scan started", interfaces.String("path", run.library.Path))
		err = c.scan(walkCtx, run, log)
	}
	c.finish(run, err, log)
}

func (c *ScanController) scan(walkCtx context.Context, run *jobRun, log interfaces.Logger) error {
	if err := c.catalog.Ping(c.ctx); err != nil {
		return err
	}

	tree, err := walker.Walk(walkCtx, run.library.Path, c.walkOptions())
	if err != nil {
		return err
	}
	for _, e := range tree.Errors {
		log.Warn("Skipping unreadable entry", interfaces.String("path", e.Path), interfaces.Error(e.Err))
		run.record(domain.FileOutcome{Path: e.Path, Status: domain.OutcomeSkipped, Error: e.Err.Error()}, ChangeNone)
	}

	provider := c.jobProvider(log)
	m := matcher.New(provider, run.library.Kind, c.matching, log)
	rec := NewReconciler(c.catalog, provider, c.bus, log)
	jobID := run.job.ID

	files := make(chan *walker.Node, c.scanner.QueueSize)
	g, gctx := errgroup.WithContext(c.ctx)
	for i := 0; i < c.scanner.Workers; i++ {
		g.Go(func() error {
			for n := range files {
				if run.cancelled.Load() || gctx.Err() != nil {
					continue
				}
				info := FileInfo{Path: n.Path, Size: n.Size, ModTime: n.ModTime}
				outcome, change, err := c.process(gctx, run.library, m, rec, info, &jobID)
				if err != nil {
					return err
				}
				run.record(outcome, change)
			}
			return nil
		})
	}
	g.Go(func() error {
		defer close(files)
		for _, n := range tree.Files() {
			if run.cancelled.Load() {
				return nil
			}
			select {
			case files <- n:
			case <-gctx.Done():
				return nil
			}
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}
	if run.cancelled.Load() || !c.scanner.RemoveMissing {
		return nil
	}
	return c.removeMissing(c.ctx, run, rec, tree)
}

// process runs one file through parse, match and reconcile. A returned
// error is a job-level fault; file-level problems are in the outcome.
func (c *ScanController) process(
	ctx context.Context,
	library *domain.Library,
	m *matcher.Matcher,
	rec *Reconciler,
	info FileInfo,
	jobID *uuid.UUID,
) (domain.FileOutcome, Change, error) {
	outcome := domain.FileOutcome{Path: info.Path}

	existing, err := c.catalog.FindMediaFileByPath(ctx, library.ID, info.Path)
	if err != nil {
		if !repository.IsNotFound(err) {
			return outcome, ChangeNone, err
		}
		existing = nil
	}
	var prior *matcher.Prior
	if existing != nil {
		prior = &matcher.Prior{
			ExternalID:    existing.ExternalID,
			Kind:          domain.Kind(existing.Kind),
			UserConfirmed: existing.UserConfirmed,
		}
	}

	hint, err := parser.Parse(info.Path, library.Kind)
	if err != nil {
		hint = nil
	}
	d := m.Match(ctx, hint, prior)

	if d.Reason == matcher.ReasonProviderError {
		if err := ctx.Err(); err != nil {
			return outcome, ChangeNone, err
		}
		if c.scanner.FailOnProviderOutage && metadata.IsOutage(d.Err) {
			return outcome, ChangeNone, fmt.Errorf("%w: %v", ErrProviderOutage, d.Err)
		}
	}

	file, change, err := rec.Apply(ctx, library, info, hint, d, jobID, existing)
	if err != nil {
		if isJobFault(err) {
			return outcome, ChangeNone, err
		}
		outcome.Status = domain.OutcomeFailed
		outcome.Error = err.Error()
		return outcome, ChangeNone, nil
	}

	outcome.Reason = string(d.Reason)
	outcome.ExternalID = file.ExternalID
	if d.Err != nil {
		outcome.Error = d.Err.Error()
	}
	switch domain.MatchStatus(file.MatchStatus) {
	case domain.MatchStatusMatched:
		outcome.Status = domain.OutcomeMatched
	case domain.MatchStatusAmbiguous:
		outcome.Status = domain.OutcomeAmbiguous
	default:
		outcome.Status = domain.OutcomeUnmatched
		if d.Reason == matcher.ReasonProviderError {
			outcome.Status = domain.OutcomeFailed
		}
	}
	return outcome, change, nil
}

// removeMissing deletes the stored files of a library that the walk did not
// see. Paths below unreadable directories are kept, and so are rows written
// after the job started, which come from incremental changes.
func (c *ScanController) removeMissing(ctx context.Context, run *jobRun, rec *Reconciler, tree *walker.Tree) error {
	stored, err := c.catalog.ListMediaFilePaths(ctx, run.library.ID)
	if err != nil {
		return err
	}

	run.mu.Lock()
	started := *run.job.StartedAt
	run.mu.Unlock()
	// postgres keeps microseconds
	cutoff := started.Truncate(time.Microsecond)

	seen := make(map[string]bool, tree.FileCount())
	for _, f := range tree.Files() {
		seen[f.Path] = true
	}

	missing := make([]string, 0)
	for path, sp := range stored {
		if seen[path] || underAny(path, tree.Errors) || !sp.UpdatedAt.Before(cutoff) {
			continue
		}
		missing = append(missing, path)
	}
	sort.Strings(missing)

	jobID := run.job.ID
	for _, path := range missing {
		file := &repository.MediaFile{ID: stored[path].ID, LibraryID: run.library.ID, Path: path}
		if err := rec.Remove(ctx, run.library, file, &jobID); err != nil {
			return err
		}
		run.record(domain.FileOutcome{Path: path, Status: domain.OutcomeRemoved}, ChangeNone)
	}
	return nil
}

func (c *ScanController) removePath(ctx context.Context, library *domain.Library, rec *Reconciler, item walker.WorkItem) error {
	if item.Dir {
		files, err := c.catalog.ListMediaFilesUnder(ctx, library.ID, item.Path)
		if err != nil {
			return err
		}
		for _, f := range files {
			if err := rec.Remove(ctx, library, f, nil); err != nil {
				return err
			}
		}
		return nil
	}

	file, err := c.catalog.FindMediaFileByPath(ctx, library.ID, item.Path)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil
		}
		return err
	}
	return rec.Remove(ctx, library, file, nil)
}

func (c *ScanController) finish(run *jobRun, cause error, log interfaces.Logger) {
	now := time.Now().UTC()

	run.mu.Lock()
	switch {
	case run.job.State.Terminal():
	case run.cancelled.Load() || errors.Is(cause, context.Canceled):
		_ = run.job.Transition(domain.JobCancelled, now)
	case cause != nil:
		_ = run.job.Fail(cause, now)
	default:
		_ = run.job.Transition(domain.JobCompleted, now)
	}
	job := run.job.Clone()
	run.mu.Unlock()

	// the library is free only once its job is terminal
	c.active.Delete(run.library.ID)
	c.remember(job.ID)

	ctx, cancel := context.WithTimeout(context.Background(), finishTimeout)
	defer cancel()

	if err := c.catalog.SaveScanHistory(ctx, historyOf(job)); err != nil {
		log.Error("Failed to save scan history", interfaces.Error(err))
	}
	if c.archiver != nil {
		if err := c.archiver.Archive(ctx, job); err != nil {
			log.Warn("Failed to archive scan report", interfaces.Error(err))
		}
	}
	c.bus.PublishAsync(ctx, domain.NewScanFinishedEvent(job))

	fields := []interfaces.Field{
		interfaces.String("state", string(job.State)),
		interfaces.Int("seen", job.Counts.Seen),
		interfaces.Int("matched", job.Counts.Matched),
		interfaces.Int("ambiguous", job.Counts.Ambiguous),
		interfaces.Int("unmatched", job.Counts.Unmatched),
		interfaces.Int("failed", job.Counts.Failed),
		interfaces.Int("removed", job.Counts.Removed),
		interfaces.Duration("duration", job.Duration()),
	}
	if job.State == domain.JobFailed {
		log.Error("Scan failed", append(fields, interfaces.String("error", job.Error))...)
		return
	}
	log.Info("Scan finished", fields...)
}

// remember keeps the newest finished jobs queryable and forgets the rest.
func (c *ScanController) remember(jobID uuid.UUID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.finished = append(c.finished, jobID)
	for len(c.finished) > c.scanner.JobHistory {
		delete(c.jobs, c.finished[0])
		c.finished = c.finished[1:]
	}
}

func historyOf(job *domain.ScanJob) *repository.ScanHistory {
	return &repository.ScanHistory{
		ID:           job.ID,
		LibraryID:    job.LibraryID,
		State:        string(job.State),
		StartedAt:    job.StartedAt,
		FinishedAt:   job.FinishedAt,
		FilesSeen:    job.Counts.Seen,
		Matched:      job.Counts.Matched,
		Ambiguous:    job.Counts.Ambiguous,
		Unmatched:    job.Counts.Unmatched,
		Failed:       job.Counts.Failed,
		Skipped:      job.Counts.Skipped,
		FilesAdded:   job.Counts.Added,
		FilesUpdated: job.Counts.Updated,
		FilesDeleted: job.Counts.Removed,
		ErrorMessage: job.Error,
	}
}

func within(root, path string) bool {
	rel, err := filepath.Rel(filepath.Clean(root), filepath.Clean(path))
	return err == nil && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

func underAny(path string, errs []walker.EntryError) bool {
	for _, e := range errs {
		if within(e.Path, path) {
			return true
		}
	}
	return false
}
