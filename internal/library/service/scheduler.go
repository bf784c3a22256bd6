package service

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"

	"github.com/narwhalmedia/catalog/internal/library/domain"
	"github.com/narwhalmedia/catalog/internal/library/repository"
	"github.com/narwhalmedia/catalog/pkg/interfaces"
)

// Scheduler starts periodic scans for libraries with a scan schedule.
type Scheduler struct {
	scans     ScanService
	libraries repository.LibraryStore
	cron      *cron.Cron
	logger    interfaces.Logger

	mu      sync.Mutex
	entries map[uuid.UUID]cron.EntryID
}

// NewScheduler creates a scheduler that starts jobs through scans.
func NewScheduler(scans ScanService, libraries repository.LibraryStore, logger interfaces.Logger) *Scheduler {
	return &Scheduler{
		scans:     scans,
		libraries: libraries,
		cron:      cron.New(),
		logger:    logger.Named("scheduler"),
		entries:   make(map[uuid.UUID]cron.EntryID),
	}
}

// Load schedules every enabled library that has a schedule.
func (s *Scheduler) Load(ctx context.Context) error {
	enabled := true
	libraries, err := s.libraries.ListLibraries(ctx, &enabled)
	if err != nil {
		return fmt.Errorf("list libraries: %w", err)
	}
	for _, library := range libraries {
		if library.ScanSchedule == "" {
			continue
		}
		if err := s.Add(library); err != nil {
			return err
		}
	}
	return nil
}

// Add schedules a library, replacing an earlier schedule.
func (s *Scheduler) Add(library *domain.Library) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if id, ok := s.entries[library.ID]; ok {
		s.cron.Remove(id)
		delete(s.entries, library.ID)
	}

	libraryID := library.ID
	id, err := s.cron.AddFunc(library.ScanSchedule, func() {
		s.trigger(libraryID)
	})
	if err != nil {
		return fmt.Errorf("schedule library %s: %w", libraryID, err)
	}
	s.entries[libraryID] = id

	s.logger.Info("Library scan scheduled",
		interfaces.String("library_id", libraryID.String()),
		interfaces.String("schedule", library.ScanSchedule))
	return nil
}

// Remove drops a library's schedule.
func (s *Scheduler) Remove(libraryID uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if id, ok := s.entries[libraryID]; ok {
		s.cron.Remove(id)
		delete(s.entries, libraryID)
	}
}

// Scheduled reports whether a library has a schedule.
func (s *Scheduler) Scheduled(libraryID uuid.UUID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.entries[libraryID]
	return ok
}

func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop stops the cron runner and waits for triggers in progress.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
}

func (s *Scheduler) trigger(libraryID uuid.UUID) {
	log := s.logger.WithFields(interfaces.String("library_id", libraryID.String()))

	jobID, err := s.scans.StartScan(context.Background(), libraryID)
	switch {
	case errors.Is(err, domain.ErrScanInProgress):
		log.Debug("Scheduled scan skipped, job already running")
	case err != nil:
		log.Warn("Scheduled scan not started", interfaces.Error(err))
	default:
		log.Info("Scheduled scan started", interfaces.String("job_id", jobID.String()))
	}
}
