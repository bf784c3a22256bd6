package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/narwhalmedia/catalog/internal/library/domain"
	"github.com/narwhalmedia/catalog/internal/library/matcher"
	"github.com/narwhalmedia/catalog/internal/library/metadata"
	"github.com/narwhalmedia/catalog/internal/library/parser"
	"github.com/narwhalmedia/catalog/internal/library/repository"
	"github.com/narwhalmedia/catalog/pkg/interfaces"
)

// FileInfo is the on-disk state of a media file.
type FileInfo struct {
	Path    string
	Size    int64
	ModTime time.Time
}

// Change tells what reconciling a file did to the catalog.
type Change string

const (
	ChangeNone    Change = "none"
	ChangeAdded   Change = "added"
	ChangeUpdated Change = "updated"
)

// Reconciler writes match decisions into the catalog and announces the
// resulting changes. Applying the same decision twice changes nothing.
type Reconciler struct {
	catalog  repository.Catalog
	provider metadata.Provider
	bus      interfaces.EventBus
	logger   interfaces.Logger
}

// NewReconciler creates a reconciler. The provider is used for details the
// decision does not carry.
func NewReconciler(catalog repository.Catalog, provider metadata.Provider, bus interfaces.EventBus, logger interfaces.Logger) *Reconciler {
	return &Reconciler{
		catalog:  catalog,
		provider: provider,
		bus:      bus,
		logger:   logger,
	}
}

// Apply persists the decision for one file. existing is the stored record
// of the same path, or nil.
func (r *Reconciler) Apply(
	ctx context.Context,
	library *domain.Library,
	info FileInfo,
	hint *parser.Hint,
	d matcher.Decision,
	jobID *uuid.UUID,
	existing *repository.MediaFile,
) (*repository.MediaFile, Change, error) {
	// a provider outage never downgrades a stored match
	keep := existing != nil && (d.Preserved || d.Reason == matcher.ReasonProviderError && existing.MatchStatus != string(domain.MatchStatusUnmatched))

	var details *metadata.Details
	if d.Matched() && !keep {
		var err error
		if details, err = r.details(ctx, d); err != nil {
			return nil, ChangeNone, err
		}
	}

	file := &repository.MediaFile{
		LibraryID:     library.ID,
		Path:          info.Path,
		Size:          info.Size,
		ModifiedAt:    info.ModTime.UTC().Truncate(time.Microsecond),
		LastSeenJobID: jobID,
	}
	if existing != nil {
		file.ID = existing.ID
		file.CreatedAt = existing.CreatedAt
	}

	err := r.catalog.Transaction(ctx, func(tx repository.Catalog) error {
		switch {
		case keep:
			copyMatch(file, existing)
		case d.Matched():
			if err := link(ctx, tx, library, file, hint, d, details); err != nil {
				return err
			}
		default:
			file.Kind = string(d.Kind)
			file.MatchStatus = string(d.Status())
			file.MatchReason = string(d.Reason)
			file.Score = d.Score
			file.Candidates = storedCandidates(d.Candidates)
		}
		if existing != nil && !changed(existing, file) {
			file.LastSeenJobID = existing.LastSeenJobID
			file.UpdatedAt = existing.UpdatedAt
			return nil
		}
		return tx.UpsertMediaFile(ctx, file)
	})
	if err != nil {
		return nil, ChangeNone, err
	}

	change := ChangeAdded
	if existing != nil {
		change = ChangeNone
		if changed(existing, file) {
			change = ChangeUpdated
		}
	}
	r.announce(ctx, library, file, change, jobID)
	return file, change, nil
}

// Remove deletes a stored file and announces it.
func (r *Reconciler) Remove(ctx context.Context, library *domain.Library, file *repository.MediaFile, jobID *uuid.UUID) error {
	if err := r.catalog.DeleteMediaFile(ctx, file.ID); err != nil {
		if repository.IsNotFound(err) {
			return nil
		}
		return err
	}

	event := domain.NewMediaFileEvent(domain.EventMediaFileRemoved, library.ID, file.ID, file.Path)
	event.JobID = jobID
	event.ExternalID = file.ExternalID
	r.bus.PublishAsync(ctx, event)
	return nil
}

func (r *Reconciler) details(ctx context.Context, d matcher.Decision) (*metadata.Details, error) {
	if d.Details != nil {
		return d.Details, nil
	}
	if d.Kind == domain.KindMovie && d.Candidate != nil {
		return &metadata.Details{
			ExternalID:    d.Candidate.ExternalID,
			Provider:      d.Candidate.Provider,
			Kind:          d.Candidate.Kind,
			Title:         d.Candidate.Title,
			OriginalTitle: d.Candidate.OriginalTitle,
			Year:          d.Candidate.Year,
		}, nil
	}

	details, err := r.provider.Details(ctx, d.ExternalID, d.Kind)
	if err != nil {
		return nil, fmt.Errorf("fetch details of %s: %w", d.ExternalID, err)
	}
	return details, nil
}

// link upserts the movie or show records the decision points at and
// attaches the file to them.
func link(
	ctx context.Context,
	tx repository.Catalog,
	library *domain.Library,
	file *repository.MediaFile,
	hint *parser.Hint,
	d matcher.Decision,
	details *metadata.Details,
) error {
	file.Kind = string(d.Kind)
	file.MatchStatus = string(domain.MatchStatusMatched)
	file.ExternalID = d.ExternalID
	file.Score = d.Score
	file.UserConfirmed = d.UserConfirmed

	provider := details.Provider
	if provider == "" {
		provider, _ = metadata.SplitExternalID(d.ExternalID)
	}

	if d.Kind == domain.KindMovie {
		movie := &repository.Movie{
			LibraryID:     library.ID,
			Provider:      provider,
			ExternalID:    d.ExternalID,
			Title:         details.Title,
			OriginalTitle: details.OriginalTitle,
			Year:          details.Year,
			Overview:      details.Overview,
			Runtime:       details.Runtime,
			Genres:        details.Genres,
		}
		if err := tx.UpsertMovie(ctx, movie); err != nil {
			return err
		}
		file.MovieID = &movie.ID
		return nil
	}

	show := &repository.Show{
		LibraryID:     library.ID,
		Provider:      provider,
		ExternalID:    d.ExternalID,
		Title:         details.Title,
		OriginalTitle: details.OriginalTitle,
		Year:          details.Year,
		Overview:      details.Overview,
		Genres:        details.Genres,
	}
	if err := tx.UpsertShow(ctx, show); err != nil {
		return err
	}
	if hint == nil || !hint.HasEpisode() {
		return nil
	}

	seasonDetails := details.Season(*hint.Season)
	season := &repository.Season{ShowID: show.ID, Number: *hint.Season}
	if seasonDetails != nil {
		season.Name = seasonDetails.Name
	}
	if err := tx.UpsertSeason(ctx, season); err != nil {
		return err
	}

	// a multi-episode file links to its first known episode
	for _, number := range hint.Episodes() {
		ed := details.Episode(*hint.Season, number)
		if ed == nil {
			continue
		}
		episode := &repository.Episode{SeasonID: season.ID, Number: number, Title: ed.Title, AirDate: ed.AirDate}
		if err := tx.UpsertEpisode(ctx, episode); err != nil {
			return err
		}
		if file.EpisodeID == nil {
			file.EpisodeID = &episode.ID
		}
	}
	return nil
}

func copyMatch(dst, src *repository.MediaFile) {
	dst.Kind = src.Kind
	dst.MatchStatus = src.MatchStatus
	dst.MatchReason = src.MatchReason
	dst.ExternalID = src.ExternalID
	dst.Score = src.Score
	dst.UserConfirmed = src.UserConfirmed
	dst.Candidates = src.Candidates
	dst.MovieID = src.MovieID
	dst.EpisodeID = src.EpisodeID
}

func storedCandidates(scored []matcher.Scored) []repository.Candidate {
	if len(scored) == 0 {
		return nil
	}
	out := make([]repository.Candidate, len(scored))
	for i, s := range scored {
		out[i] = repository.Candidate{
			ExternalID: s.Candidate.ExternalID,
			Title:      s.Candidate.Title,
			Year:       s.Candidate.Year,
			Score:      s.Score,
		}
	}
	return out
}

func sameID(a, b *uuid.UUID) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

// changed compares the catalog-visible state of two records.
func changed(before, after *repository.MediaFile) bool {
	return before.Size != after.Size ||
		!before.ModifiedAt.Equal(after.ModifiedAt) ||
		before.MatchStatus != after.MatchStatus ||
		before.MatchReason != after.MatchReason ||
		before.ExternalID != after.ExternalID ||
		before.UserConfirmed != after.UserConfirmed ||
		!sameID(before.MovieID, after.MovieID) ||
		!sameID(before.EpisodeID, after.EpisodeID)
}

func (r *Reconciler) announce(ctx context.Context, library *domain.Library, file *repository.MediaFile, change Change, jobID *uuid.UUID) {
	var eventType string
	switch change {
	case ChangeAdded:
		eventType = domain.EventMediaFileAdded
	case ChangeUpdated:
		eventType = domain.EventMediaFileUpdated
	default:
		return
	}

	event := domain.NewMediaFileEvent(eventType, library.ID, file.ID, file.Path)
	event.JobID = jobID
	event.MatchStatus = domain.MatchStatus(file.MatchStatus)
	event.ExternalID = file.ExternalID
	r.bus.PublishAsync(ctx, event)

	r.logger.Debug("Media file reconciled",
		interfaces.String("path", file.Path),
		interfaces.String("change", string(change)),
		interfaces.String("match_status", file.MatchStatus))
}

// isJobFault reports whether a reconcile error must stop the whole job.
func isJobFault(err error) bool {
	return domain.IsPersistenceError(err) || errors.Is(err, context.Canceled)
}
