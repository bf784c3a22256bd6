package domain

import (
	"time"

	"github.com/google/uuid"
)

const (
	EventMediaFileAdded   = "library.media_file.added"
	EventMediaFileUpdated = "library.media_file.updated"
	EventMediaFileRemoved = "library.media_file.removed"
	EventScanCompleted    = "library.scan.completed"
	EventScanFailed       = "library.scan.failed"
	EventScanCancelled    = "library.scan.cancelled"
)

// MediaFileEvent is published when a media file row is added, updated or removed.
type MediaFileEvent struct {
	Type        string      `json:"type"`
	LibraryID   uuid.UUID   `json:"library_id"`
	MediaFileID uuid.UUID   `json:"media_file_id"`
	JobID       *uuid.UUID  `json:"job_id,omitempty"` // nil for watcher work
	Path        string      `json:"path"`
	MatchStatus MatchStatus `json:"match_status,omitempty"`
	ExternalID  string      `json:"external_id,omitempty"`
	OccurredAt  int64       `json:"timestamp"`
}

// NewMediaFileEvent creates a media file event of the given type.
func NewMediaFileEvent(eventType string, libraryID, mediaFileID uuid.UUID, path string) *MediaFileEvent {
	return &MediaFileEvent{
		Type:        eventType,
		LibraryID:   libraryID,
		MediaFileID: mediaFileID,
		Path:        path,
		OccurredAt:  time.Now().Unix(),
	}
}

func (e *MediaFileEvent) EventType() string {
	return e.Type
}

func (e *MediaFileEvent) Timestamp() int64 {
	return e.OccurredAt
}

func (e *MediaFileEvent) AggregateID() string {
	return e.MediaFileID.String()
}

// ScanFinishedEvent is published when a job reaches a terminal state.
type ScanFinishedEvent struct {
	Type       string     `json:"type"`
	JobID      uuid.UUID  `json:"job_id"`
	LibraryID  uuid.UUID  `json:"library_id"`
	State      JobState   `json:"state"`
	Counts     ScanCounts `json:"counts"`
	Error      string     `json:"error,omitempty"`
	DurationMS int64      `json:"duration_ms"`
	OccurredAt int64      `json:"timestamp"`
}

// NewScanFinishedEvent builds the event matching the job's terminal state.
func NewScanFinishedEvent(job *ScanJob) *ScanFinishedEvent {
	eventType := EventScanCompleted
	switch job.State {
	case JobFailed:
		eventType = EventScanFailed
	case JobCancelled:
		eventType = EventScanCancelled
	}
	return &ScanFinishedEvent{
		Type:       eventType,
		JobID:      job.ID,
		LibraryID:  job.LibraryID,
		State:      job.State,
		Counts:     job.Counts,
		Error:      job.Error,
		DurationMS: job.Duration().Milliseconds(),
		OccurredAt: time.Now().Unix(),
	}
}

func (e *ScanFinishedEvent) EventType() string {
	return e.Type
}

func (e *ScanFinishedEvent) Timestamp() int64 {
	return e.OccurredAt
}

func (e *ScanFinishedEvent) AggregateID() string {
	return e.JobID.String()
}
