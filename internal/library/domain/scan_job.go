package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// JobState is a scan job lifecycle state.
type JobState string

const (
	JobPending   JobState = "pending"
	JobRunning   JobState = "running"
	JobCompleted JobState = "completed"
	JobFailed    JobState = "failed"
	JobCancelled JobState = "cancelled"
)

// Terminal reports whether no further transition is possible.
func (s JobState) Terminal() bool {
	return s == JobCompleted || s == JobFailed || s == JobCancelled
}

var transitions = map[JobState][]JobState{
	JobPending: {JobRunning, JobCancelled},
	JobRunning: {JobCompleted, JobFailed, JobCancelled},
}

// CanTransition reports whether from -> to is a legal move.
func CanTransition(from, to JobState) bool {
	for _, allowed := range transitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// OutcomeStatus is the per-file result recorded in a job.
type OutcomeStatus string

const (
	OutcomeMatched   OutcomeStatus = "matched"
	OutcomeAmbiguous OutcomeStatus = "ambiguous"
	OutcomeUnmatched OutcomeStatus = "unmatched"
	OutcomeFailed    OutcomeStatus = "failed"
	OutcomeSkipped   OutcomeStatus = "skipped"
	OutcomeRemoved   OutcomeStatus = "removed"
)

// MaxRecordedOutcomes caps the per-file log kept on a job. Counts keep
// increasing past the cap.
const MaxRecordedOutcomes = 5000

// FileOutcome is one entry of a job's per-file log.
type FileOutcome struct {
	Path       string        `json:"path"`
	Status     OutcomeStatus `json:"status"`
	Reason     string        `json:"reason,omitempty"`
	ExternalID string        `json:"external_id,omitempty"`
	Error      string        `json:"error,omitempty"`
}

// ScanCounts tallies a job's file outcomes and catalog changes.
type ScanCounts struct {
	Seen      int `json:"seen"`
	Matched   int `json:"matched"`
	Ambiguous int `json:"ambiguous"`
	Unmatched int `json:"unmatched"`
	Failed    int `json:"failed"`
	Skipped   int `json:"skipped"`
	Added     int `json:"added"`
	Updated   int `json:"updated"`
	Removed   int `json:"removed"`
}

// ScanJob is one end-to-end scan of a library.
type ScanJob struct {
	ID                uuid.UUID     `json:"id"`
	LibraryID         uuid.UUID     `json:"library_id"`
	State             JobState      `json:"state"`
	Counts            ScanCounts    `json:"counts"`
	CreatedAt         time.Time     `json:"created_at"`
	StartedAt         *time.Time    `json:"started_at,omitempty"`
	FinishedAt        *time.Time    `json:"finished_at,omitempty"`
	Error             string        `json:"error,omitempty"`
	Outcomes          []FileOutcome `json:"outcomes,omitempty"`
	OutcomesTruncated bool          `json:"outcomes_truncated,omitempty"`
}

// NewScanJob creates a pending job for a library.
func NewScanJob(libraryID uuid.UUID) *ScanJob {
	return &ScanJob{
		ID:        uuid.New(),
		LibraryID: libraryID,
		State:     JobPending,
		CreatedAt: time.Now().UTC(),
	}
}

// Transition moves the job to a new state and stamps the timestamps.
func (j *ScanJob) Transition(to JobState, now time.Time) error {
	if !CanTransition(j.State, to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, j.State, to)
	}
	j.State = to
	switch {
	case to == JobRunning:
		j.StartedAt = &now
	case to.Terminal():
		j.FinishedAt = &now
	}
	return nil
}

// Fail moves the job to Failed with the given cause.
func (j *ScanJob) Fail(cause error, now time.Time) error {
	if err := j.Transition(JobFailed, now); err != nil {
		return err
	}
	if cause != nil {
		j.Error = cause.Error()
	}
	return nil
}

// Record tallies a file outcome and appends it to the log.
func (j *ScanJob) Record(o FileOutcome) {
	switch o.Status {
	case OutcomeMatched:
		j.Counts.Matched++
	case OutcomeAmbiguous:
		j.Counts.Ambiguous++
	case OutcomeUnmatched:
		j.Counts.Unmatched++
	case OutcomeFailed:
		j.Counts.Failed++
	case OutcomeSkipped:
		j.Counts.Skipped++
	case OutcomeRemoved:
		j.Counts.Removed++
	}
	if o.Status != OutcomeSkipped && o.Status != OutcomeRemoved {
		j.Counts.Seen++
	}

	if len(j.Outcomes) >= MaxRecordedOutcomes {
		j.OutcomesTruncated = true
		return
	}
	j.Outcomes = append(j.Outcomes, o)
}

// Duration is the running time so far, or the total once finished.
func (j *ScanJob) Duration() time.Duration {
	if j.StartedAt == nil {
		return 0
	}
	if j.FinishedAt == nil {
		return time.Since(*j.StartedAt)
	}
	return j.FinishedAt.Sub(*j.StartedAt)
}

// Clone returns a deep copy safe to hand to callers.
func (j *ScanJob) Clone() *ScanJob {
	c := *j
	if j.StartedAt != nil {
		t := *j.StartedAt
		c.StartedAt = &t
	}
	if j.FinishedAt != nil {
		t := *j.FinishedAt
		c.FinishedAt = &t
	}
	c.Outcomes = append([]FileOutcome(nil), j.Outcomes...)
	return &c
}
