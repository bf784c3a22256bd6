package domain

import (
	"errors"
	"fmt"
)

// Common domain errors
var (
	// ErrLibraryNotFound is returned when a library is not found
	ErrLibraryNotFound = errors.New("library not found")

	// ErrLibraryDisabled is returned when scanning a disabled library
	ErrLibraryDisabled = errors.New("library is disabled")

	// ErrMediaNotFound is returned when a media file is not found
	ErrMediaNotFound = errors.New("media file not found")

	// ErrScanInProgress is returned when trying to start a scan while one is already running
	ErrScanInProgress = errors.New("scan already in progress")

	// ErrJobNotFound is returned for unknown scan job ids
	ErrJobNotFound = errors.New("scan job not found")

	// ErrInvalidTransition is returned for an illegal scan job state change
	ErrInvalidTransition = errors.New("invalid scan job transition")

	ErrInvalidKind = errors.New("invalid media kind")

	// ErrShuttingDown is returned once the controller stopped accepting work
	ErrShuttingDown = errors.New("scan controller is shutting down")
)

// PersistenceError marks a catalog failure. It is a job-level fault.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persistence %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

// IsPersistenceError reports whether err carries a PersistenceError.
func IsPersistenceError(err error) bool {
	var pe *PersistenceError
	return errors.As(err, &pe)
}
