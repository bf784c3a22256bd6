package metadata

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrorKind classifies provider failures.
type ErrorKind string

const (
	KindTimeout     ErrorKind = "timeout"
	KindRateLimited ErrorKind = "rate_limited"
	KindUnavailable ErrorKind = "unavailable"
	KindNotFound    ErrorKind = "not_found"
	KindMalformed   ErrorKind = "malformed"
	// KindRejected covers 4xx answers other than 404 and 429 (bad key, bad request)
	KindRejected ErrorKind = "rejected"
)

// ProviderError is returned by every provider call that fails.
type ProviderError struct {
	Provider   string
	Op         string
	Kind       ErrorKind
	StatusCode int
	RetryAfter time.Duration
	Err        error
}

func (e *ProviderError) Error() string {
	msg := fmt.Sprintf("%s %s: %s", e.Provider, e.Op, e.Kind)
	if e.StatusCode != 0 {
		msg += fmt.Sprintf(" (status %d)", e.StatusCode)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// Transient reports whether retrying may succeed.
func (e *ProviderError) Transient() bool {
	switch e.Kind {
	case KindTimeout, KindRateLimited, KindUnavailable:
		return true
	}
	return false
}

// KindOf returns the error kind carried by err, or empty.
func KindOf(err error) ErrorKind {
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe.Kind
	}
	return ""
}

// IsTransient reports whether err is a retryable provider failure.
func IsTransient(err error) bool {
	var pe *ProviderError
	return errors.As(err, &pe) && pe.Transient()
}

// IsNotFound reports whether the provider has no such record.
func IsNotFound(err error) bool {
	return KindOf(err) == KindNotFound
}

// IsOutage reports whether err means the provider could not be reached at
// all after retries, as opposed to a per-title failure.
func IsOutage(err error) bool {
	switch KindOf(err) {
	case KindTimeout, KindUnavailable, KindRateLimited:
		return true
	}
	return false
}

func newError(provider, op string, kind ErrorKind, err error) *ProviderError {
	return &ProviderError{Provider: provider, Op: op, Kind: kind, Err: err}
}

// classifyTransport maps a transport-level failure onto an error kind.
func classifyTransport(provider, op string, err error) *ProviderError {
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return newError(provider, op, KindTimeout, err)
	}
	var timeout interface{ Timeout() bool }
	if errors.As(err, &timeout) && timeout.Timeout() {
		return newError(provider, op, KindTimeout, err)
	}
	return newError(provider, op, KindUnavailable, err)
}
