package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Kind is the media shape of a library or a catalog entry.
type Kind string

const (
	KindMovie Kind = "movie"
	KindShow  Kind = "show"
	KindMixed Kind = "mixed"
)

// ParseKind validates a textual kind.
func ParseKind(s string) (Kind, error) {
	switch k := Kind(s); k {
	case KindMovie, KindShow, KindMixed:
		return k, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidKind, s)
}

// ShowShaped reports whether season/episode anchors are looked for.
func (k Kind) ShowShaped() bool {
	return k == KindShow || k == KindMixed
}

// Library is a registered library root. The catalog core never mutates it.
type Library struct {
	ID           uuid.UUID
	Name         string
	Path         string
	Kind         Kind
	Enabled      bool
	WatchEnabled bool
	ScanSchedule string // cron expression, empty disables periodic scans
	LastScanAt   *time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// MatchStatus is the persisted result of matching a media file.
type MatchStatus string

const (
	MatchStatusMatched   MatchStatus = "matched"
	MatchStatusAmbiguous MatchStatus = "ambiguous"
	MatchStatusUnmatched MatchStatus = "unmatched"
)
