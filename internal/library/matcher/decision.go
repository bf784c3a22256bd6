package matcher

import (
	"github.com/narwhalmedia/catalog/internal/library/domain"
	"github.com/narwhalmedia/catalog/internal/library/metadata"
)

// Outcome is the tag of a Decision.
type Outcome string

const (
	OutcomeAccepted  Outcome = "accepted"
	OutcomeAmbiguous Outcome = "ambiguous"
	OutcomeUnmatched Outcome = "unmatched"
)

// Reason explains an unmatched decision.
type Reason string

const (
	ReasonProviderError    Reason = "provider_error"
	ReasonNoConfidentMatch Reason = "no_confident_match"
	ReasonNoResults        Reason = "no_results"
	ReasonParseError       Reason = "parse_error"
	ReasonEpisodeNotFound  Reason = "episode_not_found"
)

// Scored is a candidate with its match score.
type Scored struct {
	Candidate metadata.Candidate `json:"candidate"`
	Score     float64            `json:"score"`
}

// Decision is the result of matching one hint.
//
// Accepted carries ExternalID and, unless the stored match was kept,
// Candidate. Ambiguous carries the closest Candidates. Unmatched carries
// Reason and, for provider errors, Err.
type Decision struct {
	Outcome    Outcome
	Kind       domain.Kind // movie or show
	ExternalID string
	Candidate  *metadata.Candidate
	Score      float64

	// Details is set for accepted episode matches, which need the show record
	Details *metadata.Details

	UserConfirmed bool
	// Preserved marks a user-confirmed match reused without a provider call
	Preserved bool

	Candidates []Scored
	Reason     Reason
	Err        error
}

// Matched reports whether the decision links the file to a catalog entry.
func (d Decision) Matched() bool {
	return d.Outcome == OutcomeAccepted
}

// Status maps the outcome onto the persisted match status.
func (d Decision) Status() domain.MatchStatus {
	switch d.Outcome {
	case OutcomeAccepted:
		return domain.MatchStatusMatched
	case OutcomeAmbiguous:
		return domain.MatchStatusAmbiguous
	default:
		return domain.MatchStatusUnmatched
	}
}

func accepted(kind domain.Kind, top Scored, details *metadata.Details) Decision {
	c := top.Candidate
	return Decision{
		Outcome:    OutcomeAccepted,
		Kind:       kind,
		ExternalID: c.ExternalID,
		Candidate:  &c,
		Score:      top.Score,
		Details:    details,
	}
}

func ambiguous(kind domain.Kind, candidates []Scored) Decision {
	return Decision{
		Outcome:    OutcomeAmbiguous,
		Kind:       kind,
		Score:      candidates[0].Score,
		Candidates: candidates,
	}
}

func unmatched(kind domain.Kind, reason Reason, err error) Decision {
	return Decision{
		Outcome: OutcomeUnmatched,
		Kind:    kind,
		Reason:  reason,
		Err:     err,
	}
}
