package parser

import (
	"errors"
	"fmt"
)

// Anchor names the structural token a hint was split on.
type Anchor string

const (
	AnchorSeasonEpisode Anchor = "season_episode"
	AnchorYear          Anchor = "year"
	AnchorNone          Anchor = "none"
)

// Hint is the structured guess derived from a file path. Hints are values;
// nothing mutates them after Parse returns.
type Hint struct {
	Path       string
	Title      string
	Year       *int
	Season     *int
	Episode    *int
	EpisodeEnd *int // last episode of a multi-episode file
	Anchor     Anchor
}

// HasEpisode reports whether the hint carries a season/episode pair.
func (h *Hint) HasEpisode() bool {
	return h.Season != nil && h.Episode != nil
}

// MaxEpisodesPerFile caps the range of a multi-episode file. Longer
// ranges are read as a single episode.
const MaxEpisodesPerFile = 10

// Episodes lists every episode number covered by the file.
func (h *Hint) Episodes() []int {
	if h.Episode == nil {
		return nil
	}
	last := *h.Episode
	if h.EpisodeEnd != nil && *h.EpisodeEnd > last && *h.EpisodeEnd-last < MaxEpisodesPerFile {
		last = *h.EpisodeEnd
	}
	eps := make([]int, 0, last-*h.Episode+1)
	for e := *h.Episode; e <= last; e++ {
		eps = append(eps, e)
	}
	return eps
}

// ErrParse is matched by every ParseError.
var ErrParse = errors.New("unparsable filename")

// ParseError reports a path that yielded no title.
type ParseError struct {
	Path   string
	Reason string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse %q: %s", e.Path, e.Reason)
}

func (e *ParseError) Is(target error) bool {
	return target == ErrParse
}
