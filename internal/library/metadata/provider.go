package metadata

import (
	"context"
	"strings"

	"github.com/narwhalmedia/catalog/internal/library/domain"
)

// Query is a title search. Kind is movie or show.
type Query struct {
	Title string
	Year  *int
	Kind  domain.Kind
}

// Candidate is one search result.
type Candidate struct {
	ExternalID    string      `json:"external_id"` // "<provider>:<id>"
	Provider      string      `json:"provider"`
	Title         string      `json:"title"`
	OriginalTitle string      `json:"original_title,omitempty"`
	Year          int         `json:"year,omitempty"` // zero when unknown
	Kind          domain.Kind `json:"kind"`
	Popularity    float64     `json:"popularity,omitempty"`
}

// EpisodeDetails describes one episode of a season.
type EpisodeDetails struct {
	Number  int    `json:"number"`
	Title   string `json:"title,omitempty"`
	AirDate string `json:"air_date,omitempty"`
}

// SeasonDetails describes one season of a show.
type SeasonDetails struct {
	Number   int              `json:"number"`
	Name     string           `json:"name,omitempty"`
	Episodes []EpisodeDetails `json:"episodes"`
}

// Details is the full record for a movie or a show.
type Details struct {
	ExternalID    string          `json:"external_id"`
	Provider      string          `json:"provider"`
	Kind          domain.Kind     `json:"kind"`
	Title         string          `json:"title"`
	OriginalTitle string          `json:"original_title,omitempty"`
	Year          int             `json:"year,omitempty"`
	Overview      string          `json:"overview,omitempty"`
	Runtime       int             `json:"runtime,omitempty"` // minutes
	Genres        []string        `json:"genres,omitempty"`
	Seasons       []SeasonDetails `json:"seasons,omitempty"`
}

// Season returns the season with the given number.
func (d *Details) Season(number int) *SeasonDetails {
	for i := range d.Seasons {
		if d.Seasons[i].Number == number {
			return &d.Seasons[i]
		}
	}
	return nil
}

// Episode returns the episode with the given season and number.
func (d *Details) Episode(season, episode int) *EpisodeDetails {
	s := d.Season(season)
	if s == nil {
		return nil
	}
	for i := range s.Episodes {
		if s.Episodes[i].Number == episode {
			return &s.Episodes[i]
		}
	}
	return nil
}

// Provider is the capability surface of a metadata source.
type Provider interface {
	Name() string
	Search(ctx context.Context, q Query) ([]Candidate, error)
	Details(ctx context.Context, externalID string, kind domain.Kind) (*Details, error)
}

// ExternalID qualifies a provider-local id.
func ExternalID(provider, id string) string {
	return provider + ":" + id
}

// SplitExternalID splits "<provider>:<id>". An unqualified id returns an
// empty provider.
func SplitExternalID(externalID string) (provider, id string) {
	if i := strings.IndexByte(externalID, ':'); i > 0 {
		return externalID[:i], externalID[i+1:]
	}
	return "", externalID
}
