package metadata

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/narwhalmedia/catalog/internal/library/domain"
)

const tmdbName = "tmdb"

// TMDBClient talks to The Movie Database v3 API.
type TMDBClient struct {
	baseURL    string
	apiKey     string
	language   string
	httpClient *http.Client
}

// NewTMDBClient creates a new TMDB client. A nil httpClient uses a client
// with a 10s timeout.
func NewTMDBClient(baseURL, apiKey, language string, httpClient *http.Client) *TMDBClient {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	return &TMDBClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		language:   language,
		httpClient: httpClient,
	}
}

func (c *TMDBClient) Name() string {
	return tmdbName
}

type tmdbSearchResponse struct {
	Results []struct {
		ID            int     `json:"id"`
		Title         string  `json:"title"`
		OriginalTitle string  `json:"original_title"`
		Name          string  `json:"name"`
		OriginalName  string  `json:"original_name"`
		ReleaseDate   string  `json:"release_date"`
		FirstAirDate  string  `json:"first_air_date"`
		Popularity    float64 `json:"popularity"`
	} `json:"results"`
}

type tmdbDetailsResponse struct {
	ID            int    `json:"id"`
	Title         string `json:"title"`
	OriginalTitle string `json:"original_title"`
	Name          string `json:"name"`
	OriginalName  string `json:"original_name"`
	ReleaseDate   string `json:"release_date"`
	FirstAirDate  string `json:"first_air_date"`
	Overview      string `json:"overview"`
	Runtime       int    `json:"runtime"`
	Genres        []struct {
		Name string `json:"name"`
	} `json:"genres"`
	Seasons []struct {
		SeasonNumber int    `json:"season_number"`
		Name         string `json:"name"`
		EpisodeCount int    `json:"episode_count"`
	} `json:"seasons"`
}

// Search runs search/movie or search/tv.
func (c *TMDBClient) Search(ctx context.Context, q Query) ([]Candidate, error) {
	params := url.Values{}
	params.Set("query", q.Title)
	endpoint := "/search/movie"
	if q.Kind == domain.KindShow {
		endpoint = "/search/tv"
		if q.Year != nil {
			params.Set("first_air_date_year", strconv.Itoa(*q.Year))
		}
	} else if q.Year != nil {
		params.Set("year", strconv.Itoa(*q.Year))
	}

	var resp tmdbSearchResponse
	if err := c.get(ctx, "search", endpoint, params, &resp); err != nil {
		return nil, err
	}

	candidates := make([]Candidate, 0, len(resp.Results))
	for _, r := range resp.Results {
		cand := Candidate{
			ExternalID:    ExternalID(tmdbName, strconv.Itoa(r.ID)),
			Provider:      tmdbName,
			Title:         r.Title,
			OriginalTitle: r.OriginalTitle,
			Year:          yearOf(r.ReleaseDate),
			Kind:          domain.KindMovie,
			Popularity:    r.Popularity,
		}
		if q.Kind == domain.KindShow {
			cand.Title = r.Name
			cand.OriginalTitle = r.OriginalName
			cand.Year = yearOf(r.FirstAirDate)
			cand.Kind = domain.KindShow
		}
		candidates = append(candidates, cand)
	}
	return candidates, nil
}

// Details fetches movie/{id} or tv/{id}. Episodes of a show are listed by
// number from the per-season episode counts.
func (c *TMDBClient) Details(ctx context.Context, externalID string, kind domain.Kind) (*Details, error) {
	_, id := SplitExternalID(externalID)
	if _, err := strconv.Atoi(id); err != nil {
		return nil, newError(tmdbName, "details", KindNotFound, fmt.Errorf("invalid tmdb id %q", externalID))
	}

	endpoint := "/movie/" + id
	if kind == domain.KindShow {
		endpoint = "/tv/" + id
	}

	var resp tmdbDetailsResponse
	if err := c.get(ctx, "details", endpoint, url.Values{}, &resp); err != nil {
		return nil, err
	}

	details := &Details{
		ExternalID:    ExternalID(tmdbName, strconv.Itoa(resp.ID)),
		Provider:      tmdbName,
		Kind:          domain.KindMovie,
		Title:         resp.Title,
		OriginalTitle: resp.OriginalTitle,
		Year:          yearOf(resp.ReleaseDate),
		Overview:      resp.Overview,
		Runtime:       resp.Runtime,
	}
	for _, g := range resp.Genres {
		details.Genres = append(details.Genres, g.Name)
	}
	if kind == domain.KindShow {
		details.Kind = domain.KindShow
		details.Title = resp.Name
		details.OriginalTitle = resp.OriginalName
		details.Year = yearOf(resp.FirstAirDate)
		for _, s := range resp.Seasons {
			season := SeasonDetails{Number: s.SeasonNumber, Name: s.Name}
			for e := 1; e <= s.EpisodeCount; e++ {
				season.Episodes = append(season.Episodes, EpisodeDetails{Number: e})
			}
			details.Seasons = append(details.Seasons, season)
		}
	}
	return details, nil
}

func (c *TMDBClient) get(ctx context.Context, op, endpoint string, params url.Values, out interface{}) error {
	params.Set("api_key", c.apiKey)
	if c.language != "" {
		params.Set("language", c.language)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+endpoint+"?"+params.Encode(), nil)
	if err != nil {
		return newError(tmdbName, op, KindMalformed, fmt.Errorf("creating request: %w", err))
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return classifyTransport(tmdbName, op, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		// drain so the connection can be reused
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
		return statusError(op, resp)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		if ctx.Err() != nil {
			return classifyTransport(tmdbName, op, ctx.Err())
		}
		return newError(tmdbName, op, KindMalformed, fmt.Errorf("decoding response: %w", err))
	}
	return nil
}

func statusError(op string, resp *http.Response) *ProviderError {
	pe := &ProviderError{
		Provider:   tmdbName,
		Op:         op,
		StatusCode: resp.StatusCode,
		Err:        fmt.Errorf("unexpected status code: %d", resp.StatusCode),
	}
	switch {
	case resp.StatusCode == http.StatusNotFound:
		pe.Kind = KindNotFound
	case resp.StatusCode == http.StatusTooManyRequests:
		pe.Kind = KindRateLimited
		pe.RetryAfter = parseRetryAfter(resp.Header.Get("Retry-After"), time.Now())
	case resp.StatusCode == http.StatusRequestTimeout || resp.StatusCode == http.StatusGatewayTimeout:
		pe.Kind = KindTimeout
	case resp.StatusCode >= 500:
		pe.Kind = KindUnavailable
		pe.RetryAfter = parseRetryAfter(resp.Header.Get("Retry-After"), time.Now())
	default:
		pe.Kind = KindRejected
	}
	return pe
}

// parseRetryAfter accepts delta-seconds or an HTTP date.
func parseRetryAfter(value string, now time.Time) time.Duration {
	if value == "" {
		return 0
	}
	if secs, err := strconv.Atoi(strings.TrimSpace(value)); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	if at, err := http.ParseTime(value); err == nil && at.After(now) {
		return at.Sub(now)
	}
	return 0
}

func yearOf(date string) int {
	if len(date) < 4 {
		return 0
	}
	year, err := strconv.Atoi(date[:4])
	if err != nil {
		return 0
	}
	return year
}
