package metadata

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/suite"

	"github.com/narwhalmedia/catalog/internal/library/domain"
)

type TMDBClientTestSuite struct {
	suite.Suite
	mux    *http.ServeMux
	server *httptest.Server
	client *TMDBClient
}

func (suite *TMDBClientTestSuite) SetupTest() {
	suite.mux = http.NewServeMux()
	suite.server = httptest.NewServer(suite.mux)
	suite.client = NewTMDBClient(suite.server.URL, "secret", "en-US", suite.server.Client())
}

func (suite *TMDBClientTestSuite) TearDownTest() {
	suite.server.Close()
}

func (suite *TMDBClientTestSuite) TestSearchMovie() {
	// Arrange
	suite.mux.HandleFunc("/search/movie", func(w http.ResponseWriter, r *http.Request) {
		suite.Equal("The Matrix", r.URL.Query().Get("query"))
		suite.Equal("1999", r.URL.Query().Get("year"))
		suite.Equal("secret", r.URL.Query().Get("api_key"))
		fmt.Fprint(w, `{"results":[{"id":603,"title":"The Matrix","original_title":"The Matrix","release_date":"1999-03-30","popularity":80.1}]}`)
	})
	year := 1999

	// Act
	got, err := suite.client.Search(context.Background(), Query{Title: "The Matrix", Year: &year, Kind: domain.KindMovie})

	// Assert
	suite.Require().NoError(err)
	suite.Require().Len(got, 1)
	suite.Equal("tmdb:603", got[0].ExternalID)
	suite.Equal(1999, got[0].Year)
	suite.Equal(domain.KindMovie, got[0].Kind)
}

func (suite *TMDBClientTestSuite) TestSearchShow() {
	suite.mux.HandleFunc("/search/tv", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"results":[{"id":1396,"name":"Breaking Bad","original_name":"Breaking Bad","first_air_date":"2008-01-20"}]}`)
	})

	got, err := suite.client.Search(context.Background(), Query{Title: "Breaking Bad", Kind: domain.KindShow})

	suite.Require().NoError(err)
	suite.Require().Len(got, 1)
	suite.Equal("Breaking Bad", got[0].Title)
	suite.Equal(2008, got[0].Year)
	suite.Equal(domain.KindShow, got[0].Kind)
}

func (suite *TMDBClientTestSuite) TestShowDetailsListsEpisodes() {
	suite.mux.HandleFunc("/tv/1396", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"id":1396,"name":"Breaking Bad","first_air_date":"2008-01-20",
			"seasons":[{"season_number":0,"episode_count":2},{"season_number":1,"episode_count":7}]}`)
	})

	d, err := suite.client.Details(context.Background(), "tmdb:1396", domain.KindShow)

	suite.Require().NoError(err)
	suite.Len(d.Seasons, 2)
	suite.NotNil(d.Episode(1, 7))
	suite.Nil(d.Episode(1, 8))
	suite.Nil(d.Episode(2, 1))
}

func (suite *TMDBClientTestSuite) TestErrorClassification() {
	suite.mux.HandleFunc("/movie/1", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	suite.mux.HandleFunc("/movie/2", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "3")
		w.WriteHeader(http.StatusTooManyRequests)
	})
	suite.mux.HandleFunc("/movie/3", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})
	suite.mux.HandleFunc("/movie/4", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"id":`)
	})
	suite.mux.HandleFunc("/movie/5", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})

	cases := map[string]ErrorKind{
		"tmdb:1": KindNotFound,
		"tmdb:2": KindRateLimited,
		"tmdb:3": KindUnavailable,
		"tmdb:4": KindMalformed,
		"tmdb:5": KindRejected,
		"tmdb:x": KindNotFound,
	}
	for id, kind := range cases {
		_, err := suite.client.Details(context.Background(), id, domain.KindMovie)
		suite.Equal(kind, KindOf(err), id)
	}

	_, err := suite.client.Details(context.Background(), "tmdb:2", domain.KindMovie)
	var pe *ProviderError
	suite.Require().ErrorAs(err, &pe)
	suite.Equal(3*time.Second, pe.RetryAfter)
	suite.True(pe.Transient())
}

func (suite *TMDBClientTestSuite) TestTimeoutIsClassified() {
	suite.mux.HandleFunc("/search/movie", func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	})
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := suite.client.Search(ctx, Query{Title: "slow", Kind: domain.KindMovie})

	suite.Equal(KindTimeout, KindOf(err))
}

func TestTMDBClientTestSuite(t *testing.T) {
	suite.Run(t, new(TMDBClientTestSuite))
}

func TestParseRetryAfter(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	cases := []struct {
		in   string
		want time.Duration
	}{
		{"", 0},
		{"5", 5 * time.Second},
		{"garbage", 0},
		{now.Add(10 * time.Second).Format(http.TimeFormat), 10 * time.Second},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, parseRetryAfter(tc.in, now), tc.in)
	}
}
