package metadata

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/suite"

	"github.com/narwhalmedia/catalog/internal/library/domain"
	"github.com/narwhalmedia/catalog/pkg/cache"
	"github.com/narwhalmedia/catalog/pkg/logger"
)

type CachedProviderTestSuite struct {
	suite.Suite
	upstream   *MockProvider
	persistent *cache.MemoryCache
}

func (suite *CachedProviderTestSuite) SetupTest() {
	suite.upstream = NewMockProvider("tmdb").
		AddCandidates("The Matrix", domain.KindMovie, Candidate{ExternalID: "tmdb:603", Title: "The Matrix", Year: 1999}).
		AddDetails(&Details{ExternalID: "tmdb:603", Title: "The Matrix", Kind: domain.KindMovie})
	suite.persistent = cache.NewMemoryCache()
}

func (suite *CachedProviderTestSuite) newCached(persistent bool) *CachedProvider {
	if persistent {
		return NewCachedProvider(suite.upstream, NewJobCache(), suite.persistent, 0, logger.NewNoop())
	}
	return NewCachedProvider(suite.upstream, NewJobCache(), nil, 0, logger.NewNoop())
}

func (suite *CachedProviderTestSuite) TestSearchIsMemoized() {
	p := suite.newCached(false)
	q := Query{Title: "The Matrix", Kind: domain.KindMovie}

	first, err := p.Search(context.Background(), q)
	suite.Require().NoError(err)
	// punctuation and case collapse onto the same key
	second, err := p.Search(context.Background(), Query{Title: "the.matrix", Kind: domain.KindMovie})
	suite.Require().NoError(err)

	suite.Equal(first, second)
	suite.Equal(1, suite.upstream.SearchCalls())
}

func (suite *CachedProviderTestSuite) TestYearAndKindAreKeyed() {
	p := suite.newCached(false)
	year := 1999

	_, _ = p.Search(context.Background(), Query{Title: "The Matrix", Kind: domain.KindMovie})
	_, _ = p.Search(context.Background(), Query{Title: "The Matrix", Year: &year, Kind: domain.KindMovie})
	_, _ = p.Search(context.Background(), Query{Title: "The Matrix", Kind: domain.KindShow})

	suite.Equal(3, suite.upstream.SearchCalls())
}

func (suite *CachedProviderTestSuite) TestJobCacheDoesNotOutliveJob() {
	q := Query{Title: "The Matrix", Kind: domain.KindMovie}

	_, _ = suite.newCached(false).Search(context.Background(), q)
	_, _ = suite.newCached(false).Search(context.Background(), q)

	suite.Equal(2, suite.upstream.SearchCalls())
}

func (suite *CachedProviderTestSuite) TestPersistentCacheSpansJobs() {
	q := Query{Title: "The Matrix", Kind: domain.KindMovie}

	_, _ = suite.newCached(true).Search(context.Background(), q)
	got, err := suite.newCached(true).Search(context.Background(), q)

	suite.Require().NoError(err)
	suite.Len(got, 1)
	suite.Equal(1, suite.upstream.SearchCalls())
}

func (suite *CachedProviderTestSuite) TestErrorsAreNotCached() {
	p := suite.newCached(false)
	suite.upstream.SetError(errors.New("down"))
	_, err := p.Search(context.Background(), Query{Title: "The Matrix", Kind: domain.KindMovie})
	suite.Error(err)

	suite.upstream.SetError(nil)
	got, err := p.Search(context.Background(), Query{Title: "The Matrix", Kind: domain.KindMovie})

	suite.NoError(err)
	suite.Len(got, 1)
	suite.Equal(2, suite.upstream.SearchCalls())
}

func (suite *CachedProviderTestSuite) TestDetailsMemoized() {
	p := suite.newCached(false)

	for i := 0; i < 3; i++ {
		d, err := p.Details(context.Background(), "tmdb:603", domain.KindMovie)
		suite.Require().NoError(err)
		suite.Equal("The Matrix", d.Title)
	}

	suite.Equal(1, suite.upstream.DetailsCalls())
}

func (suite *CachedProviderTestSuite) TestConcurrentLookupsShareOneCall() {
	p := suite.newCached(false)
	release := make(chan struct{})
	suite.upstream.OnSearch(func(ctx context.Context, q Query) { <-release })

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = p.Search(context.Background(), Query{Title: "The Matrix", Kind: domain.KindMovie})
		}()
	}
	close(release)
	wg.Wait()

	suite.LessOrEqual(suite.upstream.SearchCalls(), 8)
	suite.GreaterOrEqual(suite.upstream.SearchCalls(), 1)
}

func TestCachedProviderTestSuite(t *testing.T) {
	suite.Run(t, new(CachedProviderTestSuite))
}
