package repository_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/narwhalmedia/catalog/internal/library/domain"
	"github.com/narwhalmedia/catalog/internal/library/repository"
	pkgerrors "github.com/narwhalmedia/catalog/pkg/errors"
	"github.com/narwhalmedia/catalog/test/testutil"
)

type CatalogRepositoryTestSuite struct {
	suite.Suite
	repo    *repository.GormCatalog
	ctx     context.Context
	library *domain.Library
}

func (suite *CatalogRepositoryTestSuite) SetupTest() {
	suite.ctx = context.Background()
	suite.repo = testutil.NewCatalog(suite.T())
	suite.library = testutil.CreateTestLibrary(suite.T(), suite.repo, "/media/movies", domain.KindMovie)
}

func (suite *CatalogRepositoryTestSuite) mediaFile(path string) *repository.MediaFile {
	return &repository.MediaFile{
		LibraryID:   suite.library.ID,
		Path:        path,
		Size:        1024,
		ModifiedAt:  time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		MatchStatus: string(domain.MatchStatusUnmatched),
	}
}

func (suite *CatalogRepositoryTestSuite) TestLibraries() {
	// Act
	got, err := suite.repo.GetLibrary(suite.ctx, suite.library.ID)

	// Assert
	suite.Require().NoError(err)
	suite.Equal("/media/movies", got.Path)
	suite.Equal(domain.KindMovie, got.Kind)
	suite.True(got.Enabled)

	_, err = suite.repo.GetLibrary(suite.ctx, uuid.New())
	suite.ErrorIs(err, domain.ErrLibraryNotFound)

	disabled := &domain.Library{Name: "old", Path: "/media/old", Kind: domain.KindShow}
	suite.Require().NoError(suite.repo.CreateLibrary(suite.ctx, disabled))
	suite.NotEqual(uuid.Nil, disabled.ID)

	enabled := true
	list, err := suite.repo.ListLibraries(suite.ctx, &enabled)
	suite.Require().NoError(err)
	suite.Len(list, 1)

	all, err := suite.repo.ListLibraries(suite.ctx, nil)
	suite.Require().NoError(err)
	suite.Len(all, 2)
}

func (suite *CatalogRepositoryTestSuite) TestCreateLibrary_DuplicatePath() {
	dup := &domain.Library{Name: "other", Path: "/media/movies", Kind: domain.KindMovie}

	err := suite.repo.CreateLibrary(suite.ctx, dup)

	suite.True(pkgerrors.IsConflict(err))
}

func (suite *CatalogRepositoryTestSuite) TestUpsertMediaFile_IsIdempotent() {
	// Arrange
	first := suite.mediaFile("/media/movies/The.Matrix.1999.mkv")

	// Act
	suite.Require().NoError(suite.repo.UpsertMediaFile(suite.ctx, first))
	second := suite.mediaFile("/media/movies/The.Matrix.1999.mkv")
	second.Size = 2048
	second.MatchStatus = string(domain.MatchStatusMatched)
	second.ExternalID = "tmdb:603"
	second.Candidates = []repository.Candidate{{ExternalID: "tmdb:603", Title: "The Matrix", Year: 1999, Score: 1}}
	suite.Require().NoError(suite.repo.UpsertMediaFile(suite.ctx, second))

	// Assert
	suite.Equal(first.ID, second.ID)
	paths, err := suite.repo.ListMediaFilePaths(suite.ctx, suite.library.ID)
	suite.Require().NoError(err)
	suite.Len(paths, 1)

	stored, err := suite.repo.FindMediaFileByPath(suite.ctx, suite.library.ID, "/media/movies/The.Matrix.1999.mkv")
	suite.Require().NoError(err)
	suite.Equal(int64(2048), stored.Size)
	suite.Equal("tmdb:603", stored.ExternalID)
	suite.Require().Len(stored.Candidates, 1)
	suite.Equal("The Matrix", stored.Candidates[0].Title)
}

func (suite *CatalogRepositoryTestSuite) TestMediaFileNotFound() {
	_, err := suite.repo.FindMediaFileByPath(suite.ctx, suite.library.ID, "/nope.mkv")
	suite.ErrorIs(err, domain.ErrMediaNotFound)
	suite.True(repository.IsNotFound(err))

	_, err = suite.repo.GetMediaFile(suite.ctx, uuid.New())
	suite.ErrorIs(err, domain.ErrMediaNotFound)

	err = suite.repo.DeleteMediaFile(suite.ctx, uuid.New())
	suite.ErrorIs(err, domain.ErrMediaNotFound)
}

func (suite *CatalogRepositoryTestSuite) TestDeleteMediaFile() {
	file := suite.mediaFile("/media/movies/Heat.1995.mkv")
	suite.Require().NoError(suite.repo.UpsertMediaFile(suite.ctx, file))

	suite.Require().NoError(suite.repo.DeleteMediaFile(suite.ctx, file.ID))

	_, err := suite.repo.GetMediaFile(suite.ctx, file.ID)
	suite.ErrorIs(err, domain.ErrMediaNotFound)
}

func (suite *CatalogRepositoryTestSuite) TestListMediaFilesUnder() {
	for _, p := range []string{
		"/media/movies/Heat (1995)/Heat.mkv",
		"/media/movies/Heat (1995)/extras/Heat.Featurette.mkv",
		"/media/movies/Heat (1995) Remastered/Heat.mkv",
		"/media/movies/Alien.mkv",
	} {
		suite.Require().NoError(suite.repo.UpsertMediaFile(suite.ctx, suite.mediaFile(p)))
	}

	files, err := suite.repo.ListMediaFilesUnder(suite.ctx, suite.library.ID, "/media/movies/Heat (1995)")

	suite.Require().NoError(err)
	suite.Require().Len(files, 2)
	suite.Equal("/media/movies/Heat (1995)/Heat.mkv", files[0].Path)
}

func (suite *CatalogRepositoryTestSuite) TestUpsertMovie_KeepsIdentity() {
	movie := &repository.Movie{LibraryID: suite.library.ID, Provider: "tmdb", ExternalID: "tmdb:603", Title: "The Matrix", Year: 1999}
	suite.Require().NoError(suite.repo.UpsertMovie(suite.ctx, movie))

	again := &repository.Movie{LibraryID: suite.library.ID, Provider: "tmdb", ExternalID: "tmdb:603", Title: "The Matrix (Remastered)", Year: 1999, Genres: []string{"Action"}}
	suite.Require().NoError(suite.repo.UpsertMovie(suite.ctx, again))

	suite.Equal(movie.ID, again.ID)
	suite.Equal("The Matrix (Remastered)", again.Title)
	suite.Equal([]string{"Action"}, again.Genres)
}

func (suite *CatalogRepositoryTestSuite) TestUpsertShowSeasonEpisode() {
	show := &repository.Show{LibraryID: suite.library.ID, Provider: "tmdb", ExternalID: "tmdb:1396", Title: "Breaking Bad", Year: 2008}
	suite.Require().NoError(suite.repo.UpsertShow(suite.ctx, show))

	season := &repository.Season{ShowID: show.ID, Number: 1, Name: "Season 1"}
	suite.Require().NoError(suite.repo.UpsertSeason(suite.ctx, season))
	again := &repository.Season{ShowID: show.ID, Number: 1, Name: "Season One"}
	suite.Require().NoError(suite.repo.UpsertSeason(suite.ctx, again))
	suite.Equal(season.ID, again.ID)

	episode := &repository.Episode{SeasonID: season.ID, Number: 5, Title: "Gray Matter"}
	suite.Require().NoError(suite.repo.UpsertEpisode(suite.ctx, episode))
	episodeAgain := &repository.Episode{SeasonID: season.ID, Number: 5, Title: "Gray Matter"}
	suite.Require().NoError(suite.repo.UpsertEpisode(suite.ctx, episodeAgain))
	suite.Equal(episode.ID, episodeAgain.ID)
}

func (suite *CatalogRepositoryTestSuite) TestTransaction_RollsBack() {
	boom := errors.New("boom")

	err := suite.repo.Transaction(suite.ctx, func(tx repository.Catalog) error {
		if err := tx.UpsertMediaFile(suite.ctx, suite.mediaFile("/media/movies/Alien.mkv")); err != nil {
			return err
		}
		return boom
	})

	suite.ErrorIs(err, boom)
	paths, err := suite.repo.ListMediaFilePaths(suite.ctx, suite.library.ID)
	suite.Require().NoError(err)
	suite.Empty(paths)
}

func (suite *CatalogRepositoryTestSuite) TestScanHistory() {
	job := domain.NewScanJob(suite.library.ID)
	now := time.Now()
	suite.Require().NoError(job.Transition(domain.JobRunning, now))
	job.Counts.Seen = 3

	history := &repository.ScanHistory{ID: job.ID, LibraryID: job.LibraryID, State: string(job.State), FilesSeen: 3}
	suite.Require().NoError(suite.repo.SaveScanHistory(suite.ctx, history))

	history.State = string(domain.JobCompleted)
	history.FilesAdded = 2
	suite.Require().NoError(suite.repo.SaveScanHistory(suite.ctx, history))

	items, err := suite.repo.ListScanHistory(suite.ctx, suite.library.ID, 10)
	suite.Require().NoError(err)
	suite.Require().Len(items, 1)
	suite.Equal(string(domain.JobCompleted), items[0].State)
	suite.Equal(2, items[0].FilesAdded)
}

func (suite *CatalogRepositoryTestSuite) TestPing() {
	suite.NoError(suite.repo.Ping(suite.ctx))
}

func TestCatalogRepositoryTestSuite(t *testing.T) {
	suite.Run(t, new(CatalogRepositoryTestSuite))
}

func TestMigrations_AreOrdered(t *testing.T) {
	entries := repository.Migrations()
	require.NotEmpty(t, entries)
	for i := 1; i < len(entries); i++ {
		assert.Less(t, entries[i-1].Version, entries[i].Version)
	}
}
