package parser_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/narwhalmedia/catalog/internal/library/domain"
	"github.com/narwhalmedia/catalog/internal/library/parser"
)

type ParserTestSuite struct {
	suite.Suite
}

func intPtr(v int) *int { return &v }

func (suite *ParserTestSuite) TestParse_Movies() {
	cases := []struct {
		path  string
		title string
		year  *int
	}{
		{"The.Matrix.1999.1080p.mkv", "The Matrix", intPtr(1999)},
		{"Inception (2010).mp4", "Inception", intPtr(2010)},
		{"Movies/Heat [1995] [BluRay].mkv", "Heat", intPtr(1995)},
		{"2001.A.Space.Odyssey.1968.2160p.UHD.BluRay.x265-GROUP.mkv", "2001 A Space Odyssey", intPtr(1968)},
		{"1917.2019.1080p.WEB-DL.DDP5.1.H.264.mkv", "1917", intPtr(2019)},
		{"Blade Runner 2049 (2017).mkv", "Blade Runner 2049", intPtr(2017)},
		{"Amelie.2001.FRENCH.mkv", "Amelie", intPtr(2001)},
		{"Charlotte's Web.avi", "Charlotte's Web", nil},
		{"Some_Home_Video.1080p.x264.mkv", "Some Home Video", nil},
	}

	for _, tc := range cases {
		hint, err := parser.Parse(tc.path, domain.KindMovie)

		suite.Require().NoError(err, tc.path)
		suite.Equal(tc.title, hint.Title, tc.path)
		suite.Equal(tc.year, hint.Year, tc.path)
		suite.Nil(hint.Season, tc.path)
		suite.Equal(tc.path, hint.Path)
	}
}

func (suite *ParserTestSuite) TestParse_Episodes() {
	cases := []struct {
		path       string
		title      string
		season     int
		episode    int
		episodeEnd *int
	}{
		{"Breaking.Bad.S01E05.720p.HDTV.x264.mkv", "Breaking Bad", 1, 5, nil},
		{"The Office - 2x03 - The Dundies.mkv", "The Office", 2, 3, nil},
		{"Lost.S02E01E02.mkv", "Lost", 2, 1, intPtr(2)},
		{"Lost.S02E01-E03.mkv", "Lost", 2, 1, intPtr(3)},
		{"Firefly S01 E07.mkv", "Firefly", 1, 7, nil},
		{"Doctor Who Season 3 Episode 10.avi", "Doctor Who", 3, 10, nil},
		{"Dark/Season 1/S01E04.mkv", "Dark", 1, 4, nil},
		{"Fargo (2014)/Season 02/s02e09 - Castle.mkv", "Fargo", 2, 9, nil},
	}

	for _, tc := range cases {
		hint, err := parser.Parse(tc.path, domain.KindShow)

		suite.Require().NoError(err, tc.path)
		suite.Equal(parser.AnchorSeasonEpisode, hint.Anchor, tc.path)
		suite.Equal(tc.title, hint.Title, tc.path)
		suite.Equal(tc.season, *hint.Season, tc.path)
		suite.Equal(tc.episode, *hint.Episode, tc.path)
		suite.Equal(tc.episodeEnd, hint.EpisodeEnd, tc.path)
	}
}

func (suite *ParserTestSuite) TestParse_ShowDirectoryYear() {
	hint, err := parser.Parse("Fargo (2014)/Season 02/s02e09.mkv", domain.KindShow)

	suite.Require().NoError(err)
	suite.Equal("Fargo", hint.Title)
	suite.Equal(intPtr(2014), hint.Year)
}

func (suite *ParserTestSuite) TestParse_ShowWithoutEpisodeFallsBackToYear() {
	hint, err := parser.Parse("Planet.Earth.2006.mkv", domain.KindShow)

	suite.Require().NoError(err)
	suite.Equal(parser.AnchorYear, hint.Anchor)
	suite.Equal("Planet Earth", hint.Title)
	suite.False(hint.HasEpisode())
}

func (suite *ParserTestSuite) TestParse_MovieLibraryIgnoresEpisodePattern() {
	hint, err := parser.Parse("Lost.S02E01.mkv", domain.KindMovie)

	suite.Require().NoError(err)
	suite.Equal(parser.AnchorNone, hint.Anchor)
	suite.Nil(hint.Season)
}

func (suite *ParserTestSuite) TestParse_NoAnchorIsValid() {
	hint, err := parser.Parse("Holiday Footage.mkv", domain.KindMixed)

	suite.Require().NoError(err)
	suite.Equal(parser.AnchorNone, hint.Anchor)
	suite.Equal("Holiday Footage", hint.Title)
	suite.Nil(hint.Year)
}

func (suite *ParserTestSuite) TestParse_EmptyTitle() {
	for _, path := range []string{"1080p.x264.mkv", "[RARBG].mkv", "S01E01.mkv"} {
		hint, err := parser.Parse(path, domain.KindShow)

		suite.Nil(hint, path)
		suite.ErrorIs(err, parser.ErrParse, path)
		var pe *parser.ParseError
		suite.ErrorAs(err, &pe)
		suite.Equal(path, pe.Path)
	}
}

func (suite *ParserTestSuite) TestParse_Deterministic() {
	const path = "The.Matrix.1999.1080p.mkv"
	first, err := parser.Parse(path, domain.KindMixed)
	suite.Require().NoError(err)

	for i := 0; i < 20; i++ {
		again, err := parser.Parse(path, domain.KindMixed)
		suite.Require().NoError(err)
		suite.Equal(first, again)
	}
}

func TestParserTestSuite(t *testing.T) {
	suite.Run(t, new(ParserTestSuite))
}

func TestHint_Episodes(t *testing.T) {
	hint, err := parser.Parse("Lost.S02E01-E03.mkv", domain.KindShow)
	require.NoError(t, err)

	assert.Equal(t, []int{1, 2, 3}, hint.Episodes())
	assert.True(t, hint.HasEpisode())
}

func TestHint_LongEpisodeRangeIsSingleEpisode(t *testing.T) {
	hint, err := parser.Parse("Show/Show.S01E01-E9999.mkv", domain.KindShow)
	require.NoError(t, err)

	assert.Nil(t, hint.EpisodeEnd)
	assert.Equal(t, []int{1}, hint.Episodes())

	season, first, last := 1, 3, 3+parser.MaxEpisodesPerFile
	built := &parser.Hint{Title: "Show", Season: &season, Episode: &first, EpisodeEnd: &last}
	assert.Equal(t, []int{3}, built.Episodes())
}

func TestNormalize(t *testing.T) {
	cases := map[string]string{
		"The Matrix":           "the matrix",
		"Amélie":               "amelie",
		"Charlotte's Web":      "charlottes web",
		"Law & Order: SVU":     "law and order svu",
		"  Spider-Man:  Home ": "spider man home",
		"Pokémon 4Ever":        "pokemon 4ever",
	}
	for in, want := range cases {
		assert.Equal(t, want, parser.Normalize(in), in)
	}
	assert.Equal(t, []string{"the", "matrix"}, parser.Tokens("The.Matrix"))
}
