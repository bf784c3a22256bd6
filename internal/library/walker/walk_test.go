package walker_test

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/narwhalmedia/catalog/internal/library/walker"
)

var defaultOptions = walker.Options{
	Extensions:     []string{".mkv", ".mp4", "avi"},
	IgnorePatterns: []string{"sample", "trailer", "*.partial.*"},
}

func touch(t *testing.T, path string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte("data"), 0o644))
}

func relFiles(t *testing.T, tree *walker.Tree) []string {
	t.Helper()
	var out []string
	for _, f := range tree.Files() {
		rel, err := filepath.Rel(tree.Root, f.Path)
		require.NoError(t, err)
		out = append(out, filepath.ToSlash(rel))
	}
	sort.Strings(out)
	return out
}

type WalkTestSuite struct {
	suite.Suite
	root string
}

func (suite *WalkTestSuite) SetupTest() {
	suite.root = suite.T().TempDir()
}

func (suite *WalkTestSuite) TestWalk_FiltersEntries() {
	// Arrange
	t := suite.T()
	touch(t, filepath.Join(suite.root, "The.Matrix.1999.mkv"))
	touch(t, filepath.Join(suite.root, "Heat (1995)", "Heat.1995.MP4"))
	touch(t, filepath.Join(suite.root, "Heat (1995)", "heat-sample.mkv"))
	touch(t, filepath.Join(suite.root, "Heat (1995)", "Trailers", "teaser.mkv"))
	touch(t, filepath.Join(suite.root, "notes.txt"))
	touch(t, filepath.Join(suite.root, ".hidden", "secret.mkv"))
	touch(t, filepath.Join(suite.root, "Alien.partial.mkv"))
	touch(t, filepath.Join(suite.root, "Old.avi"))

	// Act
	tree, err := walker.Walk(context.Background(), suite.root, defaultOptions)

	// Assert
	suite.Require().NoError(err)
	suite.Equal([]string{"Heat (1995)/Heat.1995.MP4", "Old.avi", "The.Matrix.1999.mkv"}, relFiles(t, tree))
	suite.Equal(3, tree.FileCount())
	suite.Empty(tree.Errors)
}

func (suite *WalkTestSuite) TestWalk_ArenaLinks() {
	touch(suite.T(), filepath.Join(suite.root, "Show", "Season 1", "Show.S01E01.mkv"))

	tree, err := walker.Walk(context.Background(), suite.root, defaultOptions)
	suite.Require().NoError(err)

	files := tree.Files()
	suite.Require().Len(files, 1)
	season := tree.Node(files[0].Parent)
	suite.Equal("Season 1", season.Name)
	show := tree.Node(season.Parent)
	suite.Equal("Show", show.Name)
	suite.Equal(-1, tree.Node(show.Parent).Parent)
	suite.Len(tree.Children(0), 1)
	suite.Len(tree.Dirs(), 3)
	suite.Equal(int64(4), files[0].Size)
}

func (suite *WalkTestSuite) TestWalk_RootUnreadable() {
	_, err := walker.Walk(context.Background(), filepath.Join(suite.root, "missing"), defaultOptions)
	suite.ErrorIs(err, walker.ErrRootUnreadable)

	file := filepath.Join(suite.root, "file.mkv")
	touch(suite.T(), file)
	_, err = walker.Walk(context.Background(), file, defaultOptions)
	suite.ErrorIs(err, walker.ErrRootUnreadable)
}

func (suite *WalkTestSuite) TestWalk_SymlinkCycle() {
	if runtime.GOOS == "windows" {
		suite.T().Skip("symlinks need privileges on windows")
	}
	touch(suite.T(), filepath.Join(suite.root, "a", "Movie.2001.mkv"))
	suite.Require().NoError(os.Symlink(suite.root, filepath.Join(suite.root, "a", "loop")))

	opts := defaultOptions
	opts.FollowSymlinks = true
	tree, err := walker.Walk(context.Background(), suite.root, opts)

	suite.Require().NoError(err)
	suite.Equal([]string{"a/Movie.2001.mkv"}, relFiles(suite.T(), tree))
}

func (suite *WalkTestSuite) TestWalk_SymlinksIgnoredByDefault() {
	if runtime.GOOS == "windows" {
		suite.T().Skip("symlinks need privileges on windows")
	}
	other := suite.T().TempDir()
	touch(suite.T(), filepath.Join(other, "Linked.2010.mkv"))
	suite.Require().NoError(os.Symlink(other, filepath.Join(suite.root, "linked")))

	tree, err := walker.Walk(context.Background(), suite.root, defaultOptions)
	suite.Require().NoError(err)
	suite.Empty(tree.Files())

	opts := defaultOptions
	opts.FollowSymlinks = true
	tree, err = walker.Walk(context.Background(), suite.root, opts)
	suite.Require().NoError(err)
	suite.Equal([]string{"linked/Linked.2010.mkv"}, relFiles(suite.T(), tree))
}

func (suite *WalkTestSuite) TestWalk_UnreadableSubdirIsRecorded() {
	if runtime.GOOS == "windows" || os.Geteuid() == 0 {
		suite.T().Skip("permission bits are not enforced")
	}
	touch(suite.T(), filepath.Join(suite.root, "ok", "Fine.2000.mkv"))
	locked := filepath.Join(suite.root, "locked")
	touch(suite.T(), filepath.Join(locked, "Hidden.2000.mkv"))
	suite.Require().NoError(os.Chmod(locked, 0o000))
	suite.T().Cleanup(func() { _ = os.Chmod(locked, 0o755) })

	tree, err := walker.Walk(context.Background(), suite.root, defaultOptions)

	suite.Require().NoError(err)
	suite.Equal([]string{"ok/Fine.2000.mkv"}, relFiles(suite.T(), tree))
	suite.Require().Len(tree.Errors, 1)
	suite.Equal(locked, tree.Errors[0].Path)
}

func (suite *WalkTestSuite) TestWalk_Cancelled() {
	touch(suite.T(), filepath.Join(suite.root, "x", "Movie.2001.mkv"))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := walker.Walk(ctx, suite.root, defaultOptions)
	suite.ErrorIs(err, context.Canceled)
}

func TestWalkTestSuite(t *testing.T) {
	suite.Run(t, new(WalkTestSuite))
}

func TestWalk_EmptyRoot(t *testing.T) {
	tree, err := walker.Walk(context.Background(), t.TempDir(), defaultOptions)
	require.NoError(t, err)
	assert.Equal(t, 1, tree.Len())
	assert.Empty(t, tree.Files())
}
