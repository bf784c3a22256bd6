package metadata

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/narwhalmedia/catalog/internal/library/domain"
)

func TestChain_FallsThroughOnError(t *testing.T) {
	primary := NewMockProvider("primary")
	primary.SetError(&ProviderError{Provider: "primary", Kind: KindUnavailable})
	secondary := NewMockProvider("secondary").
		AddCandidates("Heat", domain.KindMovie, Candidate{ExternalID: "secondary:1", Title: "Heat"})

	got, err := NewChain(primary, secondary).Search(context.Background(), Query{Title: "Heat", Kind: domain.KindMovie})

	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "secondary", got[0].Provider)
}

func TestChain_EmptyAnswerIsNotAnError(t *testing.T) {
	primary := NewMockProvider("primary")
	failing := NewMockProvider("failing")
	failing.SetError(errors.New("down"))

	got, err := NewChain(primary, failing).Search(context.Background(), Query{Title: "nothing"})

	assert.NoError(t, err)
	assert.Empty(t, got)
}

func TestChain_AllFailReturnsLastError(t *testing.T) {
	a := NewMockProvider("a")
	a.SetError(errors.New("a down"))
	b := NewMockProvider("b")
	b.SetError(errors.New("b down"))

	_, err := NewChain(a, b).Search(context.Background(), Query{Title: "x"})

	assert.EqualError(t, err, "b down")
}

func TestChain_DetailsRoutesByProvider(t *testing.T) {
	a := NewMockProvider("a").AddDetails(&Details{ExternalID: "a:1", Title: "from a"})
	b := NewMockProvider("b").AddDetails(&Details{ExternalID: "b:1", Title: "from b"})

	d, err := NewChain(a, b).Details(context.Background(), "b:1", domain.KindMovie)

	require.NoError(t, err)
	assert.Equal(t, "from b", d.Title)
	assert.Equal(t, 0, a.DetailsCalls())

	_, err = NewChain(a, b).Details(context.Background(), "c:1", domain.KindMovie)
	assert.True(t, IsNotFound(err))
}

func TestChain_NoProviders(t *testing.T) {
	_, err := NewChain().Search(context.Background(), Query{Title: "x"})
	assert.ErrorIs(t, err, ErrNoProviders)
}

func TestSplitExternalID(t *testing.T) {
	p, id := SplitExternalID("tmdb:603")
	assert.Equal(t, "tmdb", p)
	assert.Equal(t, "603", id)

	p, id = SplitExternalID("603")
	assert.Empty(t, p)
	assert.Equal(t, "603", id)
}
