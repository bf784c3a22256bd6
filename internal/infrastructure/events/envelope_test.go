package events_test

import (
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/narwhalmedia/catalog/internal/infrastructure/events"
	"github.com/narwhalmedia/catalog/internal/library/domain"
)

func TestNewEnvelope(t *testing.T) {
	event := domain.NewMediaFileEvent(domain.EventMediaFileAdded, uuid.New(), uuid.New(), "/media/movies/Heat.1995.mkv")
	event.ExternalID = "tmdb:949"

	envelope, err := events.NewEnvelope(event)
	require.NoError(t, err)

	assert.Equal(t, domain.EventMediaFileAdded, envelope.Type)
	assert.Equal(t, event.MediaFileID.String(), envelope.AggregateID)
	assert.NotEqual(t, uuid.Nil, envelope.ID)

	raw, err := envelope.Encode()
	require.NoError(t, err)

	var decoded struct {
		Type string `json:"type"`
		Data struct {
			Path       string `json:"path"`
			ExternalID string `json:"external_id"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.Equal(t, domain.EventMediaFileAdded, decoded.Type)
	assert.Equal(t, "/media/movies/Heat.1995.mkv", decoded.Data.Path)
	assert.Equal(t, "tmdb:949", decoded.Data.ExternalID)
}

func TestSubject(t *testing.T) {
	assert.Equal(t, "catalog.library.scan.completed", events.Subject(domain.EventScanCompleted))
}
