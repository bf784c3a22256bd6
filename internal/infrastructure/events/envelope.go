package events

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/narwhalmedia/catalog/pkg/interfaces"
)

// SubjectPrefix prefixes every broker subject and key written by the catalog.
const SubjectPrefix = "catalog"

// Envelope wraps a catalog event for transport to a broker.
type Envelope struct {
	ID          uuid.UUID       `json:"id"`
	Type        string          `json:"type"`
	AggregateID string          `json:"aggregate_id"`
	Timestamp   int64           `json:"timestamp"`
	Data        json.RawMessage `json:"data"`
}

// NewEnvelope marshals an event into a new envelope.
func NewEnvelope(event interfaces.Event) (*Envelope, error) {
	data, err := json.Marshal(event)
	if err != nil {
		return nil, fmt.Errorf("marshaling event data: %w", err)
	}

	return &Envelope{
		ID:          uuid.New(),
		Type:        event.EventType(),
		AggregateID: event.AggregateID(),
		Timestamp:   event.Timestamp(),
		Data:        data,
	}, nil
}

// Encode returns the wire form of the envelope.
func (e *Envelope) Encode() ([]byte, error) {
	b, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("marshaling envelope: %w", err)
	}
	return b, nil
}

// Subject maps an event type onto a broker subject.
func Subject(eventType string) string {
	return SubjectPrefix + "." + eventType
}
