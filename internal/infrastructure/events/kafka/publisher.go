package kafka

import (
	"context"
	"fmt"

	"github.com/IBM/sarama"

	"github.com/narwhalmedia/catalog/internal/infrastructure/events"
	"github.com/narwhalmedia/catalog/pkg/interfaces"
)

// Publisher implements interfaces.EventPublisher on a Kafka topic
type Publisher struct {
	producer sarama.SyncProducer
	topic    string
}

// NewConfig returns the producer configuration the publisher relies on.
func NewConfig() *sarama.Config {
	config := sarama.NewConfig()
	config.Producer.RequiredAcks = sarama.WaitForAll
	config.Producer.Retry.Max = 5
	config.Producer.Return.Successes = true
	return config
}

// NewPublisher creates a new Kafka event publisher
func NewPublisher(brokers []string, topic string) (*Publisher, error) {
	producer, err := sarama.NewSyncProducer(brokers, NewConfig())
	if err != nil {
		return nil, fmt.Errorf("creating producer: %w", err)
	}
	return NewPublisherWithProducer(producer, topic), nil
}

// NewPublisherWithProducer wraps an existing producer.
func NewPublisherWithProducer(producer sarama.SyncProducer, topic string) *Publisher {
	return &Publisher{
		producer: producer,
		topic:    topic,
	}
}

// Publish sends an event keyed by its aggregate id, so the events of one
// media file or job stay ordered within a partition.
func (p *Publisher) Publish(ctx context.Context, event interfaces.Event) error {
	envelope, err := events.NewEnvelope(event)
	if err != nil {
		return err
	}
	data, err := envelope.Encode()
	if err != nil {
		return err
	}

	msg := &sarama.ProducerMessage{
		Topic: p.topic,
		Key:   sarama.StringEncoder(event.AggregateID()),
		Value: sarama.ByteEncoder(data),
		Headers: []sarama.RecordHeader{
			{
				Key:   []byte("event_type"),
				Value: []byte(event.EventType()),
			},
			{
				Key:   []byte("event_id"),
				Value: []byte(envelope.ID.String()),
			},
		},
	}

	if _, _, err := p.producer.SendMessage(msg); err != nil {
		return fmt.Errorf("sending message: %w", err)
	}
	return nil
}

// Close closes the publisher
func (p *Publisher) Close() error {
	return p.producer.Close()
}
