package kafka

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/segmentio/kafka-go"
	"github.com/snappy-loop/storyteller/internal/models"
)

// messageWriter is the subset of *kafka.Writer used by Producer.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Producer wraps a Kafka producer
type Producer struct {
	writer messageWriter
	topic  string
}

// NewProducer creates a new Kafka producer
func NewProducer(brokers []string, topic string) *Producer {
	writer := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.LeastBytes{},
		AllowAutoTopicCreation: true,
		RequiredAcks:           kafka.RequireOne,
		Async:                  false,
	}

	log.Info().
		Strs("brokers", brokers).
		Str("topic", topic).
		Msg("Kafka producer initialized")

	return &Producer{
		writer: writer,
		topic:  topic,
	}
}

// PublishStoryRequest publishes a story request for the worker
func (p *Producer) PublishStoryRequest(ctx context.Context, msg *StoryRequestMessage) error {
	if err := p.publish(ctx, msg.RequestID, msg); err != nil {
		return err
	}

	log.Info().
		Str("request_id", msg.RequestID).
		Str("genre", msg.Request.Genre).
		Str("topic", p.topic).
		Msg("Story request published to Kafka")

	return nil
}

// PublishStoryEvent publishes a story lifecycle event
func (p *Producer) PublishStoryEvent(ctx context.Context, event *models.StoryEvent) error {
	if err := p.publish(ctx, event.StoryID, event); err != nil {
		return err
	}

	log.Info().
		Str("story_id", event.StoryID).
		Str("event", event.Type).
		Str("topic", p.topic).
		Msg("Story event published to Kafka")

	return nil
}

func (p *Producer) publish(ctx context.Context, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}

	kafkaMsg := kafka.Message{
		Key:   []byte(key),
		Value: data,
	}

	if err := p.writer.WriteMessages(ctx, kafkaMsg); err != nil {
		return fmt.Errorf("failed to write message to kafka: %w", err)
	}
	return nil
}

// Close closes the producer
func (p *Producer) Close() error {
	log.Info().Str("topic", p.topic).Msg("Closing Kafka producer")
	return p.writer.Close()
}
