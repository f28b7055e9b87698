package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/segmentio/kafka-go"
	"github.com/snappy-loop/storyteller/internal/models"
)

// MessageHandler processes story requests
type MessageHandler interface {
	HandleStoryRequest(ctx context.Context, msg *StoryRequestMessage) error
}

// messageReader is the subset of *kafka.Reader used by Consumer.
type messageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// RetryPolicy bounds redelivery of a failing message.
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
}

const maxRetryDelay = 5 * time.Minute

// Consumer wraps a Kafka consumer
type Consumer struct {
	reader  messageReader
	handler MessageHandler
	retry   RetryPolicy
}

// NewConsumer creates a new Kafka consumer
func NewConsumer(brokers []string, topic, groupID string, handler MessageHandler, retry RetryPolicy) *Consumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        brokers,
		Topic:          topic,
		GroupID:        groupID,
		MinBytes:       1,
		MaxBytes:       10e6, // 10MB
		CommitInterval: 0,    // manual commits
		// Requests published before the first worker started are not lost.
		StartOffset: kafka.FirstOffset,
	})

	log.Info().
		Strs("brokers", brokers).
		Str("topic", topic).
		Str("group_id", groupID).
		Msg("Kafka consumer initialized")

	return newConsumer(reader, handler, retry)
}

func newConsumer(reader messageReader, handler MessageHandler, retry RetryPolicy) *Consumer {
	if retry.MaxAttempts < 1 {
		retry.MaxAttempts = 1
	}
	return &Consumer{reader: reader, handler: handler, retry: retry}
}

// Start consumes messages until ctx is cancelled
func (c *Consumer) Start(ctx context.Context) error {
	log.Info().Msg("Starting Kafka consumer")

	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				log.Info().Msg("Consumer context cancelled, stopping")
				return ctx.Err()
			}
			log.Error().Err(err).Msg("Failed to fetch message")
			continue
		}

		if err := c.processWithRetry(ctx, msg); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			log.Error().
				Err(err).
				Str("topic", msg.Topic).
				Int("partition", msg.Partition).
				Int64("offset", msg.Offset).
				Msg("CRITICAL: Message processing failed after all retries - SKIPPING MESSAGE")
		}

		// Commit either way so one bad message never blocks the partition
		if err := c.reader.CommitMessages(ctx, msg); err != nil {
			log.Error().Err(err).Int64("offset", msg.Offset).Msg("Failed to commit message")
		}
	}
}

// processWithRetry retries failed messages with exponential backoff. Invalid
// requests are not retried.
func (c *Consumer) processWithRetry(ctx context.Context, msg kafka.Message) error {
	var lastErr error
	for attempt := 0; attempt < c.retry.MaxAttempts; attempt++ {
		lastErr = c.processMessage(ctx, msg)
		if lastErr == nil {
			return nil
		}
		if errors.Is(lastErr, models.ErrValidation) || attempt == c.retry.MaxAttempts-1 {
			break
		}

		delay := c.retry.BaseDelay * time.Duration(1<<uint(min(attempt, 10)))
		if delay > maxRetryDelay {
			delay = maxRetryDelay
		}
		log.Error().
			Err(lastErr).
			Int64("offset", msg.Offset).
			Int("attempt", attempt+1).
			Int("max_attempts", c.retry.MaxAttempts).
			Dur("delay", delay).
			Msg("Failed to process message - will retry")

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}
	return lastErr
}

// processMessage processes a single Kafka message
func (c *Consumer) processMessage(ctx context.Context, msg kafka.Message) error {
	log.Debug().
		Str("topic", msg.Topic).
		Int("partition", msg.Partition).
		Int64("offset", msg.Offset).
		Msg("Processing message")

	var req StoryRequestMessage
	if err := json.Unmarshal(msg.Value, &req); err != nil {
		return fmt.Errorf("%w: failed to unmarshal message: %w", models.ErrValidation, err)
	}

	if err := c.handler.HandleStoryRequest(ctx, &req); err != nil {
		return fmt.Errorf("handler error: %w", err)
	}

	log.Info().
		Str("request_id", req.RequestID).
		Msg("Message processed successfully")

	return nil
}

// Close closes the consumer
func (c *Consumer) Close() error {
	log.Info().Msg("Closing Kafka consumer")
	return c.reader.Close()
}
