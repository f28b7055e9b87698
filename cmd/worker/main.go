package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/snappy-loop/storyteller/internal/app"
	"github.com/snappy-loop/storyteller/internal/config"
	"github.com/snappy-loop/storyteller/internal/kafka"
	"github.com/snappy-loop/storyteller/internal/processor"
)

// StoryRequestHandler implements kafka.MessageHandler
type StoryRequestHandler struct {
	stories *processor.StoryProcessor
}

func (h *StoryRequestHandler) HandleStoryRequest(ctx context.Context, msg *kafka.StoryRequestMessage) error {
	log.Info().
		Str("request_id", msg.RequestID).
		Str("title", msg.Request.Title).
		Str("trace_id", msg.TraceID).
		Msg("Processing story request")

	record, err := h.stories.Generate(ctx, msg.Request, processor.RunOptions{TolerateVoiceFailures: true})
	if err != nil {
		return err
	}
	log.Info().
		Str("request_id", msg.RequestID).
		Str("story_id", record.StoryID).
		Int("audio_errors", len(record.AudioErrors)).
		Msg("Story request completed")
	return nil
}

func main() {
	cfg := config.Load()
	app.ConfigureLogging(cfg.LogLevel)

	log.Info().Msg("Starting Storyteller Worker")

	if len(cfg.KafkaBrokers) == 0 {
		log.Fatal().Msg("KAFKA_BROKERS is required for the worker")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a, err := app.New(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize storyteller")
	}
	defer a.Close()

	consumer := kafka.NewConsumer(
		cfg.KafkaBrokers,
		cfg.KafkaTopicRequests,
		cfg.KafkaConsumerGroup,
		&StoryRequestHandler{stories: a.Stories},
		kafka.RetryPolicy{MaxAttempts: cfg.KafkaMaxRetries, BaseDelay: cfg.KafkaRetryBaseDelay},
	)
	defer consumer.Close()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := consumer.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Error().Err(err).Msg("Kafka consumer error")
		}
	}()

	log.Info().Msg("Worker started, consuming story requests...")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down worker...")
	cancel()

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		log.Info().Msg("Consumer shutdown complete")
	case <-time.After(30 * time.Second):
		log.Warn().Msg("Consumer shutdown timeout")
	}

	log.Info().Msg("Worker exited")
}
