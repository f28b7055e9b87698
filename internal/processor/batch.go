package processor

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/panjf2000/ants/v2"
	"github.com/rs/zerolog/log"
	"github.com/snappy-loop/storyteller/internal/models"
)

// StoryGenerator generates one story
type StoryGenerator interface {
	Generate(ctx context.Context, req models.StoryRequest, run RunOptions) (*models.StoryRecord, error)
}

// BatchProcessor generates many stories on a bounded worker pool. Every item
// is processed in isolation: one failing item never affects the others.
type BatchProcessor struct {
	stories StoryGenerator
	pool    *ants.Pool
}

// NewBatchProcessor creates a batch processor running at most workers stories at once
func NewBatchProcessor(stories StoryGenerator, workers int) (*BatchProcessor, error) {
	pool, err := ants.NewPool(max(workers, 1), ants.WithPanicHandler(func(p any) {
		log.Error().Interface("panic", p).Msg("Panic in batch worker")
	}))
	if err != nil {
		return nil, fmt.Errorf("failed to create worker pool: %w", err)
	}
	return &BatchProcessor{stories: stories, pool: pool}, nil
}

// Release stops the worker pool
func (b *BatchProcessor) Release() {
	b.pool.Release()
}

// Process generates one story per item and returns results in input order.
// Items that are not valid request objects become error results.
func (b *BatchProcessor) Process(ctx context.Context, items []json.RawMessage) []models.BatchItemResult {
	results := make([]models.BatchItemResult, len(items))

	var wg sync.WaitGroup
	for i, raw := range items {
		wg.Add(1)
		err := b.pool.Submit(func() {
			defer wg.Done()
			defer func() {
				if r := recover(); r != nil {
					log.Error().Interface("panic", r).Int("item", i).Msg("Batch item panicked")
					results[i] = errorResult(fmt.Errorf("internal error: %v", r))
				}
			}()
			results[i] = b.processItem(ctx, raw)
		})
		if err != nil {
			wg.Done()
			results[i] = errorResult(fmt.Errorf("failed to schedule story: %w", err))
		}
	}
	wg.Wait()

	succeeded := 0
	for _, r := range results {
		if r.Status == models.BatchStatusSuccess {
			succeeded++
		}
	}
	log.Info().
		Int("items", len(items)).
		Int("succeeded", succeeded).
		Msg("Batch completed")

	return results
}

func (b *BatchProcessor) processItem(ctx context.Context, raw json.RawMessage) models.BatchItemResult {
	var req models.StoryRequest
	if len(bytes.TrimSpace(raw)) == 0 || bytes.TrimSpace(raw)[0] != '{' {
		return errorResult(fmt.Errorf("%w: batch item must be an object", models.ErrValidation))
	}
	if err := json.Unmarshal(raw, &req); err != nil {
		return errorResult(fmt.Errorf("%w: invalid batch item: %w", models.ErrValidation, err))
	}

	record, err := b.stories.Generate(ctx, req, RunOptions{TolerateVoiceFailures: true})
	if err != nil {
		return errorResult(err)
	}
	return models.BatchItemResult{Status: models.BatchStatusSuccess, Data: record}
}

func errorResult(err error) models.BatchItemResult {
	return models.BatchItemResult{Status: models.BatchStatusError, Message: err.Error()}
}
