package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog/log"
	"github.com/snappy-loop/storyteller/internal/kafka"
	"github.com/snappy-loop/storyteller/internal/models"
	"github.com/snappy-loop/storyteller/internal/processor"
)

// storyGenerator is the single-story pipeline used by Handler.
type storyGenerator interface {
	Generate(ctx context.Context, req models.StoryRequest, run processor.RunOptions) (*models.StoryRecord, error)
}

// batchProcessor is the batch pipeline used by Handler.
type batchProcessor interface {
	Process(ctx context.Context, items []json.RawMessage) []models.BatchItemResult
}

// catalogService is the read side used by Handler.
type catalogService interface {
	ListStories(ctx context.Context, genre models.Genre) ([]*models.StoryRecord, error)
	RandomStory(ctx context.Context, genre models.Genre) (*models.StoryRecord, error)
	GetStory(ctx context.Context, genre models.Genre, storyID string) (*models.StoryRecord, error)
}

// assetReader reads stored objects for the asset proxy.
type assetReader interface {
	Get(ctx context.Context, key string) ([]byte, error)
}

// RequestPublisher queues story requests for the worker. May be nil.
type RequestPublisher interface {
	PublishStoryRequest(ctx context.Context, msg *kafka.StoryRequestMessage) error
}

// Handler contains all HTTP handlers
type Handler struct {
	stories  storyGenerator
	batch    batchProcessor
	catalog  catalogService
	assets   assetReader
	requests RequestPublisher
}

// NewHandler creates a new handler. requests may be nil when Kafka is not configured.
func NewHandler(stories storyGenerator, batch batchProcessor, catalog catalogService, assets assetReader, requests RequestPublisher) *Handler {
	return &Handler{
		stories:  stories,
		batch:    batch,
		catalog:  catalog,
		assets:   assets,
		requests: requests,
	}
}

// Index handles GET /
func (h *Handler) Index(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Write([]byte("Welcome to the Storyteller Backend"))
}

// statusFor maps error kinds to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, models.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, models.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, models.ErrUpstream):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// writeError logs server-side failures and writes the error as JSON.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		log.Error().Err(err).Str("path", r.URL.Path).Msg("Request failed")
	}
	writeJSONError(w, status, err.Error())
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}

func writeJSONError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
