package handlers

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/rs/zerolog/log"
	"github.com/snappy-loop/storyteller/internal/kafka"
	"github.com/snappy-loop/storyteller/internal/models"
	"github.com/snappy-loop/storyteller/internal/processor"
)

const maxBodyBytes = 1 << 20

// GenerateStory handles POST /generate-story
func (h *Handler) GenerateStory(w http.ResponseWriter, r *http.Request) {
	var req models.StoryRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	record, err := h.stories.Generate(r.Context(), req, processor.RunOptions{})
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, record)
}

// GenerateStoriesBatch handles POST /generate-stories-batch
func (h *Handler) GenerateStoriesBatch(w http.ResponseWriter, r *http.Request) {
	var items []json.RawMessage
	// null decodes without error into a nil slice
	if err := json.NewDecoder(io.LimitReader(r.Body, 8*maxBodyBytes)).Decode(&items); err != nil || items == nil {
		writeJSONError(w, http.StatusBadRequest, "request body must be a JSON array of story requests")
		return
	}

	writeJSON(w, http.StatusCreated, h.batch.Process(r.Context(), items))
}

// RandomStory handles GET /random-story?genre=
func (h *Handler) RandomStory(w http.ResponseWriter, r *http.Request) {
	genre, err := genreParam(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	record, err := h.catalog.RandomStory(r.Context(), genre)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, record)
}

// ListStories handles GET /stories?genre=
func (h *Handler) ListStories(w http.ResponseWriter, r *http.Request) {
	genre, err := genreParam(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	stories, err := h.catalog.ListStories(r.Context(), genre)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"stories": stories,
	})
}

// GetStory handles GET /stories/{genre}/{id}
func (h *Handler) GetStory(w http.ResponseWriter, r *http.Request) {
	record, err := h.storyFromPath(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, record)
}

type enqueueResult struct {
	RequestID string `json:"request_id,omitempty"`
	Status    string `json:"status"` // queued, error
	Message   string `json:"message,omitempty"`
}

// EnqueueStories handles POST /enqueue-stories. Valid requests are queued for the
// worker; invalid ones are reported per item.
func (h *Handler) EnqueueStories(w http.ResponseWriter, r *http.Request) {
	if h.requests == nil {
		writeJSONError(w, http.StatusServiceUnavailable, "story queue not configured")
		return
	}

	var reqs []models.StoryRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, 8*maxBodyBytes)).Decode(&reqs); err != nil {
		writeJSONError(w, http.StatusBadRequest, "request body must be a JSON array of story requests")
		return
	}

	results := make([]enqueueResult, len(reqs))
	for i, req := range reqs {
		if _, err := req.Validate(); err != nil {
			results[i] = enqueueResult{Status: "error", Message: err.Error()}
			continue
		}
		msg := &kafka.StoryRequestMessage{
			RequestID: uuid.NewString(),
			Request:   req,
			TraceID:   r.Header.Get("X-Request-ID"),
		}
		if err := h.requests.PublishStoryRequest(r.Context(), msg); err != nil {
			log.Error().Err(err).Msg("Failed to queue story request")
			results[i] = enqueueResult{Status: "error", Message: "failed to queue request"}
			continue
		}
		results[i] = enqueueResult{RequestID: msg.RequestID, Status: "queued"}
	}

	writeJSON(w, http.StatusAccepted, map[string]interface{}{
		"requests": results,
	})
}

func (h *Handler) storyFromPath(r *http.Request) (*models.StoryRecord, error) {
	vars := mux.Vars(r)
	genre, err := models.ParseGenre(vars["genre"])
	if err != nil {
		return nil, err
	}
	if _, err := uuid.Parse(vars["id"]); err != nil {
		return nil, fmt.Errorf("%w: invalid story id", models.ErrValidation)
	}
	return h.catalog.GetStory(r.Context(), genre, vars["id"])
}

// genreParam reads the optional genre query parameter. Empty means all genres.
func genreParam(r *http.Request) (models.Genre, error) {
	raw := r.URL.Query().Get("genre")
	if raw == "" {
		return "", nil
	}
	return models.ParseGenre(raw)
}
