package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
	"github.com/snappy-loop/storyteller/internal/models"
	"github.com/snappy-loop/storyteller/internal/processor"
)

const (
	streamReadLimit = 64 << 10
)

var streamUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// streamOutMessage is the JSON shape sent to the client.
type streamOutMessage struct {
	Type   string                `json:"type"` // stage, result, error
	Stage  *processor.StageEvent `json:"stage,omitempty"`
	Story  *models.StoryRecord   `json:"story,omitempty"`
	Error  string                `json:"error,omitempty"`
	Status int                   `json:"status,omitempty"`
}

// GenerateStoryWS handles GET /ws/generate-story. The client sends one story
// request; the server reports every stage as it completes, then the story.
func (h *Handler) GenerateStoryWS(w http.ResponseWriter, r *http.Request) {
	conn, err := streamUpgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn().Err(err).Msg("story ws upgrade failed")
		return
	}
	defer conn.Close()

	conn.SetReadLimit(streamReadLimit)
	conn.SetReadDeadline(time.Now().Add(time.Minute))

	_, raw, err := conn.ReadMessage()
	if err != nil {
		log.Debug().Err(err).Msg("story ws read")
		return
	}

	var req models.StoryRequest
	if err := json.Unmarshal(raw, &req); err != nil {
		_ = writeWSJSON(conn, streamOutMessage{Type: "error", Error: "invalid JSON: " + err.Error(), Status: http.StatusBadRequest})
		return
	}

	// Stage events are written from the pipeline goroutine, in order.
	observer := func(e processor.StageEvent) {
		if err := writeWSJSON(conn, streamOutMessage{Type: "stage", Stage: &e}); err != nil {
			log.Debug().Err(err).Str("story_id", e.StoryID).Msg("story ws write")
		}
	}

	record, err := h.stories.Generate(r.Context(), req, processor.RunOptions{Observer: observer})
	out := streamOutMessage{Type: "result", Story: record}
	if err != nil {
		out = streamOutMessage{Type: "error", Error: err.Error(), Status: statusFor(err)}
	}
	if err := writeWSJSON(conn, out); err != nil {
		log.Debug().Err(err).Msg("story ws write")
		return
	}
	conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(5*time.Second))
}

func writeWSJSON(conn *websocket.Conn, v interface{}) error {
	conn.SetWriteDeadline(time.Now().Add(30 * time.Second))
	return conn.WriteJSON(v)
}
