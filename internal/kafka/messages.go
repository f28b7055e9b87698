package kafka

import "github.com/snappy-loop/storyteller/internal/models"

// StoryRequestMessage asks a worker to generate one story
type StoryRequestMessage struct {
	RequestID string              `json:"request_id"`
	Request   models.StoryRequest `json:"request"`
	TraceID   string              `json:"trace_id,omitempty"`
}
