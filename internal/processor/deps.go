package processor

import (
	"context"

	"github.com/snappy-loop/storyteller/internal/illustration"
	"github.com/snappy-loop/storyteller/internal/llm"
	"github.com/snappy-loop/storyteller/internal/markup"
	"github.com/snappy-loop/storyteller/internal/models"
	"github.com/snappy-loop/storyteller/internal/voice"
)

// TextGenerator runs chat completions
type TextGenerator interface {
	GenerateText(ctx context.Context, system, user string, maxTokens int, temperature float64) (string, error)
}

// Illustrator turns key points into images
type Illustrator interface {
	Illustrate(ctx context.Context, keyPoints []string, cast illustration.Cast) ([]*llm.Image, error)
}

// Narrator synthesizes every voice variant of a story
type Narrator interface {
	FanOut(ctx context.Context, keyPrefix string, documents map[string]markup.Document) voice.Result
	Roster() voice.Roster
}

// AssetStore persists story assets
type AssetStore interface {
	Put(ctx context.Context, key string, data []byte, contentType string) error
	PublicURL(key string) string
}

// EventPublisher announces finished and failed stories. Optional.
type EventPublisher interface {
	PublishStoryEvent(ctx context.Context, event *models.StoryEvent) error
}

// StoryIndex records persisted stories for catalog lookups. Optional.
type StoryIndex interface {
	Insert(ctx context.Context, entry *models.StoryIndexEntry) error
}

// RandomSource draws uniform integers in [0, n)
type RandomSource interface {
	IntN(n int) int
}
