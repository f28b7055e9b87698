package models

import (
	"fmt"
	"strings"
	"time"
)

// Genre is a story genre. It selects the protagonist and location pools and
// namespaces every persisted asset.
type Genre string

const (
	GenreFantasy Genre = "fantasy"
	GenreSciFi   Genre = "sci-fi"
)

// Genres lists the supported genres in a stable order.
func Genres() []Genre {
	return []Genre{GenreFantasy, GenreSciFi}
}

// ParseGenre validates a genre name (case-insensitive, surrounding space ignored).
func ParseGenre(s string) (Genre, error) {
	g := Genre(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Genres() {
		if g == known {
			return g, nil
		}
	}
	return "", fmt.Errorf("%w: invalid genre %q", ErrValidation, s)
}

// StoryRequest is the input of one story generation
type StoryRequest struct {
	Prompt string   `json:"prompt"`
	Title  string   `json:"title"`
	Tags   []string `json:"tags"`
	Genre  string   `json:"genre"`
}

// Validate checks required fields and normalizes tags. It returns the parsed genre.
func (r *StoryRequest) Validate() (Genre, error) {
	if strings.TrimSpace(r.Prompt) == "" {
		return "", fmt.Errorf("%w: prompt is required", ErrValidation)
	}
	if strings.TrimSpace(r.Title) == "" {
		return "", fmt.Errorf("%w: title is required", ErrValidation)
	}
	if strings.TrimSpace(r.Genre) == "" {
		return "", fmt.Errorf("%w: genre is required", ErrValidation)
	}
	genre, err := ParseGenre(r.Genre)
	if err != nil {
		return "", err
	}
	if r.Tags == nil {
		r.Tags = []string{}
	}
	return genre, nil
}

// AssetRef points at a persisted object: its storage key and the URL known when it was written.
type AssetRef struct {
	Key string `json:"key"`
	URL string `json:"url"`
}

// LanguageContent is the paginated text of one language.
type LanguageContent struct {
	Text   string   `json:"text"`
	Pages  []string `json:"pages"`
	Markup string   `json:"markup"`
}

// StoryRecord is the persisted description of a finished story. Written once, never mutated.
type StoryRecord struct {
	StoryID     string                     `json:"story_id"`
	Title       string                     `json:"title"`
	Tags        []string                   `json:"tags"`
	Genre       Genre                      `json:"genre"`
	Summary     string                     `json:"summary"`
	KeyPoints   []string                   `json:"key_points"`
	Protagonist string                     `json:"protagonist"`
	Location    string                     `json:"location"`
	Content     map[string]LanguageContent `json:"content"`
	Audio       map[string]AssetRef        `json:"audio"`
	AudioErrors map[string]string          `json:"audio_errors,omitempty"`
	Images      []AssetRef                 `json:"images"`
	CreatedAt   time.Time                  `json:"created_at"`
}

// BatchItemResult is one entry of a batch response, in input order
type BatchItemResult struct {
	Status  string       `json:"status"` // success, error
	Data    *StoryRecord `json:"data,omitempty"`
	Message string       `json:"message,omitempty"`
}

const (
	BatchStatusSuccess = "success"
	BatchStatusError   = "error"
)

// StoryEvent is published after a story is persisted or fails
type StoryEvent struct {
	Type      string    `json:"type"` // story.persisted, story.failed
	StoryID   string    `json:"story_id,omitempty"`
	Genre     Genre     `json:"genre,omitempty"`
	Title     string    `json:"title"`
	RecordKey string    `json:"record_key,omitempty"`
	Error     string    `json:"error,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

const (
	EventStoryPersisted = "story.persisted"
	EventStoryFailed    = "story.failed"
)

// StoryIndexEntry is a row of the optional relational story index
type StoryIndexEntry struct {
	StoryID   string    `json:"story_id"`
	Genre     Genre     `json:"genre"`
	Title     string    `json:"title"`
	RecordKey string    `json:"record_key"`
	CreatedAt time.Time `json:"created_at"`
}
