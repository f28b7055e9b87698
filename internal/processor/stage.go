package processor

import (
	"fmt"
	"time"
)

// Stage is a step of story generation. Stages only move forward.
type Stage int

const (
	StageRequested Stage = iota
	StageTextGenerated
	StageTranslated
	StageSummarized
	StageKeyPointsExtracted
	StageImagesGenerated
	StageMarkupWoven
	StageAudioSynthesized
	StagePersisted
)

var stageNames = [...]string{
	"requested",
	"text_generated",
	"translated",
	"summarized",
	"key_points_extracted",
	"images_generated",
	"markup_woven",
	"audio_synthesized",
	"persisted",
}

func (s Stage) String() string {
	if s < 0 || int(s) >= len(stageNames) {
		return "unknown"
	}
	return stageNames[s]
}

// MarshalText encodes the stage by name.
func (s Stage) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText decodes a stage name.
func (s *Stage) UnmarshalText(text []byte) error {
	for i, name := range stageNames {
		if name == string(text) {
			*s = Stage(i)
			return nil
		}
	}
	return fmt.Errorf("unknown stage %q", text)
}

// StageEvent reports a completed stage.
type StageEvent struct {
	StoryID string    `json:"story_id"`
	Stage   Stage     `json:"stage"`
	Detail  string    `json:"detail,omitempty"`
	At      time.Time `json:"at"`
}

// Observer receives stage events synchronously, in order.
type Observer func(StageEvent)
