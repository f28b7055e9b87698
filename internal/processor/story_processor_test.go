package processor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/snappy-loop/storyteller/internal/illustration"
	"github.com/snappy-loop/storyteller/internal/llm"
	"github.com/snappy-loop/storyteller/internal/models"
	"github.com/snappy-loop/storyteller/internal/storage"
	"github.com/snappy-loop/storyteller/internal/voice"
)

type fakeText struct {
	mu    sync.Mutex
	calls []string
	empty string // system prompt answered with ""
}

func (f *fakeText) GenerateText(_ context.Context, system, user string, _ int, _ float64) (string, error) {
	f.mu.Lock()
	f.calls = append(f.calls, system)
	f.mu.Unlock()
	if system == f.empty {
		return "  ", nil
	}
	switch system {
	case storytellerSystem:
		return "The **knight** rode out. He met a dragon.\n\nThey became friends.", nil
	case translatorSystem:
		return "Şövalye yola çıktı. Bir ejderha gördü.\n\nArkadaş oldular.", nil
	default:
		return "The knight rode out. He met a dragon. They became friends.", nil
	}
}

type fakeIllustrator struct{}

func (fakeIllustrator) Illustrate(_ context.Context, keyPoints []string, _ illustration.Cast) ([]*llm.Image, error) {
	images := make([]*llm.Image, len(keyPoints))
	for i := range keyPoints {
		images[i] = &llm.Image{Data: []byte{byte(i)}, MimeType: "image/png"}
	}
	return images, nil
}

type fakeSpeech struct {
	failSpeaker string
}

func (f fakeSpeech) SynthesizeSpeech(_ context.Context, req llm.SpeechRequest) ([]byte, error) {
	if req.SpeakerID == f.failSpeaker {
		return nil, errors.New("voice unavailable")
	}
	return []byte("mp3:" + req.SpeakerID), nil
}

type fakeEvents struct {
	mu     sync.Mutex
	events []models.StoryEvent
}

func (f *fakeEvents) PublishStoryEvent(_ context.Context, e *models.StoryEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, *e)
	return nil
}

type fakeIndex struct {
	entries []models.StoryIndexEntry
}

func (f *fakeIndex) Insert(_ context.Context, e *models.StoryIndexEntry) error {
	f.entries = append(f.entries, *e)
	return nil
}

type fixedRand int

func (r fixedRand) IntN(n int) int { return int(r) % n }

var testRoster = voice.Roster{
	{LanguageCode: "en-US", SpeakerID: "en-US-A", Gender: "MALE", AgeLabel: "young_man"},
	{LanguageCode: "tr-TR", SpeakerID: "tr-TR-A", Gender: "FEMALE", AgeLabel: "old_woman"},
}

func newTestProcessor(speech fakeSpeech) (*StoryProcessor, *storage.MemoryStore, *fakeText, *fakeEvents) {
	store := storage.NewMemoryStore("http://assets.test")
	text := &fakeText{}
	events := &fakeEvents{}
	narrator := voice.NewSynthesizer(speech, store, testRoster, voice.Options{})
	p := NewStoryProcessor(text, fakeIllustrator{}, narrator, store, Options{KeyPoints: 2}).
		WithEvents(events).
		WithRandom(fixedRand(0))
	return p, store, text, events
}

func validRequest() models.StoryRequest {
	return models.StoryRequest{Prompt: "A tale of courage", Title: "The Knight", Genre: "Fantasy"}
}

func TestGenerate_PersistsCompleteRecord(t *testing.T) {
	p, store, _, events := newTestProcessor(fakeSpeech{})
	idx := &fakeIndex{}
	p.WithIndex(idx)

	var stages []Stage
	record, err := p.Generate(context.Background(), validRequest(), RunOptions{
		Observer: func(e StageEvent) { stages = append(stages, e.Stage) },
	})
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}

	if record.Genre != models.GenreFantasy {
		t.Errorf("genre = %q", record.Genre)
	}
	if record.Protagonist != "a brave knight" || record.Location != "the Whispering Woods" {
		t.Errorf("cast = %q in %q", record.Protagonist, record.Location)
	}
	if len(record.Tags) != 0 || record.Tags == nil {
		t.Errorf("tags = %#v, want empty slice", record.Tags)
	}

	for i, s := range stages {
		if s != Stage(i) {
			t.Fatalf("stages = %v, want every stage in order", stages)
		}
	}
	if len(stages) != int(StagePersisted)+1 {
		t.Errorf("got %d stages", len(stages))
	}

	prefix := "stories/fantasy/" + record.StoryID
	if len(record.Images) != 2 || record.Images[0].Key != prefix+"/images/image_1.png" {
		t.Errorf("images = %+v", record.Images)
	}
	en := record.Content["en"]
	if strings.Contains(en.Text, "**") {
		t.Errorf("markdown not stripped: %q", en.Text)
	}
	if len(en.Pages) != 2 {
		t.Errorf("en pages = %d, want 2", len(en.Pages))
	}
	if !strings.Contains(en.Markup, `<mark name="image_1:`+prefix+`/images/image_1.png"/>`) {
		t.Errorf("image anchor missing from %q", en.Markup)
	}
	if _, ok := record.Content["tr"]; !ok {
		t.Error("missing translation")
	}

	if got := record.Audio["old_woman_tr"].Key; got != prefix+"/tr/old_woman.mp3" {
		t.Errorf("tr audio key = %q", got)
	}
	audio, err := store.Get(context.Background(), prefix+"/en/young_man.mp3")
	if err != nil || string(audio) != "mp3:en-US-A" {
		t.Errorf("en audio = %q, %v", audio, err)
	}

	data, err := store.Get(context.Background(), prefix+"/"+RecordName)
	if err != nil {
		t.Fatalf("record not stored: %v", err)
	}
	var stored models.StoryRecord
	if err := json.Unmarshal(data, &stored); err != nil {
		t.Fatal(err)
	}
	if stored.StoryID != record.StoryID || stored.Summary == "" {
		t.Errorf("stored record = %+v", stored)
	}

	if len(idx.entries) != 1 || idx.entries[0].RecordKey != prefix+"/"+RecordName {
		t.Errorf("index entries = %+v", idx.entries)
	}
	if len(events.events) != 1 || events.events[0].Type != models.EventStoryPersisted {
		t.Errorf("events = %+v", events.events)
	}
}

func TestGenerate_ValidationFailureTouchesNothing(t *testing.T) {
	p, store, text, events := newTestProcessor(fakeSpeech{})
	req := validRequest()
	req.Genre = "horror"

	_, err := p.Generate(context.Background(), req, RunOptions{})
	if !errors.Is(err, models.ErrValidation) {
		t.Fatalf("err = %v, want ErrValidation", err)
	}
	keys, _ := store.List(context.Background(), "")
	if len(keys) != 0 || len(text.calls) != 0 || len(events.events) != 0 {
		t.Errorf("side effects after validation failure: keys=%v calls=%v events=%v", keys, text.calls, events.events)
	}
}

func TestGenerate_EmptyModelAnswerIsUpstreamError(t *testing.T) {
	p, store, text, events := newTestProcessor(fakeSpeech{})
	text.empty = editorSystem

	_, err := p.Generate(context.Background(), validRequest(), RunOptions{})
	if !errors.Is(err, models.ErrUpstream) || !errors.Is(err, llm.ErrEmptyResponse) {
		t.Fatalf("err = %v, want ErrUpstream wrapping ErrEmptyResponse", err)
	}
	keys, _ := store.List(context.Background(), "")
	if len(keys) != 0 {
		t.Errorf("stored %v after summary failure", keys)
	}
	if len(events.events) != 1 || events.events[0].Type != models.EventStoryFailed {
		t.Errorf("events = %+v", events.events)
	}
}

func TestGenerate_VoiceFailureFailsSingleStory(t *testing.T) {
	p, store, _, _ := newTestProcessor(fakeSpeech{failSpeaker: "tr-TR-A"})

	_, err := p.Generate(context.Background(), validRequest(), RunOptions{})
	if !errors.Is(err, models.ErrUpstream) {
		t.Fatalf("err = %v, want ErrUpstream", err)
	}
	if !strings.Contains(err.Error(), "old_woman_tr") {
		t.Errorf("error does not name the variant: %v", err)
	}
	keys, _ := store.List(context.Background(), "stories/")
	for _, k := range keys {
		if strings.HasSuffix(k, RecordName) {
			t.Errorf("record persisted despite failure: %s", k)
		}
	}
}

func TestGenerate_ToleratedVoiceFailureIsRecorded(t *testing.T) {
	p, _, _, _ := newTestProcessor(fakeSpeech{failSpeaker: "tr-TR-A"})

	record, err := p.Generate(context.Background(), validRequest(), RunOptions{TolerateVoiceFailures: true})
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if _, ok := record.Audio["young_man_en"]; !ok {
		t.Error("healthy variant missing")
	}
	if msg := record.AudioErrors["old_woman_tr"]; !strings.Contains(msg, "voice unavailable") {
		t.Errorf("audio_errors = %v", record.AudioErrors)
	}
}

func TestPickCast_UsesGenrePools(t *testing.T) {
	for _, g := range models.Genres() {
		for i := range 4 {
			cast := pickCast(fixedRand(i), g)
			if cast.Protagonist != protagonists[g][i] || cast.Location != locations[g][i] {
				t.Errorf("%s/%d: cast = %+v", g, i, cast)
			}
		}
	}
}

func TestStage_String(t *testing.T) {
	if got := fmt.Sprint(StageMarkupWoven); got != "markup_woven" {
		t.Errorf("String() = %q", got)
	}
	if got := Stage(99).String(); got != "unknown" {
		t.Errorf("String() = %q", got)
	}
}
