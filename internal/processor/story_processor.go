package processor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand/v2"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/snappy-loop/storyteller/internal/illustration"
	"github.com/snappy-loop/storyteller/internal/llm"
	"github.com/snappy-loop/storyteller/internal/markup"
	"github.com/snappy-loop/storyteller/internal/models"
	"github.com/snappy-loop/storyteller/internal/upstream"
)

// SourceLanguage is the language stories are written in before translation.
const SourceLanguage = "en"

// RecordName is the object name of the story record under the story prefix.
const RecordName = "story_data.json"

// Options tune story generation.
type Options struct {
	KeyPoints   int
	MaxTokens   int
	Temperature float64
	Upstream    upstream.Policy
}

// RunOptions tune a single run.
type RunOptions struct {
	// TolerateVoiceFailures records failed variants in the story instead of
	// failing the whole story.
	TolerateVoiceFailures bool
	Observer              Observer
}

// StoryProcessor assembles a story end to end: text, translations, summary,
// illustrations, woven markup, audio and the persisted record.
type StoryProcessor struct {
	text        TextGenerator
	illustrator Illustrator
	narrator    Narrator
	store       AssetStore
	events      EventPublisher
	index       StoryIndex
	rng         RandomSource
	now         func() time.Time
	opts        Options
}

// NewStoryProcessor creates a story processor
func NewStoryProcessor(text TextGenerator, illustrator Illustrator, narrator Narrator, store AssetStore, opts Options) *StoryProcessor {
	if opts.KeyPoints <= 0 {
		opts.KeyPoints = 3
	}
	if opts.MaxTokens <= 0 {
		opts.MaxTokens = 500
	}
	return &StoryProcessor{
		text:        text,
		illustrator: illustrator,
		narrator:    narrator,
		store:       store,
		rng:         &lockedRand{r: rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), 0x5eed))},
		now:         time.Now,
		opts:        opts,
	}
}

// WithEvents publishes a story event after every run.
func (p *StoryProcessor) WithEvents(events EventPublisher) *StoryProcessor {
	p.events = events
	return p
}

// WithIndex records persisted stories in a relational index.
func (p *StoryProcessor) WithIndex(index StoryIndex) *StoryProcessor {
	p.index = index
	return p
}

// WithRandom replaces the source used to draw protagonists and locations.
func (p *StoryProcessor) WithRandom(rng RandomSource) *StoryProcessor {
	p.rng = rng
	return p
}

// Generate runs the pipeline for one request and returns the persisted record.
// Nothing is persisted for a request that fails validation.
func (p *StoryProcessor) Generate(ctx context.Context, req models.StoryRequest, run RunOptions) (*models.StoryRecord, error) {
	genre, err := req.Validate()
	if err != nil {
		return nil, err
	}

	record := &models.StoryRecord{
		StoryID: uuid.NewString(),
		Title:   strings.TrimSpace(req.Title),
		Tags:    req.Tags,
		Genre:   genre,
	}
	start := p.now()

	log.Info().
		Str("story_id", record.StoryID).
		Str("genre", string(genre)).
		Str("title", record.Title).
		Msg("Starting story generation")

	if err := p.pipeline(ctx, req, record, run); err != nil {
		log.Error().
			Err(err).
			Str("story_id", record.StoryID).
			Msg("Story generation failed")
		p.publish(ctx, &models.StoryEvent{
			Type:      models.EventStoryFailed,
			StoryID:   record.StoryID,
			Genre:     genre,
			Title:     record.Title,
			Error:     err.Error(),
			Timestamp: p.now(),
		})
		return nil, err
	}

	log.Info().
		Str("story_id", record.StoryID).
		Int("audio_variants", len(record.Audio)).
		Int("failed_variants", len(record.AudioErrors)).
		Dur("duration", p.now().Sub(start)).
		Msg("Story generation completed successfully")

	return record, nil
}

func (p *StoryProcessor) pipeline(ctx context.Context, req models.StoryRequest, record *models.StoryRecord, run RunOptions) error {
	prefix := path.Join("stories", string(record.Genre), record.StoryID)
	emit := func(stage Stage, detail string) {
		if run.Observer != nil {
			run.Observer(StageEvent{StoryID: record.StoryID, Stage: stage, Detail: detail, At: p.now()})
		}
	}
	emit(StageRequested, record.Title)

	cast := pickCast(p.rng, record.Genre)
	record.Protagonist = cast.Protagonist
	record.Location = cast.Location

	// Step 1: Write the story
	log.Info().Str("story_id", record.StoryID).Msg("Step 1: Generating story text")
	story, err := p.complete(ctx, "story", storytellerSystem, storyPrompt(req.Prompt, record.Title, cast), p.opts.MaxTokens)
	if err != nil {
		return fmt.Errorf("story generation failed: %w", err)
	}
	texts := map[string]string{SourceLanguage: story}
	emit(StageTextGenerated, cast.Protagonist)

	// Step 2: Translate for every other roster language
	log.Info().Str("story_id", record.StoryID).Msg("Step 2: Translating story")
	for _, lang := range p.narrator.Roster().Languages() {
		if lang == SourceLanguage {
			continue
		}
		translated, err := p.complete(ctx, "translate "+lang, translatorSystem, translationPrompt(story, lang), 2*p.opts.MaxTokens)
		if err != nil {
			return fmt.Errorf("translation to %s failed: %w", lang, err)
		}
		texts[lang] = translated
	}
	emit(StageTranslated, fmt.Sprintf("%d languages", len(texts)))

	// Step 3: Summarize
	log.Info().Str("story_id", record.StoryID).Msg("Step 3: Summarizing story")
	summary, err := p.complete(ctx, "summary", editorSystem, summaryPrompt(story, p.opts.KeyPoints), p.opts.MaxTokens)
	if err != nil {
		return fmt.Errorf("summary failed: %w", err)
	}
	record.Summary = summary
	emit(StageSummarized, "")

	record.KeyPoints = illustration.KeyPoints(summary, p.opts.KeyPoints)
	emit(StageKeyPointsExtracted, fmt.Sprintf("%d key points", len(record.KeyPoints)))

	// Step 4: Illustrate
	log.Info().
		Str("story_id", record.StoryID).
		Int("key_points", len(record.KeyPoints)).
		Msg("Step 4: Generating illustrations")
	images, err := p.illustrator.Illustrate(ctx, record.KeyPoints, cast)
	if err != nil {
		return fmt.Errorf("illustration failed: %w", err)
	}
	record.Images, err = p.saveImages(ctx, prefix, images)
	if err != nil {
		return err
	}
	emit(StageImagesGenerated, fmt.Sprintf("%d images", len(record.Images)))

	// Paginate and weave image anchors into every language
	imageKeys := make([]string, len(record.Images))
	for i, img := range record.Images {
		imageKeys[i] = img.Key
	}
	documents := make(map[string]markup.Document, len(texts))
	record.Content = make(map[string]models.LanguageContent, len(texts))
	for lang, text := range texts {
		clean := markup.StripMarkdown(text)
		doc := markup.Weave(markup.Paginate(clean), imageKeys)
		documents[lang] = doc
		record.Content[lang] = models.LanguageContent{
			Text:   clean,
			Pages:  doc.Texts(),
			Markup: doc.Render(),
		}
	}
	emit(StageMarkupWoven, "")

	// Step 5: Narrate every voice variant
	log.Info().Str("story_id", record.StoryID).Msg("Step 5: Synthesizing audio")
	result := p.narrator.FanOut(ctx, prefix, documents)
	if result.Failed() {
		if !run.TolerateVoiceFailures {
			return firstVariantError(p.narrator, result.Errors)
		}
		record.AudioErrors = make(map[string]string, len(result.Errors))
		for key, err := range result.Errors {
			record.AudioErrors[key] = err.Error()
		}
	}
	record.Audio = result.Audio
	emit(StageAudioSynthesized, fmt.Sprintf("%d variants", len(result.Audio)))

	// Step 6: Persist the record last so it only ever describes stored assets
	log.Info().Str("story_id", record.StoryID).Msg("Step 6: Persisting story record")
	record.CreatedAt = p.now().UTC()
	recordKey := path.Join(prefix, RecordName)
	data, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode story record: %w", err)
	}
	if err := p.store.Put(ctx, recordKey, data, "application/json"); err != nil {
		return fmt.Errorf("%w: failed to save story record: %w", models.ErrStorage, err)
	}
	emit(StagePersisted, recordKey)

	if p.index != nil {
		entry := &models.StoryIndexEntry{
			StoryID:   record.StoryID,
			Genre:     record.Genre,
			Title:     record.Title,
			RecordKey: recordKey,
			CreatedAt: record.CreatedAt,
		}
		if err := p.index.Insert(ctx, entry); err != nil {
			log.Error().Err(err).Str("story_id", record.StoryID).Msg("Failed to index story")
		}
	}

	p.publish(ctx, &models.StoryEvent{
		Type:      models.EventStoryPersisted,
		StoryID:   record.StoryID,
		Genre:     record.Genre,
		Title:     record.Title,
		RecordKey: recordKey,
		Timestamp: p.now(),
	})
	return nil
}

func (p *StoryProcessor) complete(ctx context.Context, op, system, user string, maxTokens int) (string, error) {
	var out string
	err := upstream.Call(ctx, p.opts.Upstream, op, func(ctx context.Context) error {
		text, err := p.text.GenerateText(ctx, system, user, maxTokens, p.opts.Temperature)
		if err != nil {
			return err
		}
		if strings.TrimSpace(text) == "" {
			return llm.ErrEmptyResponse
		}
		out = strings.TrimSpace(text)
		return nil
	})
	return out, err
}

func (p *StoryProcessor) saveImages(ctx context.Context, prefix string, images []*llm.Image) ([]models.AssetRef, error) {
	refs := make([]models.AssetRef, 0, len(images))
	for i, img := range images {
		key := path.Join(prefix, "images", fmt.Sprintf("image_%d.png", i+1))
		contentType := img.MimeType
		if contentType == "" {
			contentType = "image/png"
		}
		if err := p.store.Put(ctx, key, img.Data, contentType); err != nil {
			return nil, fmt.Errorf("%w: failed to save image %d: %w", models.ErrStorage, i+1, err)
		}
		refs = append(refs, models.AssetRef{Key: key, URL: p.store.PublicURL(key)})
	}
	return refs, nil
}

func (p *StoryProcessor) publish(ctx context.Context, event *models.StoryEvent) {
	if p.events == nil {
		return
	}
	if err := p.events.PublishStoryEvent(ctx, event); err != nil {
		log.Warn().
			Err(err).
			Str("story_id", event.StoryID).
			Str("type", event.Type).
			Msg("Failed to publish story event")
	}
}

// firstVariantError reports the first failed variant in roster order.
func firstVariantError(n Narrator, errs map[string]error) error {
	for _, v := range n.Roster() {
		if err, ok := errs[v.Key()]; ok {
			return fmt.Errorf("voice %s failed: %w", v.Key(), err)
		}
	}
	for key, err := range errs {
		return fmt.Errorf("voice %s failed: %w", key, err)
	}
	return errors.New("voice synthesis failed")
}
