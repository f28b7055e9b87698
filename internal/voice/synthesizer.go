package voice

import (
	"context"
	"fmt"
	"path"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/snappy-loop/storyteller/internal/llm"
	"github.com/snappy-loop/storyteller/internal/markup"
	"github.com/snappy-loop/storyteller/internal/models"
	"github.com/snappy-loop/storyteller/internal/upstream"
	"golang.org/x/sync/errgroup"
)

// SpeechSynthesizer renders one speech envelope to audio bytes.
type SpeechSynthesizer interface {
	SynthesizeSpeech(ctx context.Context, req llm.SpeechRequest) ([]byte, error)
}

// Container is implemented by synthesizers whose chunks are raw samples: the
// concatenated chunks of a variant are wrapped once before they are stored.
type Container interface {
	ContentType() string
	Extension() string
	Wrap(raw []byte) []byte
}

// AssetWriter is the storage the synthesizer writes to.
type AssetWriter interface {
	Put(ctx context.Context, key string, data []byte, contentType string) error
	PublicURL(key string) string
}

// Options tune the fan-out.
type Options struct {
	MaxEnvelopeBytes int
	SpeakingRate     float64
	Concurrency      int // variants synthesized at once; 1 is sequential
	Upstream         upstream.Policy
}

// Synthesizer narrates a story once per roster variant.
type Synthesizer struct {
	speech SpeechSynthesizer
	store  AssetWriter
	roster Roster
	opts   Options
}

// NewSynthesizer creates a fan-out synthesizer.
func NewSynthesizer(speech SpeechSynthesizer, store AssetWriter, roster Roster, opts Options) *Synthesizer {
	if opts.MaxEnvelopeBytes <= 0 {
		opts.MaxEnvelopeBytes = 5000
	}
	if opts.SpeakingRate <= 0 {
		opts.SpeakingRate = 0.9
	}
	if opts.Concurrency < 1 {
		opts.Concurrency = 1
	}
	return &Synthesizer{speech: speech, store: store, roster: roster, opts: opts}
}

// Roster returns the variants the synthesizer narrates with.
func (s *Synthesizer) Roster() Roster {
	return s.roster
}

// Result holds one entry per variant key: either an asset or an error.
type Result struct {
	Audio  map[string]models.AssetRef
	Errors map[string]error
}

// Failed reports whether any variant failed.
func (r Result) Failed() bool {
	return len(r.Errors) > 0
}

// FanOut synthesizes every variant. keyPrefix is the story's storage prefix
// (stories/{genre}/{id}); documents maps language subtags to the woven markup.
// A failing variant never affects the others.
func (s *Synthesizer) FanOut(ctx context.Context, keyPrefix string, documents map[string]markup.Document) Result {
	result := Result{
		Audio:  make(map[string]models.AssetRef, len(s.roster)),
		Errors: make(map[string]error),
	}
	var mu sync.Mutex

	var g errgroup.Group
	g.SetLimit(s.opts.Concurrency)
	for _, variant := range s.roster {
		g.Go(func() error {
			start := time.Now()
			ref, err := s.synthesizeVariant(ctx, keyPrefix, documents, variant)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				log.Error().
					Err(err).
					Str("variant", variant.Key()).
					Str("voice", variant.SpeakerID).
					Msg("Voice variant failed")
				result.Errors[variant.Key()] = err
				return nil
			}
			log.Info().
				Str("variant", variant.Key()).
				Str("key", ref.Key).
				Dur("duration", time.Since(start)).
				Msg("Voice variant stored")
			result.Audio[variant.Key()] = ref
			return nil
		})
	}
	_ = g.Wait()
	return result
}

func (s *Synthesizer) synthesizeVariant(ctx context.Context, keyPrefix string, documents map[string]markup.Document, v Variant) (models.AssetRef, error) {
	doc, ok := documents[v.Language()]
	if !ok {
		return models.AssetRef{}, fmt.Errorf("%w: no %s text for voice %s", models.ErrValidation, LanguageName(v.Language()), v.SpeakerID)
	}

	var audio []byte
	envelopes := 0
	for envelope := range markup.Pack(doc, s.opts.MaxEnvelopeBytes) {
		envelopes++
		req := llm.SpeechRequest{
			Markup:       envelope.Markup(),
			LanguageCode: v.LanguageCode,
			SpeakerID:    v.SpeakerID,
			Gender:       v.Gender,
			SpeakingRate: s.opts.SpeakingRate,
		}
		var chunk []byte
		err := upstream.Call(ctx, s.opts.Upstream, "speech "+v.SpeakerID, func(ctx context.Context) error {
			var err error
			chunk, err = s.speech.SynthesizeSpeech(ctx, req)
			return err
		})
		if err != nil {
			return models.AssetRef{}, fmt.Errorf("envelope %d: %w", envelopes, err)
		}
		audio = append(audio, chunk...)
	}

	contentType, ext := "audio/mpeg", "mp3"
	if c, ok := s.speech.(Container); ok {
		audio = c.Wrap(audio)
		contentType, ext = c.ContentType(), c.Extension()
	}

	key := path.Join(keyPrefix, v.Language(), v.AgeLabel+"."+ext)
	if err := s.store.Put(ctx, key, audio, contentType); err != nil {
		return models.AssetRef{}, fmt.Errorf("%w: %w", models.ErrStorage, err)
	}

	log.Debug().
		Str("variant", v.Key()).
		Int("envelopes", envelopes).
		Int("audio_size_bytes", len(audio)).
		Msg("Voice variant synthesized")

	return models.AssetRef{Key: key, URL: s.store.PublicURL(key)}, nil
}
