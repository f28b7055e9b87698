package llm

import (
	"context"
	"encoding/base64"
	"fmt"

	"github.com/rs/zerolog/log"
	"google.golang.org/api/option"
	texttospeech "google.golang.org/api/texttospeech/v1"
)

// CloudSpeechMaxInputBytes is the Cloud Text-to-Speech ceiling for one SSML input.
const CloudSpeechMaxInputBytes = 5000

// CloudSpeechClient synthesizes SSML with Google Cloud Text-to-Speech and returns MP3 bytes.
type CloudSpeechClient struct {
	svc *texttospeech.Service
}

// NewCloudSpeechClient creates the client. Without an API key, application default credentials are used.
func NewCloudSpeechClient(ctx context.Context, apiKey string, opts ...option.ClientOption) (*CloudSpeechClient, error) {
	var all []option.ClientOption
	if apiKey != "" {
		all = append(all, option.WithAPIKey(apiKey))
	}
	all = append(all, opts...)
	svc, err := texttospeech.NewService(ctx, all...)
	if err != nil {
		return nil, fmt.Errorf("init text-to-speech: %w", err)
	}
	return &CloudSpeechClient{svc: svc}, nil
}

// SynthesizeSpeech renders one SSML envelope.
func (c *CloudSpeechClient) SynthesizeSpeech(ctx context.Context, req SpeechRequest) ([]byte, error) {
	if len(req.Markup) > CloudSpeechMaxInputBytes {
		return nil, fmt.Errorf("ssml input of %d bytes exceeds the %d byte limit", len(req.Markup), CloudSpeechMaxInputBytes)
	}

	resp, err := c.svc.Text.Synthesize(&texttospeech.SynthesizeSpeechRequest{
		Input: &texttospeech.SynthesisInput{Ssml: req.Markup},
		Voice: &texttospeech.VoiceSelectionParams{
			LanguageCode: req.LanguageCode,
			Name:         req.SpeakerID,
			SsmlGender:   req.Gender,
		},
		AudioConfig: &texttospeech.AudioConfig{
			AudioEncoding: "MP3",
			SpeakingRate:  req.SpeakingRate,
		},
	}).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("text-to-speech %s: %w", req.SpeakerID, err)
	}

	audio, err := base64.StdEncoding.DecodeString(resp.AudioContent)
	if err != nil {
		return nil, fmt.Errorf("decode audio content: %w", err)
	}
	if len(audio) == 0 {
		return nil, fmt.Errorf("text-to-speech %s: %w", req.SpeakerID, ErrEmptyResponse)
	}

	log.Debug().
		Str("voice", req.SpeakerID).
		Int("ssml_bytes", len(req.Markup)).
		Int("audio_size_bytes", len(audio)).
		Msg("Speech chunk synthesized")
	return audio, nil
}
