package llm

import (
	"context"
	"fmt"
	"reflect"

	"github.com/google/generative-ai-go/genai"
	"github.com/rs/zerolog/log"
)

// GenerateImage generates an image from a prompt using Gemini with strict IMAGE modality.
func (c *Client) GenerateImage(ctx context.Context, prompt string) (*Image, error) {
	if c.genaiClient == nil {
		return nil, fmt.Errorf("image model not configured")
	}

	log.Debug().
		Str("prompt", prompt[:min(50, len(prompt))]+"...").
		Msg("Generating image")

	model := c.genaiClient.GenerativeModel(c.imageModel)
	setResponseModality(model, []string{"IMAGE"})

	resp, err := model.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return nil, fmt.Errorf("gemini image: %w", err)
	}

	for i, cand := range resp.Candidates {
		if cand.Content == nil {
			continue
		}
		for j, part := range cand.Content.Parts {
			blob, ok := part.(genai.Blob)
			if !ok || len(blob.Data) == 0 {
				continue
			}
			log.Info().
				Str("caller", "GenerateImage").
				Int("image_size_bytes", len(blob.Data)).
				Str("mime_type", blob.MIMEType).
				Int("candidate", i).
				Int("part", j).
				Msg("Gemini image blob received")
			mimeType := blob.MIMEType
			if mimeType == "" {
				mimeType = "image/png"
			}
			return &Image{Data: blob.Data, MimeType: mimeType, Model: c.imageModel}, nil
		}
	}

	log.Warn().
		Str("model", c.imageModel).
		Int("candidates", len(resp.Candidates)).
		Msg("No image blob in Gemini response")
	return nil, fmt.Errorf("no image blob in response: %w", ErrEmptyResponse)
}

// setResponseModality sets model.ResponseModality when the genai SDK exposes it.
// Uses reflection so it no-ops on older SDKs that don't have the field.
func setResponseModality(model *genai.GenerativeModel, modalities []string) {
	v := reflect.ValueOf(model).Elem()
	f := v.FieldByName("ResponseModality")
	if !f.IsValid() || !f.CanSet() {
		log.Debug().Msg("ResponseModality not available on GenerativeModel")
		return
	}
	if f.Kind() == reflect.Slice && f.Type().Elem().Kind() == reflect.String {
		f.Set(reflect.ValueOf(modalities))
	}
}
