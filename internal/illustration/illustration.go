// Package illustration picks the key moments of a story and requests one
// illustration for each of them.
package illustration

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/snappy-loop/storyteller/internal/llm"
	"github.com/snappy-loop/storyteller/internal/upstream"
)

// ImageGenerator produces one image for a prompt.
type ImageGenerator interface {
	GenerateImage(ctx context.Context, prompt string) (*llm.Image, error)
}

// Cast is the fixed character profile threaded through every image prompt
// so the illustrations stay consistent with the prose.
type Cast struct {
	Protagonist string
	Location    string
	Genre       string
}

// KeyPoints splits summary on ". " and samples n sentences at an even stride.
// When the summary has fewer than n sentences all of them are returned.
func KeyPoints(summary string, n int) []string {
	var sentences []string
	for _, s := range strings.Split(summary, ". ") {
		if s = strings.TrimSpace(s); s != "" {
			sentences = append(sentences, s)
		}
	}
	if n <= 0 {
		return nil
	}
	if len(sentences) < n {
		return sentences
	}
	stride := len(sentences) / n
	points := make([]string, 0, n)
	for i := 0; i < n; i++ {
		points = append(points, sentences[i*stride])
	}
	return points
}

// Prompt builds the image prompt for one key point.
func Prompt(keyPoint string, cast Cast) string {
	var b strings.Builder
	b.WriteString("Storybook illustration")
	if cast.Genre != "" {
		b.WriteString(" for a ")
		b.WriteString(cast.Genre)
		b.WriteString(" story")
	}
	b.WriteString(". Scene: ")
	b.WriteString(strings.TrimSuffix(keyPoint, "."))
	b.WriteString(".")
	if cast.Protagonist != "" {
		b.WriteString(" The main character is ")
		b.WriteString(cast.Protagonist)
		b.WriteString(", drawn the same way in every picture.")
	}
	if cast.Location != "" {
		b.WriteString(" Setting: ")
		b.WriteString(cast.Location)
		b.WriteString(".")
	}
	b.WriteString(" Warm, detailed, child-friendly, no text in the image.")
	return b.String()
}

// Illustrator turns key points into images.
type Illustrator struct {
	images ImageGenerator
	policy upstream.Policy
}

// NewIllustrator creates an Illustrator.
func NewIllustrator(images ImageGenerator, policy upstream.Policy) *Illustrator {
	return &Illustrator{images: images, policy: policy}
}

// Illustrate requests one image per key point, in order. The first failure aborts.
func (il *Illustrator) Illustrate(ctx context.Context, keyPoints []string, cast Cast) ([]*llm.Image, error) {
	images := make([]*llm.Image, 0, len(keyPoints))
	for i, point := range keyPoints {
		prompt := Prompt(point, cast)
		var img *llm.Image
		err := upstream.Call(ctx, il.policy, "image", func(ctx context.Context) error {
			var err error
			img, err = il.images.GenerateImage(ctx, prompt)
			if err == nil && (img == nil || len(img.Data) == 0) {
				err = llm.ErrEmptyResponse
			}
			return err
		})
		if err != nil {
			return nil, fmt.Errorf("illustration %d: %w", i+1, err)
		}
		log.Debug().
			Int("index", i+1).
			Int("image_size_bytes", len(img.Data)).
			Str("mime_type", img.MimeType).
			Msg("Illustration generated")
		images = append(images, img)
	}
	return images, nil
}
