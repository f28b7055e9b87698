package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/tmc/langchaingo/llms"
)

// ErrEmptyResponse is returned when a provider answers without usable content.
var ErrEmptyResponse = errors.New("empty model response")

// GenerateText runs one system+user chat completion and returns the trimmed answer.
func (c *Client) GenerateText(ctx context.Context, system, user string, maxTokens int, temperature float64) (string, error) {
	if c.llm == nil {
		return "", fmt.Errorf("text model not configured")
	}

	log.Debug().
		Str("model", c.textModel).
		Int("prompt_length", len(user)).
		Int("max_tokens", maxTokens).
		Msg("Generating text")

	messages := []llms.MessageContent{
		{Role: llms.ChatMessageTypeSystem, Parts: []llms.ContentPart{llms.TextContent{Text: system}}},
		{Role: llms.ChatMessageTypeHuman, Parts: []llms.ContentPart{llms.TextContent{Text: user}}},
	}
	opts := []llms.CallOption{
		llms.WithTemperature(temperature),
	}
	if maxTokens > 0 {
		opts = append(opts, llms.WithMaxTokens(maxTokens))
	}

	resp, err := c.llm.GenerateContent(ctx, messages, opts...)
	if err != nil {
		return "", fmt.Errorf("%s completion: %w", c.provider, err)
	}
	if len(resp.Choices) == 0 {
		return "", ErrEmptyResponse
	}

	logModelResponse("GenerateText", resp.Choices[0].Content)
	text := strings.TrimSpace(resp.Choices[0].Content)
	if text == "" {
		return "", ErrEmptyResponse
	}
	return text, nil
}
