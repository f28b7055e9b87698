package llm

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"path"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"github.com/rs/zerolog/log"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/googleai"
	"github.com/tmc/langchaingo/llms/openai"
	"google.golang.org/api/option"
	unifiedgenai "google.golang.org/genai"
)

// maxResponseLogBytes is the max length of a model response body to log in full (to avoid huge logs).
const maxResponseLogBytes = 8192

// httpClientForEndpoint returns an http.Client that rewrites request URLs to the given base endpoint (e.g. http://host.docker.internal:31300/gemini).
func httpClientForEndpoint(baseEndpoint string) *http.Client {
	base, err := url.Parse(baseEndpoint)
	if err != nil {
		log.Warn().Err(err).Str("endpoint", baseEndpoint).Msg("Invalid GEMINI_API_ENDPOINT, using default")
		return nil
	}
	base.Path = strings.TrimSuffix(base.Path, "/")
	return &http.Client{
		Transport: &endpointRoundTripper{base: base, next: http.DefaultTransport},
	}
}

// endpointRoundTripper rewrites request URLs to a custom base (scheme, host, path prefix).
type endpointRoundTripper struct {
	base *url.URL
	next http.RoundTripper
}

func (e *endpointRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	req2 := req.Clone(req.Context())
	req2.URL.Scheme = e.base.Scheme
	req2.URL.Host = e.base.Host
	req2.URL.Path = path.Join(e.base.Path, strings.TrimPrefix(req.URL.Path, "/"))
	if req.URL.RawQuery != "" {
		req2.URL.RawQuery = req.URL.RawQuery
	}
	return e.next.RoundTrip(req2)
}

// logModelResponse logs model response text, truncating if over maxResponseLogBytes.
func logModelResponse(caller, raw string) {
	if len(raw) <= maxResponseLogBytes {
		log.Debug().Str("caller", caller).Str("model_response", raw).Msg("Model response")
		return
	}
	log.Debug().
		Str("caller", caller).
		Str("model_response", raw[:maxResponseLogBytes]+"... [truncated]").
		Int("model_response_len", len(raw)).
		Msg("Model response")
}

// Image is a generated illustration
type Image struct {
	Data     []byte
	MimeType string // e.g. "image/png", "image/jpeg"
	Model    string
}

// SpeechRequest is one call to a speech backend
type SpeechRequest struct {
	Markup       string  // <speak> document, bounded by the envelope size
	LanguageCode string  // BCP-47, e.g. en-US
	SpeakerID    string  // backend voice name, e.g. en-US-Wavenet-D
	Gender       string  // MALE, FEMALE, NEUTRAL
	SpeakingRate float64 // 1.0 is normal speed
}

// ClientConfig selects the text provider and carries credentials for the Gemini-backed capabilities.
type ClientConfig struct {
	Provider      string // googleai, openai
	GeminiAPIKey  string
	GeminiBaseURL string // optional Gemini API base override
	TextModel     string
	ImageModel    string
	TTSModel      string
	OpenAIAPIKey  string
	OpenAIModel   string
	OpenAIBaseURL string
}

// Client wraps the language-model providers.
// Text completion goes through langchaingo; images and Gemini speech through the Google SDKs.
type Client struct {
	provider      string
	textModel     string
	imageModel    string
	ttsModel      string
	llm           llms.Model
	genaiClient   *genai.Client        // image modality
	unifiedClient *unifiedgenai.Client // speech modality
}

// NewClient creates a new LLM client. Capabilities whose credentials are missing stay nil
// and report an error when called.
func NewClient(ctx context.Context, cfg ClientConfig) (*Client, error) {
	c := &Client{
		provider:   cfg.Provider,
		imageModel: cfg.ImageModel,
		ttsModel:   cfg.TTSModel,
	}

	var err error
	switch cfg.Provider {
	case "openai":
		opts := []openai.Option{openai.WithToken(cfg.OpenAIAPIKey), openai.WithModel(cfg.OpenAIModel)}
		if cfg.OpenAIBaseURL != "" {
			opts = append(opts, openai.WithBaseURL(cfg.OpenAIBaseURL))
		}
		c.textModel = cfg.OpenAIModel
		c.llm, err = openai.New(opts...)
		if err != nil {
			return nil, fmt.Errorf("init openai model: %w", err)
		}
	case "googleai", "":
		opts := []googleai.Option{googleai.WithAPIKey(cfg.GeminiAPIKey), googleai.WithDefaultModel(cfg.TextModel)}
		if cfg.GeminiBaseURL != "" {
			if hc := httpClientForEndpoint(cfg.GeminiBaseURL); hc != nil {
				opts = append(opts, googleai.WithHTTPClient(hc))
			}
		}
		c.textModel = cfg.TextModel
		c.llm, err = googleai.New(ctx, opts...)
		if err != nil {
			return nil, fmt.Errorf("init googleai model: %w", err)
		}
	default:
		return nil, fmt.Errorf("unknown LLM provider %q", cfg.Provider)
	}

	if cfg.GeminiAPIKey != "" {
		genaiOpts := []option.ClientOption{option.WithAPIKey(cfg.GeminiAPIKey)}
		if cfg.GeminiBaseURL != "" {
			genaiOpts = append(genaiOpts, option.WithEndpoint(cfg.GeminiBaseURL))
		}
		c.genaiClient, err = genai.NewClient(ctx, genaiOpts...)
		if err != nil {
			log.Error().Err(err).Msg("Failed to initialize genai client for image generation")
		}

		unifiedCfg := &unifiedgenai.ClientConfig{APIKey: cfg.GeminiAPIKey, Backend: unifiedgenai.BackendGeminiAPI}
		if cfg.GeminiBaseURL != "" {
			unifiedCfg.HTTPOptions = unifiedgenai.HTTPOptions{BaseURL: cfg.GeminiBaseURL}
		}
		c.unifiedClient, err = unifiedgenai.NewClient(ctx, unifiedCfg)
		if err != nil {
			log.Error().Err(err).Msg("Failed to initialize unified genai client for TTS")
		}
	}

	log.Info().
		Str("provider", c.provider).
		Str("model_text", c.textModel).
		Str("model_image", c.imageModel).
		Str("model_tts", c.ttsModel).
		Bool("genai_client", c.genaiClient != nil).
		Bool("unified_tts", c.unifiedClient != nil).
		Msg("LLM client initialized")

	return c, nil
}

// Close releases the image client.
func (c *Client) Close() error {
	if c.genaiClient != nil {
		return c.genaiClient.Close()
	}
	return nil
}
