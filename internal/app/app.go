// Package app builds the storyteller object graph from configuration.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"

	"github.com/gorilla/mux"
	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/snappy-loop/storyteller/internal/config"
	"github.com/snappy-loop/storyteller/internal/database"
	"github.com/snappy-loop/storyteller/internal/handlers"
	"github.com/snappy-loop/storyteller/internal/illustration"
	"github.com/snappy-loop/storyteller/internal/kafka"
	"github.com/snappy-loop/storyteller/internal/llm"
	"github.com/snappy-loop/storyteller/internal/mcpserver"
	"github.com/snappy-loop/storyteller/internal/processor"
	"github.com/snappy-loop/storyteller/internal/services"
	"github.com/snappy-loop/storyteller/internal/storage"
	"github.com/snappy-loop/storyteller/internal/upstream"
	"github.com/snappy-loop/storyteller/internal/voice"
	"github.com/snappy-loop/storyteller/migrations"
)

// App holds the wired services. Optional collaborators (database, Kafka) are nil
// when not configured.
type App struct {
	Config   *config.Config
	Store    storage.ObjectStore
	Stories  *processor.StoryProcessor
	Batch    *processor.BatchProcessor
	Catalog  *services.CatalogService
	Requests *kafka.Producer

	closers []func() error
}

// New connects every backend named by cfg.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	a := &App{Config: cfg}
	if err := a.init(ctx); err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

func (a *App) init(ctx context.Context) error {
	cfg := a.Config
	if err := checkSpeechRoster(cfg); err != nil {
		return err
	}

	store, signer, err := a.openStorage(ctx)
	if err != nil {
		return err
	}
	a.Store = store

	roster, err := voice.LoadRoster(cfg.VoiceRosterFile)
	if err != nil {
		return err
	}

	llmClient, err := llm.NewClient(ctx, llm.ClientConfig{
		Provider:      cfg.LLMProvider,
		GeminiAPIKey:  cfg.GeminiAPIKey,
		GeminiBaseURL: cfg.GeminiAPIEndpoint,
		TextModel:     cfg.GeminiModelText,
		ImageModel:    cfg.GeminiModelImage,
		TTSModel:      cfg.GeminiModelTTS,
		OpenAIAPIKey:  cfg.OpenAIAPIKey,
		OpenAIModel:   cfg.OpenAIModel,
		OpenAIBaseURL: cfg.OpenAIBaseURL,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize LLM client: %w", err)
	}
	a.closers = append(a.closers, llmClient.Close)

	policy := upstreamPolicy(cfg)

	var images illustration.ImageGenerator = llmClient
	if cfg.ImageProvider == "ark" {
		images = llm.NewArkImageClient(cfg.ArkBaseURL, cfg.ArkAPIKey, cfg.ArkModel, cfg.ArkImageSize, cfg.UpstreamTimeout)
	}

	speech, err := a.openSpeech(ctx, llmClient)
	if err != nil {
		return err
	}

	narrator := voice.NewSynthesizer(speech, store, roster, voice.Options{
		MaxEnvelopeBytes: cfg.MaxEnvelopeBytes,
		SpeakingRate:     cfg.SpeakingRate,
		Concurrency:      cfg.VoiceConcurrency,
		Upstream:         policy,
	})

	a.Stories = processor.NewStoryProcessor(llmClient, illustration.NewIllustrator(images, policy), narrator, store, processor.Options{
		KeyPoints:   cfg.KeyPoints,
		MaxTokens:   cfg.StoryMaxTokens,
		Temperature: cfg.StoryTemperature,
		Upstream:    policy,
	})

	var urlSigner services.URLSigner
	if signer != nil && cfg.SignedURLs {
		urlSigner = signer
	}
	a.Catalog = services.NewCatalogService(store, urlSigner, cfg.SignedURLTTL)

	if cfg.DatabaseURL != "" {
		db, err := database.Connect(ctx, cfg.DatabaseURL)
		if err != nil {
			return err
		}
		a.closers = append(a.closers, db.Close)
		if err := migrations.Run(db.DB); err != nil {
			return fmt.Errorf("failed to run migrations: %w", err)
		}
		index := database.NewStoryIndexRepository(db)
		a.Stories.WithIndex(index)
		a.Catalog.WithIndex(index)
	}

	if len(cfg.KafkaBrokers) > 0 {
		events := kafka.NewProducer(cfg.KafkaBrokers, cfg.KafkaTopicEvents)
		a.closers = append(a.closers, events.Close)
		a.Stories.WithEvents(events)

		a.Requests = kafka.NewProducer(cfg.KafkaBrokers, cfg.KafkaTopicRequests)
		a.closers = append(a.closers, a.Requests.Close)
	}

	a.Batch, err = processor.NewBatchProcessor(a.Stories, cfg.BatchWorkers)
	if err != nil {
		return err
	}
	a.closers = append(a.closers, func() error { a.Batch.Release(); return nil })

	log.Info().
		Str("storage", cfg.StorageBackend).
		Str("llm", cfg.LLMProvider).
		Str("images", cfg.ImageProvider).
		Str("speech", cfg.SpeechBackend).
		Int("voices", len(roster)).
		Bool("story_index", cfg.DatabaseURL != "").
		Bool("kafka", len(cfg.KafkaBrokers) > 0).
		Msg("Storyteller initialized")

	return nil
}

// upstreamPolicy bounds every provider call. Its backoff is independent of the
// Kafka redelivery settings.
func upstreamPolicy(cfg *config.Config) upstream.Policy {
	return upstream.Policy{
		Timeout:     cfg.UpstreamTimeout,
		MaxAttempts: cfg.UpstreamMaxAttempts,
		BaseDelay:   cfg.UpstreamRetryDelay,
	}
}

// checkSpeechRoster rejects the Gemini speech backend with the built-in roster, whose
// speaker ids are Cloud Text-to-Speech voice names Gemini does not know.
func checkSpeechRoster(cfg *config.Config) error {
	if cfg.SpeechBackend == "gemini" && cfg.VoiceRosterFile == "" {
		return fmt.Errorf("SPEECH_BACKEND=gemini needs VOICE_ROSTER_FILE with Gemini voice names; the built-in roster only has Cloud Text-to-Speech voices")
	}
	return nil
}

func (a *App) openStorage(ctx context.Context) (storage.ObjectStore, storage.URLSigner, error) {
	cfg := a.Config
	proxyURL := cfg.AssetBaseURL + "/assets"

	switch cfg.StorageBackend {
	case "s3", "":
		endpoint := cfg.S3Endpoint
		if endpoint != "" && !strings.Contains(endpoint, "://") {
			scheme := "http://"
			if cfg.S3UseSSL {
				scheme = "https://"
			}
			endpoint = scheme + endpoint
		}
		publicURL := cfg.S3PublicURL
		if publicURL == "" {
			publicURL = proxyURL
		}
		client, err := storage.NewS3Client(ctx, endpoint, cfg.S3Region, cfg.S3Bucket, cfg.S3AccessKey, cfg.S3SecretKey, publicURL)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to initialize storage client: %w", err)
		}
		return client, client, nil
	case "nats":
		nc, err := nats.Connect(cfg.NatsURL, nats.Name("storyteller"))
		if err != nil {
			return nil, nil, fmt.Errorf("failed to connect to NATS: %w", err)
		}
		a.closers = append(a.closers, func() error { nc.Close(); return nil })
		js, err := nc.JetStream()
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open JetStream: %w", err)
		}
		store, err := storage.NewNatsStore(js, cfg.NatsBucket, proxyURL)
		if err != nil {
			return nil, nil, err
		}
		return store, nil, nil
	case "memory":
		log.Warn().Msg("Using in-memory storage; stories are lost on restart")
		return storage.NewMemoryStore(proxyURL), nil, nil
	default:
		return nil, nil, fmt.Errorf("unknown storage backend %q", cfg.StorageBackend)
	}
}

func (a *App) openSpeech(ctx context.Context, llmClient *llm.Client) (voice.SpeechSynthesizer, error) {
	switch a.Config.SpeechBackend {
	case "google", "":
		speech, err := llm.NewCloudSpeechClient(ctx, a.Config.GoogleTTSAPIKey)
		if err != nil {
			return nil, err
		}
		if a.Config.MaxEnvelopeBytes > llm.CloudSpeechMaxInputBytes {
			log.Warn().
				Int("max_envelope_bytes", a.Config.MaxEnvelopeBytes).
				Int("backend_limit", llm.CloudSpeechMaxInputBytes).
				Msg("Envelope limit exceeds the speech backend limit")
		}
		return speech, nil
	case "gemini":
		return llmClient.GeminiSpeech()
	default:
		return nil, fmt.Errorf("unknown speech backend %q", a.Config.SpeechBackend)
	}
}

// Router returns the HTTP routes of the API.
func (a *App) Router() *mux.Router {
	var requests handlers.RequestPublisher
	if a.Requests != nil {
		requests = a.Requests
	}
	h := handlers.NewHandler(a.Stories, a.Batch, a.Catalog, a.Store, requests)

	r := mux.NewRouter()
	h.Register(r)

	mcp := mcpserver.NewServer(a.Catalog, a.Stories)
	r.Handle("/mcp", mcpserver.TokenMiddleware(a.Config.MCPToken)(mcp.Handler())).Methods("POST")
	r.Use(requestLogger)
	return r
}

// Close releases every backend in reverse order of creation.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		log.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Msg("HTTP request")
		next.ServeHTTP(w, r)
	})
}

// ConfigureLogging installs the console logger at the named level (info when unparsable).
func ConfigureLogging(logLevel string) {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	level, err := zerolog.ParseLevel(logLevel)
	if err != nil || logLevel == "" {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
}
