package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds application configuration
type Config struct {
	// Server
	HTTPAddr string
	LogLevel string
	Timezone string
	MCPToken string // bearer token for /mcp; empty disables the check

	// Database (optional story index; bucket scan is used when empty)
	DatabaseURL string

	// Kafka (optional async generation and story events)
	KafkaBrokers        []string
	KafkaConsumerGroup  string
	KafkaTopicRequests  string
	KafkaTopicEvents    string
	KafkaMaxRetries     int
	KafkaRetryBaseDelay time.Duration

	// Storage
	StorageBackend string // s3, nats, memory
	AssetBaseURL   string // public base for stores without native public URLs
	SignedURLs     bool
	SignedURLTTL   time.Duration

	// S3
	S3Endpoint  string
	S3Region    string
	S3Bucket    string
	S3AccessKey string
	S3SecretKey string
	S3UseSSL    bool
	S3PublicURL string

	// NATS JetStream object store
	NatsURL    string
	NatsBucket string

	// Text generation
	LLMProvider       string // googleai, openai
	GeminiAPIKey      string
	GeminiAPIEndpoint string // if set, overrides default Gemini API base URL
	GeminiModelText   string
	GeminiModelImage  string
	GeminiModelTTS    string
	OpenAIAPIKey      string
	OpenAIModel       string
	OpenAIBaseURL     string

	// Image generation
	ImageProvider string // gemini, ark
	ArkAPIKey     string
	ArkBaseURL    string
	ArkModel      string
	ArkImageSize  string

	// Speech synthesis
	SpeechBackend   string // google, gemini
	GoogleTTSAPIKey string
	VoiceRosterFile string
	SpeakingRate    float64

	// Pipeline
	MaxEnvelopeBytes    int
	KeyPoints           int
	StoryMaxTokens      int
	StoryTemperature    float64
	UpstreamTimeout     time.Duration
	UpstreamMaxAttempts int
	UpstreamRetryDelay  time.Duration // backoff before the second attempt, doubled afterwards
	VoiceConcurrency    int
	BatchWorkers        int
}

// Load loads configuration from environment variables
func Load() *Config {
	return &Config{
		HTTPAddr: getEnv("HTTP_ADDR", ":8080"),
		LogLevel: getEnv("LOG_LEVEL", "info"),
		Timezone: getEnv("TZ", "UTC"),
		MCPToken: getEnv("MCP_TOKEN", ""),

		DatabaseURL: getEnv("DATABASE_URL", ""),

		KafkaBrokers:        getEnvList("KAFKA_BROKERS", nil),
		KafkaConsumerGroup:  getEnv("KAFKA_CONSUMER_GROUP", "storyteller-worker"),
		KafkaTopicRequests:  getEnv("KAFKA_TOPIC_REQUESTS", "storyteller.requests.v1"),
		KafkaTopicEvents:    getEnv("KAFKA_TOPIC_EVENTS", "storyteller.events.v1"),
		KafkaMaxRetries:     clampMin(getEnvInt("KAFKA_MAX_RETRIES", 1), 1),
		KafkaRetryBaseDelay: getEnvDuration("KAFKA_RETRY_BASE_DELAY", 2*time.Second),

		StorageBackend: strings.ToLower(getEnv("STORAGE_BACKEND", "s3")),
		AssetBaseURL:   strings.TrimRight(getEnv("ASSET_BASE_URL", "http://localhost:8080"), "/"),
		SignedURLs:     getEnvBool("SIGNED_URLS", true),
		SignedURLTTL:   getEnvDuration("SIGNED_URL_TTL", time.Hour),

		S3Endpoint:  getEnv("S3_ENDPOINT", "http://localhost:9000"),
		S3Region:    getEnv("S3_REGION", "us-east-1"),
		S3Bucket:    getEnv("S3_BUCKET", "storyteller-assets"),
		S3AccessKey: getEnv("S3_ACCESS_KEY", ""),
		S3SecretKey: getEnv("S3_SECRET_KEY", ""),
		S3UseSSL:    getEnvBool("S3_USE_SSL", false),
		S3PublicURL: getEnv("S3_PUBLIC_URL", ""),

		NatsURL:    getEnv("NATS_URL", "nats://localhost:4222"),
		NatsBucket: getEnv("NATS_BUCKET", "storyteller-assets"),

		LLMProvider:       strings.ToLower(getEnv("LLM_PROVIDER", "googleai")),
		GeminiAPIKey:      getEnv("GEMINI_API_KEY", ""),
		GeminiAPIEndpoint: getEnv("GEMINI_API_ENDPOINT", ""),
		GeminiModelText:   getEnv("GEMINI_MODEL_TEXT", "gemini-2.5-flash"),
		GeminiModelImage:  getEnv("GEMINI_MODEL_IMAGE", "gemini-2.5-flash-image-preview"),
		GeminiModelTTS:    getEnv("GEMINI_MODEL_TTS", "gemini-2.5-flash-preview-tts"),
		OpenAIAPIKey:      getEnv("OPENAI_API_KEY", ""),
		OpenAIModel:       getEnv("OPENAI_MODEL", "gpt-4o"),
		OpenAIBaseURL:     getEnv("OPENAI_BASE_URL", ""),

		ImageProvider: strings.ToLower(getEnv("IMAGE_PROVIDER", "gemini")),
		ArkAPIKey:     getEnv("ARK_API_KEY", ""),
		ArkBaseURL:    getEnv("ARK_BASE_URL", "https://ark.cn-beijing.volces.com"),
		ArkModel:      getEnv("ARK_MODEL", "doubao-seedream-4.0"),
		ArkImageSize:  getEnv("ARK_IMAGE_SIZE", "1024x1024"),

		SpeechBackend:   strings.ToLower(getEnv("SPEECH_BACKEND", "google")),
		GoogleTTSAPIKey: getEnv("GOOGLE_TTS_API_KEY", ""),
		VoiceRosterFile: getEnv("VOICE_ROSTER_FILE", ""),
		SpeakingRate:    getEnvFloat("SPEAKING_RATE", 0.9),

		MaxEnvelopeBytes:    clampMin(getEnvInt("MAX_ENVELOPE_BYTES", 5000), 64),
		KeyPoints:           clampMin(getEnvInt("KEY_POINTS", 3), 1),
		StoryMaxTokens:      clampMin(getEnvInt("STORY_MAX_TOKENS", 500), 1),
		StoryTemperature:    getEnvFloat("STORY_TEMPERATURE", 0.7),
		UpstreamTimeout:     getEnvDuration("UPSTREAM_TIMEOUT", 2*time.Minute),
		UpstreamMaxAttempts: clampMin(getEnvInt("UPSTREAM_MAX_ATTEMPTS", 1), 1),
		UpstreamRetryDelay:  getEnvDuration("UPSTREAM_RETRY_BASE_DELAY", 2*time.Second),
		VoiceConcurrency:    clampMin(getEnvInt("VOICE_CONCURRENCY", 1), 1),
		BatchWorkers:        clampMin(getEnvInt("BATCH_WORKERS", 4), 1),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

// getEnvList splits a comma-separated value, dropping empty items.
func getEnvList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

// clampMin returns v if v >= min, otherwise min. Used to ensure config values are in valid range.
func clampMin(v, min int) int {
	if v < min {
		return min
	}
	return v
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
