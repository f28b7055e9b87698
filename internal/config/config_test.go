package config

import (
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	cfg := Load()

	if cfg.MaxEnvelopeBytes != 5000 {
		t.Errorf("MaxEnvelopeBytes = %d, want 5000", cfg.MaxEnvelopeBytes)
	}
	if cfg.SpeakingRate != 0.9 {
		t.Errorf("SpeakingRate = %v, want 0.9", cfg.SpeakingRate)
	}
	if cfg.KeyPoints != 3 {
		t.Errorf("KeyPoints = %d, want 3", cfg.KeyPoints)
	}
	if cfg.SignedURLTTL != time.Hour {
		t.Errorf("SignedURLTTL = %v, want 1h", cfg.SignedURLTTL)
	}
	if cfg.UpstreamMaxAttempts != 1 {
		t.Errorf("UpstreamMaxAttempts = %d, want 1", cfg.UpstreamMaxAttempts)
	}
	if cfg.VoiceConcurrency != 1 {
		t.Errorf("VoiceConcurrency = %d, want 1", cfg.VoiceConcurrency)
	}
	if cfg.KafkaMaxRetries != 1 {
		t.Errorf("KafkaMaxRetries = %d, want 1", cfg.KafkaMaxRetries)
	}
	if cfg.UpstreamRetryDelay != 2*time.Second {
		t.Errorf("UpstreamRetryDelay = %v, want 2s", cfg.UpstreamRetryDelay)
	}
	if len(cfg.KafkaBrokers) != 0 {
		t.Errorf("KafkaBrokers = %v, want empty", cfg.KafkaBrokers)
	}
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("MAX_ENVELOPE_BYTES", "1200")
	t.Setenv("SPEAKING_RATE", "1.1")
	t.Setenv("KAFKA_BROKERS", "a:9092, b:9092,,")
	t.Setenv("STORAGE_BACKEND", "NATS")
	t.Setenv("VOICE_CONCURRENCY", "0")
	t.Setenv("ASSET_BASE_URL", "https://cdn.example.com/")
	t.Setenv("KAFKA_MAX_RETRIES", "3")
	t.Setenv("UPSTREAM_RETRY_BASE_DELAY", "250ms")

	cfg := Load()

	if cfg.MaxEnvelopeBytes != 1200 {
		t.Errorf("MaxEnvelopeBytes = %d, want 1200", cfg.MaxEnvelopeBytes)
	}
	if cfg.SpeakingRate != 1.1 {
		t.Errorf("SpeakingRate = %v, want 1.1", cfg.SpeakingRate)
	}
	if len(cfg.KafkaBrokers) != 2 || cfg.KafkaBrokers[1] != "b:9092" {
		t.Errorf("KafkaBrokers = %v", cfg.KafkaBrokers)
	}
	if cfg.StorageBackend != "nats" {
		t.Errorf("StorageBackend = %q, want nats", cfg.StorageBackend)
	}
	if cfg.VoiceConcurrency != 1 {
		t.Errorf("VoiceConcurrency = %d, want clamped to 1", cfg.VoiceConcurrency)
	}
	if cfg.KafkaMaxRetries != 3 {
		t.Errorf("KafkaMaxRetries = %d, want 3", cfg.KafkaMaxRetries)
	}
	if cfg.UpstreamRetryDelay != 250*time.Millisecond {
		t.Errorf("UpstreamRetryDelay = %v, want 250ms", cfg.UpstreamRetryDelay)
	}
	if cfg.AssetBaseURL != "https://cdn.example.com" {
		t.Errorf("AssetBaseURL = %q", cfg.AssetBaseURL)
	}
}
