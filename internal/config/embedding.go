package config

import (
	"fmt"
	"time"

	pkgconfig "opsglue/pkg/config"
)

// EmbeddingConfig holds settings for the embedding provider registry.
type EmbeddingConfig struct {
	// OpenAIAPIKey enables the OpenAI primary tier when set.
	OpenAIAPIKey string

	// OpenAIModel is the embeddings model. Default: "text-embedding-3-small"
	OpenAIModel string

	// OpenAIBaseURL points at an OpenAI-compatible endpoint. Empty uses the public API.
	OpenAIBaseURL string

	// Dimensions is the vector size every tier must produce. Default: 1536
	Dimensions int

	// BatchSize is the number of texts per provider request. Default: 100
	BatchSize int

	// RateLimit is the maximum OpenAI requests per second. Default: 5
	RateLimit float64

	// GuardThreshold is the consecutive failure count that trips a tier guard. Default: 5
	GuardThreshold int

	// GuardTimeout is how long a tripped tier guard stays open. Default: 60s
	GuardTimeout time.Duration
}

// LoadEmbeddingConfig loads embedding configuration from environment variables.
//
//   - EMBEDDING_OPENAI_API_KEY
//   - EMBEDDING_OPENAI_MODEL (default: text-embedding-3-small)
//   - EMBEDDING_OPENAI_BASE_URL
//   - EMBEDDING_DIMENSIONS (default: 1536)
//   - EMBEDDING_BATCH_SIZE (default: 100)
//   - EMBEDDING_RATE_LIMIT (default: 5 requests/second)
//   - EMBEDDING_GUARD_THRESHOLD (default: 5)
//   - EMBEDDING_GUARD_TIMEOUT (default: 60s)
func LoadEmbeddingConfig() (*EmbeddingConfig, error) {
	cfg := &EmbeddingConfig{
		OpenAIAPIKey:   pkgconfig.GetEnvString("EMBEDDING_OPENAI_API_KEY", ""),
		OpenAIModel:    pkgconfig.GetEnvString("EMBEDDING_OPENAI_MODEL", "text-embedding-3-small"),
		OpenAIBaseURL:  pkgconfig.GetEnvString("EMBEDDING_OPENAI_BASE_URL", ""),
		Dimensions:     pkgconfig.GetEnvInt("EMBEDDING_DIMENSIONS", 1536),
		BatchSize:      pkgconfig.GetEnvInt("EMBEDDING_BATCH_SIZE", 100),
		RateLimit:      pkgconfig.GetEnvFloat("EMBEDDING_RATE_LIMIT", 5),
		GuardThreshold: pkgconfig.GetEnvInt("EMBEDDING_GUARD_THRESHOLD", 5),
		GuardTimeout:   pkgconfig.GetEnvSeconds("EMBEDDING_GUARD_TIMEOUT", 60*time.Second),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid embedding configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks configuration correctness.
func (c *EmbeddingConfig) Validate() error {
	if c.OpenAIModel == "" {
		return fmt.Errorf("EMBEDDING_OPENAI_MODEL cannot be empty")
	}
	if c.Dimensions <= 0 {
		return fmt.Errorf("EMBEDDING_DIMENSIONS must be positive")
	}
	if c.BatchSize <= 0 || c.BatchSize > 2048 {
		return fmt.Errorf("EMBEDDING_BATCH_SIZE must be between 1 and 2048")
	}
	if c.RateLimit <= 0 {
		return fmt.Errorf("EMBEDDING_RATE_LIMIT must be positive")
	}
	if c.GuardThreshold <= 0 {
		return fmt.Errorf("EMBEDDING_GUARD_THRESHOLD must be positive")
	}
	if c.GuardTimeout <= 0 {
		return fmt.Errorf("EMBEDDING_GUARD_TIMEOUT must be positive")
	}
	return nil
}

// OpenAIEnabled reports whether the OpenAI tier should be registered.
func (c *EmbeddingConfig) OpenAIEnabled() bool {
	return c.OpenAIAPIKey != ""
}
