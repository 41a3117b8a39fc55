package embedding

import (
	"opsglue/internal/config"
)

// NewRegistryFromConfig registers the OpenAI provider as the primary tier when a
// key is configured and the local hash provider as the fallback tier.
func NewRegistryFromConfig(cfg *config.EmbeddingConfig, opts ...RegistryOption) *Registry {
	guard := GuardConfig{Threshold: uint32(cfg.GuardThreshold), Timeout: cfg.GuardTimeout} // #nosec G115 -- validated positive
	reg := NewRegistry(append([]RegistryOption{WithGuardConfig(guard)}, opts...)...)

	if cfg.OpenAIEnabled() {
		reg.Register(TierPrimary, NewOpenAIProvider(OpenAIConfig{
			APIKey:     cfg.OpenAIAPIKey,
			Model:      cfg.OpenAIModel,
			BaseURL:    cfg.OpenAIBaseURL,
			Dimensions: cfg.Dimensions,
			RateLimit:  cfg.RateLimit,
			MaxBatch:   cfg.BatchSize,
		}))
	}
	reg.Register(TierFallback, NewHashProvider(cfg.Dimensions))

	return reg
}
