package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadGatewayConfig_Defaults(t *testing.T) {
	for _, key := range []string{"GATEWAY_HTTP_PORT", "GATEWAY_GRPC_PORT", "GATEWAY_HEALTH_SCHEDULE",
		"GATEWAY_SHUTDOWN_TIMEOUT", "SERVICES_CONFIG_PATH", "GATEWAY_ADMIN_JWT_SECRET", "TRACING_ENABLED", "TRACING_EXPORTER", "TRACING_SAMPLE_RATIO"} {
		t.Setenv(key, "")
	}

	cfg, err := LoadGatewayConfig()
	require.NoError(t, err)
	assert.Equal(t, 9090, cfg.HTTPPort)
	assert.Equal(t, 9091, cfg.GRPCPort)
	assert.Equal(t, "@every 1m", cfg.HealthSchedule)
	assert.Equal(t, 10*time.Second, cfg.ShutdownTimeout)
	assert.Empty(t, cfg.AdminJWTSecret)
	assert.False(t, cfg.TracingEnabled)
	assert.Equal(t, "stdout", cfg.TracingExporter)
	assert.Equal(t, 1.0, cfg.TracingSampleRatio)
}

func TestGatewayConfig_Validate(t *testing.T) {
	valid := func() GatewayConfig {
		return GatewayConfig{HTTPPort: 9090, GRPCPort: 9091, HealthSchedule: "*/5 * * * *", ShutdownTimeout: time.Second, TracingSampleRatio: 0.5}
	}

	tests := []struct {
		name    string
		mutate  func(c *GatewayConfig)
		wantErr string
	}{
		{name: "valid", mutate: func(*GatewayConfig) {}},
		{name: "bad http port", mutate: func(c *GatewayConfig) { c.HTTPPort = 0 }, wantErr: "GATEWAY_HTTP_PORT"},
		{name: "bad grpc port", mutate: func(c *GatewayConfig) { c.GRPCPort = 70000 }, wantErr: "GATEWAY_GRPC_PORT"},
		{name: "same ports", mutate: func(c *GatewayConfig) { c.GRPCPort = c.HTTPPort }, wantErr: "must differ"},
		{name: "bad schedule", mutate: func(c *GatewayConfig) { c.HealthSchedule = "every minute" }, wantErr: "cron spec"},
		{name: "zero shutdown", mutate: func(c *GatewayConfig) { c.ShutdownTimeout = 0 }, wantErr: "SHUTDOWN"},
		{name: "short admin secret", mutate: func(c *GatewayConfig) { c.AdminJWTSecret = "short" }, wantErr: "GATEWAY_ADMIN_JWT_SECRET"},
		{name: "long admin secret", mutate: func(c *GatewayConfig) { c.AdminJWTSecret = "0123456789abcdef0123456789abcdef" }},
		{name: "ratio above one", mutate: func(c *GatewayConfig) { c.TracingSampleRatio = 1.5 }, wantErr: "SAMPLE_RATIO"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}

func TestLoadEmbeddingConfig(t *testing.T) {
	t.Setenv("EMBEDDING_OPENAI_API_KEY", "")
	t.Setenv("EMBEDDING_OPENAI_MODEL", "")
	t.Setenv("EMBEDDING_OPENAI_BASE_URL", "")
	t.Setenv("EMBEDDING_DIMENSIONS", "")
	t.Setenv("EMBEDDING_BATCH_SIZE", "")
	t.Setenv("EMBEDDING_RATE_LIMIT", "")
	t.Setenv("EMBEDDING_GUARD_THRESHOLD", "")
	t.Setenv("EMBEDDING_GUARD_TIMEOUT", "")

	cfg, err := LoadEmbeddingConfig()
	require.NoError(t, err)
	assert.False(t, cfg.OpenAIEnabled())
	assert.Equal(t, "text-embedding-3-small", cfg.OpenAIModel)
	assert.Equal(t, 1536, cfg.Dimensions)
	assert.Equal(t, 100, cfg.BatchSize)
	assert.Equal(t, 5.0, cfg.RateLimit)
	assert.Equal(t, 5, cfg.GuardThreshold)
	assert.Equal(t, 60*time.Second, cfg.GuardTimeout)

	t.Setenv("EMBEDDING_OPENAI_API_KEY", "sk-test")
	t.Setenv("EMBEDDING_DIMENSIONS", "256")
	t.Setenv("EMBEDDING_GUARD_TIMEOUT", "15")
	cfg, err = LoadEmbeddingConfig()
	require.NoError(t, err)
	assert.True(t, cfg.OpenAIEnabled())
	assert.Equal(t, 256, cfg.Dimensions)
	assert.Equal(t, 15*time.Second, cfg.GuardTimeout)

	t.Setenv("EMBEDDING_BATCH_SIZE", "5000")
	_, err = LoadEmbeddingConfig()
	assert.ErrorContains(t, err, "EMBEDDING_BATCH_SIZE")
}
