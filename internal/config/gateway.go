package config

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	pkgconfig "opsglue/pkg/config"
)

// GatewayConfig holds settings for the gateway process.
type GatewayConfig struct {
	// HTTPPort serves /metrics, /health and the admin endpoints. Default: 9090
	HTTPPort int

	// GRPCPort serves the gRPC health service. Default: 9091
	GRPCPort int

	// HealthSchedule is the cron spec for refreshing health state. Default: "@every 1m"
	HealthSchedule string

	// ShutdownTimeout bounds graceful shutdown. Default: 10s
	ShutdownTimeout time.Duration

	// ServicesConfigPath names the per-service YAML file. Empty means no services.
	ServicesConfigPath string

	// AdminJWTSecret verifies HS256 bearer tokens on the admin endpoints. Empty
	// disables them.
	AdminJWTSecret string

	// TracingEnabled installs an OpenTelemetry tracer provider. Default: false
	TracingEnabled bool

	// TracingExporter is "stdout", "otlp" or "none". Default: "stdout"
	TracingExporter string

	// TracingSampleRatio is the fraction of traces kept. Default: 1.0
	TracingSampleRatio float64
}

// LoadGatewayConfig loads gateway configuration from environment variables.
//
//   - GATEWAY_HTTP_PORT (default: 9090)
//   - GATEWAY_GRPC_PORT (default: 9091)
//   - GATEWAY_HEALTH_SCHEDULE (default: @every 1m)
//   - GATEWAY_SHUTDOWN_TIMEOUT (default: 10s)
//   - SERVICES_CONFIG_PATH
//   - GATEWAY_ADMIN_JWT_SECRET
//   - TRACING_ENABLED (default: false)
//   - TRACING_EXPORTER (default: stdout)
//   - TRACING_SAMPLE_RATIO (default: 1.0)
func LoadGatewayConfig() (*GatewayConfig, error) {
	cfg := &GatewayConfig{
		HTTPPort:           pkgconfig.GetEnvInt("GATEWAY_HTTP_PORT", 9090),
		GRPCPort:           pkgconfig.GetEnvInt("GATEWAY_GRPC_PORT", 9091),
		HealthSchedule:     pkgconfig.GetEnvString("GATEWAY_HEALTH_SCHEDULE", "@every 1m"),
		ShutdownTimeout:    pkgconfig.GetEnvSeconds("GATEWAY_SHUTDOWN_TIMEOUT", 10*time.Second),
		ServicesConfigPath: pkgconfig.GetEnvString("SERVICES_CONFIG_PATH", ""),
		AdminJWTSecret:     pkgconfig.GetEnvString("GATEWAY_ADMIN_JWT_SECRET", ""),
		TracingEnabled:     pkgconfig.GetEnvBool("TRACING_ENABLED", false),
		TracingExporter:    pkgconfig.GetEnvString("TRACING_EXPORTER", "stdout"),
		TracingSampleRatio: pkgconfig.GetEnvFloat("TRACING_SAMPLE_RATIO", 1.0),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid gateway configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks configuration correctness.
func (c *GatewayConfig) Validate() error {
	if c.HTTPPort <= 0 || c.HTTPPort > 65535 {
		return fmt.Errorf("GATEWAY_HTTP_PORT must be between 1 and 65535")
	}
	if c.GRPCPort <= 0 || c.GRPCPort > 65535 {
		return fmt.Errorf("GATEWAY_GRPC_PORT must be between 1 and 65535")
	}
	if c.HTTPPort == c.GRPCPort {
		return fmt.Errorf("GATEWAY_HTTP_PORT and GATEWAY_GRPC_PORT must differ")
	}
	if _, err := cron.ParseStandard(c.HealthSchedule); err != nil {
		return fmt.Errorf("GATEWAY_HEALTH_SCHEDULE is not a valid cron spec: %w", err)
	}
	if err := pkgconfig.ValidatePositiveDuration(c.ShutdownTimeout); err != nil {
		return fmt.Errorf("GATEWAY_SHUTDOWN_TIMEOUT: %w", err)
	}
	if c.AdminJWTSecret != "" && len(c.AdminJWTSecret) < 32 {
		return fmt.Errorf("GATEWAY_ADMIN_JWT_SECRET must be at least 32 characters")
	}
	if c.TracingSampleRatio < 0 || c.TracingSampleRatio > 1 {
		return fmt.Errorf("TRACING_SAMPLE_RATIO must be between 0.0 and 1.0")
	}
	return nil
}
