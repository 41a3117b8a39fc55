// Package main runs the opsglue gateway: it owns the configured outbound
// services and the embedding registry, and serves their health, metrics and the
// operator breaker reset.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"opsglue/internal/config"
	"opsglue/internal/embedding"
	"opsglue/internal/observability/logging"
	"opsglue/internal/observability/metrics"
	"opsglue/internal/observability/tracing"
	"opsglue/internal/resilience/result"
	"opsglue/internal/service"
)

// version is set at build time with -ldflags "-X main.version=..."
var version = "dev"

func main() {
	logger := logging.NewLogger()
	slog.SetDefault(logger)

	if err := run(logger); err != nil {
		logger.Error("gateway stopped with error", slog.Any("error", err))
		os.Exit(1)
	}
}

func run(logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	gwCfg, err := config.LoadGatewayConfig()
	if err != nil {
		return err
	}
	resCfg, err := config.LoadResilienceConfig()
	if err != nil {
		return err
	}
	embCfg, err := config.LoadEmbeddingConfig()
	if err != nil {
		return err
	}
	serviceCfgs, err := config.LoadServicesConfig(gwCfg.ServicesConfigPath)
	if err != nil {
		return err
	}

	logger.Info("gateway configuration loaded",
		slog.String("version", version),
		slog.Int("http_port", gwCfg.HTTPPort),
		slog.Int("grpc_port", gwCfg.GRPCPort),
		slog.String("health_schedule", gwCfg.HealthSchedule),
		slog.Int("services", len(serviceCfgs)),
		slog.Bool("openai_enabled", embCfg.OpenAIEnabled()),
		slog.Bool("tracing_enabled", gwCfg.TracingEnabled))

	if gwCfg.TracingEnabled {
		shutdownTracing, err := tracing.InitProvider(ctx, tracing.ProviderConfig{
			ServiceName: "opsglue-gateway",
			Exporter:    gwCfg.TracingExporter,
			SampleRatio: gwCfg.TracingSampleRatio,
		})
		if err != nil {
			return fmt.Errorf("init tracing: %w", err)
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), gwCfg.ShutdownTimeout)
			defer cancel()
			if err := shutdownTracing(shutdownCtx); err != nil {
				logger.Error("failed to flush traces", slog.Any("error", err))
			}
		}()
	}

	recorder := metrics.Default()

	services, err := service.NewSetFromConfig(*resCfg, serviceCfgs,
		service.WithLogger(logger),
		service.WithMetrics(recorder))
	if err != nil {
		return fmt.Errorf("build services: %w", err)
	}
	defer func() {
		if err := services.Close(); err != nil {
			logger.Error("failed to close services", slog.Any("error", err))
		}
	}()
	logInitialization(logger, services.InitializeAll(ctx))

	registry := embedding.NewRegistryFromConfig(embCfg,
		embedding.WithLogger(logger),
		embedding.WithMetrics(recorder))

	return serve(ctx, logger, gwCfg, services, registry)
}

// logInitialization reports every service's initialization outcome. A failed
// service stays registered so that its health remains visible.
func logInitialization(logger *slog.Logger, envs map[string]result.Envelope) {
	for name, env := range envs {
		if env.Success {
			logger.Info("service initialized", slog.String("service", name))
			continue
		}
		logger.Warn("service initialization failed",
			slog.String("service", name),
			slog.String("error", env.Error),
			slog.Bool("configuration_error", service.IsConfigurationError(env)))
	}
}
