package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"

	"opsglue/internal/config"
	"opsglue/internal/embedding"
	handlerhttp "opsglue/internal/handler/http"
	grpcserver "opsglue/internal/interface/grpc"
	"opsglue/internal/observability/slo"
	"opsglue/internal/service"
)

// serve binds the HTTP and gRPC ports and runs the gateway on them until ctx is
// canceled or a server fails.
func serve(ctx context.Context, logger *slog.Logger, cfg *config.GatewayConfig, services *service.Set, registry *embedding.Registry) error {
	httpLis, err := net.Listen("tcp", fmt.Sprintf(":%d", cfg.HTTPPort))
	if err != nil {
		return fmt.Errorf("listen http: %w", err)
	}
	grpcLis, err := net.Listen("tcp", fmt.Sprintf(":%d", cfg.GRPCPort))
	if err != nil {
		_ = httpLis.Close()
		return fmt.Errorf("listen grpc: %w", err)
	}

	return serveOn(ctx, logger, cfg, httpLis, grpcLis, services, registry, &atomic.Bool{})
}

// serveOn runs the HTTP and gRPC servers on already bound listeners together with
// the health refresh job, then shuts everything down within cfg.ShutdownTimeout.
// ready is set only while both listeners accept connections.
func serveOn(ctx context.Context, logger *slog.Logger, cfg *config.GatewayConfig, httpLis, grpcLis net.Listener, services *service.Set, registry *embedding.Registry, ready *atomic.Bool) error {
	health := grpcserver.NewHealthServer(services, registry, logger)
	refresh := func(ctx context.Context) {
		health.Sync(ctx)
		observeSLOs(logger, services)
	}
	refresh(ctx)

	httpServer := &http.Server{
		Handler: handlerhttp.NewRouter(handlerhttp.RouterConfig{
			Services:    services,
			Embeddings:  registry,
			Version:     version,
			Logger:      logger,
			Ready:       ready,
			AdminSecret: []byte(cfg.AdminJWTSecret),
		}),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	grpcServer := grpcserver.NewServer(health, logger)

	scheduler := cron.New()
	if _, err := scheduler.AddFunc(cfg.HealthSchedule, func() {
		refreshCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
		defer cancel()
		refresh(refreshCtx)
	}); err != nil {
		_ = httpLis.Close()
		_ = grpcLis.Close()
		return fmt.Errorf("schedule health refresh: %w", err)
	}
	scheduler.Start()

	errCh := make(chan error, 2)
	go func() {
		logger.Info("http server starting", slog.String("addr", httpLis.Addr().String()))
		if err := httpServer.Serve(httpLis); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()
	go func() {
		logger.Info("grpc server starting", slog.String("addr", grpcLis.Addr().String()))
		if err := grpcServer.Serve(grpcLis); err != nil {
			errCh <- fmt.Errorf("grpc server: %w", err)
		}
	}()

	ready.Store(true)

	var serveErr error
	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case serveErr = <-errCh:
		logger.Error("server failed, shutting down", slog.Any("error", serveErr))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	ready.Store(false)
	cronDone := scheduler.Stop()
	health.Shutdown()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", slog.Any("error", err))
	}

	stopped := make(chan struct{})
	go func() {
		grpcServer.GracefulStop()
		close(stopped)
	}()
	select {
	case <-stopped:
	case <-shutdownCtx.Done():
		grpcServer.Stop()
	}

	select {
	case <-cronDone.Done():
	case <-shutdownCtx.Done():
		logger.Warn("health refresh still running at shutdown")
	}

	logger.Info("gateway stopped")
	return serveErr
}

// observeSLOs publishes per-service objectives from the connection stats.
func observeSLOs(logger *slog.Logger, services *service.Set) {
	for _, h := range services.HealthAll() {
		met := slo.Observe(slo.Sample{
			Service:               h.ServiceName,
			RequestCount:          h.Stats.RequestCount,
			ErrorRate:             h.Stats.ErrorRate,
			AverageResponseTimeMs: h.Stats.AverageResponseTimeMs,
		})
		if !met {
			logger.Warn("service below objectives",
				slog.String("service", h.ServiceName),
				slog.Float64("error_rate", h.Stats.ErrorRate),
				slog.Float64("average_response_time_ms", h.Stats.AverageResponseTimeMs))
		}
	}
}
