// Package grpc exposes gateway health over the standard gRPC health protocol.
package grpc

import (
	"context"
	"log/slog"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"opsglue/internal/embedding"
	"opsglue/internal/service"
)

// Health check service names beyond the per-service "service/<name>" entries.
const (
	ServiceOverall    = ""
	ServiceEmbeddings = "embeddings"
)

// ServiceKey returns the health check name of an outbound service.
func ServiceKey(name string) string {
	return "service/" + name
}

// HealthServer mirrors service and embedding health into a grpc health.Server.
// Statuses only change on Sync, so Check and Watch never block on upstreams.
type HealthServer struct {
	*health.Server

	services   *service.Set
	embeddings *embedding.Registry
	logger     *slog.Logger
}

// NewHealthServer creates a health server. Either source may be nil.
func NewHealthServer(services *service.Set, embeddings *embedding.Registry, logger *slog.Logger) *HealthServer {
	if logger == nil {
		logger = slog.Default()
	}
	return &HealthServer{
		Server:     health.NewServer(),
		services:   services,
		embeddings: embeddings,
		logger:     logger.With(slog.String("component", "grpc_health")),
	}
}

// Register attaches the health service to gs.
func (s *HealthServer) Register(gs *grpc.Server) {
	healthpb.RegisterHealthServer(gs, s.Server)
}

// Sync refreshes every status from the current snapshots.
//
// A service is NOT_SERVING while its breaker is not closed. The embeddings entry
// and the overall status are NOT_SERVING when tiers are configured and none is
// healthy; degraded services alone keep the overall status SERVING.
func (s *HealthServer) Sync(ctx context.Context) {
	if s.services != nil {
		for _, h := range s.services.HealthAll() {
			st := healthpb.HealthCheckResponse_SERVING
			if h.Status != service.StatusOperational {
				st = healthpb.HealthCheckResponse_NOT_SERVING
			}
			s.SetServingStatus(ServiceKey(h.ServiceName), st)
		}
	}

	overall := healthpb.HealthCheckResponse_SERVING
	if s.embeddings != nil && len(s.embeddings.Tiers()) > 0 {
		st := healthpb.HealthCheckResponse_NOT_SERVING
		for _, row := range s.embeddings.HealthCheckAll(ctx) {
			if row.Healthy {
				st = healthpb.HealthCheckResponse_SERVING
				break
			}
		}
		s.SetServingStatus(ServiceEmbeddings, st)
		overall = st
	}

	s.SetServingStatus(ServiceOverall, overall)
	s.logger.Debug("grpc health synced", slog.String("overall", overall.String()))
}
