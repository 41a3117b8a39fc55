package http

import (
	"context"
	"net/http"
	"sync/atomic"
	"time"

	"opsglue/internal/embedding"
	"opsglue/internal/handler/http/respond"
	"opsglue/internal/service"
)

// Health statuses.
const (
	StatusHealthy       = "healthy"
	StatusDegraded      = "degraded"
	StatusUnhealthy     = "unhealthy"
	StatusNotConfigured = "not_configured"
)

const defaultHealthTimeout = 5 * time.Second

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status    string                 `json:"status"`
	Timestamp string                 `json:"timestamp"`
	Checks    map[string]CheckStatus `json:"checks"`
	Version   string                 `json:"version"`
}

// CheckStatus is the result of one health check.
type CheckStatus struct {
	Status  string         `json:"status"`
	Message string         `json:"message,omitempty"`
	Details map[string]any `json:"details,omitempty"`
}

// HealthHandler aggregates outbound service and embedding provider health.
// Degraded services keep the gateway at 200; having embedding tiers configured
// with none healthy reports 503.
type HealthHandler struct {
	Services   *service.Set
	Embeddings *embedding.Registry
	Version    string
	Timeout    time.Duration
}

func (h *HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), orDefault(h.Timeout))
	defer cancel()

	checks := map[string]CheckStatus{
		"services":   checkServices(h.Services),
		"embeddings": checkEmbeddings(ctx, h.Embeddings),
	}

	status := StatusHealthy
	code := http.StatusOK
	for _, c := range checks {
		switch c.Status {
		case StatusUnhealthy:
			status = StatusUnhealthy
			code = http.StatusServiceUnavailable
		case StatusDegraded:
			if status == StatusHealthy {
				status = StatusDegraded
			}
		}
	}

	w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")
	respond.JSON(w, code, HealthResponse{
		Status:    status,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Checks:    checks,
		Version:   h.Version,
	})
}

func checkServices(set *service.Set) CheckStatus {
	if set == nil || set.Len() == 0 {
		return CheckStatus{Status: StatusNotConfigured}
	}

	var degraded []string
	operational := 0
	for _, hc := range set.HealthAll() {
		if hc.Status == service.StatusOperational {
			operational++
			continue
		}
		degraded = append(degraded, hc.ServiceName)
	}

	c := CheckStatus{
		Status:  StatusHealthy,
		Details: map[string]any{"operational": operational, "degraded": len(degraded)},
	}
	if len(degraded) > 0 {
		c.Status = StatusDegraded
		c.Message = "circuit breaker not closed"
		c.Details["degraded_services"] = degraded
	}
	return c
}

func checkEmbeddings(ctx context.Context, reg *embedding.Registry) CheckStatus {
	if reg == nil || len(reg.Tiers()) == 0 {
		return CheckStatus{Status: StatusNotConfigured}
	}

	rows := reg.HealthCheckAll(ctx)
	var active string
	healthy := 0
	for _, row := range rows {
		if row.Healthy {
			healthy++
			if active == "" {
				active = row.Provider
			}
		}
	}

	details := map[string]any{"tiers": len(rows), "healthy": healthy}
	switch {
	case healthy == 0:
		return CheckStatus{Status: StatusUnhealthy, Message: "no embedding provider available", Details: details}
	case !rows[0].Healthy:
		details["active_provider"] = active
		return CheckStatus{Status: StatusDegraded, Message: "serving from a lower tier", Details: details}
	default:
		details["active_provider"] = active
		return CheckStatus{Status: StatusHealthy, Details: details}
	}
}

// ServicesHealthHandler serves GET /health/services and GET /health/services/{name}.
type ServicesHealthHandler struct {
	Services *service.Set
}

func (h *ServicesHealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if h.Services == nil {
		respond.JSON(w, http.StatusOK, []service.Health{})
		return
	}

	name := r.PathValue("name")
	if name == "" {
		respond.JSON(w, http.StatusOK, h.Services.HealthAll())
		return
	}

	m, err := h.Services.Get(name)
	if err != nil {
		respond.SafeError(w, http.StatusNotFound, err)
		return
	}
	respond.JSON(w, http.StatusOK, m.HealthCheck())
}

// EmbeddingsHealthResponse is the body of GET /health/embeddings.
type EmbeddingsHealthResponse struct {
	Status string                 `json:"status"`
	Tiers  []embedding.TierHealth `json:"tiers"`
}

// EmbeddingsHealthHandler serves GET /health/embeddings. It returns 503 when no
// tier is healthy.
type EmbeddingsHealthHandler struct {
	Registry *embedding.Registry
	Timeout  time.Duration
}

func (h *EmbeddingsHealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if h.Registry == nil {
		respond.JSON(w, http.StatusOK, EmbeddingsHealthResponse{Status: StatusNotConfigured, Tiers: []embedding.TierHealth{}})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), orDefault(h.Timeout))
	defer cancel()

	rows := h.Registry.HealthCheckAll(ctx)
	status := StatusUnhealthy
	code := http.StatusServiceUnavailable
	for _, row := range rows {
		if row.Healthy {
			status = StatusHealthy
			code = http.StatusOK
			break
		}
	}
	if len(rows) == 0 {
		status, code = StatusNotConfigured, http.StatusOK
	}

	respond.JSON(w, code, EmbeddingsHealthResponse{Status: status, Tiers: rows})
}

// LiveHandler answers liveness probes.
type LiveHandler struct{}

func (LiveHandler) ServeHTTP(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("alive"))
}

// ReadyHandler answers readiness probes: 200 once Ready is set, 503 before and
// during shutdown. A nil Ready is always ready.
type ReadyHandler struct {
	Ready *atomic.Bool
}

func (h ReadyHandler) ServeHTTP(w http.ResponseWriter, _ *http.Request) {
	if h.Ready != nil && !h.Ready.Load() {
		respond.JSON(w, http.StatusServiceUnavailable, map[string]string{"status": "not ready"})
		return
	}
	respond.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func orDefault(d time.Duration) time.Duration {
	if d <= 0 {
		return defaultHealthTimeout
	}
	return d
}
