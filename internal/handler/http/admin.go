package http

import (
	"log/slog"
	"net/http"

	"opsglue/internal/handler/http/requestid"
	"opsglue/internal/handler/http/respond"
	"opsglue/internal/service"
)

// ResetHandler serves POST /admin/services/{name}/reset, the operator override
// that closes a service's circuit breaker. It responds with the service health
// after the reset.
type ResetHandler struct {
	Services *service.Set
	Logger   *slog.Logger
}

func (h *ResetHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")

	if h.Services == nil {
		respond.SafeError(w, http.StatusNotFound, service.ErrUnknownService)
		return
	}
	m, err := h.Services.Get(name)
	if err != nil {
		respond.SafeError(w, http.StatusNotFound, err)
		return
	}

	before := m.HealthCheck()
	m.ResetCircuitBreaker()
	after := m.HealthCheck()

	logger := h.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.Warn("circuit breaker reset by operator",
		slog.String("service", name),
		slog.String("previous_state", before.CircuitBreaker.State),
		slog.String("operator", OperatorFromContext(r.Context())),
		slog.String("request_id", requestid.FromContext(r.Context())))

	respond.JSON(w, http.StatusOK, after)
}
