package http

import (
	"log/slog"
	"net/http"
	"sync/atomic"

	"golang.org/x/time/rate"

	"opsglue/internal/embedding"
	"opsglue/internal/handler/http/requestid"
	"opsglue/internal/observability/tracing"
	"opsglue/internal/service"
)

const maxAdminBody = 1 << 10

// RouterConfig holds the dependencies of the gateway HTTP surface.
type RouterConfig struct {
	Services   *service.Set
	Embeddings *embedding.Registry
	Version    string
	Logger     *slog.Logger

	// Ready drives GET /readyz. Nil means always ready.
	Ready *atomic.Bool

	// AdminSecret verifies admin bearer tokens. Empty rejects every admin request.
	AdminSecret []byte

	// AdminRateLimit caps admin requests per second. Default: 1
	AdminRateLimit float64
}

// NewRouter builds the gateway mux wrapped in the standard middleware chain:
// request ID, tracing, logging, panic recovery and metrics.
func NewRouter(cfg RouterConfig) http.Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	adminRate := cfg.AdminRateLimit
	if adminRate <= 0 {
		adminRate = 1
	}

	mux := http.NewServeMux()
	mux.Handle("GET /livez", LiveHandler{})
	mux.Handle("GET /readyz", ReadyHandler{Ready: cfg.Ready})
	mux.Handle("GET /metrics", MetricsHandler())
	mux.Handle("GET /health", &HealthHandler{
		Services:   cfg.Services,
		Embeddings: cfg.Embeddings,
		Version:    cfg.Version,
	})

	servicesHealth := &ServicesHealthHandler{Services: cfg.Services}
	mux.Handle("GET /health/services", servicesHealth)
	mux.Handle("GET /health/services/{name}", servicesHealth)
	mux.Handle("GET /health/embeddings", &EmbeddingsHealthHandler{Registry: cfg.Embeddings})

	mux.Handle("POST /admin/services/{name}/reset", Chain(
		&ResetHandler{Services: cfg.Services, Logger: logger},
		RateLimit(rate.NewLimiter(rate.Limit(adminRate), max(1, int(adminRate)))),
		AdminAuth(cfg.AdminSecret, logger),
		LimitRequestBody(maxAdminBody),
	))

	return Chain(mux,
		requestid.Middleware,
		tracing.Middleware,
		Logging(logger),
		Recover(logger),
		MetricsMiddleware,
	)
}
