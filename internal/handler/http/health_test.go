package http

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"opsglue/internal/embedding"
	"opsglue/internal/service"
)

func serveHealth(t *testing.T, h http.Handler, target string) (*httptest.ResponseRecorder, HealthResponse) {
	t.Helper()
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, target, nil))

	var resp HealthResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return w, resp
}

func TestHealthHandler(t *testing.T) {
	tests := []struct {
		name           string
		setup          func(t *testing.T) *HealthHandler
		wantCode       int
		wantStatus     string
		wantServices   string
		wantEmbeddings string
	}{
		{
			name: "nothing configured",
			setup: func(t *testing.T) *HealthHandler {
				return &HealthHandler{Version: "1.2.3"}
			},
			wantCode:       http.StatusOK,
			wantStatus:     StatusHealthy,
			wantServices:   StatusNotConfigured,
			wantEmbeddings: StatusNotConfigured,
		},
		{
			name: "all healthy",
			setup: func(t *testing.T) *HealthHandler {
				return &HealthHandler{
					Services: newSet(t, newService(t, "slack"), newService(t, "wordpress")),
					Embeddings: newRegistry(map[embedding.Tier]*stubProvider{
						embedding.TierPrimary:  {name: "openai", healthy: true},
						embedding.TierFallback: {name: "local-hash", healthy: true},
					}),
				}
			},
			wantCode:       http.StatusOK,
			wantStatus:     StatusHealthy,
			wantServices:   StatusHealthy,
			wantEmbeddings: StatusHealthy,
		},
		{
			name: "open breaker degrades",
			setup: func(t *testing.T) *HealthHandler {
				slack := newService(t, "slack")
				tripService(t, slack)
				return &HealthHandler{Services: newSet(t, slack, newService(t, "wordpress"))}
			},
			wantCode:       http.StatusOK,
			wantStatus:     StatusDegraded,
			wantServices:   StatusDegraded,
			wantEmbeddings: StatusNotConfigured,
		},
		{
			name: "lower tier serving degrades",
			setup: func(t *testing.T) *HealthHandler {
				return &HealthHandler{Embeddings: newRegistry(map[embedding.Tier]*stubProvider{
					embedding.TierPrimary:  {name: "openai", healthy: false},
					embedding.TierFallback: {name: "local-hash", healthy: true},
				})}
			},
			wantCode:       http.StatusOK,
			wantStatus:     StatusDegraded,
			wantServices:   StatusNotConfigured,
			wantEmbeddings: StatusDegraded,
		},
		{
			name: "no embedding provider is unhealthy",
			setup: func(t *testing.T) *HealthHandler {
				slack := newService(t, "slack")
				tripService(t, slack)
				return &HealthHandler{
					Services: newSet(t, slack),
					Embeddings: newRegistry(map[embedding.Tier]*stubProvider{
						embedding.TierPrimary: {name: "openai", healthy: false},
					}),
				}
			},
			wantCode:       http.StatusServiceUnavailable,
			wantStatus:     StatusUnhealthy,
			wantServices:   StatusDegraded,
			wantEmbeddings: StatusUnhealthy,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := tt.setup(t)
			w, resp := serveHealth(t, h, "/health")

			if w.Code != tt.wantCode {
				t.Errorf("code = %d, want %d", w.Code, tt.wantCode)
			}
			if resp.Status != tt.wantStatus {
				t.Errorf("status = %q, want %q", resp.Status, tt.wantStatus)
			}
			if got := resp.Checks["services"].Status; got != tt.wantServices {
				t.Errorf("services check = %q, want %q", got, tt.wantServices)
			}
			if got := resp.Checks["embeddings"].Status; got != tt.wantEmbeddings {
				t.Errorf("embeddings check = %q, want %q", got, tt.wantEmbeddings)
			}
			if resp.Timestamp == "" {
				t.Error("timestamp is empty")
			}
			if cc := w.Header().Get("Cache-Control"); cc == "" {
				t.Error("Cache-Control header not set")
			}
		})
	}
}

func TestHealthHandler_Details(t *testing.T) {
	slack := newService(t, "slack")
	tripService(t, slack)
	h := &HealthHandler{
		Services: newSet(t, slack, newService(t, "wordpress")),
		Embeddings: newRegistry(map[embedding.Tier]*stubProvider{
			embedding.TierPrimary:   {name: "openai", healthy: false},
			embedding.TierSecondary: {name: "local-hash", healthy: true},
		}),
		Version: "1.2.3",
	}

	_, resp := serveHealth(t, h, "/health")

	if resp.Version != "1.2.3" {
		t.Errorf("version = %q, want 1.2.3", resp.Version)
	}
	svc := resp.Checks["services"].Details
	if svc["operational"] != float64(1) || svc["degraded"] != float64(1) {
		t.Errorf("service details = %v", svc)
	}
	names, _ := svc["degraded_services"].([]any)
	if len(names) != 1 || names[0] != "slack" {
		t.Errorf("degraded_services = %v, want [slack]", svc["degraded_services"])
	}
	if got := resp.Checks["embeddings"].Details["active_provider"]; got != "local-hash" {
		t.Errorf("active_provider = %v, want local-hash", got)
	}
}

func TestServicesHealthHandler(t *testing.T) {
	slack := newService(t, "slack")
	tripService(t, slack)
	set := newSet(t, newService(t, "wordpress"), slack)

	mux := http.NewServeMux()
	h := &ServicesHealthHandler{Services: set}
	mux.Handle("GET /health/services", h)
	mux.Handle("GET /health/services/{name}", h)

	t.Run("list sorted by name", func(t *testing.T) {
		w := httptest.NewRecorder()
		mux.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health/services", nil))
		if w.Code != http.StatusOK {
			t.Fatalf("code = %d, want 200", w.Code)
		}
		var got []service.Health
		if err := json.NewDecoder(w.Body).Decode(&got); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if len(got) != 2 || got[0].ServiceName != "slack" || got[1].ServiceName != "wordpress" {
			t.Fatalf("services = %+v", got)
		}
		if got[0].Status != service.StatusDegraded || got[0].CircuitBreaker.State != "open" {
			t.Errorf("slack = %+v, want degraded/open", got[0])
		}
		if got[0].Stats.LastError == "" {
			t.Error("slack last_error is empty")
		}
	})

	t.Run("single", func(t *testing.T) {
		w := httptest.NewRecorder()
		mux.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health/services/wordpress", nil))
		if w.Code != http.StatusOK {
			t.Fatalf("code = %d, want 200", w.Code)
		}
		var got service.Health
		if err := json.NewDecoder(w.Body).Decode(&got); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if got.ServiceName != "wordpress" || got.Status != service.StatusOperational {
			t.Errorf("health = %+v", got)
		}
	})

	t.Run("unknown", func(t *testing.T) {
		w := httptest.NewRecorder()
		mux.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health/services/acuity", nil))
		if w.Code != http.StatusNotFound {
			t.Fatalf("code = %d, want 404", w.Code)
		}
		var body map[string]string
		if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if body["error"] == "internal server error" || body["error"] == "" {
			t.Errorf("error = %q, want the lookup message", body["error"])
		}
	})

	t.Run("nil set", func(t *testing.T) {
		w := httptest.NewRecorder()
		(&ServicesHealthHandler{}).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health/services", nil))
		if w.Code != http.StatusOK {
			t.Errorf("code = %d, want 200", w.Code)
		}
	})
}

func TestEmbeddingsHealthHandler(t *testing.T) {
	tests := []struct {
		name       string
		registry   *embedding.Registry
		wantCode   int
		wantStatus string
		wantTiers  int
	}{
		{
			name:       "not configured",
			wantCode:   http.StatusOK,
			wantStatus: StatusNotConfigured,
		},
		{
			name:       "empty registry",
			registry:   newRegistry(nil),
			wantCode:   http.StatusOK,
			wantStatus: StatusNotConfigured,
		},
		{
			name: "fallback healthy",
			registry: newRegistry(map[embedding.Tier]*stubProvider{
				embedding.TierPrimary:  {name: "openai", healthy: false},
				embedding.TierFallback: {name: "local-hash", healthy: true},
			}),
			wantCode:   http.StatusOK,
			wantStatus: StatusHealthy,
			wantTiers:  2,
		},
		{
			name: "none healthy",
			registry: newRegistry(map[embedding.Tier]*stubProvider{
				embedding.TierPrimary: {name: "openai", healthy: false},
			}),
			wantCode:   http.StatusServiceUnavailable,
			wantStatus: StatusUnhealthy,
			wantTiers:  1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			(&EmbeddingsHealthHandler{Registry: tt.registry}).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health/embeddings", nil))

			if w.Code != tt.wantCode {
				t.Errorf("code = %d, want %d", w.Code, tt.wantCode)
			}
			var resp EmbeddingsHealthResponse
			if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if resp.Status != tt.wantStatus {
				t.Errorf("status = %q, want %q", resp.Status, tt.wantStatus)
			}
			if len(resp.Tiers) != tt.wantTiers {
				t.Errorf("tiers = %d, want %d", len(resp.Tiers), tt.wantTiers)
			}
		})
	}
}

func TestLiveHandler(t *testing.T) {
	w := httptest.NewRecorder()
	LiveHandler{}.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/livez", nil))

	if w.Code != http.StatusOK {
		t.Errorf("code = %d, want 200", w.Code)
	}
	if w.Body.String() != "alive" {
		t.Errorf("body = %q, want alive", w.Body.String())
	}
}

func TestReadyHandler(t *testing.T) {
	ready := &atomic.Bool{}
	h := ReadyHandler{Ready: ready}

	serve := func() (int, string) {
		w := httptest.NewRecorder()
		h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/readyz", nil))
		var body map[string]string
		_ = json.NewDecoder(w.Body).Decode(&body)
		return w.Code, body["status"]
	}

	if code, status := serve(); code != http.StatusServiceUnavailable || status != "not ready" {
		t.Errorf("before ready: %d %q, want 503 \"not ready\"", code, status)
	}

	ready.Store(true)
	if code, status := serve(); code != http.StatusOK || status != "ok" {
		t.Errorf("after ready: %d %q, want 200 \"ok\"", code, status)
	}

	w := httptest.NewRecorder()
	ReadyHandler{}.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if w.Code != http.StatusOK {
		t.Errorf("nil Ready: code = %d, want 200", w.Code)
	}
}
