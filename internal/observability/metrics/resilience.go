package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"opsglue/internal/resilience/circuitbreaker"
)

// Recorder holds the resilience and embedding metrics.
type Recorder struct {
	attempts      *prometheus.CounterVec
	attemptTime   *prometheus.HistogramVec
	calls         *prometheus.CounterVec
	callTime      *prometheus.HistogramVec
	circuitState  *prometheus.GaugeVec
	circuitResets *prometheus.CounterVec

	embeddingRequests  *prometheus.CounterVec
	embeddingDuration  *prometheus.HistogramVec
	embeddingTexts     *prometheus.CounterVec
	embeddingFallbacks *prometheus.CounterVec
	providerHealthy    *prometheus.GaugeVec
}

var (
	defaultOnce     sync.Once
	defaultRecorder *Recorder
)

// Default returns the recorder registered on the default Prometheus registry.
func Default() *Recorder {
	defaultOnce.Do(func() {
		defaultRecorder = NewRecorder(prometheus.DefaultRegisterer)
	})
	return defaultRecorder
}

// NewRecorder registers a fresh set of metrics on reg.
func NewRecorder(reg prometheus.Registerer) *Recorder {
	f := promauto.With(reg)

	return &Recorder{
		attempts: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "service_call_attempts_total",
				Help: "Total number of outbound service call attempts",
			},
			[]string{"service", "result"},
		),
		attemptTime: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "service_call_attempt_duration_seconds",
				Help:    "Duration of individual outbound attempts",
				Buckets: []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
			},
			[]string{"service"},
		),
		calls: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "service_calls_total",
				Help: "Total number of outbound service calls by final outcome",
			},
			[]string{"service", "outcome"},
		),
		callTime: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "service_call_duration_seconds",
				Help:    "End-to-end duration of outbound calls including retries",
				Buckets: prometheus.ExponentialBuckets(0.01, 2, 14),
			},
			[]string{"service"},
		),
		circuitState: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "service_circuit_breaker_state",
				Help: "Circuit breaker state (0=closed, 1=open, 2=half-open)",
			},
			[]string{"service"},
		),
		circuitResets: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "service_circuit_breaker_resets_total",
				Help: "Manual circuit breaker resets",
			},
			[]string{"service"},
		),
		embeddingRequests: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "embedding_requests_total",
				Help: "Embedding requests by provider and status",
			},
			[]string{"provider", "status"},
		),
		embeddingDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "embedding_request_duration_seconds",
				Help:    "Embedding request duration by provider",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"provider"},
		),
		embeddingTexts: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "embedding_texts_total",
				Help: "Texts embedded by provider",
			},
			[]string{"provider"},
		),
		embeddingFallbacks: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "embedding_fallbacks_total",
				Help: "Fallbacks from one embedding provider to the next",
			},
			[]string{"from", "to"},
		),
		providerHealthy: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "embedding_provider_healthy",
				Help: "Whether the embedding provider passed its last health check (1) or not (0)",
			},
			[]string{"provider"},
		),
	}
}

// RecordAttempt records one outbound attempt.
func (r *Recorder) RecordAttempt(service string, success bool, duration time.Duration) {
	result := "failure"
	if success {
		result = "success"
	}
	r.attempts.WithLabelValues(service, result).Inc()
	r.attemptTime.WithLabelValues(service).Observe(duration.Seconds())
}

// RecordCall records the final outcome of an outbound call.
func (r *Recorder) RecordCall(service, outcome string, duration time.Duration) {
	r.calls.WithLabelValues(service, outcome).Inc()
	r.callTime.WithLabelValues(service).Observe(duration.Seconds())
}

// SetCircuitState publishes the breaker state for a service.
func (r *Recorder) SetCircuitState(service string, state circuitbreaker.State) {
	r.circuitState.WithLabelValues(service).Set(float64(state))
}

// RecordCircuitReset counts an operator reset.
func (r *Recorder) RecordCircuitReset(service string) {
	r.circuitResets.WithLabelValues(service).Inc()
}
