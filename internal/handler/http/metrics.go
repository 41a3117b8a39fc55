package http

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"opsglue/internal/handler/http/pathutil"
	"opsglue/internal/observability/metrics"
)

// MetricsMiddleware records request count, latency, in-flight requests and
// response size. Paths are normalized to keep label cardinality bounded.
func MetricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		metrics.HTTPRequestsInFlight.Inc()
		defer metrics.HTTPRequestsInFlight.Dec()

		path := pathutil.NormalizePath(r.URL.Path)
		rec := newResponseRecorder(w)

		start := time.Now()
		next.ServeHTTP(rec, r)
		duration := time.Since(start).Seconds()

		status := strconv.Itoa(rec.status)
		metrics.HTTPRequestsTotal.WithLabelValues(r.Method, path, status).Inc()
		metrics.HTTPRequestDuration.WithLabelValues(r.Method, path, status).Observe(duration)
		metrics.HTTPResponseSize.WithLabelValues(r.Method, path).Observe(float64(rec.bytes))
	})
}

// MetricsHandler returns the Prometheus scrape handler.
func MetricsHandler() http.Handler {
	return promhttp.Handler()
}
