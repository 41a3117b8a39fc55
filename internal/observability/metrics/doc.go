// Package metrics provides the Prometheus metrics exposed by the gateway.
//
// Metrics are grouped by concern:
//   - registry.go: inbound HTTP metrics registered on the default registry
//   - resilience.go: per-service call, attempt and circuit state metrics
//   - embedding.go: embedding provider request, fallback and health metrics
//
// Recorder values are registered against an explicit prometheus.Registerer so
// tests can use a private registry; Default returns the process-wide recorder
// registered on prometheus.DefaultRegisterer.
//
//	rec := metrics.Default()
//	exec := retry.NewExecutor("notion", policy, breaker, st, retry.WithMetrics(rec))
package metrics
