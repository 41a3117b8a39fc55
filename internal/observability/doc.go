// Package observability groups the logging, metrics and tracing packages used by
// the service clients, the embedding registry and the gateway.
//
// Subpackages:
//   - logging: slog logger construction and context propagation
//   - metrics: Prometheus recorders for calls, circuit breakers and embeddings
//   - tracing: OpenTelemetry provider setup and HTTP middleware
package observability
