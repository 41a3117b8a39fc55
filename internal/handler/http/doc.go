// Package http serves the gateway's operational HTTP surface: liveness and
// health endpoints for outbound services and embedding providers, the
// Prometheus metrics endpoint, and the operator circuit breaker reset. It also
// provides the middleware chain every route runs behind.
package http
