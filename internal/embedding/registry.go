package embedding

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"opsglue/internal/observability/metrics"
	"opsglue/internal/observability/tracing"
	"opsglue/internal/resilience"
)

// Result is the outcome of Registry.GetEmbeddings. On failure Provider is empty
// and Embeddings is nil.
type Result struct {
	Provider   string      `json:"provider"`
	Embeddings [][]float32 `json:"embeddings"`
	Success    bool        `json:"success"`
}

// SingleResult is the outcome of Registry.GetEmbedding.
type SingleResult struct {
	Provider  string    `json:"provider"`
	Embedding []float32 `json:"embedding"`
	Success   bool      `json:"success"`
}

// TierHealth is one row of Registry.HealthCheckAll.
type TierHealth struct {
	Tier       Tier          `json:"tier"`
	TierName   string        `json:"tier_name"`
	Provider   string        `json:"provider"`
	Dimensions int           `json:"dimensions"`
	Healthy    bool          `json:"healthy"`
	Guard      string        `json:"guard"`
	Status     *HealthStatus `json:"status,omitempty"`
	Error      string        `json:"error,omitempty"`
}

// Metrics receives registry measurements.
type Metrics interface {
	RecordEmbeddingRequest(provider, status string, texts int, duration time.Duration)
	RecordEmbeddingFallback(from, to string)
	SetProviderHealthy(provider string, healthy bool)
}

type noopMetrics struct{}

func (noopMetrics) RecordEmbeddingRequest(string, string, int, time.Duration) {}
func (noopMetrics) RecordEmbeddingFallback(string, string)                    {}
func (noopMetrics) SetProviderHealthy(string, bool)                           {}

// RegistryOption configures a Registry.
type RegistryOption func(*Registry)

// WithLogger sets the registry logger.
func WithLogger(logger *slog.Logger) RegistryOption {
	return func(r *Registry) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithMetrics sets the metrics sink.
func WithMetrics(m Metrics) RegistryOption {
	return func(r *Registry) {
		if m != nil {
			r.metrics = m
		}
	}
}

// WithGuardConfig sets the per-tier guard configuration.
func WithGuardConfig(cfg GuardConfig) RegistryOption {
	return func(r *Registry) {
		r.guardCfg = cfg
	}
}

type entry struct {
	tier     Tier
	provider Provider
	guard    *gobreaker.CircuitBreaker
}

// Registry holds at most one provider per tier and falls back across tiers in
// ascending order. It is safe for concurrent use; Register may run while
// requests are in flight.
type Registry struct {
	logger   *slog.Logger
	metrics  Metrics
	tracer   trace.Tracer
	guardCfg GuardConfig

	mu      sync.RWMutex
	entries map[Tier]entry
}

// NewRegistry creates an empty registry.
func NewRegistry(opts ...RegistryOption) *Registry {
	r := &Registry{
		logger:   slog.Default(),
		metrics:  noopMetrics{},
		tracer:   tracing.GetTracer(),
		guardCfg: DefaultGuardConfig(),
		entries:  make(map[Tier]entry),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.logger = r.logger.With(slog.String("component", "embedding_registry"))
	return r
}

// Register places p at tier, replacing any previous provider and its guard.
// A nil provider removes the tier.
func (r *Registry) Register(tier Tier, p Provider) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if p == nil {
		delete(r.entries, tier)
		r.logger.Info("embedding provider unregistered", slog.String("tier", tier.String()))
		return
	}

	r.entries[tier] = entry{
		tier:     tier,
		provider: p,
		guard:    newGuard(p.Name(), r.guardCfg, r.logger),
	}
	r.logger.Info("embedding provider registered",
		slog.String("tier", tier.String()),
		slog.String("provider", p.Name()),
		slog.Int("dimensions", p.Dimensions()))
}

// Provider returns the provider registered at tier.
func (r *Registry) Provider(tier Tier) (Provider, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[tier]
	return e.provider, ok
}

// Tiers returns the registered tiers in ascending order.
func (r *Registry) Tiers() []Tier {
	r.mu.RLock()
	defer r.mu.RUnlock()

	tiers := make([]Tier, 0, len(r.entries))
	for t := range r.entries {
		tiers = append(tiers, t)
	}
	slices.Sort(tiers)
	return tiers
}

// ordered snapshots the entries so requests run without holding the lock.
func (r *Registry) ordered() []entry {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]entry, 0, len(r.entries))
	for _, e := range r.entries {
		out = append(out, e)
	}
	slices.SortFunc(out, func(a, b entry) int { return int(a.tier) - int(b.tier) })
	return out
}

// GetEmbeddings embeds texts with the first tier that is healthy and succeeds.
// Unhealthy tiers and tiers whose guard is open are skipped without calling
// GetEmbeddings. A provider error moves on to the next tier.
func (r *Registry) GetEmbeddings(ctx context.Context, texts []string) Result {
	ctx, span := r.tracer.Start(ctx, "embedding.get_embeddings",
		trace.WithAttributes(attribute.Int("embedding.texts", len(texts))))
	defer span.End()

	var firstMiss string

	for _, e := range r.ordered() {
		if err := ctx.Err(); err != nil {
			r.logger.Warn("embedding request canceled", slog.Any("error", err))
			span.SetStatus(codes.Error, err.Error())
			return Result{}
		}

		name := e.provider.Name()
		vectors, err := r.try(ctx, e, texts)
		if err != nil {
			r.logger.Warn("embedding provider unavailable, trying next tier", slog.Any("error", err))
			span.AddEvent("provider.unavailable", trace.WithAttributes(
				attribute.String("provider", name),
				attribute.String("error", err.Error())))
			if firstMiss == "" {
				firstMiss = name
			}
			continue
		}

		if firstMiss != "" {
			r.metrics.RecordEmbeddingFallback(firstMiss, name)
			r.logger.Info("embedding served by fallback provider",
				slog.String("from", firstMiss),
				slog.String("provider", name),
				slog.String("tier", e.tier.String()))
		}
		span.SetAttributes(attribute.String("embedding.provider", name))
		span.SetStatus(codes.Ok, "")
		return Result{Provider: name, Embeddings: vectors, Success: true}
	}

	r.logger.Error("all embedding providers failed", slog.Int("texts", len(texts)))
	span.SetStatus(codes.Error, "all embedding providers failed")
	return Result{}
}

// GetEmbedding embeds a single text.
func (r *Registry) GetEmbedding(ctx context.Context, text string) SingleResult {
	res := r.GetEmbeddings(ctx, []string{text})
	if !res.Success {
		return SingleResult{}
	}
	return SingleResult{Provider: res.Provider, Embedding: res.Embeddings[0], Success: true}
}

// try runs one tier: guard, health check, then the call itself.
func (r *Registry) try(ctx context.Context, e entry, texts []string) ([][]float32, error) {
	name := e.provider.Name()
	unavailable := func(reason string, err error) error {
		return &resilience.ProviderUnavailableError{Provider: name, Tier: int(e.tier), Reason: reason, Err: err}
	}

	if e.guard.State() == gobreaker.StateOpen {
		r.metrics.RecordEmbeddingRequest(name, metrics.EmbeddingStatusSkipped, len(texts), 0)
		return nil, unavailable("guard open", nil)
	}

	status, err := e.provider.HealthCheck(ctx)
	ok := healthy(status, err)
	r.metrics.SetProviderHealthy(name, ok)
	if !ok {
		r.metrics.RecordEmbeddingRequest(name, metrics.EmbeddingStatusSkipped, len(texts), 0)
		if err == nil && status != nil && status.Error != "" {
			err = errors.New(status.Error)
		}
		return nil, unavailable("unhealthy", err)
	}

	start := time.Now()
	out, err := e.guard.Execute(func() (interface{}, error) {
		return embedExactly(ctx, e.provider, texts)
	})
	elapsed := time.Since(start)

	if err != nil {
		if guardRejected(err) {
			r.metrics.RecordEmbeddingRequest(name, metrics.EmbeddingStatusSkipped, len(texts), 0)
			return nil, unavailable("guard open", err)
		}
		r.metrics.RecordEmbeddingRequest(name, metrics.EmbeddingStatusError, len(texts), elapsed)
		return nil, unavailable("request failed", err)
	}

	r.metrics.RecordEmbeddingRequest(name, metrics.EmbeddingStatusSuccess, len(texts), elapsed)
	return out.([][]float32), nil
}

// HealthCheckAll probes every tier concurrently and returns one row per tier in
// ascending order. Probe failures are reported in the rows, never as an error.
func (r *Registry) HealthCheckAll(ctx context.Context) []TierHealth {
	entries := r.ordered()
	rows := make([]TierHealth, len(entries))

	g, gctx := errgroup.WithContext(ctx)
	for i, e := range entries {
		g.Go(func() error {
			status, err := e.provider.HealthCheck(gctx)
			ok := healthy(status, err)
			r.metrics.SetProviderHealthy(e.provider.Name(), ok)

			row := TierHealth{
				Tier:       e.tier,
				TierName:   e.tier.String(),
				Provider:   e.provider.Name(),
				Dimensions: e.provider.Dimensions(),
				Healthy:    ok,
				Guard:      e.guard.State().String(),
				Status:     status,
			}
			switch {
			case err != nil:
				row.Error = err.Error()
			case status == nil:
				row.Error = "no health status reported"
			}
			rows[i] = row
			return nil
		})
	}
	_ = g.Wait()

	return rows
}
