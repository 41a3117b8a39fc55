package retry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"opsglue/internal/observability/tracing"
	"opsglue/internal/resilience"
	"opsglue/internal/resilience/circuitbreaker"
	"opsglue/internal/resilience/result"
	"opsglue/internal/resilience/stats"
)

// Call outcomes reported to the MetricsRecorder.
const (
	OutcomeSuccess     = "success"
	OutcomeExhausted   = "exhausted"
	OutcomeCanceled    = "canceled"
	OutcomeCircuitOpen = "circuit_open"
)

// Operation is a single attempt of an external call. It must honor ctx, which
// carries the per-attempt timeout.
type Operation func(ctx context.Context) (map[string]any, error)

// MetricsRecorder receives executor measurements.
type MetricsRecorder interface {
	// RecordAttempt records one attempt and how long it took.
	RecordAttempt(service string, success bool, duration time.Duration)

	// RecordCall records the final outcome of a call.
	RecordCall(service, outcome string, duration time.Duration)
}

type noopRecorder struct{}

func (noopRecorder) RecordAttempt(string, bool, time.Duration) {}
func (noopRecorder) RecordCall(string, string, time.Duration)  {}

// Executor runs operations with retries, guarded by a circuit breaker and
// accounted in connection stats. It is safe for concurrent use.
type Executor struct {
	name    string
	policy  Policy
	breaker *circuitbreaker.Breaker
	stats   *stats.ConnectionStats
	logger  *slog.Logger
	metrics MetricsRecorder
	tracer  trace.Tracer

	now    func() time.Time
	jitter func() float64
	sleep  func(ctx context.Context, d time.Duration) error
}

// ExecutorOption configures an Executor.
type ExecutorOption func(*Executor)

// WithLogger sets the executor logger.
func WithLogger(logger *slog.Logger) ExecutorOption {
	return func(e *Executor) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithMetrics sets the metrics recorder.
func WithMetrics(m MetricsRecorder) ExecutorOption {
	return func(e *Executor) {
		if m != nil {
			e.metrics = m
		}
	}
}

// WithTracer overrides the tracer used for call spans.
func WithTracer(t trace.Tracer) ExecutorOption {
	return func(e *Executor) {
		if t != nil {
			e.tracer = t
		}
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) ExecutorOption {
	return func(e *Executor) {
		if now != nil {
			e.now = now
		}
	}
}

// WithJitter overrides the jitter source.
func WithJitter(jitter func() float64) ExecutorOption {
	return func(e *Executor) {
		if jitter != nil {
			e.jitter = jitter
		}
	}
}

// WithSleeper overrides how the executor waits between attempts.
func WithSleeper(sleep func(ctx context.Context, d time.Duration) error) ExecutorOption {
	return func(e *Executor) {
		if sleep != nil {
			e.sleep = sleep
		}
	}
}

// NewExecutor creates an executor for the named service. A nil breaker behaves as
// a disabled one and nil stats are created on the spot.
func NewExecutor(name string, policy Policy, breaker *circuitbreaker.Breaker, st *stats.ConnectionStats, opts ...ExecutorOption) *Executor {
	e := &Executor{
		name:    name,
		policy:  policy,
		breaker: breaker,
		stats:   st,
		logger:  slog.Default(),
		metrics: noopRecorder{},
		tracer:  tracing.GetTracer(),
		now:     time.Now,
		jitter:  Jitter,
		sleep:   Sleep,
	}
	for _, opt := range opts {
		opt(e)
	}

	if e.breaker == nil {
		e.breaker = circuitbreaker.New(circuitbreaker.DefaultConfig(name))
	}
	if e.stats == nil {
		e.stats = stats.New(e.now())
	}

	return e
}

// Name returns the service name the executor reports under.
func (e *Executor) Name() string {
	return e.name
}

// Policy returns the default policy.
func (e *Executor) Policy() Policy {
	return e.policy
}

// Breaker returns the circuit breaker.
func (e *Executor) Breaker() *circuitbreaker.Breaker {
	return e.breaker
}

// Stats returns the connection stats.
func (e *Executor) Stats() *stats.ConnectionStats {
	return e.stats
}

// Now returns the executor's current time.
func (e *Executor) Now() time.Time {
	return e.now()
}

// Execute runs op under the default policy.
func (e *Executor) Execute(ctx context.Context, op Operation) result.Envelope {
	return e.ExecuteWithPolicy(ctx, e.policy, op)
}

// ExecuteWithPolicy runs op with up to policy.MaxRetries retries.
//
// The breaker is consulted once before the first attempt; a denied call returns
// the circuit-open envelope without touching stats. Every attempt is counted in
// stats, and every failed attempt is recorded on the breaker. Cancelling ctx stops
// the loop, including a pending backoff, and returns a canceled envelope.
func (e *Executor) ExecuteWithPolicy(ctx context.Context, policy Policy, op Operation) result.Envelope {
	callID := uuid.New().String()
	logger := e.logger.With(
		slog.String("service", e.name),
		slog.String("call_id", callID))
	start := e.now()

	ctx, span := e.tracer.Start(ctx, "resilience.execute",
		trace.WithAttributes(
			attribute.String("resilience.service", e.name),
			attribute.String("resilience.call_id", callID),
			attribute.Int("resilience.max_retries", policy.MaxRetries),
		))
	defer span.End()

	if err := ctx.Err(); err != nil {
		return e.canceled(span, logger, start, 0, err)
	}

	decision := e.breaker.Allow(start)
	if !decision.Permit {
		openErr := &resilience.CircuitOpenError{RetryAfter: decision.RetryAfter}
		logger.Warn("circuit breaker open, request rejected",
			slog.Duration("retry_after", decision.RetryAfter))
		span.SetStatus(codes.Error, openErr.Error())
		e.metrics.RecordCall(e.name, OutcomeCircuitOpen, 0)
		return result.Fail(openErr.Error(), map[string]any{
			result.MetaCircuitOpen:       true,
			result.MetaRetryAfterSeconds: decision.RetryAfter.Seconds(),
		})
	}
	if decision.Probe {
		logger.Info("circuit half-open, sending probe")
		span.AddEvent("circuit.probe")
	}

	attempts := policy.Attempts()
	var lastErr error

	for attempt := 1; attempt <= attempts; attempt++ {
		attemptStart := e.now()
		e.stats.RecordAttempt(attemptStart)

		data, err := e.runAttempt(ctx, policy, op)
		elapsed := e.now().Sub(attemptStart)

		if err == nil {
			e.stats.RecordSuccess(elapsed)
			e.breaker.RecordSuccess()
			e.metrics.RecordAttempt(e.name, true, elapsed)
			e.metrics.RecordCall(e.name, OutcomeSuccess, e.now().Sub(start))
			if attempt > 1 {
				logger.Info("operation succeeded after retry",
					slog.Int("attempt", attempt))
			}
			span.SetAttributes(attribute.Int("resilience.attempts", attempt))
			span.SetStatus(codes.Ok, "")
			return result.OK(data)
		}

		lastErr = &resilience.TransientCallError{Attempt: attempt, Err: err}
		failedAt := e.now()
		e.stats.RecordError(err, failedAt)
		e.breaker.RecordFailure(failedAt)
		e.metrics.RecordAttempt(e.name, false, elapsed)
		span.AddEvent("attempt.failed", trace.WithAttributes(
			attribute.Int("attempt", attempt),
			attribute.String("error", err.Error())))

		if ctxErr := ctx.Err(); ctxErr != nil {
			return e.canceled(span, logger, start, attempt, ctxErr)
		}

		if attempt == attempts {
			break
		}

		delay := policy.Backoff(attempt, e.jitter())
		logger.Warn("operation failed, retrying",
			slog.Int("attempt", attempt),
			slog.Int("max_attempts", attempts),
			slog.Duration("delay", delay),
			slog.Any("error", err))

		if sleepErr := e.sleep(ctx, delay); sleepErr != nil {
			return e.canceled(span, logger, start, attempt, sleepErr)
		}
	}

	exhausted := &resilience.ExhaustedRetriesError{Attempts: attempts, Last: lastErr}
	circuitOpen := e.breaker.IsOpen()
	logger.Error("operation failed after retries",
		slog.Int("attempts", attempts),
		slog.Bool("circuit_open", circuitOpen),
		slog.Any("error", lastErr))
	span.SetStatus(codes.Error, exhausted.Error())
	e.metrics.RecordCall(e.name, OutcomeExhausted, e.now().Sub(start))

	return result.Fail(exhausted.Error(), map[string]any{
		result.MetaRetries:     attempts,
		result.MetaCircuitOpen: circuitOpen,
	})
}

// runAttempt executes op under the per-attempt timeout. Nil data becomes an empty map.
func (e *Executor) runAttempt(ctx context.Context, policy Policy, op Operation) (map[string]any, error) {
	attemptCtx := ctx
	if policy.Timeout > 0 {
		var cancel context.CancelFunc
		attemptCtx, cancel = context.WithTimeout(ctx, policy.Timeout)
		defer cancel()
	}

	data, err := op(attemptCtx)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
			return nil, fmt.Errorf("attempt timed out after %v: %w", policy.Timeout, err)
		}
		return nil, err
	}
	if data == nil {
		data = map[string]any{}
	}
	return data, nil
}

func (e *Executor) canceled(span trace.Span, logger *slog.Logger, start time.Time, attempts int, cause error) result.Envelope {
	err := fmt.Errorf("%w: %w", resilience.ErrCanceled, cause)
	logger.Warn("operation canceled",
		slog.Int("attempts", attempts),
		slog.Any("error", cause))
	span.SetStatus(codes.Error, err.Error())
	e.metrics.RecordCall(e.name, OutcomeCanceled, e.now().Sub(start))

	return result.Fail(err.Error(), map[string]any{
		result.MetaCanceled:    true,
		result.MetaRetries:     attempts,
		result.MetaCircuitOpen: e.breaker.IsOpen(),
	})
}
