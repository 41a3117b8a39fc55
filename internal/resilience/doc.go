// Package resilience provides the fault tolerance layer shared by every outbound integration.
// It defines the error taxonomy used by its subpackages; the patterns themselves live in:
//
//   - result: the uniform success/data/error/meta envelope returned by every call
//   - stats: per-service connection counters and response timings
//   - circuitbreaker: a consecutive-failure circuit breaker with a single half-open probe
//   - retry: backoff policy and the executor that ties breaker, stats and retries together
//
// Usage Example:
//
//	breaker := circuitbreaker.New(circuitbreaker.Config{
//	    Name:             "notion",
//	    Enabled:          true,
//	    FailureThreshold: 5,
//	    RecoveryTimeout:  30 * time.Second,
//	})
//	executor := retry.NewExecutor("notion", retry.DefaultPolicy(), breaker, stats.New(time.Now()))
//	env := executor.Execute(ctx, func(ctx context.Context) (map[string]any, error) {
//	    return callExternalService(ctx)
//	})
//	if !env.Success {
//	    slog.Warn("call failed", slog.String("error", env.Error))
//	}
package resilience
