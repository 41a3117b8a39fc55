// Package retry provides retry logic with exponential backoff and jitter.
// It helps handle transient failures gracefully by automatically retrying failed operations.
package retry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"math/rand/v2"
	"net"
	"net/http"
	"syscall"
	"time"
)

// Jitter band applied to every backoff delay: the multiplier lies in [JitterMin, JitterMax).
const (
	JitterMin = 0.75
	JitterMax = 1.25
)

// Policy holds the per-call retry configuration.
type Policy struct {
	// MaxRetries is the number of retries after the first attempt
	MaxRetries int

	// BaseDelay is the delay before the first retry (before jitter)
	BaseDelay time.Duration

	// MaxDelay caps every delay between attempts
	MaxDelay time.Duration

	// Timeout bounds a single attempt
	Timeout time.Duration
}

// DefaultPolicy returns the default retry policy.
func DefaultPolicy() Policy {
	return Policy{
		MaxRetries: 3,
		BaseDelay:  1 * time.Second,
		MaxDelay:   60 * time.Second,
		Timeout:    30 * time.Second,
	}
}

// Attempts returns the total number of attempts the policy allows.
func (p Policy) Attempts() int {
	if p.MaxRetries < 0 {
		return 1
	}
	return p.MaxRetries + 1
}

// Validate checks policy correctness.
func (p Policy) Validate() error {
	if p.MaxRetries < 0 {
		return fmt.Errorf("max retries must be non-negative, got %d", p.MaxRetries)
	}
	if p.BaseDelay < 0 {
		return fmt.Errorf("base delay must be non-negative, got %v", p.BaseDelay)
	}
	if p.MaxDelay < p.BaseDelay {
		return fmt.Errorf("max delay (%v) must be >= base delay (%v)", p.MaxDelay, p.BaseDelay)
	}
	if p.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive, got %v", p.Timeout)
	}
	return nil
}

// Backoff returns the delay after the given failed attempt (1-based):
//
//	min(MaxDelay, jitter * min(MaxDelay, BaseDelay * 2^(attempt-1)))
//
// jitter is clamped into [JitterMin, JitterMax).
func (p Policy) Backoff(attempt int, jitter float64) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	if jitter < JitterMin {
		jitter = JitterMin
	}
	if jitter >= JitterMax {
		jitter = math.Nextafter(JitterMax, 0)
	}

	exp := float64(p.BaseDelay) * math.Pow(2, float64(attempt-1))
	capped := math.Min(exp, float64(p.MaxDelay))

	delay := time.Duration(capped * jitter)
	if delay > p.MaxDelay {
		delay = p.MaxDelay
	}
	return delay
}

// Jitter draws a multiplier uniformly from [JitterMin, JitterMax).
func Jitter() float64 {
	// #nosec G404 -- Using math/rand is acceptable for jitter calculation.
	// Cryptographic randomness is not required for retry backoff jitter.
	return JitterMin + rand.Float64()*(JitterMax-JitterMin)
}

// Sleep waits for d or until ctx is done, whichever comes first.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// WithBackoff executes fn with retry logic and jittered exponential backoff.
// Unlike Executor it filters errors through IsRetryable and returns a plain error,
// which suits adapters that sit behind their own fallback logic.
func WithBackoff(ctx context.Context, policy Policy, fn func() error) error {
	var lastErr error
	attempts := policy.Attempts()

	for attempt := 1; attempt <= attempts; attempt++ {
		lastErr = fn()

		if lastErr == nil {
			if attempt > 1 {
				slog.Info("operation succeeded after retry",
					slog.Int("attempt", attempt))
			}
			return nil
		}

		if !IsRetryable(lastErr) {
			slog.Warn("non-retryable error, aborting",
				slog.Int("attempt", attempt),
				slog.Any("error", lastErr))
			return lastErr
		}

		if attempt == attempts {
			break
		}

		delay := policy.Backoff(attempt, Jitter())
		slog.Warn("operation failed, retrying",
			slog.Int("attempt", attempt),
			slog.Int("max_attempts", attempts),
			slog.Duration("delay", delay),
			slog.Any("error", lastErr))

		if err := Sleep(ctx, delay); err != nil {
			return fmt.Errorf("retry aborted: %w", err)
		}
	}

	return fmt.Errorf("max retry attempts (%d) exceeded: %w", attempts, lastErr)
}

// IsRetryable determines if an error is worth retrying.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	// Context errors are not retryable
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	// Network errors (timeout)
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	// Syscall errors
	if errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.ETIMEDOUT) ||
		errors.Is(err, syscall.ENETUNREACH) {
		return true
	}

	// HTTP status codes
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		// 5xx server errors are retryable
		if httpErr.StatusCode >= 500 && httpErr.StatusCode < 600 {
			return true
		}
		// 429 Too Many Requests is retryable
		if httpErr.StatusCode == http.StatusTooManyRequests {
			return true
		}
		// 408 Request Timeout is retryable
		if httpErr.StatusCode == http.StatusRequestTimeout {
			return true
		}
	}

	return false
}

// HTTPError represents an HTTP error with status code.
type HTTPError struct {
	StatusCode int
	Message    string
}

// Error implements the error interface.
func (e *HTTPError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Message)
}
