package resilience

import (
	"errors"
	"fmt"
	"time"
)

// Sentinel errors for resilience operations.
var (
	// ErrCircuitOpen indicates the circuit breaker rejected the call without attempting it.
	ErrCircuitOpen = errors.New("resilience: circuit breaker is open")

	// ErrConfiguration indicates a service is misconfigured (e.g. a missing credential).
	// Configuration errors are surfaced immediately and never retried.
	ErrConfiguration = errors.New("resilience: configuration error")

	// ErrRetriesExhausted indicates every allowed attempt failed.
	ErrRetriesExhausted = errors.New("resilience: max retries exceeded")

	// ErrProviderUnavailable indicates a single provider was unhealthy or failed.
	ErrProviderUnavailable = errors.New("resilience: provider unavailable")

	// ErrCanceled indicates the caller's context ended before the call completed.
	ErrCanceled = errors.New("resilience: request canceled")
)

// CircuitOpenMessage is the envelope error reported when the breaker denies a call.
const CircuitOpenMessage = "Service temporarily unavailable (circuit open)"

// TransientCallError wraps a failure observed during a single attempt.
// Every attempt failure is transient: it counts toward retries and breaker failures.
type TransientCallError struct {
	Attempt int
	Err     error
}

// Error returns the underlying failure message, which is what callers see in envelopes.
func (e *TransientCallError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("attempt %d failed", e.Attempt)
	}
	return e.Err.Error()
}

// Unwrap returns the underlying error.
func (e *TransientCallError) Unwrap() error {
	return e.Err
}

// CircuitOpenError is synthesized when the breaker denies a call.
type CircuitOpenError struct {
	RetryAfter time.Duration
}

// Error implements the error interface.
func (e *CircuitOpenError) Error() string {
	return CircuitOpenMessage
}

// Is reports whether target is ErrCircuitOpen.
func (e *CircuitOpenError) Is(target error) bool {
	return target == ErrCircuitOpen
}

// ConfigurationError reports a missing or invalid setting.
type ConfigurationError struct {
	Reason string
}

// NewConfigurationError creates a ConfigurationError with a formatted reason.
func NewConfigurationError(format string, args ...any) *ConfigurationError {
	return &ConfigurationError{Reason: fmt.Sprintf(format, args...)}
}

// Error implements the error interface.
func (e *ConfigurationError) Error() string {
	return "configuration error: " + e.Reason
}

// Is reports whether target is ErrConfiguration.
func (e *ConfigurationError) Is(target error) bool {
	return target == ErrConfiguration
}

// ExhaustedRetriesError is the terminal failure after every attempt failed.
// Its message is the last attempt's message so envelopes carry the real cause.
type ExhaustedRetriesError struct {
	Attempts int
	Last     error
}

// Error implements the error interface.
func (e *ExhaustedRetriesError) Error() string {
	if e.Last == nil {
		return fmt.Sprintf("max retry attempts (%d) exceeded", e.Attempts)
	}
	return e.Last.Error()
}

// Unwrap exposes both the sentinel and the last attempt error.
func (e *ExhaustedRetriesError) Unwrap() []error {
	return []error{ErrRetriesExhausted, e.Last}
}

// ProviderUnavailableError describes why a provider tier was skipped.
type ProviderUnavailableError struct {
	Provider string
	Tier     int
	Reason   string
	Err      error
}

// Error implements the error interface.
func (e *ProviderUnavailableError) Error() string {
	msg := fmt.Sprintf("provider %s (tier %d) unavailable: %s", e.Provider, e.Tier, e.Reason)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap exposes both the sentinel and the underlying error.
func (e *ProviderUnavailableError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrProviderUnavailable}
	}
	return []error{ErrProviderUnavailable, e.Err}
}
