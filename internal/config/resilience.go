// Package config loads the gateway, resilience and embedding configuration from
// environment variables and the per-service YAML file.
package config

import (
	"fmt"
	"time"

	pkgconfig "opsglue/pkg/config"

	"opsglue/internal/resilience/circuitbreaker"
	"opsglue/internal/resilience/retry"
)

// ResilienceConfig holds the retry and circuit breaker settings for one service.
type ResilienceConfig struct {
	// MaxRetries is the number of retries after the first attempt. Default: 3
	MaxRetries int

	// BaseRetryDelay is the first backoff delay before jitter. Default: 1s
	BaseRetryDelay time.Duration

	// MaxRetryDelay caps every backoff delay. Default: 60s
	MaxRetryDelay time.Duration

	// Timeout bounds a single attempt. Default: 30s
	Timeout time.Duration

	// CircuitBreakerEnabled turns the breaker on. Default: false
	CircuitBreakerEnabled bool

	// FailureThreshold is the consecutive failure count that opens the circuit. Default: 5
	FailureThreshold int

	// RecoveryTimeout is how long an open circuit rejects calls. Default: 30s
	RecoveryTimeout time.Duration
}

// DefaultResilienceConfig returns the built-in defaults.
func DefaultResilienceConfig() ResilienceConfig {
	return ResilienceConfig{
		MaxRetries:            3,
		BaseRetryDelay:        time.Second,
		MaxRetryDelay:         60 * time.Second,
		Timeout:               30 * time.Second,
		CircuitBreakerEnabled: false,
		FailureThreshold:      5,
		RecoveryTimeout:       30 * time.Second,
	}
}

// LoadResilienceConfig loads the process-wide resilience defaults.
//
// Environment variables (durations accept "1.5" seconds or "1500ms"):
//   - RESILIENCE_MAX_RETRIES (default: 3)
//   - RESILIENCE_BASE_RETRY_DELAY (default: 1s)
//   - RESILIENCE_MAX_RETRY_DELAY (default: 60s)
//   - RESILIENCE_TIMEOUT (default: 30s)
//   - RESILIENCE_CIRCUIT_BREAKER_ENABLED (default: false)
//   - RESILIENCE_FAILURE_THRESHOLD (default: 5)
//   - RESILIENCE_RECOVERY_TIMEOUT (default: 30s)
func LoadResilienceConfig() (*ResilienceConfig, error) {
	d := DefaultResilienceConfig()
	cfg := &ResilienceConfig{
		MaxRetries:            pkgconfig.GetEnvInt("RESILIENCE_MAX_RETRIES", d.MaxRetries),
		BaseRetryDelay:        pkgconfig.GetEnvSeconds("RESILIENCE_BASE_RETRY_DELAY", d.BaseRetryDelay),
		MaxRetryDelay:         pkgconfig.GetEnvSeconds("RESILIENCE_MAX_RETRY_DELAY", d.MaxRetryDelay),
		Timeout:               pkgconfig.GetEnvSeconds("RESILIENCE_TIMEOUT", d.Timeout),
		CircuitBreakerEnabled: pkgconfig.GetEnvBool("RESILIENCE_CIRCUIT_BREAKER_ENABLED", d.CircuitBreakerEnabled),
		FailureThreshold:      pkgconfig.GetEnvInt("RESILIENCE_FAILURE_THRESHOLD", d.FailureThreshold),
		RecoveryTimeout:       pkgconfig.GetEnvSeconds("RESILIENCE_RECOVERY_TIMEOUT", d.RecoveryTimeout),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid resilience configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks configuration correctness.
func (c ResilienceConfig) Validate() error {
	if c.MaxRetries < 0 {
		return fmt.Errorf("max_retries must be non-negative, got %d", c.MaxRetries)
	}
	if err := pkgconfig.ValidateNonNegativeDuration(c.BaseRetryDelay); err != nil {
		return fmt.Errorf("base_retry_delay: %w", err)
	}
	if c.MaxRetryDelay < c.BaseRetryDelay {
		return fmt.Errorf("max_retry_delay (%v) must be >= base_retry_delay (%v)", c.MaxRetryDelay, c.BaseRetryDelay)
	}
	if err := pkgconfig.ValidatePositiveDuration(c.Timeout); err != nil {
		return fmt.Errorf("timeout: %w", err)
	}
	if c.FailureThreshold <= 0 {
		return fmt.Errorf("failure_threshold must be positive, got %d", c.FailureThreshold)
	}
	if err := pkgconfig.ValidatePositiveDuration(c.RecoveryTimeout); err != nil {
		return fmt.Errorf("recovery_timeout: %w", err)
	}
	return nil
}

// Policy returns the retry policy.
func (c ResilienceConfig) Policy() retry.Policy {
	return retry.Policy{
		MaxRetries: c.MaxRetries,
		BaseDelay:  c.BaseRetryDelay,
		MaxDelay:   c.MaxRetryDelay,
		Timeout:    c.Timeout,
	}
}

// BreakerConfig returns the circuit breaker configuration for the named service.
func (c ResilienceConfig) BreakerConfig(name string) circuitbreaker.Config {
	return circuitbreaker.Config{
		Name:             name,
		Enabled:          c.CircuitBreakerEnabled,
		FailureThreshold: c.FailureThreshold,
		RecoveryTimeout:  c.RecoveryTimeout,
	}
}
