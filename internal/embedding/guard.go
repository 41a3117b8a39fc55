package embedding

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/sony/gobreaker"
)

// GuardConfig configures the per-tier breaker.
type GuardConfig struct {
	// Threshold is the consecutive failure count that opens the guard.
	Threshold uint32

	// Timeout is how long an open guard rejects calls before one trial.
	Timeout time.Duration
}

// DefaultGuardConfig returns the default guard settings: 5 failures, 60s open.
func DefaultGuardConfig() GuardConfig {
	return GuardConfig{
		Threshold: 5,
		Timeout:   60 * time.Second,
	}
}

// newGuard creates the breaker for one provider tier.
func newGuard(name string, cfg GuardConfig, logger *slog.Logger) *gobreaker.CircuitBreaker {
	if cfg.Threshold == 0 {
		cfg.Threshold = DefaultGuardConfig().Threshold
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultGuardConfig().Timeout
	}

	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.Threshold
		},
		// A caller giving up is not a provider failure.
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("embedding provider guard state changed",
				slog.String("provider", name),
				slog.String("from", from.String()),
				slog.String("to", to.String()))
		},
	})
}

// guardRejected reports whether err came from the guard rather than the provider.
func guardRejected(err error) bool {
	return errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests)
}
