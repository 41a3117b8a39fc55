// Package circuitbreaker provides the circuit breaker that guards outbound service calls.
// It counts consecutive failures, opens after a threshold is reached, and lets exactly
// one half-open probe through once the recovery timeout has elapsed.
package circuitbreaker

import (
	"log/slog"
	"sync"
	"time"
)

// State represents the logical circuit breaker state.
type State int

const (
	// StateClosed means calls flow normally.
	StateClosed State = iota
	// StateOpen means calls are rejected until the recovery timeout elapses.
	StateOpen
	// StateHalfOpen means the recovery timeout elapsed and a single probe may run.
	StateHalfOpen
)

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// Config holds the configuration for a circuit breaker.
type Config struct {
	// Name is the circuit breaker name for logging and metrics
	Name string

	// Enabled turns the breaker on. A disabled breaker permits every call and
	// ignores recorded outcomes.
	Enabled bool

	// FailureThreshold is the number of consecutive failures that opens the circuit
	FailureThreshold int

	// RecoveryTimeout is how long the circuit stays open before a probe is allowed
	RecoveryTimeout time.Duration

	// OnStateChange is called after every state transition, outside the lock.
	OnStateChange func(name string, from, to State)
}

// DefaultConfig returns the default configuration. Breakers are disabled unless
// explicitly turned on.
func DefaultConfig(name string) Config {
	return Config{
		Name:             name,
		Enabled:          false,
		FailureThreshold: 5,
		RecoveryTimeout:  30 * time.Second,
	}
}

// Decision is the outcome of Allow.
type Decision struct {
	// Permit reports whether the call may proceed.
	Permit bool
	// RetryAfter is how long the caller should wait before trying again when denied.
	RetryAfter time.Duration
	// Probe is true when the permitted call is the half-open trial.
	Probe bool
}

// Snapshot is a read-only view of the breaker for health dashboards.
type Snapshot struct {
	Enabled             bool    `json:"enabled"`
	State               string  `json:"state"`
	ConsecutiveFailures int     `json:"consecutive_failures"`
	FailureThreshold    int     `json:"failure_threshold"`
	RecoveryTimeout     float64 `json:"recovery_timeout"`
}

// Breaker implements a consecutive-failure circuit breaker. It is safe for
// concurrent use.
type Breaker struct {
	config Config

	mu                  sync.Mutex
	isOpen              bool
	consecutiveFailures int
	lastFailure         time.Time
	probing             bool
}

type transition struct {
	from, to State
}

// New creates a new circuit breaker with the given configuration.
func New(cfg Config) *Breaker {
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = 5
	}
	if cfg.RecoveryTimeout <= 0 {
		cfg.RecoveryTimeout = 30 * time.Second
	}
	if cfg.OnStateChange == nil {
		cfg.OnStateChange = func(name string, from, to State) {
			slog.Warn("circuit breaker state changed",
				slog.String("circuit", name),
				slog.String("from", from.String()),
				slog.String("to", to.String()))
		}
	}

	return &Breaker{config: cfg}
}

// Name returns the name of the circuit breaker.
func (b *Breaker) Name() string {
	return b.config.Name
}

// Enabled reports whether the breaker guards calls at all.
func (b *Breaker) Enabled() bool {
	return b.config.Enabled
}

// Config returns the breaker configuration.
func (b *Breaker) Config() Config {
	return b.config
}

// Allow reports whether a call may proceed at now.
//
// While open and within the recovery timeout the call is denied with the remaining
// cool-down. Once the timeout has elapsed exactly one probe is permitted; further
// calls are denied until that probe's outcome is recorded.
func (b *Breaker) Allow(now time.Time) Decision {
	if !b.config.Enabled {
		return Decision{Permit: true}
	}

	b.mu.Lock()
	if !b.isOpen {
		b.mu.Unlock()
		return Decision{Permit: true}
	}

	elapsed := now.Sub(b.lastFailure)
	if elapsed <= b.config.RecoveryTimeout {
		b.mu.Unlock()
		return Decision{RetryAfter: b.config.RecoveryTimeout - elapsed}
	}

	if b.probing {
		b.mu.Unlock()
		return Decision{}
	}

	b.probing = true
	b.mu.Unlock()

	b.notify([]transition{{from: StateOpen, to: StateHalfOpen}})
	return Decision{Permit: true, Probe: true}
}

// RecordSuccess resets the failure count and closes an open circuit.
func (b *Breaker) RecordSuccess() {
	if !b.config.Enabled {
		return
	}

	b.mu.Lock()
	var changes []transition
	if b.isOpen {
		from := StateOpen
		if b.probing {
			from = StateHalfOpen
		}
		changes = append(changes, transition{from: from, to: StateClosed})
	}
	b.consecutiveFailures = 0
	b.isOpen = false
	b.probing = false
	b.mu.Unlock()

	b.notify(changes)
}

// RecordFailure counts a failure at now and opens the circuit once the
// threshold is reached. A failed probe re-opens the circuit with a fresh timer.
func (b *Breaker) RecordFailure(now time.Time) {
	if !b.config.Enabled {
		return
	}

	b.mu.Lock()
	var changes []transition
	b.consecutiveFailures++
	b.lastFailure = now

	switch {
	case b.probing:
		changes = append(changes, transition{from: StateHalfOpen, to: StateOpen})
		b.probing = false
	case !b.isOpen && b.consecutiveFailures >= b.config.FailureThreshold:
		changes = append(changes, transition{from: StateClosed, to: StateOpen})
	}
	if b.consecutiveFailures >= b.config.FailureThreshold {
		b.isOpen = true
	}
	b.mu.Unlock()

	b.notify(changes)
}

// Reset forces the breaker closed with zero failures. It is the operator override.
func (b *Breaker) Reset() {
	b.mu.Lock()
	var changes []transition
	if b.isOpen {
		changes = append(changes, transition{from: b.stateLocked(time.Now()), to: StateClosed})
	}
	b.isOpen = false
	b.consecutiveFailures = 0
	b.lastFailure = time.Time{}
	b.probing = false
	b.mu.Unlock()

	if b.config.Enabled {
		b.notify(changes)
	}
}

// IsOpen reports whether the circuit is open (including half-open).
func (b *Breaker) IsOpen() bool {
	if !b.config.Enabled {
		return false
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	return b.isOpen
}

// State returns the logical state at now.
func (b *Breaker) State(now time.Time) State {
	if !b.config.Enabled {
		return StateClosed
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	return b.stateLocked(now)
}

// ConsecutiveFailures returns the current failure streak.
func (b *Breaker) ConsecutiveFailures() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.consecutiveFailures
}

// LastFailure returns the time of the most recent recorded failure.
func (b *Breaker) LastFailure() time.Time {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.lastFailure
}

// Snapshot returns the breaker view used by health checks.
func (b *Breaker) Snapshot(now time.Time) Snapshot {
	b.mu.Lock()
	defer b.mu.Unlock()

	state := StateClosed
	if b.config.Enabled {
		state = b.stateLocked(now)
	}

	return Snapshot{
		Enabled:             b.config.Enabled,
		State:               state.String(),
		ConsecutiveFailures: b.consecutiveFailures,
		FailureThreshold:    b.config.FailureThreshold,
		RecoveryTimeout:     b.config.RecoveryTimeout.Seconds(),
	}
}

func (b *Breaker) stateLocked(now time.Time) State {
	if !b.isOpen {
		return StateClosed
	}
	if b.probing || now.Sub(b.lastFailure) > b.config.RecoveryTimeout {
		return StateHalfOpen
	}
	return StateOpen
}

func (b *Breaker) notify(changes []transition) {
	for _, c := range changes {
		if c.from != c.to {
			b.config.OnStateChange(b.config.Name, c.from, c.to)
		}
	}
}
