package embedding

import (
	"context"
	"fmt"
	"time"
)

// Tier is a provider priority rank. Lower tiers are tried first.
type Tier int

const (
	TierPrimary   Tier = 1
	TierSecondary Tier = 2
	TierFallback  Tier = 3
)

// String returns the tier name.
func (t Tier) String() string {
	switch t {
	case TierPrimary:
		return "primary"
	case TierSecondary:
		return "secondary"
	case TierFallback:
		return "fallback"
	default:
		return fmt.Sprintf("tier-%d", int(t))
	}
}

// HealthStatus is a provider's self-reported health.
type HealthStatus struct {
	Healthy   bool           `json:"healthy"`
	Provider  string         `json:"provider"`
	LatencyMs float64        `json:"latency_ms"`
	Error     string         `json:"error,omitempty"`
	Details   map[string]any `json:"details,omitempty"`
	CheckedAt time.Time      `json:"checked_at"`
}

// Provider is the capability set every embedding backend implements.
type Provider interface {
	// Name identifies the provider in results, logs and metrics.
	Name() string

	// Dimensions is the length of every vector the provider returns.
	Dimensions() int

	// GetEmbeddings returns one vector per text, in input order.
	GetEmbeddings(ctx context.Context, texts []string) ([][]float32, error)

	// HealthCheck reports whether the provider can currently serve requests.
	HealthCheck(ctx context.Context) (*HealthStatus, error)
}

// healthy interprets a HealthCheck reply. An error or a nil status is unhealthy.
func healthy(status *HealthStatus, err error) bool {
	return err == nil && status != nil && status.Healthy
}
