package http

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"opsglue/internal/embedding"
	"opsglue/internal/resilience/circuitbreaker"
	"opsglue/internal/resilience/retry"
	"opsglue/internal/service"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// newService returns a service whose breaker opens on the first failure.
func newService(t *testing.T, name string) *service.Base {
	t.Helper()
	policy := retry.Policy{MaxRetries: 0, BaseDelay: time.Millisecond, MaxDelay: time.Millisecond, Timeout: time.Second}
	b := service.NewBase(name, policy, circuitbreaker.Config{
		Name:             name,
		Enabled:          true,
		FailureThreshold: 1,
		RecoveryTimeout:  time.Hour,
	}, service.WithLogger(discardLogger()))
	t.Cleanup(func() { _ = b.Close() })
	return b
}

// tripService fails one call so the breaker opens.
func tripService(t *testing.T, b *service.Base) {
	t.Helper()
	env := b.Execute(context.Background(), func(context.Context) (map[string]any, error) {
		return nil, errors.New("upstream down")
	})
	if env.Success {
		t.Fatal("expected failing call")
	}
	if got := b.HealthCheck().Status; got != service.StatusDegraded {
		t.Fatalf("status after trip = %q, want %q", got, service.StatusDegraded)
	}
}

func newSet(t *testing.T, services ...*service.Base) *service.Set {
	t.Helper()
	set := service.NewSet()
	for _, s := range services {
		if err := set.Add(s); err != nil {
			t.Fatalf("Add(%s): %v", s.Name(), err)
		}
	}
	return set
}

type stubProvider struct {
	name    string
	healthy bool
}

func (p *stubProvider) Name() string    { return p.name }
func (p *stubProvider) Dimensions() int { return 3 }

func (p *stubProvider) GetEmbeddings(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range out {
		out[i] = []float32{1, 0, 0}
	}
	return out, nil
}

func (p *stubProvider) HealthCheck(context.Context) (*embedding.HealthStatus, error) {
	return &embedding.HealthStatus{Healthy: p.healthy, Provider: p.name, CheckedAt: time.Now()}, nil
}

func newRegistry(providers map[embedding.Tier]*stubProvider) *embedding.Registry {
	reg := embedding.NewRegistry(embedding.WithLogger(discardLogger()))
	for tier, p := range providers {
		reg.Register(tier, p)
	}
	return reg
}
