package embedding

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"time"
)

type fakeProvider struct {
	name string
	dims int

	unhealthy  bool
	nilStatus  bool
	healthErr  error
	embedErr   error
	maxBatch   int
	failTexts  map[string]bool
	shortReply bool

	mu          sync.Mutex
	healthCalls int
	embedCalls  int
}

func newFake(name string) *fakeProvider {
	return &fakeProvider{name: name, dims: 4}
}

func (f *fakeProvider) Name() string    { return f.name }
func (f *fakeProvider) Dimensions() int { return f.dims }

func (f *fakeProvider) GetEmbeddings(ctx context.Context, texts []string) ([][]float32, error) {
	f.mu.Lock()
	f.embedCalls++
	f.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if f.embedErr != nil {
		return nil, f.embedErr
	}
	if f.maxBatch > 0 && len(texts) > f.maxBatch {
		return nil, errors.New("batch too large")
	}
	for _, t := range texts {
		if f.failTexts[t] {
			return nil, errors.New("cannot embed " + t)
		}
	}

	out := make([][]float32, 0, len(texts))
	for _, t := range texts {
		out = append(out, vectorFor(t, f.dims))
	}
	if f.shortReply && len(out) > 0 {
		out = out[:len(out)-1]
	}
	return out, nil
}

func (f *fakeProvider) HealthCheck(context.Context) (*HealthStatus, error) {
	f.mu.Lock()
	f.healthCalls++
	f.mu.Unlock()

	if f.healthErr != nil {
		return nil, f.healthErr
	}
	if f.nilStatus {
		return nil, nil
	}
	return &HealthStatus{Healthy: !f.unhealthy, Provider: f.name, CheckedAt: time.Now()}, nil
}

func (f *fakeProvider) calls() (health, embed int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.healthCalls, f.embedCalls
}

// vectorFor fills every dimension with len(text) so tests can identify vectors.
func vectorFor(text string, dims int) []float32 {
	v := make([]float32, dims)
	for i := range v {
		v[i] = float32(len(text))
	}
	return v
}

type fakeMetrics struct {
	mu        sync.Mutex
	requests  []string
	fallbacks []string
	health    map[string]bool
}

func newFakeMetrics() *fakeMetrics {
	return &fakeMetrics{health: map[string]bool{}}
}

func (m *fakeMetrics) RecordEmbeddingRequest(provider, status string, _ int, _ time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requests = append(m.requests, provider+":"+status)
}

func (m *fakeMetrics) RecordEmbeddingFallback(from, to string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fallbacks = append(m.fallbacks, from+"->"+to)
}

func (m *fakeMetrics) SetProviderHealthy(provider string, healthy bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.health[provider] = healthy
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
