package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	"opsglue/internal/resilience/circuitbreaker"
)

func TestRecorder_Attempts(t *testing.T) {
	r := NewRecorder(prometheus.NewRegistry())

	r.RecordAttempt("notion", false, 20*time.Millisecond)
	r.RecordAttempt("notion", false, 20*time.Millisecond)
	r.RecordAttempt("notion", true, 10*time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(r.attempts.WithLabelValues("notion", "failure")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.attempts.WithLabelValues("notion", "success")))
	assert.Equal(t, 1, testutil.CollectAndCount(r.attemptTime))
}

func TestRecorder_Calls(t *testing.T) {
	r := NewRecorder(prometheus.NewRegistry())

	r.RecordCall("slack", "success", time.Second)
	r.RecordCall("slack", "circuit_open", 0)
	r.RecordCall("slack", "circuit_open", 0)

	assert.Equal(t, 1.0, testutil.ToFloat64(r.calls.WithLabelValues("slack", "success")))
	assert.Equal(t, 2.0, testutil.ToFloat64(r.calls.WithLabelValues("slack", "circuit_open")))
}

func TestRecorder_CircuitState(t *testing.T) {
	r := NewRecorder(prometheus.NewRegistry())

	tests := []struct {
		state circuitbreaker.State
		want  float64
	}{
		{circuitbreaker.StateClosed, 0},
		{circuitbreaker.StateOpen, 1},
		{circuitbreaker.StateHalfOpen, 2},
	}
	for _, tt := range tests {
		r.SetCircuitState("notion", tt.state)
		assert.Equal(t, tt.want, testutil.ToFloat64(r.circuitState.WithLabelValues("notion")), tt.state.String())
	}

	r.RecordCircuitReset("notion")
	assert.Equal(t, 1.0, testutil.ToFloat64(r.circuitResets.WithLabelValues("notion")))
}

func TestRecorder_Embedding(t *testing.T) {
	r := NewRecorder(prometheus.NewRegistry())

	r.RecordEmbeddingRequest("openai", EmbeddingStatusSuccess, 16, 200*time.Millisecond)
	r.RecordEmbeddingRequest("openai", EmbeddingStatusError, 16, time.Second)
	r.RecordEmbeddingRequest("openai", EmbeddingStatusSkipped, 16, 0)
	r.RecordEmbeddingFallback("openai", "hash")
	r.SetProviderHealthy("openai", false)
	r.SetProviderHealthy("hash", true)

	assert.Equal(t, 1.0, testutil.ToFloat64(r.embeddingRequests.WithLabelValues("openai", EmbeddingStatusSuccess)))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.embeddingRequests.WithLabelValues("openai", EmbeddingStatusError)))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.embeddingRequests.WithLabelValues("openai", EmbeddingStatusSkipped)))
	assert.Equal(t, 16.0, testutil.ToFloat64(r.embeddingTexts.WithLabelValues("openai")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.embeddingFallbacks.WithLabelValues("openai", "hash")))
	assert.Equal(t, 0.0, testutil.ToFloat64(r.providerHealthy.WithLabelValues("openai")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.providerHealthy.WithLabelValues("hash")))
}

func TestDefault_IsSingleton(t *testing.T) {
	assert.Same(t, Default(), Default())
}

func TestNewRecorder_DuplicateRegistrationPanics(t *testing.T) {
	reg := prometheus.NewRegistry()
	NewRecorder(reg)
	assert.Panics(t, func() { NewRecorder(reg) })
}
