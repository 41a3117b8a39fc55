package metrics

import "time"

// Embedding request statuses.
const (
	EmbeddingStatusSuccess = "success"
	EmbeddingStatusError   = "error"
	EmbeddingStatusSkipped = "skipped"
)

// RecordEmbeddingRequest records one provider request and the number of texts it carried.
func (r *Recorder) RecordEmbeddingRequest(provider, status string, texts int, duration time.Duration) {
	r.embeddingRequests.WithLabelValues(provider, status).Inc()
	if status == EmbeddingStatusSkipped {
		return
	}
	r.embeddingDuration.WithLabelValues(provider).Observe(duration.Seconds())
	if status == EmbeddingStatusSuccess {
		r.embeddingTexts.WithLabelValues(provider).Add(float64(texts))
	}
}

// RecordEmbeddingFallback records a fallback between providers.
func (r *Recorder) RecordEmbeddingFallback(from, to string) {
	r.embeddingFallbacks.WithLabelValues(from, to).Inc()
}

// SetProviderHealthy publishes a provider's last health check result.
func (r *Recorder) SetProviderHealthy(provider string, healthy bool) {
	v := 0.0
	if healthy {
		v = 1
	}
	r.providerHealthy.WithLabelValues(provider).Set(v)
}
