// Package embedding provides the priority-tiered embedding provider registry.
//
// A Registry maps tiers (Primary, Secondary, Fallback) to interchangeable
// Provider implementations. Each request walks the tiers in ascending order,
// skips providers that report unhealthy or whose guard is open, and returns the
// first successful result. Concrete adapters live alongside the registry but
// are never part of its logic: OpenAIProvider calls an OpenAI-compatible
// embeddings endpoint and HashProvider is a deterministic offline embedder.
package embedding
