// Package stats tracks per-service connection counters and response timings.
// A ConnectionStats value is shared by every concurrent call on its service, so
// all mutation happens under a mutex.
package stats

import (
	"sync"
	"time"
)

// ConnectionStats holds counters for one service instance.
// RequestCount is incremented once per attempt, not once per external call.
type ConnectionStats struct {
	mu sync.Mutex

	createdAt             time.Time
	lastUsedAt            time.Time
	requestCount          int64
	errorCount            int64
	lastError             string
	lastErrorAt           time.Time
	totalResponseTimeMs   float64
	averageResponseTimeMs float64
}

// Snapshot is a consistent, read-only copy of the counters.
type Snapshot struct {
	CreatedAt             time.Time
	LastUsedAt            time.Time
	RequestCount          int64
	ErrorCount            int64
	LastError             string
	LastErrorAt           time.Time
	TotalResponseTimeMs   float64
	AverageResponseTimeMs float64
}

// ErrorRate returns ErrorCount / RequestCount, or 0 before the first attempt.
func (s Snapshot) ErrorRate() float64 {
	if s.RequestCount == 0 {
		return 0
	}
	return float64(s.ErrorCount) / float64(s.RequestCount)
}

// New creates stats owned by a service created at now.
func New(now time.Time) *ConnectionStats {
	return &ConnectionStats{createdAt: now}
}

// RecordAttempt counts one attempt and marks the service as used.
func (s *ConnectionStats) RecordAttempt(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.requestCount++
	s.lastUsedAt = now
}

// RecordSuccess adds a successful attempt's response time and recomputes the average.
func (s *ConnectionStats) RecordSuccess(elapsed time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.totalResponseTimeMs += float64(elapsed) / float64(time.Millisecond)
	if s.requestCount > 0 {
		s.averageResponseTimeMs = s.totalResponseTimeMs / float64(s.requestCount)
	}
}

// RecordError counts a failed attempt.
func (s *ConnectionStats) RecordError(err error, now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.errorCount++
	if err != nil {
		s.lastError = err.Error()
	}
	s.lastErrorAt = now
}

// Snapshot returns a copy of the current counters.
func (s *ConnectionStats) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	return Snapshot{
		CreatedAt:             s.createdAt,
		LastUsedAt:            s.lastUsedAt,
		RequestCount:          s.requestCount,
		ErrorCount:            s.errorCount,
		LastError:             s.lastError,
		LastErrorAt:           s.lastErrorAt,
		TotalResponseTimeMs:   s.totalResponseTimeMs,
		AverageResponseTimeMs: s.averageResponseTimeMs,
	}
}
