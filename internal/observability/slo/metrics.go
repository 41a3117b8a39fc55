// Package slo tracks per-service objectives for outbound integrations.
package slo

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Objectives applied to every outbound service.
const (
	// AvailabilitySLO is the target ratio of successful attempts
	AvailabilitySLO = 0.99

	// LatencySLO is the target average attempt latency in seconds
	LatencySLO = 2.0
)

// These gauges are refreshed on the gateway health schedule from each service's
// connection stats.
var (
	SLOAvailability = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "service_slo_availability_ratio",
			Help: "Ratio of successful attempts since start (0-1), target: 0.99",
		},
		[]string{"service"},
	)

	SLOErrorRate = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "service_slo_error_rate_ratio",
			Help: "Ratio of failed attempts since start (0-1)",
		},
		[]string{"service"},
	)

	SLOLatency = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "service_slo_avg_latency_seconds",
			Help: "Average successful attempt latency in seconds, target: 2.0",
		},
		[]string{"service"},
	)

	SLOMet = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "service_slo_met",
			Help: "1 when the service meets both objectives, 0 otherwise",
		},
		[]string{"service"},
	)
)

// Sample is one service's cumulative stats.
type Sample struct {
	Service               string
	RequestCount          int64
	ErrorRate             float64
	AverageResponseTimeMs float64
}

// Met reports whether s meets both objectives. A service without requests meets them.
func (s Sample) Met() bool {
	if s.RequestCount == 0 {
		return true
	}
	return 1-s.ErrorRate >= AvailabilitySLO && s.AverageResponseTimeMs/1000 <= LatencySLO
}

// Observe publishes s and returns whether it meets the objectives.
func Observe(s Sample) bool {
	availability := 1.0
	if s.RequestCount > 0 {
		availability = 1 - s.ErrorRate
	}

	met := s.Met()
	SLOAvailability.WithLabelValues(s.Service).Set(availability)
	SLOErrorRate.WithLabelValues(s.Service).Set(s.ErrorRate)
	SLOLatency.WithLabelValues(s.Service).Set(s.AverageResponseTimeMs / 1000)
	if met {
		SLOMet.WithLabelValues(s.Service).Set(1)
	} else {
		SLOMet.WithLabelValues(s.Service).Set(0)
	}
	return met
}
