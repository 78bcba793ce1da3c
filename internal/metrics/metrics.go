// Package metrics registers the tracker's prometheus collectors.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "mptracker"

var (
	// ExtractionDuration observes descriptor extraction latency, labeled by
	// the descriptor origin (genuine vs fallback).
	ExtractionDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "descriptor_extraction_duration_seconds",
			Help:      "Descriptor extraction duration in seconds",
			Buckets:   []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"origin"},
	)

	// MatchesTotal counts match attempts by outcome (hit/miss).
	MatchesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "matches_total",
			Help:      "Total number of similarity match attempts by outcome",
		},
		[]string{"outcome"},
	)

	// AlertTransitionsTotal counts applied lifecycle transitions.
	AlertTransitionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "alert_transitions_total",
			Help:      "Total number of applied alert lifecycle transitions",
		},
		[]string{"from", "to"},
	)
)

func init() {
	prometheus.MustRegister(ExtractionDuration)
	prometheus.MustRegister(MatchesTotal)
	prometheus.MustRegister(AlertTransitionsTotal)
}
