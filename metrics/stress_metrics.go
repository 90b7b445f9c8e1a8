package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Load ramp metrics. Gauges describe the most recent run and are labelled
// by the level's target throughput so a dashboard can plot achieved
// against target.
var (
	// StressAchievedThroughput is the achieved events per second per level.
	// Labels:
	//   - target: the level's target events per second
	StressAchievedThroughput = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "fraudwatch",
			Subsystem: "stress",
			Name:      "achieved_throughput",
			Help:      "Achieved events per second of the most recent stress run",
		},
		[]string{"target"},
	)

	// StressLevelsTotal counts completed levels.
	// Labels:
	//   - saturated: "true" or "false"
	StressLevelsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fraudwatch",
			Subsystem: "stress",
			Name:      "levels_total",
			Help:      "Total number of completed stress levels",
		},
		[]string{"saturated"},
	)

	StressLevelDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "fraudwatch",
			Subsystem: "stress",
			Name:      "level_duration_seconds",
			Help:      "Wall time spent per stress level",
			Buckets:   []float64{1, 2, 5, 10, 20, 30, 60, 120},
		},
	)
)
