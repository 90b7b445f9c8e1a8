package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	RowsEvaluated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fraudwatch_rows_evaluated_total",
			Help: "Total number of aggregate rows evaluated by the alert engine",
		},
		[]string{"stream"},
	)

	AlertsGenerated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fraudwatch_alerts_generated_total",
			Help: "Total number of alerts generated",
		},
		[]string{"type", "severity"},
	)

	BaselineKeys = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "fraudwatch_baseline_keys",
			Help: "Number of rolling baselines currently held",
		},
	)

	BaselineEvictions = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "fraudwatch_baseline_evictions_total",
			Help: "Total number of rolling baselines evicted by the key cap",
		},
	)

	StageLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "fraudwatch_stage_latency_seconds",
			Help:    "Pipeline stage latency",
			Buckets: prometheus.ExponentialBuckets(0.00001, 4, 10),
		},
		[]string{"stage"},
	)

	EventsPushed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "fraudwatch_events_pushed_total",
			Help: "Total number of trades and orders pushed into the pipeline",
		},
	)

	EventsProcessed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "fraudwatch_events_processed_total",
			Help: "Total number of events reported processed by the pipeline",
		},
	)

	PipelineErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fraudwatch_pipeline_errors_total",
			Help: "Total number of pipeline push and poll errors",
		},
		[]string{"op"},
	)

	TickDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "fraudwatch_tick_duration_seconds",
			Help:    "Time taken by one generate, push, poll and evaluate tick",
			Buckets: prometheus.DefBuckets,
		},
	)

	NotifierPublished = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "fraudwatch_notifier_published_total",
			Help: "Total number of alerts published to Redis",
		},
	)

	NotifierDropped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fraudwatch_notifier_dropped_total",
			Help: "Total number of alerts dropped by the notifier",
		},
		[]string{"reason"},
	)

	WebSocketClients = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "fraudwatch_websocket_clients",
			Help: "Number of connected dashboard websocket clients",
		},
	)
)
