package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	AnalysisLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "collarpulse",
			Subsystem: "behavior",
			Name:      "latency_seconds",
			Help:      "Latency of behavior endpoints",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"endpoint"},
	)

	AnalysisErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "collarpulse",
			Subsystem: "behavior",
			Name:      "errors_total",
			Help:      "Errors by behavior endpoint",
		},
		[]string{"endpoint"},
	)

	EventsDetected = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "collarpulse",
			Subsystem: "behavior",
			Name:      "events_detected_total",
			Help:      "Detected behavioral events by behavior name",
		},
		[]string{"behavior"},
	)

	OptimizerRuns = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "collarpulse",
			Subsystem: "optimizer",
			Name:      "runs_total",
			Help:      "Optimization runs by outcome",
		},
		[]string{"outcome"},
	)

	OptimizerTrials = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "collarpulse",
			Subsystem: "optimizer",
			Name:      "trial_score",
			Help:      "Per-behavior best agreement scores",
			Buckets:   prometheus.LinearBuckets(0, 0.1, 11),
		},
		[]string{"behavior"},
	)
)

func Register() {
	once.Do(func() {
		prometheus.MustRegister(AnalysisLatency, AnalysisErrors, EventsDetected, OptimizerRuns, OptimizerTrials)
	})
}
