package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder implements domain.repository.Metrics using Prometheus.
type Recorder struct {
	messagesSent *prometheus.CounterVec
	errorsTotal  *prometheus.CounterVec
	heartRate    *prometheus.GaugeVec
	latency      *prometheus.HistogramVec
}

// New creates a new Prometheus metrics recorder.
func New() *Recorder {
	return &Recorder{
		messagesSent: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "collarpulse_messages_sent_total",
				Help: "Total number of messages sent to backend",
			},
			[]string{"backend", "collar_id"},
		),
		errorsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "collarpulse_errors_total",
				Help: "Total number of errors encountered",
			},
			[]string{"type"},
		),
		heartRate: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "collarpulse_heart_rate_bpm",
				Help: "Last observed heart rate per collar",
			},
			[]string{"collar_id"},
		),
		latency: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "collarpulse_operation_duration_seconds",
				Help:    "Duration of operations in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
	}
}

// RecordMessageSent records a message sent to a backend.
func (r *Recorder) RecordMessageSent(backend, collarID string) {
	r.messagesSent.WithLabelValues(backend, collarID).Inc()
}

// RecordError records an error occurrence.
func (r *Recorder) RecordError(kind string) {
	r.errorsTotal.WithLabelValues(kind).Inc()
}

// RecordHeartRate records the latest heart rate for a collar.
func (r *Recorder) RecordHeartRate(collarID string, bpm float64) {
	r.heartRate.WithLabelValues(collarID).Set(bpm)
}

// RecordLatency records operation latency in seconds.
func (r *Recorder) RecordLatency(op string, seconds float64) {
	r.latency.WithLabelValues(op).Observe(seconds)
}
