package usecase

import (
	"context"
	"encoding/json"
	"time"

	"CollarPulse/internal/domain/models"
	domrepo "CollarPulse/internal/domain/repository"
	pkgkafka "CollarPulse/pkg/kafka"
)

// KafkaTelemetryHandler consumes gateway telemetry messages and writes to storage.
type KafkaTelemetryHandler struct {
	topic   string
	storage domrepo.Storage
	metrics domrepo.Metrics
}

func NewKafkaTelemetryHandler(topic string, storage domrepo.Storage, metrics domrepo.Metrics) *KafkaTelemetryHandler {
	return &KafkaTelemetryHandler{topic: topic, storage: storage, metrics: metrics}
}

func (h *KafkaTelemetryHandler) Topic() string { return h.topic }

// Handle parses one telemetry record and persists it. Malformed records are
// counted and dropped so a bad collar cannot stall the partition.
func (h *KafkaTelemetryHandler) Handle(ctx context.Context, b []byte) error {
	var rec models.TelemetryRecord
	if err := json.Unmarshal(b, &rec); err != nil {
		h.metrics.RecordError("consumer_unmarshal")
		return err
	}
	pt, err := rec.ToPoint()
	if err != nil {
		h.metrics.RecordError("consumer_invalid_point")
		// drop, do not retry: the record will never become valid
		return nil
	}

	// E2E latency from reading time to now (approx)
	h.metrics.RecordLatency("ingest_e2e_seconds", time.Since(pt.Timestamp).Seconds())

	start := time.Now()
	err = h.storage.Store(ctx, &pt)
	h.metrics.RecordLatency("ch_insert_seconds", time.Since(start).Seconds())
	if err != nil {
		h.metrics.RecordError("consumer_store")
		return err
	}
	h.metrics.RecordMessageSent("clickhouse", pt.CollarID)
	h.metrics.RecordHeartRate(pt.CollarID, float64(pt.HeartRate))
	return nil
}

var _ pkgkafka.MessageHandler = (*KafkaTelemetryHandler)(nil)
