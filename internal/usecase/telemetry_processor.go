package usecase

import (
	"context"
	"fmt"
	"time"

	"CollarPulse/internal/domain/models"
	drepo "CollarPulse/internal/domain/repository"
)

// TelemetryProcessor routes collar readings to the configured backend.
type TelemetryProcessor struct {
	pub     drepo.Publisher
	store   drepo.Storage
	metrics drepo.Metrics
	backend string
	batchSz int
	batchTO time.Duration
}

// NewTelemetryProcessor creates a new TelemetryProcessor instance.
func NewTelemetryProcessor(
	pub drepo.Publisher,
	store drepo.Storage,
	metrics drepo.Metrics,
	backend string,
	batchSz int,
	batchTO time.Duration,
) *TelemetryProcessor {
	return &TelemetryProcessor{
		pub:     pub,
		store:   store,
		metrics: metrics,
		backend: backend,
		batchSz: batchSz,
		batchTO: batchTO,
	}
}

// Process routes a single reading to the configured backend.
func (p *TelemetryProcessor) Process(ctx context.Context, pt *models.TelemetryPoint) error {
	if pt == nil {
		return fmt.Errorf("telemetry point is nil")
	}

	start := time.Now()
	var err error

	switch p.backend {
	case "kafka":
		err = p.pub.Publish(ctx, pt)
	case "clickhouse":
		err = p.store.Store(ctx, pt)
	default:
		err = fmt.Errorf("unknown backend: %s", p.backend)
	}

	if err != nil {
		p.metrics.RecordError("process")
		return fmt.Errorf("process telemetry: %w", err)
	}

	p.metrics.RecordMessageSent(p.backend, pt.CollarID)
	p.metrics.RecordLatency("process", time.Since(start).Seconds())

	return nil
}

// ProcessBatch routes multiple readings in a batch.
func (p *TelemetryProcessor) ProcessBatch(ctx context.Context, points []*models.TelemetryPoint) error {
	if len(points) == 0 {
		return nil
	}

	start := time.Now()
	var err error

	switch p.backend {
	case "kafka":
		err = p.pub.PublishBatch(ctx, points)
	case "clickhouse":
		err = p.store.StoreBatch(ctx, points)
	default:
		err = fmt.Errorf("unknown backend: %s", p.backend)
	}

	if err != nil {
		p.metrics.RecordError("process_batch")
		return fmt.Errorf("process batch: %w", err)
	}

	for _, pt := range points {
		p.metrics.RecordMessageSent(p.backend, pt.CollarID)
	}
	p.metrics.RecordLatency("process_batch", time.Since(start).Seconds())

	return nil
}

// Close closes underlying resources if available.
func (p *TelemetryProcessor) Close() {
	if p.pub != nil {
		_ = p.pub.Close()
	}
	if p.store != nil {
		_ = p.store.Close()
	}
}
