package repository

import (
	"context"

	"CollarPulse/internal/domain/models"
)

// CollarStream is a live telemetry feed from the collar gateway.
type CollarStream interface {
	Connect(ctx context.Context) error
	Subscribe(ctx context.Context) error
	Read(ctx context.Context) (<-chan *models.TelemetryPoint, <-chan error)
	Reconnect(ctx context.Context) error
	Close() error
	IsConnected() bool
}

// Publisher sends telemetry and detected events to the message bus.
type Publisher interface {
	Publish(ctx context.Context, p *models.TelemetryPoint) error
	PublishBatch(ctx context.Context, points []*models.TelemetryPoint) error
	PublishEvents(ctx context.Context, events []models.BehavioralEvent) error
	Close() error
}

// Storage persists raw telemetry readings.
type Storage interface {
	Init(ctx context.Context) error // ensure tables, health checks
	Store(ctx context.Context, p *models.TelemetryPoint) error
	StoreBatch(ctx context.Context, points []*models.TelemetryPoint) error
	Health(ctx context.Context) error // ping
	Close() error
}

// Metrics records operational measurements.
type Metrics interface {
	RecordMessageSent(backend, collarID string)
	RecordError(kind string)
	RecordHeartRate(collarID string, bpm float64)
	RecordLatency(op string, seconds float64)
}
