package repository

import (
	"context"
	"time"

	"CollarPulse/internal/domain/models"
)

// TelemetryStore provides read access to persisted telemetry for analysis
// and feedback replay.
type TelemetryStore interface {
	GetRange(ctx context.Context, collarID string, from, to time.Time) ([]models.TelemetryPoint, error)
	GetWindow(ctx context.Context, collarID string, center time.Time, halfWidth time.Duration) ([]models.TelemetryPoint, error)
}

// EventStore persists detected behavioral events and serves timeline queries.
type EventStore interface {
	StoreEvents(ctx context.Context, events []models.BehavioralEvent) error
	GetEvents(ctx context.Context, collarID string, from, to time.Time, limit int) ([]models.BehavioralEvent, error)
}

// FeedbackStore loads a bounded page of historical feedback records,
// newest first.
type FeedbackStore interface {
	LoadRecent(ctx context.Context, maxItems int) ([]models.FeedbackRecord, error)
	StoreFeedback(ctx context.Context, rec *models.FeedbackRecord) error
}

// RuleSetStore atomically persists and retrieves rule-set versions. Save
// either commits the complete new version or leaves the previous one visible.
type RuleSetStore interface {
	Current(ctx context.Context) (*models.BehaviorRuleSet, error)
	Save(ctx context.Context, rs *models.BehaviorRuleSet) error
}
