package usecase

import (
	"context"
	"fmt"
	"time"

	"CollarPulse/internal/domain/models"
	domrepo "CollarPulse/internal/domain/repository"
	applogger "CollarPulse/pkg/logger"
	"CollarPulse/pkg/queue"
)

const FeedbackJobType = "event_feedback"

// FeedbackJob consumes queued feedback submissions and persists them.
// Keeping intake on the queue means a slow ClickHouse never blocks the
// feedback endpoint.
type FeedbackJob struct {
	store domrepo.FeedbackStore
	l     *applogger.Logger
}

func NewFeedbackJob(store domrepo.FeedbackStore, l *applogger.Logger) *FeedbackJob {
	return &FeedbackJob{store: store, l: l}
}

func (j *FeedbackJob) Name() string { return "feedback_persist" }
func (j *FeedbackJob) Type() string { return FeedbackJobType }

type feedbackPayload struct {
	EventID   string `json:"event_id"`
	CollarID  string `json:"collar_id"`
	Behavior  string `json:"behavior"`
	Judgment  string `json:"user_feedback"`
	Timestamp string `json:"timestamp"`
}

func (j *FeedbackJob) Handle(ctx context.Context, payload interface{}) error {
	p, err := queue.ParsePayload[feedbackPayload](payload)
	if err != nil {
		return fmt.Errorf("parse feedback payload: %w", err)
	}

	ts := time.Now().UTC()
	if p.Timestamp != "" {
		parsed, err := time.Parse(time.RFC3339, p.Timestamp)
		if err != nil {
			return fmt.Errorf("parse feedback timestamp %q: %w", p.Timestamp, err)
		}
		ts = parsed
	}

	rec := &models.FeedbackRecord{
		EventID:   p.EventID,
		CollarID:  p.CollarID,
		Behavior:  p.Behavior,
		Judgment:  p.Judgment,
		Timestamp: ts,
	}
	if err := rec.Validate(); err != nil {
		// invalid submissions are dropped, not retried
		if j.l != nil {
			j.l.Warn("invalid feedback dropped",
				applogger.String("event_id", p.EventID),
				applogger.Error(err),
			)
		}
		return nil
	}
	if err := j.store.StoreFeedback(ctx, rec); err != nil {
		return fmt.Errorf("persist feedback: %w", err)
	}
	if j.l != nil {
		j.l.Info("feedback persisted",
			applogger.String("event_id", rec.EventID),
			applogger.String("judgment", rec.Judgment),
		)
	}
	return nil
}

var _ queue.Job = (*FeedbackJob)(nil)
