package usecase

import (
	"context"
	"fmt"
	"time"

	"CollarPulse/internal/domain/models"
	domrepo "CollarPulse/internal/domain/repository"
	domsvc "CollarPulse/internal/domain/service"
	svcmetrics "CollarPulse/internal/service/metrics"
	applogger "CollarPulse/pkg/logger"
)

// BehaviorAnalyzerUseCase runs the interpreter over a stored telemetry range
// and optionally persists and publishes the detected events.
type BehaviorAnalyzerUseCase struct {
	telemetry   domrepo.TelemetryStore
	events      domrepo.EventStore
	rules       domrepo.RuleSetStore
	interpreter domsvc.Interpreter
	pub         domrepo.Publisher
	l           *applogger.Logger
}

func NewBehaviorAnalyzerUseCase(
	telemetry domrepo.TelemetryStore,
	events domrepo.EventStore,
	rules domrepo.RuleSetStore,
	interpreter domsvc.Interpreter,
	pub domrepo.Publisher,
	l *applogger.Logger,
) *BehaviorAnalyzerUseCase {
	return &BehaviorAnalyzerUseCase{
		telemetry:   telemetry,
		events:      events,
		rules:       rules,
		interpreter: interpreter,
		pub:         pub,
		l:           l,
	}
}

type AnalyzeParams struct {
	CollarID string
	From     time.Time
	To       time.Time
	Persist  bool
}

type AnalyzeResult struct {
	CollarID       string                   `json:"collar_id"`
	From           time.Time                `json:"from"`
	To             time.Time                `json:"to"`
	RuleSetVersion int                      `json:"ruleset_version"`
	PointCount     int                      `json:"point_count"`
	EventCount     int                      `json:"event_count"`
	Events         []models.BehavioralEvent `json:"events"`
}

// Analyze fetches the collar's telemetry for [from, to], interprets it against
// the active rule-set version, and returns the detected events sorted by
// timestamp then behavior name.
func (uc *BehaviorAnalyzerUseCase) Analyze(ctx context.Context, p AnalyzeParams) (*AnalyzeResult, error) {
	if p.CollarID == "" {
		return nil, fmt.Errorf("collar_id required")
	}
	if p.From.After(p.To) {
		return nil, fmt.Errorf("from must be <= to")
	}

	rs, err := uc.rules.Current(ctx)
	if err != nil {
		return nil, fmt.Errorf("load ruleset: %w", err)
	}

	points, err := uc.telemetry.GetRange(ctx, p.CollarID, p.From, p.To)
	if err != nil {
		return nil, fmt.Errorf("load telemetry: %w", err)
	}

	start := time.Now()
	events := uc.interpreter.AnalyzeTimeline(rs, points)
	svcmetrics.AnalysisLatency.WithLabelValues("analyze").Observe(time.Since(start).Seconds())
	for i := range events {
		svcmetrics.EventsDetected.WithLabelValues(events[i].Behavior).Inc()
	}

	if p.Persist && len(events) > 0 {
		if err := uc.events.StoreEvents(ctx, events); err != nil {
			svcmetrics.AnalysisErrors.WithLabelValues("analyze").Inc()
			return nil, fmt.Errorf("store events: %w", err)
		}
		if uc.pub != nil {
			if err := uc.pub.PublishEvents(ctx, events); err != nil {
				// events are persisted; publishing is best effort
				if uc.l != nil {
					uc.l.Warn("publish events failed",
						applogger.String("collar_id", p.CollarID),
						applogger.Int("events", len(events)),
						applogger.Error(err),
					)
				}
			}
		}
	}

	if uc.l != nil {
		uc.l.Info("timeline analyzed",
			applogger.String("collar_id", p.CollarID),
			applogger.Int("ruleset_version", rs.Version),
			applogger.Int("points", len(points)),
			applogger.Int("events", len(events)),
		)
	}

	return &AnalyzeResult{
		CollarID:       p.CollarID,
		From:           p.From,
		To:             p.To,
		RuleSetVersion: rs.Version,
		PointCount:     len(points),
		EventCount:     len(events),
		Events:         events,
	}, nil
}
