package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"CollarPulse/internal/domain/models"
	pkgch "CollarPulse/pkg/clickhouse"
	applogger "CollarPulse/pkg/logger"
)

const (
	eventsTable   = "collarpulse.behavior_events"
	feedbackTable = "collarpulse.event_feedback"
)

// CHEventStore implements EventStore backed by ClickHouse.
type CHEventStore struct {
	db *sql.DB
	l  *applogger.Logger
}

func NewCHEventStore(ch *pkgch.Client) *CHEventStore {
	return &CHEventStore{db: ch.DB()}
}

// SetLogger injects a structured logger.
func (s *CHEventStore) SetLogger(l *applogger.Logger) { s.l = l }

func (s *CHEventStore) StoreEvents(ctx context.Context, events []models.BehavioralEvent) error {
	if len(events) == 0 {
		return nil
	}
	start := time.Now()
	values := make([]string, 0, len(events))
	args := make([]interface{}, 0, len(events)*6)
	for i := range events {
		e := &events[i]
		if e.EventID == "" || e.CollarID == "" {
			continue
		}
		values = append(values, "(?, ?, ?, ?, ?, ?)")
		args = append(args,
			e.EventID,
			e.Behavior,
			e.Confidence,
			e.Timestamp,
			e.CollarID,
			e.SupportingPoints,
		)
	}
	if len(values) == 0 {
		return nil
	}
	q := fmt.Sprintf("INSERT INTO %s (event_id, behavior, confidence, ts, collar_id, supporting_points) VALUES %s",
		eventsTable, strings.Join(values, ","))
	if _, err := s.db.ExecContext(ctx, q, args...); err != nil {
		if s.l != nil {
			s.l.Error("clickhouse store_events error",
				applogger.Int("events", len(events)),
				applogger.Error(err),
			)
		}
		return fmt.Errorf("store events: %w", err)
	}
	if s.l != nil {
		s.l.Info("clickhouse store_events ok",
			applogger.Int("events", len(values)),
			applogger.Duration("duration_ms", time.Since(start)),
		)
	}
	return nil
}

func (s *CHEventStore) GetEvents(ctx context.Context, collarID string, from, to time.Time, limit int) ([]models.BehavioralEvent, error) {
	start := time.Now()
	const qtpl = `
        SELECT event_id, behavior, confidence, ts, collar_id, supporting_points
        FROM %s
        WHERE collar_id = ? AND ts >= ? AND ts <= ?
        ORDER BY ts ASC, behavior ASC
        LIMIT ?
    `
	q := fmt.Sprintf(qtpl, eventsTable)
	rows, err := s.db.QueryContext(ctx, q, collarID, from, to, limit)
	if err != nil {
		if s.l != nil {
			s.l.Error("clickhouse get_events query error",
				applogger.String("collar_id", collarID),
				applogger.Error(err),
			)
		}
		return nil, fmt.Errorf("get events: %w", err)
	}
	defer rows.Close()

	out := make([]models.BehavioralEvent, 0, limit)
	for rows.Next() {
		var e models.BehavioralEvent
		if err := rows.Scan(&e.EventID, &e.Behavior, &e.Confidence, &e.Timestamp, &e.CollarID, &e.SupportingPoints); err != nil {
			if s.l != nil {
				s.l.Error("clickhouse get_events scan error",
					applogger.String("collar_id", collarID),
					applogger.Error(err),
				)
			}
			return nil, fmt.Errorf("scan event: %w", err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	if s.l != nil {
		s.l.Info("clickhouse get_events ok",
			applogger.String("collar_id", collarID),
			applogger.Int("rows", len(out)),
			applogger.Duration("duration_ms", time.Since(start)),
		)
	}
	return out, nil
}

// CHFeedbackStore implements FeedbackStore backed by ClickHouse.
type CHFeedbackStore struct {
	db *sql.DB
	l  *applogger.Logger
}

func NewCHFeedbackStore(ch *pkgch.Client) *CHFeedbackStore {
	return &CHFeedbackStore{db: ch.DB()}
}

// SetLogger injects a structured logger.
func (s *CHFeedbackStore) SetLogger(l *applogger.Logger) { s.l = l }

func (s *CHFeedbackStore) StoreFeedback(ctx context.Context, rec *models.FeedbackRecord) error {
	if err := rec.Validate(); err != nil {
		return fmt.Errorf("store feedback: %w", err)
	}
	q := fmt.Sprintf("INSERT INTO %s (event_id, collar_id, behavior, judgment, ts) VALUES (?, ?, ?, ?, ?)", feedbackTable)
	if _, err := s.db.ExecContext(ctx, q, rec.EventID, rec.CollarID, rec.Behavior, rec.Judgment, rec.Timestamp); err != nil {
		if s.l != nil {
			s.l.Error("clickhouse store_feedback error",
				applogger.String("event_id", rec.EventID),
				applogger.Error(err),
			)
		}
		return fmt.Errorf("store feedback: %w", err)
	}
	return nil
}

func (s *CHFeedbackStore) LoadRecent(ctx context.Context, maxItems int) ([]models.FeedbackRecord, error) {
	start := time.Now()
	const qtpl = `
        SELECT event_id, collar_id, behavior, judgment, ts
        FROM %s
        ORDER BY ts DESC
        LIMIT ?
    `
	q := fmt.Sprintf(qtpl, feedbackTable)
	rows, err := s.db.QueryContext(ctx, q, maxItems)
	if err != nil {
		if s.l != nil {
			s.l.Error("clickhouse load_feedback query error",
				applogger.Int("limit", maxItems),
				applogger.Error(err),
			)
		}
		return nil, fmt.Errorf("load feedback: %w", err)
	}
	defer rows.Close()

	out := make([]models.FeedbackRecord, 0, maxItems)
	for rows.Next() {
		var f models.FeedbackRecord
		if err := rows.Scan(&f.EventID, &f.CollarID, &f.Behavior, &f.Judgment, &f.Timestamp); err != nil {
			if s.l != nil {
				s.l.Error("clickhouse load_feedback scan error", applogger.Error(err))
			}
			return nil, fmt.Errorf("scan feedback: %w", err)
		}
		out = append(out, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	if s.l != nil {
		s.l.Info("clickhouse load_feedback ok",
			applogger.Int("rows", len(out)),
			applogger.Duration("duration_ms", time.Since(start)),
		)
	}
	return out, nil
}
