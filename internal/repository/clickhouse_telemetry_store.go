package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"CollarPulse/internal/domain/models"
	pkgch "CollarPulse/pkg/clickhouse"
	applogger "CollarPulse/pkg/logger"
)

const telemetryTable = "collarpulse.telemetry_raw"

// CHTelemetryStore implements TelemetryStore backed by ClickHouse.
type CHTelemetryStore struct {
	db *sql.DB
	l  *applogger.Logger
}

func NewCHTelemetryStore(ch *pkgch.Client) *CHTelemetryStore {
	return &CHTelemetryStore{db: ch.DB()}
}

// SetLogger injects a structured logger.
func (s *CHTelemetryStore) SetLogger(l *applogger.Logger) { s.l = l }

func (s *CHTelemetryStore) GetRange(ctx context.Context, collarID string, from, to time.Time) ([]models.TelemetryPoint, error) {
	start := time.Now()
	const qtpl = `
        SELECT ts, collar_id, heart_rate, activity_level, lon, lat
        FROM %s
        WHERE collar_id = ? AND ts >= ? AND ts <= ?
        ORDER BY ts ASC
    `
	q := fmt.Sprintf(qtpl, telemetryTable)
	rows, err := s.db.QueryContext(ctx, q, collarID, from, to)
	if err != nil {
		if s.l != nil {
			s.l.Error("clickhouse get_range query error",
				applogger.String("collar_id", collarID),
				applogger.Error(err),
			)
		}
		return nil, fmt.Errorf("get telemetry range: %w", err)
	}
	defer rows.Close()

	out := make([]models.TelemetryPoint, 0, 1024)
	for rows.Next() {
		var p models.TelemetryPoint
		if err := rows.Scan(&p.Timestamp, &p.CollarID, &p.HeartRate, &p.ActivityLevel, &p.Lon, &p.Lat); err != nil {
			if s.l != nil {
				s.l.Error("clickhouse get_range scan error",
					applogger.String("collar_id", collarID),
					applogger.Error(err),
				)
			}
			return nil, fmt.Errorf("scan telemetry: %w", err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		if s.l != nil {
			s.l.Error("clickhouse get_range rows error",
				applogger.String("collar_id", collarID),
				applogger.Error(err),
			)
		}
		return nil, fmt.Errorf("rows: %w", err)
	}
	if s.l != nil {
		s.l.Info("clickhouse get_range ok",
			applogger.String("collar_id", collarID),
			applogger.Int("rows", len(out)),
			applogger.Duration("duration_ms", time.Since(start)),
		)
	}
	return out, nil
}

func (s *CHTelemetryStore) GetWindow(ctx context.Context, collarID string, center time.Time, halfWidth time.Duration) ([]models.TelemetryPoint, error) {
	if halfWidth < 0 {
		return nil, fmt.Errorf("negative half width: %s", halfWidth)
	}
	return s.GetRange(ctx, collarID, center.Add(-halfWidth), center.Add(halfWidth))
}
