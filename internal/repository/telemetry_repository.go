package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"CollarPulse/internal/domain/models"
	"CollarPulse/internal/domain/repository"
	pkgkafka "CollarPulse/pkg/kafka"
)

// ClickHouseStorage implements Storage for ClickHouse.
type ClickHouseStorage struct {
	db    *sql.DB
	table string
}

// NewClickHouseStorage creates ClickHouse storage for raw telemetry.
func NewClickHouseStorage(db *sql.DB, table string) repository.Storage {
	return &ClickHouseStorage{db: db, table: table}
}

func (s *ClickHouseStorage) Init(ctx context.Context) error {
	return nil // Schema init in pkg
}

func (s *ClickHouseStorage) Store(ctx context.Context, p *models.TelemetryPoint) error {
	q := fmt.Sprintf("INSERT INTO %s (ts, collar_id, heart_rate, activity_level, lon, lat) VALUES (?, ?, ?, ?, ?, ?)", s.table)
	_, err := s.db.ExecContext(ctx, q,
		p.Timestamp,
		p.CollarID,
		p.HeartRate,
		p.ActivityLevel,
		p.Lon,
		p.Lat,
	)
	return err
}

func (s *ClickHouseStorage) StoreBatch(ctx context.Context, points []*models.TelemetryPoint) error {
	if len(points) == 0 {
		return nil
	}
	// Batch insert using VALUES multi-row to reduce round-trips.
	// Chunk size tuned to 2000 rows per batch.
	const chunkSize = 2000
	for start := 0; start < len(points); start += chunkSize {
		end := start + chunkSize
		if end > len(points) {
			end = len(points)
		}

		values := make([]string, 0, end-start)
		args := make([]interface{}, 0, (end-start)*6)
		for _, p := range points[start:end] {
			if p == nil || p.CollarID == "" || p.Timestamp.IsZero() {
				continue
			}
			values = append(values, "(?, ?, ?, ?, ?, ?)")
			args = append(args,
				p.Timestamp,
				p.CollarID,
				p.HeartRate,
				p.ActivityLevel,
				p.Lon,
				p.Lat,
			)
		}
		if len(values) == 0 {
			continue
		}
		q := fmt.Sprintf("INSERT INTO %s (ts, collar_id, heart_rate, activity_level, lon, lat) VALUES %s", s.table, strings.Join(values, ","))
		if _, err := s.db.ExecContext(ctx, q, args...); err != nil {
			return err
		}
	}
	return nil
}

func (s *ClickHouseStorage) Health(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *ClickHouseStorage) Close() error {
	return nil // Managed by pkg
}

// KafkaPublisher implements Publisher for Kafka. Telemetry and detected
// events go to separate topics keyed by collar id.
type KafkaPublisher struct {
	producer    *pkgkafka.Producer
	topic       string
	eventsTopic string
}

// NewKafkaPublisher creates a Kafka publisher.
func NewKafkaPublisher(producer *pkgkafka.Producer, topic, eventsTopic string) repository.Publisher {
	return &KafkaPublisher{producer: producer, topic: topic, eventsTopic: eventsTopic}
}

func (p *KafkaPublisher) Publish(ctx context.Context, pt *models.TelemetryPoint) error {
	return p.producer.Publish(ctx, p.topic, []byte(pt.CollarID), telemetryPayload(pt))
}

func (p *KafkaPublisher) PublishBatch(ctx context.Context, points []*models.TelemetryPoint) error {
	if len(points) == 0 {
		return nil
	}
	msgs := make([]pkgkafka.Message, len(points))
	for i, pt := range points {
		msgs[i] = pkgkafka.Message{
			Key:   []byte(pt.CollarID),
			Value: telemetryPayload(pt),
		}
	}
	return p.producer.PublishBatch(ctx, p.topic, msgs)
}

func (p *KafkaPublisher) PublishEvents(ctx context.Context, events []models.BehavioralEvent) error {
	if len(events) == 0 {
		return nil
	}
	msgs := make([]pkgkafka.Message, len(events))
	for i := range events {
		rec := events[i].ToRecord()
		msgs[i] = pkgkafka.Message{
			Key: []byte(rec.CollarID),
			Value: map[string]interface{}{
				"event_id":   rec.EventID,
				"behavior":   rec.Behavior,
				"confidence": rec.Confidence,
				"timestamp":  rec.Timestamp,
				"collar_id":  rec.CollarID,
			},
		}
	}
	return p.producer.PublishBatch(ctx, p.eventsTopic, msgs)
}

func (p *KafkaPublisher) Close() error {
	if p.producer != nil {
		return p.producer.Close()
	}
	return nil
}

func telemetryPayload(pt *models.TelemetryPoint) map[string]interface{} {
	return map[string]interface{}{
		"collar_id":      pt.CollarID,
		"timestamp":      pt.Timestamp.UTC().Format(time.RFC3339),
		"heart_rate":     pt.HeartRate,
		"activity_level": pt.ActivityLevel,
		"location": map[string]interface{}{
			"type":        "Point",
			"coordinates": []float64{pt.Lon, pt.Lat},
		},
	}
}
