package models

import (
	"fmt"
	"time"
)

// TelemetryRecord is the wire form of a collar reading as delivered by the
// gateway (Kafka topic or WebSocket frame).
type TelemetryRecord struct {
	CollarID      string       `json:"collar_id"`
	Timestamp     string       `json:"timestamp"`
	HeartRate     int          `json:"heart_rate"`
	ActivityLevel int          `json:"activity_level"`
	Location      GeoJSONPoint `json:"location"`
}

// GeoJSONPoint carries a lon/lat pair in GeoJSON order.
type GeoJSONPoint struct {
	Type        string     `json:"type"`
	Coordinates [2]float64 `json:"coordinates"` // [lon, lat]
}

// ToPoint parses and validates the wire record into a TelemetryPoint.
func (r *TelemetryRecord) ToPoint() (TelemetryPoint, error) {
	ts, err := time.Parse(time.RFC3339, r.Timestamp)
	if err != nil {
		return TelemetryPoint{}, fmt.Errorf("parse timestamp %q: %w", r.Timestamp, err)
	}
	p := TelemetryPoint{
		CollarID:      r.CollarID,
		Timestamp:     ts,
		HeartRate:     r.HeartRate,
		ActivityLevel: r.ActivityLevel,
		Lon:           r.Location.Coordinates[0],
		Lat:           r.Location.Coordinates[1],
	}
	if err := p.Validate(); err != nil {
		return TelemetryPoint{}, err
	}
	return p, nil
}

// EventRecord is the wire form of a detected event published downstream.
type EventRecord struct {
	EventID    string  `json:"event_id"`
	Behavior   string  `json:"behavior"`
	Confidence float64 `json:"confidence"`
	Timestamp  string  `json:"timestamp"`
	CollarID   string  `json:"collar_id"`
}

// ToRecord converts an event to its wire form.
func (e *BehavioralEvent) ToRecord() EventRecord {
	return EventRecord{
		EventID:    e.EventID,
		Behavior:   e.Behavior,
		Confidence: e.Confidence,
		Timestamp:  e.Timestamp.UTC().Format(time.RFC3339),
		CollarID:   e.CollarID,
	}
}
