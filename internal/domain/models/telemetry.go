package models

import (
	"fmt"
	"time"
)

// Activity levels reported by collar firmware.
const (
	ActivityResting  = 0
	ActivityModerate = 1
	ActivityVigorous = 2
)

// Physiological bounds for collar heart-rate sensors.
const (
	MinHeartRate = 20
	MaxHeartRate = 260
)

// TelemetryPoint is one wearable-sensor reading for a tracked animal.
// Immutable once created; produced by ingestion, consumed by the interpreter.
type TelemetryPoint struct {
	CollarID      string
	Timestamp     time.Time
	HeartRate     int
	ActivityLevel int
	Lon           float64
	Lat           float64
}

// Validate checks a single reading. Invalid points are skipped per-item
// during analysis, never failing the whole timeline.
func (p *TelemetryPoint) Validate() error {
	if p.CollarID == "" {
		return fmt.Errorf("collar_id is required")
	}
	if p.Timestamp.IsZero() {
		return fmt.Errorf("timestamp is required")
	}
	if p.HeartRate < MinHeartRate || p.HeartRate > MaxHeartRate {
		return fmt.Errorf("heart_rate %d outside [%d, %d]", p.HeartRate, MinHeartRate, MaxHeartRate)
	}
	switch p.ActivityLevel {
	case ActivityResting, ActivityModerate, ActivityVigorous:
	default:
		return fmt.Errorf("activity_level %d not in {0,1,2}", p.ActivityLevel)
	}
	if p.Lon < -180 || p.Lon > 180 {
		return fmt.Errorf("longitude %f outside [-180, 180]", p.Lon)
	}
	if p.Lat < -90 || p.Lat > 90 {
		return fmt.Errorf("latitude %f outside [-90, 90]", p.Lat)
	}
	return nil
}
