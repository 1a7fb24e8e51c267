package middleware

import (
	"context"
	"fmt"
	"testing"
	"time"

	"CollarPulse/internal/domain/models"
)

type captureProc struct {
	got  []*models.TelemetryPoint
	fail bool
}

func (p *captureProc) Process(ctx context.Context, pt *models.TelemetryPoint) error {
	if p.fail {
		return fmt.Errorf("downstream down")
	}
	p.got = append(p.got, pt)
	return nil
}

type nopMetrics struct{}

func (nopMetrics) RecordMessageSent(string, string) {}
func (nopMetrics) RecordError(string) {}
func (nopMetrics) RecordHeartRate(string, float64) {}
func (nopMetrics) RecordLatency(string, float64) {}

func validPoint(collar string, ts time.Time) *models.TelemetryPoint {
	return &models.TelemetryPoint{
		CollarID:      collar,
		Timestamp:     ts,
		HeartRate:     72,
		ActivityLevel: models.ActivityModerate,
		Lon:           -1.25,
		Lat:           51.75,
	}
}

func TestPipelineRejectsInvalidPoint(t *testing.T) {
	proc := &captureProc{}
	p := NewTelemetryPipeline(proc, nopMetrics{})

	bad := validPoint("c-1", time.Now())
	bad.HeartRate = 5
	if err := p.Process(context.Background(), bad); err == nil {
		t.Fatalf("expected validation error")
	}
	if len(proc.got) != 0 {
		t.Fatalf("invalid point must not reach downstream")
	}
}

func TestPipelineForwardsValidPoint(t *testing.T) {
	proc := &captureProc{}
	p := NewTelemetryPipeline(proc, nopMetrics{})

	if err := p.Process(context.Background(), validPoint("c-1", time.Now())); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(proc.got) != 1 {
		t.Fatalf("expected 1 forwarded point, got %d", len(proc.got))
	}
}

func TestPipelineThrottlesPerCollar(t *testing.T) {
	proc := &captureProc{}
	p := NewTelemetryPipeline(proc, nopMetrics{}, WithMaxRPS(1))

	now := time.Now()
	// first accepted, immediate second throttled (dropped without error)
	if err := p.Process(context.Background(), validPoint("c-1", now)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := p.Process(context.Background(), validPoint("c-1", now)); err != nil {
		t.Fatalf("throttled point should drop silently, got %v", err)
	}
	if len(proc.got) != 1 {
		t.Fatalf("expected 1 forwarded point after throttle, got %d", len(proc.got))
	}
}

func TestPipelineBuffersOnDownstreamError(t *testing.T) {
	proc := &captureProc{fail: true}
	p := NewTelemetryPipeline(proc, nopMetrics{}, WithBufferSize(4))

	if err := p.Process(context.Background(), validPoint("c-1", time.Now())); err == nil {
		t.Fatalf("expected downstream error")
	}
	if len(p.bufCh) != 1 {
		t.Fatalf("failed point should be buffered, depth=%d", len(p.bufCh))
	}
}
