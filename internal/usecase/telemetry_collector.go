package usecase

import (
	"context"

	"CollarPulse/internal/domain/models"
	drepo "CollarPulse/internal/domain/repository"
	mid "CollarPulse/internal/middleware"
)

// TelemetryCollector collects readings from the collar stream and processes them.
type TelemetryCollector struct {
	stream  drepo.CollarStream
	proc    *TelemetryProcessor
	metrics drepo.Metrics
	pipe    *mid.TelemetryPipeline
}

// NewTelemetryCollector creates a new TelemetryCollector instance.
func NewTelemetryCollector(stream drepo.CollarStream, proc *TelemetryProcessor, metrics drepo.Metrics, pipe *mid.TelemetryPipeline) *TelemetryCollector {
	return &TelemetryCollector{stream: stream, proc: proc, metrics: metrics, pipe: pipe}
}

// IsConnected returns true if the collar stream is connected.
func (c *TelemetryCollector) IsConnected() bool {
	return c.stream.IsConnected()
}

func (c *TelemetryCollector) Start(ctx context.Context) error {
	if err := c.stream.Connect(ctx); err != nil {
		return err
	}
	if err := c.stream.Subscribe(ctx); err != nil {
		return err
	}
	if c.pipe != nil {
		c.pipe.Start(ctx)
	}
	ptCh, errCh := c.stream.Read(ctx)
	go c.consume(ctx, ptCh, errCh)
	return nil
}

func (c *TelemetryCollector) consume(ctx context.Context, ptCh <-chan *models.TelemetryPoint, errCh <-chan error) {
	for {
		select {
		case <-ctx.Done():
			return
		case err := <-errCh:
			if err != nil {
				c.metrics.RecordError("stream")
				_ = c.stream.Reconnect(ctx)
			}
		case pt := <-ptCh:
			if pt == nil {
				continue
			}
			if c.pipe != nil {
				_ = c.pipe.Process(ctx, pt)
			} else {
				_ = c.proc.Process(ctx, pt)
			}
			c.metrics.RecordHeartRate(pt.CollarID, float64(pt.HeartRate))
		}
	}
}

func (c *TelemetryCollector) Stop() error { return c.stream.Close() }

// Processor returns the underlying TelemetryProcessor for lifecycle management.
func (c *TelemetryCollector) Processor() *TelemetryProcessor { return c.proc }

// Shutdown stops the pipeline and closes the stream.
func (c *TelemetryCollector) Shutdown(ctx context.Context) error {
	if c.pipe != nil {
		c.pipe.Stop()
	}
	return c.stream.Close()
}
