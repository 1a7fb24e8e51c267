package middleware

import (
	"context"
	"fmt"
	"sync"
	"time"

	"CollarPulse/internal/domain/models"
	domrepo "CollarPulse/internal/domain/repository"
)

// Proc is the minimal processor interface the pipeline needs.
type Proc interface {
	Process(ctx context.Context, p *models.TelemetryPoint) error
}

// TelemetryPipeline sits between the collar gateway and Kafka.
// It validates, throttles noisy collars, and buffers when downstream is unavailable.
type TelemetryPipeline struct {
	proc     Proc
	metrics  domrepo.Metrics
	maxRPS   int
	bufSize  int
	bufCh    chan *models.TelemetryPoint
	stopCh   chan struct{}
	started  bool
	mu       sync.Mutex
	lastSeen map[string]time.Time // per-collar last accepted time
	// simple format transform hook (optional)
	transform func(*models.TelemetryPoint) *models.TelemetryPoint
	// metrics
	bufDepthGauge func(int)
	throttleWarn  func(string)
}

type PipelineOption func(*TelemetryPipeline)

// WithMaxRPS sets the max readings per second per collar.
func WithMaxRPS(n int) PipelineOption {
	return func(p *TelemetryPipeline) {
		if n > 0 {
			p.maxRPS = n
		}
	}
}

// WithBufferSize sets the temporary buffer size when downstream is unavailable.
func WithBufferSize(n int) PipelineOption {
	return func(p *TelemetryPipeline) {
		if n > 0 {
			p.bufSize = n
		}
	}
}

// WithTransform sets a transformation hook applied before forwarding.
func WithTransform(fn func(*models.TelemetryPoint) *models.TelemetryPoint) PipelineOption {
	return func(p *TelemetryPipeline) { p.transform = fn }
}

// NewTelemetryPipeline creates a new pipeline.
func NewTelemetryPipeline(proc Proc, metrics domrepo.Metrics, opts ...PipelineOption) *TelemetryPipeline {
	p := &TelemetryPipeline{
		proc:     proc,
		metrics:  metrics,
		maxRPS:   20,   // default throttle per collar
		bufSize:  1000, // default buffer
		bufCh:    make(chan *models.TelemetryPoint, 1000),
		stopCh:   make(chan struct{}),
		lastSeen: make(map[string]time.Time),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.bufSize != cap(p.bufCh) {
		p.bufCh = make(chan *models.TelemetryPoint, p.bufSize)
	}
	p.bufDepthGauge = func(n int) { p.metrics.RecordLatency("pipeline_buffer_depth", float64(n)) }
	p.throttleWarn = func(collar string) { p.metrics.RecordError("pipeline_throttle_" + collar) }
	return p
}

// Start launches background flushing of buffered readings.
func (p *TelemetryPipeline) Start(ctx context.Context) {
	p.mu.Lock()
	if p.started {
		p.mu.Unlock()
		return
	}
	p.started = true
	p.mu.Unlock()

	go func() {
		backoff := 50 * time.Millisecond
		for {
			select {
			case <-p.stopCh:
				return
			case pt := <-p.bufCh:
				if pt == nil {
					continue
				}
				if err := p.proc.Process(ctx, pt); err != nil {
					// exponential backoff with cap
					if backoff < 2*time.Second {
						backoff *= 2
					}
					p.metrics.RecordError("pipeline_flush")
					time.Sleep(backoff)
					// requeue if space; drop otherwise
					select {
					case p.bufCh <- pt:
					default:
						p.metrics.RecordError("pipeline_buffer_drop")
					}
				} else {
					backoff = 50 * time.Millisecond
				}
			}
		}
	}()
}

// Stop stops the background flushing.
func (p *TelemetryPipeline) Stop() {
	p.mu.Lock()
	if !p.started {
		p.mu.Unlock()
		return
	}
	p.started = false
	p.mu.Unlock()
	close(p.stopCh)
}

// Process validates, throttles, and forwards a reading downstream, buffering on errors.
func (p *TelemetryPipeline) Process(ctx context.Context, pt *models.TelemetryPoint) error {
	start := time.Now()
	if pt == nil {
		p.metrics.RecordError("pipeline_validate")
		return fmt.Errorf("telemetry point nil")
	}
	if err := pt.Validate(); err != nil {
		p.metrics.RecordError("pipeline_validate")
		return err
	}
	if p.transform != nil {
		pt = p.transform(pt)
		if pt == nil {
			p.metrics.RecordError("pipeline_transform_invalid")
			return fmt.Errorf("transform dropped point")
		}
		if err := pt.Validate(); err != nil {
			p.metrics.RecordError("pipeline_transform_invalid")
			return err
		}
	}
	if !p.allow(pt.CollarID, start) {
		// throttled; record and drop silently
		p.metrics.RecordError("pipeline_throttle")
		if p.throttleWarn != nil {
			p.throttleWarn(pt.CollarID)
		}
		return nil
	}

	p.metrics.RecordHeartRate(pt.CollarID, float64(pt.HeartRate))

	if err := p.proc.Process(ctx, pt); err != nil {
		p.metrics.RecordError("pipeline_process")
		// buffer non-blocking
		select {
		case p.bufCh <- pt:
			if p.bufDepthGauge != nil {
				p.bufDepthGauge(len(p.bufCh))
			}
		default:
			p.metrics.RecordError("pipeline_buffer_full")
		}
		return fmt.Errorf("pipeline downstream: %w", err)
	}
	p.metrics.RecordLatency("pipeline_process", time.Since(start).Seconds())
	return nil
}

func (p *TelemetryPipeline) allow(collarID string, now time.Time) bool {
	if p.maxRPS <= 0 {
		return true
	}
	// simple throttle: at most maxRPS per second per collar
	last := p.lastSeen[collarID]
	if last.IsZero() {
		p.lastSeen[collarID] = now
		return true
	}
	if now.Sub(last) < time.Second/time.Duration(p.maxRPS) {
		return false
	}
	p.lastSeen[collarID] = now
	return true
}
