package usecase

import (
	"context"
	"fmt"

	applogger "CollarPulse/pkg/logger"
	"CollarPulse/pkg/queue"
)

const ErrorLogJobType = "error_logs"

// LogDrainJob consumes aggregated error-log batches from the queue and
// emits one summary line per batch.
type LogDrainJob struct {
	l *applogger.Logger
}

func NewLogDrainJob(l *applogger.Logger) *LogDrainJob {
	return &LogDrainJob{l: l}
}

func (j *LogDrainJob) Name() string { return "error_log_drain" }
func (j *LogDrainJob) Type() string { return ErrorLogJobType }

func (j *LogDrainJob) Handle(ctx context.Context, payload interface{}) error {
	entries, err := queue.ParsePayload[[]applogger.AggregatedLogEntry](payload)
	if err != nil {
		return fmt.Errorf("parse log batch: %w", err)
	}
	total := 0
	for _, e := range *entries {
		total += e.Count
	}
	if j.l != nil {
		j.l.Info("aggregated error logs drained",
			applogger.Int("unique", len(*entries)),
			applogger.Int("total", total),
		)
	}
	return nil
}

var _ queue.Job = (*LogDrainJob)(nil)
