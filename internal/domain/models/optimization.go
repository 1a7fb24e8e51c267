package models

import "time"

// Optimizer invocation bounds. Requests outside these ranges are clamped.
const (
	MinTrialBudget      = 10
	MaxTrialBudget      = 200
	MinImprovementFloor = 0.01
	MinFeedbackItems    = 100
	MaxFeedbackItems    = 5000
)

// ReplaySample pairs one feedback record with the telemetry window
// surrounding the judged event. Prefetched during the optimizer's loading
// stage so that candidate scoring stays pure and parallelizable.
type ReplaySample struct {
	Record FeedbackRecord
	Points []TelemetryPoint
}

// BehaviorResult is the transient outcome of one behavior's threshold search.
type BehaviorResult struct {
	Behavior      string
	Baseline      BehaviorRule
	Proposed      BehaviorRule
	BaselineScore float64
	BestScore     float64
	Samples       int
	Improved      bool
	Note          string
}

// Delta returns the score improvement of the proposal over the baseline.
func (r *BehaviorResult) Delta() float64 { return r.BestScore - r.BaselineScore }

// BehaviorReport is the per-behavior section of an optimization report.
type BehaviorReport struct {
	Behavior      string       `json:"behavior"`
	Before        RuleDocument `json:"before"`
	After         RuleDocument `json:"after"`
	BaselineScore float64      `json:"baseline_score"`
	BestScore     float64      `json:"best_score"`
	Delta         float64      `json:"delta"`
	Samples       int          `json:"samples"`
	Applied       bool         `json:"applied"`
	Note          string       `json:"note,omitempty"`
}

// OptimizationReport summarizes one optimizer run.
type OptimizationReport struct {
	StartedAt      time.Time        `json:"started_at"`
	FeedbackLoaded int              `json:"feedback_loaded"`
	Evaluated      int              `json:"behaviors_evaluated"`
	Improved       int              `json:"behaviors_improved"`
	Applied        int              `json:"behaviors_applied"`
	DryRun         bool             `json:"dry_run"`
	Behaviors      []BehaviorReport `json:"behaviors"`
}

// OptimizationResponse is the invocation contract's response shape.
type OptimizationResponse struct {
	OptimizationReport *OptimizationReport `json:"optimization_report"`
	UpdatedConfig      *RuleSetDocument    `json:"updated_config"`
	DryRun             bool                `json:"dry_run"`
}
