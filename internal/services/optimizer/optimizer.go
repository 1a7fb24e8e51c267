package optimizer

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sort"
	"sync"
	"time"

	"CollarPulse/internal/domain/models"
	domrepo "CollarPulse/internal/domain/repository"
	domsvc "CollarPulse/internal/domain/service"
	applogger "CollarPulse/pkg/logger"
)

// ErrPersistRuleSet marks a failed rule-set write. Distinct from "no
// improvement found": the caller must treat it as fatal for the run.
var ErrPersistRuleSet = errors.New("persist rule set")

// IsPersistError reports whether err stems from a failed rule-set write.
func IsPersistError(err error) bool { return errors.Is(err, ErrPersistRuleSet) }

// Stage tracks the optimizer run state machine.
type Stage int

const (
	StageIdle Stage = iota
	StageLoading
	StageSearching
	StageScoring
	StageApplying
	StageReporting
	StageDone
)

func (s Stage) String() string {
	switch s {
	case StageIdle:
		return "idle"
	case StageLoading:
		return "loading"
	case StageSearching:
		return "searching"
	case StageScoring:
		return "scoring"
	case StageApplying:
		return "applying"
	case StageReporting:
		return "reporting"
	case StageDone:
		return "done"
	default:
		return "unknown"
	}
}

// Optimizer holds the collaborators shared across runs.
type Optimizer struct {
	feedback   domrepo.FeedbackStore
	telemetry  domrepo.TelemetryStore
	rules      domrepo.RuleSetStore
	scorer     *AgreementScorer
	strategy   Strategy
	l          *applogger.Logger
	workers    int
	minSamples int
	now        func() time.Time
}

// Option configures the Optimizer.
type Option func(*Optimizer)

// WithStrategy swaps the candidate search strategy.
func WithStrategy(s Strategy) Option {
	return func(o *Optimizer) {
		if s != nil {
			o.strategy = s
		}
	}
}

// WithWorkers bounds per-behavior search concurrency.
func WithWorkers(n int) Option {
	return func(o *Optimizer) {
		if n > 0 {
			o.workers = n
		}
	}
}

// WithMinSamples sets the minimum feedback samples a behavior needs before
// its search is considered meaningful.
func WithMinSamples(n int) Option {
	return func(o *Optimizer) {
		if n > 0 {
			o.minSamples = n
		}
	}
}

// WithLogger injects a structured logger.
func WithLogger(l *applogger.Logger) Option {
	return func(o *Optimizer) { o.l = l }
}

// WithClock overrides the wall clock (tests).
func WithClock(now func() time.Time) Option {
	return func(o *Optimizer) {
		if now != nil {
			o.now = now
		}
	}
}

// New creates an Optimizer.
func New(
	feedback domrepo.FeedbackStore,
	telemetry domrepo.TelemetryStore,
	rules domrepo.RuleSetStore,
	matcher domsvc.WindowMatcher,
	opts ...Option,
) *Optimizer {
	o := &Optimizer{
		feedback:   feedback,
		telemetry:  telemetry,
		rules:      rules,
		scorer:     NewAgreementScorer(matcher),
		strategy:   NewRandomStrategy(),
		workers:    4,
		minSamples: 5,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Run is one optimization pass: Idle -> Loading -> Searching -> Scoring ->
// (Applying | Reporting-only) -> Done.
type Run struct {
	o       *Optimizer
	stage   Stage
	base    *models.BehaviorRuleSet
	samples map[string][]models.ReplaySample
	loaded  int
	started time.Time
}

// NewRun starts a run against the current rule-set version.
func (o *Optimizer) NewRun() *Run {
	return &Run{o: o, stage: StageIdle, samples: make(map[string][]models.ReplaySample)}
}

// Stage returns the run's current stage.
func (r *Run) Stage() Stage { return r.stage }

// LoadFeedback snapshots the active rule set, retrieves up to maxItems
// feedback records, and prefetches the telemetry window around each judged
// event. Returns the count of usable records; zero records is not an error.
func (r *Run) LoadFeedback(ctx context.Context, maxItems int) (int, error) {
	r.stage = StageLoading
	r.started = r.o.now()

	if maxItems < models.MinFeedbackItems {
		maxItems = models.MinFeedbackItems
	}
	if maxItems > models.MaxFeedbackItems {
		maxItems = models.MaxFeedbackItems
	}

	base, err := r.o.rules.Current(ctx)
	if err != nil {
		return 0, fmt.Errorf("load current rule set: %w", err)
	}
	r.base = base

	records, err := r.o.feedback.LoadRecent(ctx, maxItems)
	if err != nil {
		return 0, fmt.Errorf("load feedback: %w", err)
	}

	for i := range records {
		if err := ctx.Err(); err != nil {
			return r.loaded, err
		}
		rec := records[i]
		if err := rec.Validate(); err != nil {
			if r.o.l != nil {
				r.o.l.Warn("optimizer skipping malformed feedback",
					applogger.String("event_id", rec.EventID), applogger.Error(err))
			}
			continue
		}
		points, err := r.o.telemetry.GetWindow(ctx, rec.CollarID, rec.Timestamp, models.MaxRuleWindow)
		if err != nil {
			if r.o.l != nil {
				r.o.l.Warn("optimizer window fetch failed",
					applogger.String("event_id", rec.EventID), applogger.Error(err))
			}
			continue
		}
		r.samples[rec.Behavior] = append(r.samples[rec.Behavior], models.ReplaySample{Record: rec, Points: points})
		r.loaded++
	}
	if r.o.l != nil {
		r.o.l.Info("optimizer feedback loaded",
			applogger.Int("records", r.loaded), applogger.Int("behaviors", len(r.samples)))
	}
	return r.loaded, nil
}

// OptimizeAllBehaviors runs up to trialBudget candidate trials per behavior
// with bounded worker concurrency. Per-behavior failures are isolated;
// aggregation order is deterministic regardless of worker completion order.
func (r *Run) OptimizeAllBehaviors(ctx context.Context, trialBudget int) []models.BehaviorResult {
	r.stage = StageSearching
	if trialBudget < models.MinTrialBudget {
		trialBudget = models.MinTrialBudget
	}
	if trialBudget > models.MaxTrialBudget {
		trialBudget = models.MaxTrialBudget
	}

	names := r.base.Names()
	results := make([]models.BehaviorResult, len(names))

	sem := make(chan struct{}, r.o.workers)
	var wg sync.WaitGroup
	for i, name := range names {
		wg.Add(1)
		go func(idx int, behavior string) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()
			results[idx] = r.optimizeBehavior(ctx, behavior, trialBudget)
		}(i, name)
	}
	wg.Wait()

	r.stage = StageScoring
	return results
}

func (r *Run) optimizeBehavior(ctx context.Context, behavior string, trialBudget int) models.BehaviorResult {
	base := r.base.Rules[behavior]
	samples := r.samples[behavior]
	res := models.BehaviorResult{
		Behavior: behavior,
		Baseline: base.Clone(),
		Proposed: base.Clone(),
		Samples:  len(samples),
	}

	if len(samples) < r.o.minSamples {
		res.Note = fmt.Sprintf("insufficient feedback: %d records, need %d", len(samples), r.o.minSamples)
		return res
	}

	res.BaselineScore = r.o.scorer.Score(base, samples)
	best := base.Clone()
	bestScore := res.BaselineScore
	bestDist := 0.0

	rng := rand.New(rand.NewSource(seedFor(behavior)))
	for trial := 0; trial < trialBudget; trial++ {
		if ctx.Err() != nil {
			res.Note = "search cancelled"
			break
		}
		cand := r.o.strategy.Propose(base, trial, rng)
		if err := cand.Validate(); err != nil {
			continue
		}
		score := r.o.scorer.Score(cand, samples)
		dist := ParamDistance(cand, base)
		// Winner: score desc, parameter distance asc, earliest trial.
		if score > bestScore || (score == bestScore && dist < bestDist) {
			best = cand
			bestScore = score
			bestDist = dist
		}
	}

	res.Proposed = best
	res.BestScore = bestScore
	res.Improved = bestScore > res.BaselineScore
	return res
}

// ApplyOptimizedThresholds builds one new rule-set version containing every
// behavior whose proposal improved on its baseline by at least minImprovement
// (inclusive), and persists it atomically unless dryRun. Behaviors below the
// threshold keep their existing rule. The returned map reports, per behavior,
// whether its proposal was applied.
func (r *Run) ApplyOptimizedThresholds(ctx context.Context, results []models.BehaviorResult, minImprovement float64, dryRun bool) (*models.BehaviorRuleSet, map[string]bool, error) {
	if dryRun {
		r.stage = StageReporting
	} else {
		r.stage = StageApplying
	}
	if minImprovement < models.MinImprovementFloor {
		minImprovement = models.MinImprovementFloor
	}

	applied := make(map[string]bool, len(results))
	var accepted []models.BehaviorRule
	for i := range results {
		res := &results[i]
		ok := res.Note == "" && res.Delta() >= minImprovement
		applied[res.Behavior] = ok && !dryRun
		if ok {
			accepted = append(accepted, res.Proposed)
		}
	}
	if len(accepted) == 0 {
		r.stage = StageDone
		return nil, applied, nil
	}

	next := r.base.WithRules(r.o.now().UTC(), accepted...)
	if err := next.Validate(); err != nil {
		r.stage = StageDone
		return nil, applied, fmt.Errorf("candidate rule set invalid: %w", err)
	}
	if dryRun {
		r.stage = StageDone
		return nil, applied, nil
	}
	if err := ctx.Err(); err != nil {
		// Cancelled before the write: nothing persisted, nothing applied.
		r.stage = StageDone
		for k := range applied {
			applied[k] = false
		}
		return nil, applied, err
	}
	if err := r.o.rules.Save(ctx, next); err != nil {
		r.stage = StageDone
		for k := range applied {
			applied[k] = false
		}
		return nil, applied, fmt.Errorf("%w: %v", ErrPersistRuleSet, err)
	}
	if r.o.l != nil {
		r.o.l.Info("rule set version applied",
			applogger.Int("version", next.Version), applogger.Int("behaviors_changed", len(accepted)))
	}
	r.stage = StageDone
	return next, applied, nil
}

// GenerateOptimizationReport summarizes the run for humans.
func (r *Run) GenerateOptimizationReport(results []models.BehaviorResult, applied map[string]bool, dryRun bool) *models.OptimizationReport {
	report := &models.OptimizationReport{
		StartedAt:      r.started,
		FeedbackLoaded: r.loaded,
		Evaluated:      len(results),
		DryRun:         dryRun,
	}
	sorted := append([]models.BehaviorResult(nil), results...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Behavior < sorted[j].Behavior })

	for i := range sorted {
		res := &sorted[i]
		if res.Improved {
			report.Improved++
		}
		if applied[res.Behavior] {
			report.Applied++
		}
		before := ruleDoc(res.Baseline)
		after := ruleDoc(res.Proposed)
		report.Behaviors = append(report.Behaviors, models.BehaviorReport{
			Behavior:      res.Behavior,
			Before:        before,
			After:         after,
			BaselineScore: res.BaselineScore,
			BestScore:     res.BestScore,
			Delta:         res.Delta(),
			Samples:       res.Samples,
			Applied:       applied[res.Behavior],
			Note:          res.Note,
		})
	}
	return report
}

func ruleDoc(r models.BehaviorRule) models.RuleDocument {
	return models.RuleDocument{
		HeartRateRange: [2]int{r.HeartRateLow, r.HeartRateHigh},
		ActivityLevels: append([]int(nil), r.ActivityLevels...),
		MinDataPoints:  r.MinDataPoints,
		WindowMinutes:  r.Window.Minutes(),
	}
}
