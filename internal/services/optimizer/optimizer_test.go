package optimizer

import (
	"context"
	"fmt"
	"math/rand"
	"reflect"
	"testing"
	"time"

	"CollarPulse/internal/domain/models"
	"CollarPulse/internal/services/behavior"
)

var t0 = time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)

type fakeRuleStore struct {
	rs      *models.BehaviorRuleSet
	saves   int
	saveErr error
}

func (f *fakeRuleStore) Current(_ context.Context) (*models.BehaviorRuleSet, error) {
	return f.rs.Clone(), nil
}

func (f *fakeRuleStore) Save(_ context.Context, rs *models.BehaviorRuleSet) error {
	if f.saveErr != nil {
		return f.saveErr
	}
	f.saves++
	f.rs = rs
	return nil
}

type fakeFeedbackStore struct {
	recs []models.FeedbackRecord
}

func (f *fakeFeedbackStore) LoadRecent(_ context.Context, maxItems int) ([]models.FeedbackRecord, error) {
	if len(f.recs) > maxItems {
		return f.recs[:maxItems], nil
	}
	return f.recs, nil
}

func (f *fakeFeedbackStore) StoreFeedback(_ context.Context, rec *models.FeedbackRecord) error {
	f.recs = append(f.recs, *rec)
	return nil
}

type fakeTelemetryStore struct {
	windows map[string][]models.TelemetryPoint // keyed by collar id
}

func (f *fakeTelemetryStore) GetRange(_ context.Context, collarID string, _, _ time.Time) ([]models.TelemetryPoint, error) {
	return f.windows[collarID], nil
}

func (f *fakeTelemetryStore) GetWindow(_ context.Context, collarID string, _ time.Time, _ time.Duration) ([]models.TelemetryPoint, error) {
	return f.windows[collarID], nil
}

func restingPoints(collar string, n int) []models.TelemetryPoint {
	out := make([]models.TelemetryPoint, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, models.TelemetryPoint{
			CollarID:      collar,
			Timestamp:     t0.Add(time.Duration(i) * time.Minute),
			HeartRate:     55,
			ActivityLevel: models.ActivityResting,
		})
	}
	return out
}

// sparse windows hold exactly 6 matching points (baseline min), dense hold 12.
// Judging sparse windows incorrect and dense ones correct rewards a stricter
// minimum count.
func strictnessFixture() (*fakeFeedbackStore, *fakeTelemetryStore) {
	fb := &fakeFeedbackStore{}
	tel := &fakeTelemetryStore{windows: map[string][]models.TelemetryPoint{}}
	for i := 0; i < 6; i++ {
		collar := fmt.Sprintf("sparse-%d", i)
		tel.windows[collar] = restingPoints(collar, 6)
		fb.recs = append(fb.recs, models.FeedbackRecord{
			EventID: collar + "-deep_sleep-0", CollarID: collar, Behavior: "deep_sleep",
			Judgment: models.JudgmentIncorrect, Timestamp: t0,
		})
	}
	for i := 0; i < 6; i++ {
		collar := fmt.Sprintf("dense-%d", i)
		tel.windows[collar] = restingPoints(collar, 12)
		fb.recs = append(fb.recs, models.FeedbackRecord{
			EventID: collar + "-deep_sleep-0", CollarID: collar, Behavior: "deep_sleep",
			Judgment: models.JudgmentCorrect, Timestamp: t0,
		})
	}
	return fb, tel
}

func newTestOptimizer(fb *fakeFeedbackStore, tel *fakeTelemetryStore, rules *fakeRuleStore, opts ...Option) *Optimizer {
	matcher := behavior.NewInterpreter()
	base := []Option{WithWorkers(2), WithClock(func() time.Time { return t0.Add(time.Hour) })}
	return New(fb, tel, rules, matcher, append(base, opts...)...)
}

func TestRunWithZeroFeedback(t *testing.T) {
	rules := &fakeRuleStore{rs: models.DefaultRuleSet(t0)}
	o := newTestOptimizer(&fakeFeedbackStore{}, &fakeTelemetryStore{}, rules)
	run := o.NewRun()

	n, err := run.LoadFeedback(context.Background(), 1000)
	if err != nil {
		t.Fatalf("load feedback: %v", err)
	}
	if n != 0 {
		t.Fatalf("expected 0 records, got %d", n)
	}

	results := run.OptimizeAllBehaviors(context.Background(), 50)
	if len(results) != len(rules.rs.Rules) {
		t.Fatalf("expected a result per behavior, got %d", len(results))
	}
	for _, res := range results {
		if res.Improved {
			t.Fatalf("behavior %s improved with no data", res.Behavior)
		}
		if res.Note == "" {
			t.Fatalf("behavior %s missing insufficient-data note", res.Behavior)
		}
	}

	rs, applied, err := run.ApplyOptimizedThresholds(context.Background(), results, 0.05, false)
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if rs != nil {
		t.Fatalf("expected no new version")
	}
	if rules.saves != 0 {
		t.Fatalf("persistence requested with zero feedback")
	}

	report := run.GenerateOptimizationReport(results, applied, false)
	if report.Improved != 0 || report.Applied != 0 {
		t.Fatalf("expected zero improved/applied, got %+v", report)
	}
	if report.Evaluated != len(results) {
		t.Fatalf("expected %d evaluated, got %d", len(results), report.Evaluated)
	}
	if run.Stage() != StageDone {
		t.Fatalf("expected done stage, got %s", run.Stage())
	}
}

func TestOptimizeFindsStricterMinimumCount(t *testing.T) {
	fb, tel := strictnessFixture()
	rules := &fakeRuleStore{rs: models.DefaultRuleSet(t0)}
	o := newTestOptimizer(fb, tel, rules, WithStrategy(GridStrategy{}))
	run := o.NewRun()

	if _, err := run.LoadFeedback(context.Background(), 1000); err != nil {
		t.Fatalf("load feedback: %v", err)
	}
	results := run.OptimizeAllBehaviors(context.Background(), 50)

	var sleep *models.BehaviorResult
	for i := range results {
		if results[i].Behavior == "deep_sleep" {
			sleep = &results[i]
		}
	}
	if sleep == nil {
		t.Fatalf("missing deep_sleep result")
	}
	if sleep.BaselineScore != 0.5 {
		t.Fatalf("expected baseline agreement 0.5, got %f", sleep.BaselineScore)
	}
	if sleep.BestScore != 1.0 {
		t.Fatalf("expected best agreement 1.0, got %f", sleep.BestScore)
	}
	// Ties at 1.0 resolve to the candidate nearest the baseline: min count 7.
	if sleep.Proposed.MinDataPoints != 7 {
		t.Fatalf("expected proposed min_data_points 7, got %d", sleep.Proposed.MinDataPoints)
	}

	rs, applied, err := run.ApplyOptimizedThresholds(context.Background(), results, 0.05, false)
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if !applied["deep_sleep"] {
		t.Fatalf("expected deep_sleep applied")
	}
	if rules.saves != 1 {
		t.Fatalf("expected exactly one persisted version, got %d", rules.saves)
	}
	if rs.Version != 2 {
		t.Fatalf("expected version 2, got %d", rs.Version)
	}
	if rs.Rules["deep_sleep"].MinDataPoints != 7 {
		t.Fatalf("new version missing optimized rule")
	}
	// Untouched behaviors retain their previous rule.
	if !reflect.DeepEqual(rs.Rules["vigorous_play"], models.DefaultRuleSet(t0).Rules["vigorous_play"]) {
		t.Fatalf("unimproved behavior was mutated")
	}
}

func TestDryRunNeverPersists(t *testing.T) {
	fb, tel := strictnessFixture()
	rules := &fakeRuleStore{rs: models.DefaultRuleSet(t0)}
	o := newTestOptimizer(fb, tel, rules, WithStrategy(GridStrategy{}))
	run := o.NewRun()

	if _, err := run.LoadFeedback(context.Background(), 1000); err != nil {
		t.Fatalf("load feedback: %v", err)
	}
	results := run.OptimizeAllBehaviors(context.Background(), 50)

	rs, applied, err := run.ApplyOptimizedThresholds(context.Background(), results, 0.05, true)
	if err != nil {
		t.Fatalf("apply dry-run: %v", err)
	}
	if rs != nil {
		t.Fatalf("dry run returned a persisted version")
	}
	if rules.saves != 0 {
		t.Fatalf("dry run persisted a version")
	}
	for behaviorName, ok := range applied {
		if ok {
			t.Fatalf("dry run marked %s applied", behaviorName)
		}
	}
	report := run.GenerateOptimizationReport(results, applied, true)
	if !report.DryRun {
		t.Fatalf("report missing dry_run flag")
	}
	if report.Improved == 0 {
		t.Fatalf("dry run should still report measurable improvement")
	}
}

func TestApplyImprovementBoundaryIsInclusive(t *testing.T) {
	rules := &fakeRuleStore{rs: models.DefaultRuleSet(t0)}
	o := newTestOptimizer(&fakeFeedbackStore{}, &fakeTelemetryStore{}, rules)

	sleep := rules.rs.Rules["deep_sleep"]
	stricter := sleep.Clone()
	stricter.MinDataPoints = 7

	mkResults := func(best float64) []models.BehaviorResult {
		return []models.BehaviorResult{{
			Behavior: "deep_sleep", Baseline: sleep.Clone(), Proposed: stricter.Clone(),
			BaselineScore: 0.5, BestScore: best, Samples: 12, Improved: best > 0.5,
		}}
	}

	// Delta exactly equal to minImprovement is applied.
	run := o.NewRun()
	if _, err := run.LoadFeedback(context.Background(), 100); err != nil {
		t.Fatalf("load: %v", err)
	}
	_, applied, err := run.ApplyOptimizedThresholds(context.Background(), mkResults(0.75), 0.25, false)
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if !applied["deep_sleep"] {
		t.Fatalf("delta == min_improvement should apply (inclusive boundary)")
	}

	// Just below the boundary is not applied.
	run = o.NewRun()
	if _, err := run.LoadFeedback(context.Background(), 100); err != nil {
		t.Fatalf("load: %v", err)
	}
	_, applied, err = run.ApplyOptimizedThresholds(context.Background(), mkResults(0.74), 0.25, false)
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if applied["deep_sleep"] {
		t.Fatalf("delta below min_improvement must not apply")
	}
}

func TestApplyPersistenceFailureIsFatal(t *testing.T) {
	fb, tel := strictnessFixture()
	rules := &fakeRuleStore{rs: models.DefaultRuleSet(t0), saveErr: fmt.Errorf("redis down")}
	o := newTestOptimizer(fb, tel, rules, WithStrategy(GridStrategy{}))
	run := o.NewRun()

	if _, err := run.LoadFeedback(context.Background(), 1000); err != nil {
		t.Fatalf("load feedback: %v", err)
	}
	results := run.OptimizeAllBehaviors(context.Background(), 50)

	rs, applied, err := run.ApplyOptimizedThresholds(context.Background(), results, 0.05, false)
	if err == nil {
		t.Fatalf("expected persistence error")
	}
	if !IsPersistError(err) {
		t.Fatalf("expected ErrPersistRuleSet, got %v", err)
	}
	if rs != nil {
		t.Fatalf("failed apply must not return a new version")
	}
	for behaviorName, ok := range applied {
		if ok {
			t.Fatalf("failed apply marked %s applied", behaviorName)
		}
	}
}

func TestSearchIsDeterministic(t *testing.T) {
	fb, tel := strictnessFixture()
	rules := &fakeRuleStore{rs: models.DefaultRuleSet(t0)}
	o := newTestOptimizer(fb, tel, rules) // seeded random strategy

	runOnce := func() []models.BehaviorResult {
		run := o.NewRun()
		if _, err := run.LoadFeedback(context.Background(), 1000); err != nil {
			t.Fatalf("load feedback: %v", err)
		}
		return run.OptimizeAllBehaviors(context.Background(), 80)
	}

	a := runOnce()
	b := runOnce()
	if !reflect.DeepEqual(a, b) {
		t.Fatalf("two identical runs produced different results:\n%+v\n%+v", a, b)
	}
}

func TestTrialBudgetClamped(t *testing.T) {
	counting := &countingStrategy{}
	fb, tel := strictnessFixture()
	rules := &fakeRuleStore{rs: models.DefaultRuleSet(t0)}
	o := newTestOptimizer(fb, tel, rules, WithStrategy(counting), WithWorkers(1))
	run := o.NewRun()

	if _, err := run.LoadFeedback(context.Background(), 1000); err != nil {
		t.Fatalf("load feedback: %v", err)
	}
	run.OptimizeAllBehaviors(context.Background(), 100000)
	// Only deep_sleep has enough samples; its search must stop at the cap.
	if counting.calls != models.MaxTrialBudget {
		t.Fatalf("expected %d trials, got %d", models.MaxTrialBudget, counting.calls)
	}
}

type countingStrategy struct{ calls int }

func (c *countingStrategy) Propose(base models.BehaviorRule, _ int, _ *rand.Rand) models.BehaviorRule {
	c.calls++
	return base.Clone()
}
