package usecase

import (
	"context"
	"fmt"
	"sync"

	"CollarPulse/internal/domain/models"
	domrepo "CollarPulse/internal/domain/repository"
	svcmetrics "CollarPulse/internal/service/metrics"
	"CollarPulse/internal/service/notify"
	"CollarPulse/internal/services/optimizer"
	applogger "CollarPulse/pkg/logger"
)

// OptimizationUseCase drives one threshold-optimization run end to end:
// load feedback, search candidates per behavior, apply winners, report.
// Runs are serialized; a second invocation waits for the first.
type OptimizationUseCase struct {
	opt      *optimizer.Optimizer
	rules    domrepo.RuleSetStore
	notifier notify.Notifier
	l        *applogger.Logger
	mu       sync.Mutex
}

func NewOptimizationUseCase(opt *optimizer.Optimizer, rules domrepo.RuleSetStore, notifier notify.Notifier, l *applogger.Logger) *OptimizationUseCase {
	if notifier == nil {
		notifier = notify.NopNotifier{}
	}
	return &OptimizationUseCase{opt: opt, rules: rules, notifier: notifier, l: l}
}

type OptimizeParams struct {
	DryRun           bool
	TrialBudget      int
	MinImprovement   float64
	MaxFeedbackItems int
}

// Optimize runs the full pass and returns the invocation contract response.
// A persistence failure after a successful search is fatal; every other
// per-behavior problem degrades to a reported note.
func (uc *OptimizationUseCase) Optimize(ctx context.Context, p OptimizeParams) (*models.OptimizationResponse, error) {
	uc.mu.Lock()
	defer uc.mu.Unlock()

	run := uc.opt.NewRun()
	loaded, err := run.LoadFeedback(ctx, p.MaxFeedbackItems)
	if err != nil {
		svcmetrics.OptimizerRuns.WithLabelValues("load_failed").Inc()
		return nil, fmt.Errorf("load feedback: %w", err)
	}

	results := run.OptimizeAllBehaviors(ctx, p.TrialBudget)
	newSet, applied, err := run.ApplyOptimizedThresholds(ctx, results, p.MinImprovement, p.DryRun)
	if err != nil {
		if optimizer.IsPersistError(err) {
			svcmetrics.OptimizerRuns.WithLabelValues("persist_failed").Inc()
		} else {
			svcmetrics.OptimizerRuns.WithLabelValues("failed").Inc()
		}
		return nil, err
	}

	report := run.GenerateOptimizationReport(results, applied, p.DryRun)
	for i := range report.Behaviors {
		svcmetrics.OptimizerTrials.WithLabelValues(report.Behaviors[i].Behavior).Observe(report.Behaviors[i].BestScore)
	}
	outcome := "reported"
	if report.Applied > 0 {
		outcome = "applied"
	}
	svcmetrics.OptimizerRuns.WithLabelValues(outcome).Inc()

	if uc.l != nil {
		uc.l.Info("optimization run finished",
			applogger.Int("feedback_loaded", loaded),
			applogger.Int("evaluated", report.Evaluated),
			applogger.Int("improved", report.Improved),
			applogger.Int("applied", report.Applied),
			applogger.Bool("dry_run", p.DryRun),
		)
	}

	uc.notifier.OptimizationFinished(ctx, report)

	var updated *models.RuleSetDocument
	if newSet != nil {
		updated = newSet.ToDocument()
	} else if cur, cerr := uc.rules.Current(ctx); cerr == nil {
		// nothing applied; echo the version still in force
		updated = cur.ToDocument()
	}
	return &models.OptimizationResponse{
		OptimizationReport: report,
		UpdatedConfig:      updated,
		DryRun:             p.DryRun,
	}, nil
}

// CurrentRuleSet exposes the active configuration for the ruleset endpoint.
func (uc *OptimizationUseCase) CurrentRuleSet(ctx context.Context) (*models.RuleSetDocument, error) {
	rs, err := uc.rules.Current(ctx)
	if err != nil {
		return nil, fmt.Errorf("load ruleset: %w", err)
	}
	return rs.ToDocument(), nil
}
