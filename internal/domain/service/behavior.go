package service

import (
	"CollarPulse/internal/domain/models"
)

// Interpreter converts a telemetry timeline into behavioral events using an
// immutable rule-set snapshot. Implementations must be pure: identical inputs
// yield identical output sequences.
type Interpreter interface {
	AnalyzeTimeline(rules *models.BehaviorRuleSet, points []models.TelemetryPoint) []models.BehavioralEvent
}

// WindowMatcher answers whether a rule would have matched anywhere within a
// sample of telemetry. Shared by the interpreter and the optimizer's
// feedback-replay scorer.
type WindowMatcher interface {
	MatchWindow(rule models.BehaviorRule, points []models.TelemetryPoint) bool
}
