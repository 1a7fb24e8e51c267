package behavior

import (
	"sort"

	"CollarPulse/internal/domain/models"
	domsvc "CollarPulse/internal/domain/service"
)

// Interpreter converts telemetry timelines into behavioral events. It is a
// pure computation over one immutable input sequence and one immutable
// rule-set snapshot; safe for concurrent use across collars.
type Interpreter struct{}

func NewInterpreter() *Interpreter { return &Interpreter{} }

// AnalyzeTimeline sorts and validates the input, then scans every behavior's
// window independently. Malformed points are skipped per-item; empty or
// all-invalid input yields an empty, non-nil result. Behaviors are evaluated
// fully independently and may overlap in time.
func (it *Interpreter) AnalyzeTimeline(rules *models.BehaviorRuleSet, points []models.TelemetryPoint) []models.BehavioralEvent {
	events := make([]models.BehavioralEvent, 0)
	if rules == nil || len(rules.Rules) == 0 || len(points) == 0 {
		return events
	}

	byCollar := make(map[string][]models.TelemetryPoint)
	for i := range points {
		p := points[i]
		if err := p.Validate(); err != nil {
			continue
		}
		byCollar[p.CollarID] = append(byCollar[p.CollarID], p)
	}
	if len(byCollar) == 0 {
		return events
	}

	collars := make([]string, 0, len(byCollar))
	for id := range byCollar {
		collars = append(collars, id)
	}
	sort.Strings(collars)

	detectors := Registry(rules)
	for _, collarID := range collars {
		series := byCollar[collarID]
		sort.SliceStable(series, func(i, j int) bool {
			return series[i].Timestamp.Before(series[j].Timestamp)
		})
		for _, d := range detectors {
			events = append(events, d.Scan(collarID, series)...)
		}
	}

	// Timestamp ascending, ties broken by behavior name for stability.
	sort.SliceStable(events, func(i, j int) bool {
		if !events[i].Timestamp.Equal(events[j].Timestamp) {
			return events[i].Timestamp.Before(events[j].Timestamp)
		}
		return events[i].Behavior < events[j].Behavior
	})
	return events
}

// MatchWindow reports whether the rule would have matched anywhere in the
// given sample. Invalid points are dropped the same way AnalyzeTimeline
// drops them, so replay decisions mirror detection decisions.
func (it *Interpreter) MatchWindow(rule models.BehaviorRule, points []models.TelemetryPoint) bool {
	series := make([]models.TelemetryPoint, 0, len(points))
	for i := range points {
		if err := points[i].Validate(); err != nil {
			continue
		}
		series = append(series, points[i])
	}
	if len(series) == 0 {
		return false
	}
	sort.SliceStable(series, func(i, j int) bool {
		return series[i].Timestamp.Before(series[j].Timestamp)
	})
	return NewDetector(rule).Match(series)
}

var _ domsvc.Interpreter = (*Interpreter)(nil)
var _ domsvc.WindowMatcher = (*Interpreter)(nil)
