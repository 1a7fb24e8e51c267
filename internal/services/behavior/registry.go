package behavior

import (
	"CollarPulse/internal/domain/models"
)

// Detector matches one behavior's rule against a sorted telemetry series.
// Adding a behavior means adding a rule to the set, not new detector code.
type Detector struct {
	rule models.BehaviorRule
}

// NewDetector wraps a rule in its detector.
func NewDetector(rule models.BehaviorRule) *Detector {
	return &Detector{rule: rule.Clone()}
}

// Rule returns the detector's rule.
func (d *Detector) Rule() models.BehaviorRule { return d.rule }

// Scan slides the rule's window across a time-sorted series for one collar and
// emits one event per matched window. After a match the scan resumes strictly
// after the window end, so a single episode cannot emit near-duplicate events.
func (d *Detector) Scan(collarID string, series []models.TelemetryPoint) []models.BehavioralEvent {
	var events []models.BehavioralEvent
	i := 0
	for i < len(series) {
		start := series[i].Timestamp
		end := start.Add(d.rule.Window)

		supporting, total := 0, 0
		j := i
		for ; j < len(series) && !series[j].Timestamp.After(end); j++ {
			total++
			if d.rule.MatchesPoint(&series[j]) {
				supporting++
			}
		}

		if supporting >= d.rule.MinDataPoints {
			events = append(events, models.BehavioralEvent{
				EventID:          models.EventID(collarID, d.rule.Name, start),
				Behavior:         d.rule.Name,
				Confidence:       clamp01(float64(supporting) / float64(total)),
				Timestamp:        start,
				CollarID:         collarID,
				SupportingPoints: supporting,
			})
			i = j // first point strictly after window end
			continue
		}
		i++
	}
	return events
}

// Match reports whether any anchored window within the series satisfies the
// rule. Used by the optimizer to replay feedback against candidate rules.
func (d *Detector) Match(series []models.TelemetryPoint) bool {
	for i := range series {
		end := series[i].Timestamp.Add(d.rule.Window)
		supporting := 0
		for j := i; j < len(series) && !series[j].Timestamp.After(end); j++ {
			if d.rule.MatchesPoint(&series[j]) {
				supporting++
			}
		}
		if supporting >= d.rule.MinDataPoints {
			return true
		}
	}
	return false
}

// Registry builds detectors for a rule-set snapshot in deterministic order.
func Registry(rs *models.BehaviorRuleSet) []*Detector {
	names := rs.Names()
	out := make([]*Detector, 0, len(names))
	for _, name := range names {
		out = append(out, NewDetector(rs.Rules[name]))
	}
	return out
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
