package models

import (
	"fmt"
	"sort"
	"time"
)

// Domain limits for rule parameters. The optimizer never proposes
// candidates outside these bounds.
const (
	MinRuleDataPoints = 1
	MaxRuleDataPoints = 50
	MinRuleWindow     = time.Minute
	MaxRuleWindow     = 120 * time.Minute
)

// BehaviorRule holds the matching thresholds for one named behavior.
// Created and mutated only through the optimizer's apply step; the
// interpreter treats rules as read-only.
type BehaviorRule struct {
	Name           string
	ActivityLevels []int
	HeartRateLow   int
	HeartRateHigh  int
	MinDataPoints  int
	Window         time.Duration
}

// Validate enforces rule invariants.
func (r *BehaviorRule) Validate() error {
	if r.Name == "" {
		return fmt.Errorf("rule name is required")
	}
	if len(r.ActivityLevels) == 0 {
		return fmt.Errorf("rule %s: activity_levels cannot be empty", r.Name)
	}
	for _, lvl := range r.ActivityLevels {
		if lvl < ActivityResting || lvl > ActivityVigorous {
			return fmt.Errorf("rule %s: activity level %d not in {0,1,2}", r.Name, lvl)
		}
	}
	if r.HeartRateLow >= r.HeartRateHigh {
		return fmt.Errorf("rule %s: heart_rate_range low %d must be < high %d", r.Name, r.HeartRateLow, r.HeartRateHigh)
	}
	if r.HeartRateLow < MinHeartRate || r.HeartRateHigh > MaxHeartRate {
		return fmt.Errorf("rule %s: heart_rate_range [%d, %d] outside [%d, %d]", r.Name, r.HeartRateLow, r.HeartRateHigh, MinHeartRate, MaxHeartRate)
	}
	if r.MinDataPoints < MinRuleDataPoints {
		return fmt.Errorf("rule %s: min_data_points must be >= %d", r.Name, MinRuleDataPoints)
	}
	if r.Window <= 0 {
		return fmt.Errorf("rule %s: window must be > 0", r.Name)
	}
	return nil
}

// MatchesPoint reports whether one reading satisfies the rule's constraints.
func (r *BehaviorRule) MatchesPoint(p *TelemetryPoint) bool {
	if p.HeartRate < r.HeartRateLow || p.HeartRate > r.HeartRateHigh {
		return false
	}
	for _, lvl := range r.ActivityLevels {
		if p.ActivityLevel == lvl {
			return true
		}
	}
	return false
}

// Clone returns a deep copy of the rule.
func (r BehaviorRule) Clone() BehaviorRule {
	out := r
	out.ActivityLevels = append([]int(nil), r.ActivityLevels...)
	return out
}

// BehaviorRuleSet is a versioned collection of behavior rules. Instances are
// never mutated in place: every change constructs a new version, so concurrent
// readers always observe a complete, consistent set.
type BehaviorRuleSet struct {
	Version     int
	LastUpdated time.Time
	Rules       map[string]BehaviorRule
}

// Names returns behavior names in deterministic (sorted) order.
func (rs *BehaviorRuleSet) Names() []string {
	names := make([]string, 0, len(rs.Rules))
	for name := range rs.Rules {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Validate checks every rule and map-key consistency.
func (rs *BehaviorRuleSet) Validate() error {
	if len(rs.Rules) == 0 {
		return fmt.Errorf("rule set has no behaviors")
	}
	for name, rule := range rs.Rules {
		if rule.Name != name {
			return fmt.Errorf("rule key %q does not match rule name %q", name, rule.Name)
		}
		if err := rule.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// Clone returns a deep copy of the set.
func (rs *BehaviorRuleSet) Clone() *BehaviorRuleSet {
	out := &BehaviorRuleSet{
		Version:     rs.Version,
		LastUpdated: rs.LastUpdated,
		Rules:       make(map[string]BehaviorRule, len(rs.Rules)),
	}
	for name, rule := range rs.Rules {
		out.Rules[name] = rule.Clone()
	}
	return out
}

// WithRules builds the next version of the set with the given rules replaced.
// The receiver is left untouched.
func (rs *BehaviorRuleSet) WithRules(updatedAt time.Time, replacements ...BehaviorRule) *BehaviorRuleSet {
	out := rs.Clone()
	out.Version = rs.Version + 1
	out.LastUpdated = updatedAt
	for _, rule := range replacements {
		out.Rules[rule.Name] = rule.Clone()
	}
	return out
}

// DefaultRuleSet returns the built-in version-1 configuration used when no
// persisted rule set exists yet.
func DefaultRuleSet(now time.Time) *BehaviorRuleSet {
	rules := []BehaviorRule{
		{Name: "deep_sleep", ActivityLevels: []int{ActivityResting}, HeartRateLow: 40, HeartRateHigh: 65, MinDataPoints: 6, Window: 30 * time.Minute},
		{Name: "grazing", ActivityLevels: []int{ActivityModerate}, HeartRateLow: 60, HeartRateHigh: 85, MinDataPoints: 5, Window: 30 * time.Minute},
		{Name: "anxious_pacing", ActivityLevels: []int{ActivityModerate, ActivityVigorous}, HeartRateLow: 80, HeartRateHigh: 110, MinDataPoints: 7, Window: 20 * time.Minute},
		{Name: "vigorous_play", ActivityLevels: []int{ActivityVigorous}, HeartRateLow: 110, HeartRateHigh: 180, MinDataPoints: 4, Window: 10 * time.Minute},
	}
	rs := &BehaviorRuleSet{Version: 1, LastUpdated: now, Rules: make(map[string]BehaviorRule, len(rules))}
	for _, r := range rules {
		rs.Rules[r.Name] = r
	}
	return rs
}

// RuleSetDocument is the persisted wire form of a rule-set version.
type RuleSetDocument struct {
	Version     int                     `json:"version"`
	LastUpdated time.Time               `json:"last_updated"`
	Behaviors   map[string]RuleDocument `json:"behaviors"`
}

// RuleDocument is the persisted wire form of one rule.
type RuleDocument struct {
	HeartRateRange [2]int  `json:"heart_rate_range"`
	ActivityLevels []int   `json:"activity_levels"`
	MinDataPoints  int     `json:"min_data_points"`
	WindowMinutes  float64 `json:"window_minutes"`
}

// ToDocument converts the set to its persisted form.
func (rs *BehaviorRuleSet) ToDocument() *RuleSetDocument {
	doc := &RuleSetDocument{
		Version:     rs.Version,
		LastUpdated: rs.LastUpdated.UTC(),
		Behaviors:   make(map[string]RuleDocument, len(rs.Rules)),
	}
	for name, rule := range rs.Rules {
		doc.Behaviors[name] = RuleDocument{
			HeartRateRange: [2]int{rule.HeartRateLow, rule.HeartRateHigh},
			ActivityLevels: append([]int(nil), rule.ActivityLevels...),
			MinDataPoints:  rule.MinDataPoints,
			WindowMinutes:  rule.Window.Minutes(),
		}
	}
	return doc
}

// RuleSetFromDocument parses and validates a persisted rule-set document.
// Malformed documents are rejected here, before they can reach the interpreter.
func RuleSetFromDocument(doc *RuleSetDocument) (*BehaviorRuleSet, error) {
	if doc == nil {
		return nil, fmt.Errorf("rule set document is nil")
	}
	rs := &BehaviorRuleSet{
		Version:     doc.Version,
		LastUpdated: doc.LastUpdated,
		Rules:       make(map[string]BehaviorRule, len(doc.Behaviors)),
	}
	for name, rd := range doc.Behaviors {
		rs.Rules[name] = BehaviorRule{
			Name:           name,
			ActivityLevels: append([]int(nil), rd.ActivityLevels...),
			HeartRateLow:   rd.HeartRateRange[0],
			HeartRateHigh:  rd.HeartRateRange[1],
			MinDataPoints:  rd.MinDataPoints,
			Window:         time.Duration(rd.WindowMinutes * float64(time.Minute)),
		}
	}
	if err := rs.Validate(); err != nil {
		return nil, fmt.Errorf("parse rule set: %w", err)
	}
	return rs, nil
}
