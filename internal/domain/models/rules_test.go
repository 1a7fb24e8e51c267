package models

import (
	"encoding/json"
	"reflect"
	"testing"
	"time"
)

func TestRuleSetDocumentRoundTrip(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	rs := DefaultRuleSet(now)

	b, err := json.Marshal(rs.ToDocument())
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var doc RuleSetDocument
	if err := json.Unmarshal(b, &doc); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	got, err := RuleSetFromDocument(&doc)
	if err != nil {
		t.Fatalf("from document: %v", err)
	}
	if got.Version != rs.Version {
		t.Fatalf("version mismatch: got %d want %d", got.Version, rs.Version)
	}
	if !got.LastUpdated.Equal(rs.LastUpdated) {
		t.Fatalf("last_updated mismatch: got %v want %v", got.LastUpdated, rs.LastUpdated)
	}
	if !reflect.DeepEqual(got.Rules, rs.Rules) {
		t.Fatalf("rules mismatch:\ngot  %+v\nwant %+v", got.Rules, rs.Rules)
	}
}

func TestRuleSetFromDocumentRejectsInvalid(t *testing.T) {
	doc := &RuleSetDocument{
		Version: 3,
		Behaviors: map[string]RuleDocument{
			"broken": {HeartRateRange: [2]int{90, 60}, ActivityLevels: []int{0}, MinDataPoints: 3, WindowMinutes: 10},
		},
	}
	if _, err := RuleSetFromDocument(doc); err == nil {
		t.Fatalf("expected error for inverted heart_rate_range")
	}
}

func TestWithRulesDoesNotMutateReceiver(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	rs := DefaultRuleSet(now)
	orig := rs.Rules["deep_sleep"]

	changed := orig.Clone()
	changed.HeartRateHigh = 70
	next := rs.WithRules(now.Add(time.Hour), changed)

	if next.Version != rs.Version+1 {
		t.Fatalf("expected version bump, got %d", next.Version)
	}
	if rs.Rules["deep_sleep"].HeartRateHigh != orig.HeartRateHigh {
		t.Fatalf("receiver was mutated")
	}
	if next.Rules["deep_sleep"].HeartRateHigh != 70 {
		t.Fatalf("replacement not applied")
	}
}

func TestRuleValidate(t *testing.T) {
	cases := []struct {
		name string
		rule BehaviorRule
		ok   bool
	}{
		{"valid", BehaviorRule{Name: "x", ActivityLevels: []int{0}, HeartRateLow: 40, HeartRateHigh: 60, MinDataPoints: 1, Window: time.Minute}, true},
		{"inverted range", BehaviorRule{Name: "x", ActivityLevels: []int{0}, HeartRateLow: 60, HeartRateHigh: 40, MinDataPoints: 1, Window: time.Minute}, false},
		{"zero min points", BehaviorRule{Name: "x", ActivityLevels: []int{0}, HeartRateLow: 40, HeartRateHigh: 60, MinDataPoints: 0, Window: time.Minute}, false},
		{"zero window", BehaviorRule{Name: "x", ActivityLevels: []int{0}, HeartRateLow: 40, HeartRateHigh: 60, MinDataPoints: 1}, false},
		{"bad activity", BehaviorRule{Name: "x", ActivityLevels: []int{5}, HeartRateLow: 40, HeartRateHigh: 60, MinDataPoints: 1, Window: time.Minute}, false},
	}
	for _, tc := range cases {
		err := tc.rule.Validate()
		if tc.ok && err != nil {
			t.Fatalf("%s: unexpected error %v", tc.name, err)
		}
		if !tc.ok && err == nil {
			t.Fatalf("%s: expected error", tc.name)
		}
	}
}

func TestTelemetryRecordToPoint(t *testing.T) {
	rec := TelemetryRecord{
		CollarID:      "collar-7",
		Timestamp:     "2026-03-01T08:00:00Z",
		HeartRate:     55,
		ActivityLevel: 0,
		Location:      GeoJSONPoint{Type: "Point", Coordinates: [2]float64{-122.45, 37.77}},
	}
	p, err := rec.ToPoint()
	if err != nil {
		t.Fatalf("to point: %v", err)
	}
	if p.CollarID != "collar-7" || p.HeartRate != 55 || p.Lon != -122.45 || p.Lat != 37.77 {
		t.Fatalf("unexpected point %+v", p)
	}

	rec.Timestamp = "not-a-time"
	if _, err := rec.ToPoint(); err == nil {
		t.Fatalf("expected parse error")
	}

	rec.Timestamp = "2026-03-01T08:00:00Z"
	rec.HeartRate = 700
	if _, err := rec.ToPoint(); err == nil {
		t.Fatalf("expected heart_rate validation error")
	}
}
