package behavior

import (
	"reflect"
	"testing"
	"time"

	"CollarPulse/internal/domain/models"
)

var t0 = time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)

func mkPoints(collar string, n int, start time.Time, step time.Duration, hr, activity int) []models.TelemetryPoint {
	out := make([]models.TelemetryPoint, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, models.TelemetryPoint{
			CollarID:      collar,
			Timestamp:     start.Add(time.Duration(i) * step),
			HeartRate:     hr,
			ActivityLevel: activity,
			Lon:           -122.4,
			Lat:           37.7,
		})
	}
	return out
}

func TestAnalyzeTimelineEmptyInput(t *testing.T) {
	it := NewInterpreter()
	rs := models.DefaultRuleSet(t0)

	got := it.AnalyzeTimeline(rs, nil)
	if got == nil {
		t.Fatalf("expected non-nil empty slice")
	}
	if len(got) != 0 {
		t.Fatalf("expected no events, got %d", len(got))
	}
}

func TestAnalyzeTimelineAllMalformed(t *testing.T) {
	it := NewInterpreter()
	rs := models.DefaultRuleSet(t0)
	points := []models.TelemetryPoint{
		{CollarID: "", Timestamp: t0, HeartRate: 50, ActivityLevel: 0},
		{CollarID: "c1", HeartRate: 50, ActivityLevel: 0},              // zero timestamp
		{CollarID: "c1", Timestamp: t0, HeartRate: 999, ActivityLevel: 0}, // impossible HR
		{CollarID: "c1", Timestamp: t0, HeartRate: 50, ActivityLevel: 9},  // bad activity
	}
	got := it.AnalyzeTimeline(rs, points)
	if len(got) != 0 {
		t.Fatalf("expected no events from malformed input, got %d", len(got))
	}
}

func TestAnalyzeTimelineDeepSleep(t *testing.T) {
	it := NewInterpreter()
	rs := models.DefaultRuleSet(t0)

	// 6 resting points with HR in [50,59] spanning 10 minutes, well inside the
	// deep_sleep 30-minute window and meeting its min count of 6.
	points := mkPoints("c1", 6, t0, 2*time.Minute, 55, models.ActivityResting)

	got := it.AnalyzeTimeline(rs, points)
	found := false
	for _, e := range got {
		if e.Behavior == "deep_sleep" {
			found = true
			if e.Confidence < 0 || e.Confidence > 1 {
				t.Fatalf("confidence %f outside [0,1]", e.Confidence)
			}
			if e.SupportingPoints != 6 {
				t.Fatalf("expected 6 supporting points, got %d", e.SupportingPoints)
			}
			if e.Confidence != 1.0 {
				t.Fatalf("fully matching window should have confidence 1.0, got %f", e.Confidence)
			}
			if e.CollarID != "c1" {
				t.Fatalf("unexpected collar %s", e.CollarID)
			}
		}
	}
	if !found {
		t.Fatalf("expected a deep_sleep event, got %+v", got)
	}
}

func TestAnalyzeTimelineAnxiousPacing(t *testing.T) {
	it := NewInterpreter()
	rs := models.DefaultRuleSet(t0)

	points := mkPoints("c2", 7, t0, 2*time.Minute, 92, models.ActivityModerate)

	got := it.AnalyzeTimeline(rs, points)
	found := false
	for _, e := range got {
		if e.Behavior == "anxious_pacing" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected an anxious_pacing event, got %+v", got)
	}
}

func TestAnalyzeTimelineDeterministic(t *testing.T) {
	it := NewInterpreter()
	rs := models.DefaultRuleSet(t0)

	// Unordered input with duplicate timestamps and a malformed entry mixed in.
	points := mkPoints("c1", 8, t0, 3*time.Minute, 55, models.ActivityResting)
	points = append(points, mkPoints("c1", 7, t0.Add(time.Hour), 2*time.Minute, 92, models.ActivityModerate)...)
	points = append(points, points[0]) // duplicate timestamp
	points = append(points, models.TelemetryPoint{CollarID: "c1", Timestamp: t0, HeartRate: 500})
	points[0], points[5] = points[5], points[0]

	a := it.AnalyzeTimeline(rs, points)
	b := it.AnalyzeTimeline(rs, points)
	if !reflect.DeepEqual(a, b) {
		t.Fatalf("two runs differ:\n%+v\n%+v", a, b)
	}
	if len(a) == 0 {
		t.Fatalf("expected events")
	}
	for i := 1; i < len(a); i++ {
		if a[i].Timestamp.Before(a[i-1].Timestamp) {
			t.Fatalf("events not ordered by timestamp: %+v", a)
		}
		if a[i].Timestamp.Equal(a[i-1].Timestamp) && a[i].Behavior < a[i-1].Behavior {
			t.Fatalf("timestamp ties not ordered by behavior: %+v", a)
		}
	}
}

func TestScanResumesAfterMatchedWindow(t *testing.T) {
	it := NewInterpreter()
	rs := models.DefaultRuleSet(t0)

	// 30 resting points every 2 minutes: one continuous hour-long sleep
	// episode. The 30m window should collapse it into ~2 events, not 20+.
	points := mkPoints("c1", 30, t0, 2*time.Minute, 55, models.ActivityResting)

	var sleeps int
	for _, e := range it.AnalyzeTimeline(rs, points) {
		if e.Behavior == "deep_sleep" {
			sleeps++
		}
	}
	if sleeps == 0 || sleeps > 2 {
		t.Fatalf("expected 1-2 deep_sleep events for one episode, got %d", sleeps)
	}
}

func TestBehaviorsEvaluatedIndependently(t *testing.T) {
	it := NewInterpreter()
	rs := models.DefaultRuleSet(t0)

	// Readings that satisfy both grazing (activity 1, HR 60-85) and
	// anxious_pacing's moderate band are matched per-behavior.
	points := mkPoints("c1", 8, t0, 2*time.Minute, 82, models.ActivityModerate)

	byBehavior := map[string]int{}
	for _, e := range it.AnalyzeTimeline(rs, points) {
		byBehavior[e.Behavior]++
	}
	if byBehavior["grazing"] == 0 {
		t.Fatalf("expected grazing event, got %+v", byBehavior)
	}
	if byBehavior["anxious_pacing"] == 0 {
		t.Fatalf("expected overlapping anxious_pacing event, got %+v", byBehavior)
	}
}

func TestConfidenceIsMatchFraction(t *testing.T) {
	it := NewInterpreter()
	rs := &models.BehaviorRuleSet{
		Version:     1,
		LastUpdated: t0,
		Rules: map[string]models.BehaviorRule{
			"deep_sleep": {Name: "deep_sleep", ActivityLevels: []int{0}, HeartRateLow: 40, HeartRateHigh: 65, MinDataPoints: 3, Window: 30 * time.Minute},
		},
	}

	// 3 matching + 1 non-matching point inside the same window.
	points := mkPoints("c1", 3, t0, 2*time.Minute, 55, models.ActivityResting)
	points = append(points, models.TelemetryPoint{
		CollarID: "c1", Timestamp: t0.Add(6 * time.Minute), HeartRate: 120, ActivityLevel: 2, Lon: 0, Lat: 0,
	})

	got := it.AnalyzeTimeline(rs, points)
	if len(got) != 1 {
		t.Fatalf("expected exactly one event, got %d", len(got))
	}
	if got[0].Confidence != 0.75 {
		t.Fatalf("expected confidence 0.75 (3 of 4), got %f", got[0].Confidence)
	}
}

func TestMatchWindow(t *testing.T) {
	it := NewInterpreter()
	rule := models.BehaviorRule{Name: "deep_sleep", ActivityLevels: []int{0}, HeartRateLow: 40, HeartRateHigh: 65, MinDataPoints: 4, Window: 20 * time.Minute}

	hit := mkPoints("c1", 5, t0, 2*time.Minute, 50, models.ActivityResting)
	if !it.MatchWindow(rule, hit) {
		t.Fatalf("expected window match")
	}

	miss := mkPoints("c1", 3, t0, 2*time.Minute, 50, models.ActivityResting)
	if it.MatchWindow(rule, miss) {
		t.Fatalf("expected no match below min_data_points")
	}
	if it.MatchWindow(rule, nil) {
		t.Fatalf("expected no match on empty sample")
	}
}
