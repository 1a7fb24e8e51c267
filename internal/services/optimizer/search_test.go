package optimizer

import (
	"math/rand"
	"reflect"
	"testing"
	"time"

	"CollarPulse/internal/domain/models"
)

func baseRule() models.BehaviorRule {
	return models.BehaviorRule{
		Name: "deep_sleep", ActivityLevels: []int{0},
		HeartRateLow: 40, HeartRateHigh: 65, MinDataPoints: 6, Window: 30 * time.Minute,
	}
}

func TestClampCandidateDomainLimits(t *testing.T) {
	c := baseRule()
	c.HeartRateLow = 5
	c.HeartRateHigh = 400
	c.MinDataPoints = 0
	c.Window = 10 * time.Hour
	got := ClampCandidate(c)

	if got.HeartRateLow < models.MinHeartRate || got.HeartRateHigh > models.MaxHeartRate {
		t.Fatalf("heart rate not clamped: %+v", got)
	}
	if got.MinDataPoints < models.MinRuleDataPoints {
		t.Fatalf("min_data_points not clamped: %+v", got)
	}
	if got.Window > models.MaxRuleWindow {
		t.Fatalf("window not clamped: %+v", got)
	}
	if err := got.Validate(); err != nil {
		t.Fatalf("clamped candidate invalid: %v", err)
	}
}

func TestClampCandidateFixesInvertedRange(t *testing.T) {
	c := baseRule()
	c.HeartRateLow = 90
	c.HeartRateHigh = 60
	got := ClampCandidate(c)
	if got.HeartRateLow >= got.HeartRateHigh {
		t.Fatalf("range still inverted: %+v", got)
	}
}

func TestRandomStrategyReproducible(t *testing.T) {
	s := NewRandomStrategy()
	base := baseRule()

	gen := func() []models.BehaviorRule {
		rng := rand.New(rand.NewSource(seedFor("deep_sleep")))
		out := make([]models.BehaviorRule, 0, 20)
		for i := 0; i < 20; i++ {
			out = append(out, s.Propose(base, i, rng))
		}
		return out
	}
	if !reflect.DeepEqual(gen(), gen()) {
		t.Fatalf("same seed produced different candidates")
	}
}

func TestRandomStrategyStaysInDomain(t *testing.T) {
	s := NewRandomStrategy()
	base := baseRule()
	rng := rand.New(rand.NewSource(1))
	for i := 0; i < 500; i++ {
		c := s.Propose(base, i, rng)
		if err := c.Validate(); err != nil {
			t.Fatalf("trial %d: invalid candidate %+v: %v", i, c, err)
		}
	}
}

func TestGridStrategyCoversEveryAxis(t *testing.T) {
	base := baseRule()
	var hr, count, window bool
	for i := 0; i < len(gridOffsets); i++ {
		c := GridStrategy{}.Propose(base, i, nil)
		if c.HeartRateLow != base.HeartRateLow || c.HeartRateHigh != base.HeartRateHigh {
			hr = true
		}
		if c.MinDataPoints != base.MinDataPoints {
			count = true
		}
		if c.Window != base.Window {
			window = true
		}
	}
	if !hr || !count || !window {
		t.Fatalf("grid misses an axis: hr=%v count=%v window=%v", hr, count, window)
	}
}

func TestParamDistance(t *testing.T) {
	a := baseRule()
	if ParamDistance(a, a) != 0 {
		t.Fatalf("identical rules must have zero distance")
	}
	b := a.Clone()
	b.MinDataPoints++
	c := a.Clone()
	c.MinDataPoints += 2
	if ParamDistance(b, a) >= ParamDistance(c, a) {
		t.Fatalf("distance not monotone in perturbation size")
	}
}
