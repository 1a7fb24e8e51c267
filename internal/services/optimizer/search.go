package optimizer

import (
	"hash/fnv"
	"math"
	"math/rand"
	"time"

	"CollarPulse/internal/domain/models"
)

// Strategy proposes candidate rule parameters for one trial. Implementations
// must be deterministic for a given (base rule, trial, rng seed) so that
// optimizer runs are reproducible in tests.
type Strategy interface {
	Propose(base models.BehaviorRule, trial int, rng *rand.Rand) models.BehaviorRule
}

// RandomStrategy perturbs the baseline's heart-rate bounds, minimum count,
// and window duration by bounded random steps.
type RandomStrategy struct {
	HeartRateSpread int           // max +/- bpm shift per bound
	CountSpread     int           // max +/- min_data_points shift
	WindowSpread    time.Duration // max +/- window shift
}

// NewRandomStrategy returns the default perturbation strategy.
func NewRandomStrategy() *RandomStrategy {
	return &RandomStrategy{
		HeartRateSpread: 15,
		CountSpread:     3,
		WindowSpread:    15 * time.Minute,
	}
}

func (s *RandomStrategy) Propose(base models.BehaviorRule, trial int, rng *rand.Rand) models.BehaviorRule {
	c := base.Clone()
	c.HeartRateLow += rng.Intn(2*s.HeartRateSpread+1) - s.HeartRateSpread
	c.HeartRateHigh += rng.Intn(2*s.HeartRateSpread+1) - s.HeartRateSpread
	c.MinDataPoints += rng.Intn(2*s.CountSpread+1) - s.CountSpread
	windowStepMin := int(s.WindowSpread / time.Minute)
	c.Window += time.Duration(rng.Intn(2*windowStepMin+1)-windowStepMin) * time.Minute
	return ClampCandidate(c)
}

// GridStrategy walks fixed offsets around the baseline, one axis at a time.
// Useful for deterministic tests and small budgets.
type GridStrategy struct{}

var gridOffsets = []struct {
	low, high, count int
	window           time.Duration
}{
	{-10, 0, 0, 0}, {10, 0, 0, 0},
	{0, -10, 0, 0}, {0, 10, 0, 0},
	{-5, 5, 0, 0}, {5, -5, 0, 0},
	{0, 0, -1, 0}, {0, 0, 1, 0}, {0, 0, 2, 0},
	{0, 0, 0, -10 * time.Minute}, {0, 0, 0, 10 * time.Minute},
}

func (GridStrategy) Propose(base models.BehaviorRule, trial int, _ *rand.Rand) models.BehaviorRule {
	off := gridOffsets[trial%len(gridOffsets)]
	scale := 1 + trial/len(gridOffsets)
	c := base.Clone()
	c.HeartRateLow += off.low * scale
	c.HeartRateHigh += off.high * scale
	c.MinDataPoints += off.count * scale
	c.Window += off.window * time.Duration(scale)
	return ClampCandidate(c)
}

// ClampCandidate forces a proposal back into the sane parameter domain.
func ClampCandidate(c models.BehaviorRule) models.BehaviorRule {
	if c.HeartRateLow < models.MinHeartRate {
		c.HeartRateLow = models.MinHeartRate
	}
	if c.HeartRateHigh > models.MaxHeartRate {
		c.HeartRateHigh = models.MaxHeartRate
	}
	if c.HeartRateLow >= c.HeartRateHigh {
		c.HeartRateLow = c.HeartRateHigh - 1
		if c.HeartRateLow < models.MinHeartRate {
			c.HeartRateLow = models.MinHeartRate
			c.HeartRateHigh = c.HeartRateLow + 1
		}
	}
	if c.MinDataPoints < models.MinRuleDataPoints {
		c.MinDataPoints = models.MinRuleDataPoints
	}
	if c.MinDataPoints > models.MaxRuleDataPoints {
		c.MinDataPoints = models.MaxRuleDataPoints
	}
	if c.Window < models.MinRuleWindow {
		c.Window = models.MinRuleWindow
	}
	if c.Window > models.MaxRuleWindow {
		c.Window = models.MaxRuleWindow
	}
	return c
}

// ParamDistance measures how far a candidate strays from the baseline.
// Used as the deterministic tie-break when two candidates score equally.
func ParamDistance(a, b models.BehaviorRule) float64 {
	d := math.Abs(float64(a.HeartRateLow-b.HeartRateLow)) +
		math.Abs(float64(a.HeartRateHigh-b.HeartRateHigh)) +
		5*math.Abs(float64(a.MinDataPoints-b.MinDataPoints)) +
		math.Abs((a.Window - b.Window).Minutes())
	return d
}

// seedFor derives a stable per-behavior RNG seed, so search trajectories do
// not depend on run order or wall clock.
func seedFor(behavior string) int64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(behavior))
	return int64(h.Sum64())
}
