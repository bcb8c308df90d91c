package ptpfilter

import "math"

const (
	minStepSize = 0.00001
	maxStepSize = 100000.0
	emaAlpha    = 0.001
)

// IntervalStats tracks the EMA of a measured inter-message interval (e.g.
// PTP Sync or Announce spacing) with an asymmetric step-size limiter: each
// update moves the tracked interval by at most the current step size;
// updates that would move further double the step size (clipped), while
// updates within the step size halve it. The maximum observed deviation
// between a raw sample and the tracked interval is latched for diagnostics.
//
// By design this has no decay back toward the raw EMA during quiet periods,
// so long-run bias from a burst of clipped updates is not guaranteed to
// vanish; this matches the behavior of the original interval_stats.hpp and
// is preserved rather than "fixed".
type IntervalStats struct {
	interval     float64
	maxDeviation float64
	initialized  bool
	currentStep  float64
}

// Update folds a newly measured interval (in milliseconds) into the
// tracked interval.
func (s *IntervalStats) Update(intervalMs float64) {
	if !s.initialized {
		s.interval = intervalMs
		s.initialized = true
		s.currentStep = minStepSize
		return
	}

	ema := emaAlpha*intervalMs + (1-emaAlpha)*s.interval
	step := ema - s.interval

	switch {
	case step > s.currentStep:
		s.interval += s.currentStep
		s.currentStep = math.Min(s.currentStep*2, maxStepSize)
	case step < -s.currentStep:
		s.interval -= s.currentStep
		s.currentStep = math.Min(s.currentStep*2, maxStepSize)
	default:
		s.interval = ema
		s.currentStep = math.Max(s.currentStep/2, minStepSize)
	}

	dev := math.Abs(intervalMs - s.interval)
	if dev > s.maxDeviation {
		s.maxDeviation = dev
	}
}

// Interval returns the currently tracked (smoothed) interval.
func (s *IntervalStats) Interval() float64 {
	return s.interval
}

// MaxDeviation returns the largest deviation observed between a raw sample
// and the tracked interval since construction (or the last Reset).
func (s *IntervalStats) MaxDeviation() float64 {
	return s.maxDeviation
}

// Initialized reports whether at least one sample has been folded in.
func (s *IntervalStats) Initialized() bool {
	return s.initialized
}

// Reset clears the tracked interval, step size, and max deviation.
func (s *IntervalStats) Reset() {
	*s = IntervalStats{}
}
