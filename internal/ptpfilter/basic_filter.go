// Package ptpfilter implements the outlier-clamped EMA filters that sit
// between raw PTP offset/interval measurements and the servo: BasicFilter
// bounds a single noisy value against an adaptive confidence range, and
// IntervalStats smooths a measured message interval with a step-size
// limiter. Both are ported from RAVENNAKIT's ptp_basic_filter.hpp and
// interval_stats.hpp.
package ptpfilter

// BasicFilter is an outlier-clamping exponential moving average. It tracks a
// confidence range r (seconds), doubling it whenever a sample exceeds it
// (and clamping the sample into [-r, r] before use), and otherwise shrinking
// r toward the sample's magnitude at rate gain.
type BasicFilter struct {
	gain            float64
	confidenceRange float64
}

// NewBasicFilter constructs a BasicFilter with the given gain and a
// confidence range reset to its initial value of 1.0.
func NewBasicFilter(gain float64) *BasicFilter {
	f := &BasicFilter{gain: gain}
	f.Reset()
	return f
}

// Reset restores the confidence range to its initial value of 1.0.
func (f *BasicFilter) Reset() {
	f.confidenceRange = 1.0
}

// Update folds value through the filter and returns value*gain, having
// first clamped value against (and possibly widened) the confidence range.
func (f *BasicFilter) Update(value float64) float64 {
	abs := value
	if abs < 0 {
		abs = -abs
	}
	if abs > f.confidenceRange {
		f.confidenceRange *= 2
		if value > f.confidenceRange {
			value = f.confidenceRange
		} else if value < -f.confidenceRange {
			value = -f.confidenceRange
		}
	} else {
		f.confidenceRange -= (f.confidenceRange - abs) * f.gain
	}
	return value * f.gain
}

// ConfidenceRange returns the current confidence range, primarily for tests
// and diagnostics.
func (f *BasicFilter) ConfidenceRange() float64 {
	return f.confidenceRange
}
