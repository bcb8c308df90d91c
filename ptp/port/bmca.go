package port

import ptp "github.com/ravennakit/ravennakit/ptp/protocol"

// dataset is the subset of an Announce's comparison-relevant fields, named
// after IEEE 1588's "dataset comparison algorithm" entries. Only the
// slave-side subset the spec names is implemented: no topology/steps-removed
// tie-break beyond the final clock-identity comparison.
type dataset struct {
	priority1               uint8
	clockClass              ptp.ClockClass
	clockAccuracy           ptp.ClockAccuracy
	offsetScaledLogVariance uint16
	priority2               uint8
	identity                ptp.ClockIdentity
}

func datasetOf(a *ptp.Announce) dataset {
	return dataset{
		priority1:               a.GrandmasterPriority1,
		clockClass:              a.GrandmasterClockQuality.ClockClass,
		clockAccuracy:           a.GrandmasterClockQuality.ClockAccuracy,
		offsetScaledLogVariance: a.GrandmasterClockQuality.OffsetScaledLogVariance,
		priority2:               a.GrandmasterPriority2,
		identity:                a.GrandmasterIdentity,
	}
}

// better reports whether a is preferred over b under the lexicographic
// ordering named in §4.E: priority1, clockClass, clockAccuracy,
// offsetScaledLogVariance, priority2, clockIdentity, each ascending
// (lower numeric value wins), matching IEEE 1588's dataset comparison for
// the "same grandmaster" and "different grandmaster" cases alike — this
// slave never arbitrates its own dataset into the comparison, so the two
// cases collapse into a single lexicographic compare.
func better(a, b dataset) bool {
	if a.priority1 != b.priority1 {
		return a.priority1 < b.priority1
	}
	if a.clockClass != b.clockClass {
		return a.clockClass < b.clockClass
	}
	if a.clockAccuracy != b.clockAccuracy {
		return a.clockAccuracy < b.clockAccuracy
	}
	if a.offsetScaledLogVariance != b.offsetScaledLogVariance {
		return a.offsetScaledLogVariance < b.offsetScaledLogVariance
	}
	if a.priority2 != b.priority2 {
		return a.priority2 < b.priority2
	}
	return a.identity < b.identity
}

// bestOf returns the best of the two Announce messages by the dataset
// comparison, or a if b is nil.
func bestOf(a, b *ptp.Announce) *ptp.Announce {
	if b == nil {
		return a
	}
	if a == nil {
		return b
	}
	if better(datasetOf(b), datasetOf(a)) {
		return b
	}
	return a
}
