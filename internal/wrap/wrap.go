// Package wrap implements wraparound unsigned arithmetic for the fixed-width
// counters used throughout the PTP and RTP wire protocols: RTP sequence
// numbers (16 bit), RTP timestamps (32 bit), and PTP sequence IDs (16 bit).
//
// Comparisons and differences are defined on a circle rather than a line:
// a value is "newer" than another iff the forward distance between them,
// modulo 2^N, falls in (0, 2^(N-1)]. This mirrors the half-range convention
// used by TCP sequence numbers and by RAVENNAKIT's own WrappingUint<T>.
package wrap

import "math/bits"

// Unsigned is the set of integer widths this package is instantiated for.
type Unsigned interface {
	~uint8 | ~uint16 | ~uint32 | ~uint64
}

// W is an N-bit wrapping unsigned counter, where N is the bit width of T.
type W[T Unsigned] struct {
	v T
}

// New constructs a W initialized to v.
func New[T Unsigned](v T) W[T] {
	return W[T]{v: v}
}

// Value returns the current stored value.
func (w W[T]) Value() T {
	return w.v
}

// Set overwrites the stored value without wraparound bookkeeping.
func (w *W[T]) Set(v T) {
	w.v = v
}

// halfRange returns 2^(N-1) for the underlying type of w, i.e. half the
// range of T plus nothing: for a uint16 this is 0x8000.
func halfRange[T Unsigned]() T {
	var zero T
	bitsN := bits.UintSize
	switch any(zero).(type) {
	case uint8:
		bitsN = 8
	case uint16:
		bitsN = 16
	case uint32:
		bitsN = 32
	case uint64:
		bitsN = 64
	}
	return T(T(1) << uint(bitsN-1))
}

// isOlderThan(a, b) reports whether b is strictly older than a: the forward
// distance walking from b to a is nonzero and less than half the range.
// Equivalently, a is strictly "newer" than b. The halfway point is NOT older (ties favor "newer"),
// matching the circle convention used for update()'s accept/reject decision.
func isOlderThan[T Unsigned](a, b T) bool {
	if a == b {
		return false
	}
	return T(b-a) > halfRange[T]()
}

// Less reports whether w is older than other on the circle.
func (w W[T]) Less(other W[T]) bool {
	return isOlderThan(other.v, w.v)
}

// LessOrEqual reports whether w is older than or equal to other on the circle.
func (w W[T]) LessOrEqual(other W[T]) bool {
	return w.v == other.v || w.Less(other)
}

// Greater reports whether w is newer than other on the circle.
func (w W[T]) Greater(other W[T]) bool {
	return other.Less(w)
}

// GreaterOrEqual reports whether w is newer than or equal to other on the circle.
func (w W[T]) GreaterOrEqual(other W[T]) bool {
	return w.v == other.v || w.Greater(other)
}

// Equal reports value equality.
func (w W[T]) Equal(other W[T]) bool {
	return w.v == other.v
}

// Add returns a new W advanced by delta, wrapping on overflow.
func (w W[T]) Add(delta T) W[T] {
	return W[T]{v: w.v + delta}
}

// Sub returns a new W receded by delta, wrapping on underflow.
func (w W[T]) Sub(delta T) W[T] {
	return W[T]{v: w.v - delta}
}

// Diff returns the signed forward delta from w to other: positive iff other
// is newer than w, negative iff older, zero iff equal. The halfway point
// (raw == 2^(N-1)) is returned positive, matching the update/compare
// convention that ties are treated as "newer".
func (w W[T]) Diff(other W[T]) int64 {
	raw := other.v - w.v
	half := halfRange[T]()
	if raw == half || raw < half {
		return int64(raw)
	}
	neg := -raw // unsigned wraparound: 2^N - raw, which is in (0, half)
	return -int64(neg)
}

// Update advances the stored value to v if v is newer-or-equal on the
// circle, returning the forward step taken and true. If v is older than the
// current value, the stored value is left untouched and ok is false.
func (w *W[T]) Update(v T) (step T, ok bool) {
	if isOlderThan(w.v, v) {
		return 0, false
	}
	step = v - w.v
	w.v = v
	return step, true
}

// Common aliases matching the wire widths named throughout the protocol
// layers: RTP sequence numbers and PTP sequence IDs are 16 bit, RTP
// timestamps are 32 bit.
type (
	U8  = W[uint8]
	U16 = W[uint16]
	U32 = W[uint32]
	U64 = W[uint64]
)
