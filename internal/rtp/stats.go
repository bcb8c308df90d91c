package rtp

import "github.com/ravennakit/ravennakit/internal/wrap"

// maxDroppedPending bounds the reclassification list at half the sequence
// range; beyond that the oldest pending entry is evicted (§7 ResourceExhaustion).
const maxDroppedPending = 1 << 15

// Counters is a snapshot of a PacketStats' accumulated totals.
type Counters struct {
	OutOfOrder      uint32
	Duplicates      uint32
	Dropped         uint32
	TooLate         uint32
	Jitter          float64
	PendingOverflow uint32
}

// PacketStats implements the sequence-number accounting state machine: it
// classifies each arriving RTP sequence number as in-order, duplicate,
// dropped (provisionally — subject to later reclassification as
// out-of-order if the packet eventually arrives), or too-late. Ported from
// RAVENNAKIT's rtp::PacketStats, including its pending-dropped
// reclassification list.
type PacketStats struct {
	hasMostRecent bool
	mostRecent    wrap.U16

	totals Counters
	dirty  bool

	droppedPending []uint16
}

// Update folds a newly arrived sequence number into the stats. It returns
// the current totals and true whenever the totals changed (or a pending
// too-late mark needed reporting); otherwise it returns false and the
// totals are not meaningful.
func (s *PacketStats) Update(seq uint16) (Counters, bool) {
	if !s.hasMostRecent {
		s.hasMostRecent = true
		s.mostRecent = wrap.New(seq)
		return Counters{}, false
	}

	cur := wrap.New(seq)
	if !cur.Greater(s.mostRecent) {
		// seq is at or behind most_recent on the circle: duplicate, or a
		// recovered member of the dropped_pending list.
		if s.removeDropped(seq) {
			s.totals.Dropped--
			s.totals.OutOfOrder++
		} else {
			s.totals.Duplicates++
		}
		s.dirty = false
		return s.totals, true
	}

	step, _ := s.mostRecent.Update(seq) // cur is newer, so this always advances
	s.clearOutdatedDropped()
	for i := uint16(1); i < step; i++ {
		s.insertDropped(seq - i)
		s.totals.Dropped++
		s.dirty = true
	}

	if s.dirty {
		s.dirty = false
		return s.totals, true
	}
	return Counters{}, false
}

// MarkTooLate records that a packet arrived too late to be placed into the
// ring buffer. If most_recent_seq is unset, or seq is newer than it, this
// is a no-op: "too late" only applies to packets behind the current front.
func (s *PacketStats) MarkTooLate(seq uint16) {
	if !s.hasMostRecent {
		return
	}
	if !wrap.New(seq).Greater(s.mostRecent) {
		s.totals.TooLate++
		s.dirty = true
	}
}

// Totals returns the current accumulated counters without resetting dirty.
func (s *PacketStats) Totals() Counters {
	return s.totals
}

// MostRecentSequence returns the most recently accepted sequence number and
// whether one has been observed yet.
func (s *PacketStats) MostRecentSequence() (uint16, bool) {
	return s.mostRecent.Value(), s.hasMostRecent
}

func (s *PacketStats) removeDropped(seq uint16) bool {
	for i, p := range s.droppedPending {
		if p == seq {
			last := len(s.droppedPending) - 1
			s.droppedPending[i] = s.droppedPending[last]
			s.droppedPending = s.droppedPending[:last]
			return true
		}
	}
	return false
}

func (s *PacketStats) insertDropped(seq uint16) {
	if len(s.droppedPending) >= maxDroppedPending {
		s.droppedPending = s.droppedPending[1:]
		s.totals.PendingOverflow++
	}
	s.droppedPending = append(s.droppedPending, seq)
}

// clearOutdatedDropped removes pending entries that have wrapped past
// most_recent_seq: once the circle has gone more than halfway around since
// an entry was recorded, it no longer represents a recoverable gap.
func (s *PacketStats) clearOutdatedDropped() {
	kept := s.droppedPending[:0]
	for _, p := range s.droppedPending {
		if !wrap.New(p).Greater(s.mostRecent) {
			kept = append(kept, p)
		}
	}
	s.droppedPending = kept
}
