package rtp

import "github.com/ravennakit/ravennakit/internal/wrap"

// RingBuffer is the timestamp-indexed jitter buffer between the RTP receive
// path and the audio consumer: a byte vector of frame_count*stride bytes
// addressed by RTP/PTP timestamp modulo frame_count, with ground-value fill
// for unwritten or stale positions. The network thread is the sole writer
// (Write, ClearUntil); the audio thread is the sole reader (Read) — no
// locking is used on this path (§5).
type RingBuffer struct {
	frames uint32
	stride int
	data   []byte
	ground byte

	hasNext bool
	nextTs  wrap.U32
}

// NewRingBuffer allocates a ring of frameCount frames of strideBytes each,
// cleared to ground value 0.
func NewRingBuffer(frameCount, strideBytes int) *RingBuffer {
	if frameCount <= 0 || strideBytes <= 0 {
		panic("rtp: ring buffer frame count and stride must be positive")
	}
	return &RingBuffer{
		frames: uint32(frameCount),
		stride: strideBytes,
		data:   make([]byte, frameCount*strideBytes),
	}
}

// SetGroundValue sets the fill byte used for unwritten or erased frames and
// immediately clears the existing buffer contents to it.
func (r *RingBuffer) SetGroundValue(v byte) {
	r.ground = v
	for i := range r.data {
		r.data[i] = v
	}
}

// Write stores payload — a whole number of stride-sized frames — starting
// at timestamp ts. Writes that land entirely behind the buffer's retained
// window (more than frames behind the next expected timestamp) are
// silently discarded.
func (r *RingBuffer) Write(ts uint32, payload []byte) {
	frameCount := uint32(len(payload) / r.stride)
	if frameCount == 0 {
		return
	}
	if !r.hasNext {
		r.nextTs = wrap.New(ts + frameCount)
		r.hasNext = true
	}

	end := wrap.New(ts + frameCount)
	floor := r.nextTs.Sub(r.frames)
	if !end.Greater(floor) {
		return // entirely too old
	}

	r.scatterWrite(ts%r.frames, payload)

	if end.Greater(r.nextTs) {
		r.nextTs = end
	}
}

func (r *RingBuffer) scatterWrite(slot uint32, payload []byte) {
	start := int(slot) * r.stride
	n := copy(r.data[start:], payload)
	if n < len(payload) {
		copy(r.data, payload[n:])
	}
}

// Read fills out (a whole number of stride-sized frames) starting at
// timestamp ts. Frames within [nextTs-frames, nextTs) are copied from the
// ring; frames outside that window (not yet written, or evicted) are
// filled with the ground value. If erase is true, copied source frames are
// overwritten with the ground value after being read.
func (r *RingBuffer) Read(ts uint32, out []byte, erase bool) {
	frameCount := len(out) / r.stride
	if frameCount == 0 {
		return
	}
	if !r.hasNext {
		for i := range out {
			out[i] = r.ground
		}
		return
	}

	floor := r.nextTs.Sub(r.frames)
	for i := 0; i < frameCount; i++ {
		frameTs := wrap.New(ts + uint32(i))
		dst := out[i*r.stride : (i+1)*r.stride]
		if frameTs.GreaterOrEqual(floor) && frameTs.Less(r.nextTs) {
			slot := int((ts + uint32(i)) % r.frames)
			src := r.data[slot*r.stride : slot*r.stride+r.stride]
			copy(dst, src)
			if erase {
				for j := range src {
					src[j] = r.ground
				}
			}
		} else {
			for j := range dst {
				dst[j] = r.ground
			}
		}
	}
}

// ClearUntil advances the ring's frontier to ts, filling any newly-skipped
// region with ground value. It is a no-op (returning false) if ts is not
// strictly newer than the current frontier. A gap larger than the ring's
// capacity clears the entire ring rather than filling only the tail.
func (r *RingBuffer) ClearUntil(ts uint32) bool {
	target := wrap.New(ts)
	if !r.hasNext {
		r.nextTs = target
		r.hasNext = true
		return true
	}
	if !target.Greater(r.nextTs) {
		return false
	}

	gap := r.nextTs.Diff(target)
	if gap < 0 {
		gap = 0
	}
	n := uint32(gap)
	if n > r.frames {
		n = r.frames
	}
	start := r.nextTs.Value()
	for i := uint32(0); i < n; i++ {
		slot := int((start + i) % r.frames)
		frame := r.data[slot*r.stride : slot*r.stride+r.stride]
		for j := range frame {
			frame[j] = r.ground
		}
	}
	r.nextTs = target
	return true
}

// NextTimestamp returns the ring's current frontier timestamp and whether
// it has been initialized by a Write or ClearUntil yet.
func (r *RingBuffer) NextTimestamp() (uint32, bool) {
	return r.nextTs.Value(), r.hasNext
}
