package rtp

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRingBufferScatterGatherRoundTrip(t *testing.T) {
	r := NewRingBuffer(4, 2)
	r.Write(2, []byte{1, 2, 3, 4, 5, 6, 7, 8})

	out := make([]byte, 8)
	r.Read(2, out, false)
	require.Equal(t, []byte{1, 2, 3, 4, 5, 6, 7, 8}, out)

	future := make([]byte, 4)
	r.Read(6, future, false)
	require.Equal(t, []byte{0, 0, 0, 0}, future)

	require.True(t, r.ClearUntil(10))
}

func TestRingBufferClearUntilNoOpWhenNotNewer(t *testing.T) {
	r := NewRingBuffer(4, 2)
	r.Write(2, []byte{1, 2, 3, 4, 5, 6, 7, 8})
	nextTs, _ := r.NextTimestamp()
	require.False(t, r.ClearUntil(nextTs))
}

func TestRingBufferClearUntilAdvancesFrontier(t *testing.T) {
	r := NewRingBuffer(4, 2)
	r.Write(0, []byte{1, 2, 3, 4, 5, 6, 7, 8})
	ok := r.ClearUntil(10)
	require.True(t, ok)
	nextTs, has := r.NextTimestamp()
	require.True(t, has)
	require.Equal(t, uint32(10), nextTs)
}

func TestRingBufferDiscardsTooOldWrites(t *testing.T) {
	r := NewRingBuffer(4, 2)
	r.Write(100, []byte{9, 9})
	// far behind the retained window: should be silently discarded.
	r.Write(0, []byte{1, 1})
	out := make([]byte, 2)
	r.Read(0, out, false)
	require.Equal(t, []byte{0, 0}, out)
}

func TestRingBufferGroundValueCustom(t *testing.T) {
	r := NewRingBuffer(2, 1)
	r.SetGroundValue(0xff)
	out := make([]byte, 1)
	r.Read(0, out, false)
	require.Equal(t, []byte{0xff}, out)
}

func TestRingBufferEraseOnRead(t *testing.T) {
	r := NewRingBuffer(2, 2)
	r.Write(0, []byte{5, 6, 7, 8})
	out := make([]byte, 2)
	r.Read(0, out, true)
	require.Equal(t, []byte{5, 6}, out)

	out2 := make([]byte, 2)
	r.Read(0, out2, false)
	require.Equal(t, []byte{0, 0}, out2)
}
