package rtpio

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/require"
)

func buildRTP(seq uint16, ts, ssrc uint32, payload []byte) []byte {
	b := make([]byte, 12+len(payload))
	b[0] = 0x80 // version 2, no padding/ext/csrc
	b[1] = 96
	binary.BigEndian.PutUint16(b[2:], seq)
	binary.BigEndian.PutUint32(b[4:], ts)
	binary.BigEndian.PutUint32(b[8:], ssrc)
	copy(b[12:], payload)
	return b
}

func newTestReceiver() *Receiver {
	return New(Config{
		JitterBufferFrames: 8,
		StrideBytes:        2,
		SampleRateHz:       48000,
	})
}

func TestUpdateJitterAccumulatesRFC3550Estimate(t *testing.T) {
	r := newTestReceiver()
	r.updateJitter(1000, 1000)
	require.Equal(t, float64(0), r.JitterTicks())

	r.updateJitter(2000, 3000) // transit jumps by +1000 relative to previous transit of 0
	require.Greater(t, r.JitterTicks(), float64(0))
}

func TestCountersZeroOnNewReceiver(t *testing.T) {
	r := newTestReceiver()
	require.Equal(t, Counters{}, r.Counters())
}
