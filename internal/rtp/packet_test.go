package rtp

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func basicRTPPacket(seq uint16, ts, ssrc uint32, payload []byte) []byte {
	b := make([]byte, 12+len(payload))
	b[0] = 0x80 // V=2
	b[1] = 96
	b[2] = byte(seq >> 8)
	b[3] = byte(seq)
	b[4] = byte(ts >> 24)
	b[5] = byte(ts >> 16)
	b[6] = byte(ts >> 8)
	b[7] = byte(ts)
	b[8] = byte(ssrc >> 24)
	b[9] = byte(ssrc >> 16)
	b[10] = byte(ssrc >> 8)
	b[11] = byte(ssrc)
	copy(b[12:], payload)
	return b
}

func TestPacketViewBasicFields(t *testing.T) {
	raw := basicRTPPacket(1000, 48000, 0xdeadbeef, []byte{1, 2, 3, 4})
	v, err := NewPacketView(raw)
	require.NoError(t, err)
	require.Equal(t, uint8(2), v.Version())
	require.Equal(t, uint16(1000), v.SequenceNumber())
	require.Equal(t, uint32(48000), v.Timestamp())
	require.Equal(t, uint32(0xdeadbeef), v.SSRC())
	require.Equal(t, []byte{1, 2, 3, 4}, v.Payload())
}

func TestPacketViewRejectsShort(t *testing.T) {
	_, err := NewPacketView([]byte{0x80, 0, 0})
	require.ErrorIs(t, err, ErrTooShort)
}

func TestPacketViewRejectsBadVersion(t *testing.T) {
	raw := basicRTPPacket(1, 1, 1, nil)
	raw[0] = 0x40 // version 1
	_, err := NewPacketView(raw)
	require.ErrorIs(t, err, ErrInvalidVersion)
}

func TestPacketViewCSRCList(t *testing.T) {
	raw := basicRTPPacket(1, 1, 1, []byte{9, 9})
	raw[0] = 0x82 // V=2, CC=2
	withCSRC := append(raw[:12], append([]byte{0, 0, 0, 1, 0, 0, 0, 2}, raw[12:]...)...)
	v, err := NewPacketView(withCSRC)
	require.NoError(t, err)
	require.Equal(t, uint8(2), v.CSRCCount())
	require.Equal(t, uint32(1), v.CSRC(0))
	require.Equal(t, uint32(2), v.CSRC(1))
	require.Equal(t, []byte{9, 9}, v.Payload())
}

func TestPacketViewTruncatedHeaderRejected(t *testing.T) {
	raw := basicRTPPacket(1, 1, 1, nil)
	raw[0] = 0x81 // declares 1 CSRC but none present
	_, err := NewPacketView(raw)
	require.ErrorIs(t, err, ErrTruncatedHeader)
}
