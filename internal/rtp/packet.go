// Package rtp implements the wire codecs, sequence/drop accounting, and
// jitter ring buffer for the RTP receive path: a zero-copy PacketView over
// an RTP datagram, RTCP compound-packet views and an SR emitter, the
// dropped/out-of-order/duplicate/too-late packet statistics state machine,
// and the timestamp-indexed jitter ring buffer the audio thread reads from.
package rtp

import (
	"encoding/binary"
	"fmt"
)

// MinHeaderLen is the fixed portion of an RTP header before any CSRC list
// or extension.
const MinHeaderLen = 12

// ParseError classifies a reason an RTP or RTCP packet was rejected. Callers
// count these rather than logging per-packet (§7).
type ParseError string

const (
	ErrTooShort        ParseError = "too_short"
	ErrInvalidVersion  ParseError = "invalid_version"
	ErrTruncatedHeader ParseError = "truncated_header"
	ErrTruncatedExt    ParseError = "truncated_extension"
)

func (e ParseError) Error() string {
	return string(e)
}

// PacketView is a zero-copy, read-only view over a single RTP packet's wire
// bytes. It never copies the payload; callers that need to retain data past
// the lifetime of the receive buffer must copy explicitly. Mirrors the
// accessor set of RAVENNAKIT's rtp::PacketView.
type PacketView struct {
	data []byte
}

// NewPacketView wraps b as a PacketView without copying, validating the
// fixed header and declared lengths. The returned view is only valid for as
// long as b is not mutated or reused.
func NewPacketView(b []byte) (PacketView, error) {
	v := PacketView{data: b}
	if err := v.validate(); err != nil {
		return PacketView{}, err
	}
	return v, nil
}

func (v PacketView) validate() error {
	if len(v.data) < MinHeaderLen {
		return fmt.Errorf("rtp: %w", ErrTooShort)
	}
	if v.Version() != 2 {
		return fmt.Errorf("rtp: %w", ErrInvalidVersion)
	}
	hdrLen := MinHeaderLen + 4*int(v.CSRCCount())
	if len(v.data) < hdrLen {
		return fmt.Errorf("rtp: %w", ErrTruncatedHeader)
	}
	if v.Extension() {
		if len(v.data) < hdrLen+4 {
			return fmt.Errorf("rtp: %w", ErrTruncatedExt)
		}
		extWords := binary.BigEndian.Uint16(v.data[hdrLen+2 : hdrLen+4])
		hdrLen += 4 + 4*int(extWords)
		if len(v.data) < hdrLen {
			return fmt.Errorf("rtp: %w", ErrTruncatedExt)
		}
	}
	return nil
}

// Version returns the RTP version field; only 2 is accepted by NewPacketView.
func (v PacketView) Version() uint8 {
	return v.data[0] >> 6 & 0x3
}

// Padding reports whether the packet carries trailing padding.
func (v PacketView) Padding() bool {
	return v.data[0]&0x20 != 0
}

// Extension reports whether a header extension is present.
func (v PacketView) Extension() bool {
	return v.data[0]&0x10 != 0
}

// CSRCCount returns the number of contributing source identifiers.
func (v PacketView) CSRCCount() uint8 {
	return v.data[0] & 0x0f
}

// Marker returns the marker bit.
func (v PacketView) Marker() bool {
	return v.data[1]&0x80 != 0
}

// PayloadType returns the 7-bit RTP payload type.
func (v PacketView) PayloadType() uint8 {
	return v.data[1] & 0x7f
}

// SequenceNumber returns the 16-bit sequence number.
func (v PacketView) SequenceNumber() uint16 {
	return binary.BigEndian.Uint16(v.data[2:4])
}

// Timestamp returns the 32-bit RTP timestamp, in the media clock domain.
func (v PacketView) Timestamp() uint32 {
	return binary.BigEndian.Uint32(v.data[4:8])
}

// SSRC returns the synchronization source identifier.
func (v PacketView) SSRC() uint32 {
	return binary.BigEndian.Uint32(v.data[8:12])
}

// CSRC returns the i'th contributing source identifier. Panics if i is out
// of range; callers should check against CSRCCount first.
func (v PacketView) CSRC(i int) uint32 {
	off := MinHeaderLen + 4*i
	return binary.BigEndian.Uint32(v.data[off : off+4])
}

func (v PacketView) csrcEnd() int {
	return MinHeaderLen + 4*int(v.CSRCCount())
}

// ExtensionProfile returns the profile-defined extension identifier. Only
// valid when Extension() is true.
func (v PacketView) ExtensionProfile() uint16 {
	return binary.BigEndian.Uint16(v.data[v.csrcEnd() : v.csrcEnd()+2])
}

// ExtensionData returns the raw extension body (excluding the 4-byte
// profile+length header), without copying. Only valid when Extension() is
// true.
func (v PacketView) ExtensionData() []byte {
	start := v.csrcEnd()
	words := binary.BigEndian.Uint16(v.data[start+2 : start+4])
	dataStart := start + 4
	return v.data[dataStart : dataStart+4*int(words)]
}

// HeaderLength returns the total header length in bytes, including any CSRC
// list and extension.
func (v PacketView) HeaderLength() int {
	h := v.csrcEnd()
	if v.Extension() {
		words := binary.BigEndian.Uint16(v.data[h+2 : h+4])
		h += 4 + 4*int(words)
	}
	return h
}

// Payload returns the packet payload without copying.
func (v PacketView) Payload() []byte {
	return v.data[v.HeaderLength():]
}

// Size returns the total packet length in bytes.
func (v PacketView) Size() int {
	return len(v.data)
}

// Bytes returns the underlying wire bytes without copying.
func (v PacketView) Bytes() []byte {
	return v.data
}
