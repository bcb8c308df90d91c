package rtp

import (
	"encoding/binary"
	"fmt"
)

// RTCP packet type octet values recognized on the wire (RFC 3550 §6).
const (
	RTCPTypeSR   uint8 = 200
	RTCPTypeRR   uint8 = 201
	RTCPTypeSDES uint8 = 202
	RTCPTypeBye  uint8 = 203
	RTCPTypeApp  uint8 = 204
)

// ReportBlockLen is the fixed size of a single RTCP reception report block.
const ReportBlockLen = 24

// RTCPPacketView is a zero-copy view over one packet within an RTCP
// compound datagram. Mirrors RAVENNAKIT's rtcp::PacketView, including
// get_next_packet()-style compound iteration.
type RTCPPacketView struct {
	data []byte
}

// NewRTCPPacketView wraps b as the first packet of a (possibly compound)
// RTCP datagram, validating the common header.
func NewRTCPPacketView(b []byte) (RTCPPacketView, error) {
	v := RTCPPacketView{data: b}
	if err := v.validate(); err != nil {
		return RTCPPacketView{}, err
	}
	return v, nil
}

func (v RTCPPacketView) validate() error {
	if len(v.data) < 4 {
		return fmt.Errorf("rtcp: %w", ErrTooShort)
	}
	if v.Version() != 2 {
		return fmt.Errorf("rtcp: %w", ErrInvalidVersion)
	}
	if len(v.data) < v.wordLength()*4 {
		return fmt.Errorf("rtcp: %w", ErrTruncatedHeader)
	}
	return nil
}

func (v RTCPPacketView) wordLength() int {
	return int(binary.BigEndian.Uint16(v.data[2:4])) + 1
}

// Version returns the RTCP version field.
func (v RTCPPacketView) Version() uint8 {
	return v.data[0] >> 6 & 0x3
}

// Padding reports whether this packet carries trailing padding.
func (v RTCPPacketView) Padding() bool {
	return v.data[0]&0x20 != 0
}

// ReceptionReportCount returns the RC field: report-block count for SR/RR,
// source count for SDES/BYE.
func (v RTCPPacketView) ReceptionReportCount() uint8 {
	return v.data[0] & 0x1f
}

// Type returns the packet type octet (SR/RR/SDES/BYE/APP, or an unknown
// value — unrecognized PTs are classified, not rejected, per §4.D).
func (v RTCPPacketView) Type() uint8 {
	return v.data[1]
}

// LengthBytes returns the total length of this packet in bytes, including
// its 4-byte common header.
func (v RTCPPacketView) LengthBytes() int {
	return v.wordLength() * 4
}

// SSRC returns the SSRC/CSRC identifier at offset 4, valid for SR, RR, and
// BYE (first entry).
func (v RTCPPacketView) SSRC() uint32 {
	return binary.BigEndian.Uint32(v.data[4:8])
}

// NTPTimestamp returns the 64-bit NTP timestamp of an SR packet.
func (v RTCPPacketView) NTPTimestamp() (seconds, fraction uint32) {
	return binary.BigEndian.Uint32(v.data[8:12]), binary.BigEndian.Uint32(v.data[12:16])
}

// RTPTimestamp returns the sender's RTP timestamp of an SR packet.
func (v RTCPPacketView) RTPTimestamp() uint32 {
	return binary.BigEndian.Uint32(v.data[16:20])
}

// PacketCount returns the sender's cumulative packet count of an SR packet.
func (v RTCPPacketView) PacketCount() uint32 {
	return binary.BigEndian.Uint32(v.data[20:24])
}

// OctetCount returns the sender's cumulative octet count of an SR packet.
func (v RTCPPacketView) OctetCount() uint32 {
	return binary.BigEndian.Uint32(v.data[24:28])
}

// senderInfoLen is the fixed SR sender-info block following the 4-byte SSRC.
const senderInfoLen = 20 // NTP(8) + RTP ts(4) + pkt count(4) + octet count(4)

// reportBlockBase returns the byte offset of the first report block for the
// packet's type (SR carries the 20-byte sender info before report blocks;
// RR does not).
func (v RTCPPacketView) reportBlockBase() int {
	if v.Type() == RTCPTypeSR {
		return 8 + senderInfoLen
	}
	return 8
}

// ReportBlock returns a view over the i'th reception report block. Valid
// for SR and RR packets; i must be < ReceptionReportCount().
func (v RTCPPacketView) ReportBlock(i int) ReportBlockView {
	base := v.reportBlockBase() + i*ReportBlockLen
	return ReportBlockView{data: v.data[base : base+ReportBlockLen]}
}

// NextPacket returns a view over the next packet in this compound datagram,
// and false if this was the last one.
func (v RTCPPacketView) NextPacket() (RTCPPacketView, bool) {
	next := v.LengthBytes()
	if next >= len(v.data) {
		return RTCPPacketView{}, false
	}
	nv, err := NewRTCPPacketView(v.data[next:])
	if err != nil {
		return RTCPPacketView{}, false
	}
	return nv, true
}

// ReportBlockView is a zero-copy view over a single 24-byte RTCP reception
// report block.
type ReportBlockView struct {
	data []byte
}

// SSRC returns the SSRC of the source described by this block.
func (b ReportBlockView) SSRC() uint32 {
	return binary.BigEndian.Uint32(b.data[0:4])
}

// FractionLost returns the fraction of packets lost since the previous SR/RR.
func (b ReportBlockView) FractionLost() uint8 {
	return b.data[4]
}

// CumulativeLost returns the total number of packets lost, a signed 24-bit
// value per RFC 3550 (sign-extended here into an int32).
func (b ReportBlockView) CumulativeLost() int32 {
	v := uint32(b.data[5])<<16 | uint32(b.data[6])<<8 | uint32(b.data[7])
	if v&0x800000 != 0 {
		v |= 0xff000000
	}
	return int32(v)
}

// ExtendedHighestSequenceNumber returns the cycle count (high 16 bits) and
// highest sequence number received (low 16 bits), packed as on the wire.
func (b ReportBlockView) ExtendedHighestSequenceNumber() uint32 {
	return binary.BigEndian.Uint32(b.data[8:12])
}

// InterarrivalJitter returns the interarrival jitter estimate.
func (b ReportBlockView) InterarrivalJitter() uint32 {
	return binary.BigEndian.Uint32(b.data[12:16])
}

// LastSR returns the middle 32 bits of the NTP timestamp from the last SR
// received from this source (0 if none received yet).
func (b ReportBlockView) LastSR() uint32 {
	return binary.BigEndian.Uint32(b.data[16:20])
}

// DelaySinceLastSR returns the delay, in units of 1/65536 seconds, since
// the last SR was received from this source.
func (b ReportBlockView) DelaySinceLastSR() uint32 {
	return binary.BigEndian.Uint32(b.data[20:24])
}

// CompactNTP returns the "compact" 32-bit form of a 64-bit NTP timestamp:
// the middle 32 bits, per RFC 3550 §4.
func CompactNTP(seconds, fraction uint32) uint32 {
	return (seconds&0xFFFF)<<16 | fraction>>16
}
