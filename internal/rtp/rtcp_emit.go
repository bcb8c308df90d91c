package rtp

import "encoding/binary"

// ReceiverReportBlock is the owned (as opposed to zero-copy view) form of a
// single reception report block, used when building an outgoing SR.
type ReceiverReportBlock struct {
	SSRC                          uint32
	FractionLost                  uint8
	CumulativeLost                int32 // interpreted as 24-bit signed on the wire
	ExtendedHighestSequenceNumber uint32
	InterarrivalJitter            uint32
	LastSR                        uint32
	DelaySinceLastSR              uint32
}

func (b ReceiverReportBlock) marshalTo(dst []byte) {
	binary.BigEndian.PutUint32(dst[0:4], b.SSRC)
	dst[4] = b.FractionLost
	cl := uint32(b.CumulativeLost) & 0xffffff
	dst[5] = byte(cl >> 16)
	dst[6] = byte(cl >> 8)
	dst[7] = byte(cl)
	binary.BigEndian.PutUint32(dst[8:12], b.ExtendedHighestSequenceNumber)
	binary.BigEndian.PutUint32(dst[12:16], b.InterarrivalJitter)
	binary.BigEndian.PutUint32(dst[16:20], b.LastSR)
	binary.BigEndian.PutUint32(dst[20:24], b.DelaySinceLastSR)
}

// SenderReport is the owned, emit-side representation of an RTCP SR packet,
// used by internal/rtcpio to publish outbound telemetry.
type SenderReport struct {
	SSRC         uint32
	NTPSeconds   uint32
	NTPFraction  uint32
	RTPTimestamp uint32
	PacketCount  uint32
	OctetCount   uint32
	Reports      []ReceiverReportBlock
}

// MarshalBinary encodes the SR as a single (non-compound) RTCP packet.
func (s SenderReport) MarshalBinary() ([]byte, error) {
	if len(s.Reports) > 31 {
		panic("rtp: too many report blocks for a single RTCP RC field")
	}
	total := 28 + ReportBlockLen*len(s.Reports)
	b := make([]byte, total)
	b[0] = 0x80 | byte(len(s.Reports)) // V=2, P=0, RC=count
	b[1] = RTCPTypeSR
	binary.BigEndian.PutUint16(b[2:4], uint16(total/4-1))
	binary.BigEndian.PutUint32(b[4:8], s.SSRC)
	binary.BigEndian.PutUint32(b[8:12], s.NTPSeconds)
	binary.BigEndian.PutUint32(b[12:16], s.NTPFraction)
	binary.BigEndian.PutUint32(b[16:20], s.RTPTimestamp)
	binary.BigEndian.PutUint32(b[20:24], s.PacketCount)
	binary.BigEndian.PutUint32(b[24:28], s.OctetCount)
	for i, r := range s.Reports {
		off := 28 + i*ReportBlockLen
		r.marshalTo(b[off : off+ReportBlockLen])
	}
	return b, nil
}
