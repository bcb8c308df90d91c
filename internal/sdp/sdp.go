// Package sdp is the narrow SDP boundary the core consumes (spec.md §1's
// Non-goals: "the SDP grammar" itself is out of scope). It exposes only the
// receive-relevant fields a session description carries: connection
// address, RTP ports, payload type, sample rate, packet time, source
// filter, and DUP group. Parsing a full SDP document is an external
// collaborator's job.
package sdp

import "net"

// StreamDescription is the subset of an SDP session description the RTP
// receive path needs to join a stream.
type StreamDescription struct {
	ConnectionAddress net.IP
	RTPPort           int
	PayloadType       uint8
	SampleRateHz      uint32
	PacketTimeMs      float64
	SourceFilter      net.IP // unicast source address for source-specific multicast, if any
	DUPGroup          net.IP // redundant (SMPTE 2022-7 style) duplicate stream's group address, if any
}

// HasSourceFilter reports whether this description names a
// source-specific multicast filter.
func (d StreamDescription) HasSourceFilter() bool {
	return d.SourceFilter != nil
}

// HasDUPGroup reports whether this description names a companion
// duplicate-stream group for seamless redundancy switching.
func (d StreamDescription) HasDUPGroup() bool {
	return d.DUPGroup != nil
}
