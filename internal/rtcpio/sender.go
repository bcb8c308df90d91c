// Package rtcpio implements the RTCP sender-report generator and compound
// packet consumer (§4.J): periodic SR emission derived from the PTP-slaved
// clock, and parsing of inbound compound datagrams to track each known
// peer's (NTP, RTP) timestamp pair for later DelaySinceLastSR computation.
package rtcpio

import (
	"fmt"
	"net"
	"time"

	"github.com/ravennakit/ravennakit/internal/netutil"
	"github.com/ravennakit/ravennakit/internal/rtp"
)

// ntpEpochOffset is the number of seconds between the NTP epoch (1900-01-01)
// and the Unix epoch (1970-01-01).
const ntpEpochOffset = 2208988800

// SenderConfig describes the outbound SR stream: where to send it, the
// sender's own SSRC, its media clock rate, and how often to emit (§6's
// rtcp.emit_interval).
type SenderConfig struct {
	InterfaceName string
	Group         net.IP
	Port          int
	SSRC          uint32
	SampleRateHz  uint32
	EmitInterval  time.Duration
}

// Sender periodically emits RTCP SR packets describing one outbound RTP
// stream. It derives its RTP timestamp field from the sender's own clock
// rather than the receive path's ring buffer, matching §4.J's "NTP
// timestamp = local_time_since_1900, RTP timestamp = NTP→RTP using sender
// clock" wording.
type Sender struct {
	cfg  SenderConfig
	conn *net.UDPConn

	packetCount uint32
	octetCount  uint32

	nextEmit time.Time
}

// NewSender constructs a Sender; call Start to open its socket.
func NewSender(cfg SenderConfig) *Sender {
	return &Sender{cfg: cfg}
}

// Start opens the sender's UDP socket bound toward the configured multicast
// group, matching the RTP receiver's socket-setup conventions.
func (s *Sender) Start() error {
	raddr := &net.UDPAddr{IP: s.cfg.Group, Port: s.cfg.Port}
	conn, err := net.DialUDP("udp", nil, raddr)
	if err != nil {
		return fmt.Errorf("rtcpio: dial %s:%d: %w", s.cfg.Group, s.cfg.Port, err)
	}
	s.conn = conn
	return nil
}

// Stop closes the sender's socket.
func (s *Sender) Stop() error {
	if s.conn == nil {
		return nil
	}
	return s.conn.Close()
}

// NoteSentPacket accumulates the outbound RTP stream's packet/octet
// counters, which flow into the next SR's sender-info block.
func (s *Sender) NoteSentPacket(payloadLen int) {
	s.packetCount++
	s.octetCount += uint32(payloadLen)
}

// Due reports whether the periodic SR is due at now.
func (s *Sender) Due(now time.Time) bool {
	return !now.Before(s.nextEmit)
}

// Emit builds and sends one SR, carrying one ReceiverReportBlock per known
// peer SSRC passed by the caller (the peer table itself is owned by the
// node-level façade, which tracks which SSRCs have been heard recently).
// wallNow is the local wall-clock time corresponding to clockRtpTs, the
// sender's own media clock expressed in RTP ticks at that instant.
func (s *Sender) Emit(wallNow time.Time, clockRtpTs uint32, reports []rtp.ReceiverReportBlock) error {
	ntpSec, ntpFrac := toNTP(wallNow)

	sr := rtp.SenderReport{
		SSRC:         s.cfg.SSRC,
		NTPSeconds:   ntpSec,
		NTPFraction:  ntpFrac,
		RTPTimestamp: clockRtpTs,
		PacketCount:  s.packetCount,
		OctetCount:   s.octetCount,
		Reports:      reports,
	}
	buf, err := sr.MarshalBinary()
	if err != nil {
		return fmt.Errorf("rtcpio: marshal SR: %w", err)
	}
	if _, err := s.conn.Write(buf); err != nil {
		return fmt.Errorf("rtcpio: send SR: %w", err)
	}

	s.nextEmit = wallNow.Add(s.cfg.EmitInterval)
	return nil
}

// toNTP converts a wall-clock time to the 64-bit NTP timestamp format
// (seconds since 1900, plus a 32-bit binary fraction).
func toNTP(t time.Time) (seconds, fraction uint32) {
	u := t.Unix()
	seconds = uint32(u + ntpEpochOffset)
	fraction = uint32((int64(t.Nanosecond()) << 32) / int64(time.Second))
	return seconds, fraction
}

// enableDSCP marks the sender's outgoing RTCP traffic per §6 with
// netutil.DSCPExpeditedForwarding.
func (s *Sender) enableDSCP() error {
	return netutil.EnableDSCP(s.conn, netutil.DSCPExpeditedForwarding)
}
