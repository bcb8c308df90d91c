// Package rtpio implements the RTP receiver's socket ingest loop (§4.I):
// joining a multicast group, validating incoming datagrams as RTP, feeding
// sequence-number accounting, writing payloads into the jitter ring buffer,
// and computing RFC 3550 interarrival jitter. It owns the one UDP socket
// per configured stream; callers drive it from the single-threaded event
// loop described in §5.
package rtpio

import (
	"fmt"
	"net"

	log "github.com/sirupsen/logrus"

	"github.com/ravennakit/ravennakit/internal/netutil"
	"github.com/ravennakit/ravennakit/internal/rtp"
)

// Config describes one receive stream: a multicast group/port pair, the
// interface to join it on, an optional SSRC filter, and the ring buffer
// geometry (§6's rtp.* config keys).
type Config struct {
	InterfaceName      string
	Group              net.IP
	Port               int
	SSRCFilter         uint32 // applied only when HasSSRCFilter is set
	HasSSRCFilter      bool
	JitterBufferFrames int
	StrideBytes        int
	GroundValueByte    byte
	SampleRateHz       uint32
}

// Counters accumulates the receiver's own event counts, distinct from
// PacketStats (§4.G), for parse failures and filtering decisions (§4.I,
// §7's ParseError/SocketError kinds).
type Counters struct {
	InvalidPackets   uint64
	SSRCMismatches   uint64
	SocketErrors     uint64
}

// Receiver ingests one configured RTP stream.
type Receiver struct {
	cfg   Config
	conn  *net.UDPConn
	stats rtp.PacketStats
	ring  *rtp.RingBuffer

	lastSockErr error
	counters    Counters

	haveJitterBase bool
	prevTransitTicks  int64
	jitterEstimate float64
}

// New constructs a Receiver and allocates its ring buffer, but does not
// open the socket; call Start for that.
func New(cfg Config) *Receiver {
	return &Receiver{
		cfg:  cfg,
		ring: rtp.NewRingBuffer(cfg.JitterBufferFrames, cfg.StrideBytes),
	}
}

// Start opens the UDP socket, sets SO_REUSEADDR, and joins the configured
// multicast group (§4.I step 1). It returns a ConfigError-equivalent on any
// failure, per §7: the core never partially starts.
func (r *Receiver) Start() error {
	r.ring.SetGroundValue(r.cfg.GroundValueByte)

	conn, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.IPv4zero, Port: r.cfg.Port})
	if err != nil {
		return fmt.Errorf("rtpio: listen on port %d: %w", r.cfg.Port, err)
	}
	if err := netutil.SetReuseAddr(conn); err != nil {
		conn.Close()
		return fmt.Errorf("rtpio: %w", err)
	}
	if err := netutil.JoinMulticast(conn, r.cfg.Group, r.cfg.InterfaceName); err != nil {
		conn.Close()
		return fmt.Errorf("rtpio: %w", err)
	}
	r.conn = conn
	return nil
}

// Stop closes the receiver's socket. Any inflight ReadRaw/ReadOnce call returns
// an error after this, matching §5's cooperative-cancellation model.
func (r *Receiver) Stop() error {
	if r.conn == nil {
		return nil
	}
	return r.conn.Close()
}

// Counters returns a snapshot of the receiver's own event counts.
func (r *Receiver) Counters() Counters {
	return r.counters
}

// PacketStats returns the current sequence-accounting counters.
func (r *Receiver) PacketStats() rtp.Counters {
	return r.stats.Totals()
}

// MostRecentSequence returns the most recently accepted RTP sequence
// number, for building an outbound RTCP receiver-report block's
// ExtendedHighestSequenceNumber field.
func (r *Receiver) MostRecentSequence() (uint16, bool) {
	return r.stats.MostRecentSequence()
}

// ReadOnce blocks for exactly one datagram, validates and processes it.
// arrivalRtpTs is the packet's local receive time expressed in the media
// clock's own tick domain — the PTP-slaved clock multiplied by the stream's
// sample rate (§4.I step 5) — so the jitter estimator in updateJitter can
// difference it directly against the packet's RTP timestamp.
func (r *Receiver) ReadOnce(buf []byte, arrivalRtpTs uint32) (updated rtp.Counters, haveUpdate bool, err error) {
	n, err := r.ReadRaw(buf)
	if err != nil {
		return rtp.Counters{}, false, err
	}
	return r.Process(buf[:n], arrivalRtpTs)
}

// ReadRaw blocks for exactly one datagram and returns its length, without
// decoding it. Split out from ReadOnce so the reactor loop (§5) can pump
// the blocking socket read from its own goroutine while still handing the
// decode-and-mutate step (Process) to the single dispatching goroutine.
func (r *Receiver) ReadRaw(buf []byte) (int, error) {
	n, _, err := r.conn.ReadFromUDP(buf)
	if err != nil {
		r.noteSocketError(err)
		return 0, fmt.Errorf("rtpio: read: %w", err)
	}
	return n, nil
}

// Process validates and folds one already-read datagram into the receiver's
// state: sequence accounting, the jitter ring buffer, and the RFC 3550
// jitter estimate.
func (r *Receiver) Process(data []byte, arrivalRtpTs uint32) (updated rtp.Counters, haveUpdate bool, err error) {
	view, perr := rtp.NewPacketView(data)
	if perr != nil {
		r.counters.InvalidPackets++
		return rtp.Counters{}, false, nil
	}

	if r.cfg.HasSSRCFilter && view.SSRC() != r.cfg.SSRCFilter {
		r.counters.SSRCMismatches++
		return rtp.Counters{}, false, nil
	}

	counters, ok := r.stats.Update(view.SequenceNumber())

	r.ring.Write(view.Timestamp(), view.Payload())
	r.updateJitter(view.Timestamp(), arrivalRtpTs)

	return counters, ok, nil
}

// updateJitter implements RFC 3550 §6.4.1's recursive jitter estimator:
// J += (|D| − J) / 16, where D is the difference between consecutive
// differences of packet arrival time and RTP timestamp, both expressed in
// RTP clock ticks.
func (r *Receiver) updateJitter(rtpTs, arrivalRtpTs uint32) {
	transit := int64(arrivalRtpTs) - int64(rtpTs)
	if !r.haveJitterBase {
		r.prevTransitTicks = transit
		r.haveJitterBase = true
		return
	}

	d := transit - r.prevTransitTicks
	if d < 0 {
		d = -d
	}
	r.prevTransitTicks = transit
	r.jitterEstimate += (float64(d) - r.jitterEstimate) / 16
}

// JitterTicks returns the current RFC 3550 interarrival jitter estimate, in
// RTP clock ticks.
func (r *Receiver) JitterTicks() float64 {
	return r.jitterEstimate
}

// Ring exposes the receiver's jitter ring buffer for the audio consumer.
func (r *Receiver) Ring() *rtp.RingBuffer {
	return r.ring
}

// noteSocketError implements §7's "log only on transition" rate limiting:
// repeated identical errors are counted but logged once.
func (r *Receiver) noteSocketError(err error) {
	r.counters.SocketErrors++
	if r.lastSockErr == nil || err.Error() != r.lastSockErr.Error() {
		log.Warnf("rtpio: socket error on %s:%d: %v", r.cfg.Group, r.cfg.Port, err)
	}
	r.lastSockErr = err
}
