package rtcpio

import (
	"fmt"
	"net"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/ravennakit/ravennakit/internal/netutil"
	"github.com/ravennakit/ravennakit/internal/rtp"
)

// PeerState is what the consumer remembers about one SSRC it has received
// an SR from: the (NTP, RTP) timestamp pair needed to compute
// DelaySinceLastSR for the next outbound RR/SR, and the local arrival time
// of that SR.
type PeerState struct {
	SSRC          uint32
	LastNTPSec    uint32
	LastNTPFrac   uint32
	LastRTPTs     uint32
	PacketCount   uint32
	OctetCount    uint32
	LocalArrival  time.Time
}

// CompactLastSR returns the middle 32 bits of this peer's last-seen NTP
// timestamp, the value carried in an outgoing RR's LastSR field.
func (p PeerState) CompactLastSR() uint32 {
	return rtp.CompactNTP(p.LastNTPSec, p.LastNTPFrac)
}

// ConsumerConfig describes the inbound RTCP stream to join.
type ConsumerConfig struct {
	InterfaceName string
	Group         net.IP
	Port          int
}

// Consumer ingests compound RTCP datagrams and tracks per-peer SR state.
// Unknown packet types within a compound packet are skipped, not treated as
// errors, per §4.J.
type Consumer struct {
	cfg   ConsumerConfig
	conn  *net.UDPConn

	// mu guards peers. The reactor's single dispatching goroutine is its
	// only caller today, but Peer/Peers are exported for any future
	// façade endpoint that would read peer state from a different
	// goroutine, so the guard is in place rather than assumed away.
	mu    sync.Mutex
	peers map[uint32]PeerState

	lastSockErr error
	socketErrs  uint64
	parseErrs   uint64
	srCount     uint64
}

// NewConsumer constructs a Consumer; call Start to open its socket.
func NewConsumer(cfg ConsumerConfig) *Consumer {
	return &Consumer{
		cfg:   cfg,
		peers: make(map[uint32]PeerState),
	}
}

// Start opens the consumer's UDP socket and joins the configured multicast
// group.
func (c *Consumer) Start() error {
	conn, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.IPv4zero, Port: c.cfg.Port})
	if err != nil {
		return fmt.Errorf("rtcpio: listen on port %d: %w", c.cfg.Port, err)
	}
	if err := netutil.SetReuseAddr(conn); err != nil {
		conn.Close()
		return fmt.Errorf("rtcpio: %w", err)
	}
	if err := netutil.JoinMulticast(conn, c.cfg.Group, c.cfg.InterfaceName); err != nil {
		conn.Close()
		return fmt.Errorf("rtcpio: %w", err)
	}
	c.conn = conn
	return nil
}

// Stop closes the consumer's socket.
func (c *Consumer) Stop() error {
	if c.conn == nil {
		return nil
	}
	return c.conn.Close()
}

// ReadOnce blocks for one compound RTCP datagram, walks it packet by
// packet, and updates per-SSRC state for every SR it finds.
func (c *Consumer) ReadOnce(buf []byte, arrival time.Time) error {
	n, err := c.ReadRaw(buf)
	if err != nil {
		return err
	}
	c.Ingest(buf[:n], arrival)
	return nil
}

// ReadRaw blocks for one datagram and returns its length, without parsing
// it. Split out from ReadOnce so the reactor loop (§5) can pump the
// blocking socket read from its own goroutine while Ingest runs on the
// single dispatching goroutine.
func (c *Consumer) ReadRaw(buf []byte) (int, error) {
	n, _, err := c.conn.ReadFromUDP(buf)
	if err != nil {
		c.noteSocketError(err)
		return 0, fmt.Errorf("rtcpio: read: %w", err)
	}
	return n, nil
}

// Ingest parses a compound RTCP datagram already read from the wire,
// recording SR sightings. It never returns an error for unrecognized
// packet types or trailing garbage it cannot parse — it simply stops
// walking, matching §4.J's "unknown PTs are skipped, not errors".
func (c *Consumer) Ingest(data []byte, arrival time.Time) {
	pkt, err := rtp.NewRTCPPacketView(data)
	if err != nil {
		c.parseErrs++
		return
	}
	for {
		if pkt.Type() == rtp.RTCPTypeSR {
			c.recordSR(pkt, arrival)
		}
		next, ok := pkt.NextPacket()
		if !ok {
			return
		}
		pkt = next
	}
}

func (c *Consumer) recordSR(pkt rtp.RTCPPacketView, arrival time.Time) {
	ntpSec, ntpFrac := pkt.NTPTimestamp()
	c.mu.Lock()
	defer c.mu.Unlock()
	c.srCount++
	c.peers[pkt.SSRC()] = PeerState{
		SSRC:         pkt.SSRC(),
		LastNTPSec:   ntpSec,
		LastNTPFrac:  ntpFrac,
		LastRTPTs:    pkt.RTPTimestamp(),
		PacketCount:  pkt.PacketCount(),
		OctetCount:   pkt.OctetCount(),
		LocalArrival: arrival,
	}
}

// Peer returns the last recorded state for ssrc, if any SR has been seen
// from it.
func (c *Consumer) Peer(ssrc uint32) (PeerState, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	p, ok := c.peers[ssrc]
	return p, ok
}

// Peers returns a snapshot of every known peer's state, for building the
// next outbound SR's report blocks.
func (c *Consumer) Peers() []PeerState {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]PeerState, 0, len(c.peers))
	for _, p := range c.peers {
		out = append(out, p)
	}
	return out
}

// ParseErrors returns the count of datagrams that failed to parse as a
// valid RTCP common header.
func (c *Consumer) ParseErrors() uint64 {
	return c.parseErrs
}

// SRCount returns the count of Sender Reports ingested so far, across all
// peers.
func (c *Consumer) SRCount() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.srCount
}

func (c *Consumer) noteSocketError(err error) {
	c.socketErrs++
	if c.lastSockErr == nil || err.Error() != c.lastSockErr.Error() {
		log.Warnf("rtcpio: socket error on %s:%d: %v", c.cfg.Group, c.cfg.Port, err)
	}
	c.lastSockErr = err
}
