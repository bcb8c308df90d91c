// Package ptpio implements the PTP slave port's socket transport (§4.E,
// §5): the event (319) and general (320) multicast sockets the port's
// reactor loop reads Announce/Sync/FollowUp/PDelay* packets from and writes
// PDelay responses back out on, matching the RTP/RTCP packages' own
// socket-ownership convention (internal/rtpio, internal/rtcpio) and the
// teacher's dual-socket genConn/eventConn split in
// ptp/simpleclient/client.go.
package ptpio

import (
	"fmt"
	"net"

	log "github.com/sirupsen/logrus"

	"github.com/ravennakit/ravennakit/internal/netutil"
	ptp "github.com/ravennakit/ravennakit/ptp/protocol"
)

// Config describes the multicast group and interface the transport joins.
// EventPort/GeneralPort are fixed by the PTP standard (319/320) but are kept
// here, rather than hardcoded, for test doubles that bind ephemeral ports.
type Config struct {
	InterfaceName string
	Group         net.IP
	EventPort     int
	GeneralPort   int
}

// DefaultConfig returns the standard PTP multicast transport: primary
// multicast address 224.0.1.129, event port 319, general port 320.
func DefaultConfig(ifaceName string) Config {
	return Config{
		InterfaceName: ifaceName,
		Group:         net.ParseIP("224.0.1.129"),
		EventPort:     ptp.PortEvent,
		GeneralPort:   ptp.PortGeneral,
	}
}

// Transport owns the PTP event and general multicast sockets.
type Transport struct {
	cfg         Config
	eventConn   *net.UDPConn
	generalConn *net.UDPConn

	lastSockErr error
	socketErrs  uint64
}

// New constructs a Transport; call Start to open its sockets.
func New(cfg Config) *Transport {
	return &Transport{cfg: cfg}
}

// Start opens the event and general sockets, sets SO_REUSEADDR, and joins
// the configured multicast group on both, matching the RTP/RTCP receive
// paths' socket setup (§4.I step 1).
func (t *Transport) Start() error {
	eventConn, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.IPv4zero, Port: t.cfg.EventPort})
	if err != nil {
		return fmt.Errorf("ptpio: listen event port %d: %w", t.cfg.EventPort, err)
	}
	if err := t.joinAndReuse(eventConn); err != nil {
		eventConn.Close()
		return err
	}

	generalConn, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.IPv4zero, Port: t.cfg.GeneralPort})
	if err != nil {
		eventConn.Close()
		return fmt.Errorf("ptpio: listen general port %d: %w", t.cfg.GeneralPort, err)
	}
	if err := t.joinAndReuse(generalConn); err != nil {
		eventConn.Close()
		generalConn.Close()
		return err
	}

	t.eventConn = eventConn
	t.generalConn = generalConn
	return nil
}

func (t *Transport) joinAndReuse(conn *net.UDPConn) error {
	if err := netutil.SetReuseAddr(conn); err != nil {
		return fmt.Errorf("ptpio: %w", err)
	}
	if err := netutil.JoinMulticast(conn, t.cfg.Group, t.cfg.InterfaceName); err != nil {
		return fmt.Errorf("ptpio: %w", err)
	}
	return nil
}

// Stop closes both sockets. Any inflight read returns an error after this,
// matching §5's cooperative-cancellation model.
func (t *Transport) Stop() error {
	var errEvent, errGeneral error
	if t.eventConn != nil {
		errEvent = t.eventConn.Close()
	}
	if t.generalConn != nil {
		errGeneral = t.generalConn.Close()
	}
	if errEvent != nil {
		return fmt.Errorf("ptpio: closing event socket: %w", errEvent)
	}
	if errGeneral != nil {
		return fmt.Errorf("ptpio: closing general socket: %w", errGeneral)
	}
	return nil
}

// ReadEvent blocks for one datagram on the event (319) socket: Sync,
// DelayReq, PDelayReq, PDelayResp.
func (t *Transport) ReadEvent(buf []byte) (int, *net.UDPAddr, error) {
	n, addr, err := t.eventConn.ReadFromUDP(buf)
	if err != nil {
		t.noteSocketError(err)
		return 0, nil, fmt.Errorf("ptpio: read event: %w", err)
	}
	return n, addr, nil
}

// ReadGeneral blocks for one datagram on the general (320) socket:
// Announce, FollowUp, DelayResp, PDelayRespFollowUp, Signaling.
func (t *Transport) ReadGeneral(buf []byte) (int, *net.UDPAddr, error) {
	n, addr, err := t.generalConn.ReadFromUDP(buf)
	if err != nil {
		t.noteSocketError(err)
		return 0, nil, fmt.Errorf("ptpio: read general: %w", err)
	}
	return n, addr, nil
}

// WriteEvent sends an event-class message (PDelayReq, PDelayResp) to addr.
// A nil addr sends to the configured multicast group.
func (t *Transport) WriteEvent(b []byte, addr *net.UDPAddr) error {
	if addr == nil {
		addr = &net.UDPAddr{IP: t.cfg.Group, Port: t.cfg.EventPort}
	}
	if _, err := t.eventConn.WriteToUDP(b, addr); err != nil {
		return fmt.Errorf("ptpio: write event to %s: %w", addr, err)
	}
	return nil
}

// WriteGeneral sends a general-class message (PDelayRespFollowUp) to addr.
// A nil addr sends to the configured multicast group.
func (t *Transport) WriteGeneral(b []byte, addr *net.UDPAddr) error {
	if addr == nil {
		addr = &net.UDPAddr{IP: t.cfg.Group, Port: t.cfg.GeneralPort}
	}
	if _, err := t.generalConn.WriteToUDP(b, addr); err != nil {
		return fmt.Errorf("ptpio: write general to %s: %w", addr, err)
	}
	return nil
}

// SocketErrors returns the count of read/write failures observed so far.
func (t *Transport) SocketErrors() uint64 {
	return t.socketErrs
}

// noteSocketError implements §7's "log only on transition" rate limiting.
func (t *Transport) noteSocketError(err error) {
	t.socketErrs++
	if t.lastSockErr == nil || err.Error() != t.lastSockErr.Error() {
		log.Warnf("ptpio: socket error on %s: %v", t.cfg.Group, err)
	}
	t.lastSockErr = err
}
