// Package node composes the PTP port, RTP receiver, RTCP sender/consumer,
// and metrics into a single running instance, which internal/httpapi wraps
// to serve the HTTP façade (§4, the
// "node-level façade" spec.md §1 calls an external collaborator). It owns
// the single-threaded event loop's driving logic; the core state machines
// it wires together remain the ones under test in ptp/port, internal/rtpio,
// and internal/rtcpio.
package node

import (
	"fmt"
	"net"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/ravennakit/ravennakit/internal/config"
	"github.com/ravennakit/ravennakit/internal/metrics"
	"github.com/ravennakit/ravennakit/internal/nmos"
	"github.com/ravennakit/ravennakit/internal/ptpio"
	"github.com/ravennakit/ravennakit/internal/rtcpio"
	"github.com/ravennakit/ravennakit/internal/rtpio"
	ptp "github.com/ravennakit/ravennakit/ptp/protocol"
	"github.com/ravennakit/ravennakit/ptp/port"
)

// Node is one running RAVENNAKIT instance: a PTP slave port, an RTP
// receiver, an RTCP sender/consumer pair, and the metrics those components
// publish.
type Node struct {
	cfg *config.Config

	Port      *port.Port
	Transport *ptpio.Transport
	Receiver  *rtpio.Receiver
	RTCPSend  *rtcpio.Sender
	RTCPRecv  *rtcpio.Consumer
	Metrics   *metrics.Metrics

	localIdentity ptp.PortIdentity
	label         string
	startedAt     time.Time

	// lastRTP/lastRTCPIngestedSR/lastRTCPParseErrs/lastSyncMissed/
	// lastAnnounceTimeouts hold the previous snapshot of each component's
	// cumulative counters, read only by the reactor's dispatch goroutine,
	// so snapshotMetrics can report Prometheus Counter deltas (§5).
	lastRTP              rtpCounterSnapshot
	lastRTCPIngestedSR   uint64
	lastRTCPParseErrs    uint64
	lastSyncMissed       uint64
	lastAnnounceTimeouts uint64
}

// rtpCounterSnapshot mirrors the fields of rtp.Counters that snapshotMetrics
// exports as Prometheus Counters.
type rtpCounterSnapshot struct {
	OutOfOrder uint64
	Duplicates uint64
	Dropped    uint64
	TooLate    uint64
}

// New constructs a Node from cfg, wiring every component's own config
// sub-struct to the matching §6 keys. It does not open sockets; call Start
// for that.
func New(cfg *config.Config, localIdentity ptp.PortIdentity, label string) *Node {
	portCfg := port.DefaultConfig()
	portCfg.Domain = cfg.PTP.Domain
	portCfg.AnnounceReceiptTimeout = cfg.PTP.AnnounceReceiptTimeout
	portCfg.LogAnnounceInterval = cfg.PTP.LogAnnounceInterval
	portCfg.LogSyncInterval = cfg.PTP.LogSyncInterval
	portCfg.LogPDelayReqInterval = cfg.PTP.LogPDelayReqInterval
	portCfg.Servo.Gain = cfg.PTP.ServoGain
	portCfg.Servo.CalibratedThresholdNs = cfg.PTP.CalibratedThresholdNs
	portCfg.Servo.StepThresholdNs = cfg.PTP.StepThresholdNs

	groupIP := net.ParseIP(cfg.RTP.Group)

	ptpioCfg := ptpio.DefaultConfig(cfg.PTP.Iface)
	if g := net.ParseIP(cfg.PTP.Group); g != nil {
		ptpioCfg.Group = g
	}

	return &Node{
		cfg:           cfg,
		Port:          port.New(portCfg, localIdentity),
		Transport:     ptpio.New(ptpioCfg),
		Receiver: rtpio.New(rtpio.Config{
			InterfaceName:      cfg.PTP.Iface,
			Group:              groupIP,
			Port:               cfg.RTP.Port,
			JitterBufferFrames: cfg.RTP.JitterBufferFrames,
			StrideBytes:        cfg.RTP.StrideBytes,
			GroundValueByte:    cfg.RTP.GroundValueByte,
			SampleRateHz:       cfg.RTP.SampleRateHz,
		}),
		RTCPSend: rtcpio.NewSender(rtcpio.SenderConfig{
			InterfaceName: cfg.PTP.Iface,
			Group:         groupIP,
			Port:          cfg.RTCP.Port,
			SampleRateHz:  cfg.RTP.SampleRateHz,
			EmitInterval:  cfg.RTCP.EmitInterval,
		}),
		RTCPRecv:      rtcpio.NewConsumer(rtcpio.ConsumerConfig{InterfaceName: cfg.PTP.Iface, Group: groupIP, Port: cfg.RTCP.Port}),
		Metrics:       metrics.New(),
		localIdentity: localIdentity,
		label:         label,
	}
}

// Start opens every component's sockets and arms the PTP port's Announce
// timer (spec.md §7: "the core never partially starts" — the first
// failure aborts before any timer is armed).
func (n *Node) Start(now time.Time) error {
	if err := n.Transport.Start(); err != nil {
		return fmt.Errorf("node: starting ptp transport: %w", err)
	}
	if err := n.Receiver.Start(); err != nil {
		return fmt.Errorf("node: starting rtp receiver: %w", err)
	}
	if err := n.RTCPSend.Start(); err != nil {
		return fmt.Errorf("node: starting rtcp sender: %w", err)
	}
	if err := n.RTCPRecv.Start(); err != nil {
		return fmt.Errorf("node: starting rtcp consumer: %w", err)
	}
	n.Port.Start(now)
	n.startedAt = now
	log.Infof("node: %s started on domain %d", n.label, n.cfg.PTP.Domain)
	return nil
}

// Stop closes every component's sockets.
func (n *Node) Stop() {
	if err := n.Transport.Stop(); err != nil {
		log.Warnf("node: stopping ptp transport: %v", err)
	}
	if err := n.Receiver.Stop(); err != nil {
		log.Warnf("node: stopping rtp receiver: %v", err)
	}
	if err := n.RTCPSend.Stop(); err != nil {
		log.Warnf("node: stopping rtcp sender: %v", err)
	}
	if err := n.RTCPRecv.Stop(); err != nil {
		log.Warnf("node: stopping rtcp consumer: %v", err)
	}
}

// RecordPortState pushes the port's current state into the state-transition
// counter; callers invoke this after any operation that may have moved the
// port's state.
func (n *Node) RecordPortState() {
	n.Metrics.PTPStateTransitions.WithLabelValues(n.Port.State().String()).Inc()
}

// Self builds the narrow IS-04 self-description this node publishes.
func (n *Node) Self() nmos.Self {
	clock := nmos.Clock{
		Name:    "clk0",
		RefType: nmos.ClockRefInternal,
	}
	if best := n.Port.BestMaster(); best != nil {
		clock.RefType = nmos.ClockRefPTP
		clock.GMIdentity = best.GrandmasterIdentity.String()
		clock.Locked = n.Port.State() == port.StateSlave
	}
	return nmos.Self{
		ID:          n.localIdentity.String(),
		Label:       n.label,
		Version:     n.startedAt.UTC().Format(time.RFC3339),
		APIVersions: []string{"v1.3"},
		Clocks:      []nmos.Clock{clock},
	}
}

// Receivers builds the narrow IS-04 receiver list this node publishes: one
// entry, describing the node's single RTP receive stream.
func (n *Node) Receivers() []nmos.Receiver {
	return []nmos.Receiver{{
		ID:                 n.localIdentity.String() + "-rx0",
		Label:              n.label + " audio in",
		Format:             "urn:x-nmos:format:audio",
		Transport:          "urn:x-tam:transport:rtp.mcast",
		DeviceID:           n.localIdentity.String(),
		SubscriptionActive: n.Port.State() == port.StateSlave,
	}}
}
