package node

import (
	"context"
	"net"
	"time"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/ravennakit/ravennakit/internal/rtp"
	ptp "github.com/ravennakit/ravennakit/ptp/protocol"
)

// reactorTick is the period of the single dispatching goroutine's periodic
// work: draining Port.Tick/NextPDelayReq, the RTCP sender's Due check, and
// the metrics delta snapshot (§5).
const reactorTick = 10 * time.Millisecond

// inboundKind discriminates an inboundMsg's source socket, since all four
// pumps (PTP event, PTP general, RTP, RTCP) feed one shared channel that the
// single dispatching goroutine drains, matching the teacher's
// inChan-fed-by-per-socket-goroutines pattern in ptp/simpleclient/client.go.
type inboundKind int

const (
	inboundPTPEvent inboundKind = iota
	inboundPTPGeneral
	inboundRTP
	inboundRTCP
)

type inboundMsg struct {
	kind    inboundKind
	data    []byte
	addr    *net.UDPAddr
	arrival time.Time
}

// Run drives the node's reactor: it pumps every owned socket from its own
// goroutine into a shared channel, and dispatches everything it reads —
// PTP state-machine input, RTP ingest, RTCP ingest, and periodic
// timer-driven work — from a single goroutine, so Port/Receiver/RTCPRecv
// never need to guard their mutating methods against each other (§5's
// single-threaded cooperative event loop). It returns when ctx is canceled
// or a pump's socket read fails.
func (n *Node) Run(ctx context.Context) error {
	eg, ctx := errgroup.WithContext(ctx)
	inChan := make(chan inboundMsg, 64)

	eg.Go(func() error { return n.pumpPTPEvent(ctx, inChan) })
	eg.Go(func() error { return n.pumpPTPGeneral(ctx, inChan) })
	eg.Go(func() error { return n.pumpRTP(ctx, inChan) })
	eg.Go(func() error { return n.pumpRTCP(ctx, inChan) })
	eg.Go(func() error { return n.dispatch(ctx, inChan) })

	return eg.Wait()
}

// pump is the shared body of the four socket pumps: a blocking read on its
// own goroutine so a canceled ctx can be noticed between reads, forwarding
// whatever it reads onto inChan for the dispatcher.
func pump(ctx context.Context, read func(buf []byte) (int, *net.UDPAddr, error), kind inboundKind, inChan chan<- inboundMsg) error {
	doneChan := make(chan error, 1)
	msgChan := make(chan inboundMsg, 1)
	go func() {
		for {
			buf := make([]byte, 1500)
			n, addr, err := read(buf)
			if err != nil {
				doneChan <- err
				return
			}
			msgChan <- inboundMsg{kind: kind, data: buf[:n], addr: addr, arrival: time.Now()}
		}
	}()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err := <-doneChan:
			return err
		case msg := <-msgChan:
			select {
			case inChan <- msg:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
}

func (n *Node) pumpPTPEvent(ctx context.Context, inChan chan<- inboundMsg) error {
	return pump(ctx, n.Transport.ReadEvent, inboundPTPEvent, inChan)
}

func (n *Node) pumpPTPGeneral(ctx context.Context, inChan chan<- inboundMsg) error {
	return pump(ctx, n.Transport.ReadGeneral, inboundPTPGeneral, inChan)
}

func (n *Node) pumpRTP(ctx context.Context, inChan chan<- inboundMsg) error {
	read := func(buf []byte) (int, *net.UDPAddr, error) {
		sz, err := n.Receiver.ReadRaw(buf)
		return sz, nil, err
	}
	return pump(ctx, read, inboundRTP, inChan)
}

func (n *Node) pumpRTCP(ctx context.Context, inChan chan<- inboundMsg) error {
	read := func(buf []byte) (int, *net.UDPAddr, error) {
		sz, err := n.RTCPRecv.ReadRaw(buf)
		return sz, nil, err
	}
	return pump(ctx, read, inboundRTCP, inChan)
}

// dispatch is the reactor's single goroutine that ever mutates Port,
// Receiver, or RTCPRecv: it drains inChan and, on every reactorTick, drives
// the timer-based work each of them needs (Announce/PDelay timeouts, SR
// emission, metrics snapshotting).
func (n *Node) dispatch(ctx context.Context, inChan <-chan inboundMsg) error {
	ticker := time.NewTicker(reactorTick)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg := <-inChan:
			n.handleInbound(msg)
		case now := <-ticker.C:
			n.handleTick(now)
		}
	}
}

func (n *Node) handleInbound(msg inboundMsg) {
	switch msg.kind {
	case inboundPTPEvent, inboundPTPGeneral:
		n.handlePTP(msg)
	case inboundRTP:
		n.handleRTP(msg)
	case inboundRTCP:
		n.handleRTCP(msg)
	}
}

func (n *Node) handlePTP(msg inboundMsg) {
	packet, err := ptp.DecodePacket(msg.data)
	if err != nil {
		log.Debugf("node: dropping malformed ptp packet: %v", err)
		return
	}
	rxUnixNs := msg.arrival.UnixNano()

	switch p := packet.(type) {
	case *ptp.Announce:
		if err := n.Port.HandleAnnounce(p, msg.arrival); err != nil {
			log.Debugf("node: announce rejected: %v", err)
		}
		n.RecordPortState()
	case *ptp.SyncDelayReq:
		if p.MessageType() != ptp.MessageSync {
			// DelayReq: the end-to-end delay mechanism is out of scope (§4.E
			// only implements peer-delay), so there is nothing to answer.
			return
		}
		if err := n.Port.HandleSync(p, rxUnixNs); err != nil {
			log.Debugf("node: sync rejected: %v", err)
		}
		n.RecordPortState()
	case *ptp.FollowUp:
		if err := n.Port.HandleFollowUp(p); err != nil {
			log.Debugf("node: follow_up rejected: %v", err)
		}
		n.RecordPortState()
	case *ptp.PDelayReq:
		n.handlePDelayReq(p, rxUnixNs, msg.addr)
	case *ptp.PDelayResp:
		if err := n.Port.HandlePDelayResp(p, rxUnixNs); err != nil {
			log.Debugf("node: pdelay_resp rejected: %v", err)
		}
	case *ptp.PDelayRespFollowUp:
		if err := n.Port.HandlePDelayRespFollowUp(p); err != nil {
			log.Debugf("node: pdelay_resp_follow_up rejected: %v", err)
		}
	case *ptp.DelayResp:
		// same out-of-scope end-to-end mechanism as the DelayReq case above.
	}
}

// handlePDelayReq answers an incoming peer-delay request immediately,
// taking the responder's own Pdelay_Resp construction time as t3_p (§4.E's
// HandlePDelayReq doc comment explains the software-timestamping tradeoff
// this implies).
func (n *Node) handlePDelayReq(req *ptp.PDelayReq, rxUnixNs int64, addr *net.UDPAddr) {
	resp, followUp, err := n.Port.HandlePDelayReq(req, rxUnixNs, time.Now().UnixNano())
	if err != nil {
		log.Debugf("node: pdelay_req handling failed: %v", err)
		return
	}
	respBytes, err := ptp.Bytes(resp)
	if err != nil {
		log.Warnf("node: marshaling pdelay_resp: %v", err)
		return
	}
	if err := n.Transport.WriteEvent(respBytes, addr); err != nil {
		log.Warnf("node: sending pdelay_resp: %v", err)
		return
	}
	followUpBytes, err := ptp.Bytes(followUp)
	if err != nil {
		log.Warnf("node: marshaling pdelay_resp_follow_up: %v", err)
		return
	}
	if err := n.Transport.WriteGeneral(followUpBytes, addr); err != nil {
		log.Warnf("node: sending pdelay_resp_follow_up: %v", err)
	}
}

// handleRTP converts the packet's arrival time into the media clock's own
// tick domain using the servo's currently published offset (§4.I step 5)
// before folding it into the receiver's sequence/jitter accounting.
func (n *Node) handleRTP(msg inboundMsg) {
	published := n.Port.Published()
	syncedUnixNs := msg.arrival.UnixNano() + published.OffsetNs
	arrivalRtpTs := uint32(syncedUnixNs * int64(n.cfg.RTP.SampleRateHz) / int64(time.Second))

	_, _, err := n.Receiver.Process(msg.data, arrivalRtpTs)
	if err != nil {
		log.Debugf("node: rtp process error: %v", err)
	}
}

func (n *Node) handleRTCP(msg inboundMsg) {
	n.RTCPRecv.Ingest(msg.data, msg.arrival)
}

// handleTick drives every timer-based operation the reactor owns: Port's
// Announce/PDelay timeouts, the periodic peer-delay initiator request, the
// RTCP sender's emit schedule, and the Prometheus metrics snapshot.
func (n *Node) handleTick(now time.Time) {
	n.Port.Tick(now)

	if req, ok := n.Port.NextPDelayReq(now); ok {
		b, err := ptp.Bytes(req)
		if err != nil {
			log.Warnf("node: marshaling pdelay_req: %v", err)
		} else if err := n.Transport.WriteEvent(b, nil); err != nil {
			log.Warnf("node: sending pdelay_req: %v", err)
		} else {
			n.Port.MarkPDelayReqSent(req.Header.SequenceID, time.Now().UnixNano())
		}
	}

	if n.RTCPSend.Due(now) {
		published := n.Port.Published()
		syncedNs := now.UnixNano() + published.OffsetNs
		clockRtpTs := uint32(syncedNs * int64(n.cfg.RTP.SampleRateHz) / int64(time.Second))
		if err := n.RTCPSend.Emit(now, clockRtpTs, n.buildReceiverReports(now)); err != nil {
			log.Warnf("node: emitting rtcp sender report: %v", err)
		} else {
			n.Metrics.RTCPSentSR.Inc()
		}
	}

	n.snapshotMetrics()
}

// snapshotMetrics folds every component's cumulative counters into the
// Prometheus collectors. RTP's totals (rtp.PacketStats.Update) are
// cumulative and Dropped is not monotonic — it can decrease when a
// provisionally dropped sequence number is later recovered as
// out-of-order — so deltas are clamped at zero rather than passed straight
// to a Counter's Add.
func (n *Node) snapshotMetrics() {
	rtpTotals := n.Receiver.PacketStats()
	addDelta(n.Metrics.RTPOutOfOrder, &n.lastRTP.OutOfOrder, uint64(rtpTotals.OutOfOrder))
	addDelta(n.Metrics.RTPDuplicates, &n.lastRTP.Duplicates, uint64(rtpTotals.Duplicates))
	addDelta(n.Metrics.RTPDropped, &n.lastRTP.Dropped, uint64(rtpTotals.Dropped))
	addDelta(n.Metrics.RTPTooLate, &n.lastRTP.TooLate, uint64(rtpTotals.TooLate))
	n.Metrics.RTPJitter.Set(n.Receiver.JitterTicks())

	addDelta(n.Metrics.RTCPIngestedSR, &n.lastRTCPIngestedSR, n.RTCPRecv.SRCount())
	addDelta(n.Metrics.RTCPParseErrors, &n.lastRTCPParseErrs, n.RTCPRecv.ParseErrors())

	portStats := n.Port.Stats()
	addDelta(n.Metrics.PTPSyncMissed, &n.lastSyncMissed, portStats.SyncMissed)
	addDelta(n.Metrics.PTPAnnounceTimeouts, &n.lastAnnounceTimeouts, portStats.AnnounceTimeouts)
}

// buildReceiverReports builds one RTCP report block per peer the RTCP
// consumer has heard a Sender Report from, describing this node's single
// RTP receive stream's reception quality of that peer (§4.J). The receiver
// only tracks one stream's sequence/jitter accounting, so every block
// shares the same ExtendedHighestSequenceNumber/InterarrivalJitter — the
// per-peer distinction lives in LastSR/DelaySinceLastSR, which do vary.
func (n *Node) buildReceiverReports(now time.Time) []rtp.ReceiverReportBlock {
	peers := n.RTCPRecv.Peers()
	if len(peers) == 0 {
		return nil
	}
	totals := n.Receiver.PacketStats()
	seq, _ := n.Receiver.MostRecentSequence()
	jitter := uint32(n.Receiver.JitterTicks())

	reports := make([]rtp.ReceiverReportBlock, 0, len(peers))
	for _, p := range peers {
		var dlsr uint32
		if d := now.Sub(p.LocalArrival); d > 0 {
			dlsr = uint32(d.Seconds() * 65536)
		}
		reports = append(reports, rtp.ReceiverReportBlock{
			SSRC:                          p.SSRC,
			CumulativeLost:                int32(totals.Dropped),
			ExtendedHighestSequenceNumber: uint32(seq),
			InterarrivalJitter:            jitter,
			LastSR:                        p.CompactLastSR(),
			DelaySinceLastSR:              dlsr,
		})
	}
	return reports
}

// addDelta adds the non-negative increase of cur over *prev to counter and
// advances *prev to cur, tolerating a counter that went backwards (clamped
// to zero, not a negative Add which prometheus.Counter panics on).
func addDelta(counter interface{ Add(float64) }, prev *uint64, cur uint64) {
	if cur > *prev {
		counter.Add(float64(cur - *prev))
	}
	*prev = cur
}
