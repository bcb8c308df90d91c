// Package port implements the PTP ordinary-clock slave port state machine
// (§4.E): Announce-driven master selection, two-step Sync/FollowUp
// timestamp pairing, Announce-receipt timeout handling, and the optional
// peer-delay exchange. It owns no sockets itself — internal/rtpio's PTP
// counterpart (an event-loop caller) feeds it received packets and drains
// its outgoing packet and timer requests, matching the teacher's
// socket-owned-by-caller, FSM-is-pure style seen in ptp4u/server.go.
package port

import (
	"errors"
	"sync"
	"time"

	"github.com/ravennakit/ravennakit/servo"

	ptp "github.com/ravennakit/ravennakit/ptp/protocol"
	"github.com/ravennakit/ravennakit/internal/wrap"
)

// State is the slave port's current IEEE 1588 state. Only the
// slave-relevant subset is modeled.
type State int

const (
	StateInitializing State = iota
	StateListening
	StateUncalibrated
	StateSlave
	StateFaulty
)

func (s State) String() string {
	switch s {
	case StateInitializing:
		return "initializing"
	case StateListening:
		return "listening"
	case StateUncalibrated:
		return "uncalibrated"
	case StateSlave:
		return "slave"
	case StateFaulty:
		return "faulty"
	default:
		return "unknown"
	}
}

// ErrSyncBeforeAnnounce and friends are StateErrors (§7): silently counted,
// never surfaced synchronously, but exported so callers/tests can assert on
// rejection reasons.
var (
	ErrSyncBeforeAnnounce  = errors.New("port: sync received before any announce")
	ErrNotBestMaster       = errors.New("port: message source is not the current best master")
	ErrFollowUpSeqMismatch = errors.New("port: follow_up sequence does not match pending sync")
	ErrStaleAnnounce       = errors.New("port: announce sequence is older than last seen")
	ErrStaleSync           = errors.New("port: sync sequence is older than last seen")
)

// Stats accumulates the port's event counters (§7, §9).
type Stats struct {
	SyncMissed      uint64
	StaleAnnounces  uint64
	StateErrors     uint64
	AnnounceTimeouts uint64
}

// Config holds the port-level tunables named in §6 and §4.E.
type Config struct {
	Domain                  uint8
	AnnounceReceiptTimeout  uint8 // multiplier, IEEE 1588 default 3
	LogAnnounceInterval     int8
	LogSyncInterval         int8
	LogPDelayReqInterval    int8
	Servo                   servo.Config
}

// DefaultConfig returns the config defaults named in §6.
func DefaultConfig() Config {
	return Config{
		Domain:                 0,
		AnnounceReceiptTimeout: 3,
		LogAnnounceInterval:    1,
		LogSyncInterval:        0,
		LogPDelayReqInterval:   0,
		Servo:                  servo.DefaultConfig(),
	}
}

// pendingSync holds the receive-side state for an in-flight two-step Sync
// awaiting its FollowUp.
type pendingSync struct {
	active    bool
	seq       uint16
	t2UnixNs  int64
}

// Port is the slave port state machine. The reactor loop (§5) is its only
// writer and calls every mutating method from a single goroutine; mu exists
// solely so read-only snapshot methods (State, BestMaster, Stats,
// Published) may also be called from the HTTP façade's own goroutine
// without racing the reactor.
type Port struct {
	mu    sync.Mutex
	cfg   Config
	local ptp.PortIdentity

	state State

	bestMaster     *ptp.Announce
	lastAnnounceSeq wrap.U16
	haveAnnounceSeq bool

	pending pendingSync
	lastSyncSeq wrap.U16
	haveSyncSeq bool

	meanPathDelayNs int64
	servo           *servo.Servo

	// peer delay (initiator role)
	pdelaySeq uint16
	pending2  pendingPDelay

	stats Stats

	announceDeadline time.Time
	pdelayDeadline   time.Time
}

// New constructs a Port in StateInitializing.
func New(cfg Config, local ptp.PortIdentity) *Port {
	return &Port{
		cfg:   cfg,
		local: local,
		state: StateInitializing,
		servo: servo.New(cfg.Servo),
	}
}

// Start transitions the port to StateListening and arms the Announce
// receipt timer. Callers are responsible for actually joining the PTP
// multicast groups (319/320) before calling Start; Port itself is
// transport-agnostic.
func (p *Port) Start(now time.Time) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.state = StateListening
	p.armAnnounceTimer(now)
	p.pdelayDeadline = now
}

func (p *Port) announceTimeout() time.Duration {
	interval := ptp.LogInterval(p.cfg.LogAnnounceInterval).Duration()
	return interval * time.Duration(p.cfg.AnnounceReceiptTimeout)
}

func (p *Port) armAnnounceTimer(now time.Time) {
	p.announceDeadline = now.Add(p.announceTimeout())
}

// State returns the port's current state.
func (p *Port) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// BestMaster returns the currently selected master's Announce, if any.
func (p *Port) BestMaster() *ptp.Announce {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.bestMaster
}

// Stats returns a snapshot of the port's event counters.
func (p *Port) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stats
}

// AnnounceDeadline returns the time at which the port should be driven with
// Tick if no Announce has arrived, so the caller's event loop can compute
// its next timer expiry.
func (p *Port) AnnounceDeadline() time.Time {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.announceDeadline
}

// Tick drives timer-based transitions: call this when AnnounceDeadline has
// passed without a new Announce.
func (p *Port) Tick(now time.Time) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.state == StateFaulty || p.state == StateInitializing {
		return
	}
	if now.Before(p.announceDeadline) {
		return
	}
	p.stats.AnnounceTimeouts++
	p.bestMaster = nil
	p.haveAnnounceSeq = false
	p.pending = pendingSync{}
	p.haveSyncSeq = false
	p.servo.Reset()
	p.state = StateListening
	p.armAnnounceTimer(now)
}

// HandleAnnounce processes a received Announce message (§4.E).
func (p *Port) HandleAnnounce(a *ptp.Announce, now time.Time) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	seq := a.Header.SequenceID
	// Sequence IDs are per source: only the current best master's Announces
	// are checked against (and recorded as) the last seen sequence.
	if p.haveAnnounceSeq && p.fromBestMaster(a.Header.SourcePortIdentity) {
		w := p.lastAnnounceSeq
		if !wrap.New(seq).Greater(w) {
			p.stats.StaleAnnounces++
			return ErrStaleAnnounce
		}
	}

	prevBest := p.bestMaster
	candidate := bestOf(prevBest, a)

	changed := prevBest == nil || candidate.GrandmasterIdentity != prevBest.GrandmasterIdentity ||
		candidate.Header.SourcePortIdentity != prevBest.Header.SourcePortIdentity
	p.bestMaster = candidate
	if p.fromBestMaster(a.Header.SourcePortIdentity) {
		p.lastAnnounceSeq = wrap.New(seq)
		p.haveAnnounceSeq = true
	}

	if changed {
		p.servo.Reset()
		p.pending = pendingSync{}
		p.haveSyncSeq = false
		p.state = StateUncalibrated
	}

	p.armAnnounceTimer(now)
	return nil
}

// fromBestMaster reports whether identity matches the currently selected
// master's source port identity.
func (p *Port) fromBestMaster(src ptp.PortIdentity) bool {
	return p.bestMaster != nil && p.bestMaster.Header.SourcePortIdentity == src
}

// HandleSync processes a received Sync message. The header's FlagTwoStep
// bit decides whether it waits for a FollowUp; rxUnixNs is the local
// receive timestamp.
func (p *Port) HandleSync(s *ptp.SyncDelayReq, rxUnixNs int64) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.bestMaster == nil {
		p.stats.StateErrors++
		return ErrSyncBeforeAnnounce
	}
	if !p.fromBestMaster(s.Header.SourcePortIdentity) {
		return ErrNotBestMaster
	}

	seq := s.Header.SequenceID
	if p.pending.active {
		p.stats.SyncMissed++
	}

	if s.Header.FlagField&ptp.FlagTwoStep != 0 {
		p.pending = pendingSync{active: true, seq: seq, t2UnixNs: rxUnixNs}
		return nil
	}

	t1 := originTimeNs(s.OriginTimestamp) + correctionNs(s.Header.CorrectionField)
	return p.applySync(seq, t1, rxUnixNs)
}

// HandleFollowUp processes a received FollowUp completing a pending
// two-step Sync.
func (p *Port) HandleFollowUp(f *ptp.FollowUp) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.bestMaster == nil {
		p.stats.StateErrors++
		return ErrSyncBeforeAnnounce
	}
	if !p.fromBestMaster(f.Header.SourcePortIdentity) {
		return ErrNotBestMaster
	}
	if !p.pending.active || f.Header.SequenceID != p.pending.seq {
		p.stats.StateErrors++
		return ErrFollowUpSeqMismatch
	}

	t1 := originTimeNs(f.PreciseOriginTimestamp) + correctionNs(f.Header.CorrectionField)
	t2 := p.pending.t2UnixNs
	seq := p.pending.seq
	p.pending = pendingSync{}
	return p.applySync(seq, t1, t2)
}

func (p *Port) applySync(seq uint16, t1UnixNs, t2UnixNs int64) error {
	if p.haveSyncSeq {
		if _, ok := p.lastSyncSeq.Update(seq); !ok {
			p.stats.StateErrors++
			return ErrStaleSync
		}
	} else {
		p.lastSyncSeq = wrap.New(seq)
		p.haveSyncSeq = true
	}

	state := p.servo.Sample(t1UnixNs, t2UnixNs, p.meanPathDelayNs, t2UnixNs)
	switch state {
	case servo.StateLocked:
		p.state = StateSlave
	case servo.StateJump:
		p.state = StateUncalibrated
	default:
		if p.state != StateSlave {
			p.state = StateUncalibrated
		}
	}
	return nil
}

// Published returns the servo's published offset/calibration snapshot.
func (p *Port) Published() servo.Published {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.servo.Published()
}

// originTimeNs converts a wire Timestamp to nanoseconds since the PTP epoch.
func originTimeNs(ts ptp.Timestamp) int64 {
	return int64(ts.Seconds.Seconds())*int64(time.Second) + int64(ts.Nanoseconds)
}

// correctionNs decodes the PTP correction field (ns << 16) to whole
// nanoseconds, discarding the fractional sub-nanosecond remainder.
func correctionNs(c ptp.Correction) int64 {
	return int64(c.Nanoseconds())
}
