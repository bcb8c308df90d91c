package port

import (
	"errors"
	"time"

	ptp "github.com/ravennakit/ravennakit/ptp/protocol"
)

// ErrPDelayRespMismatch and friends report peer-delay exchange rejections
// (§4.E's peer-delay mode).
var (
	ErrPDelayRespMismatch      = errors.New("port: pdelay_resp does not match the outstanding pdelay_req")
	ErrPDelayRespFollowUpStale = errors.New("port: pdelay_resp_follow_up without a matching pdelay_resp")
	ErrPDelayRespNotForUs      = errors.New("port: pdelay_resp addressed to a different port identity")
)

// pendingPDelay holds the initiator-side state of an in-flight peer-delay
// exchange: our own Pdelay_Req, its Pdelay_Resp, waiting on the
// Pdelay_Resp_Follow_Up to complete the four-timestamp computation.
type pendingPDelay struct {
	active       bool
	seq          uint16
	t1UnixNs     int64 // local send time of our Pdelay_Req
	t2UnixNs     int64 // peer's RequestReceiptTimestamp, from Pdelay_Resp
	t4UnixNs     int64 // local receive time of Pdelay_Resp
	respCorrNs   int64
	haveResp     bool
}

// NextPDelayReq reports whether the initiator's periodic Pdelay_Req is due,
// and if so builds the packet for the caller to send. The caller must call
// MarkPDelayReqSent with the packet's actual wire departure time once it
// has been written to the socket.
func (p *Port) NextPDelayReq(now time.Time) (*ptp.PDelayReq, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if now.Before(p.pdelayDeadline) {
		return nil, false
	}
	p.pdelaySeq++
	req := &ptp.PDelayReq{}
	req.Header.SdoIDAndMsgType = ptp.NewSdoIDAndMsgType(ptp.MessagePDelayReq, 0)
	req.Header.Version = ptp.Version
	req.Header.DomainNumber = p.cfg.Domain
	req.Header.SourcePortIdentity = p.local
	req.Header.SequenceID = p.pdelaySeq
	req.Header.LogMessageInterval = ptp.LogInterval(p.cfg.LogPDelayReqInterval)

	interval := ptp.LogInterval(p.cfg.LogPDelayReqInterval).Duration()
	p.pdelayDeadline = now.Add(interval)
	return req, true
}

// MarkPDelayReqSent records the actual departure time of the most recently
// issued Pdelay_Req, arming the initiator state machine to match the
// upcoming Pdelay_Resp/Pdelay_Resp_Follow_Up pair.
func (p *Port) MarkPDelayReqSent(seq uint16, txUnixNs int64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.pending2 = pendingPDelay{active: true, seq: seq, t1UnixNs: txUnixNs}
}

// HandlePDelayResp processes a received Pdelay_Resp as the initiator,
// recording t2_p and t4_p. The mean link delay is not yet known until the
// matching Pdelay_Resp_Follow_Up arrives (two-step peer-delay, the common
// case); responders that fold t3_p into this message directly are not
// distinguished here, matching the common ptp4l deployment profile.
func (p *Port) HandlePDelayResp(resp *ptp.PDelayResp, rxUnixNs int64) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if resp.RequestingPortIdentity != p.local {
		return ErrPDelayRespNotForUs
	}
	if !p.pending2.active || resp.Header.SequenceID != p.pending2.seq {
		p.stats.StateErrors++
		return ErrPDelayRespMismatch
	}
	p.pending2.t2UnixNs = originTimeNs(resp.RequestReceiptTimestamp)
	p.pending2.t4UnixNs = rxUnixNs
	p.pending2.respCorrNs = correctionNs(resp.Header.CorrectionField)
	p.pending2.haveResp = true
	return nil
}

// HandlePDelayRespFollowUp completes a peer-delay exchange, computing
// mean_link_delay = ((t4_p - t1_p) - (t3_p - t2_p)) / 2 minus the
// accumulated correction fields, and stores the result as the port's
// mean_path_delay_ns used by subsequent Sync processing.
func (p *Port) HandlePDelayRespFollowUp(f *ptp.PDelayRespFollowUp) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if f.RequestingPortIdentity != p.local {
		return ErrPDelayRespNotForUs
	}
	if !p.pending2.active || !p.pending2.haveResp || f.Header.SequenceID != p.pending2.seq {
		p.stats.StateErrors++
		return ErrPDelayRespFollowUpStale
	}
	t1 := p.pending2.t1UnixNs
	t2 := p.pending2.t2UnixNs
	t3 := originTimeNs(f.ResponseOriginTimestamp)
	t4 := p.pending2.t4UnixNs
	corr := p.pending2.respCorrNs + correctionNs(f.Header.CorrectionField)

	meanLinkDelay := ((t4 - t1) - (t3 - t2)) / 2
	meanLinkDelay -= corr
	if meanLinkDelay < 0 {
		meanLinkDelay = 0
	}
	p.meanPathDelayNs = meanLinkDelay
	p.pending2 = pendingPDelay{}
	return nil
}

// HandlePDelayReq processes a received Pdelay_Req in the responder role,
// building the Pdelay_Resp and Pdelay_Resp_Follow_Up the caller must send
// back immediately. Because this implementation answers synchronously
// rather than from a hardware TX timestamp, t3_p is taken to equal the
// Pdelay_Resp's own construction time, which is adequate for software
// timestamping but forgoes the sub-microsecond accuracy a PHY timestamp
// would give.
func (p *Port) HandlePDelayReq(req *ptp.PDelayReq, rxUnixNs, txUnixNs int64) (*ptp.PDelayResp, *ptp.PDelayRespFollowUp, error) {
	t2 := rxUnixNs

	resp := &ptp.PDelayResp{}
	resp.Header.SdoIDAndMsgType = ptp.NewSdoIDAndMsgType(ptp.MessagePDelayResp, 0)
	resp.Header.Version = ptp.Version
	resp.Header.DomainNumber = p.cfg.Domain
	resp.Header.FlagField = ptp.FlagTwoStep
	resp.Header.CorrectionField = req.Header.CorrectionField
	resp.Header.SourcePortIdentity = p.local
	resp.Header.SequenceID = req.Header.SequenceID
	resp.RequestReceiptTimestamp = nsToTimestamp(t2)
	resp.RequestingPortIdentity = req.Header.SourcePortIdentity

	t3 := txUnixNs
	followUp := &ptp.PDelayRespFollowUp{}
	followUp.Header = resp.Header
	followUp.Header.SdoIDAndMsgType = ptp.NewSdoIDAndMsgType(ptp.MessagePDelayRespFollowUp, 0)
	followUp.Header.FlagField = 0
	followUp.ResponseOriginTimestamp = nsToTimestamp(t3)
	followUp.RequestingPortIdentity = req.Header.SourcePortIdentity

	return resp, followUp, nil
}

func nsToTimestamp(ns int64) ptp.Timestamp {
	return ptp.NewTimestamp(time.Unix(0, ns).UTC())
}
